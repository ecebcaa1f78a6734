package timesheet

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"sheetpilot-backend/lib/bot"
	"sheetpilot-backend/lib/testutil"
	"sheetpilot-backend/lib/timezone"
	"sheetpilot-backend/services/keychain"
	keychaindb "sheetpilot-backend/services/keychain/db"
	"sheetpilot-backend/services/timesheet/db"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

type runnerCall struct {
	rows   []bot.TimesheetRow
	config bot.FormConfig
}

type fakeRunner struct {
	calls  []runnerCall
	handle func(rows []bot.TimesheetRow, config bot.FormConfig) (bot.AutomationResult, error)
}

// fillAll simulates a run where every row lands.
func fillAll(rows []bot.TimesheetRow, config bot.FormConfig) (bot.AutomationResult, error) {
	result := bot.AutomationResult{
		Success:   true,
		TotalRows: len(rows),
	}
	for i := range rows {
		result.FilledIndices = append(result.FilledIndices, i)
		result.SuccessCount++
	}
	return result, nil
}

func (r *fakeRunner) run(ctx context.Context, rows []bot.TimesheetRow, creds bot.Credentials, config bot.FormConfig) (bot.AutomationResult, error) {
	r.calls = append(r.calls, runnerCall{rows: rows, config: config})
	return r.handle(rows, config)
}

type fixture struct {
	service  Service
	keychain keychain.Service
	runner   *fakeRunner
}

func setup(t testing.TB) (fixture, func()) {
	tsRes, tsCleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/timesheet",
		DbSchema: db.Schema,
	})
	kcRes, kcCleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/keychain",
		DbSchema: keychaindb.Schema,
	})

	kc := keychain.NewService(kcRes.DB)
	router, err := bot.NewRouter(bot.DefaultQuarters())
	require.NoError(t, err)

	runner := &fakeRunner{handle: fillAll}
	service := NewService(tsRes.DB, kc, router, runner.run, Options{
		LoginURL: "https://vendor.example.com/login",
	})

	f := fixture{service: service, keychain: kc, runner: runner}
	return f, func() {
		kcCleanup()
		tsCleanup()
	}
}

func storeCreds(t testing.TB, f fixture) {
	err := f.keychain.Set(context.Background(), keychain.Credential{
		Service:  keychain.ServiceSmartsheet,
		Email:    "user@example.com",
		Password: "hunter2",
	})
	require.NoError(t, err)
}

func sampleDraft() Draft {
	return Draft{
		Date:            "2025-07-15",
		TimeIn:          "09:00",
		TimeOut:         "17:30",
		Project:         "PRJ-001",
		Tool:            "Terminal",
		ChargeCode:      "CC-42",
		TaskDescription: "Refactored ingest pipeline",
	}
}

func TestSaveDraftValidation(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	for name, mutate := range map[string]func(*Draft){
		"missing date":       func(d *Draft) { d.Date = "" },
		"bad date":           func(d *Draft) { d.Date = "07/15/2025" },
		"date out of range":  func(d *Draft) { d.Date = "2024-12-31" },
		"missing project":    func(d *Draft) { d.Project = "" },
		"blank description":  func(d *Draft) { d.TaskDescription = "   " },
		"bad time in":        func(d *Draft) { d.TimeIn = "9am" },
		"bad time out":       func(d *Draft) { d.TimeOut = "25:00" },
		"off grid time":      func(d *Draft) { d.TimeIn = "09:10" },
		"time out before in": func(d *Draft) { d.TimeOut = "08:00" },
		"zero length":        func(d *Draft) { d.TimeOut = "09:00" },
	} {
		draft := sampleDraft()
		mutate(&draft)
		_, err := f.service.SaveDraft(ctx, draft)
		require.Error(t, err, name)
	}

	_, err := f.service.SaveDraft(ctx, sampleDraft())
	require.NoError(t, err)
}

func TestDraftLifecycle(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	later := sampleDraft()
	later.Date = "2025-07-16"
	id2, err := f.service.SaveDraft(ctx, later)
	require.NoError(t, err)
	id1, err := f.service.SaveDraft(ctx, sampleDraft())
	require.NoError(t, err)

	drafts, err := f.service.ListDrafts(ctx)
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	// ordered by date regardless of insertion order
	require.Equal(t, id1, drafts[0].ID)
	require.Equal(t, id2, drafts[1].ID)
	require.Equal(t, "8.50", drafts[0].Hours)
	require.Equal(t, "Draft", drafts[0].Status)

	updated := sampleDraft()
	updated.Project = "PRJ-002"
	require.NoError(t, f.service.UpdateDraft(ctx, id1, updated))

	drafts, err = f.service.ListDrafts(ctx)
	require.NoError(t, err)
	require.Equal(t, "PRJ-002", drafts[0].Project)

	require.NoError(t, f.service.DeleteDraft(ctx, id2))
	require.ErrorIs(t, f.service.DeleteDraft(ctx, id2), ErrDraftNotFound)
	require.ErrorIs(t, f.service.UpdateDraft(ctx, id2, updated), ErrDraftNotFound)

	drafts, err = f.service.ListDrafts(ctx)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
}

func TestSubmitPendingSuccess(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()
	storeCreds(t, f)

	_, err := f.service.SaveDraft(ctx, sampleDraft())
	require.NoError(t, err)
	second := sampleDraft()
	second.Date = "2025-07-16"
	_, err = f.service.SaveDraft(ctx, second)
	require.NoError(t, err)

	result, err := f.service.SubmitPending(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, result.SuccessCount)
	require.Equal(t, 0, result.FailureCount)
	require.Len(t, result.SubmittedIDs, 2)
	require.Equal(t, "submitted 2 entries", result.Summary())

	require.Len(t, f.runner.calls, 1)
	call := f.runner.calls[0]
	require.Equal(t, "0197cbae7daf72bdb96b3395b500d414", call.config.FormID)
	require.Equal(t, "https://vendor.example.com/login", call.config.BaseURL)
	require.Equal(t, "07/15/2025", call.rows[0].Date)
	require.Equal(t, "09:00", call.rows[0].TimeIn)
	require.Equal(t, "17:30", call.rows[0].TimeOut)

	drafts, err := f.service.ListDrafts(ctx)
	require.NoError(t, err)
	require.Empty(t, drafts)

	archive, err := f.service.ListArchive(ctx)
	require.NoError(t, err)
	require.Len(t, archive, 2)
	// newest first
	require.Equal(t, "2025-07-16", archive[0].Date)
	require.Equal(t, "Complete", archive[0].Status)
	require.False(t, archive[0].SubmittedAt.IsZero())

	count, err := db.New(f.service.db).CountByStatus(ctx, db.StatusSubmitting)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestSubmitPendingWithoutCredentials(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	_, err := f.service.SaveDraft(ctx, sampleDraft())
	require.NoError(t, err)

	_, err = f.service.SubmitPending(ctx)
	require.ErrorIs(t, err, ErrNoCredentials)
	require.Empty(t, f.runner.calls)

	// drafts were never claimed
	drafts, err := f.service.ListDrafts(ctx)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
}

func TestSubmitPendingNothingToSubmit(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	storeCreds(t, f)

	_, err := f.service.SubmitPending(context.Background())
	require.ErrorIs(t, err, ErrNothingToSubmit)
	require.Empty(t, f.runner.calls)
}

func TestSubmitPendingPartialFailure(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()
	storeCreds(t, f)

	for day := 15; day <= 17; day++ {
		draft := sampleDraft()
		draft.Date = fmt.Sprintf("2025-07-%d", day)
		_, err := f.service.SaveDraft(ctx, draft)
		require.NoError(t, err)
	}

	f.runner.handle = func(rows []bot.TimesheetRow, config bot.FormConfig) (bot.AutomationResult, error) {
		return bot.AutomationResult{
			Success:       true,
			FilledIndices: []int{0, 2},
			Errors:        []bot.RowError{{Index: 1, Message: "failed to fill row: field not found"}},
			TotalRows:     len(rows),
			SuccessCount:  2,
			FailureCount:  1,
		}, nil
	}

	result, err := f.service.SubmitPending(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, result.SuccessCount)
	require.Equal(t, 1, result.FailureCount)
	require.Equal(t, "1 of 3 rows failed", result.Summary())
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "2025-07-16")

	failed, err := f.service.ListFailed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, "2025-07-16", failed[0].Date)

	count, err := db.New(f.service.db).CountByStatus(ctx, db.StatusSubmitting)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestSubmitPendingAutomationError(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()
	storeCreds(t, f)

	_, err := f.service.SaveDraft(ctx, sampleDraft())
	require.NoError(t, err)
	_, err = f.service.SaveDraft(ctx, sampleDraft())
	require.NoError(t, err)

	f.runner.handle = func(rows []bot.TimesheetRow, config bot.FormConfig) (bot.AutomationResult, error) {
		return bot.AutomationResult{}, fmt.Errorf("chromedriver unreachable")
	}

	result, err := f.service.SubmitPending(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, result.SuccessCount)
	require.Equal(t, 2, result.FailureCount)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "automation could not start")

	failed, err := f.service.ListFailed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 2)

	count, err := db.New(f.service.db).CountByStatus(ctx, db.StatusSubmitting)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestSubmitPendingSweepsStrandedRowsOnWriteFailure(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()
	storeCreds(t, f)

	_, err := f.service.SaveDraft(ctx, sampleDraft())
	require.NoError(t, err)
	q4 := sampleDraft()
	q4.Date = "2025-10-01"
	_, err = f.service.SaveDraft(ctx, q4)
	require.NoError(t, err)

	// Reject the Complete transition so the reconcile loop hits a
	// write error partway through.
	_, err = f.service.db.Exec(`
		CREATE TRIGGER reject_complete BEFORE UPDATE ON timesheet
		WHEN NEW.status = 'Complete'
		BEGIN SELECT RAISE(ABORT, 'write failed'); END`)
	require.NoError(t, err)

	_, err = f.service.SubmitPending(ctx)
	require.Error(t, err)

	count, err := db.New(f.service.db).CountByStatus(ctx, db.StatusSubmitting)
	require.NoError(t, err)
	require.Zero(t, count)

	failed, err := f.service.ListFailed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 2)
}

func TestSubmitRoutesQuartersToSeparateRuns(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()
	storeCreds(t, f)

	q3 := sampleDraft()
	q3.Date = "2025-09-30"
	_, err := f.service.SaveDraft(ctx, q3)
	require.NoError(t, err)

	q4 := sampleDraft()
	q4.Date = "2025-10-01"
	_, err = f.service.SaveDraft(ctx, q4)
	require.NoError(t, err)

	result, err := f.service.SubmitPending(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, result.SuccessCount)

	require.Len(t, f.runner.calls, 2)
	require.Equal(t, "0197cbae7daf72bdb96b3395b500d414", f.runner.calls[0].config.FormID)
	require.Equal(t, "0199fabee6497e60abb6030c48d84585", f.runner.calls[1].config.FormID)
	require.Len(t, f.runner.calls[0].rows, 1)
	require.Len(t, f.runner.calls[1].rows, 1)
	require.Equal(t, "09/30/2025", f.runner.calls[0].rows[0].Date)
	require.Equal(t, "10/01/2025", f.runner.calls[1].rows[0].Date)
}

func TestRecoverStuck(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	staleID, err := f.service.SaveDraft(ctx, sampleDraft())
	require.NoError(t, err)
	recentID, err := f.service.SaveDraft(ctx, sampleDraft())
	require.NoError(t, err)

	now := timezone.Now()
	_, err = f.service.db.Exec(
		"UPDATE timesheet SET status = 'Submitting', submission_started_at = ? WHERE id = ?",
		now.Add(-45*time.Minute).Unix(), staleID,
	)
	require.NoError(t, err)
	_, err = f.service.db.Exec(
		"UPDATE timesheet SET status = 'Submitting', submission_started_at = ? WHERE id = ?",
		now.Add(-5*time.Minute).Unix(), recentID,
	)
	require.NoError(t, err)

	count, err := f.service.RecoverStuck(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	stale, err := db.New(f.service.db).GetEntry(ctx, staleID)
	require.NoError(t, err)
	require.Equal(t, db.StatusFailed, stale.Status)
	require.False(t, stale.SubmissionStartedAt.Valid)

	recent, err := db.New(f.service.db).GetEntry(ctx, recentID)
	require.NoError(t, err)
	require.Equal(t, db.StatusSubmitting, recent.Status)
}

func TestResetFailedToDraft(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	id, err := f.service.SaveDraft(ctx, sampleDraft())
	require.NoError(t, err)
	_, err = f.service.db.Exec("UPDATE timesheet SET status = 'Failed' WHERE id = ?", id)
	require.NoError(t, err)

	count, err := f.service.ResetFailedToDraft(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	drafts, err := f.service.ListDrafts(ctx)
	require.NoError(t, err)
	require.Len(t, drafts, 1)

	count, err = f.service.ResetFailedToDraft(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestSubmitPendingBlockedWhileInProgress(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()
	storeCreds(t, f)

	stuckID, err := f.service.SaveDraft(ctx, sampleDraft())
	require.NoError(t, err)
	_, err = f.service.db.Exec(
		"UPDATE timesheet SET status = 'Submitting', submission_started_at = ? WHERE id = ?",
		timezone.Now().Unix(), stuckID,
	)
	require.NoError(t, err)

	queued := sampleDraft()
	queued.Date = "2025-07-16"
	_, err = f.service.SaveDraft(ctx, queued)
	require.NoError(t, err)

	_, err = f.service.SubmitPending(ctx)
	require.ErrorIs(t, err, ErrSubmissionInProgress)
	require.Empty(t, f.runner.calls)

	drafts, err := f.service.ListDrafts(ctx)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
}

func markComplete(t *testing.T, f fixture, id int64, submittedAt time.Time) {
	t.Helper()
	_, err := f.service.db.Exec(
		"UPDATE timesheet SET status = 'Complete', submitted_at = ? WHERE id = ?",
		submittedAt.Unix(), id,
	)
	require.NoError(t, err)
}

func TestExportCSV(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	draft := sampleDraft()
	draft.TaskDescription = `Fixed "edge case", twice`
	id, err := f.service.SaveDraft(ctx, draft)
	require.NoError(t, err)

	submittedAt := time.Date(2025, 7, 18, 14, 30, 0, 0, time.UTC)
	markComplete(t, f, id, submittedAt)

	filename, data, err := f.service.ExportCSV(ctx)
	require.NoError(t, err)
	require.Equal(t,
		fmt.Sprintf("timesheet_export_%s.csv", timezone.Now().Format("2006-01-02")),
		filename,
	)

	lines := strings.Split(strings.TrimRight(string(data), "\r\n"), "\r\n")
	require.Len(t, lines, 2)
	require.Equal(t,
		"Date,Start Time,End Time,Hours,Project,Tool,Charge Code,Task Description,Status,Submitted At",
		lines[0],
	)
	require.Equal(t,
		`2025-07-15,09:00,17:30,8.50,"PRJ-001","Terminal","CC-42","Fixed ""edge case"", twice",Complete,`+
			submittedAt.In(timezone.Location).Format("2006-01-02 15:04"),
		lines[1],
	)
}

func TestExportCSVSkipsUnsubmitted(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	older := sampleDraft()
	older.Date = "2025-07-14"
	olderID, err := f.service.SaveDraft(ctx, older)
	require.NoError(t, err)
	newerID, err := f.service.SaveDraft(ctx, sampleDraft())
	require.NoError(t, err)

	stillDraft := sampleDraft()
	stillDraft.Date = "2025-07-16"
	_, err = f.service.SaveDraft(ctx, stillDraft)
	require.NoError(t, err)

	now := timezone.Now()
	markComplete(t, f, olderID, now)
	markComplete(t, f, newerID, now)

	_, data, err := f.service.ExportCSV(ctx)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\r\n"), "\r\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[1], "2025-07-15,"))
	require.True(t, strings.HasPrefix(lines[2], "2025-07-14,"))
}

func TestExportCSVNothingSubmitted(t *testing.T) {
	f, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	_, err := f.service.SaveDraft(ctx, sampleDraft())
	require.NoError(t, err)

	_, _, err = f.service.ExportCSV(ctx)
	require.ErrorIs(t, err, ErrNothingToExport)
}
