package timesheet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"sheetpilot-backend/lib/bot"
	"sheetpilot-backend/lib/timezone"
	"sheetpilot-backend/services/keychain"
	"sheetpilot-backend/services/timesheet/db"

	"go.opentelemetry.io/otel/codes"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// A run claimed longer ago than this with no terminal status is
// treated as orphaned by a crash and its rows marked Failed.
const staleSubmissionAge = time.Minute * 30

var (
	ErrNothingToSubmit      = fmt.Errorf("nothing to submit")
	ErrNoCredentials        = fmt.Errorf("no vendor credentials stored")
	ErrDraftNotFound        = fmt.Errorf("draft not found")
	ErrSubmissionInProgress = fmt.Errorf("a submission is already in progress")
	ErrNothingToExport      = fmt.Errorf("no submitted timesheet entries found to export")
)

// AutomationRunner executes one browser submission run against a
// single quarter form. The production wiring drives a real browser;
// tests substitute a fake.
type AutomationRunner func(ctx context.Context, rows []bot.TimesheetRow, creds bot.Credentials, config bot.FormConfig) (bot.AutomationResult, error)

type Options struct {
	// LoginURL is the vendor page the SSO login sequence starts from.
	LoginURL string
}

// Service owns the timesheet entry lifecycle: draft CRUD, the
// Draft -> Submitting -> Complete/Failed state machine, crash
// recovery and export.
type Service struct {
	db       *sql.DB
	qry      *db.Queries
	keychain keychain.Service
	router   *bot.Router
	runner   AutomationRunner
	config   Options
}

func NewService(database *sql.DB, kc keychain.Service, router *bot.Router, runner AutomationRunner, options Options) Service {
	return Service{
		db:       database,
		qry:      db.New(database),
		keychain: kc,
		router:   router,
		runner:   runner,
		config:   options,
	}
}

// Draft is user input for one timesheet row. Times are HH:MM strings
// on quarter-hour boundaries.
type Draft struct {
	Date            string `json:"date"`
	TimeIn          string `json:"timeIn"`
	TimeOut         string `json:"timeOut"`
	Project         string `json:"project"`
	Tool            string `json:"tool"`
	ChargeCode      string `json:"chargeCode"`
	TaskDescription string `json:"taskDescription"`
}

type Entry struct {
	ID              int64     `json:"id"`
	Date            string    `json:"date"`
	TimeIn          string    `json:"timeIn"`
	TimeOut         string    `json:"timeOut"`
	Hours           string    `json:"hours"`
	Project         string    `json:"project"`
	Tool            string    `json:"tool,omitempty"`
	ChargeCode      string    `json:"chargeCode,omitempty"`
	TaskDescription string    `json:"taskDescription"`
	Status          string    `json:"status"`
	SubmittedAt     time.Time `json:"submittedAt"`
}

// parseClockMinutes converts a strict HH:MM string to minutes past
// midnight.
func parseClockMinutes(s string) (int64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %q", s)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid hours in %q", s)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("invalid minutes in %q", s)
	}
	return int64(hours*60 + minutes), nil
}

func formatClockMinutes(m int64) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

func formatHours(timeIn, timeOut int64) string {
	return fmt.Sprintf("%.2f", float64(timeOut-timeIn)/60)
}

// validateDraft normalizes and checks a draft, returning insert-ready
// parameters.
func (s Service) validateDraft(draft Draft) (db.CreateEntryParams, error) {
	var params db.CreateEntryParams

	if draft.Date == "" {
		return params, fmt.Errorf("date is required")
	}
	if _, err := time.Parse(dateLayout, draft.Date); err != nil {
		return params, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", draft.Date)
	}
	if message := s.router.ValidateAvailability(draft.Date); message != "" {
		return params, errors.New(message)
	}
	if draft.Project == "" {
		return params, fmt.Errorf("project is required")
	}
	if strings.TrimSpace(draft.TaskDescription) == "" {
		return params, fmt.Errorf("task description is required")
	}

	timeIn, err := parseClockMinutes(draft.TimeIn)
	if err != nil {
		return params, fmt.Errorf("time in: %w", err)
	}
	timeOut, err := parseClockMinutes(draft.TimeOut)
	if err != nil {
		return params, fmt.Errorf("time out: %w", err)
	}
	if timeIn%15 != 0 || timeOut%15 != 0 {
		return params, fmt.Errorf("times must fall on 15 minute increments")
	}
	if timeOut <= timeIn {
		return params, fmt.Errorf("time out (%s) must be after time in (%s)", draft.TimeOut, draft.TimeIn)
	}

	return db.CreateEntryParams{
		Date:             draft.Date,
		TimeIn:           timeIn,
		TimeOut:          timeOut,
		Project:          draft.Project,
		Tool:             sql.NullString{String: draft.Tool, Valid: draft.Tool != ""},
		DetailChargeCode: sql.NullString{String: draft.ChargeCode, Valid: draft.ChargeCode != ""},
		TaskDescription:  strings.TrimSpace(draft.TaskDescription),
	}, nil
}

func (s Service) SaveDraft(ctx context.Context, draft Draft) (int64, error) {
	ctx, span := tracer.Start(ctx, "timesheet:SaveDraft")
	defer span.End()

	params, err := s.validateDraft(draft)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "draft rejected")
		return 0, err
	}

	id, err := s.qry.CreateEntry(ctx, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to insert draft")
		return 0, err
	}

	slog.InfoContext(ctx, "saved draft", "id", id, "date", draft.Date)
	return id, nil
}

// UpdateDraft rewrites a draft in place. Entries that have left Draft
// are immutable through this path.
func (s Service) UpdateDraft(ctx context.Context, id int64, draft Draft) error {
	ctx, span := tracer.Start(ctx, "timesheet:UpdateDraft")
	defer span.End()

	params, err := s.validateDraft(draft)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "draft rejected")
		return err
	}

	affected, err := s.qry.UpdateDraftEntry(ctx, db.UpdateDraftEntryParams{
		Date:             params.Date,
		TimeIn:           params.TimeIn,
		TimeOut:          params.TimeOut,
		Project:          params.Project,
		Tool:             params.Tool,
		DetailChargeCode: params.DetailChargeCode,
		TaskDescription:  params.TaskDescription,
		ID:               id,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to update draft")
		return err
	}
	if affected == 0 {
		return ErrDraftNotFound
	}
	return nil
}

func entryFromRow(row db.TimesheetEntry) Entry {
	e := Entry{
		ID:              row.ID,
		Date:            row.Date,
		TimeIn:          formatClockMinutes(row.TimeIn),
		TimeOut:         formatClockMinutes(row.TimeOut),
		Hours:           formatHours(row.TimeIn, row.TimeOut),
		Project:         row.Project,
		TaskDescription: row.TaskDescription,
		Status:          row.Status,
	}
	if row.Tool.Valid {
		e.Tool = row.Tool.String
	}
	if row.DetailChargeCode.Valid {
		e.ChargeCode = row.DetailChargeCode.String
	}
	if row.SubmittedAt.Valid {
		e.SubmittedAt = time.Unix(row.SubmittedAt.Int64, 0).In(timezone.Location)
	}
	return e
}

func entriesFromRows(rows []db.TimesheetEntry) []Entry {
	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, entryFromRow(row))
	}
	return out
}

func (s Service) ListDrafts(ctx context.Context) ([]Entry, error) {
	rows, err := s.qry.ListByStatus(ctx, db.StatusDraft)
	if err != nil {
		return nil, err
	}
	return entriesFromRows(rows), nil
}

// ListArchive returns successfully submitted entries, newest first.
func (s Service) ListArchive(ctx context.Context) ([]Entry, error) {
	rows, err := s.qry.ListCompleted(ctx)
	if err != nil {
		return nil, err
	}
	return entriesFromRows(rows), nil
}

func (s Service) ListFailed(ctx context.Context) ([]Entry, error) {
	rows, err := s.qry.ListByStatus(ctx, db.StatusFailed)
	if err != nil {
		return nil, err
	}
	return entriesFromRows(rows), nil
}

func (s Service) DeleteDraft(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "timesheet:DeleteDraft")
	defer span.End()

	affected, err := s.qry.DeleteDraftEntry(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to delete draft")
		return err
	}
	if affected == 0 {
		return ErrDraftNotFound
	}

	slog.InfoContext(ctx, "deleted draft", "id", id)
	return nil
}

type SubmitResult struct {
	SubmittedIDs []int64  `json:"submittedIds"`
	SuccessCount int      `json:"successCount"`
	FailureCount int      `json:"failureCount"`
	Errors       []string `json:"errors,omitempty"`
}

// Summary is the one-line outcome shown to the user.
func (r SubmitResult) Summary() string {
	total := r.SuccessCount + r.FailureCount
	if r.FailureCount == 0 {
		return fmt.Sprintf("submitted %d entries", r.SuccessCount)
	}
	return fmt.Sprintf("%d of %d rows failed", r.FailureCount, total)
}

type quarterBatch struct {
	quarter bot.QuarterDefinition
	rows    []db.TimesheetEntry
}

// SubmitPending submits every Draft entry. Credentials are checked
// before any row is claimed so a missing keychain entry leaves drafts
// untouched. Claimed rows always end the call in a terminal status:
// an entry still Submitting afterwards would be invisible to both the
// draft list and the archive.
func (s Service) SubmitPending(ctx context.Context) (result SubmitResult, err error) {
	ctx, span := tracer.Start(ctx, "timesheet:SubmitPending")
	defer span.End()

	cred, err := s.keychain.Get(ctx, keychain.ServiceSmartsheet)
	if errors.Is(err, keychain.ErrNotFound) {
		return SubmitResult{}, ErrNoCredentials
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load credentials")
		return SubmitResult{}, err
	}
	creds := bot.Credentials{Email: cred.Email, Password: cred.Password}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SubmitResult{}, err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	// Claiming inside the same transaction as the in-progress check
	// keeps two concurrent submits from both grabbing rows.
	inFlight, err := txqry.CountByStatus(ctx, db.StatusSubmitting)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to check for running submission")
		return SubmitResult{}, err
	}
	if inFlight > 0 {
		return SubmitResult{}, ErrSubmissionInProgress
	}

	claimed, err := txqry.ClaimDrafts(ctx, timezone.Now().Unix())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to claim drafts")
		return SubmitResult{}, err
	}
	if claimed == 0 {
		return SubmitResult{}, ErrNothingToSubmit
	}
	if err := tx.Commit(); err != nil {
		return SubmitResult{}, err
	}

	// Rows are Submitting from here on. A db error below aborts the
	// reconcile loop, so sweep whatever it left behind to Failed
	// rather than strand rows until the startup recovery pass.
	defer func() {
		if err == nil {
			return
		}
		count, sweepErr := s.qry.FailAllSubmitting(ctx)
		if sweepErr != nil {
			slog.ErrorContext(ctx, "failed to sweep stranded rows", "err", sweepErr)
			return
		}
		if count > 0 {
			slog.WarnContext(ctx, "swept stranded rows to failed", "count", count)
		}
	}()

	pending, err := s.qry.ListByStatus(ctx, db.StatusSubmitting)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load claimed rows")
		return SubmitResult{}, err
	}

	slog.InfoContext(ctx, "starting submission", "rows", len(pending))

	batches := make(map[string]*quarterBatch)
	var order []string
	for _, row := range pending {
		quarter, ok := s.router.ResolveForDate(row.Date)
		if !ok {
			message := fmt.Sprintf("%s: no quarter form covers this date", row.Date)
			slog.WarnContext(ctx, "unroutable entry", "id", row.ID, "date", row.Date)
			result.Errors = append(result.Errors, message)
			result.FailureCount++
			if err := s.qry.MarkFailed(ctx, row.ID); err != nil {
				return result, err
			}
			continue
		}
		batch, ok := batches[quarter.FormID]
		if !ok {
			batch = &quarterBatch{quarter: quarter}
			batches[quarter.FormID] = batch
			order = append(order, quarter.FormID)
		}
		batch.rows = append(batch.rows, row)
	}

	for _, formID := range order {
		batch := batches[formID]
		if err := s.submitBatch(ctx, batch, creds, &result); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "submission batch failed")
			return result, err
		}
	}

	slog.InfoContext(ctx, "submission finished",
		"succeeded", result.SuccessCount,
		"failed", result.FailureCount,
	)
	return result, nil
}

// submitBatch runs the browser automation for one quarter form and
// reconciles every claimed row in the batch to a terminal status.
func (s Service) submitBatch(ctx context.Context, batch *quarterBatch, creds bot.Credentials, result *SubmitResult) error {
	slog.InfoContext(ctx, "submitting batch",
		"quarter", batch.quarter.ID,
		"rows", len(batch.rows),
	)

	botRows := make([]bot.TimesheetRow, 0, len(batch.rows))
	for _, row := range batch.rows {
		botRows = append(botRows, bot.TimesheetRow{
			Date:            formDate(row.Date),
			TimeIn:          formatClockMinutes(row.TimeIn),
			TimeOut:         formatClockMinutes(row.TimeOut),
			Project:         row.Project,
			Tool:            row.Tool.String,
			ChargeCode:      row.DetailChargeCode.String,
			TaskDescription: row.TaskDescription,
		})
	}

	runResult, err := s.runner(ctx, botRows, creds, bot.FormConfig{
		BaseURL: s.config.LoginURL,
		FormID:  batch.quarter.FormID,
	})
	if err != nil {
		slog.ErrorContext(ctx, "automation could not start",
			"quarter", batch.quarter.ID, "err", err,
		)
		for _, row := range batch.rows {
			if markErr := s.qry.MarkFailed(ctx, row.ID); markErr != nil {
				return markErr
			}
			result.FailureCount++
		}
		result.Errors = append(result.Errors,
			fmt.Sprintf("%s: automation could not start: %s", batch.quarter.Name, err),
		)
		return nil
	}

	filled := make(map[int]bool, len(runResult.FilledIndices))
	for _, idx := range runResult.FilledIndices {
		filled[idx] = true
	}
	messages := make(map[int]string, len(runResult.Errors))
	for _, rowErr := range runResult.Errors {
		messages[rowErr.Index] = rowErr.Message
	}

	now := timezone.Now().Unix()
	for idx, row := range batch.rows {
		if filled[idx] {
			err := s.qry.MarkComplete(ctx, db.MarkCompleteParams{
				SubmittedAt: now,
				ID:          row.ID,
			})
			if err != nil {
				return err
			}
			result.SubmittedIDs = append(result.SubmittedIDs, row.ID)
			result.SuccessCount++
			continue
		}

		message, ok := messages[idx]
		if !ok {
			message = "row was not filled"
		}
		if err := s.qry.MarkFailed(ctx, row.ID); err != nil {
			return err
		}
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", row.Date, message))
		result.FailureCount++
	}
	return nil
}

// formDate converts the stored YYYY-MM-DD date to the MM/DD/YYYY the
// vendor form expects.
func formDate(date string) string {
	parsed, err := time.Parse(dateLayout, date)
	if err != nil {
		return date
	}
	return parsed.Format("01/02/2006")
}

// RecoverStuck marks entries orphaned in Submitting by a crashed run
// as Failed so they surface in the failed list instead of sitting in
// limbo. Intended to run at startup, before serving traffic.
func (s Service) RecoverStuck(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "timesheet:RecoverStuck")
	defer span.End()

	cutoff := timezone.Now().Add(-staleSubmissionAge).Unix()
	count, err := s.qry.RecoverStale(ctx, cutoff)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to recover stale entries")
		return 0, err
	}
	if count > 0 {
		slog.WarnContext(ctx, "recovered entries stuck in submission", "count", count)
	}
	return count, nil
}

// ResetFailedToDraft requeues every Failed entry for another attempt.
func (s Service) ResetFailedToDraft(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "timesheet:ResetFailedToDraft")
	defer span.End()

	count, err := s.qry.ResetFailed(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to reset failed entries")
		return 0, err
	}
	if count > 0 {
		slog.InfoContext(ctx, "reset failed entries to draft", "count", count)
	}
	return count, nil
}
