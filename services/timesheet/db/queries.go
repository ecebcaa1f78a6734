package db

import (
	"context"
	"database/sql"
)

type TimesheetEntry struct {
	ID                  int64
	Date                string
	TimeIn              int64
	TimeOut             int64
	Project             string
	Tool                sql.NullString
	DetailChargeCode    sql.NullString
	TaskDescription     string
	Status              string
	SubmissionStartedAt sql.NullInt64
	SubmittedAt         sql.NullInt64
}

const entryColumns = `
id, date, time_in, time_out, project, tool, detail_charge_code,
task_description, status, submission_started_at, submitted_at
`

func scanEntry(row interface{ Scan(...interface{}) error }) (TimesheetEntry, error) {
	var e TimesheetEntry
	err := row.Scan(
		&e.ID,
		&e.Date,
		&e.TimeIn,
		&e.TimeOut,
		&e.Project,
		&e.Tool,
		&e.DetailChargeCode,
		&e.TaskDescription,
		&e.Status,
		&e.SubmissionStartedAt,
		&e.SubmittedAt,
	)
	return e, err
}

func (q *Queries) scanEntries(rows *sql.Rows) ([]TimesheetEntry, error) {
	defer rows.Close()
	var out []TimesheetEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const createEntry = `
INSERT INTO timesheet (
    date, time_in, time_out, project, tool, detail_charge_code,
    task_description, status
)
VALUES (?, ?, ?, ?, ?, ?, ?, 'Draft')
`

type CreateEntryParams struct {
	Date             string
	TimeIn           int64
	TimeOut          int64
	Project          string
	Tool             sql.NullString
	DetailChargeCode sql.NullString
	TaskDescription  string
}

func (q *Queries) CreateEntry(ctx context.Context, arg CreateEntryParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createEntry,
		arg.Date,
		arg.TimeIn,
		arg.TimeOut,
		arg.Project,
		arg.Tool,
		arg.DetailChargeCode,
		arg.TaskDescription,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const updateDraftEntry = `
UPDATE timesheet SET
    date = ?,
    time_in = ?,
    time_out = ?,
    project = ?,
    tool = ?,
    detail_charge_code = ?,
    task_description = ?
WHERE id = ? AND status = 'Draft'
`

type UpdateDraftEntryParams struct {
	Date             string
	TimeIn           int64
	TimeOut          int64
	Project          string
	Tool             sql.NullString
	DetailChargeCode sql.NullString
	TaskDescription  string
	ID               int64
}

func (q *Queries) UpdateDraftEntry(ctx context.Context, arg UpdateDraftEntryParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateDraftEntry,
		arg.Date,
		arg.TimeIn,
		arg.TimeOut,
		arg.Project,
		arg.Tool,
		arg.DetailChargeCode,
		arg.TaskDescription,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getEntry = `
SELECT ` + entryColumns + `
FROM timesheet
WHERE id = ?
`

func (q *Queries) GetEntry(ctx context.Context, id int64) (TimesheetEntry, error) {
	return scanEntry(q.db.QueryRowContext(ctx, getEntry, id))
}

const listByStatus = `
SELECT ` + entryColumns + `
FROM timesheet
WHERE status = ?
ORDER BY date, time_in
`

func (q *Queries) ListByStatus(ctx context.Context, status string) ([]TimesheetEntry, error) {
	rows, err := q.db.QueryContext(ctx, listByStatus, status)
	if err != nil {
		return nil, err
	}
	return q.scanEntries(rows)
}

const listCompleted = `
SELECT ` + entryColumns + `
FROM timesheet
WHERE status = 'Complete'
ORDER BY date DESC, time_in DESC
`

func (q *Queries) ListCompleted(ctx context.Context) ([]TimesheetEntry, error) {
	rows, err := q.db.QueryContext(ctx, listCompleted)
	if err != nil {
		return nil, err
	}
	return q.scanEntries(rows)
}

const deleteDraftEntry = `
DELETE FROM timesheet WHERE id = ? AND status = 'Draft'
`

func (q *Queries) DeleteDraftEntry(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteDraftEntry, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const claimDrafts = `
UPDATE timesheet SET
    status = 'Submitting',
    submission_started_at = ?
WHERE status = 'Draft'
`

func (q *Queries) ClaimDrafts(ctx context.Context, startedAt int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, claimDrafts, startedAt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markComplete = `
UPDATE timesheet SET
    status = 'Complete',
    submitted_at = ?,
    submission_started_at = NULL
WHERE id = ? AND status = 'Submitting'
`

type MarkCompleteParams struct {
	SubmittedAt int64
	ID          int64
}

func (q *Queries) MarkComplete(ctx context.Context, arg MarkCompleteParams) error {
	_, err := q.db.ExecContext(ctx, markComplete, arg.SubmittedAt, arg.ID)
	return err
}

const markFailed = `
UPDATE timesheet SET
    status = 'Failed',
    submission_started_at = NULL
WHERE id = ? AND status = 'Submitting'
`

func (q *Queries) MarkFailed(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markFailed, id)
	return err
}

const failAllSubmitting = `
UPDATE timesheet SET
    status = 'Failed',
    submission_started_at = NULL
WHERE status = 'Submitting'
`

func (q *Queries) FailAllSubmitting(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, failAllSubmitting)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const recoverStale = `
UPDATE timesheet SET
    status = 'Failed',
    submission_started_at = NULL
WHERE status = 'Submitting' AND submission_started_at < ?
`

func (q *Queries) RecoverStale(ctx context.Context, cutoff int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, recoverStale, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const resetFailed = `
UPDATE timesheet SET
    status = 'Draft',
    submission_started_at = NULL,
    submitted_at = NULL
WHERE status = 'Failed'
`

func (q *Queries) ResetFailed(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, resetFailed)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countByStatus = `
SELECT COUNT(*) FROM timesheet WHERE status = ?
`

func (q *Queries) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countByStatus, status).Scan(&count)
	return count, err
}
