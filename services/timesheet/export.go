package timesheet

import (
	"context"
	"fmt"
	"strings"

	"sheetpilot-backend/lib/timezone"

	"go.opentelemetry.io/otel/codes"
)

var csvHeader = []string{
	"Date",
	"Start Time",
	"End Time",
	"Hours",
	"Project",
	"Tool",
	"Charge Code",
	"Task Description",
	"Status",
	"Submitted At",
}

// quoteCSV always quotes, doubling embedded quotes. Free-text columns
// are quoted unconditionally so downstream spreadsheet imports never
// misparse a comma in a task description.
func quoteCSV(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// ExportCSV renders every submitted entry, newest first, as a
// spreadsheet-ready CSV file. Drafts and failed rows are excluded.
func (s Service) ExportCSV(ctx context.Context) (filename string, data []byte, err error) {
	ctx, span := tracer.Start(ctx, "timesheet:ExportCSV")
	defer span.End()

	rows, err := s.qry.ListCompleted(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load entries")
		return "", nil, err
	}
	if len(rows) == 0 {
		return "", nil, ErrNothingToExport
	}

	var b strings.Builder
	b.WriteString(strings.Join(csvHeader, ","))
	b.WriteString("\r\n")

	for _, row := range rows {
		entry := entryFromRow(row)

		submittedAt := ""
		if !entry.SubmittedAt.IsZero() {
			submittedAt = entry.SubmittedAt.Format("2006-01-02 15:04")
		}

		fields := []string{
			entry.Date,
			entry.TimeIn,
			entry.TimeOut,
			entry.Hours,
			quoteCSV(entry.Project),
			quoteCSV(entry.Tool),
			quoteCSV(entry.ChargeCode),
			quoteCSV(entry.TaskDescription),
			entry.Status,
			submittedAt,
		}
		b.WriteString(strings.Join(fields, ","))
		b.WriteString("\r\n")
	}

	filename = fmt.Sprintf("timesheet_export_%s.csv", timezone.Now().Format("2006-01-02"))
	return filename, []byte(b.String()), nil
}
