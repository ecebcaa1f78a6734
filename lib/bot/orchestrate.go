package bot

import (
	"context"
	"fmt"
	"log/slog"

	"sheetpilot-backend/lib/browser"

	"go.opentelemetry.io/otel/codes"
)

// AutomationResult is the per-run outcome handed back to the
// lifecycle manager. Indices refer to the input row slice. It is
// never persisted.
type AutomationResult struct {
	Success       bool
	FilledIndices []int
	Errors        []RowError
	TotalRows     int
	SuccessCount  int
	FailureCount  int
	Verification  Verification
}

type RowError struct {
	Index   int
	Message string
}

type State string

const (
	StateNotStarted State = "not_started"
	StateStarted    State = "started"
	StateRunning    State = "running"
	StateClosed     State = "closed"
)

type FormConfig struct {
	BaseURL string
	FormID  string
}

// Orchestrator owns one browser session for a whole run: one login,
// one form navigation, many row fills. Close is idempotent and must
// run on every exit path so the external browser is always released.
type Orchestrator struct {
	Login  *LoginManager
	Filler *Filler

	browser browser.Browser
	state   State
}

func NewOrchestrator(b browser.Browser, config FormConfig) *Orchestrator {
	return &Orchestrator{
		Login:   NewLoginManager(config.BaseURL),
		Filler:  NewFiller(config.FormID),
		browser: b,
		state:   StateNotStarted,
	}
}

func (o *Orchestrator) State() State {
	return o.state
}

func (o *Orchestrator) Start(ctx context.Context) error {
	if o.state != StateNotStarted {
		return fmt.Errorf("orchestrator already %s", o.state)
	}
	if o.browser == nil {
		return fmt.Errorf("no browser configured")
	}
	o.state = StateStarted
	return nil
}

func (o *Orchestrator) Close(ctx context.Context) error {
	if o.state == StateClosed {
		return nil
	}
	o.state = StateClosed
	return o.browser.Close(ctx)
}

func allRowsFailed(total int, message string) AutomationResult {
	errs := make([]RowError, total)
	for i := range errs {
		errs[i] = RowError{Index: i, Message: message}
	}
	return AutomationResult{
		Success:      false,
		Errors:       errs,
		TotalRows:    total,
		FailureCount: total,
	}
}

// RunAutomation sequences login, form navigation and per-row fills,
// then submits once and reconciles. Row fill failures are isolated;
// login or navigation failures poison every row with the same root
// cause. A failed submit click demotes every tentatively-filled row,
// because a fill without a submit has no durable effect vendor-side.
func (o *Orchestrator) RunAutomation(ctx context.Context, rows []TimesheetRow, creds Credentials) (AutomationResult, error) {
	ctx, span := tracer.Start(ctx, "orchestrator:RunAutomation")
	defer span.End()

	if o.state != StateStarted {
		return AutomationResult{}, fmt.Errorf("browser not started")
	}
	o.state = StateRunning

	total := len(rows)
	slog.InfoContext(ctx, "starting automation", "rows", total)

	page, err := o.browser.NewPage(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open page")
		return AutomationResult{}, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close(ctx)

	if err := o.Login.Run(ctx, page, creds); err != nil {
		message := fmt.Sprintf("authentication failed: %s", err)
		slog.ErrorContext(ctx, "authentication failed", "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "authentication failed")
		return allRowsFailed(total, message), nil
	}

	if err := o.Filler.NavigateToForm(ctx, page, o.Login.BaseURL); err != nil {
		message := fmt.Sprintf("failed to navigate to form: %s", err)
		slog.ErrorContext(ctx, "form navigation failed", "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "form navigation failed")
		return allRowsFailed(total, message), nil
	}

	var filled []int
	var rowErrors []RowError
	for idx, row := range rows {
		slog.InfoContext(ctx, "processing row", "row", idx+1, "total", total)

		err := o.Filler.FillEntry(ctx, page, row, idx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to fill row", "row", idx+1, "err", err)
			rowErrors = append(rowErrors, RowError{
				Index:   idx,
				Message: fmt.Sprintf("failed to fill row: %s", err),
			})
			continue
		}
		filled = append(filled, idx)
	}

	verification := Verification("")
	if len(filled) > 0 {
		err := o.Filler.Submit(ctx, page)
		if err != nil {
			// nothing was durably recorded vendor-side without the
			// submit click, so every tentative fill is void
			slog.ErrorContext(ctx, "failed to submit form", "err", err)
			span.RecordError(err)
			message := fmt.Sprintf("failed to submit form: %s", err)
			for _, idx := range filled {
				rowErrors = append(rowErrors, RowError{Index: idx, Message: message})
			}
			filled = nil
		} else {
			verification, err = o.Filler.Verify(ctx, page)
			if err != nil {
				slog.WarnContext(ctx, "verification errored", "err", err)
				verification = VerificationUnconfirmed
			}
		}
	}

	result := AutomationResult{
		Success:       len(filled) > 0,
		FilledIndices: filled,
		Errors:        rowErrors,
		TotalRows:     total,
		SuccessCount:  len(filled),
		FailureCount:  len(rowErrors),
		Verification:  verification,
	}
	slog.InfoContext(ctx, "automation complete",
		"succeeded", result.SuccessCount,
		"failed", result.FailureCount,
		"verification", verification,
	)
	return result, nil
}

// RunTimesheet is the high-level entrypoint: it owns the orchestrator
// lifecycle and guarantees the browser is released no matter how the
// run ends.
func RunTimesheet(ctx context.Context, b browser.Browser, rows []TimesheetRow, creds Credentials, config FormConfig) (AutomationResult, error) {
	if len(rows) == 0 {
		return AutomationResult{Success: true}, nil
	}

	o := NewOrchestrator(b, config)
	if err := o.Start(ctx); err != nil {
		return AutomationResult{}, fmt.Errorf("failed to start automation: %w", err)
	}
	defer o.Close(ctx)

	return o.RunAutomation(ctx, rows, creds)
}
