package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sheetpilot-backend/lib/browser"
	"sheetpilot-backend/lib/textutil"

	"go.opentelemetry.io/otel/codes"
)

type Credentials struct {
	Email    string
	Password string
}

// StepError identifies which login step aborted the sequence.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("login step %q failed: %s", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

var ErrUnknownValueKey = fmt.Errorf("unknown value key")

// LoginManager interprets the declarative login step sequence against
// a page handle. State is just the current step index; there is no
// branching back.
type LoginManager struct {
	BaseURL string
	Steps   []LoginStep
	Delays  Delays
}

func NewLoginManager(baseURL string) *LoginManager {
	return &LoginManager{
		BaseURL: baseURL,
		Steps:   LoginSteps(),
		Delays:  DefaultDelays(),
	}
}

func (m *LoginManager) Run(ctx context.Context, page browser.Page, creds Credentials) error {
	ctx, span := tracer.Start(ctx, "login:Run")
	defer span.End()

	slog.InfoContext(ctx, "starting login",
		"steps", len(m.Steps),
		"email", textutil.RedactEmail(creds.Email),
	)

	// the vendor login page is the flakiest navigation of the whole
	// run, so it alone gets a retry budget
	for attempt := 1; ; attempt++ {
		err := page.Navigate(ctx, m.BaseURL)
		if err == nil {
			break
		}
		if attempt >= m.Delays.NavRetries {
			span.RecordError(err)
			span.SetStatus(codes.Error, "initial page load failed")
			return fmt.Errorf("initial page load failed after %d attempts: %w", attempt, err)
		}
		slog.WarnContext(ctx, "navigation failed, retrying",
			"attempt", attempt, "max", m.Delays.NavRetries, "err", err,
		)
		sleepCtx(ctx, m.Delays.NavBackoff)
	}

	for i, step := range m.Steps {
		slog.InfoContext(ctx, "executing login step",
			"step", i+1, "total", len(m.Steps), "name", step.Name,
		)

		var err error
		switch step.Action {
		case ActionWait:
			err = m.runWait(ctx, page, step)
		case ActionInput:
			err = m.runInput(ctx, page, step, creds)
		case ActionClick:
			err = m.runClick(ctx, page, step)
		default:
			err = fmt.Errorf("unknown login action %q", step.Action)
		}

		if err != nil {
			// unknown value keys are configuration defects, not page
			// flakiness; optionality never excuses them
			if step.Optional && !errors.Is(err, ErrUnknownValueKey) {
				slog.WarnContext(ctx, "optional login step failed",
					"name", step.Name, "err", err,
				)
			} else {
				stepErr := &StepError{Step: step.Name, Err: err}
				span.RecordError(stepErr)
				span.SetStatus(codes.Error, "required login step failed")
				return stepErr
			}
		}

		sleepCtx(ctx, m.Delays.StepDelay)
	}

	slog.InfoContext(ctx, "login completed")
	return nil
}

// runWait polls for the selector until the element wait deadline.
func (m *LoginManager) runWait(ctx context.Context, page browser.Page, step LoginStep) error {
	deadline := time.Now().Add(m.Delays.ElementWaitTimeout)
	for {
		_, err := page.Find(ctx, step.Selector)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("element %q did not appear within %s: %w",
				step.Selector, m.Delays.ElementWaitTimeout, err)
		}
		sleepCtx(ctx, m.Delays.ElementWaitPoll)
	}
}

func (m *LoginManager) runInput(ctx context.Context, page browser.Page, step LoginStep, creds Credentials) error {
	var value string
	switch step.ValueKey {
	case "email":
		value = creds.Email
	case "password":
		value = creds.Password
	default:
		return fmt.Errorf("%w: %q", ErrUnknownValueKey, step.ValueKey)
	}

	logged := value
	if step.Sensitive {
		logged = "<redacted>"
	}
	slog.DebugContext(ctx, "filling login input",
		"locator", step.Locator, "value", logged,
	)

	sleepCtx(ctx, m.Delays.ElementSettle)

	el, err := page.Find(ctx, step.Locator)
	if err != nil {
		return fmt.Errorf("input field %q not found: %w", step.Locator, err)
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("failed to focus input field %q: %w", step.Locator, err)
	}
	if err := el.Type(ctx, value); err != nil {
		return fmt.Errorf("failed to type into field %q: %w", step.Locator, err)
	}
	return nil
}

func (m *LoginManager) runClick(ctx context.Context, page browser.Page, step LoginStep) error {
	slog.DebugContext(ctx, "clicking element", "locator", step.Locator)

	sleepCtx(ctx, m.Delays.ElementSettle)

	el, err := page.Find(ctx, step.Locator)
	if err != nil {
		return fmt.Errorf("click target %q not found: %w", step.Locator, err)
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("failed to click %q: %w", step.Locator, err)
	}

	if step.ExpectsNavigation {
		sleepCtx(ctx, m.Delays.NavSettle)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
