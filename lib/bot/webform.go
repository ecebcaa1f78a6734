package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"sheetpilot-backend/lib/browser"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

// TimesheetRow is one unit of submission work. Times are wall-clock
// HH:MM strings; Tool and ChargeCode are optional and empty when
// unset.
type TimesheetRow struct {
	Date            string
	TimeIn          string
	TimeOut         string
	Project         string
	Tool            string
	ChargeCode      string
	TaskDescription string
}

// Verification is the best-effort outcome of post-submit probing.
// Unconfirmed means "we don't know", which is deliberately distinct
// from failure: the vendor's confirmation UI is not contractually
// stable.
type Verification string

const (
	VerificationConfirmed   Verification = "confirmed"
	VerificationUnconfirmed Verification = "unconfirmed"
)

// Filler drives the vendor webform: derived-value computation,
// ordered field filling, the type-ahead dropdown confirmation dance,
// submit fallbacks and best-effort verification.
type Filler struct {
	FormID string
	Delays Delays

	fields map[string]FieldDefinition
	order  []string
}

func NewFiller(formID string) *Filler {
	return &Filler{
		FormID: formID,
		Delays: DefaultDelays(),
		fields: FieldDefinitions(),
		order:  FieldOrder(),
	}
}

func (f *Filler) NavigateToForm(ctx context.Context, page browser.Page, baseURL string) error {
	formURL := fmt.Sprintf("%s/%s", strings.TrimRight(baseURL, "/"), f.FormID)
	slog.InfoContext(ctx, "navigating to form", "url", formURL)

	if err := page.Navigate(ctx, formURL); err != nil {
		return fmt.Errorf("failed to navigate to form: %w", err)
	}
	sleepCtx(ctx, f.Delays.FormSettle)
	return nil
}

// FillEntry fills one timesheet row into the form in the fixed field
// order. A required field without a value or a failed required fill
// aborts the row; optional fields are tolerated either way.
func (f *Filler) FillEntry(ctx context.Context, page browser.Page, row TimesheetRow, index int) error {
	ctx, span := tracer.Start(ctx, "webform:FillEntry")
	defer span.End()

	hours, err := CalculateHours(row.TimeIn, row.TimeOut)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "hours computation failed")
		return err
	}

	values := map[string]string{
		"project_code":     row.Project,
		"date":             row.Date,
		"hours":            hours,
		"task_description": row.TaskDescription,
	}
	if row.Tool != "" {
		values["tool"] = row.Tool
	}
	if row.ChargeCode != "" {
		values["detail_code"] = row.ChargeCode
	}

	slog.InfoContext(ctx, "filling entry", "index", index+1)

	for _, key := range f.order {
		def, ok := f.fields[key]
		if !ok {
			continue
		}
		value, hasValue := values[key]
		if !hasValue {
			if !def.Optional {
				err := fmt.Errorf("required field %q has no value", def.Label)
				span.RecordError(err)
				span.SetStatus(codes.Error, "missing required value")
				return err
			}
			continue
		}

		err := f.fillField(ctx, page, def, value)
		switch {
		case err == nil:
			slog.DebugContext(ctx, "filled field", "label", def.Label)
		case def.Optional:
			slog.WarnContext(ctx, "optional field failed",
				"label", def.Label, "err", err,
			)
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, "required field failed")
			return err
		}

		sleepCtx(ctx, f.Delays.FieldDelay)
	}

	slog.InfoContext(ctx, "entry filled", "index", index+1)
	return nil
}

func (f *Filler) fillField(ctx context.Context, page browser.Page, def FieldDefinition, value string) error {
	sleepCtx(ctx, f.Delays.ElementSettle)

	el, err := page.Find(ctx, def.Locator)
	if err != nil {
		return fmt.Errorf("field %q not found: %w", def.Label, err)
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("failed to focus field %q: %w", def.Label, err)
	}
	if err := el.Type(ctx, value); err != nil {
		return fmt.Errorf("failed to type into field %q: %w", def.Label, err)
	}

	if isDropdownField(def.Label) {
		return f.confirmDropdown(ctx, el, def.Label)
	}
	return nil
}

// confirmDropdown reproduces the exact key sequence the vendor's
// type-ahead single-select requires: let the filtered suggestions
// populate, highlight the first with ArrowDown, confirm with Enter,
// then let the widget close.
func (f *Filler) confirmDropdown(ctx context.Context, el browser.Element, label string) error {
	sleepCtx(ctx, f.Delays.DropdownOpen)

	if err := el.PressKey(ctx, "ArrowDown"); err != nil {
		return fmt.Errorf("dropdown %q: failed to press ArrowDown: %w", label, err)
	}
	sleepCtx(ctx, f.Delays.DropdownSelect)

	if err := el.PressKey(ctx, "Enter"); err != nil {
		return fmt.Errorf("dropdown %q: failed to press Enter: %w", label, err)
	}
	sleepCtx(ctx, f.Delays.DropdownConfirm)
	return nil
}

// CalculateHours derives the fractional hour span between two strict
// HH:MM times, formatted to two decimals. An end before the start is
// an explicit error, never a negative duration.
func CalculateHours(timeIn, timeOut string) (string, error) {
	start, err := parseClock(timeIn)
	if err != nil {
		return "", err
	}
	end, err := parseClock(timeOut)
	if err != nil {
		return "", err
	}
	if end < start {
		return "", fmt.Errorf("time out (%s) is before time in (%s)", timeOut, timeIn)
	}
	return fmt.Sprintf("%.2f", float64(end-start)/60), nil
}

// parseClock converts a strict HH:MM string to minutes past midnight.
func parseClock(s string) (int, error) {
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
	return hours*60 + minutes, nil
}

// Submit walks the fallback selector list until one resolves to a
// clickable button. No selector resolving at all is a hard failure.
func (f *Filler) Submit(ctx context.Context, page browser.Page) error {
	ctx, span := tracer.Start(ctx, "webform:Submit")
	defer span.End()

	for _, selector := range submitButtonFallbacks() {
		button, err := page.Find(ctx, selector)
		if err != nil {
			continue
		}
		slog.InfoContext(ctx, "found submit button", "selector", selector)

		if err := button.Click(ctx); err != nil {
			err = fmt.Errorf("failed to click submit button: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "submit click failed")
			return err
		}
		sleepCtx(ctx, f.Delays.SubmitSettle)
		return nil
	}

	err := fmt.Errorf("submit button not found")
	span.RecordError(err)
	span.SetStatus(codes.Error, "submit button not found")
	return err
}

// Verify probes for submission success in a fixed order: URL
// substrings, then success text fragments, then CSS hooks. Nothing
// matching yields Unconfirmed, which callers must not treat as
// failure.
func (f *Filler) Verify(ctx context.Context, page browser.Page) (Verification, error) {
	ctx, span := tracer.Start(ctx, "webform:Verify")
	defer span.End()

	url, err := page.CurrentURL(ctx)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to read post-submit url: %w", err)
	}
	lowerURL := strings.ToLower(url)
	for _, fragment := range successURLFragments() {
		if strings.Contains(lowerURL, fragment) {
			slog.InfoContext(ctx, "submission confirmed", "via", "url", "fragment", fragment)
			return VerificationConfirmed, nil
		}
	}

	src, err := page.Source(ctx)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to read page source: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to parse page source: %w", err)
	}

	bodyText := strings.ToLower(doc.Text())
	for _, fragment := range successTextFragments() {
		if strings.Contains(bodyText, fragment) {
			slog.InfoContext(ctx, "submission confirmed", "via", "text", "fragment", fragment)
			return VerificationConfirmed, nil
		}
	}

	for _, hook := range successCSSHooks() {
		if doc.Find(hook).Length() > 0 {
			slog.InfoContext(ctx, "submission confirmed", "via", "css", "hook", hook)
			return VerificationConfirmed, nil
		}
	}

	slog.WarnContext(ctx, "could not verify submission", "url", url)
	return VerificationUnconfirmed, nil
}
