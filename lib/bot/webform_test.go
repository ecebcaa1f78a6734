package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateHours(t *testing.T) {
	for _, test := range []struct {
		timeIn  string
		timeOut string
		want    string
	}{
		{"09:00", "17:30", "8.50"},
		{"09:00", "09:15", "0.25"},
		{"13:00", "13:00", "0.00"},
		{"00:00", "23:45", "23.75"},
		{"08:30", "12:00", "3.50"},
	} {
		got, err := CalculateHours(test.timeIn, test.timeOut)
		require.NoError(t, err, "%s-%s", test.timeIn, test.timeOut)
		require.Equal(t, test.want, got)
	}
}

func TestCalculateHoursRejectsBadInput(t *testing.T) {
	_, err := CalculateHours("17:00", "09:00")
	require.ErrorContains(t, err, "before")

	for _, bad := range []string{"", "9", "24:00", "09:60", "nine:00", "09:00:00"} {
		_, err := CalculateHours(bad, "17:00")
		require.Error(t, err, "time in %q", bad)
		_, err = CalculateHours("09:00", bad)
		require.Error(t, err, "time out %q", bad)
	}
}

func sampleRow() TimesheetRow {
	return TimesheetRow{
		Date:            "07/15/2025",
		TimeIn:          "09:00",
		TimeOut:         "17:30",
		Project:         "PRJ-001",
		Tool:            "Terminal",
		ChargeCode:      "CC-42",
		TaskDescription: "Refactored ingest pipeline",
	}
}

func TestFillEntryFillsFieldsInOrder(t *testing.T) {
	cleanup := newTestTelemetry(t)
	defer cleanup()

	page := newFakePage(formSelectors()...)
	filler := NewFiller("form123")
	filler.Delays = instantDelays()

	err := filler.FillEntry(context.Background(), page, sampleRow(), 0)
	require.NoError(t, err)

	require.Equal(t, []string{
		"click input[aria-label='Project']",
		"type input[aria-label='Project'] PRJ-001",
		"key input[aria-label='Project'] ArrowDown",
		"key input[aria-label='Project'] Enter",
		"click input[placeholder='mm/dd/yyyy']",
		"type input[placeholder='mm/dd/yyyy'] 07/15/2025",
		"click input[aria-label='Hours']",
		"type input[aria-label='Hours'] 8.50",
		"click input[aria-label*='Tool']",
		"type input[aria-label*='Tool'] Terminal",
		"key input[aria-label*='Tool'] ArrowDown",
		"key input[aria-label*='Tool'] Enter",
		"click textarea[aria-label='Task Description']",
		"type textarea[aria-label='Task Description'] Refactored ingest pipeline",
		"click input[aria-label='Detail Charge Code']",
		"type input[aria-label='Detail Charge Code'] CC-42",
		"key input[aria-label='Detail Charge Code'] ArrowDown",
		"key input[aria-label='Detail Charge Code'] Enter",
	}, page.actions)
}

func TestFillEntrySkipsEmptyOptionalFields(t *testing.T) {
	cleanup := newTestTelemetry(t)
	defer cleanup()

	page := newFakePage(formSelectors()...)
	filler := NewFiller("form123")
	filler.Delays = instantDelays()

	row := sampleRow()
	row.Tool = ""
	row.ChargeCode = ""

	err := filler.FillEntry(context.Background(), page, row, 0)
	require.NoError(t, err)
	require.NotContains(t, page.actions, "click input[aria-label*='Tool']")
	require.NotContains(t, page.actions, "click input[aria-label='Detail Charge Code']")
}

func TestFillEntryToleratesOptionalFieldFailure(t *testing.T) {
	cleanup := newTestTelemetry(t)
	defer cleanup()

	page := newFakePage(formSelectors()...)
	page.removeElement("input[aria-label*='Tool']")
	filler := NewFiller("form123")
	filler.Delays = instantDelays()

	err := filler.FillEntry(context.Background(), page, sampleRow(), 0)
	require.NoError(t, err)
	require.Contains(t, page.actions, "type textarea[aria-label='Task Description'] Refactored ingest pipeline")
}

func TestFillEntryAbortsOnRequiredFieldFailure(t *testing.T) {
	cleanup := newTestTelemetry(t)
	defer cleanup()

	page := newFakePage(formSelectors()...)
	page.removeElement("input[aria-label='Hours']")
	filler := NewFiller("form123")
	filler.Delays = instantDelays()

	err := filler.FillEntry(context.Background(), page, sampleRow(), 0)
	require.ErrorContains(t, err, `"Hours" not found`)
}

func TestFillEntryRejectsBadTimes(t *testing.T) {
	cleanup := newTestTelemetry(t)
	defer cleanup()

	page := newFakePage(formSelectors()...)
	filler := NewFiller("form123")
	filler.Delays = instantDelays()

	row := sampleRow()
	row.TimeOut = "08:00"

	err := filler.FillEntry(context.Background(), page, row, 0)
	require.ErrorContains(t, err, "before")
	require.Empty(t, page.actions)
}

func TestNavigateToForm(t *testing.T) {
	page := newFakePage()
	filler := NewFiller("abc123")
	filler.Delays = instantDelays()

	err := filler.NavigateToForm(context.Background(), page, "https://app.smartsheet.com/b/form/")
	require.NoError(t, err)
	require.Equal(t, []string{"https://app.smartsheet.com/b/form/abc123"}, page.navigations)
}

func TestSubmitWalksFallbacks(t *testing.T) {
	cleanup := newTestTelemetry(t)
	defer cleanup()

	page := newFakePage("button.submit")
	filler := NewFiller("form123")
	filler.Delays = instantDelays()

	err := filler.Submit(context.Background(), page)
	require.NoError(t, err)
	require.Equal(t, []string{"click button.submit"}, page.actions)
}

func TestSubmitFailsWhenNoButtonResolves(t *testing.T) {
	cleanup := newTestTelemetry(t)
	defer cleanup()

	page := newFakePage("input[aria-label='Project']")
	filler := NewFiller("form123")
	filler.Delays = instantDelays()

	err := filler.Submit(context.Background(), page)
	require.ErrorContains(t, err, "submit button not found")
}

func TestSubmitClickFailureIsFatal(t *testing.T) {
	cleanup := newTestTelemetry(t)
	defer cleanup()

	page := newFakePage()
	page.addElement("input[type='submit']").clickErr = context.DeadlineExceeded
	filler := NewFiller("form123")
	filler.Delays = instantDelays()

	err := filler.Submit(context.Background(), page)
	require.ErrorContains(t, err, "failed to click submit button")
}

func TestVerify(t *testing.T) {
	cleanup := newTestTelemetry(t)
	defer cleanup()

	filler := NewFiller("form123")
	filler.Delays = instantDelays()
	ctx := context.Background()

	page := newFakePage()
	page.url = "https://app.smartsheet.com/b/form/confirmation?x=1"
	v, err := filler.Verify(ctx, page)
	require.NoError(t, err)
	require.Equal(t, VerificationConfirmed, v)

	page = newFakePage()
	page.url = "https://app.smartsheet.com/b/form/abc"
	page.source = "<html><body><p>Thank You For Your Submission</p></body></html>"
	v, err = filler.Verify(ctx, page)
	require.NoError(t, err)
	require.Equal(t, VerificationConfirmed, v)

	page = newFakePage()
	page.url = "https://app.smartsheet.com/b/form/abc"
	page.source = "<html><body><div class=\"success-message\">Done</div></body></html>"
	v, err = filler.Verify(ctx, page)
	require.NoError(t, err)
	require.Equal(t, VerificationConfirmed, v)

	page = newFakePage()
	page.url = "https://app.smartsheet.com/b/form/abc"
	page.source = "<html><body><p>Fill out the form below.</p></body></html>"
	v, err = filler.Verify(ctx, page)
	require.NoError(t, err)
	require.Equal(t, VerificationUnconfirmed, v)
}
