package bot

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveForDate(t *testing.T) {
	router, err := NewRouter(DefaultQuarters())
	require.NoError(t, err)

	q, ok := router.ResolveForDate("2025-09-30")
	require.True(t, ok)
	require.Equal(t, "Q3-2025", q.ID)
	require.Equal(t, "0197cbae7daf72bdb96b3395b500d414", q.FormID)

	q, ok = router.ResolveForDate("2025-10-01")
	require.True(t, ok)
	require.Equal(t, "Q4-2025", q.ID)

	q, ok = router.ResolveForDate("2025-01-01")
	require.True(t, ok)
	require.Equal(t, "Q1-2025", q.ID)

	_, ok = router.ResolveForDate("2024-12-31")
	require.False(t, ok)
	_, ok = router.ResolveForDate("2026-01-01")
	require.False(t, ok)
	_, ok = router.ResolveForDate("")
	require.False(t, ok)
	_, ok = router.ResolveForDate("not-a-date")
	require.False(t, ok)
	_, ok = router.ResolveForDate("09/30/2025")
	require.False(t, ok)
}

func TestValidateAvailability(t *testing.T) {
	router, err := NewRouter(DefaultQuarters())
	require.NoError(t, err)

	require.Equal(t, "Please enter a date", router.ValidateAvailability(""))
	require.Equal(t, "", router.ValidateAvailability("2025-07-15"))

	msg := router.ValidateAvailability("2024-06-01")
	require.Contains(t, msg, "Date must be in")
	require.Contains(t, msg, "Q1 2025 (01/01-03/31)")
	require.Contains(t, msg, "Q4 2025 (10/01-12/31)")
}

func TestNewRouterRejectsBadConfigurations(t *testing.T) {
	_, err := NewRouter(nil)
	require.Error(t, err)

	overlapping := DefaultQuarters()
	overlapping[1].StartDate = "2025-03-31"
	_, err = NewRouter(overlapping)
	require.ErrorContains(t, err, "must start the day after")

	gapped := DefaultQuarters()
	gapped[2].StartDate = "2025-07-02"
	_, err = NewRouter(gapped)
	require.ErrorContains(t, err, "must start the day after")

	duplicated := DefaultQuarters()
	duplicated[3].FormID = duplicated[2].FormID
	_, err = NewRouter(duplicated)
	require.ErrorContains(t, err, "already used")

	garbled := DefaultQuarters()
	garbled[0].EndDate = "March 31"
	_, err = NewRouter(garbled)
	require.ErrorContains(t, err, "bad end date")

	inverted := DefaultQuarters()
	inverted[0].StartDate = "2025-03-31"
	inverted[0].EndDate = "2025-01-01"
	_, err = NewRouter(inverted)
	require.ErrorContains(t, err, "precedes")
}

func TestRouterWithOverride(t *testing.T) {
	router := NewRouterWithOverride(QuarterDefinition{
		ID:        "MOCK",
		Name:      "Mock Quarter",
		StartDate: "2000-01-01",
		EndDate:   "2099-12-31",
		FormURL:   "http://localhost:8398/form/mock",
		FormID:    "mock",
	})

	q, ok := router.ResolveForDate("2025-08-14")
	require.True(t, ok)
	require.Equal(t, "MOCK", q.ID)

	q, ok = router.ResolveForDate("2031-02-02")
	require.True(t, ok)
	require.Equal(t, "mock", q.FormID)
}

func TestDefaultStepsValidate(t *testing.T) {
	require.NoError(t, ValidateSteps(LoginSteps()))

	bad := LoginSteps()
	bad[0].Selector = ""
	require.ErrorContains(t, ValidateSteps(bad), "no selector")

	bad = LoginSteps()
	bad[1].ValueKey = "pin"
	require.ErrorContains(t, ValidateSteps(bad), "unknown value key")

	bad = LoginSteps()
	bad[2].Action = "hover"
	require.ErrorContains(t, ValidateSteps(bad), "unknown action")
}
