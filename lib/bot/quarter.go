package bot

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// QuarterDefinition routes a window of calendar dates to one vendor
// form instance. The vendor stands up a fresh form every quarter, so
// the form id rotates while everything else about submission stays
// the same.
type QuarterDefinition struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	FormURL   string `json:"form_url"`
	FormID    string `json:"form_id"`
}

// To add a quarter, append a definition here; routing picks it up
// automatically.
func DefaultQuarters() []QuarterDefinition {
	return []QuarterDefinition{
		{
			ID:        "Q1-2025",
			Name:      "Q1 2025",
			StartDate: "2025-01-01",
			EndDate:   "2025-03-31",
			FormURL:   "https://app.smartsheet.com/b/form/q1-2025-placeholder",
			FormID:    "q1-2025-placeholder",
		},
		{
			ID:        "Q2-2025",
			Name:      "Q2 2025",
			StartDate: "2025-04-01",
			EndDate:   "2025-06-30",
			FormURL:   "https://app.smartsheet.com/b/form/q2-2025-placeholder",
			FormID:    "q2-2025-placeholder",
		},
		{
			ID:        "Q3-2025",
			Name:      "Q3 2025",
			StartDate: "2025-07-01",
			EndDate:   "2025-09-30",
			FormURL:   "https://app.smartsheet.com/b/form/0197cbae7daf72bdb96b3395b500d414",
			FormID:    "0197cbae7daf72bdb96b3395b500d414",
		},
		{
			ID:        "Q4-2025",
			Name:      "Q4 2025",
			StartDate: "2025-10-01",
			EndDate:   "2025-12-31",
			FormURL:   "https://app.smartsheet.com/b/form/0199fabee6497e60abb6030c48d84585",
			FormID:    "0199fabee6497e60abb6030c48d84585",
		},
	}
}

// Router resolves calendar dates to quarter definitions. Construction
// validates the configured set; a router that exists is known to have
// contiguous, non-overlapping ranges and unique form ids, so lookup
// never has to tie-break.
type Router struct {
	quarters []QuarterDefinition
}

func NewRouter(quarters []QuarterDefinition) (*Router, error) {
	if len(quarters) == 0 {
		return nil, fmt.Errorf("no quarters configured")
	}

	formIDs := map[string]string{}
	var prevEnd time.Time
	for i, q := range quarters {
		start, err := time.Parse(dateLayout, q.StartDate)
		if err != nil {
			return nil, fmt.Errorf("quarter %s: bad start date %q: %w", q.ID, q.StartDate, err)
		}
		end, err := time.Parse(dateLayout, q.EndDate)
		if err != nil {
			return nil, fmt.Errorf("quarter %s: bad end date %q: %w", q.ID, q.EndDate, err)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("quarter %s: end %s precedes start %s", q.ID, q.EndDate, q.StartDate)
		}
		if q.FormID == "" {
			return nil, fmt.Errorf("quarter %s: missing form id", q.ID)
		}
		if other, dup := formIDs[q.FormID]; dup {
			return nil, fmt.Errorf("quarter %s: form id %q already used by %s", q.ID, q.FormID, other)
		}
		formIDs[q.FormID] = q.ID

		if i > 0 && !start.Equal(prevEnd.AddDate(0, 0, 1)) {
			return nil, fmt.Errorf(
				"quarter %s must start the day after %s ends (%s), got %s",
				q.ID, quarters[i-1].ID, quarters[i-1].EndDate, q.StartDate,
			)
		}
		prevEnd = end
	}

	return &Router{quarters: quarters}, nil
}

// NewRouterWithOverride builds a router whose single quarter matches
// every date, pointing at a local stand-in endpoint. Test builds only;
// nothing constructs this implicitly.
func NewRouterWithOverride(quarter QuarterDefinition) *Router {
	return &Router{quarters: []QuarterDefinition{quarter}}
}

func (r *Router) Quarters() []QuarterDefinition {
	return r.quarters
}

// ResolveForDate returns the quarter containing the date, or false if
// the date is empty, unparseable, or falls outside every window.
func (r *Router) ResolveForDate(date string) (QuarterDefinition, bool) {
	if date == "" {
		return QuarterDefinition{}, false
	}
	target, err := time.Parse(dateLayout, date)
	if err != nil {
		return QuarterDefinition{}, false
	}

	for _, q := range r.quarters {
		start, err := time.Parse(dateLayout, q.StartDate)
		if err != nil {
			continue
		}
		end, err := time.Parse(dateLayout, q.EndDate)
		if err != nil {
			continue
		}
		if !target.Before(start) && !target.After(end) {
			return q, true
		}
	}
	return QuarterDefinition{}, false
}

// ValidateAvailability returns a user-facing message when the date
// cannot be routed, enumerating the configured windows. Empty string
// means the date is fine.
func (r *Router) ValidateAvailability(date string) string {
	if date == "" {
		return "Please enter a date"
	}
	if _, ok := r.ResolveForDate(date); ok {
		return ""
	}

	windows := make([]string, 0, len(r.quarters))
	for _, q := range r.quarters {
		start := strings.SplitN(q.StartDate, "-", 3)
		end := strings.SplitN(q.EndDate, "-", 3)
		if len(start) != 3 || len(end) != 3 {
			windows = append(windows, q.Name)
			continue
		}
		windows = append(windows, fmt.Sprintf(
			"%s (%s/%s-%s/%s)",
			q.Name, start[1], start[2], end[1], end[2],
		))
	}
	return "Date must be in " + strings.Join(windows, " or ")
}
