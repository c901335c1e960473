package analytics

import (
	"fmt"
	"strings"
	"time"
)

// Period selects the rolling window a snapshot covers.
type Period string

const (
	Period7Days  Period = "7days"
	Period30Days Period = "30days"
	Period90Days Period = "90days"
	Period1Year  Period = "1year"
	// PeriodCustom has no window rule of its own and resolves like Period30Days.
	PeriodCustom Period = "custom"
)

// DefaultPeriod is used when the caller does not pick one.
const DefaultPeriod = Period30Days

// StandardPeriods are the windows recomputed after every source write.
var StandardPeriods = []Period{Period7Days, Period30Days, Period90Days}

// ParsePeriod validates a period selector. An empty value yields DefaultPeriod.
func ParsePeriod(raw string) (Period, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultPeriod, nil
	}
	p := Period(raw)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, raw)
	}
	return p, nil
}

// Valid reports whether p belongs to the closed period set.
func (p Period) Valid() bool {
	switch p {
	case Period7Days, Period30Days, Period90Days, Period1Year, PeriodCustom:
		return true
	}
	return false
}

func (p Period) String() string { return string(p) }

// DateRange is the concrete window used by one computation.
type DateRange struct {
	Period    Period    `json:"period"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// ResolveRange derives the window ending at now for the given period.
func ResolveRange(p Period, now time.Time) DateRange {
	end := now
	var start time.Time
	switch p {
	case Period7Days:
		start = end.AddDate(0, 0, -7)
	case Period90Days:
		start = end.AddDate(0, 0, -90)
	case Period1Year:
		start = end.AddDate(-1, 0, 0)
	default:
		start = end.AddDate(0, 0, -30)
	}
	return DateRange{Period: p, StartDate: start, EndDate: end}
}
