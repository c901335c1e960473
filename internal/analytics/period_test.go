package analytics

import (
	"errors"
	"testing"
	"time"
)

func TestResolveRange(t *testing.T) {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		period Period
		start  time.Time
	}{
		{Period7Days, time.Date(2024, 3, 24, 12, 0, 0, 0, time.UTC)},
		{Period30Days, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		{Period90Days, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)},
		{Period1Year, time.Date(2023, 3, 31, 12, 0, 0, 0, time.UTC)},
		{PeriodCustom, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		{Period("bogus"), time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		rng := ResolveRange(tc.period, now)
		if !rng.StartDate.Equal(tc.start) {
			t.Fatalf("%s: expected start %s, got %s", tc.period, tc.start, rng.StartDate)
		}
		if !rng.EndDate.Equal(now) {
			t.Fatalf("%s: expected end %s, got %s", tc.period, now, rng.EndDate)
		}
		if rng.Period != tc.period {
			t.Fatalf("%s: period not carried", tc.period)
		}
	}
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("")
	if err != nil || p != DefaultPeriod {
		t.Fatalf("expected default period, got %q %v", p, err)
	}
	p, err = ParsePeriod(" 1year ")
	if err != nil || p != Period1Year {
		t.Fatalf("expected 1year, got %q %v", p, err)
	}
	if _, err := ParsePeriod("weekly"); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}
