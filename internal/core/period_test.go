package core

import (
	"testing"
	"time"
)

func TestPeriodRangePreviousMonthLeapYear(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	window := Period{Kind: PeriodPreviousMonth}.Range(now)
	if window == nil {
		t.Fatalf("expected a bounded range")
	}

	wantStart := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)
	if !window.Start.Equal(wantStart) {
		t.Fatalf("start: expected %s, got %s", wantStart, window.Start)
	}
	if !window.End.Equal(wantEnd) {
		t.Fatalf("end: expected %s, got %s", wantEnd, window.End)
	}

	// Feb 29 belongs to the window, Mar 1 does not
	if !window.Contains(time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected 2024-02-29 inside the window")
	}
	if window.Contains(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected 2024-03-01 outside the window")
	}
}

func TestPeriodRangeNamedWindows(t *testing.T) {
	// A Friday mid-month, mid-year
	now := time.Date(2024, 6, 14, 15, 45, 0, 0, time.UTC)

	cases := []struct {
		kind  PeriodKind
		start time.Time
	}{
		{PeriodToday, time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)},
		{PeriodCurrentWeek, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)}, // Monday
		{PeriodCurrentMonth, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{PeriodLast3Months, time.Date(2024, 3, 14, 15, 45, 0, 0, time.UTC)},
		{PeriodYear, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		window := Period{Kind: tc.kind}.Range(now)
		if window == nil {
			t.Fatalf("%s: expected a bounded range", tc.kind)
		}
		if !window.Start.Equal(tc.start) {
			t.Fatalf("%s: start expected %s, got %s", tc.kind, tc.start, window.Start)
		}
		if !window.End.Equal(now) {
			t.Fatalf("%s: end expected now, got %s", tc.kind, window.End)
		}
	}
}

func TestPeriodRangeUnbounded(t *testing.T) {
	now := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)

	if window := (Period{Kind: PeriodAllTime}).Range(now); window != nil {
		t.Fatalf("allTime: expected nil range, got %+v", window)
	}

	// Custom without chosen dates returns nil too, but is flagged unset
	unset := Period{Kind: PeriodCustom}
	if window := unset.Range(now); window != nil {
		t.Fatalf("unset custom: expected nil range, got %+v", window)
	}
	if !unset.Unset() {
		t.Fatalf("expected unset custom period to report Unset")
	}
	if (Period{Kind: PeriodAllTime}).Unset() {
		t.Fatalf("allTime must not report Unset")
	}
}

func TestPeriodRangeCustom(t *testing.T) {
	now := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	p := Period{
		Kind:        PeriodCustom,
		CustomStart: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		CustomEnd:   time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC),
	}
	window := p.Range(now)
	if window == nil {
		t.Fatalf("expected a bounded range")
	}
	if !window.Start.Equal(p.CustomStart) || !window.End.Equal(p.CustomEnd) {
		t.Fatalf("expected [%s, %s], got [%s, %s]", p.CustomStart, p.CustomEnd, window.Start, window.End)
	}
}

func TestParsePeriodKind(t *testing.T) {
	if kind, ok := ParsePeriodKind("previousMonth"); !ok || kind != PeriodPreviousMonth {
		t.Fatalf("expected previousMonth, got %q (ok=%v)", kind, ok)
	}
	if _, ok := ParsePeriodKind("fortnight"); ok {
		t.Fatalf("expected unknown kind to be rejected")
	}
}
