package core

import "time"

const (
	PeriodToday         PeriodKind = "today"
	PeriodCurrentWeek   PeriodKind = "currentWeek"
	PeriodCurrentMonth  PeriodKind = "currentMonth"
	PeriodPreviousMonth PeriodKind = "previousMonth"
	PeriodLast3Months   PeriodKind = "last3Months"
	PeriodYear          PeriodKind = "year"
	PeriodAllTime       PeriodKind = "allTime"
	PeriodCustom        PeriodKind = "custom"
)

type (
	// PeriodKind names a date window used to filter transactions.
	PeriodKind string

	// Period selects a window of time: a named kind, or an explicit
	// [start, end] pair when the kind is custom. It is session state,
	// never persisted.
	Period struct {
		Kind        PeriodKind
		CustomStart time.Time
		CustomEnd   time.Time
	}

	// TimeRange is a closed [Start, End] interval.
	TimeRange struct {
		Start time.Time
		End   time.Time
	}
)

// DefaultPeriod is the window shown before the user picks one.
func DefaultPeriod() Period {
	return Period{Kind: PeriodCurrentMonth}
}

// ParsePeriodKind maps a request parameter to a known kind.
func ParsePeriodKind(s string) (PeriodKind, bool) {
	switch PeriodKind(s) {
	case PeriodToday, PeriodCurrentWeek, PeriodCurrentMonth, PeriodPreviousMonth,
		PeriodLast3Months, PeriodYear, PeriodAllTime, PeriodCustom:
		return PeriodKind(s), true
	default:
		return "", false
	}
}

// Contains reports whether t lies within the closed interval.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Unset reports whether this is a custom period whose dates the user
// has not chosen yet. Callers must treat an unset custom period as
// "no results yet", not as all time.
func (p Period) Unset() bool {
	return p.Kind == PeriodCustom && (p.CustomStart.IsZero() || p.CustomEnd.IsZero())
}

// Range returns the date window for the period evaluated at now, or
// nil when no filtering applies (allTime, and unset custom — see
// Unset for how the latter must be interpreted).
func (p Period) Range(now time.Time) *TimeRange {
	switch p.Kind {
	case PeriodToday:
		return &TimeRange{Start: startOfDay(now), End: now}
	case PeriodCurrentWeek:
		return &TimeRange{Start: startOfWeek(now), End: now}
	case PeriodCurrentMonth:
		return &TimeRange{Start: startOfMonth(now), End: now}
	case PeriodPreviousMonth:
		// Step back one day from the start of the current month, then
		// take that day's month start. The window ends one second
		// before the current month begins.
		cur := startOfMonth(now)
		prev := cur.AddDate(0, 0, -1)
		return &TimeRange{Start: startOfMonth(prev), End: cur.Add(-time.Second)}
	case PeriodLast3Months:
		return &TimeRange{Start: now.AddDate(0, -3, 0), End: now}
	case PeriodYear:
		return &TimeRange{Start: startOfYear(now), End: now}
	case PeriodCustom:
		if p.Unset() {
			return nil
		}
		return &TimeRange{Start: p.CustomStart, End: p.CustomEnd}
	default: // allTime
		return nil
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// startOfWeek treats Monday as the first day of the week.
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return startOfDay(t).AddDate(0, 0, -offset)
}

func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

func startOfYear(t time.Time) time.Time {
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
}
