package generic

// =============================================================================
// PERIOD - A closed range of calendar days
// =============================================================================

// Period is the closed interval [Start, End]. Both ends are whole days on
// which something happens, so a period that ends on the day another starts
// shares that day with it.
//
// Examples:
//   - A leave booking: Jun 2 - Jun 6 (5 days)
//   - Calendar year 2025: Jan 1 - Dec 31
//   - Work year for a Jan 10 hire: Jan 10 - Jan 9 of the next year
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Validate reports ErrInvalidPeriod when End precedes Start or either end is unset.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() || p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Overlaps uses closed-interval semantics: touching on a single day overlaps.
func (p Period) Overlaps(other Period) bool {
	return !(other.End.Before(p.Start) || other.Start.After(p.End))
}

// DayCount is the inclusive number of days in the period (Jun 2 - Jun 6 = 5).
func (p Period) DayCount() int {
	return DaysBetween(p.Start, p.End) + 1
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// PeriodConfig picks the entitlement window a date belongs to. With an
// anchor (first working day) the window runs anniversary to anniversary;
// the zero value falls back to the calendar year.
type PeriodConfig struct {
	AnchorDate *TimePoint
}

// =============================================================================
// PERIOD CALCULATOR - Determines which period a date falls into
// =============================================================================

// PeriodFor returns the period that contains the given date
func (pc PeriodConfig) PeriodFor(date TimePoint) Period {
	if pc.AnchorDate == nil {
		return Period{Start: StartOfYear(date.Year()), End: EndOfYear(date.Year())}
	}
	return pc.anniversaryPeriod(date)
}

func (pc PeriodConfig) anniversaryPeriod(date TimePoint) Period {
	anchor := *pc.AnchorDate

	start := anniversaryIn(anchor, date.Year())
	// If date is before this year's anniversary, we're in previous period
	if date.Before(start) {
		start = anniversaryIn(anchor, date.Year()-1)
	}

	end := anniversaryIn(anchor, start.Year()+1).AddDays(-1)
	return Period{Start: start, End: end}
}

// anniversaryIn places the anchor's month/day in the given year.
// A Feb 29 anchor lands on Feb 28 in non-leap years.
func anniversaryIn(anchor TimePoint, year int) TimePoint {
	return clampedDate(year, anchor.Month(), anchor.Day())
}

// Anniversary builds an anniversary PeriodConfig anchored at the given day.
func Anniversary(anchor TimePoint) PeriodConfig {
	a := anchor
	return PeriodConfig{AnchorDate: &a}
}
