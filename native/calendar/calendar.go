package calendar

import (
	"errors"
	"fmt"
	"time"
)

// ErrStartDateLaterThanEndDate is returned when a period count is requested
// for an inverted date range.
var ErrStartDateLaterThanEndDate = errors.New("calendar: start date later than end date")

// PeriodDuration identifies the pay period cadence of a pool. Periods are
// aligned to UTC calendar boundaries, not fixed 30-day windows.
type PeriodDuration uint8

const (
	// Monthly periods begin on the first day of every calendar month.
	Monthly PeriodDuration = iota
	// Quarterly periods begin on the first day of January, April, July and
	// October.
	Quarterly
	// SemiAnnually periods begin on the first day of January and July.
	SemiAnnually
)

// String implements fmt.Stringer.
func (d PeriodDuration) String() string {
	switch d {
	case Monthly:
		return "monthly"
	case Quarterly:
		return "quarterly"
	case SemiAnnually:
		return "semi-annually"
	default:
		return fmt.Sprintf("period(%d)", uint8(d))
	}
}

// ParsePeriodDuration converts the configuration spelling of a cadence into
// its PeriodDuration value.
func ParsePeriodDuration(s string) (PeriodDuration, error) {
	switch s {
	case "monthly":
		return Monthly, nil
	case "quarterly":
		return Quarterly, nil
	case "semi-annually", "semiannually":
		return SemiAnnually, nil
	default:
		return Monthly, fmt.Errorf("calendar: unknown period duration %q", s)
	}
}

// Months returns the number of calendar months covered by one period.
func (d PeriodDuration) Months() int {
	switch d {
	case Quarterly:
		return 3
	case SemiAnnually:
		return 6
	default:
		return 1
	}
}

// NominalDays returns the nominal day count of a full period as used in
// yield-style computations: 30 for monthly, 90 for quarterly and 180 for
// semi-annual periods. Real boundaries always follow the calendar.
func (d PeriodDuration) NominalDays() int {
	return d.Months() * 30
}

// StartOfPeriod returns the UTC calendar boundary that opens the period
// containing ts.
func StartOfPeriod(d PeriodDuration, ts time.Time) time.Time {
	ts = ts.UTC()
	year := ts.Year()
	month := int(ts.Month())
	step := d.Months()
	alignedMonth := ((month-1)/step)*step + 1
	return time.Date(year, time.Month(alignedMonth), 1, 0, 0, 0, 0, time.UTC)
}

// StartDateOfNextPeriod returns the boundary that opens the period following
// the one containing ts.
func StartDateOfNextPeriod(d PeriodDuration, ts time.Time) time.Time {
	start := StartOfPeriod(d, ts)
	return start.AddDate(0, d.Months(), 0)
}

// NumPeriodsPassed reports how many period boundaries lie between start and
// end. Two timestamps inside the same period yield zero. The count includes
// the partial period at the beginning of the range, matching how settlement
// treats a mid-period activation.
func NumPeriodsPassed(d PeriodDuration, start, end time.Time) (int, error) {
	start = start.UTC()
	end = end.UTC()
	if start.After(end) {
		return 0, ErrStartDateLaterThanEndDate
	}
	from := StartOfPeriod(d, start)
	to := StartOfPeriod(d, end)
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	return months / d.Months(), nil
}

// DaysRemainingInPeriod counts the whole UTC days from ts until the next
// period boundary. The day containing ts is counted as remaining.
func DaysRemainingInPeriod(d PeriodDuration, ts time.Time) int {
	ts = ts.UTC()
	dayStart := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	next := StartDateOfNextPeriod(d, ts)
	return int(next.Sub(dayStart) / (24 * time.Hour))
}

// MaturityDate advances ts by numPeriods full periods while preserving the
// day of month. A day that does not exist in the target month (e.g. the 31st
// of a 30-day month) rolls forward to the first day of the following month.
func MaturityDate(d PeriodDuration, numPeriods int, ts time.Time) time.Time {
	ts = ts.UTC()
	return addMonthsClamped(ts, numPeriods*d.Months())
}

func addMonthsClamped(ts time.Time, months int) time.Time {
	year := ts.Year()
	month := int(ts.Month()) + months
	year += (month - 1) / 12
	month = (month-1)%12 + 1
	if month <= 0 {
		month += 12
		year--
	}
	day := ts.Day()
	if day > daysInMonth(year, time.Month(month)) {
		// Roll to the first of the following month rather than clamping to
		// the last valid day.
		month++
		if month > 12 {
			month = 1
			year++
		}
		day = 1
	}
	return time.Date(year, time.Month(month), day,
		ts.Hour(), ts.Minute(), ts.Second(), ts.Nanosecond(), time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
