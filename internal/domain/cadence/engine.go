package cadence

import (
	"fmt"
	"time"
)

const (
	// DaysPerYear is the mean Gregorian year used for day and week based custom cadences
	DaysPerYear = 365.2425

	// maxSearchMonths bounds the forward search in NextOccurrence
	maxSearchMonths = 36

	// MaxElapsedCycles caps ElapsedMonthlyCycles, roughly fifty years
	MaxElapsedCycles = 600

	cycleKeyLayout = "2006-01"
)

// MonthlyEquivalent normalizes an amount paid on the given recurrence to a monthly amount.
// Misconfigured custom recurrences yield 0.
func MonthlyEquivalent(amount float64, r Recurrence) float64 {
	switch r.Cadence {
	case CadenceWeekly:
		return amount * 52 / 12
	case CadenceBiweekly:
		return amount * 26 / 12
	case CadenceMonthly:
		return amount
	case CadenceQuarterly:
		return amount / 3
	case CadenceYearly:
		return amount / 12
	case CadenceOneTime:
		return 0
	case CadenceCustom:
		if !r.customValid() {
			return 0
		}
		interval := float64(r.CustomInterval)
		switch r.CustomUnit {
		case UnitDays:
			return amount * (DaysPerYear / interval) / 12
		case UnitWeeks:
			return amount * (DaysPerYear / (7 * interval)) / 12
		case UnitMonths:
			return amount / interval
		case UnitYears:
			return amount / (interval * 12)
		}
	}
	return 0
}

// NextOccurrence returns the first occurrence on or after the reference date.
// The boolean is false when the recurrence is exhausted or misconfigured.
func NextOccurrence(r Recurrence, ref time.Time) (time.Time, bool) {
	if r.Anchor.IsZero() {
		return time.Time{}, false
	}
	anchor := DateOf(r.Anchor)
	refDate := DateOf(ref)

	if r.Cadence == CadenceOneTime {
		if anchor.Before(refDate) {
			return time.Time{}, false
		}
		return anchor, true
	}

	if step, ok := r.stepDays(); ok {
		if !anchor.Before(refDate) {
			return anchor, true
		}
		days := int(refDate.Sub(anchor).Hours() / 24)
		steps := (days + step - 1) / step
		return anchor.AddDate(0, 0, steps*step), true
	}

	length, ok := r.cycleMonths()
	if !ok {
		return time.Time{}, false
	}
	day := r.DayOfMonth
	if day < 1 || day > 31 {
		day = anchor.Day()
	}

	anchorMonth := monthIndex(anchor)
	start := max(anchorMonth, monthIndex(refDate))
	for i := 0; i < maxSearchMonths; i++ {
		idx := start + i
		if (idx-anchorMonth)%length != 0 {
			continue
		}
		candidate := dateInMonth(idx, day)
		if !candidate.Before(refDate) {
			return candidate, true
		}
	}
	return time.Time{}, false
}

// ElapsedMonthlyCycles counts whole monthly steps from the anchor that have been
// reached by the reference date, keeping the anchor's day of month.
func ElapsedMonthlyCycles(anchor, ref time.Time) int {
	return ElapsedMonthlyCyclesOnDay(anchor, ref, 0)
}

// ElapsedMonthlyCyclesOnDay is ElapsedMonthlyCycles with an explicit cycle day.
// Every step is computed from the anchor month, so a day clamped in a short month
// is restored in the following one.
func ElapsedMonthlyCyclesOnDay(anchor, ref time.Time, day int) int {
	if anchor.IsZero() {
		return 0
	}
	start := DateOf(anchor)
	refDate := DateOf(ref)
	if day < 1 || day > 31 {
		day = start.Day()
	}

	base := monthIndex(start)
	count := 0
	for count < MaxElapsedCycles {
		if dateInMonth(base+count+1, day).After(refDate) {
			break
		}
		count++
	}
	return count
}

// AddMonthsClamped moves the anchor forward by whole months onto the cycle day,
// clamped to the target month's length.
func AddMonthsClamped(anchor time.Time, months, day int) time.Time {
	start := DateOf(anchor)
	if day < 1 || day > 31 {
		day = start.Day()
	}
	return dateInMonth(monthIndex(start)+months, day)
}

// CycleKey returns the YYYY-MM calendar cycle of the reference instant in UTC
func CycleKey(ref time.Time) string {
	return ref.UTC().Format(cycleKeyLayout)
}

// ParseCycleKey validates a YYYY-MM cycle key
func ParseCycleKey(key string) (time.Time, error) {
	t, err := time.Parse(cycleKeyLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cycle key %q: %w", key, err)
	}
	return t, nil
}

// DateOf truncates an instant to midnight UTC of its calendar day
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

func dateInMonth(idx, day int) time.Time {
	year, month := idx/12, time.Month(idx%12+1)
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
