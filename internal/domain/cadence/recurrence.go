// Package cadence turns recurrence definitions into monthly-equivalent amounts,
// next occurrence dates and elapsed monthly cycle counts. All functions are pure;
// the reference instant is always passed in by the caller.
package cadence

import (
	"errors"
	"fmt"
	"time"
)

// Cadence is the repetition pattern of a recurring amount
type Cadence string

const (
	CadenceWeekly    Cadence = "WEEKLY"
	CadenceBiweekly  Cadence = "BIWEEKLY"
	CadenceMonthly   Cadence = "MONTHLY"
	CadenceQuarterly Cadence = "QUARTERLY"
	CadenceYearly    Cadence = "YEARLY"
	CadenceCustom    Cadence = "CUSTOM"
	CadenceOneTime   Cadence = "ONE_TIME"
)

// Unit is the step unit of a custom cadence
type Unit string

const (
	UnitDays   Unit = "DAYS"
	UnitWeeks  Unit = "WEEKS"
	UnitMonths Unit = "MONTHS"
	UnitYears  Unit = "YEARS"
)

const (
	MinCustomInterval = 1
	MaxCustomInterval = 3650
)

var ErrInvalidRecurrence = errors.New("invalid recurrence")

// Recurrence describes when a recurring amount falls due
type Recurrence struct {
	Cadence        Cadence   `json:"cadence" bson:"cadence"`
	CustomInterval int       `json:"custom_interval,omitempty" bson:"custom_interval,omitempty"`
	CustomUnit     Unit      `json:"custom_unit,omitempty" bson:"custom_unit,omitempty"`
	Anchor         time.Time `json:"anchor" bson:"anchor"`
	DayOfMonth     int       `json:"day_of_month,omitempty" bson:"day_of_month,omitempty"`
}

// Validate is applied where recurrences are written. Read paths never call it and
// tolerate malformed values instead.
func (r Recurrence) Validate() error {
	switch r.Cadence {
	case CadenceWeekly, CadenceBiweekly, CadenceMonthly, CadenceQuarterly, CadenceYearly, CadenceOneTime:
	case CadenceCustom:
		if r.CustomInterval < MinCustomInterval || r.CustomInterval > MaxCustomInterval {
			return fmt.Errorf("%w: custom interval must be between %d and %d", ErrInvalidRecurrence, MinCustomInterval, MaxCustomInterval)
		}
		if !r.CustomUnit.valid() {
			return fmt.Errorf("%w: custom unit %q", ErrInvalidRecurrence, r.CustomUnit)
		}
	default:
		return fmt.Errorf("%w: unknown cadence %q", ErrInvalidRecurrence, r.Cadence)
	}
	if r.DayOfMonth != 0 && (r.DayOfMonth < 1 || r.DayOfMonth > 31) {
		return fmt.Errorf("%w: day of month %d out of range", ErrInvalidRecurrence, r.DayOfMonth)
	}
	if r.Anchor.IsZero() {
		return fmt.Errorf("%w: anchor is required", ErrInvalidRecurrence)
	}
	return nil
}

func (u Unit) valid() bool {
	switch u {
	case UnitDays, UnitWeeks, UnitMonths, UnitYears:
		return true
	}
	return false
}

func (r Recurrence) customValid() bool {
	return r.CustomInterval >= MinCustomInterval && r.CustomInterval <= MaxCustomInterval && r.CustomUnit.valid()
}

// cycleMonths returns the length in months of month-stepped cadences and false
// for day-stepped or one-time cadences.
func (r Recurrence) cycleMonths() (int, bool) {
	switch r.Cadence {
	case CadenceMonthly:
		return 1, true
	case CadenceQuarterly:
		return 3, true
	case CadenceYearly:
		return 12, true
	case CadenceCustom:
		if !r.customValid() {
			return 0, false
		}
		switch r.CustomUnit {
		case UnitMonths:
			return r.CustomInterval, true
		case UnitYears:
			return r.CustomInterval * 12, true
		}
	}
	return 0, false
}

// stepDays returns the length in days of day-stepped cadences
func (r Recurrence) stepDays() (int, bool) {
	switch r.Cadence {
	case CadenceWeekly:
		return 7, true
	case CadenceBiweekly:
		return 14, true
	case CadenceCustom:
		if !r.customValid() {
			return 0, false
		}
		switch r.CustomUnit {
		case UnitDays:
			return r.CustomInterval, true
		case UnitWeeks:
			return r.CustomInterval * 7, true
		}
	}
	return 0, false
}
