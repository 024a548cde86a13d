package recurring

import (
	"time"

	"ledger/internal/shared/period"
)

// Frequency is how often a template produces an occurrence.
type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnual    Frequency = "annual"
)

// Stepper computes the occurrence that follows current. anchor is the
// template's start date; month-based steppers keep its day of month.
type Stepper interface {
	Next(anchor, current time.Time) time.Time
}

type weeklyStepper struct{}

func (weeklyStepper) Next(_, current time.Time) time.Time {
	return period.Day(current).AddDate(0, 0, 7)
}

type monthStepper struct {
	months int
}

func (s monthStepper) Next(anchor, current time.Time) time.Time {
	return period.AddMonths(current, s.months, anchor.Day())
}

var steppers = map[Frequency]Stepper{
	FrequencyWeekly:    weeklyStepper{},
	FrequencyMonthly:   monthStepper{months: 1},
	FrequencyQuarterly: monthStepper{months: 3},
	FrequencyAnnual:    monthStepper{months: 12},
}

// IsValid reports whether f is a supported frequency.
func (f Frequency) IsValid() bool {
	_, ok := steppers[f]
	return ok
}

// Next returns the occurrence after current. It panics on an invalid frequency;
// templates are validated on creation.
func (f Frequency) Next(anchor, current time.Time) time.Time {
	return steppers[f].Next(anchor, current)
}
