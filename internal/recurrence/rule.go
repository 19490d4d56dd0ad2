// Package recurrence expands recurring events into the concrete occurrences that
// fall inside a query window.
package recurrence

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/fazamuttaqien/eventcal/internal/model"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
)

// Rule is a recurrence pattern attached to a base event. The concrete types are
// Daily, Weekly, Monthly, Yearly, Lunar and Unknown.
type Rule interface {
	Frequency() enum.Frequency
	Validate() error
	schedule() schedule
}

// Termination bounds a rule. At most one of Count and Until is set; with neither
// the rule is unbounded and only the query window limits it.
type Termination struct {
	// Count is the total number of occurrences including the base one. Zero means unset.
	Count int
	Until *time.Time
}

func (t Termination) validate() error {
	if t.Count < 0 {
		return errors.New("count must be positive")
	}
	if t.Count > 0 && t.Until != nil {
		return errors.New("count and until are mutually exclusive")
	}
	return nil
}

type schedule struct {
	interval int
	term     Termination
}

type Daily struct {
	Interval int
	Termination
}

type Weekly struct {
	Interval int
	Termination
}

// Monthly repeats on the base event's day of month unless refined. ByWeekday with
// BySetPos selects e.g. the second Tuesday; ByMonthDay selects a fixed day
// (negative counts from the end of the month).
type Monthly struct {
	Interval   int
	ByWeekday  []enum.DayOfWeek
	ByMonthDay int
	BySetPos   int
	Termination
}

type Yearly struct {
	Interval int
	Termination
}

// Lunar repeats every Interval synodic months from the base start. Phase names the
// lunar phase the base start was scheduled on.
type Lunar struct {
	Interval int
	Phase    enum.LunarPhase
	Termination
}

// Unknown holds a stored rule whose frequency is not recognized. It never
// produces occurrences.
type Unknown struct {
	Raw string
}

func (Daily) Frequency() enum.Frequency   { return enum.FrequencyDaily }
func (Weekly) Frequency() enum.Frequency  { return enum.FrequencyWeekly }
func (Monthly) Frequency() enum.Frequency { return enum.FrequencyMonthly }
func (Yearly) Frequency() enum.Frequency  { return enum.FrequencyYearly }
func (Lunar) Frequency() enum.Frequency   { return enum.FrequencyLunar }
func (u Unknown) Frequency() enum.Frequency {
	return enum.Frequency(u.Raw)
}

func (r Daily) schedule() schedule   { return schedule{r.Interval, r.Termination} }
func (r Weekly) schedule() schedule  { return schedule{r.Interval, r.Termination} }
func (r Monthly) schedule() schedule { return schedule{r.Interval, r.Termination} }
func (r Yearly) schedule() schedule  { return schedule{r.Interval, r.Termination} }
func (r Lunar) schedule() schedule   { return schedule{r.Interval, r.Termination} }
func (Unknown) schedule() schedule   { return schedule{} }

func validateInterval(interval int) error {
	if interval < 1 {
		return errors.New("interval must be at least 1")
	}
	return nil
}

func (r Daily) Validate() error {
	return errors.Join(validateInterval(r.Interval), r.Termination.validate())
}

func (r Weekly) Validate() error {
	return errors.Join(validateInterval(r.Interval), r.Termination.validate())
}

func (r Yearly) Validate() error {
	return errors.Join(validateInterval(r.Interval), r.Termination.validate())
}

func (r Monthly) Validate() error {
	errs := []error{validateInterval(r.Interval), r.Termination.validate()}
	for _, d := range r.ByWeekday {
		if !slices.Contains(enum.AllDayOfWeek(), d) {
			errs = append(errs, fmt.Errorf("invalid weekday %q", d))
		}
	}
	if r.ByMonthDay != 0 && (r.ByMonthDay < -31 || r.ByMonthDay > 31) {
		errs = append(errs, errors.New("byMonthDay must be between -31 and 31"))
	}
	if r.BySetPos != 0 {
		if r.BySetPos < -5 || r.BySetPos > 5 {
			errs = append(errs, errors.New("bySetPos must be between -5 and 5"))
		}
		if len(r.ByWeekday) == 0 {
			errs = append(errs, errors.New("bySetPos requires byWeekday"))
		}
	}
	return errors.Join(errs...)
}

func (r Lunar) Validate() error {
	errs := []error{validateInterval(r.Interval), r.Termination.validate()}
	if r.Phase != "" && !slices.Contains(enum.AllLunarPhase(), r.Phase) {
		errs = append(errs, fmt.Errorf("invalid lunar phase %q", r.Phase))
	}
	return errors.Join(errs...)
}

func (u Unknown) Validate() error {
	return fmt.Errorf("unrecognized frequency %q", u.Raw)
}

// refined reports whether a monthly rule needs calendar pattern matching rather
// than a plain day-of-month shift.
func (r Monthly) refined() bool {
	return len(r.ByWeekday) > 0 || r.ByMonthDay != 0
}

// FromRow converts a stored rule row into its typed form. Rows with an
// unrecognized frequency become Unknown so expansion can skip them.
func FromRow(row model.RecurrenceRule) Rule {
	interval := row.Interval
	if interval == 0 {
		interval = 1
	}
	term := Termination{Until: row.Until}
	if row.Count != nil {
		term.Count = *row.Count
	}

	switch enum.Frequency(strings.ToUpper(row.Frequency)) {
	case enum.FrequencyDaily:
		return Daily{Interval: interval, Termination: term}
	case enum.FrequencyWeekly:
		return Weekly{Interval: interval, Termination: term}
	case enum.FrequencyMonthly:
		m := Monthly{Interval: interval, Termination: term}
		for _, d := range row.ByWeekday {
			m.ByWeekday = append(m.ByWeekday, enum.DayOfWeek(strings.ToUpper(d)))
		}
		if row.ByMonthDay != nil {
			m.ByMonthDay = *row.ByMonthDay
		}
		if row.BySetPos != nil {
			m.BySetPos = *row.BySetPos
		}
		return m
	case enum.FrequencyYearly:
		return Yearly{Interval: interval, Termination: term}
	case enum.FrequencyLunar:
		l := Lunar{Interval: interval, Termination: term}
		if row.LunarPhase != nil {
			l.Phase = *row.LunarPhase
		}
		return l
	default:
		return Unknown{Raw: row.Frequency}
	}
}

// ToRow converts a typed rule into its storage shape for the given event.
func ToRow(eventID string, r Rule) model.RecurrenceRule {
	s := r.schedule()
	row := model.RecurrenceRule{
		EventID:   eventID,
		Frequency: r.Frequency().String(),
		Interval:  s.interval,
		Until:     s.term.Until,
	}
	if s.term.Count > 0 {
		count := s.term.Count
		row.Count = &count
	}

	switch v := r.(type) {
	case Monthly:
		for _, d := range v.ByWeekday {
			row.ByWeekday = append(row.ByWeekday, d.String())
		}
		if v.ByMonthDay != 0 {
			day := v.ByMonthDay
			row.ByMonthDay = &day
		}
		if v.BySetPos != 0 {
			pos := v.BySetPos
			row.BySetPos = &pos
		}
	case Lunar:
		if v.Phase != "" {
			phase := v.Phase
			row.LunarPhase = &phase
		}
	}
	return row
}
