package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/fazamuttaqien/eventcal/internal/model"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
	"github.com/teambition/rrule-go"
)

var weekdayToRRule = map[enum.DayOfWeek]rrule.Weekday{
	enum.Monday:    rrule.MO,
	enum.Tuesday:   rrule.TU,
	enum.Wednesday: rrule.WE,
	enum.Thursday:  rrule.TH,
	enum.Friday:    rrule.FR,
	enum.Saturday:  rrule.SA,
	enum.Sunday:    rrule.SU,
}

// rrule-go numbers weekdays from Monday.
var rruleDayToWeekday = []enum.DayOfWeek{
	enum.Monday, enum.Tuesday, enum.Wednesday, enum.Thursday,
	enum.Friday, enum.Saturday, enum.Sunday,
}

// refinedMonthly expands a monthly rule with weekday/month-day refinements by
// calendar pattern matching. Index 0 stays reserved for the base occurrence.
func refinedMonthly(base model.Event, ordinal int, m Monthly, w Window, yield func(Occurrence) bool) {
	bs := base.StartDate.In(eventLocation(base))

	upper := w.End
	if m.Until != nil && m.Until.Before(upper) {
		upper = *m.Until
	}
	if upper.Before(bs) {
		return
	}

	r, err := rrule.NewRRule(monthlyOption(m, bs))
	if err != nil {
		return
	}

	duration := base.Duration()
	index := 0
	for _, t := range r.Between(bs, upper, true) {
		if !t.After(bs) {
			continue
		}
		index++
		if m.Count > 0 && index >= m.Count {
			return
		}
		if t.Before(w.Start) {
			continue
		}
		if !yield(project(base, ordinal, index, t, t.Add(duration))) {
			return
		}
	}
}

func monthlyOption(m Monthly, dtstart time.Time) rrule.ROption {
	opt := rrule.ROption{
		Freq:     rrule.MONTHLY,
		Dtstart:  dtstart,
		Interval: m.Interval,
	}
	for _, d := range m.ByWeekday {
		if wd, ok := weekdayToRRule[d]; ok {
			opt.Byweekday = append(opt.Byweekday, wd)
		}
	}
	if m.ByMonthDay != 0 {
		opt.Bymonthday = []int{m.ByMonthDay}
	}
	if m.BySetPos != 0 {
		opt.Bysetpos = []int{m.BySetPos}
	}
	return opt
}

// ToRRule renders r, as it applies to base, as an RFC 5545 "RRULE:" line. Lunar
// and unknown rules have no RRULE form and report false.
func ToRRule(base model.Event, r Rule) (string, bool) {
	var opt rrule.ROption
	s := r.schedule()
	bs := base.StartDate.In(eventLocation(base))

	switch v := r.(type) {
	case Daily:
		opt.Freq = rrule.DAILY
	case Weekly:
		opt.Freq = rrule.WEEKLY
	case Monthly:
		opt = monthlyOption(v, time.Time{})
		if !v.refined() && bs.Day() > 28 {
			clampToMonthEnd(&opt, bs.Day())
		}
	case Yearly:
		opt.Freq = rrule.YEARLY
		if bs.Day() > 28 {
			opt.Bymonth = []int{int(bs.Month())}
			clampToMonthEnd(&opt, bs.Day())
		}
	default:
		return "", false
	}

	opt.Interval = s.interval
	opt.Count = s.term.Count
	if s.term.Until != nil {
		opt.Until = s.term.Until.UTC()
	}
	return "RRULE:" + opt.RRuleString(), true
}

// clampToMonthEnd selects the last existing day of 28..day in each period, so a
// base on the 29th-31st lands on the last day of shorter months instead of
// skipping them.
func clampToMonthEnd(opt *rrule.ROption, day int) {
	opt.Bymonthday = nil
	for d := 28; d <= day; d++ {
		opt.Bymonthday = append(opt.Bymonthday, d)
	}
	opt.Bysetpos = []int{-1}
}

// isMonthEndClamp reports whether opt is the form clampToMonthEnd writes.
func isMonthEndClamp(opt *rrule.ROption) bool {
	if len(opt.Byweekday) > 0 || len(opt.Bysetpos) != 1 || opt.Bysetpos[0] != -1 {
		return false
	}
	if len(opt.Bymonthday) < 2 {
		return false
	}
	for i, d := range opt.Bymonthday {
		if d != 28+i {
			return false
		}
	}
	return true
}

// FromRRule parses an "RRULE:" line (the prefix is optional) into a typed rule.
// Weekly BYDAY lists are not carried over; the rule repeats on the base weekday.
func FromRRule(line string) (Rule, error) {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "RRULE:")

	opt, err := rrule.StrToROption(line)
	if err != nil {
		return nil, fmt.Errorf("parse rrule %q: %w", line, err)
	}

	interval := opt.Interval
	if interval < 1 {
		interval = 1
	}
	term := Termination{Count: opt.Count}
	if !opt.Until.IsZero() {
		until := opt.Until.UTC()
		term.Until = &until
	}

	var rule Rule
	switch opt.Freq {
	case rrule.DAILY:
		rule = Daily{Interval: interval, Termination: term}
	case rrule.WEEKLY:
		rule = Weekly{Interval: interval, Termination: term}
	case rrule.MONTHLY:
		m := Monthly{Interval: interval, Termination: term}
		if isMonthEndClamp(opt) {
			rule = m
			break
		}
		for _, wd := range opt.Byweekday {
			m.ByWeekday = append(m.ByWeekday, rruleDayToWeekday[wd.Day()])
			if n := wd.N(); n != 0 && m.BySetPos == 0 {
				m.BySetPos = n
			}
		}
		if len(opt.Bymonthday) > 0 {
			m.ByMonthDay = opt.Bymonthday[0]
		}
		if len(opt.Bysetpos) > 0 {
			m.BySetPos = opt.Bysetpos[0]
		}
		rule = m
	case rrule.YEARLY:
		rule = Yearly{Interval: interval, Termination: term}
	default:
		return nil, fmt.Errorf("unsupported rrule frequency %v", opt.Freq)
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}
