package recurrence

import (
	"cmp"
	"iter"
	"math"
	"slices"
	"time"

	"github.com/fazamuttaqien/eventcal/internal/model"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
	"go.uber.org/zap"
)

// synodicMonth is the mean length of a lunar cycle.
const synodicMonth = time.Duration(29.530588853 * 24 * float64(time.Hour))

// Window is a closed time range [Start, End].
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// OccurrenceKey identifies an occurrence without string concatenation. The base
// occurrence has Rule 0 and Index 0; rule k (1-based) yields indices from 1.
type OccurrenceKey struct {
	EventID string `json:"eventId"`
	Rule    int    `json:"rule"`
	Index   int    `json:"index"`
}

// Occurrence is a base event projected onto one concrete start/end.
type Occurrence struct {
	model.Event
	Key OccurrenceKey `json:"occurrence"`
}

// Expander expands events and reports rules it cannot interpret.
type Expander struct {
	logger  *zap.Logger
	observe func(n int)
}

// NewExpander returns an Expander. observe, when non-nil, receives the number of
// occurrences produced by each Expand call.
func NewExpander(logger *zap.Logger, observe func(n int)) *Expander {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Expander{logger: logger, observe: observe}
}

// Expand returns every occurrence of base inside w, sorted by start. Rules with an
// unrecognized frequency contribute nothing and are logged as data-integrity warnings.
func (x *Expander) Expand(base model.Event, rules []Rule, w Window) []Occurrence {
	out := expand(base, rules, w, func(r Unknown) {
		x.logger.Warn("skipping recurrence rule with unknown frequency",
			zap.String("event_id", base.ID),
			zap.String("frequency", r.Raw),
		)
	})
	if x.observe != nil {
		x.observe(len(out))
	}
	return out
}

// Expand is the pure form of Expander.Expand; unknown rules are skipped silently.
func Expand(base model.Event, rules []Rule, w Window) []Occurrence {
	return expand(base, rules, w, nil)
}

func expand(base model.Event, rules []Rule, w Window, onUnknown func(Unknown)) []Occurrence {
	if w.End.Before(w.Start) {
		return nil
	}

	var out []Occurrence
	if w.contains(base.StartDate) {
		out = append(out, Occurrence{Event: base, Key: OccurrenceKey{EventID: base.ID}})
	}

	seen := make(map[int64]struct{}, len(out))
	for _, o := range out {
		seen[o.StartDate.UnixNano()] = struct{}{}
	}

	for i, rule := range rules {
		if u, ok := rule.(Unknown); ok {
			if onUnknown != nil {
				onUnknown(u)
			}
			continue
		}
		for occ := range Occurrences(base, i+1, rule, w) {
			key := occ.StartDate.UnixNano()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, occ)
		}
	}

	slices.SortStableFunc(out, func(a, b Occurrence) int {
		if c := a.StartDate.Compare(b.StartDate); c != 0 {
			return c
		}
		return cmp.Compare(a.Key.Rule, b.Key.Rule)
	})
	return out
}

// Occurrences yields the non-base occurrences of one rule inside w in ascending
// order. ordinal is stored in each occurrence's key.
func Occurrences(base model.Event, ordinal int, rule Rule, w Window) iter.Seq[Occurrence] {
	return func(yield func(Occurrence) bool) {
		s := rule.schedule()
		if s.interval < 1 || !base.StartDate.Before(base.EndDate) {
			return
		}
		if m, ok := rule.(Monthly); ok && m.refined() {
			refinedMonthly(base, ordinal, m, w, yield)
			return
		}

		shift := shiftFunc(rule.Frequency())
		if shift == nil {
			return
		}

		loc := eventLocation(base)
		bs := base.StartDate.In(loc)
		be := base.EndDate.In(loc)
		duration := base.Duration()

		for i := startIndex(rule.Frequency(), bs, w.Start, s.interval); ; i++ {
			if s.term.Count > 0 && i >= s.term.Count {
				return
			}
			n := i * s.interval
			occStart := shift(bs, n)
			if s.term.Until != nil && occStart.After(*s.term.Until) {
				return
			}
			if occStart.After(w.End) {
				return
			}
			if occStart.Before(w.Start) {
				continue
			}
			occEnd := shift(be, n)
			if !occEnd.After(occStart) {
				occEnd = occStart.Add(duration)
			}
			if !yield(project(base, ordinal, i, occStart, occEnd)) {
				return
			}
		}
	}
}

func project(base model.Event, ordinal, index int, start, end time.Time) Occurrence {
	ev := base
	ev.StartDate = start.UTC()
	ev.EndDate = end.UTC()
	return Occurrence{
		Event: ev,
		Key:   OccurrenceKey{EventID: base.ID, Rule: ordinal, Index: index},
	}
}

// startIndex approximates the first index whose occurrence can reach windowStart.
// It errs low by one step so calendar arithmetic around DST and month lengths never
// skips an occurrence; the caller skips anything still before the window.
func startIndex(freq enum.Frequency, baseStart, windowStart time.Time, interval int) int {
	if !windowStart.After(baseStart) {
		return 1
	}

	var steps int
	switch freq {
	case enum.FrequencyDaily:
		steps = ceilDiv(windowStart.Sub(baseStart), 24*time.Hour*time.Duration(interval))
	case enum.FrequencyWeekly:
		steps = ceilDiv(windowStart.Sub(baseStart), 7*24*time.Hour*time.Duration(interval))
	case enum.FrequencyLunar:
		steps = ceilDiv(windowStart.Sub(baseStart), synodicMonth*time.Duration(interval))
	case enum.FrequencyMonthly:
		steps = monthsBetween(baseStart, windowStart) / interval
	case enum.FrequencyYearly:
		steps = monthsBetween(baseStart, windowStart) / (12 * interval)
	}
	return max(1, steps-1)
}

func ceilDiv(d, unit time.Duration) int {
	return int(math.Ceil(float64(d) / float64(unit)))
}

func monthsBetween(from, to time.Time) int {
	to = to.In(from.Location())
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

func shiftFunc(freq enum.Frequency) func(time.Time, int) time.Time {
	switch freq {
	case enum.FrequencyDaily:
		return func(t time.Time, n int) time.Time { return t.AddDate(0, 0, n) }
	case enum.FrequencyWeekly:
		return func(t time.Time, n int) time.Time { return t.AddDate(0, 0, 7*n) }
	case enum.FrequencyMonthly:
		return addMonthsClamped
	case enum.FrequencyYearly:
		return func(t time.Time, n int) time.Time { return addMonthsClamped(t, 12*n) }
	case enum.FrequencyLunar:
		return func(t time.Time, n int) time.Time { return t.Add(time.Duration(n) * synodicMonth) }
	default:
		return nil
	}
}

// addMonthsClamped moves t by n calendar months keeping the wall clock. Days past
// the end of the target month clamp to its last day (Jan 31 + 1 month = Feb 28/29).
func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// eventLocation resolves the event's IANA timezone, falling back to UTC.
func eventLocation(e model.Event) *time.Location {
	if e.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
