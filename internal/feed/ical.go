// Package feed renders events as an iCalendar (RFC 5545) document.
package feed

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/fazamuttaqien/eventcal/internal/model"
	"github.com/fazamuttaqien/eventcal/internal/recurrence"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
)

const (
	productID   = "-//eventcal//calendar feed//EN"
	uidDomain   = "eventcal"
	localLayout = "20060102T150405"
)

// Options controls how rules without an RRULE form are flattened.
type Options struct {
	Name string
	Now  time.Time
	// Horizon is how far ahead lunar occurrences are written out as single events.
	Horizon time.Duration
}

// Build writes one VEVENT per base event with its rules as RRULE lines. Lunar
// rules have no RRULE form, so their occurrences inside [Now, Now+Horizon] are
// emitted as separate VEVENTs.
func Build(events []model.Event, rules map[string][]recurrence.Rule, opts Options) string {
	if opts.Horizon <= 0 {
		opts.Horizon = 365 * 24 * time.Hour
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	if opts.Name != "" {
		cal.SetName(opts.Name)
		cal.SetXWRCalName(opts.Name)
	}

	for _, e := range events {
		var flatten []recurrence.Rule
		ev := addEvent(cal, e, fmt.Sprintf("%s@%s", e.ID, uidDomain), e.StartDate, e.EndDate, opts.Now)
		for _, r := range rules[e.ID] {
			if line, ok := recurrence.ToRRule(e, r); ok {
				ev.AddProperty(ics.ComponentPropertyRrule, line[len("RRULE:"):])
				continue
			}
			if _, unknown := r.(recurrence.Unknown); !unknown {
				flatten = append(flatten, r)
			}
		}
		if len(flatten) == 0 {
			continue
		}

		window := recurrence.Window{Start: opts.Now, End: opts.Now.Add(opts.Horizon)}
		for _, occ := range recurrence.Expand(e, flatten, window) {
			if occ.Key.Index == 0 {
				continue
			}
			uid := fmt.Sprintf("%s-r%d-%d@%s", e.ID, occ.Key.Rule, occ.Key.Index, uidDomain)
			addEvent(cal, e, uid, occ.StartDate, occ.EndDate, opts.Now)
		}
	}

	return cal.Serialize()
}

func addEvent(cal *ics.Calendar, e model.Event, uid string, start, end, stamp time.Time) *ics.VEvent {
	ev := cal.AddEvent(uid)
	ev.SetDtStampTime(stamp.UTC())
	setTimes(ev, e.Timezone, start, end)
	ev.SetSummary(e.Title)
	if !e.UpdatedAt.IsZero() {
		ev.SetModifiedAt(e.UpdatedAt.UTC())
	}
	if e.Description != "" {
		ev.SetDescription(e.Description)
	}
	if e.Location != nil {
		ev.SetLocation(*e.Location)
	}
	if e.VirtualLink != nil {
		ev.SetURL(*e.VirtualLink)
	}
	if e.Status == enum.EventCancelled {
		ev.SetProperty(ics.ComponentPropertyStatus, "CANCELLED")
	} else {
		ev.SetProperty(ics.ComponentPropertyStatus, "CONFIRMED")
	}
	return ev
}

// setTimes writes DTSTART and DTEND as wall-clock time with the event's TZID, so
// clients repeat RRULEs across daylight saving changes the way the server does.
// UTC and unknown zones are written in UTC form.
func setTimes(ev *ics.VEvent, tz string, start, end time.Time) {
	loc, err := time.LoadLocation(tz)
	if err != nil || loc == time.UTC {
		ev.SetStartAt(start.UTC())
		ev.SetEndAt(end.UTC())
		return
	}
	ev.SetProperty(ics.ComponentPropertyDtStart, start.In(loc).Format(localLayout), ics.WithTZID(tz))
	ev.SetProperty(ics.ComponentPropertyDtEnd, end.In(loc).Format(localLayout), ics.WithTZID(tz))
}
