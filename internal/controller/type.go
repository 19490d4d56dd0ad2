package controller

import (
	"time"

	"github.com/fazamuttaqien/eventcal/internal/model"
	"github.com/fazamuttaqien/eventcal/internal/recurrence"
)

// EventWithRules is an event as returned by the event endpoints.
type EventWithRules struct {
	model.Event
	Recurrence []model.RecurrenceRule `json:"recurrence"`
}

func withRules(e model.Event, rules []recurrence.Rule) EventWithRules {
	out := EventWithRules{Event: e, Recurrence: make([]model.RecurrenceRule, 0, len(rules))}
	for _, r := range rules {
		out.Recurrence = append(out.Recurrence, recurrence.ToRow(e.ID, r))
	}
	return out
}

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SyncStatus is the body of GET /calendar/sync/google.
type SyncStatus struct {
	Integration model.CalendarIntegration `json:"integration"`
	RecentSyncs []model.CalendarSyncEvent `json:"recentSyncs"`
	Conflicts   []model.CalendarConflict  `json:"conflicts"`
}
