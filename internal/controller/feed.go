package controller

import (
	"net/http"
	"time"

	"github.com/fazamuttaqien/eventcal/internal/feed"
	"github.com/fazamuttaqien/eventcal/internal/store"
	appError "github.com/fazamuttaqien/eventcal/pkg/app-error"
)

const (
	feedLookback = 30 * 24 * time.Hour
	feedHorizon  = 365 * 24 * time.Hour
)

// GET /calendar/feed.ics
func (h *Controller) CalendarFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := currentUser(r)
	now := h.now().UTC()

	events, err := h.store.ListEvents(ctx, store.EventFilter{
		Start:          now.Add(-feedLookback),
		End:            now.Add(feedHorizon),
		ViewerID:       userID,
		MineOnly:       true,
		RegisteredOnly: true,
	})
	if err != nil {
		appError.WriteError(w, appError.NewInternalError("Failed to load events", err))
		return
	}
	rules, err := h.store.RulesFor(ctx, eventIDs(events))
	if err != nil {
		appError.WriteError(w, appError.NewInternalError("Failed to load recurrence rules", err))
		return
	}

	body := feed.Build(events, rules, feed.Options{Name: "My events", Now: now, Horizon: feedHorizon})

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="events.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
