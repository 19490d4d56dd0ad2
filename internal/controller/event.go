package controller

import (
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/fazamuttaqien/eventcal/helper"
	"github.com/fazamuttaqien/eventcal/internal/calview"
	"github.com/fazamuttaqien/eventcal/internal/dto"
	"github.com/fazamuttaqien/eventcal/internal/model"
	"github.com/fazamuttaqien/eventcal/internal/recurrence"
	"github.com/fazamuttaqien/eventcal/internal/store"
	appError "github.com/fazamuttaqien/eventcal/pkg/app-error"
	"github.com/fazamuttaqien/eventcal/pkg/validator"
	"github.com/go-chi/chi/v5"
)

const defaultListWindow = 30 * 24 * time.Hour

// GET /calendar
func (h *Controller) GetCalendar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewerID := currentUser(r)

	q := r.URL.Query()
	window, err := calview.Resolve(calview.Params{
		View:      q.Get("view"),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
		Date:      q.Get("date"),
		TZ:        q.Get("tz"),
	}, h.now())
	if err != nil {
		appError.WriteError(w, appError.NewValidationError(err.Error(), err))
		return
	}

	filter, err := eventFilter(r, viewerID)
	if err != nil {
		writeFilterError(w, err)
		return
	}
	filter.Start, filter.End = window.Start, window.End

	events, err := h.store.ListEvents(ctx, filter)
	if err != nil {
		appError.WriteError(w, appError.NewInternalError("Failed to load events", err))
		return
	}
	rules, err := h.store.RulesFor(ctx, eventIDs(events))
	if err != nil {
		appError.WriteError(w, appError.NewInternalError("Failed to load recurrence rules", err))
		return
	}

	occurrences := make([]recurrence.Occurrence, 0, len(events))
	for _, e := range events {
		occurrences = append(occurrences, h.expander.Expand(e, rules[e.ID], window)...)
	}
	slices.SortStableFunc(occurrences, func(a, b recurrence.Occurrence) int {
		return a.StartDate.Compare(b.StartDate)
	})

	helper.ResponseJson(w, http.StatusOK, map[string]any{
		"message":     "Calendar fetched successfully",
		"occurrences": occurrences,
		"range":       DateRange{Start: window.Start, End: window.End},
	})
}

// GET /events
func (h *Controller) ListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := eventFilter(r, currentUser(r))
	if err != nil {
		writeFilterError(w, err)
		return
	}

	q := r.URL.Query()
	if q.Get("startDate") != "" || q.Get("endDate") != "" {
		window, err := calview.Resolve(calview.Params{StartDate: q.Get("startDate"), EndDate: q.Get("endDate"), TZ: q.Get("tz")}, h.now())
		if err != nil {
			appError.WriteError(w, appError.NewValidationError(err.Error(), err))
			return
		}
		filter.Start, filter.End = window.Start, window.End
	} else {
		filter.Start = h.now().UTC()
		filter.End = filter.Start.Add(defaultListWindow)
	}

	events, err := h.store.ListEvents(ctx, filter)
	if err != nil {
		appError.WriteError(w, appError.NewInternalError("Failed to load events", err))
		return
	}
	rules, err := h.store.RulesFor(ctx, eventIDs(events))
	if err != nil {
		appError.WriteError(w, appError.NewInternalError("Failed to load recurrence rules", err))
		return
	}

	out := make([]EventWithRules, 0, len(events))
	for _, e := range events {
		out = append(out, withRules(e, rules[e.ID]))
	}

	helper.ResponseJson(w, http.StatusOK, map[string]any{
		"message": "Events fetched successfully",
		"events":  out,
		"range":   DateRange{Start: filter.Start, End: filter.End},
	})
}

// POST /events
func (h *Controller) CreateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := currentUser(r)
	if userID == "" {
		appError.WriteError(w, appError.NewUnauthorizedError(nil))
		return
	}

	body, err := validator.GetValidatedDTO[dto.CreateEventDto](ctx)
	if err != nil {
		appError.WriteError(w, appError.NewInternalError("Validated DTO not found in context", err))
		return
	}

	if !body.StartDate.After(h.now()) {
		writeFieldError(w, "startDate", "Start date must be in the future")
		return
	}

	var rules []recurrence.Rule
	if body.Recurrence != nil {
		rule, err := body.Recurrence.Rule()
		if err != nil {
			writeFieldError(w, "recurrence", err.Error())
			return
		}
		rules = append(rules, rule)
	}

	event := body.Event(userID)
	if err := h.store.CreateEvent(ctx, &event, rules); err != nil {
		appError.WriteError(w, appError.NewInternalError("Failed to create event", err))
		return
	}

	helper.ResponseJson(w, http.StatusCreated, map[string]any{
		"message": "Event created successfully",
		"event":   withRules(event, rules),
	})
}

// GET /events/{eventId}
func (h *Controller) GetEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	eventID := chi.URLParam(r, "eventId")

	event, err := h.store.GetEvent(ctx, eventID)
	if err != nil {
		writeEventLookupError(w, err)
		return
	}
	// Hidden events look missing rather than forbidden.
	if !h.canView(ctx, event, currentUser(r)) {
		appError.WriteError(w, appError.NewNotFoundError("Event", nil))
		return
	}

	rules, err := h.store.RulesFor(ctx, []string{event.ID})
	if err != nil {
		appError.WriteError(w, appError.NewInternalError("Failed to load recurrence rules", err))
		return
	}

	helper.ResponseJson(w, http.StatusOK, map[string]any{
		"message": "Event fetched successfully",
		"event":   withRules(*event, rules[event.ID]),
	})
}

// PUT /events/{eventId}
func (h *Controller) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := currentUser(r)

	body, err := validator.GetValidatedDTO[dto.UpdateEventDto](ctx)
	if err != nil {
		appError.WriteError(w, appError.NewInternalError("Validated DTO not found in context", err))
		return
	}

	event, err := h.store.GetEvent(ctx, chi.URLParam(r, "eventId"))
	if err != nil {
		writeEventLookupError(w, err)
		return
	}
	if event.CreatorID != userID {
		appError.WriteError(w, appError.NewUnauthorizedError(nil))
		return
	}

	body.Apply(event)
	if !event.EndDate.After(event.StartDate) {
		writeFieldError(w, "endDate", "End date must be after start date")
		return
	}
	if body.StartDate != nil && !event.StartDate.After(h.now()) {
		writeFieldError(w, "startDate", "Start date must be in the future")
		return
	}

	var rules []recurrence.Rule
	replace := body.ClearRecurrence || body.Recurrence != nil
	if body.Recurrence != nil {
		rule, err := body.Recurrence.Rule()
		if err != nil {
			writeFieldError(w, "recurrence", err.Error())
			return
		}
		rules = append(rules, rule)
	}

	if err := h.store.UpdateEvent(ctx, event, rules, replace); err != nil {
		writeEventLookupError(w, err)
		return
	}

	if !replace {
		stored, err := h.store.RulesFor(ctx, []string{event.ID})
		if err != nil {
			appError.WriteError(w, appError.NewInternalError("Failed to load recurrence rules", err))
			return
		}
		rules = stored[event.ID]
	}

	helper.ResponseJson(w, http.StatusOK, map[string]any{
		"message": "Event updated successfully",
		"event":   withRules(*event, rules),
	})
}

// DELETE /events/{eventId}
func (h *Controller) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := currentUser(r)

	event, err := h.store.GetEvent(ctx, chi.URLParam(r, "eventId"))
	if err != nil {
		writeEventLookupError(w, err)
		return
	}
	if event.CreatorID != userID {
		appError.WriteError(w, appError.NewUnauthorizedError(nil))
		return
	}

	if err := h.store.DeleteEvent(ctx, event.ID); err != nil {
		if errors.Is(err, store.ErrHasRegistrations) {
			appError.WriteError(w, appError.NewConflictError("Event has active registrations and cannot be deleted", err))
			return
		}
		writeEventLookupError(w, err)
		return
	}

	helper.ResponseJson(w, http.StatusOK, helper.SimpleMessage{Message: "Event deleted successfully"})
}

func writeEventLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		appError.WriteError(w, appError.NewNotFoundError("Event", err))
		return
	}
	appError.WriteError(w, appError.NewInternalError("Failed to access event", err))
}

func writeFilterError(w http.ResponseWriter, err error) {
	var appErr *appError.AppError
	if errors.As(err, &appErr) {
		appError.WriteError(w, appErr)
		return
	}
	appError.WriteError(w, appError.NewValidationError(err.Error(), err))
}

func eventIDs(events []model.Event) []string {
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return ids
}
