package controller

import (
	"errors"
	"net/http"

	"github.com/fazamuttaqien/eventcal/helper"
	"github.com/fazamuttaqien/eventcal/internal/store"
	appError "github.com/fazamuttaqien/eventcal/pkg/app-error"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
	"github.com/go-chi/chi/v5"
)

// POST /events/{eventId}/registrations
func (h *Controller) RegisterForEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := currentUser(r)

	event, err := h.store.GetEvent(ctx, chi.URLParam(r, "eventId"))
	if err != nil {
		writeEventLookupError(w, err)
		return
	}
	if !h.canView(ctx, event, userID) {
		appError.WriteError(w, appError.NewNotFoundError("Event", nil))
		return
	}
	if event.Status != enum.EventPublished {
		appError.WriteError(w, appError.NewConflictError("Event is not open for registration", nil))
		return
	}
	if !event.EndDate.After(h.now()) {
		appError.WriteError(w, appError.NewConflictError("Event has already ended", nil))
		return
	}

	status := enum.RegistrationConfirmed
	switch event.Access {
	case enum.AccessTier:
		user, err := h.store.UserByID(ctx, userID)
		if err != nil {
			appError.WriteError(w, appError.NewInternalError("Failed to load user", err))
			return
		}
		if event.RequiredTier != nil && user.Tier.Rank() < event.RequiredTier.Rank() {
			appError.WriteError(w, appError.NewAppError(enum.AccessTierRequired, "", nil))
			return
		}
	case enum.AccessPaid:
		// Payment happens elsewhere; the seat is held until it is confirmed.
		status = enum.RegistrationPendingPayment
	}

	registration, err := h.store.Register(ctx, event.ID, userID, status)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			appError.WriteError(w, appError.NewConflictError("Already registered for this event", err))
			return
		}
		appError.WriteError(w, appError.NewInternalError("Failed to register for event", err))
		return
	}

	helper.ResponseJson(w, http.StatusCreated, map[string]any{
		"message":      "Registered successfully",
		"registration": registration,
	})
}

// DELETE /events/{eventId}/registrations
func (h *Controller) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	err := h.store.CancelRegistration(r.Context(), chi.URLParam(r, "eventId"), currentUser(r))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			appError.WriteError(w, appError.NewNotFoundError("Registration", err))
			return
		}
		appError.WriteError(w, appError.NewInternalError("Failed to cancel registration", err))
		return
	}

	helper.ResponseJson(w, http.StatusOK, helper.SimpleMessage{Message: "Registration cancelled"})
}
