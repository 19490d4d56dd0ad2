package controller

import (
	"errors"
	"net/http"

	"github.com/fazamuttaqien/eventcal/helper"
	"github.com/fazamuttaqien/eventcal/internal/dto"
	"github.com/fazamuttaqien/eventcal/internal/store"
	appError "github.com/fazamuttaqien/eventcal/pkg/app-error"
	"github.com/fazamuttaqien/eventcal/pkg/validator"
	"github.com/go-chi/chi/v5"
)

// POST /calendar/conflicts/{conflictId}/resolve
func (h *Controller) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := validator.GetValidatedDTO[dto.ResolveConflictDto](ctx)
	if err != nil {
		appError.WriteError(w, appError.NewInternalError("Validated DTO not found in context", err))
		return
	}

	conflict, err := h.store.Conflict(ctx, chi.URLParam(r, "conflictId"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			appError.WriteError(w, appError.NewNotFoundError("Conflict", err))
			return
		}
		appError.WriteError(w, appError.NewInternalError("Failed to load conflict", err))
		return
	}
	if _, ok := h.ownedIntegration(ctx, w, conflict.IntegrationID, currentUser(r)); !ok {
		return
	}

	now := h.now().UTC()
	if err := h.store.ResolveConflict(ctx, conflict, body.Resolution, now); err != nil {
		if errors.Is(err, store.ErrAlreadyResolved) {
			appError.WriteError(w, appError.NewConflictError("Conflict is already resolved", err))
			return
		}
		appError.WriteError(w, appError.NewInternalError("Failed to resolve conflict", err))
		return
	}
	resolution := body.Resolution
	conflict.ResolvedAt = &now
	conflict.Resolution = &resolution

	helper.ResponseJson(w, http.StatusOK, map[string]any{
		"message":  "Conflict resolved",
		"conflict": conflict,
	})
}
