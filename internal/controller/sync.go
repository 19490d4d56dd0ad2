package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/fazamuttaqien/eventcal/helper"
	"github.com/fazamuttaqien/eventcal/internal/calsync"
	"github.com/fazamuttaqien/eventcal/internal/dto"
	"github.com/fazamuttaqien/eventcal/internal/model"
	"github.com/fazamuttaqien/eventcal/internal/store"
	appError "github.com/fazamuttaqien/eventcal/pkg/app-error"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
	"github.com/fazamuttaqien/eventcal/pkg/validator"
)

const recentSyncLimit = 10

// POST /calendar/sync/google
func (h *Controller) SyncGoogle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := validator.GetValidatedDTO[dto.SyncRequestDto](ctx)
	if err != nil {
		appError.WriteError(w, appError.NewInternalError("Validated DTO not found in context", err))
		return
	}

	integration, ok := h.ownedIntegration(ctx, w, body.IntegrationID, currentUser(r))
	if !ok {
		return
	}

	summary, err := h.syncer.Sync(ctx, *integration, body.Direction, calsync.Options{EventIDs: body.EventIDs})
	if err != nil {
		appError.WriteError(w, syncError(err))
		return
	}

	helper.ResponseJson(w, http.StatusOK, map[string]any{
		"success": true,
		"summary": summary,
	})
}

// GET /calendar/sync/google?integrationId=
func (h *Controller) SyncStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	integrationID := r.URL.Query().Get("integrationId")
	if integrationID == "" {
		writeFieldError(w, "integrationId", "This field is required")
		return
	}

	integration, ok := h.ownedIntegration(ctx, w, integrationID, currentUser(r))
	if !ok {
		return
	}

	recent, err := h.store.RecentSyncEvents(ctx, integration.ID, recentSyncLimit)
	if err != nil {
		appError.WriteError(w, appError.NewInternalError("Failed to load sync history", err))
		return
	}
	conflicts, err := h.store.OpenConflicts(ctx, integration.ID)
	if err != nil {
		appError.WriteError(w, appError.NewInternalError("Failed to load conflicts", err))
		return
	}
	if recent == nil {
		recent = []model.CalendarSyncEvent{}
	}
	if conflicts == nil {
		conflicts = []model.CalendarConflict{}
	}

	helper.ResponseJson(w, http.StatusOK, SyncStatus{
		Integration: *integration,
		RecentSyncs: recent,
		Conflicts:   conflicts,
	})
}

// ownedIntegration loads an integration of userID. Someone else's integration is
// reported as missing.
func (h *Controller) ownedIntegration(ctx context.Context, w http.ResponseWriter, id, userID string) (*model.CalendarIntegration, bool) {
	integration, err := h.store.Integration(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			appError.WriteError(w, appError.NewNotFoundError("Integration", err))
			return nil, false
		}
		appError.WriteError(w, appError.NewInternalError("Failed to load integration", err))
		return nil, false
	}
	if integration.UserID != userID {
		appError.WriteError(w, appError.NewNotFoundError("Integration", nil))
		return nil, false
	}
	return integration, true
}

func syncError(err error) *appError.AppError {
	switch {
	case errors.Is(err, calsync.ErrSyncInProgress):
		return appError.NewAppError(enum.SyncInProgress, "", err)
	case errors.Is(err, calsync.ErrIntegrationDisabled):
		return appError.NewAppError(enum.IntegrationDisabled, "", err)
	case errors.Is(err, calsync.ErrInvalidDirection):
		return appError.NewValidationError("direction must be one of IMPORT, EXPORT, BIDIRECTIONAL", err)
	case errors.Is(err, calsync.ErrTokenRefresh):
		return appError.NewAppError(enum.IntegrationReauthRequired, "", err)
	case errors.Is(err, calsync.ErrProviderUnavailable):
		return appError.NewAppError(enum.ProviderUnavailable, "", err)
	default:
		return appError.NewInternalError("Calendar sync failed", err)
	}
}
