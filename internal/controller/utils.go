package controller

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/fazamuttaqien/eventcal/internal/model"
	"github.com/fazamuttaqien/eventcal/internal/store"
	"github.com/fazamuttaqien/eventcal/middleware"
	appError "github.com/fazamuttaqien/eventcal/pkg/app-error"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
	"github.com/fazamuttaqien/eventcal/pkg/validator"
)

// eventFilter reads types, myEvents and myRegistrations from the query string.
// The window is left for the caller.
func eventFilter(r *http.Request, viewerID string) (store.EventFilter, error) {
	q := r.URL.Query()
	f := store.EventFilter{ViewerID: viewerID}

	if raw := q.Get("types"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			t := enum.EventType(strings.ToUpper(strings.TrimSpace(part)))
			if t == "" {
				continue
			}
			if !slices.Contains(enum.AllEventType(), t) {
				return f, fmt.Errorf("unknown event type %q", part)
			}
			f.Types = append(f.Types, t)
		}
	}

	var err error
	if f.MineOnly, err = queryBool(q.Get("myEvents")); err != nil {
		return f, fmt.Errorf("myEvents: %w", err)
	}
	if f.RegisteredOnly, err = queryBool(q.Get("myRegistrations")); err != nil {
		return f, fmt.Errorf("myRegistrations: %w", err)
	}
	if (f.MineOnly || f.RegisteredOnly) && viewerID == "" {
		return f, errLoginRequired
	}
	return f, nil
}

var errLoginRequired = appError.NewAppError(enum.AuthUnauthorizedAccess, "Sign in to filter by your events or registrations", nil)

func queryBool(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

// canView applies the visibility rule to a single event.
func (h *Controller) canView(ctx context.Context, e *model.Event, viewerID string) bool {
	if e.Status == enum.EventPublished && e.IsPublic {
		return true
	}
	if viewerID == "" {
		return false
	}
	if e.CreatorID == viewerID {
		return true
	}
	ok, err := h.store.IsRegistered(ctx, e.ID, viewerID)
	return err == nil && ok
}

func writeFieldError(w http.ResponseWriter, field, message string) {
	validator.WriteValidationErrorResponse(w, http.StatusBadRequest, enum.ValidationError, "Validation failed",
		[]validator.ValidationErrorDetail{{Field: field, Message: message}})
}

func currentUser(r *http.Request) string {
	userID, _ := middleware.GetUserIDFromContext(r.Context())
	return userID
}
