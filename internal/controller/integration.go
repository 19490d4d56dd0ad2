package controller

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/fazamuttaqien/eventcal/helper"
	"github.com/fazamuttaqien/eventcal/internal/model"
	"github.com/fazamuttaqien/eventcal/internal/store"
	appError "github.com/fazamuttaqien/eventcal/pkg/app-error"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// GET /calendar/integrations
func (h *Controller) ListIntegrations(w http.ResponseWriter, r *http.Request) {
	integrations, err := h.store.IntegrationsByUser(r.Context(), currentUser(r))
	if err != nil {
		appError.WriteError(w, appError.NewInternalError("Failed to fetch user integrations", err))
		return
	}
	if integrations == nil {
		integrations = []model.CalendarIntegration{}
	}

	helper.ResponseJson(w, http.StatusOK, map[string]any{
		"message":      "Fetched user integrations successfully",
		"integrations": integrations,
	})
}

// GET /calendar/integrations/google/connect
func (h *Controller) ConnectGoogle(w http.ResponseWriter, r *http.Request) {
	// State is a short-lived token under its own key; it carries the user to the callback.
	state, _, err := h.stateSigner.Sign(currentUser(r))
	if err != nil {
		appError.WriteError(w, appError.NewInternalError("Failed to encode state", err))
		return
	}

	authURL := h.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)

	helper.ResponseJson(w, http.StatusOK, map[string]any{
		"url": authURL,
	})
}

// GET /calendar/integrations/google/callback
// This route has no auth middleware; the user comes from the state parameter.
func (h *Controller) GoogleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	if denied := query.Get("error"); denied != "" {
		h.redirectToFrontend(w, r, url.Values{"error": {denied}})
		return
	}

	claims, err := h.stateSigner.Parse(query.Get("state"))
	if err != nil {
		h.redirectToFrontend(w, r, url.Values{"error": {"Invalid state parameter"}})
		return
	}

	code := query.Get("code")
	if code == "" {
		h.redirectToFrontend(w, r, url.Values{"error": {"Invalid authorization code"}})
		return
	}

	token, err := h.oauth.Exchange(ctx, code)
	if err != nil || token.AccessToken == "" {
		zap.L().Warn("google token exchange failed", zap.String("user_id", claims.UserID), zap.Error(err))
		h.redirectToFrontend(w, r, url.Values{"error": {"Failed to exchange token"}})
		return
	}

	integration := model.CalendarIntegration{
		UserID:       claims.UserID,
		Provider:     enum.ProviderGoogle,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenExpiry:  token.Expiry,
	}
	if err := h.store.UpsertIntegration(ctx, &integration); err != nil {
		zap.L().Error("save integration failed", zap.String("user_id", claims.UserID), zap.Error(err))
		h.redirectToFrontend(w, r, url.Values{"error": {"Failed to save integration"}})
		return
	}

	h.redirectToFrontend(w, r, url.Values{
		"success":       {"true"},
		"integrationId": {integration.ID},
	})
}

// DELETE /calendar/integrations/{integrationId}
func (h *Controller) DisconnectIntegration(w http.ResponseWriter, r *http.Request) {
	err := h.store.DisableIntegration(r.Context(), chi.URLParam(r, "integrationId"), currentUser(r))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			appError.WriteError(w, appError.NewNotFoundError("Integration", err))
			return
		}
		appError.WriteError(w, appError.NewInternalError("Failed to disconnect integration", err))
		return
	}

	helper.ResponseJson(w, http.StatusOK, helper.SimpleMessage{Message: "Integration disconnected"})
}

func (h *Controller) redirectToFrontend(w http.ResponseWriter, r *http.Request, params url.Values) {
	target := *h.frontendURL
	q := target.Query()
	q.Set("provider", enum.ProviderGoogle.String())
	for key, values := range params {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusTemporaryRedirect)
}
