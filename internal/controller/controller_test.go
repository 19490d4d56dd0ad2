package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/fazamuttaqien/eventcal/helper"
	"github.com/fazamuttaqien/eventcal/internal/calsync"
	"github.com/fazamuttaqien/eventcal/internal/dto"
	"github.com/fazamuttaqien/eventcal/internal/model"
	"github.com/fazamuttaqien/eventcal/internal/recurrence"
	"github.com/fazamuttaqien/eventcal/internal/store"
	"github.com/fazamuttaqien/eventcal/middleware"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
	pkgJwt "github.com/fazamuttaqien/eventcal/pkg/jwt"
	"github.com/fazamuttaqien/eventcal/pkg/validator"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

const frontendURL = "http://localhost:3000/settings/integrations"

type harness struct {
	c      *Controller
	store  *memStore
	syncer *stubSyncer
	state  *pkgJwt.Signer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  newMemStore(),
		syncer: &stubSyncer{},
		state:  pkgJwt.NewSigner("state-secret", 10*time.Minute),
	}
	c, err := New(Deps{
		Store:       h.store,
		Syncer:      h.syncer,
		Signer:      pkgJwt.NewSigner("access-secret", time.Hour),
		StateSigner: h.state,
		OAuth: &oauth2.Config{
			ClientID:    "client-id",
			RedirectURL: "http://localhost:8000/api/calendar/integrations/google/callback",
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.example.com/o/oauth2/auth",
				TokenURL: "https://accounts.example.com/token",
			},
		},
		FrontendURL: frontendURL,
		Now:         func() time.Time { return testNow },
	})
	require.NoError(t, err)
	h.c = c
	return h
}

type reqOption func(*http.Request) *http.Request

func asUser(id string) reqOption {
	return func(r *http.Request) *http.Request {
		return r.WithContext(middleware.WithUserID(r.Context(), id))
	}
}

func withDTO[T any](body T) reqOption {
	return func(r *http.Request) *http.Request {
		return r.WithContext(validator.WithValidatedDTO(r.Context(), body))
	}
}

func withParam(key, value string) reqOption {
	return func(r *http.Request) *http.Request {
		rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
		if !ok {
			rctx = chi.NewRouteContext()
		}
		rctx.URLParams.Add(key, value)
		return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
}

func call(handler http.HandlerFunc, method, target string, opts ...reqOption) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for _, opt := range opts {
		req = opt(req)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

type errorDetail struct {
	Code string `json:"code"`
}

type errorBody struct {
	Error  string      `json:"error"`
	Detail errorDetail `json:"detail"`
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[errorBody](t, rec).Detail.Code
}

func publishedEvent(creator string, start time.Time) model.Event {
	return model.Event{
		CreatorID: creator,
		Title:     "Study group",
		Type:      enum.EventTypeMeetup,
		StartDate: start,
		EndDate:   start.Add(time.Hour),
		Timezone:  "UTC",
		IsPublic:  true,
		Access:    enum.AccessPublic,
		Status:    enum.EventPublished,
		Tags:      []string{},
	}
}

func (h *harness) seedEvent(t *testing.T, e model.Event, rules ...recurrence.Rule) string {
	t.Helper()
	require.NoError(t, h.store.CreateEvent(context.Background(), &e, rules))
	return e.ID
}

func (h *harness) seedUser(t *testing.T, email, password string, tier enum.MemberTier) string {
	t.Helper()
	hash, err := helper.HashPassword(password)
	require.NoError(t, err)
	u := model.User{Name: "Test", Username: "tester", Email: email, Password: hash, Tier: tier}
	require.NoError(t, h.store.CreateUser(context.Background(), &u))
	return u.ID
}

func TestNewRequiresFrontendURL(t *testing.T) {
	_, err := New(Deps{Store: newMemStore()})
	assert.Error(t, err)

	_, err = New(Deps{Store: newMemStore(), FrontendURL: "://bad"})
	assert.Error(t, err)
}

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness(t)

	rec := call(h.c.Register, http.MethodPost, "/api/auth/register", withDTO(dto.RegisterDto{
		Name: "Ana", Username: "Ana01", Email: "Ana@Example.com", Password: "correct-horse",
	}))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "correct-horse")

	rec = call(h.c.Register, http.MethodPost, "/api/auth/register", withDTO(dto.RegisterDto{
		Name: "Ana", Username: "ana02", Email: "ana@example.com", Password: "correct-horse",
	}))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(enum.AuthEmailAlreadyExists), errorCode(t, rec))

	rec = call(h.c.Login, http.MethodPost, "/api/auth/login", withDTO(dto.LoginDto{
		Email: "ana@example.com", Password: "wrong-password",
	}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(h.c.Login, http.MethodPost, "/api/auth/login", withDTO(dto.LoginDto{
		Email: "ANA@example.com", Password: "correct-horse",
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		AccessToken string `json:"accessToken"`
	}](t, rec)
	assert.NotEmpty(t, body.AccessToken)
}

func TestCreateEventRejectsPastStart(t *testing.T) {
	h := newHarness(t)

	rec := call(h.c.CreateEvent, http.MethodPost, "/api/events", asUser("user-a"), withDTO(dto.CreateEventDto{
		Title:     "Retro",
		Type:      enum.EventTypeWorkshop,
		StartDate: testNow.Add(-time.Hour),
		EndDate:   testNow.Add(time.Hour),
	}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[validator.ValidationErrorResponse](t, rec)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "startDate", body.Errors[0].Field)
	assert.Empty(t, h.store.events)
}

func TestCreateEventStoresRecurrence(t *testing.T) {
	h := newHarness(t)
	count := 4

	rec := call(h.c.CreateEvent, http.MethodPost, "/api/events", asUser("user-a"), withDTO(dto.CreateEventDto{
		Title:      "Weekly office hours",
		Type:       enum.EventTypeOfficeHours,
		StartDate:  testNow.Add(24 * time.Hour),
		EndDate:    testNow.Add(25 * time.Hour),
		Recurrence: &dto.RecurrenceDto{Freq: "weekly", Interval: 1, Count: &count},
	}))

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode[struct {
		Event EventWithRules `json:"event"`
	}](t, rec)
	assert.Equal(t, "user-a", body.Event.CreatorID)
	assert.Equal(t, enum.EventPublished, body.Event.Status)
	assert.Equal(t, "UTC", body.Event.Timezone)
	require.Len(t, body.Event.Recurrence, 1)
	assert.Equal(t, "WEEKLY", body.Event.Recurrence[0].Frequency)
	require.NotNil(t, body.Event.Recurrence[0].Count)
	assert.Equal(t, 4, *body.Event.Recurrence[0].Count)

	require.Len(t, h.store.rules[body.Event.ID], 1)
}

func TestCreateEventRequiresUser(t *testing.T) {
	h := newHarness(t)
	rec := call(h.c.CreateEvent, http.MethodPost, "/api/events", withDTO(dto.CreateEventDto{}))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetCalendarExpandsRecurringEvents(t *testing.T) {
	h := newHarness(t)
	h.seedEvent(t, publishedEvent("user-a", time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)),
		recurrence.Weekly{Interval: 1, Termination: recurrence.Termination{Count: 3}})
	h.seedEvent(t, publishedEvent("user-b", time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)))

	draft := publishedEvent("user-b", time.Date(2024, 6, 6, 9, 0, 0, 0, time.UTC))
	draft.Status = enum.EventDraft
	h.seedEvent(t, draft)

	rec := call(h.c.GetCalendar, http.MethodGet, "/api/calendar?view=month&date=2024-06-15")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Occurrences []recurrence.Occurrence `json:"occurrences"`
		Range       DateRange               `json:"range"`
	}](t, rec)

	require.Len(t, body.Occurrences, 4)
	var starts []time.Time
	for _, o := range body.Occurrences {
		starts = append(starts, o.StartDate.UTC())
	}
	assert.Equal(t, []time.Time{
		time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 17, 10, 0, 0, 0, time.UTC),
	}, starts)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), body.Range.Start.UTC())
}

func TestGetCalendarDateOnlyRangeIncludesLastDay(t *testing.T) {
	h := newHarness(t)
	id := h.seedEvent(t, publishedEvent("user-a", time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)),
		recurrence.Weekly{Interval: 1})

	rec := call(h.c.GetCalendar, http.MethodGet, "/api/calendar?startDate=2024-06-01&endDate=2024-06-22")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Occurrences []recurrence.Occurrence `json:"occurrences"`
	}](t, rec)

	require.Len(t, body.Occurrences, 4)
	for i, o := range body.Occurrences {
		assert.Equal(t, time.Date(2024, 6, 1+7*i, 10, 0, 0, 0, time.UTC), o.StartDate.UTC())
		assert.Equal(t, time.Hour, o.EndDate.Sub(o.StartDate))
		assert.Equal(t, id, o.ID)
		assert.Equal(t, i, o.Key.Index)
	}
}

func TestGetCalendarRejectsBadWindow(t *testing.T) {
	h := newHarness(t)

	rec := call(h.c.GetCalendar, http.MethodGet, "/api/calendar?endDate=2024-06-30")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(h.c.GetCalendar, http.MethodGet, "/api/calendar?view=year")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListEventsPersonalFiltersNeedLogin(t *testing.T) {
	h := newHarness(t)

	rec := call(h.c.ListEvents, http.MethodGet, "/api/events?myEvents=true")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(h.c.ListEvents, http.MethodGet, "/api/events?types=meetup,unknown")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(h.c.ListEvents, http.MethodGet, "/api/events?myEvents=true", asUser("user-a"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetEventHidesDrafts(t *testing.T) {
	h := newHarness(t)
	draft := publishedEvent("user-a", testNow.Add(48*time.Hour))
	draft.Status = enum.EventDraft
	id := h.seedEvent(t, draft)

	rec := call(h.c.GetEvent, http.MethodGet, "/api/events/"+id, withParam("eventId", id))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(h.c.GetEvent, http.MethodGet, "/api/events/"+id, withParam("eventId", id), asUser("user-b"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(h.c.GetEvent, http.MethodGet, "/api/events/"+id, withParam("eventId", id), asUser("user-a"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateEventCreatorOnly(t *testing.T) {
	h := newHarness(t)
	id := h.seedEvent(t, publishedEvent("user-a", testNow.Add(48*time.Hour)),
		recurrence.Daily{Interval: 1, Termination: recurrence.Termination{Count: 2}})
	title := "Renamed"

	rec := call(h.c.UpdateEvent, http.MethodPut, "/api/events/"+id, withParam("eventId", id),
		asUser("user-b"), withDTO(dto.UpdateEventDto{Title: &title}))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(h.c.UpdateEvent, http.MethodPut, "/api/events/"+id, withParam("eventId", id),
		asUser("user-a"), withDTO(dto.UpdateEventDto{Title: &title}))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Event EventWithRules `json:"event"`
	}](t, rec)
	assert.Equal(t, "Renamed", body.Event.Title)
	assert.Len(t, body.Event.Recurrence, 1, "untouched rules are returned as stored")
}

func TestDeleteEvent(t *testing.T) {
	h := newHarness(t)
	id := h.seedEvent(t, publishedEvent("user-a", testNow.Add(48*time.Hour)))

	rec := call(h.c.DeleteEvent, http.MethodDelete, "/api/events/"+id, withParam("eventId", id), asUser("user-b"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	h.store.deleteErr = store.ErrHasRegistrations
	rec = call(h.c.DeleteEvent, http.MethodDelete, "/api/events/"+id, withParam("eventId", id), asUser("user-a"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	h.store.deleteErr = nil
	rec = call(h.c.DeleteEvent, http.MethodDelete, "/api/events/"+id, withParam("eventId", id), asUser("user-a"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, h.store.events, id)

	rec = call(h.c.DeleteEvent, http.MethodDelete, "/api/events/"+id, withParam("eventId", id), asUser("user-a"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegisterForTierEvent(t *testing.T) {
	h := newHarness(t)
	free := h.seedUser(t, "free@example.com", "password1", enum.TierFree)
	premium := h.seedUser(t, "premium@example.com", "password1", enum.TierPremium)

	e := publishedEvent("user-a", testNow.Add(48*time.Hour))
	e.Access = enum.AccessTier
	required := enum.TierMember
	e.RequiredTier = &required
	id := h.seedEvent(t, e)

	rec := call(h.c.RegisterForEvent, http.MethodPost, "/api/events/"+id+"/registrations", withParam("eventId", id), asUser(free))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, string(enum.AccessTierRequired), errorCode(t, rec))

	rec = call(h.c.RegisterForEvent, http.MethodPost, "/api/events/"+id+"/registrations", withParam("eventId", id), asUser(premium))
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode[struct {
		Registration model.Registration `json:"registration"`
	}](t, rec)
	assert.Equal(t, enum.RegistrationConfirmed, body.Registration.Status)

	rec = call(h.c.RegisterForEvent, http.MethodPost, "/api/events/"+id+"/registrations", withParam("eventId", id), asUser(premium))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterForPaidEventIsPending(t *testing.T) {
	h := newHarness(t)
	e := publishedEvent("user-a", testNow.Add(48*time.Hour))
	e.Access = enum.AccessPaid
	price := int64(1500)
	e.PriceCents = &price
	id := h.seedEvent(t, e)

	rec := call(h.c.RegisterForEvent, http.MethodPost, "/api/events/"+id+"/registrations", withParam("eventId", id), asUser("user-b"))

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode[struct {
		Registration model.Registration `json:"registration"`
	}](t, rec)
	assert.Equal(t, enum.RegistrationPendingPayment, body.Registration.Status)
}

func TestRegisterRejectsEndedAndDraftEvents(t *testing.T) {
	h := newHarness(t)
	ended := h.seedEvent(t, publishedEvent("user-a", testNow.Add(-48*time.Hour)))
	draft := publishedEvent("user-b", testNow.Add(48*time.Hour))
	draft.Status = enum.EventDraft
	draftID := h.seedEvent(t, draft)

	rec := call(h.c.RegisterForEvent, http.MethodPost, "/", withParam("eventId", ended), asUser("user-c"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(h.c.RegisterForEvent, http.MethodPost, "/", withParam("eventId", draftID), asUser("user-c"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(h.c.RegisterForEvent, http.MethodPost, "/", withParam("eventId", draftID), asUser("user-b"))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelRegistration(t *testing.T) {
	h := newHarness(t)
	id := h.seedEvent(t, publishedEvent("user-a", testNow.Add(48*time.Hour)))

	rec := call(h.c.CancelRegistration, http.MethodDelete, "/", withParam("eventId", id), asUser("user-b"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, err := h.store.Register(context.Background(), id, "user-b", enum.RegistrationConfirmed)
	require.NoError(t, err)

	rec = call(h.c.CancelRegistration, http.MethodDelete, "/", withParam("eventId", id), asUser("user-b"))
	assert.Equal(t, http.StatusOK, rec.Code)

	ok, err := h.store.IsRegistered(context.Background(), id, "user-b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func (h *harness) seedIntegration(t *testing.T, userID string) string {
	t.Helper()
	i := model.CalendarIntegration{UserID: userID, Provider: enum.ProviderGoogle, AccessToken: "at"}
	require.NoError(t, h.store.UpsertIntegration(context.Background(), &i))
	return i.ID
}

func TestSyncGoogle(t *testing.T) {
	h := newHarness(t)
	id := h.seedIntegration(t, "user-a")
	h.syncer.summary = calsync.Summary{Imported: 2, Exported: 1, Errors: []string{}}

	req := dto.SyncRequestDto{IntegrationID: id, Direction: enum.SyncExport, EventIDs: []string{"evt-9"}}

	rec := call(h.c.SyncGoogle, http.MethodPost, "/", asUser("user-b"), withDTO(req))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, h.syncer.calls)

	rec = call(h.c.SyncGoogle, http.MethodPost, "/", asUser("user-a"), withDTO(req))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Success bool            `json:"success"`
		Summary calsync.Summary `json:"summary"`
	}](t, rec)
	assert.True(t, body.Success)
	assert.Equal(t, 2, body.Summary.Imported)
	assert.Equal(t, enum.SyncExport, h.syncer.direction)
	assert.Equal(t, []string{"evt-9"}, h.syncer.opts.EventIDs)
}

func TestSyncGoogleErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   enum.ErrorCode
	}{
		{"in progress", calsync.ErrSyncInProgress, http.StatusConflict, enum.SyncInProgress},
		{"disabled", calsync.ErrIntegrationDisabled, http.StatusConflict, enum.IntegrationDisabled},
		{"refresh failed", calsync.ErrTokenRefresh, http.StatusConflict, enum.IntegrationReauthRequired},
		{"provider down", calsync.ErrProviderUnavailable, http.StatusBadGateway, enum.ProviderUnavailable},
		{"bad direction", calsync.ErrInvalidDirection, http.StatusBadRequest, enum.ValidationError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			id := h.seedIntegration(t, "user-a")
			h.syncer.err = tc.err

			rec := call(h.c.SyncGoogle, http.MethodPost, "/", asUser("user-a"),
				withDTO(dto.SyncRequestDto{IntegrationID: id, Direction: enum.SyncBidirectional}))

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, string(tc.code), errorCode(t, rec))
		})
	}
}

func TestSyncStatus(t *testing.T) {
	h := newHarness(t)
	id := h.seedIntegration(t, "user-a")

	rec := call(h.c.SyncStatus, http.MethodGet, "/api/calendar/sync/google", asUser("user-a"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(h.c.SyncStatus, http.MethodGet, "/api/calendar/sync/google?integrationId="+id, asUser("user-a"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(decode[map[string]json.RawMessage](t, rec)["recentSyncs"]))
	assert.JSONEq(t, `[]`, string(decode[map[string]json.RawMessage](t, rec)["conflicts"]))
}

func TestResolveConflict(t *testing.T) {
	h := newHarness(t)
	integrationID := h.seedIntegration(t, "user-a")
	h.store.conflicts["conf-1"] = &model.CalendarConflict{
		ID:            "conf-1",
		IntegrationID: integrationID,
		EventID:       "evt-1",
		ExternalID:    "g-1",
		DetectedAt:    testNow.Add(-time.Hour),
	}
	body := dto.ResolveConflictDto{Resolution: enum.ResolveKeepLocal}

	rec := call(h.c.ResolveConflict, http.MethodPost, "/", withParam("conflictId", "conf-1"), asUser("user-b"), withDTO(body))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(h.c.ResolveConflict, http.MethodPost, "/", withParam("conflictId", "conf-1"), asUser("user-a"), withDTO(body))
	require.Equal(t, http.StatusOK, rec.Code)
	resolved := decode[struct {
		Conflict model.CalendarConflict `json:"conflict"`
	}](t, rec).Conflict
	require.NotNil(t, resolved.Resolution)
	assert.Equal(t, enum.ResolveKeepLocal, *resolved.Resolution)
	require.NotNil(t, resolved.ResolvedAt)
	assert.True(t, resolved.ResolvedAt.Equal(testNow))

	rec = call(h.c.ResolveConflict, http.MethodPost, "/", withParam("conflictId", "conf-1"), asUser("user-a"), withDTO(body))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestConnectGoogleSignsState(t *testing.T) {
	h := newHarness(t)

	rec := call(h.c.ConnectGoogle, http.MethodGet, "/", asUser("user-a"))

	require.Equal(t, http.StatusOK, rec.Code)
	authURL, err := url.Parse(decode[map[string]string](t, rec)["url"])
	require.NoError(t, err)
	assert.Equal(t, "accounts.example.com", authURL.Host)
	assert.Equal(t, "offline", authURL.Query().Get("access_type"))

	claims, err := h.state.Parse(authURL.Query().Get("state"))
	require.NoError(t, err)
	assert.Equal(t, "user-a", claims.UserID)
}

func TestGoogleCallbackRedirectsErrors(t *testing.T) {
	h := newHarness(t)
	state, _, err := h.state.Sign("user-a")
	require.NoError(t, err)

	cases := []struct {
		name  string
		query string
		want  string
	}{
		{"provider denied", "error=access_denied", "access_denied"},
		{"bad state", "state=forged&code=abc", "Invalid state parameter"},
		{"missing code", "state=" + url.QueryEscape(state), "Invalid authorization code"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := call(h.c.GoogleOAuthCallback, http.MethodGet, "/callback?"+tc.query)

			require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
			loc, err := url.Parse(rec.Header().Get("Location"))
			require.NoError(t, err)
			assert.Equal(t, "localhost:3000", loc.Host)
			assert.Equal(t, "/settings/integrations", loc.Path)
			assert.Equal(t, "GOOGLE", loc.Query().Get("provider"))
			assert.Equal(t, tc.want, loc.Query().Get("error"))
		})
	}
	assert.Empty(t, h.store.integrations)
}

func TestDisconnectIntegration(t *testing.T) {
	h := newHarness(t)
	id := h.seedIntegration(t, "user-a")

	rec := call(h.c.DisconnectIntegration, http.MethodDelete, "/", withParam("integrationId", id), asUser("user-b"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(h.c.DisconnectIntegration, http.MethodDelete, "/", withParam("integrationId", id), asUser("user-a"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, h.store.integrations[id].SyncEnabled)
	assert.Empty(t, h.store.integrations[id].AccessToken)
}

func TestCalendarFeed(t *testing.T) {
	h := newHarness(t)
	h.seedEvent(t, publishedEvent("user-a", testNow.Add(24*time.Hour)))
	h.seedEvent(t, publishedEvent("user-b", testNow.Add(24*time.Hour)))

	rec := call(h.c.CalendarFeed, http.MethodGet, "/api/calendar/feed.ics", asUser("user-a"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "BEGIN:VCALENDAR")
	assert.Equal(t, 1, strings.Count(rec.Body.String(), "BEGIN:VEVENT"))
}
