package calsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fazamuttaqien/eventcal/internal/model"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrProviderUnavailable wraps calls rejected by an open circuit breaker.
var ErrProviderUnavailable = errors.New("calsync: calendar provider unavailable")

const (
	allDayLayout  = "2006-01-02"
	listPageSize  = 250
	defaultSource = "Event link"
)

// BreakerSettings tunes the per-integration circuit breaker around Google calls.
type BreakerSettings struct {
	// Failures is the number of consecutive failures that opens the breaker.
	Failures uint32
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
}

// GoogleRemotes opens Google Calendar clients and keeps one breaker per integration.
type GoogleRemotes struct {
	endpoint string
	settings BreakerSettings
	logger   *zap.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

// NewGoogleRemotes returns a RemoteFactory for Google Calendar. endpoint overrides
// the API base URL and is empty in production.
func NewGoogleRemotes(endpoint string, settings BreakerSettings, logger *zap.Logger) *GoogleRemotes {
	if settings.Failures == 0 {
		settings.Failures = 5
	}
	if settings.Timeout <= 0 {
		settings.Timeout = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleRemotes{
		endpoint: endpoint,
		settings: settings,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Remote opens a client for integration. While its breaker is open the whole run
// is refused with ErrProviderUnavailable.
func (g *GoogleRemotes) Remote(ctx context.Context, integration model.CalendarIntegration) (Remote, error) {
	breaker := g.breaker(integration.ID)
	if breaker.State() == gobreaker.StateOpen {
		return nil, fmt.Errorf("%w: circuit open for integration %s", ErrProviderUnavailable, integration.ID)
	}

	tok := &oauth2.Token{
		AccessToken: integration.AccessToken,
		TokenType:   "Bearer",
		Expiry:      integration.TokenExpiry,
	}
	opts := []option.ClientOption{
		option.WithHTTPClient(oauth2.NewClient(ctx, oauth2.StaticTokenSource(tok))),
	}
	if g.endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.endpoint))
	}

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &googleRemote{
		svc:        svc,
		calendarID: integration.CalendarID(),
		breaker:    breaker,
	}, nil
}

func (g *GoogleRemotes) breaker(integrationID string) *gobreaker.CircuitBreaker[any] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if cb, ok := g.breakers[integrationID]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "google-calendar:" + integrationID,
		MaxRequests: 1,
		Timeout:     g.settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= g.settings.Failures
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Info("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	g.breakers[integrationID] = cb
	return cb
}

// countsAsSuccess keeps client errors (bad payload, missing event) from tripping
// the breaker; only server, rate-limit and transport failures count.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code < http.StatusInternalServerError && gerr.Code != http.StatusTooManyRequests
	}
	return false
}

func breakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	return err
}

type googleRemote struct {
	svc        *calendar.Service
	calendarID string
	breaker    *gobreaker.CircuitBreaker[any]
}

// List returns master events; recurring series come back once with their RRULE lines.
func (g *googleRemote) List(ctx context.Context, timeMin, timeMax time.Time) ([]RemoteEvent, error) {
	var out []RemoteEvent
	_, err := g.breaker.Execute(func() (any, error) {
		out = out[:0]
		err := g.svc.Events.List(g.calendarID).
			TimeMin(timeMin.UTC().Format(time.RFC3339)).
			TimeMax(timeMax.UTC().Format(time.RFC3339)).
			SingleEvents(false).
			ShowDeleted(false).
			MaxResults(listPageSize).
			Pages(ctx, func(page *calendar.Events) error {
				for _, item := range page.Items {
					out = append(out, fromGoogle(item, page.TimeZone))
				}
				return nil
			})
		return nil, err
	})
	if err != nil {
		return nil, breakerErr(err)
	}
	return out, nil
}

func (g *googleRemote) Insert(ctx context.Context, ev RemoteEvent) (string, error) {
	res, err := g.breaker.Execute(func() (any, error) {
		return g.svc.Events.Insert(g.calendarID, toGoogle(ev)).Context(ctx).Do()
	})
	if err != nil {
		return "", breakerErr(err)
	}
	created, ok := res.(*calendar.Event)
	if !ok || created.Id == "" {
		return "", errors.New("calendar insert returned no event id")
	}
	return created.Id, nil
}

// Update patches the fields this service writes. Attendees, reminders, conference
// data and anything else set on the Google side stay as they are.
func (g *googleRemote) Update(ctx context.Context, externalID string, ev RemoteEvent) error {
	_, err := g.breaker.Execute(func() (any, error) {
		return g.svc.Events.Patch(g.calendarID, externalID, patchOf(ev)).Context(ctx).Do()
	})
	return breakerErr(err)
}

func patchOf(ev RemoteEvent) *calendar.Event {
	out := toGoogle(ev)
	out.ForceSendFields = []string{"Summary", "Description", "Location"}
	if len(out.Recurrence) == 0 {
		out.NullFields = []string{"Recurrence"}
	}
	if out.Status == "" {
		out.Status = "confirmed"
	}
	return out
}

func fromGoogle(item *calendar.Event, calendarTZ string) RemoteEvent {
	ev := RemoteEvent{
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Cancelled:   item.Status == "cancelled",
		Recurrence:  item.Recurrence,
		Timezone:    calendarTZ,
	}
	switch {
	case item.HangoutLink != "":
		ev.VirtualLink = item.HangoutLink
	case item.Source != nil:
		ev.VirtualLink = item.Source.Url
	}

	if item.Start != nil {
		if item.Start.TimeZone != "" {
			ev.Timezone = item.Start.TimeZone
		}
		ev.Start, ev.AllDay = parseEventTime(item.Start)
	}
	if item.End != nil {
		ev.End, _ = parseEventTime(item.End)
	}
	return ev
}

// parseEventTime returns the zero time for payloads it cannot read; the reconciler
// reports those as malformed.
func parseEventTime(dt *calendar.EventDateTime) (time.Time, bool) {
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return t, false
	}
	if dt.Date != "" {
		t, err := time.ParseInLocation(allDayLayout, dt.Date, time.UTC)
		if err != nil {
			return time.Time{}, true
		}
		return t, true
	}
	return time.Time{}, false
}

func toGoogle(ev RemoteEvent) *calendar.Event {
	tz := ev.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		tz, loc = "UTC", time.UTC
	}

	out := &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       &calendar.EventDateTime{DateTime: ev.Start.In(loc).Format(time.RFC3339), TimeZone: tz},
		End:         &calendar.EventDateTime{DateTime: ev.End.In(loc).Format(time.RFC3339), TimeZone: tz},
		Recurrence:  ev.Recurrence,
	}
	if ev.AllDay {
		out.Start = &calendar.EventDateTime{Date: ev.Start.Format(allDayLayout)}
		out.End = &calendar.EventDateTime{Date: ev.End.Format(allDayLayout)}
	}
	if ev.VirtualLink != "" {
		out.Source = &calendar.EventSource{Title: defaultSource, Url: ev.VirtualLink}
	}
	if ev.Cancelled {
		out.Status = "cancelled"
	}
	return out
}
