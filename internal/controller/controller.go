package controller

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/fazamuttaqien/eventcal/internal/calsync"
	"github.com/fazamuttaqien/eventcal/internal/model"
	"github.com/fazamuttaqien/eventcal/internal/recurrence"
	"github.com/fazamuttaqien/eventcal/internal/store"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
	pkgJwt "github.com/fazamuttaqien/eventcal/pkg/jwt"
	"golang.org/x/oauth2"
)

// Store is the persistence the handlers need; *store.Store implements it.
type Store interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UserByID(ctx context.Context, id string) (*model.User, error)

	CreateEvent(ctx context.Context, e *model.Event, rules []recurrence.Rule) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	RulesFor(ctx context.Context, eventIDs []string) (map[string][]recurrence.Rule, error)
	ListEvents(ctx context.Context, f store.EventFilter) ([]model.Event, error)
	UpdateEvent(ctx context.Context, e *model.Event, rules []recurrence.Rule, replaceRules bool) error
	DeleteEvent(ctx context.Context, id string) error

	Register(ctx context.Context, eventID, userID string, status enum.RegistrationStatus) (*model.Registration, error)
	CancelRegistration(ctx context.Context, eventID, userID string) error
	IsRegistered(ctx context.Context, eventID, userID string) (bool, error)

	UpsertIntegration(ctx context.Context, i *model.CalendarIntegration) error
	Integration(ctx context.Context, id string) (*model.CalendarIntegration, error)
	IntegrationsByUser(ctx context.Context, userID string) ([]model.CalendarIntegration, error)
	DisableIntegration(ctx context.Context, id, userID string) error

	RecentSyncEvents(ctx context.Context, integrationID string, limit int) ([]model.CalendarSyncEvent, error)
	OpenConflicts(ctx context.Context, integrationID string) ([]model.CalendarConflict, error)
	Conflict(ctx context.Context, id string) (*model.CalendarConflict, error)
	ResolveConflict(ctx context.Context, c *model.CalendarConflict, resolution enum.ConflictResolution, at time.Time) error
}

// Syncer runs one reconciliation; *calsync.Reconciler implements it.
type Syncer interface {
	Sync(ctx context.Context, integration model.CalendarIntegration, direction enum.SyncDirection, opts calsync.Options) (calsync.Summary, error)
}

type Deps struct {
	Store    Store
	Syncer   Syncer
	Expander *recurrence.Expander
	Signer   *pkgJwt.Signer
	// StateSigner must not share the access token key.
	StateSigner *pkgJwt.Signer
	OAuth       *oauth2.Config
	FrontendURL string
	// Now defaults to time.Now.
	Now func() time.Time
}

type Controller struct {
	store       Store
	syncer      Syncer
	expander    *recurrence.Expander
	signer      *pkgJwt.Signer
	stateSigner *pkgJwt.Signer
	oauth       *oauth2.Config
	frontendURL *url.URL
	now         func() time.Time
}

func New(d Deps) (*Controller, error) {
	if d.FrontendURL == "" {
		return nil, errors.New("FRONTEND_URL configuration is missing")
	}
	frontendURL, err := url.Parse(d.FrontendURL)
	if err != nil {
		return nil, errors.New("invalid FRONTEND_URL configuration")
	}

	c := &Controller{
		store:       d.Store,
		syncer:      d.Syncer,
		expander:    d.Expander,
		signer:      d.Signer,
		stateSigner: d.StateSigner,
		oauth:       d.OAuth,
		frontendURL: frontendURL,
		now:         d.Now,
	}
	if c.expander == nil {
		c.expander = recurrence.NewExpander(nil, nil)
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}
