package calsync

import (
	"context"
	"errors"
	"time"

	"github.com/fazamuttaqien/eventcal/internal/model"
	"github.com/fazamuttaqien/eventcal/internal/recurrence"
	"golang.org/x/oauth2"
)

var (
	ErrSyncInProgress      = errors.New("calsync: sync already running for integration")
	ErrIntegrationDisabled = errors.New("calsync: integration is disabled")
	ErrTokenRefresh        = errors.New("calsync: token refresh failed")
	ErrInvalidDirection    = errors.New("calsync: invalid sync direction")
)

// RemoteEvent is the provider-neutral shape of an event on the remote calendar.
type RemoteEvent struct {
	ID          string
	Title       string
	Description string
	Location    string
	VirtualLink string
	Start       time.Time
	End         time.Time
	Timezone    string
	AllDay      bool
	Cancelled   bool
	// Recurrence holds RFC 5545 lines ("RRULE:...") as stored by the provider.
	Recurrence []string
}

// Remote is one integration's view of the remote calendar.
type Remote interface {
	List(ctx context.Context, timeMin, timeMax time.Time) ([]RemoteEvent, error)
	Insert(ctx context.Context, ev RemoteEvent) (string, error)
	Update(ctx context.Context, externalID string, ev RemoteEvent) error
}

// RemoteFactory opens a Remote for an integration whose access token is valid.
type RemoteFactory interface {
	Remote(ctx context.Context, integration model.CalendarIntegration) (Remote, error)
}

// TokenRefresher exchanges a refresh token for a new access token.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Locker serializes sync runs per integration. Acquire returns ErrSyncInProgress
// when the key is already held.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// Store is the persistence the reconciler needs.
type Store interface {
	UpdateIntegrationToken(ctx context.Context, integrationID, accessToken, refreshToken string, expiry time.Time) error
	TouchLastSync(ctx context.Context, integrationID string, at time.Time) error

	// MappingByExternalID and MappingByEventID return the authoritative CREATE/SYNCED
	// row, or nil when none exists.
	MappingByExternalID(ctx context.Context, integrationID, externalID string) (*model.CalendarSyncEvent, error)
	MappingByEventID(ctx context.Context, integrationID, eventID string) (*model.CalendarSyncEvent, error)

	GetEvent(ctx context.Context, eventID string) (*model.Event, error)
	RulesFor(ctx context.Context, eventIDs []string) (map[string][]recurrence.Rule, error)

	// CreateImportedEvent inserts the event, its rules and the CREATE/IMPORT mapping in
	// one transaction. It reports false when another run already mapped externalID.
	CreateImportedEvent(ctx context.Context, integrationID, externalID string, e *model.Event, rules []recurrence.Rule) (bool, error)
	// UpdateImportedEvent saves the non-identity fields of e and appends an UPDATE/IMPORT row.
	UpdateImportedEvent(ctx context.Context, integrationID, externalID string, e *model.Event) error
	// InsertConflict reports false when an unresolved conflict already exists for the mapping.
	InsertConflict(ctx context.Context, c *model.CalendarConflict) (bool, error)

	// ExportCandidates returns the user's events starting at or after since. Drafts are
	// left out, as are events imported through this integration or with an unresolved
	// conflict on it.
	ExportCandidates(ctx context.Context, integrationID, userID string, since time.Time, eventIDs []string) ([]model.Event, error)
	// RecordSync appends a row to the sync log. CREATE/SYNCED rows that would duplicate
	// an existing mapping are dropped and reported as false.
	RecordSync(ctx context.Context, row *model.CalendarSyncEvent) (bool, error)
}
