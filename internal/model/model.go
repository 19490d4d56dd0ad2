package model

import (
	"encoding/json"
	"time"

	"github.com/fazamuttaqien/eventcal/pkg/enum"
	"github.com/lib/pq"
)

type User struct {
	ID        string          `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	Username  string          `db:"username" json:"username"`
	Email     string          `db:"email" json:"email"`
	Password  string          `db:"password" json:"-"`
	Tier      enum.MemberTier `db:"tier" json:"tier"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

// Event is a locally stored calendar event. Recurring events keep their rules
// in recurrence_rules; occurrences are computed per query and never stored.
type Event struct {
	ID           string           `db:"id" json:"id"`
	CreatorID    string           `db:"creator_id" json:"creatorId"`
	Title        string           `db:"title" json:"title"`
	Description  string           `db:"description" json:"description"`
	Type         enum.EventType   `db:"type" json:"type"`
	StartDate    time.Time        `db:"start_date" json:"startDate"`
	EndDate      time.Time        `db:"end_date" json:"endDate"`
	Timezone     string           `db:"timezone" json:"timezone"`
	Location     *string          `db:"location" json:"location"`
	VirtualLink  *string          `db:"virtual_link" json:"virtualLink"`
	IsPublic     bool             `db:"is_public" json:"isPublic"`
	Access       enum.EventAccess `db:"access" json:"access"`
	PriceCents   *int64           `db:"price_cents" json:"priceCents,omitempty"`
	RequiredTier *enum.MemberTier `db:"required_tier" json:"requiredTier,omitempty"`
	Tags         pq.StringArray   `db:"tags" json:"tags"`
	Status       enum.EventStatus `db:"status" json:"status"`
	Slug         string           `db:"slug" json:"slug"`
	CreatedAt    time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updatedAt"`
}

// Duration is the base occurrence length.
func (e Event) Duration() time.Duration {
	return e.EndDate.Sub(e.StartDate)
}

// RecurrenceRule is the row shape of a recurrence rule. The recurrence package
// converts it to a typed rule at the store boundary.
type RecurrenceRule struct {
	ID         string           `db:"id" json:"id"`
	EventID    string           `db:"event_id" json:"eventId"`
	Frequency  string           `db:"frequency" json:"frequency"`
	Interval   int              `db:"repeat_interval" json:"interval"`
	Count      *int             `db:"count" json:"count,omitempty"`
	Until      *time.Time       `db:"until" json:"until,omitempty"`
	ByWeekday  pq.StringArray   `db:"by_weekday" json:"byWeekday,omitempty"`
	ByMonthDay *int             `db:"by_month_day" json:"byMonthDay,omitempty"`
	BySetPos   *int             `db:"by_set_pos" json:"bySetPos,omitempty"`
	LunarPhase *enum.LunarPhase `db:"lunar_phase" json:"lunarPhase,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"createdAt"`
}

// Registration links a user to an event they signed up for.
type Registration struct {
	ID        string                  `db:"id" json:"id"`
	EventID   string                  `db:"event_id" json:"eventId"`
	UserID    string                  `db:"user_id" json:"userId"`
	Status    enum.RegistrationStatus `db:"status" json:"status"`
	CreatedAt time.Time               `db:"created_at" json:"createdAt"`
}

// CalendarIntegration is a per-user link to a remote calendar provider.
type CalendarIntegration struct {
	ID           string                   `db:"id" json:"id"`
	UserID       string                   `db:"user_id" json:"userId"`
	Provider     enum.IntegrationProvider `db:"provider" json:"provider"`
	AccessToken  string                   `db:"access_token" json:"-"`
	RefreshToken string                   `db:"refresh_token" json:"-"`
	TokenExpiry  time.Time                `db:"token_expiry" json:"tokenExpiry"`
	SyncEnabled  bool                     `db:"sync_enabled" json:"syncEnabled"`
	Settings     json.RawMessage          `db:"settings" json:"settings,omitempty"`
	LastSyncAt   *time.Time               `db:"last_sync_at" json:"lastSyncAt"`
	CreatedAt    time.Time                `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time                `db:"updated_at" json:"updatedAt"`
}

// IntegrationSettings is the decoded form of CalendarIntegration.Settings.
type IntegrationSettings struct {
	CalendarID string `json:"calendarId,omitempty"`
}

// CalendarID returns the remote calendar targeted by sync runs.
func (i CalendarIntegration) CalendarID() string {
	var s IntegrationSettings
	if len(i.Settings) > 0 {
		_ = json.Unmarshal(i.Settings, &s)
	}
	if s.CalendarID == "" {
		return "primary"
	}
	return s.CalendarID
}

// CalendarSyncEvent is one row of the append-only sync log. CREATE/SYNCED rows
// are the authoritative local/remote mapping for an integration.
type CalendarSyncEvent struct {
	ID            string             `db:"id" json:"id"`
	IntegrationID string             `db:"integration_id" json:"integrationId"`
	EventID       *string            `db:"event_id" json:"eventId"`
	ExternalID    *string            `db:"external_id" json:"externalId"`
	Operation     enum.SyncOperation `db:"operation" json:"operation"`
	Direction     enum.SyncDirection `db:"direction" json:"direction"`
	Status        enum.SyncStatus    `db:"status" json:"status"`
	Error         *string            `db:"error" json:"error,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"createdAt"`
}

// CalendarConflict records a mapped event whose remote and local versions disagree.
type CalendarConflict struct {
	ID             string                   `db:"id" json:"id"`
	IntegrationID  string                   `db:"integration_id" json:"integrationId"`
	EventID        string                   `db:"event_id" json:"eventId"`
	ExternalID     string                   `db:"external_id" json:"externalId"`
	LocalSnapshot  json.RawMessage          `db:"local_snapshot" json:"localSnapshot"`
	RemoteSnapshot json.RawMessage          `db:"remote_snapshot" json:"remoteSnapshot"`
	DetectedAt     time.Time                `db:"detected_at" json:"detectedAt"`
	ResolvedAt     *time.Time               `db:"resolved_at" json:"resolvedAt"`
	Resolution     *enum.ConflictResolution `db:"resolution" json:"resolution,omitempty"`
}

// EventSnapshot is the part of an event compared during import and stored on conflicts.
type EventSnapshot struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	Location    string    `json:"location,omitempty"`
}
