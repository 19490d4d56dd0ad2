package enum

import "strings"

// --- EventType ---
type EventType string

const (
	EventTypeLiveSession EventType = "LIVE_SESSION"
	EventTypeWorkshop    EventType = "WORKSHOP"
	EventTypeWebinar     EventType = "WEBINAR"
	EventTypeMeetup      EventType = "MEETUP"
	EventTypeOfficeHours EventType = "OFFICE_HOURS"
	EventTypeExternal    EventType = "EXTERNAL"
)

func AllEventType() []EventType {
	return []EventType{
		EventTypeLiveSession,
		EventTypeWorkshop,
		EventTypeWebinar,
		EventTypeMeetup,
		EventTypeOfficeHours,
		EventTypeExternal,
	}
}

func (e EventType) String() string { return string(e) }

func EventTypeValues() []string {
	vals := AllEventType()
	strs := make([]string, len(vals))

	for i, v := range vals {
		strs[i] = v.String()
	}

	return strs
}

// --- EventStatus ---
type EventStatus string

const (
	EventDraft     EventStatus = "DRAFT"
	EventPublished EventStatus = "PUBLISHED"
	EventCancelled EventStatus = "CANCELLED"
)

func AllEventStatus() []EventStatus {
	return []EventStatus{EventDraft, EventPublished, EventCancelled}
}

func (e EventStatus) String() string { return string(e) }

// --- EventAccess ---
type EventAccess string

const (
	AccessPublic EventAccess = "PUBLIC"
	AccessPaid   EventAccess = "PAID"
	AccessTier   EventAccess = "TIER"
)

func AllEventAccess() []EventAccess {
	return []EventAccess{AccessPublic, AccessPaid, AccessTier}
}

func (e EventAccess) String() string { return string(e) }

// --- MemberTier ---
type MemberTier string

const (
	TierFree    MemberTier = "FREE"
	TierMember  MemberTier = "MEMBER"
	TierPremium MemberTier = "PREMIUM"
)

func AllMemberTier() []MemberTier {
	return []MemberTier{TierFree, TierMember, TierPremium}
}

func (e MemberTier) String() string { return string(e) }

// Rank orders tiers so gated events can compare the caller's tier against the required one.
func (e MemberTier) Rank() int {
	switch e {
	case TierMember:
		return 1
	case TierPremium:
		return 2
	default:
		return 0
	}
}

// --- Frequency ---
type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyYearly  Frequency = "YEARLY"
	FrequencyLunar   Frequency = "LUNAR"
)

func AllFrequency() []Frequency {
	return []Frequency{
		FrequencyDaily,
		FrequencyWeekly,
		FrequencyMonthly,
		FrequencyYearly,
		FrequencyLunar,
	}
}

func (e Frequency) String() string { return string(e) }

func FrequencyValues() []string {
	vals := AllFrequency()
	strs := make([]string, len(vals))
	for i, v := range vals {
		strs[i] = v.String()
	}
	return strs
}

// --- LunarPhase ---
type LunarPhase string

const (
	LunarNew          LunarPhase = "NEW"
	LunarFirstQuarter LunarPhase = "FIRST_QUARTER"
	LunarFull         LunarPhase = "FULL"
	LunarLastQuarter  LunarPhase = "LAST_QUARTER"
)

func AllLunarPhase() []LunarPhase {
	return []LunarPhase{LunarNew, LunarFirstQuarter, LunarFull, LunarLastQuarter}
}

func (e LunarPhase) String() string { return string(e) }

// --- DayOfWeek ---
type DayOfWeek string

const (
	Sunday    DayOfWeek = "SU"
	Monday    DayOfWeek = "MO"
	Tuesday   DayOfWeek = "TU"
	Wednesday DayOfWeek = "WE"
	Thursday  DayOfWeek = "TH"
	Friday    DayOfWeek = "FR"
	Saturday  DayOfWeek = "SA"
)

func AllDayOfWeek() []DayOfWeek {
	return []DayOfWeek{
		Sunday,
		Monday,
		Tuesday,
		Wednesday,
		Thursday,
		Friday,
		Saturday,
	}
}

func (e DayOfWeek) String() string { return string(e) }

// --- IntegrationProvider ---
type IntegrationProvider string

const (
	ProviderGoogle IntegrationProvider = "GOOGLE"
)

func AllIntegrationProvider() []IntegrationProvider {
	return []IntegrationProvider{ProviderGoogle}
}

func (e IntegrationProvider) String() string { return string(e) }

// --- SyncDirection ---
type SyncDirection string

const (
	SyncImport        SyncDirection = "IMPORT"
	SyncExport        SyncDirection = "EXPORT"
	SyncBidirectional SyncDirection = "BIDIRECTIONAL"
)

func AllSyncDirection() []SyncDirection {
	return []SyncDirection{SyncImport, SyncExport, SyncBidirectional}
}

func (e SyncDirection) String() string { return string(e) }

// Imports reports whether the direction includes the import phase.
func (e SyncDirection) Imports() bool { return e == SyncImport || e == SyncBidirectional }

// Exports reports whether the direction includes the export phase.
func (e SyncDirection) Exports() bool { return e == SyncExport || e == SyncBidirectional }

// --- SyncOperation ---
type SyncOperation string

const (
	SyncOpCreate SyncOperation = "CREATE"
	SyncOpUpdate SyncOperation = "UPDATE"
)

func (e SyncOperation) String() string { return string(e) }

// --- SyncStatus ---
type SyncStatus string

const (
	SyncSynced  SyncStatus = "SYNCED"
	SyncFailed  SyncStatus = "FAILED"
	SyncPending SyncStatus = "PENDING"
)

func (e SyncStatus) String() string { return string(e) }

// --- ConflictResolution ---
type ConflictResolution string

const (
	ResolveKeepLocal  ConflictResolution = "KEEP_LOCAL"
	ResolveTakeRemote ConflictResolution = "TAKE_REMOTE"
)

func (e ConflictResolution) String() string { return string(e) }

// --- RegistrationStatus ---
type RegistrationStatus string

const (
	RegistrationConfirmed      RegistrationStatus = "CONFIRMED"
	RegistrationPendingPayment RegistrationStatus = "PENDING_PAYMENT"
	RegistrationCancelled      RegistrationStatus = "CANCELLED"
)

func (e RegistrationStatus) String() string { return string(e) }

// --- CalendarView ---
type CalendarView string

const (
	ViewMonth  CalendarView = "month"
	ViewWeek   CalendarView = "week"
	ViewDay    CalendarView = "day"
	ViewAgenda CalendarView = "agenda"
)

// IsValid checks if the CalendarView value is one of the predefined constants.
func (v CalendarView) IsValid() bool {
	switch v {
	case ViewMonth, ViewWeek, ViewDay, ViewAgenda:
		return true
	default:
		return false
	}
}

func (v CalendarView) String() string { return string(v) }

// JoinEnumValues joins enum values with spaces for use in 'oneof' validator tags.
func JoinEnumValues(values []string) string {
	return strings.Join(values, " ")
}
