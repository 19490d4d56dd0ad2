package dto

import (
	"strings"
	"time"

	"github.com/fazamuttaqien/eventcal/internal/model"
	"github.com/fazamuttaqien/eventcal/internal/recurrence"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
	pkgValidator "github.com/fazamuttaqien/eventcal/pkg/validator"
	"github.com/go-playground/validator/v10"
)

func init() {
	pkgValidator.RegisterStructRule(createEventStructLevel, map[string]string{
		"paid_requires_price":  "Paid events require a positive priceCents",
		"price_requires_paid":  "priceCents is only allowed when access is PAID",
		"tier_requires_level":  "Tier-gated events require requiredTier",
		"level_requires_tier":  "requiredTier is only allowed when access is TIER",
		"recurrence_rule":      "Invalid recurrence rule",
		"refinement_not_month": "Weekday, month-day and set-position refinements apply to MONTHLY rules only",
	}, CreateEventDto{})
	pkgValidator.RegisterStructRule(updateEventStructLevel, nil, UpdateEventDto{})
}

// --- Auth DTO ---

type RegisterDto struct {
	Name     string `json:"name" validate:"required,max=100"`
	Username string `json:"username" validate:"required,min=3,max=40,alphanum"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginDto struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// --- Event DTO ---

// RecurrenceDto is the embedded recurrence object of event payloads.
type RecurrenceDto struct {
	Freq       string     `json:"freq" validate:"required,frequency"`
	Interval   int        `json:"interval" validate:"omitempty,min=1,max=366"`
	Count      *int       `json:"count,omitempty" validate:"omitempty,min=1,max=1000,excluded_with=Until"`
	Until      *time.Time `json:"until,omitempty"`
	ByWeekday  []string   `json:"byWeekday,omitempty" validate:"omitempty,max=7,dive,weekday"`
	ByMonthDay *int       `json:"byMonthDay,omitempty" validate:"omitempty,min=-31,max=31,ne=0"`
	BySetPos   *int       `json:"bySetPos,omitempty" validate:"omitempty,min=-5,max=5,ne=0"`
	LunarPhase string     `json:"lunarPhase,omitempty" validate:"omitempty,lunar_phase"`
}

// Rule converts the payload into a validated typed rule.
func (d RecurrenceDto) Rule() (recurrence.Rule, error) {
	row := model.RecurrenceRule{
		Frequency:  strings.ToUpper(d.Freq),
		Interval:   d.Interval,
		Count:      d.Count,
		Until:      d.Until,
		ByMonthDay: d.ByMonthDay,
		BySetPos:   d.BySetPos,
	}
	for _, wd := range d.ByWeekday {
		row.ByWeekday = append(row.ByWeekday, strings.ToUpper(wd))
	}
	if d.LunarPhase != "" {
		phase := enum.LunarPhase(strings.ToUpper(d.LunarPhase))
		row.LunarPhase = &phase
	}
	rule := recurrence.FromRow(row)
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

func (d RecurrenceDto) hasRefinements() bool {
	return len(d.ByWeekday) > 0 || d.ByMonthDay != nil || d.BySetPos != nil
}

type CreateEventDto struct {
	Title        string           `json:"title" validate:"required,min=3,max=200"`
	Description  string           `json:"description" validate:"max=5000"`
	Type         enum.EventType   `json:"type" validate:"required,event_type"`
	StartDate    time.Time        `json:"startDate" validate:"required"`
	EndDate      time.Time        `json:"endDate" validate:"required,gtfield=StartDate"`
	Timezone     string           `json:"timezone" validate:"omitempty,timezone"`
	Location     *string          `json:"location" validate:"omitempty,max=300"`
	VirtualLink  *string          `json:"virtualLink" validate:"omitempty,url"`
	IsPublic     *bool            `json:"isPublic"`
	Access       enum.EventAccess `json:"access" validate:"omitempty,event_access"`
	PriceCents   *int64           `json:"priceCents" validate:"omitempty,min=1"`
	RequiredTier *enum.MemberTier `json:"requiredTier" validate:"omitempty,member_tier"`
	Tags         []string         `json:"tags" validate:"omitempty,max=20,dive,min=1,max=50"`
	Status       enum.EventStatus `json:"status" validate:"omitempty,oneof=DRAFT PUBLISHED"`
	Recurrence   *RecurrenceDto   `json:"recurrence"`
}

// Event builds the base event for creatorID with defaults applied.
func (d CreateEventDto) Event(creatorID string) model.Event {
	e := model.Event{
		CreatorID:    creatorID,
		Title:        strings.TrimSpace(d.Title),
		Description:  d.Description,
		Type:         d.Type,
		StartDate:    d.StartDate.UTC(),
		EndDate:      d.EndDate.UTC(),
		Timezone:     d.Timezone,
		Location:     d.Location,
		VirtualLink:  d.VirtualLink,
		IsPublic:     true,
		Access:       d.Access,
		PriceCents:   d.PriceCents,
		RequiredTier: d.RequiredTier,
		Tags:         d.Tags,
		Status:       d.Status,
	}
	if e.Timezone == "" {
		e.Timezone = "UTC"
	}
	if d.IsPublic != nil {
		e.IsPublic = *d.IsPublic
	}
	if e.Access == "" {
		e.Access = enum.AccessPublic
	}
	if e.Status == "" {
		e.Status = enum.EventPublished
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	return e
}

func createEventStructLevel(sl validator.StructLevel) {
	d := sl.Current().Interface().(CreateEventDto)
	validateAccess(sl, d.Access, d.PriceCents, d.RequiredTier)
	validateRecurrence(sl, d.Recurrence)
}

func validateAccess(sl validator.StructLevel, access enum.EventAccess, price *int64, tier *enum.MemberTier) {
	switch access {
	case enum.AccessPaid:
		if price == nil {
			sl.ReportError(price, "priceCents", "PriceCents", "paid_requires_price", "")
		}
	default:
		if price != nil {
			sl.ReportError(price, "priceCents", "PriceCents", "price_requires_paid", "")
		}
	}
	switch access {
	case enum.AccessTier:
		if tier == nil {
			sl.ReportError(tier, "requiredTier", "RequiredTier", "tier_requires_level", "")
		}
	default:
		if tier != nil {
			sl.ReportError(tier, "requiredTier", "RequiredTier", "level_requires_tier", "")
		}
	}
}

func validateRecurrence(sl validator.StructLevel, r *RecurrenceDto) {
	if r == nil {
		return
	}
	if r.hasRefinements() && !strings.EqualFold(r.Freq, enum.FrequencyMonthly.String()) {
		sl.ReportError(r, "recurrence", "Recurrence", "refinement_not_month", "")
		return
	}
	if _, err := r.Rule(); err != nil {
		sl.ReportError(r, "recurrence", "Recurrence", "recurrence_rule", err.Error())
	}
}

// UpdateEventDto carries only the fields being changed. A non-nil Recurrence
// replaces the stored rules; ClearRecurrence removes them.
type UpdateEventDto struct {
	Title           *string           `json:"title" validate:"omitempty,min=3,max=200"`
	Description     *string           `json:"description" validate:"omitempty,max=5000"`
	Type            *enum.EventType   `json:"type" validate:"omitempty,event_type"`
	StartDate       *time.Time        `json:"startDate"`
	EndDate         *time.Time        `json:"endDate"`
	Timezone        *string           `json:"timezone" validate:"omitempty,timezone"`
	Location        *string           `json:"location" validate:"omitempty,max=300"`
	VirtualLink     *string           `json:"virtualLink" validate:"omitempty,url"`
	IsPublic        *bool             `json:"isPublic"`
	Tags            []string          `json:"tags" validate:"omitempty,max=20,dive,min=1,max=50"`
	Status          *enum.EventStatus `json:"status" validate:"omitempty,oneof=DRAFT PUBLISHED CANCELLED"`
	Recurrence      *RecurrenceDto    `json:"recurrence"`
	ClearRecurrence bool              `json:"clearRecurrence"`
}

// Apply copies the set fields onto e.
func (d UpdateEventDto) Apply(e *model.Event) {
	if d.Title != nil {
		e.Title = strings.TrimSpace(*d.Title)
	}
	if d.Description != nil {
		e.Description = *d.Description
	}
	if d.Type != nil {
		e.Type = *d.Type
	}
	if d.StartDate != nil {
		e.StartDate = d.StartDate.UTC()
	}
	if d.EndDate != nil {
		e.EndDate = d.EndDate.UTC()
	}
	if d.Timezone != nil {
		e.Timezone = *d.Timezone
	}
	if d.Location != nil {
		e.Location = d.Location
	}
	if d.VirtualLink != nil {
		e.VirtualLink = d.VirtualLink
	}
	if d.IsPublic != nil {
		e.IsPublic = *d.IsPublic
	}
	if d.Tags != nil {
		e.Tags = d.Tags
	}
	if d.Status != nil {
		e.Status = *d.Status
	}
}

func updateEventStructLevel(sl validator.StructLevel) {
	d := sl.Current().Interface().(UpdateEventDto)
	if d.StartDate != nil && d.EndDate != nil && !d.EndDate.After(*d.StartDate) {
		sl.ReportError(d.EndDate, "endDate", "EndDate", "gtfield", "StartDate")
	}
	if d.Recurrence != nil && d.ClearRecurrence {
		sl.ReportError(d.ClearRecurrence, "clearRecurrence", "ClearRecurrence", "excluded_with", "Recurrence")
	}
	validateRecurrence(sl, d.Recurrence)
}

// --- Sync DTO ---

type SyncRequestDto struct {
	IntegrationID string             `json:"integrationId" validate:"required,uuid"`
	Direction     enum.SyncDirection `json:"direction" validate:"required,sync_direction"`
	EventIDs      []string           `json:"eventIds,omitempty" validate:"omitempty,max=500,dive,uuid"`
}

type ResolveConflictDto struct {
	Resolution enum.ConflictResolution `json:"resolution" validate:"required,oneof=KEEP_LOCAL TAKE_REMOTE"`
}
