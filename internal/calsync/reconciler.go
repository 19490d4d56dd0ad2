// Package calsync reconciles local events with a user's external calendar.
package calsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fazamuttaqien/eventcal/internal/model"
	"github.com/fazamuttaqien/eventcal/internal/recurrence"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
	"go.uber.org/zap"
)

const (
	importLookback  = 30 * 24 * time.Hour
	importLookahead = 90 * 24 * time.Hour
	exportLookback  = 7 * 24 * time.Hour

	defaultLockTTL = 10 * time.Minute
	untitled       = "Untitled event"
)

// Summary reports the outcome of one sync run. Errors lists per-item failures;
// a run with errors is still a successful run.
type Summary struct {
	Imported  int      `json:"imported"`
	Exported  int      `json:"exported"`
	Conflicts int      `json:"conflicts"`
	Errors    []string `json:"errors"`
}

// Options narrows a run.
type Options struct {
	// EventIDs restricts the export phase to these local events.
	EventIDs []string
}

// Observer is called once per finished run, including runs that failed.
type Observer func(direction enum.SyncDirection, s Summary, err error, elapsed time.Duration)

type Reconciler struct {
	store   Store
	remotes RemoteFactory
	tokens  TokenRefresher
	locker  Locker
	lockTTL time.Duration
	logger  *zap.Logger
	now     func() time.Time
	observe Observer
}

type Option func(*Reconciler)

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func WithLocker(l Locker) Option {
	return func(r *Reconciler) { r.locker = l }
}

func WithLockTTL(ttl time.Duration) Option {
	return func(r *Reconciler) {
		if ttl > 0 {
			r.lockTTL = ttl
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(r *Reconciler) { r.observe = o }
}

func NewReconciler(store Store, remotes RemoteFactory, tokens TokenRefresher, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:   store,
		remotes: remotes,
		tokens:  tokens,
		locker:  NewLocalLocker(),
		lockTTL: defaultLockTTL,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func lockKey(integrationID string) string { return "calsync:lock:" + integrationID }

// Sync runs one import and/or export pass for integration. It returns an error only
// when the run could not happen at all: disabled integration, a concurrent run, a
// failed token refresh or an unusable remote client.
func (r *Reconciler) Sync(ctx context.Context, integration model.CalendarIntegration, direction enum.SyncDirection, opts Options) (summary Summary, err error) {
	summary.Errors = []string{}
	direction = enum.SyncDirection(strings.ToUpper(string(direction)))
	if !direction.Imports() && !direction.Exports() {
		return summary, fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}
	if !integration.SyncEnabled {
		return summary, ErrIntegrationDisabled
	}

	release, err := r.locker.Acquire(ctx, lockKey(integration.ID), r.lockTTL)
	if err != nil {
		return summary, err
	}
	defer release()

	now := r.now()
	log := r.logger.With(
		zap.String("integration_id", integration.ID),
		zap.String("direction", direction.String()),
	)
	defer func() {
		if r.observe != nil {
			r.observe(direction, summary, err, r.now().Sub(now))
		}
	}()

	if err = r.ensureToken(ctx, &integration, now); err != nil {
		log.Warn("sync aborted", zap.Error(err))
		return summary, err
	}

	remote, err := r.remotes.Remote(ctx, integration)
	if err != nil {
		err = fmt.Errorf("calsync: open remote calendar: %w", err)
		log.Warn("sync aborted", zap.Error(err))
		return summary, err
	}

	if direction.Imports() {
		r.importPhase(ctx, log, integration, remote, now, &summary)
	}
	if direction.Exports() {
		r.exportPhase(ctx, log, integration, remote, now, opts, &summary)
	}

	// The heartbeat is written even when the caller's deadline cut the run short.
	if touchErr := r.store.TouchLastSync(context.WithoutCancel(ctx), integration.ID, now); touchErr != nil {
		log.Error("update last sync time", zap.Error(touchErr))
		summary.Errors = append(summary.Errors, fmt.Sprintf("update last sync time: %v", touchErr))
	}

	log.Info("sync finished",
		zap.Int("imported", summary.Imported),
		zap.Int("exported", summary.Exported),
		zap.Int("conflicts", summary.Conflicts),
		zap.Int("errors", len(summary.Errors)),
	)
	return summary, nil
}

// ensureToken refreshes an expired access token and persists it before any
// calendar call is made.
func (r *Reconciler) ensureToken(ctx context.Context, integration *model.CalendarIntegration, now time.Time) error {
	if integration.TokenExpiry.After(now) {
		return nil
	}
	if integration.RefreshToken == "" {
		return fmt.Errorf("%w: no refresh token stored", ErrTokenRefresh)
	}

	tok, err := r.tokens.Refresh(ctx, integration.RefreshToken)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTokenRefresh, err)
	}

	refresh := integration.RefreshToken
	if tok.RefreshToken != "" {
		refresh = tok.RefreshToken
	}
	if err := r.store.UpdateIntegrationToken(ctx, integration.ID, tok.AccessToken, refresh, tok.Expiry); err != nil {
		return fmt.Errorf("%w: persist token: %w", ErrTokenRefresh, err)
	}

	integration.AccessToken = tok.AccessToken
	integration.RefreshToken = refresh
	integration.TokenExpiry = tok.Expiry
	return nil
}

type outcome int

const (
	skipped outcome = iota
	imported
	conflicted
)

func (r *Reconciler) importPhase(ctx context.Context, log *zap.Logger, integration model.CalendarIntegration, remote Remote, now time.Time, s *Summary) {
	items, err := remote.List(ctx, now.Add(-importLookback), now.Add(importLookahead))
	if err != nil {
		log.Warn("import phase aborted", zap.Error(err))
		s.Errors = append(s.Errors, fmt.Sprintf("import: list remote events: %v", err))
		return
	}

	for _, item := range items {
		res, err := r.importOne(ctx, log, integration, item, now)
		if err != nil {
			log.Debug("import item failed", zap.String("external_id", item.ID), zap.Error(err))
			s.Errors = append(s.Errors, fmt.Sprintf("import %q: %v", item.ID, err))
			continue
		}
		switch res {
		case imported:
			s.Imported++
		case conflicted:
			s.Conflicts++
		}
	}
}

func (r *Reconciler) importOne(ctx context.Context, log *zap.Logger, integration model.CalendarIntegration, item RemoteEvent, now time.Time) (outcome, error) {
	if err := validateRemote(item); err != nil {
		return skipped, err
	}

	mapping, err := r.store.MappingByExternalID(ctx, integration.ID, item.ID)
	if err != nil {
		return skipped, err
	}

	if mapping == nil {
		event := localFromRemote(integration.UserID, item)
		created, err := r.store.CreateImportedEvent(ctx, integration.ID, item.ID, &event, rulesFromRemote(log, item))
		if err != nil {
			return skipped, err
		}
		if !created {
			return skipped, nil
		}
		return imported, nil
	}

	if mapping.EventID == nil {
		return skipped, errors.New("mapped local event no longer exists")
	}
	local, err := r.store.GetEvent(ctx, *mapping.EventID)
	if err != nil {
		return skipped, err
	}

	if !sameIdentity(*local, item) {
		conflict, err := newConflict(integration.ID, *local, item, now)
		if err != nil {
			return skipped, err
		}
		if _, err := r.store.InsertConflict(ctx, conflict); err != nil {
			return skipped, err
		}
		return conflicted, nil
	}

	if applyRemote(local, item) {
		if err := r.store.UpdateImportedEvent(ctx, integration.ID, item.ID, local); err != nil {
			return skipped, err
		}
	}
	return imported, nil
}

func (r *Reconciler) exportPhase(ctx context.Context, log *zap.Logger, integration model.CalendarIntegration, remote Remote, now time.Time, opts Options, s *Summary) {
	events, err := r.store.ExportCandidates(ctx, integration.ID, integration.UserID, now.Add(-exportLookback), opts.EventIDs)
	if err != nil {
		log.Warn("export phase aborted", zap.Error(err))
		s.Errors = append(s.Errors, fmt.Sprintf("export: load local events: %v", err))
		return
	}
	if len(events) == 0 {
		return
	}

	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	rules, err := r.store.RulesFor(ctx, ids)
	if err != nil {
		log.Warn("export phase aborted", zap.Error(err))
		s.Errors = append(s.Errors, fmt.Sprintf("export: load recurrence rules: %v", err))
		return
	}

	for _, e := range events {
		exported, err := r.exportOne(ctx, log, integration, remote, e, rules[e.ID])
		if err != nil {
			log.Debug("export item failed", zap.String("event_id", e.ID), zap.Error(err))
			s.Errors = append(s.Errors, fmt.Sprintf("export %q: %v", e.ID, err))
			continue
		}
		if exported {
			s.Exported++
		}
	}
}

// exportOne pushes e to the remote calendar. Events owned by the remote side (their
// mapping was created by an import) are never written back.
func (r *Reconciler) exportOne(ctx context.Context, log *zap.Logger, integration model.CalendarIntegration, remote Remote, e model.Event, rules []recurrence.Rule) (bool, error) {
	payload := remoteFromLocal(e, rules)
	eventID := e.ID

	mapping, err := r.store.MappingByEventID(ctx, integration.ID, e.ID)
	if err != nil {
		return false, err
	}
	if mapping != nil && mapping.Direction == enum.SyncImport {
		return false, nil
	}

	if mapping != nil && mapping.ExternalID != nil {
		externalID := *mapping.ExternalID
		if err := remote.Update(ctx, externalID, payload); err != nil {
			r.recordFailure(ctx, log, integration.ID, &eventID, &externalID, enum.SyncOpUpdate, err)
			return false, err
		}
		_, err := r.store.RecordSync(ctx, &model.CalendarSyncEvent{
			IntegrationID: integration.ID,
			EventID:       &eventID,
			ExternalID:    &externalID,
			Operation:     enum.SyncOpUpdate,
			Direction:     enum.SyncExport,
			Status:        enum.SyncSynced,
		})
		return err == nil, err
	}

	externalID, err := remote.Insert(ctx, payload)
	if err != nil {
		r.recordFailure(ctx, log, integration.ID, &eventID, nil, enum.SyncOpCreate, err)
		return false, err
	}
	created, err := r.store.RecordSync(ctx, &model.CalendarSyncEvent{
		IntegrationID: integration.ID,
		EventID:       &eventID,
		ExternalID:    &externalID,
		Operation:     enum.SyncOpCreate,
		Direction:     enum.SyncExport,
		Status:        enum.SyncSynced,
	})
	if err != nil {
		return false, fmt.Errorf("remote event %s created but mapping not saved: %w", externalID, err)
	}
	if !created {
		return false, fmt.Errorf("remote event %s duplicates an existing mapping", externalID)
	}
	return true, nil
}

func (r *Reconciler) recordFailure(ctx context.Context, log *zap.Logger, integrationID string, eventID, externalID *string, op enum.SyncOperation, cause error) {
	msg := cause.Error()
	_, err := r.store.RecordSync(ctx, &model.CalendarSyncEvent{
		IntegrationID: integrationID,
		EventID:       eventID,
		ExternalID:    externalID,
		Operation:     op,
		Direction:     enum.SyncExport,
		Status:        enum.SyncFailed,
		Error:         &msg,
	})
	if err != nil {
		log.Error("record failed sync row", zap.Error(err))
	}
}

func validateRemote(item RemoteEvent) error {
	switch {
	case item.ID == "":
		return errors.New("remote event has no id")
	case item.Start.IsZero() || item.End.IsZero():
		return errors.New("remote event has no start or end")
	case !item.End.After(item.Start):
		return errors.New("remote event ends before it starts")
	}
	return nil
}

// sameIdentity compares the fields that decide between a silent update and a conflict.
func sameIdentity(local model.Event, item RemoteEvent) bool {
	return strings.TrimSpace(local.Title) == remoteTitle(item) &&
		local.StartDate.Truncate(time.Second).Equal(item.Start.Truncate(time.Second)) &&
		local.EndDate.Truncate(time.Second).Equal(item.End.Truncate(time.Second))
}

func remoteTitle(item RemoteEvent) string {
	if t := strings.TrimSpace(item.Title); t != "" {
		return t
	}
	return untitled
}

// applyRemote copies the mutable non-identity fields and reports whether any changed.
func applyRemote(local *model.Event, item RemoteEvent) bool {
	changed := false
	if local.Description != item.Description {
		local.Description = item.Description
		changed = true
	}
	if deref(local.Location) != item.Location {
		local.Location = optional(item.Location)
		changed = true
	}
	if item.VirtualLink != "" && deref(local.VirtualLink) != item.VirtualLink {
		local.VirtualLink = optional(item.VirtualLink)
		changed = true
	}
	if item.Timezone != "" && local.Timezone != item.Timezone {
		local.Timezone = item.Timezone
		changed = true
	}
	status := enum.EventPublished
	if item.Cancelled {
		status = enum.EventCancelled
	}
	if local.Status != status && local.Status != enum.EventDraft {
		local.Status = status
		changed = true
	}
	return changed
}

func localFromRemote(userID string, item RemoteEvent) model.Event {
	tz := item.Timezone
	if tz == "" {
		tz = "UTC"
	}
	status := enum.EventPublished
	if item.Cancelled {
		status = enum.EventCancelled
	}
	return model.Event{
		CreatorID:   userID,
		Title:       remoteTitle(item),
		Description: item.Description,
		Type:        enum.EventTypeExternal,
		StartDate:   item.Start.UTC(),
		EndDate:     item.End.UTC(),
		Timezone:    tz,
		Location:    optional(item.Location),
		VirtualLink: optional(item.VirtualLink),
		IsPublic:    false,
		Access:      enum.AccessPublic,
		Tags:        []string{},
		Status:      status,
	}
}

func rulesFromRemote(log *zap.Logger, item RemoteEvent) []recurrence.Rule {
	var rules []recurrence.Rule
	for _, line := range item.Recurrence {
		if !strings.HasPrefix(strings.ToUpper(line), "RRULE:") {
			continue
		}
		rule, err := recurrence.FromRRule(line)
		if err != nil {
			log.Warn("skip unsupported remote recurrence", zap.String("external_id", item.ID), zap.String("rule", line), zap.Error(err))
			continue
		}
		rules = append(rules, rule)
	}
	return rules
}

// remoteFromLocal builds the export payload. Rules without an RRULE form (lunar)
// are left out, so such events export as a single instance.
func remoteFromLocal(e model.Event, rules []recurrence.Rule) RemoteEvent {
	ev := RemoteEvent{
		Title:       e.Title,
		Description: e.Description,
		Location:    deref(e.Location),
		VirtualLink: deref(e.VirtualLink),
		Start:       e.StartDate,
		End:         e.EndDate,
		Timezone:    e.Timezone,
		Cancelled:   e.Status == enum.EventCancelled,
	}
	for _, rule := range rules {
		if line, ok := recurrence.ToRRule(e, rule); ok {
			ev.Recurrence = append(ev.Recurrence, line)
		}
	}
	return ev
}

func snapshotOf(e model.Event) model.EventSnapshot {
	return model.EventSnapshot{
		Title:       e.Title,
		Description: e.Description,
		StartDate:   e.StartDate.UTC(),
		EndDate:     e.EndDate.UTC(),
		Location:    deref(e.Location),
	}
}

func remoteSnapshot(item RemoteEvent) model.EventSnapshot {
	return model.EventSnapshot{
		Title:       remoteTitle(item),
		Description: item.Description,
		StartDate:   item.Start.UTC(),
		EndDate:     item.End.UTC(),
		Location:    item.Location,
	}
}

func newConflict(integrationID string, local model.Event, item RemoteEvent, now time.Time) (*model.CalendarConflict, error) {
	localJSON, err := json.Marshal(snapshotOf(local))
	if err != nil {
		return nil, err
	}
	remoteJSON, err := json.Marshal(remoteSnapshot(item))
	if err != nil {
		return nil, err
	}
	return &model.CalendarConflict{
		IntegrationID:  integrationID,
		EventID:        local.ID,
		ExternalID:     item.ID,
		LocalSnapshot:  localJSON,
		RemoteSnapshot: remoteJSON,
		DetectedAt:     now,
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
