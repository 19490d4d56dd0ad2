package calsync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/fazamuttaqien/eventcal/internal/model"
	"github.com/fazamuttaqien/eventcal/internal/recurrence"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
	"golang.org/x/oauth2"
)

// memStore is an in-memory Store with the same mapping semantics as the SQL store.
type memStore struct {
	mu        sync.Mutex
	seq       int
	events    map[string]*model.Event
	rules     map[string][]recurrence.Rule
	syncRows  []model.CalendarSyncEvent
	conflicts []model.CalendarConflict

	tokens    []string
	lastSync  *time.Time
	exportArg time.Time
}

func newMemStore() *memStore {
	return &memStore{
		events: make(map[string]*model.Event),
		rules:  make(map[string][]recurrence.Rule),
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) addEvent(e model.Event) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = m.nextID("evt")
	}
	m.events[e.ID] = &e
	return e.ID
}

func (m *memStore) addMapping(integrationID, eventID, externalID string, dir enum.SyncDirection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncRows = append(m.syncRows, model.CalendarSyncEvent{
		ID:            m.nextID("row"),
		IntegrationID: integrationID,
		EventID:       &eventID,
		ExternalID:    &externalID,
		Operation:     enum.SyncOpCreate,
		Direction:     dir,
		Status:        enum.SyncSynced,
	})
}

func (m *memStore) UpdateIntegrationToken(_ context.Context, _, accessToken, _ string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, accessToken)
	return nil
}

func (m *memStore) TouchLastSync(ctx context.Context, _ string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSync = &at
	return nil
}

func (m *memStore) mapping(match func(model.CalendarSyncEvent) bool) *model.CalendarSyncEvent {
	for _, row := range m.syncRows {
		if row.Operation == enum.SyncOpCreate && row.Status == enum.SyncSynced && match(row) {
			return &row
		}
	}
	return nil
}

func (m *memStore) MappingByExternalID(_ context.Context, integrationID, externalID string) (*model.CalendarSyncEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mapping(func(r model.CalendarSyncEvent) bool {
		return r.IntegrationID == integrationID && r.ExternalID != nil && *r.ExternalID == externalID
	}), nil
}

func (m *memStore) MappingByEventID(_ context.Context, integrationID, eventID string) (*model.CalendarSyncEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mapping(func(r model.CalendarSyncEvent) bool {
		return r.IntegrationID == integrationID && r.EventID != nil && *r.EventID == eventID
	}), nil
}

func (m *memStore) GetEvent(_ context.Context, eventID string) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) RulesFor(_ context.Context, eventIDs []string) (map[string][]recurrence.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]recurrence.Rule)
	for _, id := range eventIDs {
		if rs, ok := m.rules[id]; ok {
			out[id] = rs
		}
	}
	return out, nil
}

func (m *memStore) CreateImportedEvent(_ context.Context, integrationID, externalID string, e *model.Event, rules []recurrence.Rule) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exists := m.mapping(func(r model.CalendarSyncEvent) bool {
		return r.IntegrationID == integrationID && r.ExternalID != nil && *r.ExternalID == externalID
	})
	if exists != nil {
		return false, nil
	}
	e.ID = m.nextID("evt")
	cp := *e
	m.events[e.ID] = &cp
	m.rules[e.ID] = rules
	eventID := e.ID
	m.syncRows = append(m.syncRows, model.CalendarSyncEvent{
		ID:            m.nextID("row"),
		IntegrationID: integrationID,
		EventID:       &eventID,
		ExternalID:    &externalID,
		Operation:     enum.SyncOpCreate,
		Direction:     enum.SyncImport,
		Status:        enum.SyncSynced,
	})
	return true, nil
}

func (m *memStore) UpdateImportedEvent(_ context.Context, integrationID, externalID string, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.events[e.ID] = &cp
	eventID := e.ID
	m.syncRows = append(m.syncRows, model.CalendarSyncEvent{
		ID:            m.nextID("row"),
		IntegrationID: integrationID,
		EventID:       &eventID,
		ExternalID:    &externalID,
		Operation:     enum.SyncOpUpdate,
		Direction:     enum.SyncImport,
		Status:        enum.SyncSynced,
	})
	return nil
}

func (m *memStore) InsertConflict(_ context.Context, c *model.CalendarConflict) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.conflicts {
		if existing.IntegrationID == c.IntegrationID && existing.ExternalID == c.ExternalID && existing.ResolvedAt == nil {
			return false, nil
		}
	}
	c.ID = m.nextID("conflict")
	m.conflicts = append(m.conflicts, *c)
	return true, nil
}

func (m *memStore) ExportCandidates(_ context.Context, integrationID, userID string, since time.Time, eventIDs []string) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exportArg = since
	var out []model.Event
	for _, e := range m.events {
		if e.CreatorID != userID || e.StartDate.Before(since) || e.Status == enum.EventDraft {
			continue
		}
		if len(eventIDs) > 0 && !slices.Contains(eventIDs, e.ID) {
			continue
		}
		owned := m.mapping(func(r model.CalendarSyncEvent) bool {
			return r.IntegrationID == integrationID && r.EventID != nil && *r.EventID == e.ID
		})
		if owned != nil && owned.Direction == enum.SyncImport {
			continue
		}
		open := slices.ContainsFunc(m.conflicts, func(c model.CalendarConflict) bool {
			return c.IntegrationID == integrationID && c.EventID == e.ID && c.ResolvedAt == nil
		})
		if !open {
			out = append(out, *e)
		}
	}
	slices.SortFunc(out, func(a, b model.Event) int { return a.StartDate.Compare(b.StartDate) })
	return out, nil
}

func (m *memStore) RecordSync(_ context.Context, row *model.CalendarSyncEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row.Operation == enum.SyncOpCreate && row.Status == enum.SyncSynced {
		dup := m.mapping(func(r model.CalendarSyncEvent) bool {
			return r.IntegrationID == row.IntegrationID && r.ExternalID != nil && row.ExternalID != nil && *r.ExternalID == *row.ExternalID
		})
		if dup != nil {
			return false, nil
		}
	}
	row.ID = m.nextID("row")
	m.syncRows = append(m.syncRows, *row)
	return true, nil
}

func (m *memStore) rowsWith(status enum.SyncStatus) []model.CalendarSyncEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.CalendarSyncEvent
	for _, r := range m.syncRows {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out
}

// memRemote is an in-memory remote calendar.
type memRemote struct {
	mu        sync.Mutex
	seq       int
	events    map[string]RemoteEvent
	order     []string
	listErr   error
	insertErr error
	listArgs  [2]time.Time
	updates   int
	onList    func()
}

func newMemRemote() *memRemote {
	return &memRemote{events: make(map[string]RemoteEvent)}
}

func (r *memRemote) put(ev RemoteEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[ev.ID]; !ok {
		r.order = append(r.order, ev.ID)
	}
	r.events[ev.ID] = ev
}

func (r *memRemote) List(_ context.Context, timeMin, timeMax time.Time) ([]RemoteEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listArgs = [2]time.Time{timeMin, timeMax}
	if r.onList != nil {
		r.onList()
	}
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]RemoteEvent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.events[id])
	}
	return out, nil
}

func (r *memRemote) Insert(_ context.Context, ev RemoteEvent) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return "", r.insertErr
	}
	r.seq++
	ev.ID = fmt.Sprintf("g-%d", r.seq)
	r.events[ev.ID] = ev
	r.order = append(r.order, ev.ID)
	return ev.ID, nil
}

func (r *memRemote) Update(_ context.Context, externalID string, ev RemoteEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[externalID]; !ok {
		return errors.New("remote event not found")
	}
	ev.ID = externalID
	r.events[externalID] = ev
	r.updates++
	return nil
}

type staticRemotes struct {
	remote   *memRemote
	err      error
	opened   int
	lastSeen model.CalendarIntegration
}

func (s *staticRemotes) Remote(_ context.Context, integration model.CalendarIntegration) (Remote, error) {
	s.opened++
	s.lastSeen = integration
	if s.err != nil {
		return nil, s.err
	}
	return s.remote, nil
}

type stubRefresher struct {
	token *oauth2.Token
	err   error
	calls int
}

func (s *stubRefresher) Refresh(_ context.Context, _ string) (*oauth2.Token, error) {
	s.calls++
	return s.token, s.err
}
