package controller

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fazamuttaqien/eventcal/internal/calsync"
	"github.com/fazamuttaqien/eventcal/internal/model"
	"github.com/fazamuttaqien/eventcal/internal/recurrence"
	"github.com/fazamuttaqien/eventcal/internal/store"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
)

// memStore keeps just enough state for the handlers under test.
type memStore struct {
	mu            sync.Mutex
	seq           int
	users         map[string]*model.User
	events        map[string]*model.Event
	rules         map[string][]recurrence.Rule
	registrations map[string]*model.Registration
	integrations  map[string]*model.CalendarIntegration
	conflicts     map[string]*model.CalendarConflict

	deleteErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[string]*model.User),
		events:        make(map[string]*model.Event),
		rules:         make(map[string][]recurrence.Rule),
		registrations: make(map[string]*model.Registration),
		integrations:  make(map[string]*model.CalendarIntegration),
		conflicts:     make(map[string]*model.CalendarConflict),
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func regKey(eventID, userID string) string { return eventID + "/" + userID }

func (m *memStore) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return store.ErrDuplicate
		}
	}
	u.ID = m.nextID("user")
	u.Email = strings.ToLower(u.Email)
	if u.Tier == "" {
		u.Tier = enum.TierFree
	}
	copied := *u
	m.users[u.ID] = &copied
	return nil
}

func (m *memStore) UserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) UserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *memStore) CreateEvent(_ context.Context, e *model.Event, rules []recurrence.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.nextID("evt")
	copied := *e
	m.events[e.ID] = &copied
	m.rules[e.ID] = rules
	return nil
}

func (m *memStore) GetEvent(_ context.Context, id string) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (m *memStore) RulesFor(_ context.Context, ids []string) (map[string][]recurrence.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]recurrence.Rule)
	for _, id := range ids {
		if rules, ok := m.rules[id]; ok {
			out[id] = rules
		}
	}
	return out, nil
}

// ListEvents ignores the window; expansion clips occurrences anyway.
func (m *memStore) ListEvents(_ context.Context, f store.EventFilter) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Event
	for _, e := range m.events {
		mine := f.ViewerID != "" && e.CreatorID == f.ViewerID
		_, registered := m.registrations[regKey(e.ID, f.ViewerID)]
		switch {
		case f.MineOnly || f.RegisteredOnly:
			if !(f.MineOnly && mine) && !(f.RegisteredOnly && registered) {
				continue
			}
		case !(e.Status == enum.EventPublished && e.IsPublic) && !mine && !registered:
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

func (m *memStore) UpdateEvent(_ context.Context, e *model.Event, rules []recurrence.Rule, replace bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[e.ID]; !ok {
		return store.ErrNotFound
	}
	copied := *e
	m.events[e.ID] = &copied
	if replace {
		m.rules[e.ID] = rules
	}
	return nil
}

func (m *memStore) DeleteEvent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.events, id)
	delete(m.rules, id)
	return nil
}

func (m *memStore) Register(_ context.Context, eventID, userID string, status enum.RegistrationStatus) (*model.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.registrations[regKey(eventID, userID)]; ok && r.Status != enum.RegistrationCancelled {
		return nil, store.ErrDuplicate
	}
	r := &model.Registration{ID: m.nextID("reg"), EventID: eventID, UserID: userID, Status: status}
	m.registrations[regKey(eventID, userID)] = r
	copied := *r
	return &copied, nil
}

func (m *memStore) CancelRegistration(_ context.Context, eventID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.registrations[regKey(eventID, userID)]
	if !ok || r.Status == enum.RegistrationCancelled {
		return store.ErrNotFound
	}
	r.Status = enum.RegistrationCancelled
	return nil
}

func (m *memStore) IsRegistered(_ context.Context, eventID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.registrations[regKey(eventID, userID)]
	return ok && r.Status != enum.RegistrationCancelled, nil
}

func (m *memStore) UpsertIntegration(_ context.Context, i *model.CalendarIntegration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.integrations {
		if existing.UserID == i.UserID && existing.Provider == i.Provider {
			i.ID = existing.ID
		}
	}
	if i.ID == "" {
		i.ID = m.nextID("int")
	}
	i.SyncEnabled = true
	copied := *i
	m.integrations[i.ID] = &copied
	return nil
}

func (m *memStore) Integration(_ context.Context, id string) (*model.CalendarIntegration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.integrations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *i
	return &copied, nil
}

func (m *memStore) IntegrationsByUser(_ context.Context, userID string) ([]model.CalendarIntegration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.CalendarIntegration
	for _, i := range m.integrations {
		if i.UserID == userID {
			out = append(out, *i)
		}
	}
	return out, nil
}

func (m *memStore) DisableIntegration(_ context.Context, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.integrations[id]
	if !ok || i.UserID != userID {
		return store.ErrNotFound
	}
	i.SyncEnabled = false
	i.AccessToken, i.RefreshToken = "", ""
	return nil
}

func (m *memStore) RecentSyncEvents(context.Context, string, int) ([]model.CalendarSyncEvent, error) {
	return nil, nil
}

func (m *memStore) OpenConflicts(_ context.Context, integrationID string) ([]model.CalendarConflict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.CalendarConflict
	for _, c := range m.conflicts {
		if c.IntegrationID == integrationID && c.ResolvedAt == nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStore) Conflict(_ context.Context, id string) (*model.CalendarConflict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conflicts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *memStore) ResolveConflict(_ context.Context, c *model.CalendarConflict, resolution enum.ConflictResolution, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.conflicts[c.ID]
	if !ok {
		return store.ErrNotFound
	}
	if stored.ResolvedAt != nil {
		return store.ErrAlreadyResolved
	}
	stored.ResolvedAt = &at
	stored.Resolution = &resolution
	return nil
}

// stubSyncer records the last call and returns a canned result.
type stubSyncer struct {
	summary calsync.Summary
	err     error

	calls     int
	direction enum.SyncDirection
	opts      calsync.Options
}

func (s *stubSyncer) Sync(_ context.Context, _ model.CalendarIntegration, direction enum.SyncDirection, opts calsync.Options) (calsync.Summary, error) {
	s.calls++
	s.direction = direction
	s.opts = opts
	return s.summary, s.err
}
