package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fazamuttaqien/eventcal/database"
	"github.com/fazamuttaqien/eventcal/helper"
	"github.com/fazamuttaqien/eventcal/internal/model"
	"github.com/fazamuttaqien/eventcal/internal/recurrence"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const eventColumns = `e.id, e.creator_id, e.title, e.description, e.type, e.start_date, e.end_date,
	e.timezone, e.location, e.virtual_link, e.is_public, e.access, e.price_cents, e.required_tier,
	e.tags, e.status, e.slug, e.created_at, e.updated_at`

const ruleColumns = `id, event_id, frequency, repeat_interval, count, until, by_weekday,
	by_month_day, by_set_pos, lunar_phase, created_at`

// EventFilter selects base events whose occurrences may fall inside [Start, End].
type EventFilter struct {
	Start time.Time
	End   time.Time
	Types []enum.EventType
	// ViewerID is empty for anonymous callers, who only see published public events.
	ViewerID       string
	MineOnly       bool
	RegisteredOnly bool
}

// CreateEvent inserts e and its rules in one transaction. Rules are validated here
// so nothing unreadable reaches recurrence_rules.
func (s *Store) CreateEvent(ctx context.Context, e *model.Event, rules []recurrence.Rule) error {
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("create event: %w", err)
		}
	}
	if e.Slug == "" {
		e.Slug = helper.Slugify(e.Title)
	}

	return database.Transaction(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := insertEvent(ctx, tx, e); err != nil {
			return err
		}
		return insertRules(ctx, tx, e.ID, rules)
	})
}

func insertEvent(ctx context.Context, tx *sqlx.Tx, e *model.Event) error {
	query := `
		INSERT INTO events AS e (creator_id, title, description, type, start_date, end_date, timezone,
			location, virtual_link, is_public, access, price_cents, required_tier, tags, status, slug)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING ` + eventColumns

	tags := e.Tags
	if tags == nil {
		tags = pq.StringArray{}
	}
	err := tx.GetContext(ctx, e, query,
		e.CreatorID, e.Title, e.Description, e.Type, e.StartDate, e.EndDate, e.Timezone,
		e.Location, e.VirtualLink, e.IsPublic, e.Access, e.PriceCents, e.RequiredTier,
		tags, e.Status, e.Slug)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func insertRules(ctx context.Context, tx *sqlx.Tx, eventID string, rules []recurrence.Rule) error {
	const query = `
		INSERT INTO recurrence_rules (event_id, frequency, repeat_interval, count, until,
			by_weekday, by_month_day, by_set_pos, lunar_phase)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for _, r := range rules {
		row := recurrence.ToRow(eventID, r)
		if _, err := tx.ExecContext(ctx, query,
			row.EventID, row.Frequency, row.Interval, row.Count, row.Until,
			row.ByWeekday, row.ByMonthDay, row.BySetPos, row.LunarPhase,
		); err != nil {
			return fmt.Errorf("insert recurrence rule: %w", err)
		}
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	err := s.db.GetContext(ctx, &e, `SELECT `+eventColumns+` FROM events e WHERE e.id = $1`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

// RulesFor loads the typed rules of every listed event, in creation order.
func (s *Store) RulesFor(ctx context.Context, eventIDs []string) (map[string][]recurrence.Rule, error) {
	out := make(map[string][]recurrence.Rule, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}

	var rows []model.RecurrenceRule
	query := `SELECT ` + ruleColumns + ` FROM recurrence_rules
		WHERE event_id = ANY($1) ORDER BY event_id, created_at, id`
	if err := s.db.SelectContext(ctx, &rows, query, pq.Array(eventIDs)); err != nil {
		return nil, fmt.Errorf("load recurrence rules: %w", err)
	}
	for _, row := range rows {
		out[row.EventID] = append(out[row.EventID], recurrence.FromRow(row))
	}
	return out, nil
}

// ListEvents returns base events that start inside the window plus every recurring
// event that started before the window end; the caller expands them.
func (s *Store) ListEvents(ctx context.Context, f EventFilter) ([]model.Event, error) {
	args := []any{f.End, f.Start}
	where := []string{
		"e.start_date <= $1",
		"(e.start_date >= $2 OR EXISTS (SELECT 1 FROM recurrence_rules r WHERE r.event_id = e.id))",
	}

	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = t.String()
		}
		args = append(args, pq.Array(types))
		where = append(where, fmt.Sprintf("e.type = ANY($%d)", len(args)))
	}

	if f.ViewerID == "" {
		where = append(where, "e.status = 'PUBLISHED' AND e.is_public")
	} else {
		args = append(args, f.ViewerID)
		viewer := len(args)
		registered := fmt.Sprintf(`EXISTS (SELECT 1 FROM event_registrations reg
			WHERE reg.event_id = e.id AND reg.user_id = $%d AND reg.status <> 'CANCELLED')`, viewer)
		mine := fmt.Sprintf("e.creator_id = $%d", viewer)

		switch {
		case f.MineOnly && f.RegisteredOnly:
			where = append(where, "("+mine+" OR "+registered+")")
		case f.MineOnly:
			where = append(where, mine)
		case f.RegisteredOnly:
			where = append(where, registered)
		default:
			where = append(where, "((e.status = 'PUBLISHED' AND e.is_public) OR "+mine+" OR "+registered+")")
		}
	}

	query := `SELECT ` + eventColumns + ` FROM events e WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY e.start_date, e.id`

	var events []model.Event
	if err := s.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// UpdateEvent saves the mutable columns of e. When replaceRules is set the stored
// rules are swapped for rules in the same transaction.
func (s *Store) UpdateEvent(ctx context.Context, e *model.Event, rules []recurrence.Rule, replaceRules bool) error {
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("update event: %w", err)
		}
	}

	return database.Transaction(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := updateEventRow(ctx, tx, e); err != nil {
			return err
		}
		if !replaceRules {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM recurrence_rules WHERE event_id = $1`, e.ID); err != nil {
			return fmt.Errorf("clear recurrence rules: %w", err)
		}
		return insertRules(ctx, tx, e.ID, rules)
	})
}

func updateEventRow(ctx context.Context, tx *sqlx.Tx, e *model.Event) error {
	const query = `
		UPDATE events SET title = $2, description = $3, type = $4, start_date = $5, end_date = $6,
			timezone = $7, location = $8, virtual_link = $9, is_public = $10, tags = $11,
			status = $12, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	tags := e.Tags
	if tags == nil {
		tags = pq.StringArray{}
	}
	err := tx.GetContext(ctx, &e.UpdatedAt, query,
		e.ID, e.Title, e.Description, e.Type, e.StartDate, e.EndDate,
		e.Timezone, e.Location, e.VirtualLink, e.IsPublic, tags, e.Status)
	if err != nil {
		return notFound(err)
	}
	return nil
}

// DeleteEvent removes an event unless someone holds an active registration for it.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	return database.Transaction(ctx, s.db, func(tx *sqlx.Tx) error {
		var locked string
		err := tx.GetContext(ctx, &locked, `SELECT id FROM events WHERE id = $1 FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock event: %w", err)
		}

		var active int
		err = tx.GetContext(ctx, &active,
			`SELECT COUNT(*) FROM event_registrations WHERE event_id = $1 AND status <> 'CANCELLED'`, id)
		if err != nil {
			return fmt.Errorf("count registrations: %w", err)
		}
		if active > 0 {
			return ErrHasRegistrations
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM event_registrations WHERE event_id = $1`, id); err != nil {
			return fmt.Errorf("delete cancelled registrations: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		return nil
	})
}

// ExportCandidates implements calsync.Store.
func (s *Store) ExportCandidates(ctx context.Context, integrationID, userID string, since time.Time, eventIDs []string) ([]model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events e
		WHERE e.creator_id = $1 AND e.start_date >= $2 AND e.status <> 'DRAFT'
		AND NOT EXISTS (
			SELECT 1 FROM calendar_sync_events m
			WHERE m.integration_id = $3 AND m.event_id = e.id
			AND m.operation = 'CREATE' AND m.status = 'SYNCED' AND m.direction = 'IMPORT'
		)
		AND NOT EXISTS (
			SELECT 1 FROM calendar_conflicts c
			WHERE c.integration_id = $3 AND c.event_id = e.id AND c.resolved_at IS NULL
		)`
	args := []any{userID, since, integrationID}
	if len(eventIDs) > 0 {
		args = append(args, pq.Array(eventIDs))
		query += ` AND e.id = ANY($4)`
	}
	query += ` ORDER BY e.start_date, e.id`

	var events []model.Event
	if err := s.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("load export candidates: %w", err)
	}
	return events, nil
}
