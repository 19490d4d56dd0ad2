package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fazamuttaqien/eventcal/database"
	"github.com/fazamuttaqien/eventcal/helper"
	"github.com/fazamuttaqien/eventcal/internal/model"
	"github.com/fazamuttaqien/eventcal/internal/recurrence"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
	"github.com/jmoiron/sqlx"
)

const syncColumns = `id, integration_id, event_id, external_id, operation, direction, status, error, created_at`

const conflictColumns = `id, integration_id, event_id, external_id, local_snapshot, remote_snapshot,
	detected_at, resolved_at, resolution`

// errMappingTaken rolls back an import that lost the race for its mapping row.
var errMappingTaken = errors.New("mapping already exists")

func (s *Store) mapping(ctx context.Context, column, integrationID, value string) (*model.CalendarSyncEvent, error) {
	query := `SELECT ` + syncColumns + ` FROM calendar_sync_events
		WHERE integration_id = $1 AND ` + column + ` = $2 AND operation = 'CREATE' AND status = 'SYNCED'
		LIMIT 1`

	var row model.CalendarSyncEvent
	err := s.db.GetContext(ctx, &row, query, integrationID, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load sync mapping: %w", err)
	}
	return &row, nil
}

func (s *Store) MappingByExternalID(ctx context.Context, integrationID, externalID string) (*model.CalendarSyncEvent, error) {
	return s.mapping(ctx, "external_id", integrationID, externalID)
}

func (s *Store) MappingByEventID(ctx context.Context, integrationID, eventID string) (*model.CalendarSyncEvent, error) {
	return s.mapping(ctx, "event_id", integrationID, eventID)
}

// RecordSync appends a sync log row. A CREATE/SYNCED row that collides with an
// existing mapping is dropped and reported as false.
func (s *Store) RecordSync(ctx context.Context, row *model.CalendarSyncEvent) (bool, error) {
	err := insertSyncRow(ctx, s.db, row)
	if errors.Is(err, errMappingTaken) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func insertSyncRow(ctx context.Context, q sqlx.QueryerContext, row *model.CalendarSyncEvent) error {
	const query = `
		INSERT INTO calendar_sync_events (integration_id, event_id, external_id, operation, direction, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING
		RETURNING id, created_at`

	err := q.QueryRowxContext(ctx, query,
		row.IntegrationID, row.EventID, row.ExternalID, row.Operation, row.Direction, row.Status, row.Error,
	).Scan(&row.ID, &row.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return errMappingTaken
	}
	if err != nil {
		return fmt.Errorf("record sync event: %w", err)
	}
	return nil
}

// CreateImportedEvent implements calsync.Store.
func (s *Store) CreateImportedEvent(ctx context.Context, integrationID, externalID string, e *model.Event, rules []recurrence.Rule) (bool, error) {
	if e.Slug == "" {
		e.Slug = helper.Slugify(e.Title)
	}
	var valid []recurrence.Rule
	for _, r := range rules {
		if r.Validate() == nil {
			valid = append(valid, r)
		}
	}

	err := database.Transaction(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := insertEvent(ctx, tx, e); err != nil {
			return err
		}
		if err := insertRules(ctx, tx, e.ID, valid); err != nil {
			return err
		}
		return insertSyncRow(ctx, tx, &model.CalendarSyncEvent{
			IntegrationID: integrationID,
			EventID:       &e.ID,
			ExternalID:    &externalID,
			Operation:     enum.SyncOpCreate,
			Direction:     enum.SyncImport,
			Status:        enum.SyncSynced,
		})
	})
	if errors.Is(err, errMappingTaken) {
		e.ID = ""
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateImportedEvent implements calsync.Store.
func (s *Store) UpdateImportedEvent(ctx context.Context, integrationID, externalID string, e *model.Event) error {
	return database.Transaction(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := updateEventRow(ctx, tx, e); err != nil {
			return err
		}
		return insertSyncRow(ctx, tx, &model.CalendarSyncEvent{
			IntegrationID: integrationID,
			EventID:       &e.ID,
			ExternalID:    &externalID,
			Operation:     enum.SyncOpUpdate,
			Direction:     enum.SyncImport,
			Status:        enum.SyncSynced,
		})
	})
}

// InsertConflict implements calsync.Store.
func (s *Store) InsertConflict(ctx context.Context, c *model.CalendarConflict) (bool, error) {
	const query = `
		INSERT INTO calendar_conflicts (integration_id, event_id, external_id, local_snapshot, remote_snapshot, detected_at)
		SELECT $1, $2, $3, $4, $5, $6
		WHERE NOT EXISTS (
			SELECT 1 FROM calendar_conflicts
			WHERE integration_id = $1 AND external_id = $3 AND resolved_at IS NULL
		)
		RETURNING id`

	err := s.db.GetContext(ctx, &c.ID, query,
		c.IntegrationID, c.EventID, c.ExternalID, []byte(c.LocalSnapshot), []byte(c.RemoteSnapshot), c.DetectedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert conflict: %w", err)
	}
	return true, nil
}

// RecentSyncEvents returns the newest log rows of an integration.
func (s *Store) RecentSyncEvents(ctx context.Context, integrationID string, limit int) ([]model.CalendarSyncEvent, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + syncColumns + ` FROM calendar_sync_events
		WHERE integration_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`

	rows := []model.CalendarSyncEvent{}
	if err := s.db.SelectContext(ctx, &rows, query, integrationID, limit); err != nil {
		return nil, fmt.Errorf("list sync events: %w", err)
	}
	return rows, nil
}

func (s *Store) OpenConflicts(ctx context.Context, integrationID string) ([]model.CalendarConflict, error) {
	query := `SELECT ` + conflictColumns + ` FROM calendar_conflicts
		WHERE integration_id = $1 AND resolved_at IS NULL ORDER BY detected_at DESC`

	conflicts := []model.CalendarConflict{}
	if err := s.db.SelectContext(ctx, &conflicts, query, integrationID); err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	return conflicts, nil
}

func (s *Store) Conflict(ctx context.Context, id string) (*model.CalendarConflict, error) {
	var c model.CalendarConflict
	err := s.db.GetContext(ctx, &c, `SELECT `+conflictColumns+` FROM calendar_conflicts WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ResolveConflict closes c. TAKE_REMOTE also copies the remote snapshot onto the
// local event and logs it as an import update, all in one transaction. KEEP_LOCAL
// leaves the event alone so the next export overwrites the remote copy.
func (s *Store) ResolveConflict(ctx context.Context, c *model.CalendarConflict, resolution enum.ConflictResolution, at time.Time) error {
	var remote model.EventSnapshot
	if resolution == enum.ResolveTakeRemote {
		if err := json.Unmarshal(c.RemoteSnapshot, &remote); err != nil {
			return fmt.Errorf("decode remote snapshot: %w", err)
		}
	}

	return database.Transaction(ctx, s.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE calendar_conflicts SET resolved_at = $2, resolution = $3 WHERE id = $1 AND resolved_at IS NULL`,
			c.ID, at, resolution)
		if err != nil {
			return fmt.Errorf("resolve conflict: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrAlreadyResolved
		}

		if resolution != enum.ResolveTakeRemote {
			return nil
		}

		const apply = `
			UPDATE events SET title = $2, description = $3, start_date = $4, end_date = $5,
				location = NULLIF($6, ''), updated_at = NOW()
			WHERE id = $1`
		if _, err := tx.ExecContext(ctx, apply,
			c.EventID, remote.Title, remote.Description, remote.StartDate, remote.EndDate, remote.Location,
		); err != nil {
			return fmt.Errorf("apply remote snapshot: %w", err)
		}

		externalID := c.ExternalID
		return insertSyncRow(ctx, tx, &model.CalendarSyncEvent{
			IntegrationID: c.IntegrationID,
			EventID:       &c.EventID,
			ExternalID:    &externalID,
			Operation:     enum.SyncOpUpdate,
			Direction:     enum.SyncImport,
			Status:        enum.SyncSynced,
		})
	})
}
