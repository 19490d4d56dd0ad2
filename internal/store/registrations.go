package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fazamuttaqien/eventcal/internal/model"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
)

const registrationColumns = `id, event_id, user_id, status, created_at`

// Register signs userID up for eventID. A cancelled registration is revived;
// an active one yields ErrDuplicate.
func (s *Store) Register(ctx context.Context, eventID, userID string, status enum.RegistrationStatus) (*model.Registration, error) {
	query := `
		INSERT INTO event_registrations (event_id, user_id, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id, user_id) DO UPDATE
			SET status = EXCLUDED.status, created_at = NOW()
			WHERE event_registrations.status = 'CANCELLED'
		RETURNING ` + registrationColumns

	var reg model.Registration
	err := s.db.GetContext(ctx, &reg, query, eventID, userID, status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("register for event: %w", err)
	}
	return &reg, nil
}

func (s *Store) CancelRegistration(ctx context.Context, eventID, userID string) error {
	const query = `
		UPDATE event_registrations SET status = 'CANCELLED'
		WHERE event_id = $1 AND user_id = $2 AND status <> 'CANCELLED'`

	res, err := s.db.ExecContext(ctx, query, eventID, userID)
	if err != nil {
		return fmt.Errorf("cancel registration: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check cancel rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// IsRegistered reports whether userID holds a non-cancelled registration for eventID.
func (s *Store) IsRegistered(ctx context.Context, eventID, userID string) (bool, error) {
	const query = `
		SELECT EXISTS (SELECT 1 FROM event_registrations
		WHERE event_id = $1 AND user_id = $2 AND status <> 'CANCELLED')`

	var ok bool
	if err := s.db.GetContext(ctx, &ok, query, eventID, userID); err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return ok, nil
}
