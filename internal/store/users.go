package store

import (
	"context"
	"fmt"

	"github.com/fazamuttaqien/eventcal/internal/model"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
)

const userColumns = `id, name, username, email, password, tier, created_at, updated_at`

// CreateUser inserts u and fills in the generated columns.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (name, username, email, password, tier)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns

	if u.Tier == "" {
		u.Tier = enum.TierFree
	}
	err := s.db.GetContext(ctx, u, query, u.Name, u.Username, u.Email, u.Password, u.Tier)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) UserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}
