// Package store persists users, events, registrations and calendar integrations in Postgres.
package store

import (
	"database/sql"
	"errors"

	"github.com/fazamuttaqien/eventcal/pkg/crypto"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a unique constraint rejects the write.
	ErrDuplicate = errors.New("store: duplicate")
	// ErrHasRegistrations blocks deleting an event that people signed up for.
	ErrHasRegistrations = errors.New("store: event has active registrations")
	ErrAlreadyResolved  = errors.New("store: conflict already resolved")
)

const uniqueViolation = "23505"

// Store wraps the database handle. OAuth tokens pass through cipher on the way
// in and out.
type Store struct {
	db     *sqlx.DB
	cipher *crypto.TokenCipher
}

func New(db *sqlx.DB, cipher *crypto.TokenCipher) *Store {
	if cipher == nil {
		cipher = &crypto.TokenCipher{}
	}
	return &Store{db: db, cipher: cipher}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
