package database

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Retry configuration parameters
const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
	backoffFactor  = 2.0
	jitterFactor   = 0.2
	maxAttempts    = 10
)

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns int
	MaxIdleConns int
}

// DB represents the database connection
type DB struct {
	*sqlx.DB
}

// New connects to Postgres, retrying with jittered exponential backoff until the
// context is cancelled or the attempt budget runs out.
func New(ctx context.Context, url string, opts Options, logger *zap.Logger) (*DB, error) {
	if url == "" {
		return nil, errors.New("database URL must be provided")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	backoff := initialBackoff
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		logger.Info("connecting to postgres", zap.Int("attempt", attempt))

		db, err := connect(ctx, url, opts)
		if err == nil {
			logger.Info("connected to postgres", zap.Int("attempt", attempt))
			return &DB{db}, nil
		}
		lastErr = err
		logger.Warn("postgres connection failed", zap.Error(err), zap.Int("attempt", attempt))

		select {
		case <-ctx.Done():
			return nil, errors.Join(ctx.Err(), lastErr)
		case <-time.After(calculateBackoff(backoff)):
		}
		backoff = min(time.Duration(float64(backoff)*backoffFactor), maxBackoff)
	}

	return nil, lastErr
}

func connect(ctx context.Context, url string, opts Options) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, err
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// calculateBackoff adds jitter to avoid the thundering herd problem
func calculateBackoff(backoff time.Duration) time.Duration {
	jitter := float64(backoff) * jitterFactor
	return backoff + time.Duration(rand.Float64()*jitter)
}

// Transaction executes fn within a transaction, rolling back on error or panic.
func Transaction(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}

	return tx.Commit()
}
