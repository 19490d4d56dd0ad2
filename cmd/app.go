package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fazamuttaqien/eventcal/database"
	"github.com/fazamuttaqien/eventcal/internal/calsync"
	"github.com/fazamuttaqien/eventcal/internal/metrics"
	"github.com/fazamuttaqien/eventcal/internal/recurrence"
	"github.com/fazamuttaqien/eventcal/internal/store"
	"github.com/fazamuttaqien/eventcal/pkg/crypto"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// app is the wired object graph shared by serve and sync.
type app struct {
	db         *database.DB
	redis      *redis.Client
	store      *store.Store
	metrics    *metrics.Metrics
	expander   *recurrence.Expander
	oauth      *oauth2.Config
	reconciler *calsync.Reconciler
}

func (c *cli) bootstrap(ctx context.Context) (*app, error) {
	cfg := c.cfg
	log := c.logger

	db, err := database.New(ctx, cfg.Database.URL, database.Options{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	cipher, err := crypto.NewTokenCipher(cfg.TokenEncryptionKey)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("token cipher: %w", err)
	}

	a := &app{
		db:      db,
		store:   store.New(db.DB, cipher),
		metrics: metrics.New(),
		oauth:   calsync.GoogleOAuthConfig(cfg.Google),
	}
	a.expander = recurrence.NewExpander(log, a.metrics.ObserveOccurrences)

	var locker calsync.Locker = calsync.NewLocalLocker()
	if cfg.Redis.Enabled() {
		client, err := calsync.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.close(log)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redis = client
		locker = calsync.NewRedisLocker(client, log)
		log.Info("using redis sync lock", zap.String("addr", cfg.Redis.Addr))
	}

	remotes := calsync.NewGoogleRemotes(cfg.Google.CalendarEndpoint, calsync.BreakerSettings{
		Failures: cfg.Sync.BreakerFailures,
		Timeout:  cfg.Sync.BreakerTimeout,
	}, log)

	a.reconciler = calsync.NewReconciler(a.store, remotes, calsync.NewOAuthRefresher(a.oauth),
		calsync.WithLocker(locker),
		calsync.WithLockTTL(cfg.Sync.LockTTL),
		calsync.WithLogger(log),
		calsync.WithObserver(func(direction enum.SyncDirection, s calsync.Summary, err error, elapsed time.Duration) {
			a.metrics.ObserveSync(string(direction), s.Imported, s.Exported, s.Conflicts, len(s.Errors), err, elapsed)
		}),
	)
	return a, nil
}

func (a *app) close(log *zap.Logger) {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn("close redis", zap.Error(err))
		}
	}
	if err := a.db.Close(); err != nil {
		log.Warn("close database", zap.Error(err))
	}
}
