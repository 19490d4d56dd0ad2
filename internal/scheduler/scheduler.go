// Package scheduler runs calendar sync for every enabled integration on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/fazamuttaqien/eventcal/internal/calsync"
	"github.com/fazamuttaqien/eventcal/internal/model"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultSchedule = "*/15 * * * *"

type IntegrationSource interface {
	EnabledIntegrations(ctx context.Context) ([]model.CalendarIntegration, error)
}

type Syncer interface {
	Sync(ctx context.Context, integration model.CalendarIntegration, direction enum.SyncDirection, opts calsync.Options) (calsync.Summary, error)
}

// Result counts the integrations handled by one pass.
type Result struct {
	Synced  int `json:"synced"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type Scheduler struct {
	source  IntegrationSource
	syncer  Syncer
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration
}

// New parses schedule (standard five-field cron, or a descriptor like "@every 10m").
// A pass that is still running when the next tick fires makes that tick a no-op.
func New(schedule string, source IntegrationSource, syncer Syncer, logger *zap.Logger) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scheduler{
		source:  source,
		syncer:  syncer,
		logger:  logger.Named("scheduler"),
		timeout: 10 * time.Minute,
	}

	cl := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("sync scheduler started")
	s.cron.Start()
}

// Stop prevents new passes and waits for a running one until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("sync scheduler stop timed out")
	}
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("scheduled sync pass failed", zap.Error(err))
	}
}

// RunOnce syncs every enabled integration bidirectionally, one at a time. Integrations
// already being synced elsewhere are skipped; other failures are logged and the pass
// moves on.
func (s *Scheduler) RunOnce(ctx context.Context) (Result, error) {
	var res Result

	integrations, err := s.source.EnabledIntegrations(ctx)
	if err != nil {
		return res, err
	}

	for _, integration := range integrations {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		log := s.logger.With(zap.String("integration_id", integration.ID))
		summary, err := s.syncer.Sync(ctx, integration, enum.SyncBidirectional, calsync.Options{})
		switch {
		case errors.Is(err, calsync.ErrSyncInProgress):
			res.Skipped++
			log.Debug("sync already running, skipping")
		case err != nil:
			res.Failed++
			log.Warn("scheduled sync failed", zap.Error(err))
		default:
			res.Synced++
			log.Info("scheduled sync finished",
				zap.Int("imported", summary.Imported),
				zap.Int("exported", summary.Exported),
				zap.Int("conflicts", summary.Conflicts),
				zap.Int("errors", len(summary.Errors)),
			)
		}
	}

	return res, nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
