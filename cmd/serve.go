package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fazamuttaqien/eventcal/internal/controller"
	"github.com/fazamuttaqien/eventcal/internal/presenter"
	"github.com/fazamuttaqien/eventcal/internal/router"
	"github.com/fazamuttaqien/eventcal/internal/scheduler"
	pkgJwt "github.com/fazamuttaqien/eventcal/pkg/jwt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	oauthStateTTL   = 10 * time.Minute
	shutdownTimeout = 15 * time.Second
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background sync scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context())
		},
	}
}

func (c *cli) serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := c.cfg
	log := c.logger

	a, err := c.bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close(log)

	signer := pkgJwt.NewSigner(cfg.JWT.Secret, cfg.JWT.Expiration)
	controllers, err := controller.New(controller.Deps{
		Store:       a.store,
		Syncer:      a.reconciler,
		Expander:    a.expander,
		Signer:      signer,
		StateSigner: pkgJwt.NewSigner(cfg.JWT.Secret+".oauth-state", oauthStateTTL),
		OAuth:       a.oauth,
		FrontendURL: cfg.FrontendURL,
	})
	if err != nil {
		return fmt.Errorf("build controllers: %w", err)
	}

	p := presenter.New(controllers, signer, a.metrics, log)
	p.AllowedOrigins = cfg.FrontendOrigins
	p.Ping = a.db.PingContext

	var sched *scheduler.Scheduler
	if cfg.Sync.Enabled {
		sched, err = scheduler.New(cfg.Sync.Cron, a.store, a.reconciler, log)
		if err != nil {
			return fmt.Errorf("build scheduler: %w", err)
		}
		sched.Start()
		log.Info("sync scheduler started", zap.String("cron", cfg.Sync.Cron))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.New(p),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
