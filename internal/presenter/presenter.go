package presenter

import (
	"context"

	"github.com/fazamuttaqien/eventcal/internal/controller"
	"github.com/fazamuttaqien/eventcal/internal/metrics"
	pkgJwt "github.com/fazamuttaqien/eventcal/pkg/jwt"
	"go.uber.org/zap"
)

// Presenter bundles what the router needs to mount the API.
type Presenter struct {
	Controllers    *controller.Controller
	Signer         *pkgJwt.Signer
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	AllowedOrigins []string
	// Ping reports whether the database is reachable; nil skips the check.
	Ping func(ctx context.Context) error
}

func New(controllers *controller.Controller, signer *pkgJwt.Signer, m *metrics.Metrics, logger *zap.Logger) Presenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Presenter{
		Controllers: controllers,
		Signer:      signer,
		Metrics:     m,
		Logger:      logger,
	}
}
