package api

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"go.uber.org/zap"
)

type Options struct {
	Service MatchingService
	Logger  *zap.Logger
	// Metrics is served on /metrics and records request counts when set.
	Metrics interface {
		HTTPObserver
		Handler() http.Handler
	}
	// Health is called by /healthz; nil means always healthy.
	Health func(ctx context.Context) error
}

// NewApp wires the routes and middleware of the HTTP API.
func NewApp(opts Options) *fiber.App {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{AppName: "mentor-ranker"})

	var observer HTTPObserver
	if opts.Metrics != nil {
		observer = opts.Metrics
	}
	app.Use(AccessLogMiddleware(logger, observer))
	app.Use(ErrorMiddleware(logger))

	app.Get("/healthz", func(c fiber.Ctx) error {
		if opts.Health != nil {
			if err := opts.Health(c.Context()); err != nil {
				return NewAppError(fiber.StatusServiceUnavailable, "", nil, err)
			}
		}
		return Success(c, fiber.StatusOK, MessageOK, nil)
	})

	if opts.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(opts.Metrics.Handler()))
	}

	NewMatchHandler(opts.Service).RegisterRoutes(app.Group("/api/v1"))

	return app
}
