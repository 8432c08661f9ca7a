package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/link-access-service/internal/api/http/handlers"
	"github.com/spec-kit/link-access-service/internal/auth"
	"github.com/spec-kit/link-access-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Links          *handlers.LinksHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
	IssuerAPIKey   string
	RedeemPath     string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	app.Post("/links", auth.RequireAPIKey(cfg.IssuerAPIKey), cfg.Links.Issue)

	redeemPath := cfg.RedeemPath
	if redeemPath == "" {
		redeemPath = "/auth/link"
	}
	app.Get(redeemPath, cfg.Links.Redeem)

	app.Get("/auth/me", cfg.AuthMiddleware.Handle, cfg.Links.Me)
}
