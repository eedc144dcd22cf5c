package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront/internal/api/http/handlers"
	"github.com/spec-kit/storefront/internal/auth"
	"github.com/spec-kit/storefront/internal/observability"
)

// AuthRouteConfig bundles dependencies of the auth service routes.
type AuthRouteConfig struct {
	Health  *handlers.HealthHandler
	Users   *handlers.UsersHandler
	Access  *auth.AuthMiddleware
	Refresh *auth.AuthMiddleware
	Metrics *observability.Metrics
}

// CatalogRouteConfig bundles dependencies of the catalog service routes.
type CatalogRouteConfig struct {
	Health  *handlers.HealthHandler
	Catalog *handlers.CatalogHandler
	Access  *auth.AuthMiddleware
	Metrics *observability.Metrics
}

func registerCommon(app *fiber.App, health *handlers.HealthHandler, metrics *observability.Metrics) {
	app.Get("/health/live", health.Live)
	app.Get("/health/ready", health.Ready)
	app.Get("/metrics", metrics.Handler())
}

// RegisterAuthRoutes wires the auth service HTTP routes.
func RegisterAuthRoutes(app *fiber.App, cfg AuthRouteConfig) {
	registerCommon(app, cfg.Health, cfg.Metrics)

	user := app.Group("/user")
	user.Post("/local/signup", cfg.Users.Signup)
	user.Post("/local/signin", cfg.Users.Signin)
	user.Post("/validate-token", cfg.Users.ValidateToken)
	user.Post("/refresh", cfg.Refresh.Handle, cfg.Users.Refresh)

	user.Get("", cfg.Access.Handle, cfg.Users.Me)
	user.Patch("", cfg.Access.Handle, cfg.Users.Update)
	user.Delete("", cfg.Access.Handle, cfg.Users.Delete)
	user.Post("/logout", cfg.Access.Handle, cfg.Users.Logout)
}

// RegisterCatalogRoutes wires the catalog service HTTP routes. Reads are
// public; mutations require a bearer token.
func RegisterCatalogRoutes(app *fiber.App, cfg CatalogRouteConfig) {
	registerCommon(app, cfg.Health, cfg.Metrics)

	catalog := app.Group("/catalog")
	catalog.Get("/user/:userId", cfg.Catalog.ListByUser)
	catalog.Get("/:id", cfg.Catalog.Get)

	catalog.Post("", cfg.Access.Handle, cfg.Catalog.Create)
	catalog.Patch("/:id", cfg.Access.Handle, cfg.Catalog.Update)
	catalog.Delete("/:id", cfg.Access.Handle, cfg.Catalog.Delete)
}
