package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/theopensource-company/playrbase-auth/internal/api/http/handlers"
	"github.com/theopensource-company/playrbase-auth/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health      *handlers.HealthHandler
	MagicLink   *handlers.MagicLinkHandler
	Token       *handlers.TokenHandler
	Passkey     *handlers.PasskeyHandler
	Birthdate   *handlers.BirthdateHandler
	EmailChange *handlers.EmailChangeHandler
	Session     *auth.SessionMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/magic-link", cfg.MagicLink.Start)
	authGroup.Get("/magic-link", cfg.MagicLink.Verify)
	authGroup.Put("/magic-link", cfg.MagicLink.Complete)

	authGroup.Get("/token", cfg.Session.Require, cfg.Token.Introspect)
	authGroup.Delete("/token", cfg.Token.Clear)

	authGroup.Get("/passkey/challenge", cfg.Session.Optional, cfg.Passkey.Challenge)
	authGroup.Post("/passkey/register", cfg.Session.Require, cfg.Passkey.Register)
	authGroup.Post("/passkey/authenticate", cfg.Passkey.Authenticate)

	authGroup.Post("/change-email", cfg.Session.Require, cfg.EmailChange.Request)
	authGroup.Get("/change-email", cfg.EmailChange.Confirm)

	birthdate := api.Group("/birthdate", cfg.Session.Optional)
	birthdate.Post("/permit", cfg.Birthdate.RequestPermit)
	birthdate.Post("/permit/validate", cfg.Birthdate.ValidatePermit)
}
