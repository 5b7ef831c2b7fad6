package http

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/picktime/picktime-api/internal/api/http/handlers"
	"github.com/picktime/picktime-api/internal/auth"
	"github.com/picktime/picktime-api/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	BasePath       string
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Users          *handlers.UsersHandler
	Verification   *handlers.VerificationHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        http.Handler
	MetricsPath    string
}

// PublicRoutes lists the method and path pairs the gate never inspects.
func PublicRoutes(basePath string) []auth.PublicRoute {
	return []auth.PublicRoute{
		{Method: fiber.MethodPost, Path: basePath + "/login"},
		{Method: fiber.MethodPost, Path: basePath + "/reissue"},
		{Method: fiber.MethodPost, Path: basePath + "/user"},
		{Method: fiber.MethodPost, Path: basePath + "/verification/email"},
		{Method: fiber.MethodPost, Path: basePath + "/verification/check"},
	}
}

// RegisterRoutes wires HTTP routes. Health and metrics sit outside the
// gated API group.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	if cfg.Health != nil {
		app.Get("/health/live", cfg.Health.Live)
		app.Get("/health/ready", cfg.Health.Ready)
	}
	if cfg.Metrics != nil && cfg.MetricsPath != "" {
		app.Get(cfg.MetricsPath, adaptor.HTTPHandler(cfg.Metrics))
	}

	api := app.Group(cfg.BasePath, cfg.AuthMiddleware.Handle)

	api.Post("/login", cfg.Auth.Login)
	api.Post("/reissue", cfg.Auth.Reissue)
	api.Post("/logout", cfg.Auth.Logout)

	api.Post("/user", cfg.Users.Register)
	api.Post("/verification/email", cfg.Verification.RequestEmail)
	api.Post("/verification/check", cfg.Verification.Check)

	signedIn := auth.RequireAuthenticated()
	api.Get("/user", signedIn, cfg.Users.Me)
	api.Post("/user/password/check", signedIn, cfg.Users.CheckPassword)
	api.Get("/admin/ping", auth.RequireRole(domain.RoleAdmin), cfg.Users.AdminPing)
}
