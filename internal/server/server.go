package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fundme-labs/fundme/internal/app"
	"github.com/fundme-labs/fundme/internal/routes"
)

// Server wraps the Fiber application and the assembled services it serves.
type Server struct {
	router *fiber.App
	app    *app.App
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(a *app.App) (*Server, error) {
	router := fiber.New(fiber.Config{
		AppName:      a.Cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		// Addresses read from headers and params are kept past the handler.
		Immutable:             true,
		DisableStartupMessage: !a.Cfg.IsDevelopment(),
	})

	if err := routes.Setup(router, routes.Deps{App: a, AccessLog: a.Cfg.IsDevelopment()}); err != nil {
		return nil, err
	}

	return &Server{router: router, app: a}, nil
}

// Handler exposes the fiber app for in-process tests.
func (s *Server) Handler() *fiber.App {
	return s.router
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.router.Listen(s.app.Cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.router.ShutdownWithContext(ctx)
}
