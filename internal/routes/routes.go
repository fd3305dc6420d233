package routes

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/fundme-labs/fundme/internal/app"
	"github.com/fundme-labs/fundme/internal/funding"
	"github.com/fundme-labs/fundme/internal/identity"
	"github.com/fundme-labs/fundme/internal/middleware"
	"github.com/fundme-labs/fundme/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	App *app.App
	// AccessLog toggles the plain text fiber access log.
	AccessLog bool
}

// Setup configures middlewares and all application routes.
func Setup(router *fiber.App, d Deps) error {
	a := d.App
	if a == nil {
		return errors.New("routes: app is required")
	}
	router.Use(recover.New())
	router.Use(middleware.RequestID())
	if d.AccessLog {
		// [HH:MM:SS] 200 -  145ms METHOD /path
		router.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	router.Use(middleware.Audit(a.Logger))

	RegisterHealthRoutes(router, a.DB, a.Cache)

	api := router.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals(middleware.RequestIDLocal).(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	guard := Guard{
		Caller:      middleware.CallerAuth(a.Identities),
		Idempotency: func(c *fiber.Ctx) error { return c.Next() },
		Limit: func(scope string) fiber.Handler {
			return middleware.RateLimit(a.Cache, scope, a.Cfg.RateLimit)
		},
	}
	if a.Cache != nil {
		guard.Idempotency = middleware.Idempotency(a.Cache, a.Cfg.IdempotencyTTL, a.Logger)
	}

	RegisterIdentityRoutes(api, identity.NewHandler(a.Identities), guard)
	RegisterAccountRoutes(api, wallet.NewHandler(a.Wallets), guard, a.Cfg.FaucetEnabled)

	fundingHandler := funding.NewHandler(a.Funding)
	RegisterFeedRoutes(api, fundingHandler, guard)
	RegisterContractRoutes(api, fundingHandler, guard)
	return nil
}

// Guard bundles the per-route middlewares shared by the route files.
type Guard struct {
	Caller      fiber.Handler
	Idempotency fiber.Handler
	Limit       func(scope string) fiber.Handler
}
