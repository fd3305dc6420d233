package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fundme-labs/fundme/internal/identity"
)

// RegisterIdentityRoutes wires identity registration and lookup.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler, g Guard) {
	r.Post("/identities", g.Limit("register"), h.Register)
	r.Get("/identities/:address", h.Get)
}
