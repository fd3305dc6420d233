package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fundme-labs/fundme/internal/funding"
)

// RegisterFeedRoutes wires mock price feed administration.
func RegisterFeedRoutes(r fiber.Router, h *funding.Handler, g Guard) {
	group := r.Group("/feeds")
	group.Post("", g.Limit("feeds"), h.CreateFeed)
	group.Get("/:ref", h.GetFeed)
	group.Put("/:ref/answer", g.Limit("feeds"), h.UpdateFeedAnswer)
}
