package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fundme-labs/fundme/internal/wallet"
)

// RegisterAccountRoutes wires wallet balance lookups and, on development
// deployments, the test faucet.
func RegisterAccountRoutes(r fiber.Router, h *wallet.Handler, g Guard, faucet bool) {
	group := r.Group("/accounts")
	group.Get("/:address/balance", h.Balance)
	if faucet {
		group.Post("/:address/faucet", g.Limit("faucet"), h.Faucet)
	}
}
