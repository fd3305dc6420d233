package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fundme-labs/fundme/internal/funding"
)

// RegisterContractRoutes wires contract deployment, contributions,
// withdrawals and the read-only views. Mutations require caller
// credentials and an Idempotency-Key when Redis is configured.
func RegisterContractRoutes(r fiber.Router, h *funding.Handler, g Guard) {
	group := r.Group("/contracts")
	group.Post("", g.Caller, g.Limit("deploy"), g.Idempotency, h.Deploy)
	group.Get("/:id", h.Get)
	group.Get("/:id/quote", h.Quote)
	group.Get("/:id/funders/:index", h.Funder)
	group.Get("/:id/amount-funded/:address", h.AmountFunded)
	group.Post("/:id/fund", g.Caller, g.Limit("fund"), g.Idempotency, h.Fund)
	group.Post("/:id/withdraw", g.Caller, g.Limit("withdraw"), g.Idempotency, h.Withdraw)
	group.Post("/:id/cheaper-withdraw", g.Caller, g.Limit("withdraw"), g.Idempotency, h.CheaperWithdraw)
}
