package wallet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/fundme-labs/fundme/internal/fundme"
	"github.com/fundme-labs/fundme/internal/ledger"
)

// Handler exposes account endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an account handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type faucetRequest struct {
	Value string `json:"value"`
}

// Balance returns the wallet balance of an address.
func (h *Handler) Balance(c *fiber.Ctx) error {
	bal, err := h.service.Balance(c.UserContext(), c.Params("address"))
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(toResponse(bal))
}

// Faucet mints development funds.
func (h *Handler) Faucet(c *fiber.Ctx) error {
	var req faucetRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := fundme.ParseValue(req.Value)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	bal, err := h.service.Faucet(c.UserContext(), c.Params("address"), amount)
	if err != nil {
		switch {
		case errors.Is(err, ErrFaucetDisabled):
			return fiber.NewError(http.StatusForbidden, err.Error())
		case errors.Is(err, ledger.ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusCreated).JSON(toResponse(bal))
}

func toResponse(b Balance) fiber.Map {
	return fiber.Map{
		"address":       b.Address,
		"balance_wei":   b.Amount.String(),
		"balance_ether": fundme.FormatEther(b.Amount),
		"as_of":         b.AsOf,
	}
}
