package identity

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes identity endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Label  string `json:"label"`
	Secret string `json:"secret"`
}

type registerResponse struct {
	Address   string    `json:"address"`
	Label     string    `json:"label,omitempty"`
	Secret    string    `json:"secret"`
	CreatedAt time.Time `json:"created_at"`
}

// Register provisions a new identity and its wallet account.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	id, secret, err := h.service.Register(c.UserContext(), Registration{Label: req.Label, Secret: req.Secret})
	if err != nil {
		if errors.Is(err, ErrWeakSecret) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return err
	}
	return c.Status(http.StatusCreated).JSON(registerResponse{
		Address:   id.Address,
		Label:     id.Label,
		Secret:    secret,
		CreatedAt: id.CreatedAt,
	})
}

type identityResponse struct {
	Address   string    `json:"address"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Get returns the public part of an identity.
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := h.service.Lookup(c.UserContext(), c.Params("address"))
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return err
	}
	return c.JSON(identityResponse{Address: id.Address, Label: id.Label, CreatedAt: id.CreatedAt})
}
