package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fundme-labs/fundme/internal/identity"
)

const (
	CallerAddressHeader = "X-Caller-Address"
	CallerSecretHeader  = "X-Caller-Secret"

	// LocalCaller is the fiber.Ctx local holding the authenticated address.
	LocalCaller = "caller"
)

// Authenticator verifies an address/secret pair.
type Authenticator interface {
	Authenticate(ctx context.Context, address, secret string) (identity.Identity, error)
}

// CallerAuth resolves the calling identity from the caller headers and
// stores its canonical address in c.Locals(LocalCaller).
func CallerAuth(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		address := strings.TrimSpace(c.Get(CallerAddressHeader))
		secret := c.Get(CallerSecretHeader)
		if address == "" || secret == "" {
			return fiber.NewError(http.StatusUnauthorized, "missing caller credentials")
		}
		id, err := auth.Authenticate(c.UserContext(), address, secret)
		if err != nil {
			if errors.Is(err, identity.ErrInvalidCredentials) {
				return fiber.NewError(http.StatusUnauthorized, "invalid caller credentials")
			}
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		c.Locals(LocalCaller, id.Address)
		return c.Next()
	}
}
