package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/fundme-labs/fundme/internal/ledger"
)

const (
	addressBytes = 20
	secretBytes  = 16
	minSecretLen = 8
)

// AccountOpener provisions the wallet account of a new identity.
type AccountOpener interface {
	EnsureAccount(ctx context.Context, code string) error
}

// Service manages identity lifecycle.
type Service struct {
	repo     Repository
	accounts AccountOpener
	now      func() time.Time
}

// NewService creates a new identity service.
func NewService(repo Repository, accounts AccountOpener) *Service {
	return &Service{repo: repo, accounts: accounts, now: time.Now}
}

// NormalizeAddress lower-cases an address so lookups are case insensitive.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Register creates an identity with a fresh address and opens its wallet.
// The plaintext secret is returned once and never stored.
func (s *Service) Register(ctx context.Context, reg Registration) (Identity, string, error) {
	secret := reg.Secret
	if secret == "" {
		generated, err := randomHex(secretBytes)
		if err != nil {
			return Identity{}, "", err
		}
		secret = generated
	} else if len(secret) < minSecretLen {
		return Identity{}, "", ErrWeakSecret
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return Identity{}, "", err
	}
	raw, err := randomHex(addressBytes)
	if err != nil {
		return Identity{}, "", err
	}

	id := Identity{
		Address:    "0x" + raw,
		Label:      strings.TrimSpace(reg.Label),
		SecretHash: hash,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.Create(ctx, id); err != nil {
		return Identity{}, "", err
	}
	if err := s.accounts.EnsureAccount(ctx, ledger.WalletAccountCode(id.Address)); err != nil {
		return Identity{}, "", fmt.Errorf("open wallet: %w", err)
	}
	return id, secret, nil
}

// Authenticate verifies the secret presented for an address.
func (s *Service) Authenticate(ctx context.Context, address, secret string) (Identity, error) {
	id, err := s.repo.FindByAddress(ctx, NormalizeAddress(address))
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, err
	}
	if err := bcrypt.CompareHashAndPassword(id.SecretHash, []byte(secret)); err != nil {
		return Identity{}, ErrInvalidCredentials
	}
	return id, nil
}

// Lookup returns the identity registered under address.
func (s *Service) Lookup(ctx context.Context, address string) (Identity, error) {
	return s.repo.FindByAddress(ctx, NormalizeAddress(address))
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
