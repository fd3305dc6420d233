package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fundme-labs/fundme/internal/identity"
	"github.com/fundme-labs/fundme/internal/ledger"
)

// ErrFaucetDisabled is returned outside development deployments.
var ErrFaucetDisabled = errors.New("faucet is disabled")

// Service exposes wallet balances and the development faucet.
type Service struct {
	store         ledger.Store
	faucetEnabled bool
}

// NewService builds a wallet service instance.
func NewService(store ledger.Store, faucetEnabled bool) *Service {
	return &Service{store: store, faucetEnabled: faucetEnabled}
}

// Balance returns the ledger balance held by address.
func (s *Service) Balance(ctx context.Context, address string) (Balance, error) {
	address = identity.NormalizeAddress(address)
	code := ledger.WalletAccountCode(address)
	amount, err := s.store.Balance(ctx, code)
	if err != nil {
		return Balance{}, err
	}
	return Balance{Address: address, AccountCode: code, Amount: amount, AsOf: time.Now().UTC()}, nil
}

// Faucet mints amount wei into the wallet of address.
func (s *Service) Faucet(ctx context.Context, address string, amount decimal.Decimal) (Balance, error) {
	if !s.faucetEnabled {
		return Balance{}, ErrFaucetDisabled
	}
	address = identity.NormalizeAddress(address)
	code := ledger.WalletAccountCode(address)
	total, err := s.store.Faucet(ctx, code, amount)
	if err != nil {
		return Balance{}, err
	}
	return Balance{Address: address, AccountCode: code, Amount: total, AsOf: time.Now().UTC()}, nil
}
