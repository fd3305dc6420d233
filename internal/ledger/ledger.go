package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested posting.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrTransferRejected indicates the destination account does not accept deposits.
	ErrTransferRejected = errors.New("transfer rejected by recipient")

	// ErrContractNotFound is returned when no contract exists for an identifier.
	ErrContractNotFound = errors.New("contract not found")

	// ErrContractExists is returned when a contract identifier is reused.
	ErrContractExists = errors.New("contract already exists")

	// ErrInvalidAmount rejects negative postings.
	ErrInvalidAmount = errors.New("amount must not be negative")
)

const (
	// FaucetAccountCode funds development wallets. It is the only account
	// allowed to carry a negative balance.
	FaucetAccountCode = "mint:faucet"

	// KindContribution, KindWithdrawal and KindFaucet label postings.
	KindContribution = "contribution"
	KindWithdrawal   = "withdrawal"
	KindFaucet       = "faucet"
)

// WalletAccountCode returns the account holding an identity's spendable funds.
func WalletAccountCode(address string) string {
	return "wallet:" + address
}

// ContractAccountCode returns the account holding a contract's balance.
func ContractAccountCode(contractID string) string {
	return "contract:" + contractID
}

// Contract is the persisted binding of a deployed funding contract.
type Contract struct {
	ID         string
	Owner      string
	PriceFeed  string
	MinimumUSD decimal.Decimal
	CreatedAt  time.Time
}

// Store defines the contract implemented by storage backends (memory, Postgres, SQLite).
type Store interface {
	// CreateContract persists a contract and opens its balance account.
	CreateContract(ctx context.Context, c Contract) error
	Contract(ctx context.Context, id string) (Contract, error)

	EnsureAccount(ctx context.Context, code string) error
	Balance(ctx context.Context, code string) (decimal.Decimal, error)
	// SetAcceptsDeposits toggles whether credits to the account succeed.
	SetAcceptsDeposits(ctx context.Context, code string, accepts bool) error
	// Faucet mints development funds into an account.
	Faucet(ctx context.Context, code string, amount decimal.Decimal) (decimal.Decimal, error)

	// Begin opens a transaction scoped to one contract. Operations on the
	// same contract are serialized until Commit or Rollback.
	Begin(ctx context.Context, contractID string) (Tx, error)
}

// Tx is a unit of work against one contract's storage. Nothing is visible
// to other transactions until Commit; Rollback discards every write.
type Tx interface {
	AmountFunded(ctx context.Context, funder string) (decimal.Decimal, error)
	SetAmountFunded(ctx context.Context, funder string, amount decimal.Decimal) error

	FunderCount(ctx context.Context) (int, error)
	FunderAt(ctx context.Context, index int) (string, error)
	Funders(ctx context.Context) ([]string, error)
	AppendFunder(ctx context.Context, funder string) error
	ClearFunders(ctx context.Context) error

	Balance(ctx context.Context, code string) (decimal.Decimal, error)
	// Transfer moves amount between accounts as a balanced posting.
	Transfer(ctx context.Context, fromCode, toCode, kind string, amount decimal.Decimal) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
