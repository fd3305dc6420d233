// Package fundme implements the funding contract: contributions gated by a
// USD minimum converted through a price oracle, per-funder accounting, and
// an owner-only withdrawal that drains the balance and resets the ledger.
//
// Every operation runs inside a single ledger.Tx. A failure anywhere before
// Commit rolls the whole operation back, so callers never observe a
// partially applied contribution or withdrawal.
package fundme

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fundme-labs/fundme/internal/ledger"
	"github.com/fundme-labs/fundme/internal/pricefeed"
)

var (
	// ErrInsufficientContribution is returned when the USD value of a
	// contribution is below the contract minimum.
	ErrInsufficientContribution = errors.New("fundme: insufficient contribution")

	// ErrNotOwner is returned when a withdrawal is attempted by anyone but the owner.
	ErrNotOwner = errors.New("fundme: caller is not the owner")

	// ErrIndexOutOfRange is returned by Funder for positions past the end of the funders list.
	ErrIndexOutOfRange = errors.New("fundme: funder index out of range")

	// ErrTransferFailed wraps a failed payout; the withdrawal is rolled back.
	ErrTransferFailed = errors.New("fundme: transfer failed")

	// ErrInvalidAmount rejects negative or fractional wei amounts.
	ErrInvalidAmount = errors.New("fundme: amount must be a non-negative integer number of wei")

	// ErrInvalidCaller rejects an empty caller identity.
	ErrInvalidCaller = errors.New("fundme: caller identity is required")

	// ErrPriceFeedUnavailable wraps oracle failures during a contribution.
	ErrPriceFeedUnavailable = errors.New("fundme: price feed unavailable")
)

// DefaultMinimumUSD is 50 USD expressed with 18 decimals.
var DefaultMinimumUSD = decimal.New(50, 18)

// Ledger is one deployed funding contract. Owner, price feed and minimum are
// fixed at deployment; all mutable state lives in the store.
type Ledger struct {
	id         string
	owner      string
	priceFeed  string
	minimumUSD decimal.Decimal
	createdAt  time.Time

	store ledger.Store
	feeds pricefeed.Resolver
}

// Receipt describes an accepted contribution.
type Receipt struct {
	ContractID  string
	Funder      string
	Amount      decimal.Decimal
	TotalFunded decimal.Decimal
	USDValue    decimal.Decimal
	Price       pricefeed.Price
	Position    int
}

// Withdrawal describes a completed withdrawal.
type Withdrawal struct {
	ContractID     string
	Owner          string
	Amount         decimal.Decimal
	FundersCleared int
}

// Quote is the USD value of an amount at the current oracle price.
type Quote struct {
	Amount   decimal.Decimal
	USDValue decimal.Decimal
	Price    pricefeed.Price
	Accepted bool
}

type deployOptions struct {
	id         string
	minimumUSD decimal.Decimal
	now        func() time.Time
}

// Option customizes Deploy.
type Option func(*deployOptions)

// WithMinimumUSD sets the minimum contribution in whole dollars.
func WithMinimumUSD(usd decimal.Decimal) Option {
	return func(o *deployOptions) {
		o.minimumUSD = usd.Shift(USDDecimals)
	}
}

// WithID fixes the contract identifier instead of generating one.
func WithID(id string) Option {
	return func(o *deployOptions) {
		o.id = id
	}
}

// WithClock overrides the deployment timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *deployOptions) {
		o.now = now
	}
}

// Deploy creates a contract owned by owner and bound to the feed reference.
// The feed must resolve at deployment time.
func Deploy(ctx context.Context, store ledger.Store, feeds pricefeed.Resolver, owner, feedRef string, opts ...Option) (*Ledger, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, ErrInvalidCaller
	}
	if _, err := feeds.Resolve(ctx, feedRef); err != nil {
		return nil, fmt.Errorf("resolve price feed %q: %w", feedRef, err)
	}

	o := deployOptions{
		id:         uuid.NewString(),
		minimumUSD: DefaultMinimumUSD,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.minimumUSD.IsNegative() {
		return nil, fmt.Errorf("minimum usd must not be negative")
	}

	c := ledger.Contract{
		ID:         o.id,
		Owner:      owner,
		PriceFeed:  feedRef,
		MinimumUSD: o.minimumUSD,
		CreatedAt:  o.now().UTC(),
	}
	if err := store.EnsureAccount(ctx, ledger.WalletAccountCode(owner)); err != nil {
		return nil, fmt.Errorf("open owner wallet: %w", err)
	}
	if err := store.CreateContract(ctx, c); err != nil {
		return nil, fmt.Errorf("create contract: %w", err)
	}
	return fromContract(c, store, feeds), nil
}

// Load reopens a deployed contract.
func Load(ctx context.Context, store ledger.Store, feeds pricefeed.Resolver, id string) (*Ledger, error) {
	c, err := store.Contract(ctx, id)
	if err != nil {
		return nil, err
	}
	return fromContract(c, store, feeds), nil
}

func fromContract(c ledger.Contract, store ledger.Store, feeds pricefeed.Resolver) *Ledger {
	return &Ledger{
		id:         c.ID,
		owner:      c.Owner,
		priceFeed:  c.PriceFeed,
		minimumUSD: c.MinimumUSD,
		createdAt:  c.CreatedAt,
		store:      store,
		feeds:      feeds,
	}
}

// ID returns the contract identifier.
func (l *Ledger) ID() string { return l.id }

// Owner returns the identity allowed to withdraw.
func (l *Ledger) Owner() string { return l.owner }

// PriceFeed returns the oracle reference bound at deployment.
func (l *Ledger) PriceFeed() string { return l.priceFeed }

// MinimumUSD returns the contribution floor, scaled by 1e18.
func (l *Ledger) MinimumUSD() decimal.Decimal { return l.minimumUSD }

// CreatedAt returns the deployment time in UTC.
func (l *Ledger) CreatedAt() time.Time { return l.createdAt }

func (l *Ledger) accountCode() string {
	return ledger.ContractAccountCode(l.id)
}

// Quote converts amount to USD at the current price without touching state.
func (l *Ledger) Quote(ctx context.Context, amount decimal.Decimal) (Quote, error) {
	if err := validateAmount(amount); err != nil {
		return Quote{}, err
	}
	price, usd, err := l.convert(ctx, amount)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Amount: amount, USDValue: usd, Price: price, Accepted: !usd.LessThan(l.minimumUSD)}, nil
}

func (l *Ledger) convert(ctx context.Context, amount decimal.Decimal) (pricefeed.Price, decimal.Decimal, error) {
	oracle, err := l.feeds.Resolve(ctx, l.priceFeed)
	if err != nil {
		return pricefeed.Price{}, decimal.Zero, fmt.Errorf("%w: %w", ErrPriceFeedUnavailable, err)
	}
	price, err := oracle.Latest(ctx)
	if err != nil {
		return pricefeed.Price{}, decimal.Zero, fmt.Errorf("%w: %w", ErrPriceFeedUnavailable, err)
	}
	return price, ConversionRate(amount, price), nil
}

// Fund records a contribution of amount wei from caller. The caller's wallet
// is debited in the same transaction that updates the funders list.
func (l *Ledger) Fund(ctx context.Context, caller string, amount decimal.Decimal) (Receipt, error) {
	if caller == "" {
		return Receipt{}, ErrInvalidCaller
	}
	if err := validateAmount(amount); err != nil {
		return Receipt{}, err
	}

	// The oracle is read before the transaction opens so a slow feed never
	// holds store locks. The price is fresh for every call either way.
	price, usd, err := l.convert(ctx, amount)
	if err != nil {
		return Receipt{}, err
	}
	if usd.LessThan(l.minimumUSD) {
		return Receipt{}, ErrInsufficientContribution
	}

	tx, err := l.store.Begin(ctx, l.id)
	if err != nil {
		return Receipt{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := tx.Transfer(ctx, ledger.WalletAccountCode(caller), l.accountCode(), ledger.KindContribution, amount); err != nil {
		return Receipt{}, err
	}

	previous, err := tx.AmountFunded(ctx, caller)
	if err != nil {
		return Receipt{}, err
	}
	total := previous.Add(amount)
	if err := tx.SetAmountFunded(ctx, caller, total); err != nil {
		return Receipt{}, err
	}

	position, err := tx.FunderCount(ctx)
	if err != nil {
		return Receipt{}, err
	}
	if err := tx.AppendFunder(ctx, caller); err != nil {
		return Receipt{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Receipt{}, err
	}

	return Receipt{
		ContractID:  l.id,
		Funder:      caller,
		Amount:      amount,
		TotalFunded: total,
		USDValue:    usd,
		Price:       price,
		Position:    position,
	}, nil
}

// Withdraw pays the whole balance to the owner and resets every funder. The
// reset loop reads the funders list from storage on each iteration.
func (l *Ledger) Withdraw(ctx context.Context, caller string) (Withdrawal, error) {
	return l.withdraw(ctx, caller, resetFromStorage)
}

// CheaperWithdraw behaves exactly like Withdraw but copies the funders list
// once before resetting amounts.
func (l *Ledger) CheaperWithdraw(ctx context.Context, caller string) (Withdrawal, error) {
	return l.withdraw(ctx, caller, resetFromSnapshot)
}

type resetFunc func(ctx context.Context, tx ledger.Tx) (int, error)

func resetFromStorage(ctx context.Context, tx ledger.Tx) (int, error) {
	i := 0
	for ; ; i++ {
		n, err := tx.FunderCount(ctx)
		if err != nil {
			return 0, err
		}
		if i >= n {
			break
		}
		funder, err := tx.FunderAt(ctx, i)
		if err != nil {
			return 0, err
		}
		if err := tx.SetAmountFunded(ctx, funder, decimal.Zero); err != nil {
			return 0, err
		}
	}
	return i, nil
}

func resetFromSnapshot(ctx context.Context, tx ledger.Tx) (int, error) {
	funders, err := tx.Funders(ctx)
	if err != nil {
		return 0, err
	}
	for _, funder := range funders {
		if err := tx.SetAmountFunded(ctx, funder, decimal.Zero); err != nil {
			return 0, err
		}
	}
	return len(funders), nil
}

func (l *Ledger) withdraw(ctx context.Context, caller string, reset resetFunc) (Withdrawal, error) {
	if caller != l.owner {
		return Withdrawal{}, ErrNotOwner
	}

	tx, err := l.store.Begin(ctx, l.id)
	if err != nil {
		return Withdrawal{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	cleared, err := reset(ctx, tx)
	if err != nil {
		return Withdrawal{}, err
	}
	if err := tx.ClearFunders(ctx); err != nil {
		return Withdrawal{}, err
	}

	balance, err := tx.Balance(ctx, l.accountCode())
	if err != nil {
		return Withdrawal{}, err
	}
	if balance.IsPositive() {
		if err := tx.Transfer(ctx, l.accountCode(), ledger.WalletAccountCode(l.owner), ledger.KindWithdrawal, balance); err != nil {
			return Withdrawal{}, fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Withdrawal{}, err
	}

	return Withdrawal{
		ContractID:     l.id,
		Owner:          l.owner,
		Amount:         balance,
		FundersCleared: cleared,
	}, nil
}

// AmountFunded returns the cumulative contribution of funder, zero if unknown.
func (l *Ledger) AmountFunded(ctx context.Context, funder string) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := l.view(ctx, func(tx ledger.Tx) error {
		var err error
		amount, err = tx.AmountFunded(ctx, funder)
		return err
	})
	return amount, err
}

// Funder returns the identity recorded at position index.
func (l *Ledger) Funder(ctx context.Context, index int) (string, error) {
	var funder string
	err := l.view(ctx, func(tx ledger.Tx) error {
		n, err := tx.FunderCount(ctx)
		if err != nil {
			return err
		}
		if index < 0 || index >= n {
			return ErrIndexOutOfRange
		}
		funder, err = tx.FunderAt(ctx, index)
		return err
	})
	return funder, err
}

// FunderCount returns the number of recorded contributions since the last withdrawal.
func (l *Ledger) FunderCount(ctx context.Context) (int, error) {
	var n int
	err := l.view(ctx, func(tx ledger.Tx) error {
		var err error
		n, err = tx.FunderCount(ctx)
		return err
	})
	return n, err
}

// Funders returns a copy of the funders list.
func (l *Ledger) Funders(ctx context.Context) ([]string, error) {
	var funders []string
	err := l.view(ctx, func(tx ledger.Tx) error {
		var err error
		funders, err = tx.Funders(ctx)
		return err
	})
	return funders, err
}

// Balance returns the contract's held balance.
func (l *Ledger) Balance(ctx context.Context) (decimal.Decimal, error) {
	return l.store.Balance(ctx, l.accountCode())
}

func (l *Ledger) view(ctx context.Context, fn func(tx ledger.Tx) error) error {
	tx, err := l.store.Begin(ctx, l.id)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck
	return fn(tx)
}

func validateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() || !amount.IsInteger() {
		return ErrInvalidAmount
	}
	return nil
}
