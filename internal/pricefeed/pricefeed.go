// Package pricefeed provides the read-only price oracles consulted by
// funding contracts, together with the registries that resolve a feed
// reference to an oracle.
package pricefeed

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrFeedNotFound is returned when a reference does not resolve to a feed.
	ErrFeedNotFound = errors.New("price feed not found")
	// ErrFeedExists is returned when creating a feed under a taken reference.
	ErrFeedExists = errors.New("price feed already exists")
	// ErrInvalidAnswer rejects non-integer or negative answers and bad decimals.
	ErrInvalidAnswer = errors.New("invalid price feed answer")
)

// MaxDecimals bounds the precision a feed may declare.
const MaxDecimals = 36

// Price is one oracle reading: Rate expressed with Decimals fractional digits.
type Price struct {
	Rate      decimal.Decimal
	Decimals  int32
	Round     uint64
	UpdatedAt time.Time
}

// Value returns the rate as a plain decimal, e.g. 2000 for 200000000000 with 8 decimals.
func (p Price) Value() decimal.Decimal {
	return p.Rate.Shift(-p.Decimals)
}

// Oracle is a read-only price source. Every call returns the latest reading.
type Oracle interface {
	Latest(ctx context.Context) (Price, error)
}

// Resolver maps a feed reference to its oracle.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (Oracle, error)
}

// Admin manages mock feeds on development deployments.
type Admin interface {
	Resolver
	Create(ctx context.Context, ref string, decimals int32, answer decimal.Decimal) (Price, error)
	UpdateAnswer(ctx context.Context, ref string, answer decimal.Decimal) (Price, error)
}

func validate(decimals int32, answer decimal.Decimal) error {
	if decimals < 0 || decimals > MaxDecimals {
		return ErrInvalidAnswer
	}
	if !answer.IsInteger() || answer.IsNegative() {
		return ErrInvalidAnswer
	}
	return nil
}
