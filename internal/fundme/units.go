package fundme

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fundme-labs/fundme/internal/pricefeed"
)

const (
	// EtherDecimals is the number of wei digits in one ether.
	EtherDecimals = 18
	// GweiDecimals is the number of wei digits in one gwei.
	GweiDecimals = 9
	// USDDecimals is the fixed precision of USD values and the minimum.
	USDDecimals = 18
)

// ConversionRate returns the USD value of amount wei at price, with
// USDDecimals fractional digits. Fractions below one unit are truncated.
func ConversionRate(amount decimal.Decimal, p pricefeed.Price) decimal.Decimal {
	// wei * (rate scaled to 18 decimals) / 1e18
	scaled := p.Rate.Shift(USDDecimals - p.Decimals)
	return amount.Mul(scaled).Shift(-EtherDecimals).Truncate(0)
}

// ParseValue reads an amount such as "0.03ether", "3 gwei", "1500wei" or a
// bare integer number of wei and returns it in wei.
func ParseValue(s string) (decimal.Decimal, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	if raw == "" {
		return decimal.Zero, fmt.Errorf("empty value")
	}

	shift := int32(0)
	switch {
	case strings.HasSuffix(raw, "ether"):
		raw, shift = strings.TrimSuffix(raw, "ether"), EtherDecimals
	case strings.HasSuffix(raw, "eth"):
		raw, shift = strings.TrimSuffix(raw, "eth"), EtherDecimals
	case strings.HasSuffix(raw, "gwei"):
		raw, shift = strings.TrimSuffix(raw, "gwei"), GweiDecimals
	case strings.HasSuffix(raw, "wei"):
		raw = strings.TrimSuffix(raw, "wei")
	}

	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse value %q: %w", s, err)
	}
	wei := d.Shift(shift)
	if !wei.IsInteger() {
		return decimal.Zero, fmt.Errorf("parse value %q: %w", s, ErrInvalidAmount)
	}
	if wei.IsNegative() {
		return decimal.Zero, fmt.Errorf("parse value %q: %w", s, ErrInvalidAmount)
	}
	return wei, nil
}

// MustParseValue is ParseValue for constants; it panics on error.
func MustParseValue(s string) decimal.Decimal {
	v, err := ParseValue(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FormatEther renders a wei amount in ether, e.g. "0.03".
func FormatEther(wei decimal.Decimal) string {
	return wei.Shift(-EtherDecimals).String()
}

// FormatUSD renders a USDDecimals-scaled value in dollars with two decimals.
func FormatUSD(v decimal.Decimal) string {
	return v.Shift(-USDDecimals).StringFixed(2)
}
