package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is the spendable wei held by an address.
type Balance struct {
	Address     string
	AccountCode string
	Amount      decimal.Decimal
	AsOf        time.Time
}
