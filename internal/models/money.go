package models

import "github.com/shopspring/decimal"

// Balances and amounts are stored as NUMERIC(20,2)
const MoneyScale = 2

// IsValidAmount reports whether amount is positive and has no fraction of a cent.
// The store would round a finer amount silently.
func IsValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Truncate(MoneyScale))
}
