package domain

import "github.com/shopspring/decimal"

// MaxAmountScale is the number of decimal places amounts may carry.
// Balances are stored as NUMERIC(20,2); anything finer would be lost.
const MaxAmountScale = 2

// ValidateAmount checks that an amount is strictly positive and fits the
// ledger's fixed-point scale. Every mutation path runs through this before
// touching a balance.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(MaxAmountScale)) {
		return ErrInvalidAmount
	}
	return nil
}
