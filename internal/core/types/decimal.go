// Package types provides common type aliases and utilities.
package types

import "github.com/shopspring/decimal"

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
//
// Documents carry totals as opaque pass-through values: they are computed
// upstream, stored for journal display, and never recalculated here. The
// alias keeps decimal's JSON and database round-tripping.
type Money = decimal.Decimal

// NewMoney creates a Money value from a float.
// WARNING: Use NewMoneyFromString for precise values.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}
