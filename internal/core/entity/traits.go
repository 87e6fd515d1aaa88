package entity

import (
	"context"

	"numerus/internal/core/apperror"
)

// CurrencyAware is a trait for entities carrying a currency dimension.
// The platform treats currency as an opaque ISO 4217 code: amounts are
// computed upstream and passed through for display.
type CurrencyAware struct {
	// Currency is a three-letter ISO 4217 code (e.g. "EUR"). Optional.
	Currency string `db:"currency" json:"currency,omitempty"`
}

// ValidateCurrency checks the code shape when a currency is set.
func (c *CurrencyAware) ValidateCurrency(ctx context.Context) error {
	if c.Currency == "" {
		return nil
	}
	if len(c.Currency) != 3 {
		return apperror.NewValidation("currency must be a 3-letter ISO code").
			WithDetail("field", "currency").
			WithDetail("currency", c.Currency)
	}
	for _, r := range c.Currency {
		if r < 'A' || r > 'Z' {
			return apperror.NewValidation("currency must be a 3-letter ISO code").
				WithDetail("field", "currency").
				WithDetail("currency", c.Currency)
		}
	}
	return nil
}

// GetCurrency returns the currency code (useful for interfaces).
func (c *CurrencyAware) GetCurrency() string {
	return c.Currency
}

// ICurrencyAware is an interface for any document that has a currency.
type ICurrencyAware interface {
	GetCurrency() string
	ValidateCurrency(ctx context.Context) error
}
