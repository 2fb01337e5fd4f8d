package money

import (
	"errors"
	"fmt"
)

// Currency is one of the closed set of currencies the ledger accepts.
// Amounts in different currencies are never combined arithmetically.
type Currency string

const (
	CDF Currency = "CDF"
	USD Currency = "USD"
)

// ErrCurrencyMismatch indicates an operation mixed two currencies.
var ErrCurrencyMismatch = errors.New("currency mismatch")

// ErrUnknownCurrency indicates a currency code outside the accepted set.
var ErrUnknownCurrency = errors.New("unknown currency")

// ParseCurrency validates a currency code against the accepted set.
func ParseCurrency(code string) (Currency, error) {
	switch Currency(code) {
	case CDF, USD:
		return Currency(code), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
}

// Amount is a monetary value counted in minor units (centimes, cents).
type Amount struct {
	Minor    int64    `json:"minor"`
	Currency Currency `json:"currency"`
}

// New builds an amount of minor units in the given currency.
func New(minor int64, currency Currency) Amount {
	return Amount{Minor: minor, Currency: currency}
}

// Zero is the zero amount in the given currency.
func Zero(currency Currency) Amount {
	return Amount{Currency: currency}
}

// Add returns a+b, failing when the currencies differ.
func (a Amount) Add(b Amount) (Amount, error) {
	if a.Currency != b.Currency {
		return Amount{}, fmt.Errorf("%w: %s + %s", ErrCurrencyMismatch, a.Currency, b.Currency)
	}
	return Amount{Minor: a.Minor + b.Minor, Currency: a.Currency}, nil
}

// Sub returns a-b, failing when the currencies differ.
func (a Amount) Sub(b Amount) (Amount, error) {
	if a.Currency != b.Currency {
		return Amount{}, fmt.Errorf("%w: %s - %s", ErrCurrencyMismatch, a.Currency, b.Currency)
	}
	return Amount{Minor: a.Minor - b.Minor, Currency: a.Currency}, nil
}

// IsZero reports whether the amount is zero minor units.
func (a Amount) IsZero() bool { return a.Minor == 0 }

// IsNegative reports whether the amount is below zero.
func (a Amount) IsNegative() bool { return a.Minor < 0 }

func (a Amount) String() string {
	return fmt.Sprintf("%d %s", a.Minor, a.Currency)
}
