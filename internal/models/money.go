// Package models defines the domain entities for the remittance pipeline.
package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SourceCurrency is the only currency senders pay in.
const SourceCurrency = "EUR"

// CurrencyDecimals lists supported currency codes and their minor-unit precision.
var CurrencyDecimals = map[string]int32{
	"EUR": 2,
	"XOF": 0,
	"XAF": 0,
	"GNF": 0,
	"NGN": 2,
	"MAD": 2,
}

var (
	// ErrUnsupportedCurrency is returned for currency codes outside CurrencyDecimals.
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	// ErrNegativeAmount is returned when a Money value would be negative.
	ErrNegativeAmount = errors.New("amount must not be negative")
	// ErrCurrencyMismatch is returned when combining amounts in different currencies.
	ErrCurrencyMismatch = errors.New("currency mismatch")
)

// Money is a non-negative decimal amount in a single currency.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// NormalizeCurrency upper-cases and trims a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Decimals returns the minor-unit precision of a currency, or false when unsupported.
func Decimals(currency string) (int32, bool) {
	places, ok := CurrencyDecimals[NormalizeCurrency(currency)]
	return places, ok
}

// NewMoney builds a Money value, rejecting negative amounts and unknown currencies.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	code := NormalizeCurrency(currency)
	if _, ok := CurrencyDecimals[code]; !ok {
		return Money{}, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, currency)
	}
	if amount.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	return Money{Amount: amount, Currency: code}, nil
}

// EUR is shorthand for a euro amount. It panics on negative input and is meant for
// constants and tests.
func EUR(amount string) Money {
	m, err := NewMoney(decimal.RequireFromString(amount), SourceCurrency)
	if err != nil {
		panic(err)
	}
	return m
}

// ZeroOf returns a zero amount in the given currency.
func ZeroOf(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: NormalizeCurrency(currency)}
}

// Add returns m + other. Both must share a currency.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Sub returns m - other, floored at zero.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, other.Currency)
	}
	diff := m.Amount.Sub(other.Amount)
	if diff.IsNegative() {
		diff = decimal.Zero
	}
	return Money{Amount: diff, Currency: m.Currency}, nil
}

// GreaterThan reports whether m is strictly larger than other.
func (m Money) GreaterThan(other Money) bool {
	return m.Amount.GreaterThan(other.Amount)
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// Round rounds half away from zero to the currency's minor-unit precision. For the
// non-negative amounts Money carries this is round-half-up.
func (m Money) Round() Money {
	places, ok := Decimals(m.Currency)
	if !ok {
		places = 2
	}
	return Money{Amount: m.Amount.Round(places), Currency: m.Currency}
}

// String formats the amount at the currency's precision, e.g. "153.75 EUR".
func (m Money) String() string {
	places, ok := Decimals(m.Currency)
	if !ok {
		places = 2
	}
	return m.Amount.StringFixed(places) + " " + m.Currency
}
