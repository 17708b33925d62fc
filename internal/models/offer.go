package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Country is a destination country served by at least one provider.
type Country struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

// ServiceOffer is one transfer provider available for a destination country.
// Rate is expressed in units of the destination currency per 1 EUR.
type ServiceOffer struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	DestinationCountry  string          `json:"destinationCountry"`
	Currency            string          `json:"currency"`
	Rate                decimal.Decimal `json:"rate"`
	FeePercent          decimal.Decimal `json:"feePercent"`
	MinAmount           Money           `json:"minAmount"`
	MaxAmount           Money           `json:"maxAmount"`
	ProcessingTimeLabel string          `json:"processingTimeLabel"`
}

var errInvalidOffer = errors.New("invalid service offer")

// Validate checks the offer invariants: 0 < rate, 0 <= feePercent < 1, min <= max.
func (o ServiceOffer) Validate() error {
	switch {
	case o.ID == "":
		return fmt.Errorf("%w: id is required", errInvalidOffer)
	case !o.Rate.IsPositive():
		return fmt.Errorf("%w %s: rate must be positive", errInvalidOffer, o.ID)
	case o.FeePercent.IsNegative() || o.FeePercent.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return fmt.Errorf("%w %s: fee percent must be in [0, 1)", errInvalidOffer, o.ID)
	case o.MinAmount.Currency != SourceCurrency || o.MaxAmount.Currency != SourceCurrency:
		return fmt.Errorf("%w %s: bounds must be in %s", errInvalidOffer, o.ID, SourceCurrency)
	case o.MinAmount.GreaterThan(o.MaxAmount):
		return fmt.Errorf("%w %s: min amount exceeds max amount", errInvalidOffer, o.ID)
	}
	if _, ok := Decimals(o.Currency); !ok {
		return fmt.Errorf("%w %s: %w", errInvalidOffer, o.ID, ErrUnsupportedCurrency)
	}
	return nil
}
