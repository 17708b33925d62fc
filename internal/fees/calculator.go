// Package fees computes transfer fees, total debit and the amount received at
// destination for a given offer.
package fees

import (
	"errors"
	"fmt"

	"github.com/deloabass/nigertransfert/internal/models"
)

// Quote is the outcome of a fee computation.
type Quote struct {
	Principal      models.Money `json:"principal"`
	Fee            models.Money `json:"fee"`
	TotalDebit     models.Money `json:"totalDebit"`
	ReceivedAmount models.Money `json:"receivedAmount"`
}

// OutOfRangeError reports a principal outside an offer's accepted bounds.
type OutOfRangeError struct {
	Min       models.Money
	Max       models.Money
	Attempted models.Money
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("amount %s is outside the accepted range %s - %s", e.Attempted, e.Min, e.Max)
}

// ErrCurrency is returned when the principal is not in the source currency.
var ErrCurrency = errors.New("principal must be in " + models.SourceCurrency)

// Compute returns the fee quote for principal under offer. It is pure: identical
// inputs always produce identical outputs.
//
//	fee      = round(principal * feePercent, 2)   (half-up)
//	total    = principal + fee
//	received = round(principal * rate, destination decimals)
func Compute(principal models.Money, offer models.ServiceOffer) (Quote, error) {
	if principal.Currency != models.SourceCurrency {
		return Quote{}, ErrCurrency
	}
	if principal.Amount.LessThan(offer.MinAmount.Amount) || principal.Amount.GreaterThan(offer.MaxAmount.Amount) {
		return Quote{}, &OutOfRangeError{Min: offer.MinAmount, Max: offer.MaxAmount, Attempted: principal}
	}

	fee := models.Money{
		Amount:   principal.Amount.Mul(offer.FeePercent),
		Currency: principal.Currency,
	}.Round()

	received := models.Money{
		Amount:   principal.Amount.Mul(offer.Rate),
		Currency: offer.Currency,
	}.Round()

	total, err := principal.Add(fee)
	if err != nil {
		return Quote{}, err
	}

	return Quote{
		Principal:      principal,
		Fee:            fee,
		TotalDebit:     total,
		ReceivedAmount: received,
	}, nil
}
