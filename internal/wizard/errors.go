package wizard

import (
	"errors"
	"fmt"

	"github.com/deloabass/nigertransfert/internal/fees"
	"github.com/deloabass/nigertransfert/internal/limits"
	"github.com/deloabass/nigertransfert/internal/models"
	"github.com/deloabass/nigertransfert/internal/submit"
)

var (
	ErrEmptyOrInvalidAmount = errors.New("amount must be a positive number with at most two decimals")
	ErrDestinationRequired  = errors.New("select a destination country first")
	ErrUnknownDestination   = errors.New("destination country is not served")
	ErrServiceRequired      = errors.New("select a transfer service")
	ErrUnknownService       = errors.New("service is not offered for this destination")
	ErrBeneficiaryRequired  = errors.New("select a beneficiary")
	ErrBeneficiaryCountry   = errors.New("beneficiary lives in another destination country")
	ErrNoPaymentInstrument  = errors.New("add a payment card to continue")
	ErrSubmissionInFlight   = errors.New("a submission is already in progress")
	ErrTerminal             = errors.New("transfer is already finished")
	ErrAtFirstStep          = errors.New("already at the first step")
)

// StaleReferenceError reports an entity chosen earlier that no longer resolves. The
// session has moved back to Step so the user can pick again.
type StaleReferenceError struct {
	Entity string
	ID     string
	Step   models.Step
}

func (e *StaleReferenceError) Error() string {
	return fmt.Sprintf("%s %q is no longer available", e.Entity, e.ID)
}

// Error codes rendered by presenters.
const (
	CodeEmptyOrInvalidAmount = "EMPTY_OR_INVALID_AMOUNT"
	CodeDestinationRequired  = "DESTINATION_REQUIRED"
	CodeUnknownDestination   = "UNKNOWN_DESTINATION"
	CodeServiceRequired      = "SERVICE_REQUIRED"
	CodeUnknownService       = "UNKNOWN_SERVICE"
	CodeBeneficiaryRequired  = "BENEFICIARY_REQUIRED"
	CodeBeneficiaryCountry   = "BENEFICIARY_COUNTRY_MISMATCH"
	CodeOutOfRange           = "OUT_OF_RANGE"
	CodeNoPaymentInstrument  = "NO_PAYMENT_INSTRUMENT"
	CodeLimitExceeded        = "LIMIT_EXCEEDED"
	CodeStaleReference       = "STALE_REFERENCE"
	CodeDuplicateSubmission  = "DUPLICATE_SUBMISSION"
	CodeSubmissionInFlight   = "SUBMISSION_IN_FLIGHT"
	CodeSubmissionFailed     = "SUBMISSION_FAILED"
	CodeTerminal             = "TERMINAL"
	CodeAtFirstStep          = "AT_FIRST_STEP"
	CodeInternal             = "INTERNAL"
)

// ErrorCode maps any pipeline error to its stable code. Nil maps to "".
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var outOfRange *fees.OutOfRangeError
	var limit *limits.LimitExceededError
	var stale *StaleReferenceError
	var failed *submit.SubmissionFailedError

	switch {
	case errors.As(err, &outOfRange):
		return CodeOutOfRange
	case errors.As(err, &limit):
		return CodeLimitExceeded
	case errors.As(err, &stale):
		return CodeStaleReference
	case errors.As(err, &failed):
		return CodeSubmissionFailed
	}

	sentinels := []struct {
		err  error
		code string
	}{
		{ErrEmptyOrInvalidAmount, CodeEmptyOrInvalidAmount},
		{ErrDestinationRequired, CodeDestinationRequired},
		{ErrUnknownDestination, CodeUnknownDestination},
		{ErrServiceRequired, CodeServiceRequired},
		{ErrUnknownService, CodeUnknownService},
		{ErrBeneficiaryRequired, CodeBeneficiaryRequired},
		{ErrBeneficiaryCountry, CodeBeneficiaryCountry},
		{ErrNoPaymentInstrument, CodeNoPaymentInstrument},
		{submit.ErrDuplicateSubmission, CodeDuplicateSubmission},
		{ErrSubmissionInFlight, CodeSubmissionInFlight},
		{ErrTerminal, CodeTerminal},
		{ErrAtFirstStep, CodeAtFirstStep},
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	return CodeInternal
}
