package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/deloabass/nigertransfert/internal/fees"
	"github.com/deloabass/nigertransfert/internal/limits"
	appmodels "github.com/deloabass/nigertransfert/internal/models"
	"github.com/deloabass/nigertransfert/internal/submit"
	"github.com/deloabass/nigertransfert/internal/wizard"
)

var scopeLabels = map[appmodels.LimitScope]string{
	appmodels.ScopePerTransaction: "per-transaction",
	appmodels.ScopeDaily:          "daily",
	appmodels.ScopeWeekly:         "weekly",
	appmodels.ScopeMonthly:        "monthly",
}

// formatError renders a pipeline error for the chat. Nil renders as "".
func formatError(err error) string {
	switch wizard.ErrorCode(err) {
	case "":
		return ""
	case wizard.CodeEmptyOrInvalidAmount:
		return "❌ Enter a positive amount in EUR with at most two decimals, e.g. <code>150</code> or <code>150,50</code>."
	case wizard.CodeDestinationRequired:
		return "🌍 Pick a destination country first."
	case wizard.CodeUnknownDestination:
		return "❌ Transfers to that country are not available."
	case wizard.CodeServiceRequired:
		return "🏦 Pick a service to continue."
	case wizard.CodeUnknownService:
		return "❌ That service is not available for this country."
	case wizard.CodeOutOfRange:
		var e *fees.OutOfRangeError
		errors.As(err, &e)
		return fmt.Sprintf("❌ This service accepts between <b>%s</b> and <b>%s</b>. You entered %s.", e.Min, e.Max, e.Attempted)
	case wizard.CodeBeneficiaryRequired:
		return "👤 Pick a beneficiary to continue."
	case wizard.CodeBeneficiaryCountry:
		return "❌ This beneficiary lives in another country."
	case wizard.CodeNoPaymentInstrument:
		return "💳 Add a card with /addcard first."
	case wizard.CodeLimitExceeded:
		var e *limits.LimitExceededError
		errors.As(err, &e)
		return fmt.Sprintf("⛔ This transfer would exceed your %s limit of <b>%s</b> (it would reach %s). See /limits.",
			scopeLabels[e.Scope], e.Limit, e.Attempted)
	case wizard.CodeStaleReference:
		var e *wizard.StaleReferenceError
		errors.As(err, &e)
		return fmt.Sprintf("⚠️ The %s you picked is no longer available. Please choose again.", e.Entity)
	case wizard.CodeDuplicateSubmission:
		return "⚠️ This transfer was already submitted."
	case wizard.CodeSubmissionInFlight:
		return "⏳ Your transfer is being submitted, please wait."
	case wizard.CodeSubmissionFailed:
		var e *submit.SubmissionFailedError
		errors.As(err, &e)
		return fmt.Sprintf("❌ <b>Transfer failed:</b> %s\nNothing was debited. Tap %s to try again.", escapeHTML(e.Reason), confirmButtonText)
	case wizard.CodeTerminal:
		return "This transfer is finished. Start a new one with /send."
	case wizard.CodeAtFirstStep:
		return "You're already at the first step."
	default:
		return "❌ Something went wrong. Please try again."
	}
}

// formatResult renders an accepted transfer.
func formatResult(req appmodels.TransferRequest, result appmodels.TransferResult) string {
	var sb strings.Builder
	switch result.Status {
	case appmodels.StatusCompleted:
		sb.WriteString("✅ <b>Transfer completed</b>\n\n")
	case appmodels.StatusPending:
		sb.WriteString("⏳ <b>Transfer pending</b>\n\nThe provider is reviewing this transfer. It counts towards your limits until it settles.\n\n")
	default:
		sb.WriteString("❌ <b>Transfer failed</b>\n\n")
	}
	fmt.Fprintf(&sb, "Reference: <code>%s</code>\nAmount: %s\nFee: %s\nTotal debited: %s\n<b>They receive: %s</b>",
		escapeHTML(result.Reference), req.Principal, req.Fee, req.TotalDebit, req.ReceivedAmount)
	return sb.String()
}

// formatCard renders a stored card, e.g. "VISA •••• 4242 (12/29) ⭐".
func formatCard(card appmodels.PaymentInstrument) string {
	s := fmt.Sprintf("%s •••• %s (%s)", strings.ToUpper(card.Brand), card.Last4, card.Expiry)
	if card.IsDefault {
		s += " ⭐"
	}
	return s
}
