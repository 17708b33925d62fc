package bot

import (
	"errors"
	"fmt"
	"testing"

	"github.com/deloabass/nigertransfert/internal/fees"
	"github.com/deloabass/nigertransfert/internal/limits"
	appmodels "github.com/deloabass/nigertransfert/internal/models"
	"github.com/deloabass/nigertransfert/internal/submit"
	"github.com/deloabass/nigertransfert/internal/wizard"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFormatError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"invalid amount", wizard.ErrEmptyOrInvalidAmount, "at most two decimals"},
		{
			"out of range",
			fmt.Errorf("quote: %w", &fees.OutOfRangeError{
				Min: appmodels.EUR("10"), Max: appmodels.EUR("1000"), Attempted: appmodels.EUR("1500"),
			}),
			"between <b>10.00 EUR</b> and <b>1000.00 EUR</b>. You entered 1500.00 EUR.",
		},
		{
			"limit exceeded",
			&limits.LimitExceededError{
				Scope: appmodels.ScopeDaily, Limit: appmodels.EUR("500"), Attempted: appmodels.EUR("650"),
			},
			"exceed your daily limit of <b>500.00 EUR</b> (it would reach 650.00 EUR)",
		},
		{
			"stale beneficiary",
			&wizard.StaleReferenceError{Entity: "beneficiary", ID: "b1", Step: appmodels.StepBeneficiary},
			"The beneficiary you picked is no longer available",
		},
		{
			"provider failure is escaped",
			&submit.SubmissionFailedError{Reference: "TX-1", Reason: "card <declined>"},
			"<b>Transfer failed:</b> card &lt;declined&gt;\nNothing was debited.",
		},
		{"duplicate", submit.ErrDuplicateSubmission, "already submitted"},
		{"in flight", wizard.ErrSubmissionInFlight, "being submitted"},
		{"terminal", wizard.ErrTerminal, "/send"},
		{"unexpected", errors.New("db down"), "Something went wrong"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := formatError(tt.err)
			if tt.want == "" {
				require.Empty(t, got)
				return
			}
			require.Contains(t, got, tt.want)
		})
	}
}

func TestFormatResult(t *testing.T) {
	t.Parallel()

	req := appmodels.TransferRequest{
		Principal:      appmodels.EUR("150"),
		Fee:            appmodels.EUR("3.75"),
		TotalDebit:     appmodels.EUR("153.75"),
		ReceivedAmount: appmodels.Money{Amount: decimal.NewFromInt(98400), Currency: "XOF"},
	}

	completed := formatResult(req, appmodels.TransferResult{Status: appmodels.StatusCompleted, Reference: "TX-42"})
	require.Contains(t, completed, "Transfer completed")
	require.Contains(t, completed, "Reference: <code>TX-42</code>")
	require.Contains(t, completed, "Total debited: 153.75 EUR")
	require.Contains(t, completed, "<b>They receive: 98400 XOF</b>")

	pending := formatResult(req, appmodels.TransferResult{Status: appmodels.StatusPending, Reference: "TX-43"})
	require.Contains(t, pending, "Transfer pending")
	require.Contains(t, pending, "counts towards your limits")
}

func TestFormatCard(t *testing.T) {
	t.Parallel()

	card := appmodels.PaymentInstrument{Brand: appmodels.BrandVisa, Last4: "4242", Expiry: "12/29"}
	require.Equal(t, "VISA •••• 4242 (12/29)", formatCard(card))

	card.IsDefault = true
	require.Equal(t, "VISA •••• 4242 (12/29) ⭐", formatCard(card))
}

func TestGenerateChartFilename(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t)
	require.Equal(t, "limits_2026-03.png", generateChartFilename(e.bot.deps.Now()))
}
