package bot

import (
	"context"
	"testing"
	"time"

	"github.com/deloabass/nigertransfert/internal/bot/mocks"
	"github.com/deloabass/nigertransfert/internal/config"
	"github.com/deloabass/nigertransfert/internal/ledger"
	"github.com/deloabass/nigertransfert/internal/limits"
	appmodels "github.com/deloabass/nigertransfert/internal/models"
	"github.com/deloabass/nigertransfert/internal/rates"
	"github.com/deloabass/nigertransfert/internal/repository"
	"github.com/deloabass/nigertransfert/internal/submit"
	"github.com/deloabass/nigertransfert/internal/wizard"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/require"
)

const (
	testChatID    int64 = 555
	testUserID    int64 = 123456
	otherUserID   int64 = 654321
	testMessageID       = 1000
)

type testEnv struct {
	bot           *Bot
	users         *repository.MemoryUserStore
	beneficiaries *repository.MemoryBeneficiaryStore
	instruments   *repository.MemoryInstrumentStore
	tiers         *limits.Registry
	ledger        *ledger.Ledger
	backend       *submit.SimulatedBackend
	beneficiary   *appmodels.Beneficiary
	card          *appmodels.PaymentInstrument
}

// newTestEnv wires a Bot over in-memory stores with one beneficiary in Niger and one
// card saved for testUserID.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	clock := func() time.Time { return time.Date(2026, 3, 18, 10, 0, 0, 0, time.UTC) }

	e := &testEnv{
		users:         repository.NewMemoryUserStore(),
		beneficiaries: repository.NewMemoryBeneficiaryStore(),
		instruments:   repository.NewMemoryInstrumentStore(),
		ledger:        ledger.New(time.UTC, time.Monday, ledger.WithClock(clock)),
		backend:       submit.NewSimulatedBackend(appmodels.EUR("800")),
	}
	e.tiers = limits.NewRegistry(e.users)

	submitter, err := submit.New(e.backend, submit.NewMemoryRegistry(time.Hour), e.ledger, submit.WithClock(clock))
	require.NoError(t, err)

	rateTable := rates.Default()
	w := wizard.New(wizard.Deps{
		Rates:         rateTable,
		Beneficiaries: e.beneficiaries,
		Instruments:   e.instruments,
		Tiers:         e.tiers,
		Usage:         e.ledger,
		Policy:        limits.DefaultPolicy(),
		Submitter:     submitter,
		Now:           clock,
	})

	cfg := &config.Config{
		TelegramBotToken:   "test-token",
		WhitelistedUserIDs: []int64{testUserID},
	}
	e.bot = newBot(cfg, Deps{
		Users:         e.users,
		Rates:         rateTable,
		Beneficiaries: e.beneficiaries,
		Instruments:   e.instruments,
		Tiers:         e.tiers,
		Usage:         e.ledger,
		Policy:        limits.DefaultPolicy(),
		Wizard:        w,
		Now:           clock,
	})

	e.beneficiary = &appmodels.Beneficiary{
		OwnerID:            testUserID,
		Name:               "Amina",
		Phone:              "+22790000001",
		DestinationCity:    "Niamey",
		DestinationCountry: "NE",
	}
	require.NoError(t, e.beneficiaries.Upsert(ctx, e.beneficiary))

	e.card = &appmodels.PaymentInstrument{
		OwnerID:    testUserID,
		Last4:      "4242",
		Brand:      appmodels.BrandVisa,
		HolderName: "AMINA",
		Expiry:     "12/29",
	}
	require.NoError(t, e.instruments.Upsert(ctx, e.card))

	return e
}

// command runs a text command through handler and returns the mock that recorded it.
func (e *testEnv) command(
	handler func(context.Context, TelegramAPI, *models.Update),
	userID int64,
	text string,
) *mocks.MockBot {
	mockBot := mocks.NewMockBot()
	handler(context.Background(), mockBot, mocks.CommandUpdate(testChatID, userID, text))
	return mockBot
}

// press sends a wizard button press and returns the edited message.
func (e *testEnv) press(t *testing.T, mockBot *mocks.MockBot, data string) *mocks.EditedMessage {
	t.Helper()
	update := mocks.CallbackQueryUpdate(testChatID, testUserID, testMessageID, data)
	e.bot.handleSendCallbackCore(context.Background(), mockBot, update)
	edited := mockBot.LastEditedMessage()
	require.NotNil(t, edited)
	return edited
}

// toSummary starts a transfer of amount to Niger via wave and walks it to the summary.
func (e *testEnv) toSummary(t *testing.T, mockBot *mocks.MockBot, amount string) *mocks.EditedMessage {
	t.Helper()
	e.bot.handleSendCore(context.Background(), mockBot, mocks.CommandUpdate(testChatID, testUserID, "/send "+amount))
	e.press(t, mockBot, "send_country_NE")
	e.press(t, mockBot, "send_svc_wave")
	e.press(t, mockBot, "send_ben_"+e.beneficiary.ID)
	edited := e.press(t, mockBot, "send_card_"+e.card.ID)
	require.Contains(t, edited.Text, "Transfer summary")
	return edited
}

// callbackData lists the callback data of every button of an inline keyboard.
func callbackData(t *testing.T, markup models.ReplyMarkup) []string {
	t.Helper()
	kb, ok := markup.(*models.InlineKeyboardMarkup)
	require.True(t, ok, "expected an inline keyboard")

	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			out = append(out, btn.CallbackData)
		}
	}
	return out
}
