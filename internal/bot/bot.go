// Package bot provides the Telegram bot initialization and handlers.
package bot

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/deloabass/nigertransfert/internal/config"
	"github.com/deloabass/nigertransfert/internal/limits"
	"github.com/deloabass/nigertransfert/internal/logger"
	"github.com/deloabass/nigertransfert/internal/models"
	"github.com/deloabass/nigertransfert/internal/wizard"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const pollTimeout = time.Minute

// UserStore registers senders as they talk to the bot.
type UserStore interface {
	UpsertUser(ctx context.Context, user *models.User) error
}

// RateTable lists destinations and offers.
type RateTable interface {
	Countries() []models.Country
	Country(code string) (models.Country, error)
	Offers(country string) ([]models.ServiceOffer, error)
	Lookup(country, serviceID string) (models.ServiceOffer, error)
}

// BeneficiaryStore manages a sender's saved beneficiaries.
type BeneficiaryStore interface {
	Get(ctx context.Context, id string) (*models.Beneficiary, error)
	List(ctx context.Context, ownerID int64) ([]models.Beneficiary, error)
	Upsert(ctx context.Context, b *models.Beneficiary) error
	Delete(ctx context.Context, ownerID int64, id string) error
}

// InstrumentStore manages a sender's saved cards.
type InstrumentStore interface {
	Get(ctx context.Context, id string) (*models.PaymentInstrument, error)
	GetDefault(ctx context.Context, ownerID int64) (*models.PaymentInstrument, error)
	List(ctx context.Context, ownerID int64) ([]models.PaymentInstrument, error)
	Upsert(ctx context.Context, p *models.PaymentInstrument) error
	Delete(ctx context.Context, ownerID int64, id string) error
}

// TierSource returns a sender's verification tier.
type TierSource interface {
	Tier(ctx context.Context, userID int64) (models.VerificationTier, error)
}

// UsageSource returns a sender's current usage.
type UsageSource interface {
	Snapshot(ctx context.Context, userID int64) (models.Usage, error)
}

// Deps are the collaborators the handlers work with.
type Deps struct {
	Users         UserStore
	Rates         RateTable
	Beneficiaries BeneficiaryStore
	Instruments   InstrumentStore
	Tiers         TierSource
	Usage         UsageSource
	Policy        *limits.Policy
	Wizard        *wizard.Wizard
	Now           func() time.Time
}

// chatSession is the wizard run attached to a chat and the message showing it.
type chatSession struct {
	session   *wizard.Session
	messageID int
}

// Bot wraps the Telegram bot with application dependencies.
type Bot struct {
	bot  *bot.Bot
	cfg  *config.Config
	deps Deps

	sessionsMu sync.Mutex
	sessions   map[int64]*chatSession
}

// New creates a new Bot instance.
func New(cfg *config.Config, deps Deps) (*Bot, error) {
	b := newBot(cfg, deps)

	opts := []bot.Option{
		bot.WithMiddlewares(b.whitelistMiddleware),
		bot.WithDefaultHandler(b.defaultHandler),
		bot.WithHTTPClient(pollTimeout, &http.Client{
			Timeout:   pollTimeout + 10*time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
	}

	telegramBot, err := bot.New(cfg.TelegramBotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b.bot = telegramBot
	b.registerHandlers()

	return b, nil
}

func newBot(cfg *config.Config, deps Deps) *Bot {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Policy == nil {
		deps.Policy = limits.DefaultPolicy()
	}
	return &Bot{
		cfg:      cfg,
		deps:     deps,
		sessions: make(map[int64]*chatSession),
	}
}

// Start begins polling for updates.
func (b *Bot) Start(ctx context.Context) {
	logger.Log.Info().Msg("Bot started polling")
	b.bot.Start(ctx)
}

// registerHandlers sets up command handlers.
func (b *Bot) registerHandlers() {
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, b.handleStart)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypePrefix, b.handleHelp)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/send", bot.MatchTypePrefix, b.handleSend)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/cancel", bot.MatchTypePrefix, b.handleCancel)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/beneficiaries", bot.MatchTypePrefix, b.handleBeneficiaries)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/addbeneficiary", bot.MatchTypePrefix, b.handleAddBeneficiary)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/delbeneficiary", bot.MatchTypePrefix, b.handleDeleteBeneficiary)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/cards", bot.MatchTypePrefix, b.handleCards)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/addcard", bot.MatchTypePrefix, b.handleAddCard)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/delcard", bot.MatchTypePrefix, b.handleDeleteCard)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/defaultcard", bot.MatchTypePrefix, b.handleDefaultCard)
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/limits", bot.MatchTypePrefix, b.handleLimits)
	b.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, sendCallbackPrefix, bot.MatchTypePrefix, b.handleSendCallback)
}

// whitelistMiddleware checks if the user is whitelisted before processing.
func (b *Bot) whitelistMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, tgBot *bot.Bot, update *tgmodels.Update) {
		if !b.authorize(ctx, tgBot, update) {
			return
		}
		next(ctx, tgBot, update)
	}
}

// authorize logs the update, rejects non-whitelisted users and registers the rest.
func (b *Bot) authorize(ctx context.Context, tg TelegramAPI, update *tgmodels.Update) bool {
	userID := extractUserID(update)
	if userID == 0 {
		return false
	}

	username := extractUsername(update)
	logUserAction(userID, update)

	if !b.cfg.IsUserWhitelisted(userID, username) {
		logger.Log.Warn().
			Str("user_hash", logger.HashUserID(userID)).
			Msg("Blocked non-whitelisted user")
		if update.Message != nil {
			_, _ = tg.SendMessage(ctx, &bot.SendMessageParams{
				ChatID: update.Message.Chat.ID,
				Text:   "⛔ Sorry, you are not authorized to use this bot.",
			})
		}
		return false
	}

	if err := b.ensureUserRegistered(ctx, update); err != nil {
		logger.Log.Error().
			Str("user_hash", logger.HashUserID(userID)).
			Err(err).
			Msg("Failed to register user")
	}
	return true
}

// logUserAction logs the user's input/action. Card details never reach the log.
func logUserAction(userID int64, update *tgmodels.Update) {
	switch {
	case update.Message != nil:
		msg := update.Message
		event := logger.Log.Info().
			Str("user_hash", logger.HashUserID(userID)).
			Str("chat_hash", logger.HashChatID(msg.Chat.ID))

		if msg.Text != "" {
			event = event.Str("text", redactCommand(msg.Text))
		}

		event.Msg("User input")

	case update.CallbackQuery != nil:
		logger.Log.Info().
			Str("user_hash", logger.HashUserID(userID)).
			Str("data", update.CallbackQuery.Data).
			Msg("Callback query")
	}
}

// redactCommand keeps command names visible and hides free text.
func redactCommand(text string) string {
	if strings.HasPrefix(text, "/addcard") {
		return "/addcard [redacted]"
	}
	if strings.HasPrefix(text, "/") {
		cmd, args, found := strings.Cut(text, " ")
		if !found {
			return cmd
		}
		return cmd + " " + logger.SanitizeText(args)
	}
	return logger.SanitizeText(text)
}

// extractUsername gets the username from the update.
func extractUsername(update *tgmodels.Update) string {
	if update.Message != nil && update.Message.From != nil {
		return update.Message.From.Username
	}
	if update.CallbackQuery != nil {
		return update.CallbackQuery.From.Username
	}
	return ""
}

// ensureUserRegistered creates or updates the user record.
func (b *Bot) ensureUserRegistered(ctx context.Context, update *tgmodels.Update) error {
	var from *tgmodels.User
	switch {
	case update.Message != nil && update.Message.From != nil:
		from = update.Message.From
	case update.CallbackQuery != nil:
		from = &update.CallbackQuery.From
	default:
		return nil
	}

	user := &models.User{
		ID:        from.ID,
		Username:  from.Username,
		FirstName: from.FirstName,
		LastName:  from.LastName,
	}
	if err := b.deps.Users.UpsertUser(ctx, user); err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// extractUserID gets the user ID from various update types.
func extractUserID(update *tgmodels.Update) int64 {
	if update.Message != nil && update.Message.From != nil {
		return update.Message.From.ID
	}
	if update.CallbackQuery != nil {
		return update.CallbackQuery.From.ID
	}
	return 0
}

// defaultHandler handles unrecognized messages. While a transfer waits for its
// amount, plain text is read as the amount.
func (b *Bot) defaultHandler(ctx context.Context, tgBot *bot.Bot, update *tgmodels.Update) {
	b.defaultHandlerCore(ctx, tgBot, update)
}

// defaultHandlerCore is the testable implementation of defaultHandler.
func (b *Bot) defaultHandlerCore(ctx context.Context, tg TelegramAPI, update *tgmodels.Update) {
	if update.Message == nil {
		return
	}

	if b.handleAmountTextCore(ctx, tg, update) {
		return
	}

	_, err := tg.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    update.Message.Chat.ID,
		Text:      "I didn't understand that. Use /send to start a transfer or /help to see available commands.",
		ParseMode: tgmodels.ParseModeHTML,
	})
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to send default response")
	}
}

// session returns the chat's wizard run, if any.
func (b *Bot) session(chatID int64) (*chatSession, bool) {
	b.sessionsMu.Lock()
	defer b.sessionsMu.Unlock()
	cs, ok := b.sessions[chatID]
	return cs, ok
}

func (b *Bot) setSession(chatID int64, cs *chatSession) {
	b.sessionsMu.Lock()
	defer b.sessionsMu.Unlock()
	b.sessions[chatID] = cs
}

func (b *Bot) dropSession(chatID int64) {
	b.sessionsMu.Lock()
	defer b.sessionsMu.Unlock()
	delete(b.sessions, chatID)
}

func (b *Bot) setSessionMessage(chatID int64, messageID int) {
	b.sessionsMu.Lock()
	defer b.sessionsMu.Unlock()
	if cs, ok := b.sessions[chatID]; ok {
		cs.messageID = messageID
	}
}

// escapeHTML escapes user-provided text for HTML parse mode.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
