package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/deloabass/nigertransfert/internal/cards"
	"github.com/deloabass/nigertransfert/internal/logger"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	addCardUsage = "Usage: <code>/addcard &lt;number&gt; &lt;MM/YY&gt; &lt;holder&gt;</code>\n" +
		"Example: <code>/addcard 4242 4242 4242 4242 12/29 Amina Issoufou</code>"
	noCardsMsg = "You have no saved cards yet.\n\n" + addCardUsage
)

// splitCardArgs splits "/addcard" arguments into number, expiry and holder. The
// expiry is the first field containing a slash.
func splitCardArgs(args string) (number, expiry, holder string, ok bool) {
	fields := strings.Fields(args)
	for i, f := range fields {
		if strings.Contains(f, "/") {
			if i == 0 {
				return "", "", "", false
			}
			return strings.Join(fields[:i], ""), f, strings.Join(fields[i+1:], " "), true
		}
	}
	return "", "", "", false
}

func cardErrorText(err error) string {
	switch {
	case errors.Is(err, cards.ErrInvalidNumber):
		return "❌ That card number is not valid."
	case errors.Is(err, cards.ErrInvalidExpiry):
		return "❌ The expiry date must look like <code>MM/YY</code>."
	case errors.Is(err, cards.ErrExpired):
		return "❌ This card has expired."
	case errors.Is(err, cards.ErrHolderRequired):
		return "❌ Add the card holder's name after the expiry date."
	default:
		return "❌ Failed to save the card. Please try again."
	}
}

// handleCards handles the /cards command.
func (b *Bot) handleCards(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleCardsCore(ctx, tgBot, update)
}

// handleCardsCore is the testable implementation of handleCards.
func (b *Bot) handleCardsCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID

	list, err := b.deps.Instruments.List(ctx, update.Message.From.ID)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to list cards")
		reply(ctx, tg, chatID, "❌ Failed to load your cards. Please try again.")
		return
	}
	if len(list) == 0 {
		reply(ctx, tg, chatID, noCardsMsg)
		return
	}

	var sb strings.Builder
	sb.WriteString("💳 <b>Your cards</b>\n")
	for i, card := range list {
		fmt.Fprintf(&sb, "\n%d. %s · %s", i+1, formatCard(card), escapeHTML(card.HolderName))
	}
	sb.WriteString("\n\n⭐ marks the default card. Change it with <code>/defaultcard &lt;n&gt;</code> or delete one with <code>/delcard &lt;n&gt;</code>.")

	reply(ctx, tg, chatID, sb.String())
}

// handleAddCard handles the /addcard command.
func (b *Bot) handleAddCard(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleAddCardCore(ctx, tgBot, update)
}

// handleAddCardCore is the testable implementation of handleAddCard. The message
// carrying the card number is deleted whether or not capture succeeds.
func (b *Bot) handleAddCardCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID

	args := extractCommandArgs(update.Message.Text, "/addcard")
	if args == "" {
		reply(ctx, tg, chatID, addCardUsage)
		return
	}

	if _, err := tg.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: update.Message.ID,
	}); err != nil {
		logger.Log.Warn().Err(err).Str("user_hash", logger.HashUserID(userID)).Msg("Failed to delete card message")
	}

	number, expiry, holder, ok := splitCardArgs(args)
	if !ok {
		reply(ctx, tg, chatID, addCardUsage)
		return
	}

	card, err := cards.Capture(number, expiry, holder, b.deps.Now())
	if err != nil {
		logger.Log.Info().
			Str("user_hash", logger.HashUserID(userID)).
			Str("card", logger.MaskPAN(number)).
			Err(err).
			Msg("Card rejected")
		reply(ctx, tg, chatID, cardErrorText(err))
		return
	}

	card.OwnerID = userID
	if err := b.deps.Instruments.Upsert(ctx, &card); err != nil {
		logger.Log.Error().Err(err).Str("user_hash", logger.HashUserID(userID)).Msg("Failed to save card")
		reply(ctx, tg, chatID, cardErrorText(err))
		return
	}

	logger.Log.Info().
		Str("user_hash", logger.HashUserID(userID)).
		Str("card", logger.MaskPAN(number)).
		Str("brand", card.Brand).
		Msg("Card saved")

	reply(ctx, tg, chatID, fmt.Sprintf("✅ Card saved: %s\n\nYour message with the card number was deleted.", formatCard(card)))
}

// handleDeleteCard handles the /delcard command.
func (b *Bot) handleDeleteCard(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleDeleteCardCore(ctx, tgBot, update)
}

// handleDeleteCardCore is the testable implementation of handleDeleteCard.
func (b *Bot) handleDeleteCardCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID

	list, err := b.deps.Instruments.List(ctx, userID)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to list cards")
		reply(ctx, tg, chatID, "❌ Failed to load your cards. Please try again.")
		return
	}

	i, ok := parseIndex(extractCommandArgs(update.Message.Text, "/delcard"), len(list))
	if !ok {
		reply(ctx, tg, chatID, "Usage: <code>/delcard &lt;n&gt;</code> where n is the number shown by /cards.")
		return
	}

	card := list[i]
	if err := b.deps.Instruments.Delete(ctx, userID, card.ID); err != nil {
		logger.Log.Error().Err(err).Str("user_hash", logger.HashUserID(userID)).Msg("Failed to delete card")
		reply(ctx, tg, chatID, "❌ Failed to delete the card. Please try again.")
		return
	}

	card.IsDefault = false
	reply(ctx, tg, chatID, "🗑 Deleted card "+formatCard(card)+".")
}

// handleDefaultCard handles the /defaultcard command.
func (b *Bot) handleDefaultCard(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleDefaultCardCore(ctx, tgBot, update)
}

// handleDefaultCardCore is the testable implementation of handleDefaultCard.
func (b *Bot) handleDefaultCardCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID

	list, err := b.deps.Instruments.List(ctx, userID)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to list cards")
		reply(ctx, tg, chatID, "❌ Failed to load your cards. Please try again.")
		return
	}

	i, ok := parseIndex(extractCommandArgs(update.Message.Text, "/defaultcard"), len(list))
	if !ok {
		reply(ctx, tg, chatID, "Usage: <code>/defaultcard &lt;n&gt;</code> where n is the number shown by /cards.")
		return
	}

	card := list[i]
	card.IsDefault = true
	if err := b.deps.Instruments.Upsert(ctx, &card); err != nil {
		logger.Log.Error().Err(err).Str("user_hash", logger.HashUserID(userID)).Msg("Failed to set default card")
		reply(ctx, tg, chatID, "❌ Failed to update the card. Please try again.")
		return
	}

	reply(ctx, tg, chatID, "⭐ Default card is now "+formatCard(card)+".")
}
