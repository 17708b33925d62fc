package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/deloabass/nigertransfert/internal/logger"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// extractCommandArgs strips the /command prefix (and optional @botname suffix)
// from a message and returns the remaining trimmed arguments.
func extractCommandArgs(text, command string) string {
	args := strings.TrimSpace(strings.TrimPrefix(text, command))
	if strings.HasPrefix(args, "@") {
		if spaceIdx := strings.Index(args, " "); spaceIdx != -1 {
			args = strings.TrimSpace(args[spaceIdx:])
		} else {
			args = ""
		}
	}
	return args
}

// formatGreeting returns a greeting suffix with the user's name.
func formatGreeting(firstName string) string {
	if firstName == "" {
		return ""
	}
	return ", " + escapeHTML(firstName)
}

// reply sends an HTML message to the chat the update came from.
func reply(ctx context.Context, tg TelegramAPI, chatID int64, text string) {
	_, err := tg.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		logger.Log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

// handleStart handles the /start command.
func (b *Bot) handleStart(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleStartCore(ctx, tgBot, update)
}

// handleStartCore is the testable implementation of handleStart.
func (b *Bot) handleStartCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}

	firstName := ""
	if update.Message.From != nil {
		firstName = update.Message.From.FirstName
	}

	text := fmt.Sprintf(`👋 Welcome%s!

I help you send money from Europe to family and friends in Africa.

<b>Quick Start:</b>
• Save who you send to: <code>/addbeneficiary Amina | +22790000001 | Niamey | NE</code>
• Save a card: <code>/addcard 4242 4242 4242 4242 12/29 Your Name</code>
• Start a transfer: <code>/send 150</code>

Use /help to see all available commands.`,
		formatGreeting(firstName))

	logger.Log.Debug().Int64("chat_id", update.Message.Chat.ID).Msg("Sending /start response")
	reply(ctx, tg, update.Message.Chat.ID, text)
}

// handleHelp handles the /help command.
func (b *Bot) handleHelp(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleHelpCore(ctx, tgBot, update)
}

// handleHelpCore is the testable implementation of handleHelp.
func (b *Bot) handleHelpCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}

	text := `📚 <b>Available Commands</b>

<b>Transfers:</b>
• <code>/send [amount]</code> - Start a transfer in EUR
• <code>/cancel</code> - Cancel the transfer in progress
• <code>/limits</code> - Show your limits and what you have used

<b>Beneficiaries:</b>
• <code>/beneficiaries</code> - List saved beneficiaries
• <code>/addbeneficiary Name | phone | city | CC [| service]</code> - Save a beneficiary
• <code>/delbeneficiary &lt;n&gt;</code> - Delete beneficiary number n

<b>Cards:</b>
• <code>/cards</code> - List saved cards
• <code>/addcard &lt;number&gt; &lt;MM/YY&gt; &lt;holder&gt;</code> - Save a card
• <code>/defaultcard &lt;n&gt;</code> - Make card number n the default
• <code>/delcard &lt;n&gt;</code> - Delete card number n

<b>Other:</b>
• <code>/help</code> - Show this help message`

	reply(ctx, tg, update.Message.Chat.ID, text)
}
