package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/deloabass/nigertransfert/internal/logger"
	appmodels "github.com/deloabass/nigertransfert/internal/models"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// handleLimits handles the /limits command.
func (b *Bot) handleLimits(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleLimitsCore(ctx, tgBot, update)
}

// handleLimitsCore is the testable implementation of handleLimits. It replies with
// the tier ceilings and usage, followed by a chart once something was sent this month.
func (b *Bot) handleLimitsCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID

	tier, err := b.deps.Tiers.Tier(ctx, userID)
	if err != nil {
		logger.Log.Error().Err(err).Str("user_hash", logger.HashUserID(userID)).Msg("Failed to resolve tier")
		reply(ctx, tg, chatID, "❌ Failed to load your limits. Please try again.")
		return
	}
	set, err := b.deps.Policy.Set(tier)
	if err != nil {
		logger.Log.Error().Err(err).Str("tier", string(tier)).Msg("No limit set for tier")
		reply(ctx, tg, chatID, "❌ Failed to load your limits. Please try again.")
		return
	}
	usage, err := b.deps.Usage.Snapshot(ctx, userID)
	if err != nil {
		logger.Log.Error().Err(err).Str("user_hash", logger.HashUserID(userID)).Msg("Failed to load usage")
		reply(ctx, tg, chatID, "❌ Failed to load your limits. Please try again.")
		return
	}
	remaining, err := b.deps.Policy.Remaining(tier, usage)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to compute remaining limits")
		reply(ctx, tg, chatID, "❌ Failed to load your limits. Please try again.")
		return
	}

	reply(ctx, tg, chatID, formatLimits(tier, set, usage, remaining))

	chart, err := GenerateUsageChart(usage.Monthly, remaining.Monthly, tier)
	if err != nil {
		if !errors.Is(err, errNoUsage) {
			logger.Log.Error().Err(err).Msg("Failed to generate usage chart")
		}
		return
	}

	_, err = tg.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID: chatID,
		Document: &models.InputFileUpload{
			Filename: generateChartFilename(b.deps.Now()),
			Data:     bytes.NewReader(chart),
		},
		Caption:   fmt.Sprintf("📊 <b>This month</b>\n\nSent: %s\nRemaining: %s", usage.Monthly, remaining.Monthly),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to send usage chart")
	}
}

func formatLimits(
	tier appmodels.VerificationTier,
	set appmodels.LimitSet,
	usage, remaining appmodels.Usage,
) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📏 <b>Your limits</b> (%s tier)\n\n", tier)
	fmt.Fprintf(&sb, "Per transfer: up to <b>%s</b>\n", set.PerTransaction)

	rows := []struct {
		label             string
		used, limit, left appmodels.Money
	}{
		{"Today", usage.Daily, set.Daily, remaining.Daily},
		{"This week", usage.Weekly, set.Weekly, remaining.Weekly},
		{"This month", usage.Monthly, set.Monthly, remaining.Monthly},
	}
	for _, r := range rows {
		fmt.Fprintf(&sb, "%s: %s of %s sent, <b>%s</b> left\n", r.label, r.used, r.limit, r.left)
	}
	return strings.TrimRight(sb.String(), "\n")
}
