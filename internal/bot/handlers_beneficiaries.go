package bot

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/deloabass/nigertransfert/internal/logger"
	appmodels "github.com/deloabass/nigertransfert/internal/models"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	addBeneficiaryUsage = "Usage: <code>/addbeneficiary Name | phone | city | CC [| service]</code>\n" +
		"Example: <code>/addbeneficiary Amina Issoufou | +227 90 00 00 01 | Niamey | NE | wave</code>"
	noBeneficiariesMsg = "You have no saved beneficiaries yet.\n\n" + addBeneficiaryUsage
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{8,15}$`)

// normalizePhone strips the separators people type in phone numbers.
func normalizePhone(phone string) string {
	return strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "").Replace(strings.TrimSpace(phone))
}

// parseIndex reads a 1-based list position.
func parseIndex(args string, n int) (int, bool) {
	i, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}

// handleBeneficiaries handles the /beneficiaries command.
func (b *Bot) handleBeneficiaries(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleBeneficiariesCore(ctx, tgBot, update)
}

// handleBeneficiariesCore is the testable implementation of handleBeneficiaries.
func (b *Bot) handleBeneficiariesCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID

	list, err := b.deps.Beneficiaries.List(ctx, update.Message.From.ID)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to list beneficiaries")
		reply(ctx, tg, chatID, "❌ Failed to load your beneficiaries. Please try again.")
		return
	}
	if len(list) == 0 {
		reply(ctx, tg, chatID, noBeneficiariesMsg)
		return
	}

	var sb strings.Builder
	sb.WriteString("👥 <b>Your beneficiaries</b>\n")
	for i, ben := range list {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, b.formatBeneficiary(ben))
	}
	sb.WriteString("\n\nDelete one with <code>/delbeneficiary &lt;n&gt;</code>.")

	reply(ctx, tg, chatID, sb.String())
}

func (b *Bot) formatBeneficiary(ben appmodels.Beneficiary) string {
	s := fmt.Sprintf("<b>%s</b> · %s · ", escapeHTML(ben.Name), escapeHTML(ben.Phone))
	if ben.DestinationCity != "" {
		s += escapeHTML(ben.DestinationCity) + ", "
	}
	s += escapeHTML(b.countryName(ben.DestinationCountry))
	if ben.PreferredServiceID != "" {
		if offer, err := b.deps.Rates.Lookup(ben.DestinationCountry, ben.PreferredServiceID); err == nil {
			s += " · prefers " + escapeHTML(offer.Name)
		}
	}
	return s
}

// handleAddBeneficiary handles the /addbeneficiary command.
func (b *Bot) handleAddBeneficiary(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleAddBeneficiaryCore(ctx, tgBot, update)
}

// handleAddBeneficiaryCore is the testable implementation of handleAddBeneficiary.
func (b *Bot) handleAddBeneficiaryCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID

	args := extractCommandArgs(update.Message.Text, "/addbeneficiary")
	parts := strings.Split(args, "|")
	if len(parts) < 4 || len(parts) > 5 {
		reply(ctx, tg, chatID, addBeneficiaryUsage)
		return
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	name := strings.Join(strings.Fields(parts[0]), " ")
	if name == "" {
		reply(ctx, tg, chatID, "❌ The beneficiary needs a name.\n\n"+addBeneficiaryUsage)
		return
	}

	phone := normalizePhone(parts[1])
	if !phonePattern.MatchString(phone) {
		reply(ctx, tg, chatID, "❌ Invalid phone number. Use digits with an optional leading +, e.g. <code>+22790000001</code>.")
		return
	}

	country, err := b.deps.Rates.Country(parts[3])
	if err != nil {
		reply(ctx, tg, chatID, fmt.Sprintf("❌ Transfers to <code>%s</code> are not available.\n\n%s",
			escapeHTML(parts[3]), b.countryCodes()))
		return
	}

	ben := &appmodels.Beneficiary{
		OwnerID:            userID,
		Name:               name,
		Phone:              phone,
		DestinationCity:    parts[2],
		DestinationCountry: country.Code,
	}

	if len(parts) == 5 && parts[4] != "" {
		offer, err := b.deps.Rates.Lookup(country.Code, strings.ToLower(parts[4]))
		if err != nil {
			reply(ctx, tg, chatID, fmt.Sprintf("❌ Service <code>%s</code> is not offered in %s.\n\n%s",
				escapeHTML(parts[4]), escapeHTML(country.Name), b.serviceIDs(country.Code)))
			return
		}
		ben.PreferredServiceID = offer.ID
	}

	if err := b.deps.Beneficiaries.Upsert(ctx, ben); err != nil {
		logger.Log.Error().Err(err).Str("user_hash", logger.HashUserID(userID)).Msg("Failed to save beneficiary")
		reply(ctx, tg, chatID, "❌ Failed to save the beneficiary. Please try again.")
		return
	}

	logger.Log.Info().
		Str("user_hash", logger.HashUserID(userID)).
		Str("phone", logger.MaskPhone(ben.Phone)).
		Str("country", ben.DestinationCountry).
		Msg("Beneficiary saved")

	reply(ctx, tg, chatID, "✅ Beneficiary saved: "+b.formatBeneficiary(*ben))
}

func (b *Bot) countryCodes() string {
	var codes []string
	for _, c := range b.deps.Rates.Countries() {
		codes = append(codes, fmt.Sprintf("<code>%s</code> %s", c.Code, escapeHTML(c.Name)))
	}
	return "Available countries: " + strings.Join(codes, ", ")
}

func (b *Bot) serviceIDs(country string) string {
	offers, err := b.deps.Rates.Offers(country)
	if err != nil {
		return ""
	}
	var ids []string
	for _, o := range offers {
		ids = append(ids, "<code>"+o.ID+"</code>")
	}
	return "Available services: " + strings.Join(ids, ", ")
}

// handleDeleteBeneficiary handles the /delbeneficiary command.
func (b *Bot) handleDeleteBeneficiary(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleDeleteBeneficiaryCore(ctx, tgBot, update)
}

// handleDeleteBeneficiaryCore is the testable implementation of handleDeleteBeneficiary.
func (b *Bot) handleDeleteBeneficiaryCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID

	list, err := b.deps.Beneficiaries.List(ctx, userID)
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to list beneficiaries")
		reply(ctx, tg, chatID, "❌ Failed to load your beneficiaries. Please try again.")
		return
	}

	i, ok := parseIndex(extractCommandArgs(update.Message.Text, "/delbeneficiary"), len(list))
	if !ok {
		reply(ctx, tg, chatID, "Usage: <code>/delbeneficiary &lt;n&gt;</code> where n is the number shown by /beneficiaries.")
		return
	}

	ben := list[i]
	if err := b.deps.Beneficiaries.Delete(ctx, userID, ben.ID); err != nil {
		logger.Log.Error().Err(err).Str("user_hash", logger.HashUserID(userID)).Msg("Failed to delete beneficiary")
		reply(ctx, tg, chatID, "❌ Failed to delete the beneficiary. Please try again.")
		return
	}

	reply(ctx, tg, chatID, fmt.Sprintf("🗑 Deleted beneficiary <b>%s</b>.", escapeHTML(ben.Name)))
}
