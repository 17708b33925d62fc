package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/deloabass/nigertransfert/internal/fees"
	"github.com/deloabass/nigertransfert/internal/logger"
	appmodels "github.com/deloabass/nigertransfert/internal/models"
	"github.com/deloabass/nigertransfert/internal/wizard"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	sendCallbackPrefix     = "send_"
	countryCallbackPrefix  = "send_country_"
	serviceCallbackPrefix  = "send_svc_"
	beneficiaryCallbackPfx = "send_ben_"
	cardCallbackPrefix     = "send_card_"
	destCallback           = "send_dest"
	refreshCallback        = "send_refresh"
	confirmCallback        = "send_confirm"
	backCallback           = "send_back"
	cancelCallback         = "send_cancel"

	backButtonText    = "⬅️ Back"
	cancelButtonText  = "✖️ Cancel"
	confirmButtonText = "✅ Confirm"
	changeCountryText = "🌍 Change country"
	refreshButtonText = "🔄 Refresh"

	noTransferMsg       = "No transfer in progress. Start one with /send."
	transferInactiveMsg = "This transfer is no longer active. Start a new one with /send."
	cancelledMsg        = "✖️ Transfer cancelled."
)

// handleSend handles the /send command.
func (b *Bot) handleSend(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleSendCore(ctx, tgBot, update)
}

// handleSendCore is the testable implementation of handleSend. It opens a fresh
// wizard run for the chat, replacing any unfinished one.
func (b *Bot) handleSendCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID

	if prev, ok := b.session(chatID); ok && !prev.session.Step().IsTerminal() {
		_ = prev.session.Cancel()
	}

	cs := &chatSession{session: b.deps.Wizard.Start(update.Message.From.ID)}
	b.setSession(chatID, cs)

	notice := ""
	if args := extractCommandArgs(update.Message.Text, "/send"); args != "" {
		// Without a destination the amount is kept and the country picker follows.
		err := cs.session.Advance(ctx, wizard.Input{Amount: args})
		if wizard.ErrorCode(err) != wizard.CodeDestinationRequired {
			notice = formatError(err)
		}
	}

	text, kb := b.countryPrompt(cs.session.Draft())
	b.sendStep(ctx, tg, chatID, withNotice(notice, text), kb)
}

// handleAmountTextCore reads free text as the amount while the chat's transfer waits
// for one. It reports whether the message was consumed.
func (b *Bot) handleAmountTextCore(ctx context.Context, tg TelegramAPI, update *models.Update) bool {
	msg := update.Message
	if msg.From == nil || msg.Text == "" || strings.HasPrefix(msg.Text, "/") {
		return false
	}

	cs, ok := b.session(msg.Chat.ID)
	if !ok || cs.session.SenderID() != msg.From.ID || cs.session.Step() != appmodels.StepAmount {
		return false
	}

	notice := formatError(cs.session.Advance(ctx, wizard.Input{Amount: msg.Text}))
	text, kb := b.renderStep(ctx, cs)
	b.sendStep(ctx, tg, msg.Chat.ID, withNotice(notice, text), kb)
	return true
}

// handleSendCallback handles the inline keyboard of a transfer in progress.
func (b *Bot) handleSendCallback(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleSendCallbackCore(ctx, tgBot, update)
}

// handleSendCallbackCore is the testable implementation of handleSendCallback.
func (b *Bot) handleSendCallbackCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	cq := update.CallbackQuery
	if cq == nil || cq.Message.Message == nil {
		return
	}
	chatID := cq.Message.Message.Chat.ID
	messageID := cq.Message.Message.ID

	_, _ = tg.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: cq.ID,
	})

	cs, ok := b.session(chatID)
	if !ok || cs.session.SenderID() != cq.From.ID {
		b.editStep(ctx, tg, chatID, messageID, transferInactiveMsg, nil)
		return
	}
	b.setSessionMessage(chatID, messageID)

	s := cs.session
	step := s.Step()
	data := cq.Data

	var err error
	switch {
	case data == destCallback:
		text, kb := b.countryPrompt(s.Draft())
		b.editStep(ctx, tg, chatID, messageID, text, kb)
		return
	case strings.HasPrefix(data, countryCallbackPrefix):
		err = s.SelectDestination(strings.TrimPrefix(data, countryCallbackPrefix))
		if err == nil && s.Step() == appmodels.StepAmount && s.Draft().Principal != nil {
			err = s.Advance(ctx, wizard.Input{})
		}
	case strings.HasPrefix(data, serviceCallbackPrefix) && step == appmodels.StepService:
		err = s.Advance(ctx, wizard.Input{ServiceID: strings.TrimPrefix(data, serviceCallbackPrefix)})
	case strings.HasPrefix(data, beneficiaryCallbackPfx) && step == appmodels.StepBeneficiary:
		err = s.Advance(ctx, wizard.Input{BeneficiaryID: strings.TrimPrefix(data, beneficiaryCallbackPfx)})
	case strings.HasPrefix(data, cardCallbackPrefix) && step == appmodels.StepPayment:
		err = s.Advance(ctx, wizard.Input{InstrumentID: strings.TrimPrefix(data, cardCallbackPrefix)})
	case data == confirmCallback && step == appmodels.StepSummary:
		err = s.Advance(ctx, wizard.Input{})
	case data == backCallback:
		err = s.Back()
	case data == cancelCallback:
		err = s.Cancel()
	}
	// Anything else (refresh, or a button from an older step) re-renders the current step.

	if s.Step().IsTerminal() {
		b.dropSession(chatID)
	}

	text, kb := b.renderStep(ctx, cs)
	b.editStep(ctx, tg, chatID, messageID, withNotice(formatError(err), text), kb)
}

// handleCancel handles the /cancel command.
func (b *Bot) handleCancel(ctx context.Context, tgBot *bot.Bot, update *models.Update) {
	b.handleCancelCore(ctx, tgBot, update)
}

// handleCancelCore is the testable implementation of handleCancel.
func (b *Bot) handleCancelCore(ctx context.Context, tg TelegramAPI, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	cs, ok := b.session(chatID)
	if !ok || cs.session.Cancel() != nil {
		b.dropSession(chatID)
		reply(ctx, tg, chatID, noTransferMsg)
		return
	}
	b.dropSession(chatID)

	if cs.messageID != 0 {
		b.editStep(ctx, tg, chatID, cs.messageID, cancelledMsg, nil)
	}
	reply(ctx, tg, chatID, cancelledMsg)
}

// sendStep posts a step message and remembers it as the chat's wizard message.
func (b *Bot) sendStep(ctx context.Context, tg TelegramAPI, chatID int64, text string, kb *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if kb != nil {
		params.ReplyMarkup = kb
	}

	sent, err := tg.SendMessage(ctx, params)
	if err != nil {
		logger.Log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send transfer step")
		return
	}
	b.setSessionMessage(chatID, sent.ID)
}

func (b *Bot) editStep(
	ctx context.Context,
	tg TelegramAPI,
	chatID int64,
	messageID int,
	text string,
	kb *models.InlineKeyboardMarkup,
) {
	params := &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}
	if kb != nil {
		params.ReplyMarkup = kb
	}

	if _, err := tg.EditMessageText(ctx, params); err != nil {
		logger.Log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to edit transfer step")
	}
}

func withNotice(notice, text string) string {
	if notice == "" {
		return text
	}
	return notice + "\n\n" + text
}

// renderStep builds the message for the session's current step.
func (b *Bot) renderStep(ctx context.Context, cs *chatSession) (string, *models.InlineKeyboardMarkup) {
	s := cs.session
	draft := s.Draft()

	switch draft.Step {
	case appmodels.StepAmount:
		if draft.Destination == "" {
			return b.countryPrompt(draft)
		}
		return b.amountPrompt(draft)
	case appmodels.StepService:
		return b.servicePrompt(draft)
	case appmodels.StepBeneficiary:
		return b.beneficiaryPrompt(ctx, s.SenderID(), draft)
	case appmodels.StepPayment:
		return b.paymentPrompt(ctx, s.SenderID())
	case appmodels.StepSummary:
		return b.summaryPrompt(ctx, s, draft)
	case appmodels.StepSubmitted:
		req, result, _ := s.Result()
		return formatResult(req, result), nil
	default:
		return cancelledMsg, nil
	}
}

func navRow() []models.InlineKeyboardButton {
	return []models.InlineKeyboardButton{
		{Text: backButtonText, CallbackData: backCallback},
		{Text: cancelButtonText, CallbackData: cancelCallback},
	}
}

func (b *Bot) countryName(code string) string {
	c, err := b.deps.Rates.Country(code)
	if err != nil {
		return code
	}
	return c.Name
}

func (b *Bot) countryPrompt(draft appmodels.TransferDraft) (string, *models.InlineKeyboardMarkup) {
	var sb strings.Builder
	sb.WriteString("🌍 <b>Where are you sending money?</b>")
	if draft.Principal != nil {
		fmt.Fprintf(&sb, "\n\nAmount: <b>%s</b>", draft.Principal)
	}

	var rows [][]models.InlineKeyboardButton
	var row []models.InlineKeyboardButton
	for _, c := range b.deps.Rates.Countries() {
		label := c.Name
		if c.Code == draft.Destination {
			label = "✓ " + label
		}
		row = append(row, models.InlineKeyboardButton{Text: label, CallbackData: countryCallbackPrefix + c.Code})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []models.InlineKeyboardButton{{Text: cancelButtonText, CallbackData: cancelCallback}})

	return sb.String(), &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (b *Bot) amountPrompt(draft appmodels.TransferDraft) (string, *models.InlineKeyboardMarkup) {
	text := fmt.Sprintf(`💶 <b>How much do you want to send to %s?</b>

Type an amount in EUR, e.g. <code>150</code> or <code>150,50</code>.`,
		escapeHTML(b.countryName(draft.Destination)))

	kb := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: changeCountryText, CallbackData: destCallback}},
			{{Text: cancelButtonText, CallbackData: cancelCallback}},
		},
	}
	return text, kb
}

func (b *Bot) servicePrompt(draft appmodels.TransferDraft) (string, *models.InlineKeyboardMarkup) {
	var sb strings.Builder
	sb.WriteString("🏦 <b>Choose a service</b>\n")
	if draft.Principal != nil {
		fmt.Fprintf(&sb, "Sending <b>%s</b> to <b>%s</b>\n", draft.Principal, escapeHTML(b.countryName(draft.Destination)))
	}

	offers, err := b.deps.Rates.Offers(draft.Destination)
	if err != nil {
		logger.Log.Error().Err(err).Str("country", draft.Destination).Msg("Failed to list offers")
	}

	var rows [][]models.InlineKeyboardButton
	for _, offer := range offers {
		sb.WriteString("\n• ")
		sb.WriteString(formatOfferLine(draft.Principal, offer))

		label := offer.Name
		if offer.ID == draft.ServiceID {
			label = "✓ " + label
		}
		rows = append(rows, []models.InlineKeyboardButton{{Text: label, CallbackData: serviceCallbackPrefix + offer.ID}})
	}
	rows = append(rows,
		[]models.InlineKeyboardButton{{Text: changeCountryText, CallbackData: destCallback}},
		navRow(),
	)

	return sb.String(), &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// formatOfferLine previews what an offer would cost for principal.
func formatOfferLine(principal *appmodels.Money, offer appmodels.ServiceOffer) string {
	name := "<b>" + escapeHTML(offer.Name) + "</b>"
	if principal == nil {
		return name
	}
	quote, err := fees.Compute(*principal, offer)
	if err != nil {
		return fmt.Sprintf("%s: only %s to %s", name, offer.MinAmount, offer.MaxAmount)
	}
	return fmt.Sprintf("%s: fee %s, they receive %s (%s)",
		name, quote.Fee, quote.ReceivedAmount, escapeHTML(offer.ProcessingTimeLabel))
}

func (b *Bot) beneficiaryPrompt(
	ctx context.Context,
	senderID int64,
	draft appmodels.TransferDraft,
) (string, *models.InlineKeyboardMarkup) {
	var sb strings.Builder
	sb.WriteString("👤 <b>Who are you sending to?</b>\n")

	list, err := b.deps.Beneficiaries.List(ctx, senderID)
	if err != nil {
		logger.Log.Error().Err(err).Str("user_hash", logger.HashUserID(senderID)).Msg("Failed to list beneficiaries")
	}

	var rows [][]models.InlineKeyboardButton
	for _, ben := range list {
		if ben.DestinationCountry != draft.Destination {
			continue
		}
		label := ben.Name
		if ben.DestinationCity != "" {
			label += " · " + ben.DestinationCity
		}
		rows = append(rows, []models.InlineKeyboardButton{{Text: label, CallbackData: beneficiaryCallbackPfx + ben.ID}})
	}

	if len(rows) == 0 {
		fmt.Fprintf(&sb, "\nNo saved beneficiary in <b>%s</b> yet. Add one with\n<code>/addbeneficiary Name | phone | city | %s</code>\nthen tap %s.",
			escapeHTML(b.countryName(draft.Destination)), draft.Destination, refreshButtonText)
	}
	rows = append(rows,
		[]models.InlineKeyboardButton{{Text: refreshButtonText, CallbackData: refreshCallback}},
		navRow(),
	)

	return sb.String(), &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (b *Bot) paymentPrompt(ctx context.Context, senderID int64) (string, *models.InlineKeyboardMarkup) {
	var sb strings.Builder
	sb.WriteString("💳 <b>Which card do you want to pay with?</b>\n")

	list, err := b.deps.Instruments.List(ctx, senderID)
	if err != nil {
		logger.Log.Error().Err(err).Str("user_hash", logger.HashUserID(senderID)).Msg("Failed to list cards")
	}

	var rows [][]models.InlineKeyboardButton
	for _, card := range list {
		rows = append(rows, []models.InlineKeyboardButton{{Text: formatCard(card), CallbackData: cardCallbackPrefix + card.ID}})
	}
	if len(rows) == 0 {
		fmt.Fprintf(&sb, "\nNo card saved yet. Add one with\n<code>/addcard &lt;number&gt; &lt;MM/YY&gt; &lt;holder&gt;</code>\nthen tap %s.",
			refreshButtonText)
	}
	rows = append(rows,
		[]models.InlineKeyboardButton{{Text: refreshButtonText, CallbackData: refreshCallback}},
		navRow(),
	)

	return sb.String(), &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (b *Bot) summaryPrompt(
	ctx context.Context,
	s *wizard.Session,
	draft appmodels.TransferDraft,
) (string, *models.InlineKeyboardMarkup) {
	var sb strings.Builder
	sb.WriteString("🧾 <b>Transfer summary</b>\n\n")

	if ben, err := b.deps.Beneficiaries.Get(ctx, draft.BeneficiaryID); err == nil {
		fmt.Fprintf(&sb, "<b>To:</b> %s (%s)", escapeHTML(ben.Name), escapeHTML(ben.Phone))
		if ben.DestinationCity != "" {
			fmt.Fprintf(&sb, ", %s", escapeHTML(ben.DestinationCity))
		}
		fmt.Fprintf(&sb, ", %s\n", escapeHTML(b.countryName(ben.DestinationCountry)))
	}

	offer, offerErr := b.deps.Rates.Lookup(draft.Destination, draft.ServiceID)
	if offerErr == nil {
		fmt.Fprintf(&sb, "<b>Service:</b> %s (%s)\n", escapeHTML(offer.Name), escapeHTML(offer.ProcessingTimeLabel))
	}
	if card, err := b.deps.Instruments.Get(ctx, draft.InstrumentID); err == nil {
		fmt.Fprintf(&sb, "<b>Card:</b> %s\n", formatCard(*card))
	}

	if quote, ok := s.Quote(); ok {
		fmt.Fprintf(&sb, "\nAmount: %s\nFee: %s\n<b>Total debited: %s</b>\n<b>They receive: %s</b>\n",
			quote.Principal, quote.Fee, quote.TotalDebit, quote.ReceivedAmount)
	}
	if offerErr == nil {
		fmt.Fprintf(&sb, "Rate: 1 EUR = %s %s\n", offer.Rate.String(), offer.Currency)
	}

	kb := &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: confirmButtonText, CallbackData: confirmCallback}},
			navRow(),
		},
	}
	return strings.TrimRight(sb.String(), "\n"), kb
}
