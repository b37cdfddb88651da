package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"slices"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rastreador-precos/internal/database"
)

const maxButtonLabel = 60

// showTrackings lista os produtos do usuário; com messageID edita a mensagem existente
func (b *Bot) showTrackings(ctx context.Context, chatID, userID int64, messageID int) {
	ids, err := b.store.TrackedIDs(ctx, userKey(userID))
	if err != nil {
		b.log.Error().Err(err).Int64("user", userID).Msg("falha ao carregar lista do usuário")
		b.editHTML(chatID, messageID, "❌ <b>Erro:</b> não foi possível carregar sua lista.", nil, false)
		return
	}
	if len(ids) == 0 {
		b.editHTML(chatID, messageID, "😔 <b>Você ainda não está monitorando nenhum produto.</b>\n"+
			"Envie o link de um produto para começar!", nil, false)
		return
	}

	products, err := b.store.GetProducts(ctx, ids)
	if err != nil {
		b.log.Error().Err(err).Int64("user", userID).Msg("falha ao carregar produtos do usuário")
		b.editHTML(chatID, messageID, "❌ <b>Erro:</b> não foi possível carregar os detalhes dos produtos.", nil, false)
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, id := range ids {
		p, ok := products[id]
		if !ok {
			continue
		}
		name := p.Name
		if name == "" {
			name = "Produto sem nome"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(truncate(name, maxButtonLabel), actionInfo+"_"+id),
		))
	}
	if len(rows) == 0 {
		b.editHTML(chatID, messageID, "😔 <b>Você ainda não está monitorando nenhum produto.</b>\n"+
			"Parece que seus produtos anteriores foram removidos. Envie um novo link para começar!", nil, false)
		return
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.editHTML(chatID, messageID, "📝 <b>Seus produtos monitorados:</b>\n\nToque em um produto para ver os detalhes.", &keyboard, false)
}

// handleInfo mostra os detalhes de um produto da lista do usuário
func (b *Bot) handleInfo(ctx context.Context, e callbackEvent) {
	owner := userKey(e.userID)
	ids, err := b.store.TrackedIDs(ctx, owner)
	if err != nil {
		b.log.Error().Err(err).Str("user", owner).Msg("falha ao carregar lista do usuário")
		b.answer(e.queryID, "⚠️ Ocorreu um erro ao buscar os detalhes do produto.", true)
		return
	}
	if !slices.Contains(ids, e.arg) {
		b.answer(e.queryID, "⚠️ Este produto não está mais sendo monitorado.", true)
		b.showTrackings(ctx, e.chatID, e.userID, e.messageID)
		return
	}

	p, err := b.store.GetProduct(ctx, e.arg)
	if errors.Is(err, database.ErrNotFound) {
		b.answer(e.queryID, "⚠️ Este produto não existe mais.", true)
		b.showTrackings(ctx, e.chatID, e.userID, e.messageID)
		return
	}
	if err != nil {
		b.log.Error().Err(err).Str("product", e.arg).Msg("falha ao carregar produto")
		b.answer(e.queryID, "⚠️ Ocorreu um erro ao buscar os detalhes do produto.", true)
		return
	}

	var text strings.Builder
	if len(p.Images) > 0 {
		fmt.Fprintf(&text, "<a href=\"%s\">\u200b</a>", html.EscapeString(p.Images[0]))
	}
	name := p.Name
	if name == "" {
		name = "N/A"
	}
	fmt.Fprintf(&text, "<b>%s</b>\n\n", html.EscapeString(name))
	fmt.Fprintf(&text, "<b>Preço:</b> <s>%s</s> → <b>%s</b>",
		html.EscapeString(withSymbol(p.Currency, p.OriginalPrice.Display)),
		html.EscapeString(withSymbol(p.Currency, p.CurrentPrice.Display)))
	if p.Discount > 0 {
		fmt.Fprintf(&text, " <code>(%g%%)</code>", p.Discount)
	}
	fmt.Fprintf(&text, "\n<b>Avaliação:</b> %g (%d avaliações)\n", p.Rating, p.ReviewsCount)
	if !p.LastChecked.IsZero() {
		fmt.Fprintf(&text, "🕐 Última verificação: %s\n", p.LastChecked.Format("02/01/2006 15:04"))
	}
	fmt.Fprintf(&text, "🔗 <a href=\"%s\">Abrir na loja</a>", html.EscapeString(p.URL))

	keyboard := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❌ Parar de monitorar", actionStop+"_"+p.ID),
		tgbotapi.NewInlineKeyboardButtonData("🔙 Voltar", actionBack),
	))
	b.answer(e.queryID, "", false)
	b.editHTML(e.chatID, e.messageID, text.String(), &keyboard, len(p.Images) > 0)
}

// handleStop tira o produto da lista do usuário e mostra a lista atualizada
func (b *Bot) handleStop(ctx context.Context, e callbackEvent) {
	owner := userKey(e.userID)
	if err := b.store.RemoveTrackedIDs(ctx, owner, []string{e.arg}); err != nil {
		b.log.Error().Err(err).Str("user", owner).Str("product", e.arg).Msg("falha ao parar monitoramento")
		b.answer(e.queryID, "❌ Não foi possível parar o monitoramento. Tente novamente.", true)
		return
	}

	b.answer(e.queryID, "✅ Monitoramento encerrado!", false)
	b.showTrackings(ctx, e.chatID, e.userID, e.messageID)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
