package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"rastreador-precos/internal/models"
	"rastreador-precos/internal/pending"
	"rastreador-precos/internal/price"
	"rastreador-precos/internal/scraper"
)

const lookupTimeout = 60 * time.Second

// handleLink busca o produto do link e oferece o botão para começar a monitorar
func (b *Bot) handleLink(ctx context.Context, e linkEvent) {
	b.registerUser(ctx, e.userID, e.firstName)

	processing, ok := b.sendHTML(e.chatID, "⏳ <b>Buscando detalhes do produto, aguarde...</b>", nil)
	messageID := 0
	if ok {
		messageID = processing.MessageID
	}

	lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	snapshot, err := b.source.Fetch(lookupCtx, e.url)
	if err != nil {
		b.log.Warn().Err(err).Str("url", e.url).Int64("user", e.userID).Msg("falha ao buscar produto")
		b.editHTML(e.chatID, messageID, lookupErrorText(err), nil, false)
		return
	}

	token, err := b.pending.Put(ctx, models.Candidate{
		OwnerID:  userKey(e.userID),
		URL:      e.url,
		Snapshot: snapshot,
	})
	if err != nil {
		b.log.Error().Err(err).Msg("falha ao guardar produto pendente")
		b.editHTML(e.chatID, messageID, "❌ <b>Erro inesperado.</b> Tente novamente.", nil, false)
		return
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Começar a monitorar", actionTrack+"_"+token),
	))
	b.editHTML(e.chatID, messageID, previewText(snapshot), &keyboard, snapshot.FirstImage() != "")
}

func lookupErrorText(err error) string {
	var sourceErr *scraper.SourceError
	if !errors.As(err, &sourceErr) {
		return "❌ <b>Não foi possível consultar o serviço de preços.</b>"
	}
	if strings.Contains(sourceErr.Message, "PID not found") {
		return "❌ <b>Não foi possível obter os dados.</b>\n\n" +
			"Talvez você tenha enviado um link encurtado. Abra o link no navegador e envie a URL completa."
	}
	return fmt.Sprintf("❌ <b>Erro:</b> %s", html.EscapeString(sourceErr.Message))
}

func previewText(s models.ProductSnapshot) string {
	current := price.Normalize(s.CurrentPrice)
	original := price.Normalize(s.OriginalPrice)

	name := s.Name
	if name == "" {
		name = "N/A"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n\n", html.EscapeString(name))
	fmt.Fprintf(&b, "<b>Preço:</b> <s>%s</s> → <b>%s</b>",
		html.EscapeString(withSymbol(s.Currency, original.Display)),
		html.EscapeString(withSymbol(s.Currency, current.Display)))
	if s.Discount > 0 {
		fmt.Fprintf(&b, " <code>(%g%%)</code>", s.Discount)
	}
	b.WriteString("\n")
	if s.Rating > 0 {
		fmt.Fprintf(&b, "<b>Avaliação:</b> %g⭐ (%d avaliações)\n", s.Rating, s.ReviewsCount)
	}
	if img := s.FirstImage(); img != "" {
		fmt.Fprintf(&b, "<a href=\"%s\">\u200b</a>", html.EscapeString(img))
	}
	b.WriteString("\nToque no botão abaixo para começar a monitorar este produto.")
	return b.String()
}

// handleTrack grava o produto pendente e o adiciona à lista do usuário
func (b *Bot) handleTrack(ctx context.Context, e callbackEvent) {
	owner := userKey(e.userID)
	candidate, err := b.pending.Take(ctx, e.arg, owner)
	if err != nil {
		if !errors.Is(err, pending.ErrNotFound) && !errors.Is(err, pending.ErrNotOwner) {
			b.log.Error().Err(err).Msg("falha ao ler produto pendente")
		}
		b.answer(e.queryID, "Esta solicitação expirou. Envie o link novamente.", true)
		return
	}

	product := productFromCandidate(uuid.NewString(), candidate, time.Now().UTC())
	if err := b.store.InsertProduct(ctx, product); err != nil {
		b.log.Error().Err(err).Str("user", owner).Msg("falha ao gravar produto")
		b.answer(e.queryID, "Erro no banco de dados. Tente novamente.", true)
		return
	}
	if err := b.store.AppendTrackedID(ctx, owner, product.ID); err != nil {
		b.log.Error().Err(err).Str("user", owner).Str("product", product.ID).Msg("falha ao adicionar monitoramento")
		b.answer(e.queryID, "Erro no banco de dados. Tente novamente.", true)
		return
	}

	b.log.Info().Str("user", owner).Str("product", product.ID).Str("source", product.Source).Msg("novo monitoramento")
	b.answer(e.queryID, "✅ Produto adicionado ao monitoramento!", true)
	b.editHTML(e.chatID, e.messageID,
		"<b>✅ Produto adicionado ao monitoramento!</b>\nUse /my_trackings para ver todos os seus produtos.", nil, false)
}

func productFromCandidate(id string, c models.Candidate, now time.Time) models.Product {
	s := c.Snapshot
	return models.Product{
		ID:            id,
		UserID:        c.OwnerID,
		URL:           c.URL,
		Source:        models.NormalizeSource(s.Source),
		Currency:      s.Currency,
		Name:          s.Name,
		CurrentPrice:  price.Normalize(s.CurrentPrice),
		OriginalPrice: price.Normalize(s.OriginalPrice),
		Discount:      s.Discount,
		Rating:        s.Rating,
		ReviewsCount:  s.ReviewsCount,
		Images:        s.Images,
		Metadata:      s.Metadata,
		LastChecked:   now,
		CreatedAt:     now,
	}
}

func withSymbol(currency, display string) string {
	if currency == "" || display == "" || display == "N/A" || strings.HasPrefix(display, currency) {
		return display
	}
	return currency + display
}
