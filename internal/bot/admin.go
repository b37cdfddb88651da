package bot

import (
	"context"
	"errors"
	"fmt"
	"html"

	"rastreador-precos/internal/monitor"
)

// messageProgress mostra o andamento da verificação editando uma mensagem
type messageProgress struct {
	b         *Bot
	chatID    int64
	messageID int
}

func (p *messageProgress) Update(_ context.Context, text string) {
	p.b.editHTML(p.chatID, p.messageID, text, nil, false)
}

// handleCheck dispara uma verificação manual em segundo plano
func (b *Bot) handleCheck(ctx context.Context, e commandEvent) {
	status, ok := b.sendHTML(e.chatID, "🔎 <b>Iniciando verificação de preços...</b>", nil)
	progress := &messageProgress{b: b, chatID: e.chatID}
	if ok {
		progress.messageID = status.MessageID
	}

	b.goBackground(func() {
		_, err := b.monitor.Trigger(ctx, progress)
		switch {
		case errors.Is(err, monitor.ErrRunInProgress):
			progress.Update(ctx, "⚠️ Já existe uma verificação em andamento.")
		case err != nil:
			b.log.Error().Err(err).Msg("verificação manual falhou")
			progress.Update(ctx, fmt.Sprintf("❌ <b>Falha na verificação:</b> %s", html.EscapeString(err.Error())))
		}
	})
}

func (b *Bot) handleStats(ctx context.Context, e commandEvent) {
	status, ok := b.sendHTML(e.chatID, "⏳ <b>Calculando estatísticas...</b>", nil)
	messageID := 0
	if ok {
		messageID = status.MessageID
	}

	report, err := b.usage(ctx)
	if err != nil {
		b.log.Error().Err(err).Msg("falha ao calcular estatísticas")
		b.editHTML(e.chatID, messageID, "❌ <b>Erro ao calcular as estatísticas.</b>", nil, false)
		return
	}
	b.editHTML(e.chatID, messageID, report.Text(), nil, false)
}
