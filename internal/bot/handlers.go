package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const startText = `👋 <b>Bem-vindo ao Rastreador de Preços!</b>

Acompanho os preços dos seus produtos favoritos e aviso quando eles mudam.

🔍 <b>Envie o link de um produto e eu vou:</b>
📉 acompanhar as mudanças de preço automaticamente
🔔 avisar quando o preço cair ou subir
📊 mostrar os detalhes e o preço atual

Use /help para ver como funciona.`

const helpText = `ℹ️ <b>Como usar o Rastreador de Preços</b>

<b>1️⃣ Começar a monitorar</b>
Envie o link de um produto (Amazon, Flipkart, Mercado Livre e outras lojas) e toque em <b>Começar a monitorar</b>.

<b>2️⃣ Ver seus produtos</b>
Use /my_trackings para ver tudo o que você está monitorando.

<b>3️⃣ Parar de monitorar</b>
Na sua lista, abra o produto e toque em <b>Parar de monitorar</b>.`

const adminHelpText = `

🛠️ <b>Administração</b>
/check - Verificar todos os preços agora
/stats - Estatísticas de uso`

// dispatch trata um evento já classificado
func (b *Bot) dispatch(ctx context.Context, ev event) {
	switch e := ev.(type) {
	case commandEvent:
		b.handleCommand(ctx, e)
	case linkEvent:
		b.handleLink(ctx, e)
	case callbackEvent:
		b.handleCallback(ctx, e)
	case ignoredEvent:
	}
}

func (b *Bot) handleCommand(ctx context.Context, e commandEvent) {
	if e.private {
		b.registerUser(ctx, e.userID, e.firstName)
	}

	switch e.command {
	case "start":
		b.sendHTML(e.chatID, startText, nil)
	case "help":
		text := helpText
		if b.isAdmin(e.userID) {
			text += adminHelpText
		}
		b.sendHTML(e.chatID, text, nil)
	case "my_trackings":
		b.showTrackings(ctx, e.chatID, e.userID, 0)
	case "check":
		if !b.isAdmin(e.userID) {
			return
		}
		b.handleCheck(ctx, e)
	case "stats":
		if !b.isAdmin(e.userID) {
			return
		}
		b.handleStats(ctx, e)
	default:
		if e.private {
			b.sendHTML(e.chatID, "Comando não reconhecido. Use /help para ver os comandos disponíveis.", nil)
		}
	}
}

// registerUser grava o usuário e, se for novo, avisa no canal de logs
func (b *Bot) registerUser(ctx context.Context, userID int64, firstName string) {
	created, err := b.store.UpsertUser(ctx, userKey(userID))
	if err != nil {
		b.log.Warn().Err(err).Int64("user", userID).Msg("falha ao registrar usuário")
		return
	}
	if !created || b.joinLog == 0 {
		return
	}
	if firstName == "" {
		firstName = "Usuário"
	}
	text := fmt.Sprintf("#Novo_Usuario\n\nNovo usuário\n\n<a href=\"tg://user?id=%d\">%s</a>", userID, html.EscapeString(firstName))
	msg := tgbotapi.NewMessage(b.joinLog, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn().Err(err).Int64("user", userID).Msg("falha ao enviar aviso de novo usuário")
	}
}

func (b *Bot) handleCallback(ctx context.Context, e callbackEvent) {
	switch e.action {
	case actionTrack:
		b.handleTrack(ctx, e)
	case actionInfo:
		b.handleInfo(ctx, e)
	case actionStop:
		b.handleStop(ctx, e)
	case actionBack:
		b.answer(e.queryID, "", false)
		b.showTrackings(ctx, e.chatID, e.userID, e.messageID)
	}
}

// sendHTML envia em HTML e, se falhar, tenta sem formatação
func (b *Bot) sendHTML(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, bool) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = *markup
	}

	sent, err := b.api.Send(msg)
	if err == nil {
		return sent, true
	}
	b.log.Warn().Err(err).Int64("chat", chatID).Msg("erro ao enviar mensagem com HTML")

	msg.ParseMode = ""
	sent, err = b.api.Send(msg)
	if err != nil {
		b.log.Error().Err(err).Int64("chat", chatID).Msg("erro ao enviar mensagem sem formatação")
		return tgbotapi.Message{}, false
	}
	return sent, true
}

// editHTML edita uma mensagem do bot; sem messageID envia uma nova
func (b *Bot) editHTML(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup, preview bool) {
	if messageID == 0 {
		b.sendHTML(chatID, text, markup)
		return
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = !preview
	if markup != nil {
		edit.ReplyMarkup = markup
	}
	if _, err := b.api.Send(edit); err != nil && !isNotModified(err) {
		b.log.Warn().Err(err).Int64("chat", chatID).Msg("erro ao editar mensagem (tentando enviar nova)")
		b.sendHTML(chatID, text, markup)
	}
}

func (b *Bot) answer(queryID, text string, alert bool) {
	cb := tgbotapi.NewCallback(queryID, text)
	cb.ShowAlert = alert
	if _, err := b.api.Request(cb); err != nil {
		b.log.Debug().Err(err).Msg("erro ao responder callback")
	}
}

func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

func userKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
