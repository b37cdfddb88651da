package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rastreador-precos/internal/models"
)

var (
	// ErrBlocked indica que o usuário bloqueou o bot
	ErrBlocked = errors.New("usuário bloqueou o bot")
	// ErrInvalidRecipient indica destinatário inexistente ou id inválido
	ErrInvalidRecipient = errors.New("destinatário inválido")
)

// Dispatcher entrega as mensagens do monitor pelo Telegram
type Dispatcher struct {
	api Sender
}

// NewDispatcher cria o entregador de mensagens
func NewDispatcher(api Sender) *Dispatcher {
	return &Dispatcher{api: api}
}

// Send envia a mensagem em HTML; se o Telegram recusar a formatação, reenvia sem ela
func (d *Dispatcher) Send(ctx context.Context, recipientID string, n models.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID, err := strconv.ParseInt(recipientID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRecipient, recipientID)
	}

	msg := tgbotapi.NewMessage(chatID, n.Text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = n.DisablePreview
	if n.ButtonURL != "" {
		label := n.ButtonText
		if label == "" {
			label = n.ButtonURL
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(label, n.ButtonURL)),
		)
	}

	_, err = d.api.Send(msg)
	if err != nil && isParseError(err) {
		msg.ParseMode = ""
		_, err = d.api.Send(msg)
	}
	return classifySendError(err)
}

func isParseError(err error) bool {
	var tgErr *tgbotapi.Error
	return errors.As(err, &tgErr) && tgErr.Code == 400 && strings.Contains(tgErr.Message, "can't parse entities")
}

// classifySendError separa falhas permanentes (bloqueio, chat inexistente) das transitórias
func classifySendError(err error) error {
	if err == nil {
		return nil
	}
	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) {
		return fmt.Errorf("envio falhou: %w", err)
	}
	switch {
	case tgErr.Code == 403:
		return fmt.Errorf("%w: %s", ErrBlocked, tgErr.Message)
	case tgErr.Code == 400 && strings.Contains(strings.ToLower(tgErr.Message), "chat not found"):
		return fmt.Errorf("%w: %s", ErrInvalidRecipient, tgErr.Message)
	default:
		return fmt.Errorf("envio falhou: %w", err)
	}
}
