package bot

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const reportFileName = "price_check.log"

// TelegramReport publica o resumo e o log detalhado de cada verificação num
// canal (ou tópico de grupo) de logs
type TelegramReport struct {
	api     Sender
	chatID  int64
	topicID int
}

// NewTelegramReport cria o publicador para o canal de logs
func NewTelegramReport(api Sender, chatID int64, topicID int) *TelegramReport {
	return &TelegramReport{api: api, chatID: chatID, topicID: topicID}
}

func (r *TelegramReport) params() tgbotapi.Params {
	params := tgbotapi.Params{"chat_id": strconv.FormatInt(r.chatID, 10)}
	params.AddNonZero("message_thread_id", r.topicID)
	return params
}

func (r *TelegramReport) Publish(ctx context.Context, summary string, detail []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := r.params()
	params["text"] = summary
	params["parse_mode"] = tgbotapi.ModeHTML
	params.AddBool("disable_web_page_preview", true)
	if _, err := r.api.MakeRequest("sendMessage", params); err != nil {
		return fmt.Errorf("enviar resumo: %w", err)
	}

	if len(detail) == 0 {
		return nil
	}
	files := []tgbotapi.RequestFile{{
		Name: "document",
		Data: tgbotapi.FileBytes{Name: reportFileName, Bytes: detail},
	}}
	if _, err := r.api.UploadFiles("sendDocument", r.params(), files); err != nil {
		return fmt.Errorf("enviar log detalhado: %w", err)
	}
	return nil
}

// LogReport registra o resumo só no log da aplicação, quando não há canal configurado
type LogReport struct {
	log zerolog.Logger
}

// NewLogReport cria o publicador que só registra no log
func NewLogReport(log zerolog.Logger) *LogReport {
	return &LogReport{log: log.With().Str("component", "report").Logger()}
}

func (r *LogReport) Publish(_ context.Context, summary string, detail []byte) error {
	r.log.Info().Int("detail_bytes", len(detail)).Msg(summary)
	r.log.Debug().Msg(string(detail))
	return nil
}
