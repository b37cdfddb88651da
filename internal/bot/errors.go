package bot

import (
	"context"
	"html"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const errorQueueSize = 64

// ErrorReporter é um hook do zerolog que repassa as mensagens de erro para o
// tópico de erros do canal de logs. O envio acontece em Start, fora da
// goroutine que registrou o erro; com a fila cheia a mensagem é descartada.
type ErrorReporter struct {
	api     Sender
	chatID  int64
	topicID int
	queue   chan string
	log     zerolog.Logger
}

// NewErrorReporter cria o hook. log é usado só para falhas de envio e não
// deve ter o próprio hook.
func NewErrorReporter(api Sender, chatID int64, topicID int, log zerolog.Logger) *ErrorReporter {
	return &ErrorReporter{
		api:     api,
		chatID:  chatID,
		topicID: topicID,
		queue:   make(chan string, errorQueueSize),
		log:     log.With().Str("component", "error_reporter").Logger(),
	}
}

// Run implementa zerolog.Hook
func (r *ErrorReporter) Run(_ *zerolog.Event, level zerolog.Level, msg string) {
	if level < zerolog.ErrorLevel || level == zerolog.NoLevel || msg == "" {
		return
	}
	select {
	case r.queue <- msg:
	default:
	}
}

// Start envia as mensagens da fila até o contexto acabar; o que já estava na
// fila ainda é enviado antes de retornar
func (r *ErrorReporter) Start(ctx context.Context) {
	for {
		select {
		case msg := <-r.queue:
			r.send(msg)
		case <-ctx.Done():
			for {
				select {
				case msg := <-r.queue:
					r.send(msg)
				default:
					return
				}
			}
		}
	}
}

func (r *ErrorReporter) send(msg string) {
	params := tgbotapi.Params{
		"chat_id":    strconv.FormatInt(r.chatID, 10),
		"text":       "<b>#Erro</b>\n" + html.EscapeString(msg),
		"parse_mode": tgbotapi.ModeHTML,
	}
	params.AddNonZero("message_thread_id", r.topicID)
	if _, err := r.api.MakeRequest("sendMessage", params); err != nil {
		r.log.Warn().Err(err).Msg("falha ao reportar erro no Telegram")
	}
}
