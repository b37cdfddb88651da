package bot

import (
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var urlPattern = regexp.MustCompile(`(?i)https?://[^\s]+`)

const (
	actionTrack = "track"
	actionInfo  = "info"
	actionStop  = "stp"
	actionBack  = "back_to_trackings"
)

// event é o conjunto fechado de entradas que o bot trata
type event interface {
	isEvent()
}

type commandEvent struct {
	chatID    int64
	userID    int64
	messageID int
	firstName string
	command   string // sem "/" e sem @nome_do_bot
	args      []string
	private   bool
}

type linkEvent struct {
	chatID    int64
	userID    int64
	messageID int
	firstName string
	url       string
}

type callbackEvent struct {
	queryID   string
	chatID    int64
	messageID int
	userID    int64
	action    string
	arg       string
}

type ignoredEvent struct{}

func (commandEvent) isEvent()  {}
func (linkEvent) isEvent()     {}
func (callbackEvent) isEvent() {}
func (ignoredEvent) isEvent()  {}

func classify(update tgbotapi.Update) event {
	if q := update.CallbackQuery; q != nil {
		return classifyCallback(q)
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return ignoredEvent{}
	}

	if msg.IsCommand() {
		return commandEvent{
			chatID:    msg.Chat.ID,
			userID:    msg.From.ID,
			messageID: msg.MessageID,
			firstName: msg.From.FirstName,
			command:   strings.ToLower(msg.Command()),
			args:      strings.Fields(msg.CommandArguments()),
			private:   msg.Chat.IsPrivate(),
		}
	}

	if !msg.Chat.IsPrivate() {
		return ignoredEvent{}
	}
	if url := urlPattern.FindString(msg.Text); url != "" {
		return linkEvent{
			chatID:    msg.Chat.ID,
			userID:    msg.From.ID,
			messageID: msg.MessageID,
			firstName: msg.From.FirstName,
			url:       url,
		}
	}
	return ignoredEvent{}
}

func classifyCallback(q *tgbotapi.CallbackQuery) event {
	if q.From == nil || q.Message == nil || q.Message.Chat == nil {
		return ignoredEvent{}
	}
	ev := callbackEvent{
		queryID:   q.ID,
		chatID:    q.Message.Chat.ID,
		messageID: q.Message.MessageID,
		userID:    q.From.ID,
	}

	data := q.Data
	if data == actionBack {
		ev.action = actionBack
		return ev
	}
	action, arg, ok := strings.Cut(data, "_")
	if !ok || arg == "" {
		return ignoredEvent{}
	}
	switch action {
	case actionTrack, actionInfo, actionStop:
		ev.action, ev.arg = action, arg
		return ev
	default:
		return ignoredEvent{}
	}
}
