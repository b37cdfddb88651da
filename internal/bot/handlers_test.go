package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rastreador-precos/internal/models"
	"rastreador-precos/internal/monitor"
	"rastreador-precos/internal/pending"
	"rastreador-precos/internal/scraper"
)

type fakeRunner struct {
	err     error
	summary *monitor.Summary
	done    chan struct{}
}

func (f *fakeRunner) Trigger(ctx context.Context, progress monitor.Progress) (*monitor.Summary, error) {
	defer close(f.done)
	if f.err != nil {
		return nil, f.err
	}
	progress.Update(ctx, "concluído")
	return f.summary, nil
}

type testBot struct {
	*Bot
	api     *fakeSender
	store   *fakeStore
	source  *fakeSource
	pending *pending.MemoryStore
	runner  *fakeRunner
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()
	tb := &testBot{
		api:     &fakeSender{},
		store:   newFakeStore(),
		source:  &fakeSource{},
		pending: pending.NewMemoryStore(time.Minute, 10),
		runner:  &fakeRunner{summary: &monitor.Summary{}, done: make(chan struct{})},
	}
	tb.Bot = New(tb.api, Deps{
		Store:   tb.store,
		Source:  tb.source,
		Pending: tb.pending,
		Monitor: tb.runner,
		Usage: func(context.Context) (*monitor.UsageReport, error) {
			return &monitor.UsageReport{TotalUsers: 3}, nil
		},
		AdminID: 1,
	}, zerolog.Nop())
	return tb
}

func (tb *testBot) handle(update tgbotapi.Update) {
	tb.dispatch(context.Background(), classify(update))
}

func callbackData(t *testing.T, c tgbotapi.Chattable) []string {
	t.Helper()
	var markup *tgbotapi.InlineKeyboardMarkup
	switch m := c.(type) {
	case tgbotapi.EditMessageTextConfig:
		markup = m.ReplyMarkup
	case tgbotapi.MessageConfig:
		if mk, ok := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); ok {
			markup = &mk
		}
	}
	require.NotNil(t, markup)
	var out []string
	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil {
				out = append(out, *btn.CallbackData)
			}
		}
	}
	return out
}

func TestLinkTrackListAndStop(t *testing.T) {
	tb := newTestBot(t)
	tb.source.snapshot = models.ProductSnapshot{
		Name:          "Fone <JBL>",
		CurrentPrice:  1299,
		OriginalPrice: "₹1,999",
		Currency:      "₹",
		Source:        "Amazon",
		Images:        []string{"https://img.example/1.jpg"},
	}

	tb.handle(privateMessage(7, "https://www.amazon.in/dp/B0C"))

	preview := tb.api.last()
	text := tb.api.texts()[len(tb.api.texts())-1]
	assert.Contains(t, text, "Fone &lt;JBL&gt;")
	assert.Contains(t, text, "₹1299")
	data := callbackData(t, preview)
	require.Len(t, data, 1)
	require.True(t, strings.HasPrefix(data[0], "track_"))

	// outro usuário não consegue usar o token
	tb.handle(callback(8, data[0]))
	assert.Empty(t, tb.store.products)

	tb.handle(callback(7, data[0]))
	require.Len(t, tb.store.products, 1)
	ids := tb.store.trackings["7"]
	require.Len(t, ids, 1)
	p := tb.store.products[ids[0]]
	assert.Equal(t, "amazon", p.Source)
	assert.Equal(t, "7", p.UserID)
	assert.Equal(t, int64(1299), p.CurrentPrice.Amount)
	assert.Equal(t, int64(1999), p.OriginalPrice.Amount)
	assert.Contains(t, tb.api.texts()[len(tb.api.texts())-1], "Produto adicionado")

	// o token é de uso único
	tb.handle(callback(7, data[0]))
	answers := tb.api.answers()
	assert.Contains(t, answers[len(answers)-1].Text, "expirou")
	assert.Len(t, tb.store.products, 1)

	tb.handle(privateMessage(7, "/my_trackings"))
	assert.Equal(t, []string{"info_" + p.ID}, callbackData(t, tb.api.last()))

	tb.handle(callback(7, "info_"+p.ID))
	assert.Contains(t, tb.api.texts()[len(tb.api.texts())-1], "Abrir na loja")
	assert.Equal(t, []string{"stp_" + p.ID, "back_to_trackings"}, callbackData(t, tb.api.last()))

	tb.handle(callback(7, "stp_"+p.ID))
	assert.Empty(t, tb.store.trackings["7"])
	assert.Contains(t, tb.api.texts()[len(tb.api.texts())-1], "ainda não está monitorando")
}

func TestLinkLookupError(t *testing.T) {
	tb := newTestBot(t)
	tb.source.err = &scraper.SourceError{Source: "api", Message: "PID not found in URL, even after attempting to expand"}

	tb.handle(privateMessage(7, "https://amzn.to/abc"))

	assert.Contains(t, tb.api.texts()[len(tb.api.texts())-1], "link encurtado")
	assert.Equal(t, 0, tb.pending.Len())
}

func TestInfoForUntrackedProduct(t *testing.T) {
	tb := newTestBot(t)
	tb.store.products["p1"] = models.Product{ID: "p1", Name: "Fone"}

	tb.handle(callback(7, "info_p1"))

	answers := tb.api.answers()
	require.NotEmpty(t, answers)
	assert.True(t, answers[0].ShowAlert)
	assert.Contains(t, answers[0].Text, "não está mais sendo monitorado")
}

func TestCommandsRegisterUserAndHelp(t *testing.T) {
	tb := newTestBot(t)

	tb.handle(privateMessage(7, "/start"))
	assert.True(t, tb.store.users["7"])
	assert.Contains(t, tb.api.texts()[0], "Bem-vindo")

	tb.handle(privateMessage(7, "/help"))
	assert.NotContains(t, tb.api.texts()[1], "/check")

	tb.handle(privateMessage(1, "/help"))
	assert.Contains(t, tb.api.texts()[2], "/check")
}

func TestAdminCommands(t *testing.T) {
	tb := newTestBot(t)

	// não administradores são ignorados
	tb.handle(privateMessage(7, "/check"))
	tb.handle(privateMessage(7, "/stats"))
	assert.Empty(t, tb.api.sent)

	tb.handle(privateMessage(1, "/stats"))
	assert.Contains(t, tb.api.texts()[len(tb.api.texts())-1], "Total de usuários:</b> <code>3</code>")

	tb.handle(privateMessage(1, "/check"))
	select {
	case <-tb.runner.done:
	case <-time.After(time.Second):
		t.Fatal("verificação não foi disparada")
	}
	tb.wg.Wait()
	assert.Equal(t, "concluído", tb.api.texts()[len(tb.api.texts())-1])
}

func TestCheckAlreadyRunning(t *testing.T) {
	tb := newTestBot(t)
	tb.runner.err = monitor.ErrRunInProgress

	tb.handle(privateMessage(1, "/check"))
	tb.wg.Wait()

	assert.Contains(t, tb.api.texts()[len(tb.api.texts())-1], "Já existe uma verificação em andamento")
}

func TestRunStopsWhenContextEnds(t *testing.T) {
	tb := newTestBot(t)
	updates := make(chan tgbotapi.Update, 1)
	updates <- privateMessage(7, "/start")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tb.Run(ctx, updates)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(tb.api.texts()) == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run não retornou após o cancelamento")
	}
}

func TestNewUserJoinLog(t *testing.T) {
	tb := newTestBot(t)
	tb.joinLog = -100200

	start := privateMessage(7, "/start")
	start.Message.From.FirstName = "Ana <3"
	tb.handle(start)
	tb.handle(privateMessage(7, "/help"))

	var joins []tgbotapi.MessageConfig
	for _, c := range tb.api.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok && m.ChatID == -100200 {
			joins = append(joins, m)
		}
	}
	require.Len(t, joins, 1, "só o primeiro contato gera aviso")
	assert.Contains(t, joins[0].Text, "#Novo_Usuario")
	assert.Contains(t, joins[0].Text, `<a href="tg://user?id=7">Ana &lt;3</a>`)
	assert.Equal(t, tgbotapi.ModeHTML, joins[0].ParseMode)

	// link enviado antes de qualquer comando também registra o usuário
	tb.source.snapshot = models.ProductSnapshot{Name: "Fone", CurrentPrice: 10}
	tb.handle(privateMessage(8, "https://www.amazon.in/dp/B0C"))
	assert.True(t, tb.store.users["8"])
	assert.Equal(t, int64(-100200), tb.api.sent[len(tb.api.sent)-3].(tgbotapi.MessageConfig).ChatID)
}

func TestJoinLogDisabled(t *testing.T) {
	tb := newTestBot(t)

	tb.handle(privateMessage(7, "/start"))

	require.Len(t, tb.api.sent, 1)
	assert.Equal(t, int64(7), tb.api.sent[0].(tgbotapi.MessageConfig).ChatID)
}
