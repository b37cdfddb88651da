package bot

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"rastreador-precos/internal/models"
	"rastreador-precos/internal/monitor"
	"rastreador-precos/internal/pending"
)

// Sender é a parte da API do Telegram usada pelo bot. *tgbotapi.BotAPI a implementa.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	UploadFiles(endpoint string, params tgbotapi.Params, files []tgbotapi.RequestFile) (*tgbotapi.APIResponse, error)
}

// Store é o acesso a produtos e listas de usuários que o bot precisa
type Store interface {
	InsertProduct(ctx context.Context, p models.Product) error
	GetProduct(ctx context.Context, id string) (models.Product, error)
	GetProducts(ctx context.Context, ids []string) (map[string]models.Product, error)
	TrackedIDs(ctx context.Context, userID string) ([]string, error)
	AppendTrackedID(ctx context.Context, userID, productID string) error
	RemoveTrackedIDs(ctx context.Context, userID string, productIDs []string) error
	UpsertUser(ctx context.Context, userID string) (bool, error)
}

// Runner dispara uma verificação exclusiva de preços
type Runner interface {
	Trigger(ctx context.Context, progress monitor.Progress) (*monitor.Summary, error)
}

// UsageFunc calcula as estatísticas do /stats
type UsageFunc func(ctx context.Context) (*monitor.UsageReport, error)

// Deps reúne as dependências do bot
type Deps struct {
	Store   Store
	Source  monitor.Source
	Pending pending.Store
	Monitor Runner
	Usage   UsageFunc
	AdminID int64

	// JoinLogChatID recebe o aviso de cada usuário novo; 0 desativa
	JoinLogChatID int64
}

// Bot atende as mensagens e botões dos usuários
type Bot struct {
	api     Sender
	store   Store
	source  monitor.Source
	pending pending.Store
	monitor Runner
	usage   UsageFunc
	adminID int64
	joinLog int64
	log     zerolog.Logger

	wg sync.WaitGroup
}

// Init inicializa o cliente do Telegram
func Init(token string, log zerolog.Logger) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN não configurado. Verifique o arquivo .env")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		if err.Error() == "Unauthorized" {
			return nil, fmt.Errorf("token do Telegram inválido ou expirado. Verifique o TELEGRAM_BOT_TOKEN no arquivo .env. Para obter um token, fale com @BotFather no Telegram")
		}
		return nil, fmt.Errorf("erro ao conectar com Telegram: %w", err)
	}

	api.Debug = false
	log.Info().Str("username", api.Self.UserName).Msg("bot autorizado")
	return api, nil
}

// New cria o bot
func New(api Sender, deps Deps, log zerolog.Logger) *Bot {
	return &Bot{
		api:     api,
		store:   deps.Store,
		source:  deps.Source,
		pending: deps.Pending,
		monitor: deps.Monitor,
		usage:   deps.Usage,
		adminID: deps.AdminID,
		joinLog: deps.JoinLogChatID,
		log:     log.With().Str("component", "bot").Logger(),
	}
}

// Run processa as atualizações até o contexto acabar ou o canal fechar.
// Verificações manuais em andamento são aguardadas antes de retornar.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.dispatch(ctx, classify(update))
		}
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	return b.adminID != 0 && userID == b.adminID
}

// goBackground executa fn em segundo plano; Run espera o término
func (b *Bot) goBackground(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}
