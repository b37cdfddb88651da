package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"rastreador-precos/config"
	"rastreador-precos/internal/bot"
	"rastreador-precos/internal/database"
	"rastreador-precos/internal/logger"
	"rastreador-precos/internal/metrics"
	"rastreador-precos/internal/monitor"
	"rastreador-precos/internal/pending"
	"rastreador-precos/internal/scraper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Atende o bot e executa as verificações agendadas",
	RunE:  runServe,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Executa uma verificação de preços e sai",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := setup()
		if err != nil {
			return err
		}
		defer app.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		summary, err := app.monitor.Trigger(ctx, logProgress{log: app.log})
		if err != nil {
			return err
		}
		app.log.Info().
			Int("checked", summary.Checked).
			Int("errors", summary.Errors).
			Bool("interrupted", summary.Interrupted).
			Msg("verificação concluída")
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Mostra as estatísticas de uso",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := setup()
		if err != nil {
			return err
		}
		defer app.close()

		report, err := monitor.Usage(cmd.Context(), app.db, app.db)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.Text())
		return nil
	},
}

// application reúne os componentes montados a partir da configuração
type application struct {
	cfg     *config.Config
	log     zerolog.Logger
	db      *database.DB
	api     *tgbotapi.BotAPI
	sources *scraper.Registry
	monitor *monitor.Monitor
	redis   *redis.Client

	stopErrors context.CancelFunc
	errorsDone chan struct{}
}

func setup() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.AppEnv)

	api, err := bot.Init(cfg.TelegramBotToken, log)
	if err != nil {
		return nil, err
	}

	a := &application{cfg: cfg, api: api}
	if cfg.ReportsToTelegram() {
		// erros vão também para o tópico de erros do canal de logs
		reporter := bot.NewErrorReporter(api, cfg.TelegramLogChannelID, cfg.TelegramErrorTopicID, log)
		log = log.Hook(reporter)

		var ctx context.Context
		ctx, a.stopErrors = context.WithCancel(context.Background())
		a.errorsDone = make(chan struct{})
		go func() {
			defer close(a.errorsDone)
			reporter.Start(ctx)
		}()
	}
	a.log = log

	db, err := database.New(cfg.DatabasePath, log)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("inicializar banco de dados: %w", err)
	}
	a.db = db

	var sink monitor.ReportSink = bot.NewLogReport(log)
	if cfg.ReportsToTelegram() {
		sink = bot.NewTelegramReport(api, cfg.TelegramLogChannelID, cfg.TelegramLogTopicID)
	}

	pacing := cfg.FetchPacing
	if pacing == 0 {
		// FETCH_PACING=0 desliga a pausa
		pacing = -1
	}

	a.sources = scraper.Default(cfg.PriceAPIURL, cfg.FetchTimeout)
	a.monitor = monitor.New(db, db, a.sources, bot.NewDispatcher(api), sink, log, monitor.Options{
		Interval:          cfg.CheckInterval,
		RunTimeout:        cfg.RunTimeout,
		Pacing:            pacing,
		FetchTimeout:      cfg.FetchTimeout,
		NotifyConcurrency: cfg.NotifyConcurrency,
	})
	return a, nil
}

// pendingStore usa o Redis quando configurado; senão guarda em memória
func (a *application) pendingStore(ctx context.Context) (pending.Store, error) {
	if a.cfg.RedisAddr == "" {
		return pending.NewMemoryStore(a.cfg.PendingTTL, a.cfg.PendingMax), nil
	}
	a.redis = redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr})
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("conectar ao redis: %w", err)
	}
	a.log.Info().Str("addr", a.cfg.RedisAddr).Msg("produtos pendentes no redis")
	return pending.NewRedisStore(a.redis, a.cfg.PendingTTL), nil
}

func (a *application) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn().Err(err).Msg("erro ao fechar redis")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn().Err(err).Msg("erro ao fechar banco de dados")
		}
	}
	if a.stopErrors != nil {
		a.stopErrors()
		<-a.errorsDone
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	app, err := setup()
	if err != nil {
		return err
	}
	defer app.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pendingStore, err := app.pendingStore(ctx)
	if err != nil {
		return err
	}

	if app.cfg.HTTPAddr != "" {
		registry := prometheus.NewRegistry()
		metrics.MustRegister(registry)
		metrics.StartServer(ctx, app.log, app.cfg.HTTPAddr, registry)
	}

	telegramBot := bot.New(app.api, bot.Deps{
		Store:   app.db,
		Source:  app.sources,
		Pending: pendingStore,
		Monitor: app.monitor,
		Usage: func(ctx context.Context) (*monitor.UsageReport, error) {
			return monitor.Usage(ctx, app.db, app.db)
		},
		AdminID:       app.cfg.TelegramAdminID,
		JoinLogChatID: app.cfg.JoinLogChatID(),
	}, app.log)

	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		app.monitor.Start(ctx)
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := app.api.GetUpdatesChan(u)

	app.log.Info().Msg("bot em execução")
	telegramBot.Run(ctx, updates)

	app.log.Info().Msg("encerrando bot...")
	app.api.StopReceivingUpdates()
	<-monitorDone
	return nil
}

// logProgress escreve o andamento no log, para execuções fora do Telegram
type logProgress struct {
	log zerolog.Logger
}

func (p logProgress) Update(_ context.Context, text string) {
	p.log.Info().Msg(text)
}
