package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config contém as configurações da aplicação
type Config struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`

	TelegramBotToken     string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramAdminID      int64  `envconfig:"TELEGRAM_ADMIN_ID" default:"0"`
	TelegramLogChannelID int64  `envconfig:"TELEGRAM_LOG_CHANNEL_ID" default:"0"`
	TelegramLogTopicID   int    `envconfig:"TELEGRAM_LOG_TOPIC_ID" default:"0"`
	TelegramErrorTopicID int    `envconfig:"TELEGRAM_ERROR_TOPIC_ID" default:"0"`
	SendJoinLog          bool   `envconfig:"SEND_JOIN_LOG" default:"true"`

	DatabasePath string `envconfig:"DATABASE_PATH" default:"./products.db"`

	CheckInterval     time.Duration `envconfig:"CHECK_INTERVAL" default:"5h"`
	RunTimeout        time.Duration `envconfig:"RUN_TIMEOUT" default:"0"`
	FetchPacing       time.Duration `envconfig:"FETCH_PACING" default:"3s"`
	FetchTimeout      time.Duration `envconfig:"FETCH_TIMEOUT" default:"45s"`
	NotifyConcurrency int           `envconfig:"NOTIFY_CONCURRENCY" default:"16"`

	PriceAPIURL string `envconfig:"PRICE_API_URL" default:"https://e-com-price-tracker-lemon.vercel.app/buyhatke"`

	RedisAddr  string        `envconfig:"REDIS_ADDR"`
	PendingTTL time.Duration `envconfig:"PENDING_TTL" default:"30m"`
	PendingMax int           `envconfig:"PENDING_MAX" default:"1000"`

	HTTPAddr string `envconfig:"HTTP_ADDR"`
}

// Load carrega as configurações do .env (se existir) e das variáveis de ambiente
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("ler .env: %w", err)
	}
	return FromEnv()
}

// FromEnv lê e valida as configurações das variáveis de ambiente
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("carregar configuração: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate confere os valores obrigatórios e os limites
func (c *Config) Validate() error {
	if c.TelegramBotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN não configurado")
	}
	if c.CheckInterval <= 0 {
		return errors.New("CHECK_INTERVAL deve ser positivo")
	}
	if c.RunTimeout < 0 || c.FetchPacing < 0 || c.FetchTimeout < 0 {
		return errors.New("RUN_TIMEOUT, FETCH_PACING e FETCH_TIMEOUT não podem ser negativos")
	}
	if c.NotifyConcurrency <= 0 {
		return errors.New("NOTIFY_CONCURRENCY deve ser positivo")
	}
	if c.PendingTTL <= 0 {
		return errors.New("PENDING_TTL deve ser positivo")
	}
	return nil
}

// JoinLogChatID é o chat que recebe os avisos de usuários novos (0 = desativado)
func (c *Config) JoinLogChatID() int64 {
	if !c.SendJoinLog {
		return 0
	}
	return c.TelegramLogChannelID
}

// ReportsToTelegram indica se o resumo das verificações vai para um canal de logs
func (c *Config) ReportsToTelegram() bool {
	return c.TelegramLogChannelID != 0
}
