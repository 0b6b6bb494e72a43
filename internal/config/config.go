package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port            int
	DBDSN           string
	RedisURL        string
	AllowOrigins    []string
	RateLimitPublic RateLimitConfig

	Trello   TrelloConfig
	Kommo    KommoConfig
	Telegram TelegramConfig
	Sync     SyncConfig
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// TrelloConfig agrupa credenciais e identificadores do board do pátio.
type TrelloConfig struct {
	APIKey        string
	Token         string
	BoardID       string
	WebhookSecret string
	AgendadosList string
}

// KommoConfig agrupa credenciais da conta Kommo.
type KommoConfig struct {
	Enabled      bool
	BaseURL      string
	AccessToken  string
	CardFieldID  int64
	PhoneFieldID int64
}

// TelegramConfig agrupa credenciais do bot de notificações.
type TelegramConfig struct {
	Enabled  bool
	BotToken string
	ChatID   string
}

// SyncConfig controla o agendador de reconciliação.
type SyncConfig struct {
	IntervalMinutes int
	GuardTTL        time.Duration
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	cfg.DBDSN = getEnv("DB_DSN", "")
	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN obrigatório")
	}

	cfg.RedisURL = getEnv("REDIS_URL", "")
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL obrigatório")
	}

	cfg.Trello.APIKey = strings.TrimSpace(getEnv("TRELLO_API_KEY", ""))
	if cfg.Trello.APIKey == "" {
		return nil, errors.New("TRELLO_API_KEY obrigatório")
	}
	cfg.Trello.Token = strings.TrimSpace(getEnv("TRELLO_TOKEN", ""))
	if cfg.Trello.Token == "" {
		return nil, errors.New("TRELLO_TOKEN obrigatório")
	}
	cfg.Trello.BoardID = strings.TrimSpace(getEnv("TRELLO_BOARD_ID", ""))
	if cfg.Trello.BoardID == "" {
		return nil, errors.New("TRELLO_BOARD_ID obrigatório")
	}
	cfg.Trello.WebhookSecret = strings.TrimSpace(getEnv("TRELLO_WEBHOOK_SECRET", ""))
	cfg.Trello.AgendadosList = strings.TrimSpace(getEnv("TRELLO_LIST_ID_AGENDADOS", ""))

	cfg.Kommo.BaseURL = strings.TrimRight(strings.TrimSpace(getEnv("KOMMO_BASE_URL", "")), "/")
	cfg.Kommo.AccessToken = strings.TrimSpace(getEnv("KOMMO_ACCESS_TOKEN", ""))
	cfg.Kommo.Enabled = cfg.Kommo.BaseURL != "" && cfg.Kommo.AccessToken != ""
	cfg.Kommo.CardFieldID, err = parseFieldIDEnv("KOMMO_CARD_FIELD_ID")
	if err != nil {
		return nil, err
	}
	cfg.Kommo.PhoneFieldID, err = parseFieldIDEnv("KOMMO_PHONE_FIELD_ID")
	if err != nil {
		return nil, err
	}

	cfg.Telegram.BotToken = strings.TrimSpace(getEnv("TELEGRAM_BOT_TOKEN", ""))
	cfg.Telegram.ChatID = strings.TrimSpace(getEnv("TELEGRAM_CHAT_ID", ""))
	cfg.Telegram.Enabled = cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != ""

	intervalStr := getEnv("SYNC_INTERVAL_MINUTES", "30")
	interval, err := strconv.Atoi(intervalStr)
	if err != nil || interval <= 0 {
		return nil, errors.New("SYNC_INTERVAL_MINUTES inválido")
	}
	cfg.Sync.IntervalMinutes = interval

	guardTTL, err := parseDurationEnv("SYNC_GUARD_TTL", 15*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.Sync.GuardTTL = guardTTL

	allowOrigins := strings.Split(getEnv("ALLOW_ORIGINS", ""), ",")
	cfg.AllowOrigins = nil
	for _, origin := range allowOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}

	cfg.RateLimitPublic = RateLimitConfig{RequestsPerSecond: 10, Burst: 20}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func parseFieldIDEnv(key string) (int64, error) {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return 0, nil
	}
	fieldID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || fieldID <= 0 {
		return 0, errors.New(key + " inválido")
	}
	return fieldID, nil
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}
