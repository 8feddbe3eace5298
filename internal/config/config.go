package config

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/vstarikov/govorun/internal/router"
)

// Config — вся конфигурация процесса. Значения читаются из окружения
// (плюс .env при наличии), валидируются на старте: кривой конфиг — fatal.
type Config struct {
	TelegramBotToken string   `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	AdminChatID      int64    `envconfig:"ADMIN_CHAT_ID"`
	AllowedChatIDs   []string `envconfig:"ALLOWED_CHAT_IDS"`
	BotAliases       []string `envconfig:"BOT_ALIASES"`
	Language         string   `envconfig:"LANGUAGE" default:"ru"`

	// история
	TokenLimit      int           `envconfig:"TOKEN_LIMIT" default:"500000"`
	StorePath       string        `envconfig:"CHAT_MESSAGES_STORE_PATH" default:"messages.jsonl"`
	CompactInterval time.Duration `envconfig:"STORE_COMPACT_INTERVAL"`

	// модельные бэкенды, в порядке предпочтения
	ModelBackends      string   `envconfig:"MODEL_BACKENDS" required:"true"`
	ReactionModelOrder []string `envconfig:"REACTION_MODEL_BACKENDS"`

	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	// фичефлаги
	EnableMessageHandling bool    `envconfig:"ENABLE_MESSAGE_HANDLING"`
	EnableScheduleEvents  bool    `envconfig:"ENABLE_SCHEDULE_EVENTS"`
	EnableReactions       bool    `envconfig:"ENABLE_REACTIONS"`
	EnableHiCommand       bool    `envconfig:"ENABLE_HI_COMMAND" default:"true"`
	ReactionProbability   float64 `envconfig:"REACTION_PROBABILITY" default:"0.15"`

	// архив медиа в S3 (best effort)
	MediaArchiveEnabled bool   `envconfig:"MEDIA_ARCHIVE_ENABLED"`
	S3Endpoint          string `envconfig:"S3_ENDPOINT"`
	S3AccessKey         string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey         string `envconfig:"S3_SECRET_KEY"`
	S3Bucket            string `envconfig:"S3_BUCKET"`
	S3Region            string `envconfig:"S3_REGION"`

	Port      string `envconfig:"PORT" default:"8080"`
	DebugMode bool   `envconfig:"DEBUG_MODE"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	return &cfg, nil
}

// Backends разбирает MODEL_BACKENDS:
//
//	[{"name":"flash","provider":"gemini","model":"gemini-2.0-flash","rpm":15,"rpd":1500}, ...]
//
// Содержательная валидация списка — в router.New.
func (c *Config) Backends() ([]router.Backend, error) {
	var list []router.Backend
	if err := json.Unmarshal([]byte(c.ModelBackends), &list); err != nil {
		return nil, fmt.Errorf("parse MODEL_BACKENDS: %w", err)
	}
	return list, nil
}
