package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string  `yaml:"token" env:"BOT_TOKEN" validate:"required"`
	Mode     string  `yaml:"mode" validate:"oneof=polling noop"`
	Username string  `yaml:"username"`
	Workers  int     `yaml:"workers" validate:"gte=1"` // polling workers
	AdminIDs []int64 `yaml:"admin_ids" env:"ADMIN_IDS" envSeparator:","`
	// RateLimit is the number of commands a user may send per RateWindow.
	RateLimit  int           `yaml:"rate_limit" validate:"gte=0"`
	RateWindow time.Duration `yaml:"rate_window"`
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL" validate:"oneof=trace debug info warn error"`
	Format   string `yaml:"format" validate:"oneof=json console"`
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port      int           `yaml:"port" env:"ADMIN_PORT" validate:"gte=0,lte=65535"`
	APIKey    string        `yaml:"api_key" env:"ADMIN_API_KEY"`
	JWTSecret string        `yaml:"jwt_secret" env:"ADMIN_JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// Enabled reports whether the admin HTTP API has credentials to serve with.
func (a AdminConfig) Enabled() bool { return a.APIKey != "" && a.JWTSecret != "" }

type DatabaseConfig struct {
	URL         string `yaml:"url" env:"DATABASE_URL" validate:"required"`
	MaxConns    int32  `yaml:"max_conns" validate:"gte=1"`
	AutoMigrate bool   `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE"`
}

type RedisConfig struct {
	URL      string        `yaml:"url" env:"REDIS_URL" validate:"required"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type KafkaConfig struct {
	Brokers  []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"client_id"`
}

func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

type SchedulerConfig struct {
	ExpirySweepInterval time.Duration `yaml:"expiry_sweep_interval"`
	TierExpiryInterval  time.Duration `yaml:"tier_expiry_interval"`
	UsageResetInterval  time.Duration `yaml:"usage_reset_interval"`
}

type PaymentConfig struct {
	IntentTTL time.Duration `yaml:"intent_ttl"`
	// Instructions is shown to the user after an upgrade request: where to send the money.
	Instructions string `yaml:"instructions"`
	Currency     string `yaml:"currency"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Payment   PaymentConfig   `yaml:"payment"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads path (optional), overlays the environment (including a
// local .env file), applies defaults and validates the result.
func LoadConfig(path string, dev bool) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// environment-only deployment
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	applyDefaults(&cfg)
	cfg.Runtime.Dev = dev
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv(file string) error {
	if _, err := os.Stat(file); err != nil {
		return nil
	}
	if err := godotenv.Load(file); err != nil {
		return fmt.Errorf("load %s: %w", file, err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "polling"
	}
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.RateLimit == 0 {
		cfg.Bot.RateLimit = 20
	}
	if cfg.Bot.RateWindow <= 0 {
		cfg.Bot.RateWindow = time.Minute
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 8080
	}
	if cfg.Admin.TokenTTL <= 0 {
		cfg.Admin.TokenTTL = 12 * time.Hour
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "sheger.payments"
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = "sheger-et-bot"
	}
	if cfg.Scheduler.ExpirySweepInterval <= 0 {
		cfg.Scheduler.ExpirySweepInterval = 10 * time.Minute
	}
	if cfg.Scheduler.TierExpiryInterval <= 0 {
		cfg.Scheduler.TierExpiryInterval = time.Hour
	}
	if cfg.Scheduler.UsageResetInterval <= 0 {
		cfg.Scheduler.UsageResetInterval = time.Hour
	}
	if cfg.Payment.IntentTTL <= 0 {
		cfg.Payment.IntentTTL = 24 * time.Hour
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = "ETB"
	}
}

// Validate checks struct rules plus the cross-field ones the tags cannot express.
func Validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if (cfg.Admin.APIKey == "") != (cfg.Admin.JWTSecret == "") {
		return errors.New("invalid config: admin.api_key and admin.jwt_secret must be set together")
	}
	if cfg.Admin.Enabled() && len(cfg.Admin.JWTSecret) < 32 {
		return errors.New("invalid config: admin.jwt_secret must be at least 32 bytes")
	}
	for _, id := range cfg.Bot.AdminIDs {
		if id <= 0 {
			return fmt.Errorf("invalid config: admin id %d", id)
		}
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
