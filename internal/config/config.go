package config

import (
	"context"
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Twitch enforces a minimum safe polling cadence for the streams endpoint;
// anything faster risks rate limiting on large watch lists.
const minPollInterval = 15 * time.Second

type Config struct {
	// Bot
	DiscordToken string `env:"DISCORD_TOKEN,required"`

	// Twitch API (client-credentials grant)
	TwitchClientID     string `env:"TWITCH_CLIENT_ID,required"`
	TwitchClientSecret string `env:"TWITCH_CLIENT_SECRET,required"`

	// Database
	DatabaseType string `env:"DB_TYPE,default=sqlite"` // "sqlite" or "postgres"
	SqlitePath   string `env:"SQLITE_PATH,default=bot.db"`
	PostgresURL  string `env:"POSTGRES_URL"`

	// Polling
	PollInterval     time.Duration `env:"POLL_INTERVAL,default=30s"`
	SweepConcurrency int           `env:"SWEEP_CONCURRENCY,default=4"`
	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT,default=5s"`

	// Observability
	LogLevel    string `env:"LOG_LEVEL,default=info"`
	MetricsAddr string `env:"METRICS_ADDR"` // empty disables the listener
}

// Load reads .env (when present) and the process environment into a Config.
func Load(ctx context.Context) (Config, error) {
	// Missing .env is fine; real deployments set plain environment variables.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}

	switch cfg.DatabaseType {
	case "sqlite", "postgres":
	default:
		return Config{}, errors.New("DB_TYPE must be sqlite or postgres")
	}
	if cfg.DatabaseType == "postgres" && cfg.PostgresURL == "" {
		return Config{}, errors.New("POSTGRES_URL required when DB_TYPE=postgres")
	}
	if cfg.PollInterval < minPollInterval {
		cfg.PollInterval = minPollInterval
	}
	if cfg.SweepConcurrency < 1 {
		cfg.SweepConcurrency = 1
	}
	return cfg, nil
}

// DSN returns the connection string for the configured database type.
func (c Config) DSN() string {
	if c.DatabaseType == "postgres" {
		return c.PostgresURL
	}
	return c.SqlitePath
}
