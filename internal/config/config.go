package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port      string `env:"PORT" envDefault:"8080"`
	DBUrl     string `env:"DB_URL"`
	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`
	AppEnv    string `env:"APP_ENV" envDefault:"production"`

	CORSAllowOrigins string `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`

	// WSIdleTimeout closes sockets that stay silent this long; zero disables it.
	WSIdleTimeout  time.Duration `env:"WS_IDLE_TIMEOUT" envDefault:"0s"`
	WSWriteTimeout time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`

	DBMaxConns int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns int32 `env:"DB_MIN_CONNS" envDefault:"2"`

	MessagePageLimit int `env:"MESSAGE_PAGE_LIMIT" envDefault:"100"`
	MessagePageMax   int `env:"MESSAGE_PAGE_MAX" envDefault:"200"`
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	return parseConfig()
}

func parseConfig() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.AppEnv = normalizeEnv(cfg.AppEnv)
	if cfg.DBMaxConns <= 0 {
		return nil, fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns {
		return nil, fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS")
	}
	if cfg.MessagePageLimit <= 0 || cfg.MessagePageMax < cfg.MessagePageLimit {
		return nil, fmt.Errorf("MESSAGE_PAGE_LIMIT must be positive and not exceed MESSAGE_PAGE_MAX")
	}
	if cfg.WSIdleTimeout < 0 || cfg.WSWriteTimeout < 0 {
		return nil, fmt.Errorf("websocket timeouts must not be negative")
	}

	return &cfg, nil
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}
