package config

import (
	"time"

	"github.com/caarlos0/env/v6"
)

// Config holds the client settings, parsed from environment variables.
// main loads a .env file first, so either works.
type Config struct {
	APIBaseURL  string        `env:"WORKLINK_API_URL" envDefault:"http://localhost:8080/api"`
	SocketURL   string        `env:"WORKLINK_WS_URL" envDefault:"ws://localhost:8080/ws"`
	AssetOrigin string        `env:"WORKLINK_ASSET_ORIGIN" envDefault:"http://localhost:8080"`
	Token       string        `env:"WORKLINK_TOKEN"`
	CacheDSN    string        `env:"WORKLINK_CACHE_DSN" envDefault:"file:worklink-cache.db"`
	HTTPTimeout time.Duration `env:"WORKLINK_HTTP_TIMEOUT" envDefault:"10s"`
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
