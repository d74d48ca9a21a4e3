// Package config loads process configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server configures cmd/server.
type Server struct {
	Addr      string        `env:"MEALSCAN_ADDR"       envDefault:":8080"`
	DBPath    string        `env:"MEALSCAN_DB_PATH"    envDefault:"./data/mealscan.db"`
	JWTSecret string        `env:"MEALSCAN_JWT_SECRET,required,notEmpty"`
	TokenTTL  time.Duration `env:"MEALSCAN_TOKEN_TTL"  envDefault:"24h"`

	// RedisAddr enables the profile cache when set.
	RedisAddr       string        `env:"MEALSCAN_REDIS_ADDR"`
	ProfileCacheTTL time.Duration `env:"MEALSCAN_PROFILE_CACHE_TTL" envDefault:"5m"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Client configures cmd/client.
type Client struct {
	ServerURL string `env:"MEALSCAN_SERVER_URL" envDefault:"http://localhost:8080"`
	Email     string `env:"MEALSCAN_EMAIL,required,notEmpty"`
	Password  string `env:"MEALSCAN_PASSWORD,required,notEmpty"`
	LogLevel  string `env:"LOG_LEVEL"           envDefault:"info"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadServer reads the server configuration.
func LoadServer() (Server, error) {
	var cfg Server
	if err := ParseEnv(&cfg); err != nil {
		return Server{}, err
	}
	if cfg.TokenTTL <= 0 {
		return Server{}, fmt.Errorf("MEALSCAN_TOKEN_TTL must be positive, got %s", cfg.TokenTTL)
	}
	return cfg, nil
}

// LoadClient reads the client configuration.
func LoadClient() (Client, error) {
	var cfg Client
	if err := ParseEnv(&cfg); err != nil {
		return Client{}, err
	}
	return cfg, nil
}
