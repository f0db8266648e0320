package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port string `env:"PORT" envDefault:"8080"`
	Env  string `env:"APP_ENV" envDefault:"development"`

	RedisURL  string `env:"REDIS_URL"`
	RedisPass string `env:"REDIS_PASS"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret  string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTExpiry  time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`
	AdminToken string        `env:"ADMIN_TOKEN"`

	HouseEdge float64 `env:"GAME_HOUSE_EDGE" envDefault:"0.01"`
	MinBet    int64   `env:"GAME_MIN_BET" envDefault:"1"`
	MaxBet    int64   `env:"GAME_MAX_BET" envDefault:"1000"`
	MaxCrash  float64 `env:"GAME_MAX_CRASH" envDefault:"1000.0"`

	BettingDuration   time.Duration `env:"GAME_BETTING_DURATION" envDefault:"10s"`
	MinFlightDuration time.Duration `env:"GAME_MIN_FLIGHT_DURATION" envDefault:"2s"`
	TickInterval      time.Duration `env:"GAME_TICK_INTERVAL" envDefault:"100ms"`
	Intermission      time.Duration `env:"GAME_INTERMISSION" envDefault:"3s"`

	StartingBalance int64 `env:"GAME_STARTING_BALANCE" envDefault:"10000"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.HouseEdge < 0 || cfg.HouseEdge >= 1 {
		return nil, fmt.Errorf("GAME_HOUSE_EDGE must be in [0, 1), got %v", cfg.HouseEdge)
	}
	if cfg.MinBet < 1 || cfg.MaxBet < cfg.MinBet {
		return nil, fmt.Errorf("invalid bet bounds: min=%d max=%d", cfg.MinBet, cfg.MaxBet)
	}
	return cfg, nil
}
