// Package config loads process settings from the environment and game balance from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Game configures the game server.
type Game struct {
	Port        int      `env:"GAME_PORT" envDefault:"8081"`
	DataAPIBase string   `env:"DATA_API_BASE" envDefault:"http://localhost:8080"`
	SaveBackend string   `env:"SAVE_BACKEND" envDefault:"sqlite"`
	SaveDBPath  string   `env:"SAVE_DB_PATH" envDefault:"data/saves.db"`
	RulesFile   string   `env:"RULES_FILE"`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON     bool     `env:"LOG_JSON" envDefault:"true"`
	Director    Director `envPrefix:"DIRECTOR_"`
}

// Director configures the session director loop.
type Director struct {
	Enabled  bool          `env:"ENABLED"`
	Session  string        `env:"SESSION"`
	Interval time.Duration `env:"INTERVAL" envDefault:"15s"`
	LogEvery int           `env:"LOG_EVERY" envDefault:"10"`
}

// DataAPI configures the local object/catalog API.
type DataAPI struct {
	Port     int    `env:"API_PORT" envDefault:"8080"`
	DBPath   string `env:"API_DB_PATH" envDefault:"data/objects.db"`
	Catalog  string `env:"CATALOG_FILE"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"LOG_JSON" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
