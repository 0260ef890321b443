package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Config holds the runtime settings shared by the CLI, the HTTP server and the MCP server.
type Config struct {
	Store      string        `env:"DISPENSER_STORE" envDefault:"file"`
	Dir        string        `env:"DISPENSER_DIR" envDefault:".dispenser"`
	RedisURL   string        `env:"DISPENSER_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	SQLitePath string        `env:"DISPENSER_SQLITE_PATH"`
	Port       int           `env:"DISPENSER_PORT" envDefault:"8080"`
	LogLevel   string        `env:"DISPENSER_LOG_LEVEL" envDefault:"info"`
	LockTTL    time.Duration `env:"DISPENSER_LOCK_TTL" envDefault:"30s"`
	FleetFile  string        `env:"DISPENSER_FLEET_FILE"`
}

// Load reads the environment into a Config.
// Each dotenv file is loaded first when present; variables already set win.
// With no files, ".env" in the working directory is tried.
func Load(dotenv ...string) (Config, error) {
	if len(dotenv) == 0 {
		dotenv = []string{".env"}
	}
	for _, f := range dotenv {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that the settings can be used to build the runtime.
func (c Config) Validate() error {
	switch c.Store {
	case StoreMemory, StoreFile, StoreRedis, StoreSQLite:
	default:
		return fmt.Errorf("unknown store %q (want memory, file, redis or sqlite)", c.Store)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("lock ttl must be positive, got %s", c.LockTTL)
	}
	return nil
}
