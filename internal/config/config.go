package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Name string `yaml:"name" env:"APP_NAME"`
		Env  string `yaml:"env" env:"APP_ENV"`
	} `yaml:"app"`
	Server struct {
		Port           string   `yaml:"port" env:"PORT"`
		AllowedOrigins []string `yaml:"allowedOrigins" env:"ALLOWED_ORIGINS" envSeparator:","`
	} `yaml:"server"`
	Bank struct {
		// Source is a URL, a file path or a bank name, depending on Backend.
		Source   string `yaml:"source" env:"BANK_SOURCE"`
		Backend  string `yaml:"backend" env:"BANK_BACKEND"`
		Timeout  string `yaml:"timeout" env:"BANK_TIMEOUT"`
		CacheTTL string `yaml:"cacheTTL" env:"BANK_CACHE_TTL"`
	} `yaml:"bank"`
	Session struct {
		Expiry         string `yaml:"expiry" env:"SESSION_EXPIRY"`
		BackupInterval string `yaml:"backupInterval" env:"SESSION_BACKUP_INTERVAL"`
		VolatileTTL    string `yaml:"volatileTTL" env:"SESSION_VOLATILE_TTL"`
		HistoryLimit   int    `yaml:"historyLimit" env:"SESSION_HISTORY_LIMIT"`
		RecentWindow   int    `yaml:"recentWindow" env:"SESSION_RECENT_WINDOW"`
	} `yaml:"session"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"POSTGRES_URL"`
	} `yaml:"postgres"`
}

const (
	BackendHTTP     = "http"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Load reads YAML config from path and overlays environment variables.
// A missing file is not an error; the environment and defaults still apply.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return cfg, err
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "cloudops-quiz"
	}
	if c.App.Env == "" {
		c.App.Env = "development"
	}
	if c.Bank.Backend == "" {
		c.Bank.Backend = BackendHTTP
	}
	if c.Session.HistoryLimit <= 0 {
		c.Session.HistoryLimit = 10
	}
	if c.Session.RecentWindow <= 0 {
		c.Session.RecentWindow = 5
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
