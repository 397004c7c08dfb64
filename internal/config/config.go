package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"riskwatch/internal/scoring"
)

type Config struct {
	Env         string
	ListenAddr  string
	DatabaseURL string
	SyncWorkers int

	NewsURL        string
	FilingsURL     string
	BreachURL      string
	RatingURL      string
	ProviderAPIKey string

	Risk scoring.Config
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var out int
		if _, err := fmt.Sscanf(v, "%d", &out); err == nil {
			return out
		}
	}
	return def
}

// Load reads the environment plus the optional YAML risk-tuning file. A
// tuning file that fails validation is a startup error, never a per-call one.
func Load() (Config, error) {
	cfg := Config{
		Env:            getenv("APP_ENV", "development"),
		ListenAddr:     getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SyncWorkers:    getenvInt("SYNC_WORKERS", 0),
		NewsURL:        os.Getenv("NEWS_PROVIDER_URL"),
		FilingsURL:     os.Getenv("FILINGS_PROVIDER_URL"),
		BreachURL:      os.Getenv("BREACH_PROVIDER_URL"),
		RatingURL:      os.Getenv("RATING_PROVIDER_URL"),
		ProviderAPIKey: os.Getenv("PROVIDER_API_KEY"),
		Risk:           scoring.DefaultConfig(),
	}

	if path := os.Getenv("RISK_CONFIG_PATH"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read risk config %s: %w", path, err)
		}
		// partial files override only the keys they name
		if err := yaml.Unmarshal(raw, &cfg.Risk); err != nil {
			return cfg, fmt.Errorf("parse risk config %s: %w", path, err)
		}
	}
	if err := cfg.Risk.Validate(); err != nil {
		return cfg, err
	}

	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL not set")
	}
	return cfg, nil
}
