package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Webhooks struct {
		// MakeViewURL is the automation endpoint views are relayed to;
		// empty disables the relay.
		MakeViewURL string `yaml:"make_view_url"`
		// HublaSecret is the shared bearer token of the payment webhook;
		// empty disables the auth check.
		HublaSecret string `yaml:"hubla_secret"`
	} `yaml:"webhooks"`
	Analytics struct {
		// KeyPrefix namespaces the local-store keys (default "funnel").
		KeyPrefix string `yaml:"key_prefix"`
		// RefreshInterval drives the websocket dashboard's periodic
		// metric refresh.
		RefreshInterval string `yaml:"refresh_interval"`
	} `yaml:"analytics"`
}

// Load reads YAML config from path and applies env overrides.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv lets deployment environments override file settings.
func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("MAKE_VIEW_WEBHOOK_URL"); v != "" {
		cfg.Webhooks.MakeViewURL = v
	}
	if v := os.Getenv("HUBLA_WEBHOOK_SECRET"); v != "" {
		cfg.Webhooks.HublaSecret = v
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
