package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":2112"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`

	PolicyPath     string `env:"POLICY_PATH" envDefault:"policy.yaml"`
	AuditDir       string `env:"AUDIT_DIR" envDefault:"data/audit"`
	AuditIndexPath string `env:"AUDIT_INDEX_PATH" envDefault:"data/audit/index.sqlite"`

	ActivationInterval time.Duration `env:"ACTIVATION_INTERVAL" envDefault:"30s"`
	CategoryTimeout    time.Duration `env:"VALIDATION_CATEGORY_TIMEOUT" envDefault:"2s"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	CatalogURL     string        `env:"CATALOG_URL"`
	CatalogTimeout time.Duration `env:"CATALOG_TIMEOUT" envDefault:"5s"`

	Token             string `env:"DISCORD_TOKEN"`
	DiscordGuildID    string `env:"DISCORD_GUILD_ID"`
	DiscordOpsChannel string `env:"DISCORD_OPS_CHANNEL" envDefault:"world-ops"`

	OtelEndpoint string `env:"OTEL_EXPORTER_ENDPOINT"`
	ServiceName  string `env:"OTEL_SERVICE_NAME" envDefault:"world-state-engine"`

	Policy *Policy `env:"-"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if token := readSecret("discord_token"); token != "" {
		cfg.Token = token
	}
	if dbURL := readSecret("database_url"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	policy, err := LoadPolicy(cfg.PolicyPath)
	if err != nil {
		return nil, err
	}
	cfg.Policy = policy

	return cfg, nil
}

// DiscordEnabled reports whether the ops feed and operator console should start.
func (c *Config) DiscordEnabled() bool {
	return c.Token != ""
}

var secretsDir = "/run/secrets/"

func readSecret(name string) string {
	data, err := os.ReadFile(secretsDir + name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
