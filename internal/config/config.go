package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/richstorm00/saas-starter/pkg/logger"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is read when CONFIG_PATH is unset.
const DefaultConfigPath = "./configs/billing.yaml"

type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      logger.Config  `yaml:"log"`
	Sentry   SentryConfig   `yaml:"sentry"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
	Release     string `yaml:"release"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// LoadConfig reads the YAML file named by CONFIG_PATH and overlays the
// environment. A missing default file is not an error so the service can run
// from the environment alone.
func LoadConfig() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	explicit := configPath != ""
	if !explicit {
		configPath = DefaultConfigPath
	}

	cfg := Default()

	// Ensure absolute path
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the settings used before the file and environment apply.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:            "billing",
			Environment:     "development",
			AppURL:          "http://localhost:3000",
			MetadataBackend: MetadataBackendClerk,
			Clerk:           ClerkConfig{APIURL: "https://api.clerk.com", Timeout: defaultClerkTimeout},
			Lookup:          LookupConfig{PageSize: 100, PageLimit: 10},
		},
		Database: DatabaseConfig{
			Port:            5432,
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: defaultConnMaxLifetime,
			ConnMaxIdleTime: defaultConnMaxIdleTime,
			AutoMigrate:     true,
		},
		Server: ServerConfig{
			HTTP: HTTPConfig{Host: "0.0.0.0", Port: 8080},
			GRPC: GRPCConfig{Host: "0.0.0.0", Port: 9090},
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Log: logger.Config{
			Level:   "info",
			Format:  "json",
			Output:  "stdout",
			Service: "billing",
		},
		Metrics: MetricsConfig{Enabled: true, Namespace: "billing"},
	}
}

// Validate checks the settings every deployment needs.
func (c *Config) Validate() error {
	switch c.Service.MetadataBackend {
	case MetadataBackendClerk, MetadataBackendMemory:
	default:
		return fmt.Errorf("unknown metadata backend %q", c.Service.MetadataBackend)
	}

	var missing []string
	if c.Service.Stripe.SecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.Service.Stripe.WebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if c.Service.MetadataBackend == MetadataBackendClerk && c.Service.Clerk.SecretKey == "" {
		missing = append(missing, "CLERK_SECRET_KEY")
	}
	if c.Service.Clerk.JWTKey == "" {
		missing = append(missing, "CLERK_JWT_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %v", missing)
	}
	return nil
}
