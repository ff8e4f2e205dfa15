package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "ethicsdesk.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "ETHICSDESK_PORT")
	setString(&cfg.Server.CORSOrigin, "ETHICSDESK_CORS_ORIGIN")
	setInt(&cfg.Server.RateLimit, "ETHICSDESK_RATE_LIMIT")
	setInt(&cfg.Server.RateBurst, "ETHICSDESK_RATE_BURST")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "ETHICSDESK_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "ETHICSDESK_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "ETHICSDESK_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "ETHICSDESK_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "ETHICSDESK_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.SMTP.Host, "ETHICSDESK_SMTP_HOST")
	setInt(&cfg.SMTP.Port, "ETHICSDESK_SMTP_PORT")
	setString(&cfg.SMTP.From, "ETHICSDESK_SMTP_FROM")
	setString(&cfg.SMTP.Password, "ETHICSDESK_SMTP_PASSWORD")
	setString(&cfg.Slack.WebhookURL, "ETHICSDESK_SLACK_WEBHOOK_URL")
	setBool(&cfg.LDAP.Enabled, "ETHICSDESK_LDAP_ENABLED")
	setString(&cfg.LDAP.URL, "ETHICSDESK_LDAP_URL")
	setString(&cfg.LDAP.BaseDN, "ETHICSDESK_LDAP_BASE_DN")
	setString(&cfg.LDAP.BindDN, "ETHICSDESK_LDAP_BIND_DN")
	setString(&cfg.LDAP.BindPassword, "ETHICSDESK_LDAP_BIND_PASSWORD")
	setString(&cfg.Logging.Level, "ETHICSDESK_LOG_LEVEL")
	setString(&cfg.Logging.Service, "ETHICSDESK_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "ETHICSDESK_LOG_ASYNC")
	setInt64(&cfg.Cache.MaxSizeMB, "ETHICSDESK_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "ETHICSDESK_CACHE_TTL")
	setBool(&cfg.Telemetry.Enabled, "ETHICSDESK_TELEMETRY_ENABLED")
	setString(&cfg.Telemetry.Endpoint, "ETHICSDESK_OTLP_ENDPOINT")
	setInt(&cfg.Workflow.ShortRouteReviewers, "ETHICSDESK_SHORT_ROUTE_REVIEWERS")
	setInt(&cfg.Workflow.LongRouteReviewers, "ETHICSDESK_LONG_ROUTE_REVIEWERS")
	setBool(&cfg.Auth.Enabled, "ETHICSDESK_AUTH_ENABLED")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if len(cfg.Workflow.Chambers) == 0 {
		return errors.New("workflow.chambers mapping is required")
	}
	if cfg.Workflow.ShortRouteReviewers < 1 {
		return errors.New("workflow.short_route_reviewers must be >= 1")
	}
	if cfg.Workflow.LongRouteReviewers < 1 {
		return errors.New("workflow.long_route_reviewers must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
