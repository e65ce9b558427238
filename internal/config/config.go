// Package config defines the top-level configuration for the wager ledger
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by WAGER_* environment variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	NATS     NATSConfig     `toml:"nats"`
	Server   ServerConfig   `toml:"server"`
	Engine   EngineConfig   `toml:"engine"`
	Oracle   OracleConfig   `toml:"oracle"`
	LogLevel string         `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	MaxOpenConns  int    `toml:"max_open_conns"`
	MaxIdleConns  int    `toml:"max_idle_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// ConnString returns the DSN if set, otherwise builds one from parts.
func (p PostgresConfig) ConnString() string {
	if strings.TrimSpace(p.DSN) != "" {
		return p.DSN
	}
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		p.Host, p.Port, p.Database, p.User, p.Password, p.SSLMode)
}

// RedisConfig holds Redis connection parameters for the price cache.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
}

// NATSConfig holds NATS JetStream connection parameters for command ingestion.
type NATSConfig struct {
	URL            string `toml:"url"`
	StreamName     string `toml:"stream_name"`
	CommandSubject string `toml:"command_subject"`
	ResultSubject  string `toml:"result_subject"`
	DurableName    string `toml:"durable_name"`
	MaxAckPending  int    `toml:"max_ack_pending"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	MetricsPort int      `toml:"metrics_port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// EngineConfig holds settlement engine tuning parameters.
type EngineConfig struct {
	PersistChanSize    int      `toml:"persist_chan_size"`
	ProjectionChanSize int      `toml:"projection_chan_size"`
	PersistBatchSize   int      `toml:"persist_batch_size"`
	PersistFlushMs     int      `toml:"persist_flush_ms"`
	DedupLRUSize       int      `toml:"dedup_lru_size"`
	SnapshotInterval   duration `toml:"snapshot_interval"`
	SnapshotEventCount int64    `toml:"snapshot_event_count"`
}

// OracleConfig holds attestation verification parameters.
type OracleConfig struct {
	// MaxAgeSeconds rejects attestations older than this. Zero disables
	// the staleness check.
	MaxAgeSeconds int64 `toml:"max_age_seconds"`
}

// duration wraps time.Duration so the TOML decoder can parse strings
// like "5m" or "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with development-friendly values.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "wagerledger",
			User:          "postgres",
			SSLMode:       "disable",
			MaxOpenConns:  10,
			MaxIdleConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		NATS: NATSConfig{
			URL:            "nats://localhost:4222",
			StreamName:     "WAGER_COMMANDS",
			CommandSubject: "wager.commands",
			ResultSubject:  "wager.results",
			DurableName:    "wager-engine",
			MaxAckPending:  1024,
		},
		Server: ServerConfig{
			Port:        8080,
			MetricsPort: 9090,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Engine: EngineConfig{
			PersistChanSize:    4096,
			ProjectionChanSize: 4096,
			PersistBatchSize:   100,
			PersistFlushMs:     50,
			DedupLRUSize:       100_000,
			SnapshotInterval:   duration{10 * time.Minute},
			SnapshotEventCount: 100_000,
		},
		Oracle: OracleConfig{
			MaxAgeSeconds: 300,
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var problems []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		problems = append(problems, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			problems = append(problems, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			problems = append(problems, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			problems = append(problems, "postgres: database must not be empty")
		}
	}
	if c.Postgres.MaxOpenConns < 1 {
		problems = append(problems, "postgres: max_open_conns must be >= 1")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		problems = append(problems, "redis: addr must not be empty when enabled")
	}

	if c.NATS.URL == "" {
		problems = append(problems, "nats: url must not be empty")
	}
	if c.NATS.StreamName == "" {
		problems = append(problems, "nats: stream_name must not be empty")
	}
	if c.NATS.CommandSubject == "" {
		problems = append(problems, "nats: command_subject must not be empty")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		problems = append(problems, fmt.Sprintf("server: metrics_port must be 1-65535, got %d", c.Server.MetricsPort))
	}

	if c.Engine.PersistChanSize < 1 {
		problems = append(problems, "engine: persist_chan_size must be >= 1")
	}
	if c.Engine.ProjectionChanSize < 1 {
		problems = append(problems, "engine: projection_chan_size must be >= 1")
	}
	if c.Engine.PersistBatchSize < 1 {
		problems = append(problems, "engine: persist_batch_size must be >= 1")
	}
	if c.Engine.DedupLRUSize < 1 {
		problems = append(problems, "engine: dedup_lru_size must be >= 1")
	}

	if c.Oracle.MaxAgeSeconds < 0 {
		problems = append(problems, "oracle: max_age_seconds must be >= 0")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// SnapshotInterval returns the configured snapshot interval as a
// time.Duration.
func (c *Config) SnapshotInterval() time.Duration {
	return c.Engine.SnapshotInterval.Duration
}
