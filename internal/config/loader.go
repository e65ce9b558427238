package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path (skipped when path is
// empty or missing), merges it on top of the built-in defaults, applies
// WAGER_* environment variable overrides, and returns the final Config.
// The returned Config has NOT been validated; the caller should invoke
// Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, err
			}
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known WAGER_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
// This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// Postgres
	setStr(&cfg.Postgres.DSN, "WAGER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "WAGER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "WAGER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "WAGER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "WAGER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "WAGER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "WAGER_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.MaxOpenConns, "WAGER_POSTGRES_MAX_OPEN_CONNS")
	setInt(&cfg.Postgres.MaxIdleConns, "WAGER_POSTGRES_MAX_IDLE_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "WAGER_POSTGRES_RUN_MIGRATIONS")

	// Redis
	setBool(&cfg.Redis.Enabled, "WAGER_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "WAGER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "WAGER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "WAGER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "WAGER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "WAGER_REDIS_MAX_RETRIES")

	// NATS
	setStr(&cfg.NATS.URL, "WAGER_NATS_URL")
	setStr(&cfg.NATS.StreamName, "WAGER_NATS_STREAM_NAME")
	setStr(&cfg.NATS.CommandSubject, "WAGER_NATS_COMMAND_SUBJECT")
	setStr(&cfg.NATS.ResultSubject, "WAGER_NATS_RESULT_SUBJECT")
	setStr(&cfg.NATS.DurableName, "WAGER_NATS_DURABLE_NAME")
	setInt(&cfg.NATS.MaxAckPending, "WAGER_NATS_MAX_ACK_PENDING")

	// Server
	setInt(&cfg.Server.Port, "WAGER_SERVER_PORT")
	setInt(&cfg.Server.MetricsPort, "WAGER_SERVER_METRICS_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "WAGER_SERVER_CORS_ORIGINS")

	// Engine
	setInt(&cfg.Engine.PersistChanSize, "WAGER_ENGINE_PERSIST_CHAN_SIZE")
	setInt(&cfg.Engine.ProjectionChanSize, "WAGER_ENGINE_PROJECTION_CHAN_SIZE")
	setInt(&cfg.Engine.PersistBatchSize, "WAGER_ENGINE_PERSIST_BATCH_SIZE")
	setInt(&cfg.Engine.PersistFlushMs, "WAGER_ENGINE_PERSIST_FLUSH_MS")
	setInt(&cfg.Engine.DedupLRUSize, "WAGER_ENGINE_DEDUP_LRU_SIZE")
	setDuration(&cfg.Engine.SnapshotInterval, "WAGER_ENGINE_SNAPSHOT_INTERVAL")
	setInt64(&cfg.Engine.SnapshotEventCount, "WAGER_ENGINE_SNAPSHOT_EVENT_COUNT")

	// Oracle
	setInt64(&cfg.Oracle.MaxAgeSeconds, "WAGER_ORACLE_MAX_AGE_SECONDS")

	// Top-level
	setStr(&cfg.LogLevel, "WAGER_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the
// environment variable is present and non-empty.

func setStr(dst *string, key string) {
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

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
