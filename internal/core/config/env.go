package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: AWKREF_[SECTION]_[KEY] (e.g., AWKREF_DB_ENABLED).
func ApplyEnvOverrides(cfg *Config) {
	setEnvString(&cfg.Paths.ProjectRoot, "AWKREF_PATHS_PROJECT_ROOT")
	setEnvString(&cfg.Paths.DatabaseDir, "AWKREF_PATHS_DATABASE_DIR")

	setEnvBool(&cfg.DB.Enabled, "AWKREF_DB_ENABLED")
	setEnvString(&cfg.DB.Path, "AWKREF_DB_PATH")
	setEnvDuration(&cfg.DB.BusyTimeout, "AWKREF_DB_BUSY_TIMEOUT")
	setEnvString(&cfg.DB.ProjectKey, "AWKREF_DB_PROJECT_KEY")

	setEnvBool(&cfg.Watch.Enabled, "AWKREF_WATCH_ENABLED")
	setEnvDuration(&cfg.Watch.Debounce, "AWKREF_WATCH_DEBOUNCE")
	setEnvFloat64(&cfg.Watch.ReindexPerSecond, "AWKREF_WATCH_REINDEX_PER_SECOND")

	setEnvInt(&cfg.Server.RequestsPerMinute, "AWKREF_SERVER_REQUESTS_PER_MINUTE")

	setEnvString(&cfg.Observability.MetricsAddr, "AWKREF_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.OTLPEndpoint, "AWKREF_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.TracingEnabled, "AWKREF_OBSERVABILITY_TRACING_ENABLED")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
