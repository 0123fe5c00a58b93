package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/gobwas/glob"
)

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateFiles(cfg *Config) error {
	if len(cfg.Roots) == 0 {
		return fmt.Errorf("roots must list at least one directory")
	}
	if len(cfg.Files.Extensions) == 0 {
		return fmt.Errorf("files.extensions must list at least one extension")
	}
	for i, pattern := range cfg.Files.ExcludeDirs {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("files.exclude_dirs[%d] %q: %w", i, pattern, err)
		}
	}
	for i, pattern := range cfg.Files.ExcludeFiles {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("files.exclude_files[%d] %q: %w", i, pattern, err)
		}
	}
	return nil
}

func validateDatabase(cfg *Config) error {
	if !cfg.DB.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.DB.Path) == "" {
		return fmt.Errorf("db.path must not be empty")
	}
	if cfg.DB.BusyTimeout < 0 {
		return fmt.Errorf("db.busy_timeout must not be negative")
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if cfg.Watch.ReindexPerSecond < 0 {
		return fmt.Errorf("watch.reindex_per_second must not be negative")
	}
	if cfg.Watch.Burst < 0 {
		return fmt.Errorf("watch.burst must not be negative")
	}
	return nil
}

func validateServer(cfg *Config) error {
	if cfg.Server.RequestsPerMinute < 0 {
		return fmt.Errorf("server.requests_per_minute must not be negative")
	}
	if cfg.Server.Burst < 0 {
		return fmt.Errorf("server.burst must not be negative")
	}
	return nil
}

func validateObservability(cfg *Config) error {
	addr := strings.TrimSpace(cfg.Observability.MetricsAddr)
	if addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("observability.metrics_addr %q: %w", addr, err)
		}
	}
	if cfg.Observability.TracingEnabled && strings.TrimSpace(cfg.Observability.OTLPEndpoint) == "" {
		return fmt.Errorf("observability.otlp_endpoint is required when tracing is enabled")
	}
	return nil
}
