package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Load reads, defaults and validates a TOML configuration file. Environment
// overrides are applied before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

// Parse is Load for configuration text already in memory.
func Parse(data string) (*Config, error) {
	cfg := Config{DB: Database{Enabled: true}, Watch: Watch{Enabled: true}}
	meta, err := toml.Decode(data, &cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	applyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)
	normalizeFiles(&cfg)

	if err := validateVersion(&cfg); err != nil {
		return nil, err
	}
	if err := validateFiles(&cfg); err != nil {
		return nil, err
	}
	if err := validateDatabase(&cfg); err != nil {
		return nil, err
	}
	if err := validateWatch(&cfg); err != nil {
		return nil, err
	}
	if err := validateServer(&cfg); err != nil {
		return nil, err
	}
	if err := validateObservability(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if len(cfg.Roots) == 0 {
		cfg.Roots = []string{"."}
	}
	if strings.TrimSpace(cfg.Paths.DatabaseDir) == "" {
		cfg.Paths.DatabaseDir = ".awkref"
	}

	if len(cfg.Files.Extensions) == 0 {
		cfg.Files.Extensions = []string{".awk"}
	}
	if cfg.Files.ExcludeDirs == nil {
		cfg.Files.ExcludeDirs = []string{".git", ".hg", ".svn", ".awkref"}
	}

	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = "stubs.db"
	}
	if cfg.DB.BusyTimeout <= 0 {
		cfg.DB.BusyTimeout = 5 * time.Second
	}
	if strings.TrimSpace(cfg.DB.ProjectKey) == "" {
		cfg.DB.ProjectKey = "default"
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 300 * time.Millisecond
	}
	if cfg.Watch.ReindexPerSecond == 0 {
		cfg.Watch.ReindexPerSecond = 20
	}
	if cfg.Watch.Burst == 0 {
		cfg.Watch.Burst = 10
	}

	if cfg.Server.RequestsPerMinute == 0 {
		cfg.Server.RequestsPerMinute = 600
	}
	if cfg.Server.Burst == 0 {
		cfg.Server.Burst = 20
	}

	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "awkref"
	}
}

func normalizeFiles(cfg *Config) {
	exts := make([]string, 0, len(cfg.Files.Extensions))
	for _, ext := range cfg.Files.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	cfg.Files.Extensions = exts
	cfg.Files.ExcludeDirs = trimAll(cfg.Files.ExcludeDirs)
	cfg.Files.ExcludeFiles = trimAll(cfg.Files.ExcludeFiles)
	cfg.Roots = trimAll(cfg.Roots)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
