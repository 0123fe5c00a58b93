package config

import (
	"time"
)

const DefaultFileName = "awkref.toml"

type Config struct {
	Version       int           `toml:"version"`
	Roots         []string      `toml:"roots"`
	Paths         Paths         `toml:"paths"`
	Files         Files         `toml:"files"`
	DB            Database      `toml:"db"`
	Watch         Watch         `toml:"watch"`
	Server        Server        `toml:"server"`
	Observability Observability `toml:"observability"`
}

type Paths struct {
	ProjectRoot string `toml:"project_root"`
	DatabaseDir string `toml:"database_dir"`
}

// Files selects which files are indexed. Extensions match case-insensitively;
// exclude entries are glob patterns matched against base names.
type Files struct {
	Extensions   []string `toml:"extensions"`
	ExcludeDirs  []string `toml:"exclude_dirs"`
	ExcludeFiles []string `toml:"exclude_files"`
}

type Database struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
	ProjectKey  string        `toml:"project_key"`
}

type Watch struct {
	Enabled          bool          `toml:"enabled"`
	Debounce         time.Duration `toml:"debounce"`
	ReindexPerSecond float64       `toml:"reindex_per_second"`
	Burst            int           `toml:"burst"`
}

type Server struct {
	RequestsPerMinute int `toml:"requests_per_minute"`
	Burst             int `toml:"burst"`
}

type Observability struct {
	MetricsAddr    string `toml:"metrics_addr"`
	OTLPEndpoint   string `toml:"otlp_endpoint"`
	ServiceName    string `toml:"service_name"`
	TracingEnabled bool   `toml:"tracing_enabled"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{DB: Database{Enabled: true}, Watch: Watch{Enabled: true}}
	applyDefaults(cfg)
	return cfg
}
