// Package config loads the layered gkgd configuration: hardcoded defaults,
// then a user config (~/.config/gkg/config.yaml), then environment
// variables (GKG_*), in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete gkgd configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Indexing  IndexingConfig  `yaml:"indexing" json:"indexing"`
	Watcher   WatcherConfig   `yaml:"watcher" json:"watcher"`
	Store     StoreConfig     `yaml:"store" json:"store"`
	Retry     RetryConfig     `yaml:"retry" json:"retry"`
}

// ServerConfig configures the HTTP query surface (spec §6).
type ServerConfig struct {
	// BindAddr is the address the HTTP server listens on. Empty means
	// loopback-only on Port.
	BindAddr string `yaml:"bind_addr" json:"bind_addr"`
	// Port is the default TCP port (documented default 27495).
	Port int `yaml:"port" json:"port"`
	// UnixSocket, if set, serves over a Unix domain socket instead of TCP
	// (server-side deployment mode).
	UnixSocket string `yaml:"unix_socket" json:"unix_socket"`
	// RequireAuth enables bearer-token auth on all endpoints except
	// /health and /metrics (server-side deployment mode).
	RequireAuth bool `yaml:"require_auth" json:"require_auth"`
	// BearerTokenEnv names the environment variable holding the bearer
	// token when RequireAuth is set.
	BearerTokenEnv string `yaml:"bearer_token_env" json:"bearer_token_env"`
	LogLevel       string `yaml:"log_level" json:"log_level"`
}

// IndexingConfig configures the parse pipeline and indexing executor.
type IndexingConfig struct {
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`

	// MaxFileSize is the maximum file size to index, in bytes.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`

	// GlobalConcurrency bounds simultaneous Running projects across the
	// whole process (spec §4.6 default: min(4, cores)).
	GlobalConcurrency int `yaml:"global_concurrency" json:"global_concurrency"`

	// ReaderConcurrency bounds Stage A async file readers (spec §4.4
	// default: 2x cores, minimum 4).
	ReaderConcurrency int `yaml:"reader_concurrency" json:"reader_concurrency"`

	// ParserConcurrency bounds Stage B CPU parse workers (spec §4.4
	// default: physical cores).
	ParserConcurrency int `yaml:"parser_concurrency" json:"parser_concurrency"`

	// PipelineBufferSize bounds the channels between pipeline stages.
	PipelineBufferSize int `yaml:"pipeline_buffer_size" json:"pipeline_buffer_size"`
}

// WatcherConfig configures C7's debouncer and scheduler.
type WatcherConfig struct {
	DebounceWindow  time.Duration `yaml:"debounce_window" json:"debounce_window"`
	MaxHold         time.Duration `yaml:"max_hold" json:"max_hold"`
	PollInterval    time.Duration `yaml:"poll_interval" json:"poll_interval"`
	EventBufferSize int           `yaml:"event_buffer_size" json:"event_buffer_size"`
}

// StoreConfig selects the graph store's SQL driver.
type StoreConfig struct {
	// Driver selects "sqlite" (modernc, pure Go, default) or "sqlite3"
	// (mattn, cgo-accelerated), mirroring the teacher's BM25Backend
	// selector pattern.
	Driver string `yaml:"driver" json:"driver"`
}

// RetryConfig configures backoff for store-busy errors (spec §7).
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries" json:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
}

var defaultExcludePatterns = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/dist/**",
	"**/build/**",
	"**/.gkg/**",
	"**/target/**",
	"**/__pycache__/**",
}

// NewConfig returns the hardcoded defaults.
func NewConfig() *Config {
	cores := runtime.NumCPU()
	readers := cores * 2
	if readers < 4 {
		readers = 4
	}
	return &Config{
		Version: 1,
		Server: ServerConfig{
			Port:           27495,
			RequireAuth:    false,
			BearerTokenEnv: "GKG_AUTH_TOKEN",
			LogLevel:       "info",
		},
		Indexing: IndexingConfig{
			Include:            nil,
			Exclude:            append([]string{}, defaultExcludePatterns...),
			MaxFileSize:        100 * 1024 * 1024,
			GlobalConcurrency:  min(4, cores),
			ReaderConcurrency:  readers,
			ParserConcurrency:  cores,
			PipelineBufferSize: 256,
		},
		Watcher: WatcherConfig{
			DebounceWindow:  500 * time.Millisecond,
			MaxHold:         5 * time.Second,
			PollInterval:    5 * time.Second,
			EventBufferSize: 1000,
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		Retry: RetryConfig{
			MaxRetries:   3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     5 * time.Second,
		},
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// UserConfigPath returns the XDG-style path to the user/global config file.
func UserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "gkg", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "gkg", "config.yaml")
	}
	return filepath.Join(home, ".config", "gkg", "config.yaml")
}

// Load builds the effective configuration: defaults, then the user config
// file (if present), then GKG_* environment overrides.
func Load() (*Config, error) {
	cfg := NewConfig()

	if fileExists(UserConfigPath()) {
		if err := cfg.loadYAML(UserConfigPath()); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays non-zero values from other onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.BindAddr != "" {
		c.Server.BindAddr = other.Server.BindAddr
	}
	if other.Server.UnixSocket != "" {
		c.Server.UnixSocket = other.Server.UnixSocket
	}
	if other.Server.BearerTokenEnv != "" {
		c.Server.BearerTokenEnv = other.Server.BearerTokenEnv
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	c.Server.RequireAuth = c.Server.RequireAuth || other.Server.RequireAuth

	if len(other.Indexing.Include) > 0 {
		c.Indexing.Include = other.Indexing.Include
	}
	if len(other.Indexing.Exclude) > 0 {
		c.Indexing.Exclude = append(c.Indexing.Exclude, other.Indexing.Exclude...)
	}
	if other.Indexing.MaxFileSize != 0 {
		c.Indexing.MaxFileSize = other.Indexing.MaxFileSize
	}
	if other.Indexing.GlobalConcurrency != 0 {
		c.Indexing.GlobalConcurrency = other.Indexing.GlobalConcurrency
	}
	if other.Indexing.ReaderConcurrency != 0 {
		c.Indexing.ReaderConcurrency = other.Indexing.ReaderConcurrency
	}
	if other.Indexing.ParserConcurrency != 0 {
		c.Indexing.ParserConcurrency = other.Indexing.ParserConcurrency
	}
	if other.Indexing.PipelineBufferSize != 0 {
		c.Indexing.PipelineBufferSize = other.Indexing.PipelineBufferSize
	}

	if other.Watcher.DebounceWindow != 0 {
		c.Watcher.DebounceWindow = other.Watcher.DebounceWindow
	}
	if other.Watcher.MaxHold != 0 {
		c.Watcher.MaxHold = other.Watcher.MaxHold
	}
	if other.Watcher.PollInterval != 0 {
		c.Watcher.PollInterval = other.Watcher.PollInterval
	}
	if other.Watcher.EventBufferSize != 0 {
		c.Watcher.EventBufferSize = other.Watcher.EventBufferSize
	}

	if other.Store.Driver != "" {
		c.Store.Driver = other.Store.Driver
	}

	if other.Retry.MaxRetries != 0 {
		c.Retry.MaxRetries = other.Retry.MaxRetries
	}
	if other.Retry.InitialDelay != 0 {
		c.Retry.InitialDelay = other.Retry.InitialDelay
	}
	if other.Retry.MaxDelay != 0 {
		c.Retry.MaxDelay = other.Retry.MaxDelay
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GKG_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("GKG_BIND_ADDR"); v != "" {
		c.Server.BindAddr = v
	}
	if v := os.Getenv("GKG_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("GKG_STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("GKG_GLOBAL_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Indexing.GlobalConcurrency = n
		}
	}
	if v := os.Getenv("GKG_DEBOUNCE_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Watcher.DebounceWindow = d
		}
	}
}

// Validate rejects configurations that cannot be safely served.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Indexing.GlobalConcurrency <= 0 {
		return fmt.Errorf("indexing.global_concurrency must be positive, got %d", c.Indexing.GlobalConcurrency)
	}
	if c.Indexing.ReaderConcurrency <= 0 {
		return fmt.Errorf("indexing.reader_concurrency must be positive, got %d", c.Indexing.ReaderConcurrency)
	}
	if c.Indexing.ParserConcurrency <= 0 {
		return fmt.Errorf("indexing.parser_concurrency must be positive, got %d", c.Indexing.ParserConcurrency)
	}
	if c.Watcher.DebounceWindow <= 0 {
		return fmt.Errorf("watcher.debounce_window must be positive")
	}
	if c.Watcher.MaxHold < c.Watcher.DebounceWindow {
		return fmt.Errorf("watcher.max_hold must be >= watcher.debounce_window")
	}
	driver := strings.ToLower(c.Store.Driver)
	if driver != "sqlite" && driver != "sqlite3" {
		return fmt.Errorf("store.driver must be 'sqlite' or 'sqlite3', got %q", c.Store.Driver)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be debug/info/warn/error, got %q", c.Server.LogLevel)
	}
	return nil
}

// BearerToken reads the configured bearer-token environment variable.
func (c *Config) BearerToken() string {
	if c.Server.BearerTokenEnv == "" {
		return ""
	}
	return os.Getenv(c.Server.BearerTokenEnv)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
