// Package config loads agentlog settings from one explicitly named file
// plus AGENTLOG_* environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/roach88/agentlog/internal/faults"
)

// Config is the top-level configuration.
type Config struct {
	Logs    LogsConfig    `json:"logs" yaml:"logs"`
	Memory  MemoryConfig  `json:"memory" yaml:"memory"`
	Sink    SinkConfig    `json:"sink" yaml:"sink"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// LogsConfig locates the raw activity log.
type LogsConfig struct {
	Dir string `json:"dir" yaml:"dir"`

	// MaxPromptLength truncates captured prompts; 0 disables truncation.
	MaxPromptLength int `json:"max_prompt_length" yaml:"max_prompt_length"`
}

// MemoryConfig configures the record store and work log.
type MemoryConfig struct {
	Dir        string `json:"dir" yaml:"dir"`
	Format     string `json:"format" yaml:"format"`
	MaxEntries int    `json:"max_entries" yaml:"max_entries"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
}

// SinkConfig configures the remote sink and the sync loop.
type SinkConfig struct {
	Enabled              bool   `json:"enabled" yaml:"enabled"`
	Driver               string `json:"driver" yaml:"driver"`
	DSN                  string `json:"dsn" yaml:"dsn"`
	Table                string `json:"table" yaml:"table"`
	BatchSize            int    `json:"batch_size" yaml:"batch_size"`
	FlushIntervalSeconds int    `json:"flush_interval_seconds" yaml:"flush_interval_seconds"`
	RetryAttempts        int    `json:"retry_attempts" yaml:"retry_attempts"`
	RetryDelaySeconds    int    `json:"retry_delay_seconds" yaml:"retry_delay_seconds"`
}

// FlushInterval is the pause between continuous sync cycles.
func (s SinkConfig) FlushInterval() time.Duration {
	return time.Duration(s.FlushIntervalSeconds) * time.Second
}

// RetryDelay is the pause between upload attempts.
func (s SinkConfig) RetryDelay() time.Duration {
	return time.Duration(s.RetryDelaySeconds) * time.Second
}

// MetricsConfig configures the optional Prometheus endpoint.
type MetricsConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// Default returns the built-in defaults. Directories live under
// ~/.agentlog, or ./.agentlog when the home directory is unknown.
func Default() Config {
	base := ".agentlog"
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		base = filepath.Join(home, ".agentlog")
	}
	return Config{
		Logs: LogsConfig{
			Dir:             filepath.Join(base, "logs"),
			MaxPromptLength: 500,
		},
		Memory: MemoryConfig{
			Dir:        filepath.Join(base, "memory"),
			Format:     "yaml",
			MaxEntries: 500,
			MaxBackups: 5,
		},
		Sink: SinkConfig{
			Driver:               "sqlite3",
			Table:                "agent_activity_log",
			BatchSize:            100,
			FlushIntervalSeconds: 60,
			RetryAttempts:        3,
			RetryDelaySeconds:    5,
		},
	}
}

// Load reads the file at path over the defaults. The syntax is chosen by
// extension: .yaml/.yml, or .json/.jsonc (comments and trailing commas
// allowed). An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("load config %s: unsupported extension %q", path, ext)
	}

	cfg.Logs.Dir = expandHome(cfg.Logs.Dir)
	cfg.Memory.Dir = expandHome(cfg.Memory.Dir)
	return cfg, nil
}

// Validate checks values that are wrong regardless of the command run.
func (c Config) Validate() error {
	switch c.Memory.Format {
	case "yaml", "json":
	default:
		return fmt.Errorf("config: memory.format must be yaml or json, got %q", c.Memory.Format)
	}
	if c.Memory.MaxEntries <= 0 {
		return fmt.Errorf("config: memory.max_entries must be positive")
	}
	if c.Memory.MaxBackups <= 0 {
		return fmt.Errorf("config: memory.max_backups must be positive")
	}
	return nil
}

// ValidateSync reports missing settings the sync command needs. Missing
// values are faults.KindConfigMissing errors. A dry run never touches the
// sink, so sink settings are only required otherwise.
func (c Config) ValidateSync(dryRun bool) error {
	if c.Logs.Dir == "" {
		return faults.ConfigMissing("logs.dir")
	}
	if c.Sink.BatchSize <= 0 {
		return fmt.Errorf("config: sink.batch_size must be positive")
	}
	if c.Sink.RetryAttempts <= 0 {
		return fmt.Errorf("config: sink.retry_attempts must be positive")
	}
	if dryRun || !c.Sink.Enabled {
		return nil
	}
	if c.Sink.Driver == "" {
		return faults.ConfigMissing("sink.driver")
	}
	if c.Sink.DSN == "" {
		return faults.ConfigMissing("sink.dsn")
	}
	if c.Sink.Table == "" {
		return faults.ConfigMissing("sink.table")
	}
	return nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
