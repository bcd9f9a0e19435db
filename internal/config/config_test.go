package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/agentlog/internal/faults"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 100, cfg.Sink.BatchSize)
	assert.Equal(t, time.Minute, cfg.Sink.FlushInterval())
	assert.Equal(t, 3, cfg.Sink.RetryAttempts)
	assert.Equal(t, 5*time.Second, cfg.Sink.RetryDelay())
	assert.Equal(t, 500, cfg.Memory.MaxEntries)
	assert.Equal(t, 5, cfg.Memory.MaxBackups)
	assert.Equal(t, "yaml", cfg.Memory.Format)
	assert.Equal(t, "sqlite3", cfg.Sink.Driver)
	assert.Equal(t, "agent_activity_log", cfg.Sink.Table)
	assert.False(t, cfg.Sink.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EmptyPathIsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "agentlog.yaml", `
logs:
  dir: /var/agentlog/logs
memory:
  format: json
sink:
  enabled: true
  driver: pgx
  dsn: postgres://warehouse/activity
  batch_size: 25
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/agentlog/logs", cfg.Logs.Dir)
	assert.Equal(t, "json", cfg.Memory.Format)
	assert.Equal(t, 500, cfg.Memory.MaxEntries, "unset keys keep their defaults")
	assert.True(t, cfg.Sink.Enabled)
	assert.Equal(t, "pgx", cfg.Sink.Driver)
	assert.Equal(t, 25, cfg.Sink.BatchSize)
	assert.Equal(t, 3, cfg.Sink.RetryAttempts)
}

func TestLoad_JSONWithComments(t *testing.T) {
	path := writeConfig(t, "agentlog.jsonc", `{
  // local warehouse
  "sink": {
    "enabled": true,
    "dsn": "/tmp/sink.db", /* sqlite file */
    "retry_attempts": 5,
  },
  "metrics": {"addr": ":9464"},
}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/sink.db", cfg.Sink.DSN)
	assert.Equal(t, 5, cfg.Sink.RetryAttempts)
	assert.Equal(t, ":9464", cfg.Metrics.Addr)
}

func TestLoad_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	cfg, err := Load(writeConfig(t, "c.yml", "logs:\n  dir: ~/logs\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "logs"), cfg.Logs.Dir)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "c.toml", "x = 1"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "c.yaml", "logs: [unterminated"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "c.json", `{"sink": {"batch_size": "many"}}`))
	require.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("AGENTLOG_LOGS_DIR", "/env/logs")
	t.Setenv("AGENTLOG_SINK_ENABLED", "true")
	t.Setenv("AGENTLOG_SINK_DSN", "postgres://env")
	t.Setenv("AGENTLOG_BATCH_SIZE", "7")
	t.Setenv("AGENTLOG_RETRY_ATTEMPTS", "not-a-number")
	t.Setenv("AGENTLOG_METRICS_ADDR", "127.0.0.1:9000")

	cfg := Default()
	FromEnv(&cfg)
	assert.Equal(t, "/env/logs", cfg.Logs.Dir)
	assert.True(t, cfg.Sink.Enabled)
	assert.Equal(t, "postgres://env", cfg.Sink.DSN)
	assert.Equal(t, 7, cfg.Sink.BatchSize)
	assert.Equal(t, 3, cfg.Sink.RetryAttempts, "unparseable values are ignored")
	assert.Equal(t, "127.0.0.1:9000", cfg.Metrics.Addr)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Memory.Format = "toml"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Memory.MaxEntries = 0
	require.Error(t, cfg.Validate())
}

func TestValidateSync(t *testing.T) {
	enabled := func(mut func(*Config)) Config {
		cfg := Default()
		cfg.Sink.Enabled = true
		cfg.Sink.DSN = "/tmp/sink.db"
		mut(&cfg)
		return cfg
	}

	tests := []struct {
		name        string
		cfg         Config
		dryRun      bool
		wantMissing bool
		wantErr     bool
	}{
		{name: "complete", cfg: enabled(func(*Config) {})},
		{name: "sink disabled", cfg: Default()},
		{name: "missing dsn", cfg: enabled(func(c *Config) { c.Sink.DSN = "" }), wantMissing: true},
		{name: "missing dsn dry run", cfg: enabled(func(c *Config) { c.Sink.DSN = "" }), dryRun: true},
		{name: "missing driver", cfg: enabled(func(c *Config) { c.Sink.Driver = "" }), wantMissing: true},
		{name: "missing table", cfg: enabled(func(c *Config) { c.Sink.Table = "" }), wantMissing: true},
		{name: "missing logs dir", cfg: enabled(func(c *Config) { c.Logs.Dir = "" }), dryRun: true, wantMissing: true},
		{name: "zero batch", cfg: enabled(func(c *Config) { c.Sink.BatchSize = 0 }), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateSync(tt.dryRun)
			switch {
			case tt.wantMissing:
				require.Error(t, err)
				assert.True(t, faults.IsConfigMissing(err))
			case tt.wantErr:
				require.Error(t, err)
				assert.False(t, faults.IsConfigMissing(err))
			default:
				require.NoError(t, err)
			}
		})
	}
}
