package config

import (
	"os"
	"strconv"
)

// FromEnv overlays AGENTLOG_* environment variables onto cfg. Values that
// fail to parse are ignored.
func FromEnv(cfg *Config) {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("AGENTLOG_LOGS_DIR", &cfg.Logs.Dir)
	num("AGENTLOG_MAX_PROMPT_LENGTH", &cfg.Logs.MaxPromptLength)

	str("AGENTLOG_MEMORY_DIR", &cfg.Memory.Dir)
	str("AGENTLOG_MEMORY_FORMAT", &cfg.Memory.Format)
	num("AGENTLOG_MAX_ENTRIES", &cfg.Memory.MaxEntries)
	num("AGENTLOG_MAX_BACKUPS", &cfg.Memory.MaxBackups)

	if v := os.Getenv("AGENTLOG_SINK_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Sink.Enabled = b
		}
	}
	str("AGENTLOG_SINK_DRIVER", &cfg.Sink.Driver)
	str("AGENTLOG_SINK_DSN", &cfg.Sink.DSN)
	str("AGENTLOG_SINK_TABLE", &cfg.Sink.Table)
	num("AGENTLOG_BATCH_SIZE", &cfg.Sink.BatchSize)
	num("AGENTLOG_FLUSH_INTERVAL", &cfg.Sink.FlushIntervalSeconds)
	num("AGENTLOG_RETRY_ATTEMPTS", &cfg.Sink.RetryAttempts)
	num("AGENTLOG_RETRY_DELAY", &cfg.Sink.RetryDelaySeconds)

	str("AGENTLOG_METRICS_ADDR", &cfg.Metrics.Addr)
}
