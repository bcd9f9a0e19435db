package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/agentlog/internal/clock"
	"github.com/roach88/agentlog/internal/config"
	"github.com/roach88/agentlog/internal/faults"
	"github.com/roach88/agentlog/internal/memory"
	"github.com/roach88/agentlog/internal/metrics"
	"github.com/roach88/agentlog/internal/store"
	"github.com/roach88/agentlog/internal/worklog"
)

// app bundles what every command builds at entry: config, logger, clock
// and output formatter.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	clock     clock.Clock
	formatter *OutputFormatter
	closeLog  func()
}

func newApp(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	path := opts.ConfigPath
	if path == "" {
		path = os.Getenv("AGENTLOG_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeConfigInvalid, "failed to load config", err)
	}
	config.FromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeConfigInvalid, "invalid config", err)
	}

	logger, closeLog, err := newLogger(opts, cmd.ErrOrStderr())
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeInvalidArgs, "failed to open log file", err)
	}

	c := opts.Clock
	if c == nil {
		c = clock.Real()
	}

	return &app{cfg: cfg, logger: logger, clock: c, formatter: formatter, closeLog: closeLog}, nil
}

func (a *app) Close() {
	if a.closeLog != nil {
		a.closeLog()
	}
}

// newLogger writes text logs to stderr, and also to --log-file when set.
func newLogger(opts *RootOptions, stderr io.Writer) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}

	w, closeFn := stderr, func() {}
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(stderr, f)
		closeFn = func() { _ = f.Close() }
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler), closeFn, nil
}

// openMemory opens the record store and wires the work log and memory
// service on top of it.
func (a *app) openMemory(m *metrics.Metrics) (*store.Store, *memory.Service, error) {
	codec, err := store.CodecFor(a.cfg.Memory.Format)
	if err != nil {
		return nil, nil, a.formatter.Fail(ExitCommandError, ErrCodeConfigInvalid, "invalid memory format", err)
	}
	st, err := store.Open(a.cfg.Memory.Dir, store.Options{
		Codec:      codec,
		MaxBackups: a.cfg.Memory.MaxBackups,
		Clock:      a.clock,
		Logger:     a.logger,
		Metrics:    m,
	})
	if err != nil {
		return nil, nil, a.formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open memory store", err)
	}
	wl := worklog.New(st, worklog.Options{
		MaxEntries: a.cfg.Memory.MaxEntries,
		Clock:      a.clock,
		Logger:     a.logger,
	})
	return st, memory.New(st, wl, a.clock, a.logger), nil
}

// configError maps a config validation error to an exit error.
func (a *app) configError(err error) error {
	if faults.IsConfigMissing(err) {
		a.logger.Error("required configuration missing", "error", err)
		return a.formatter.Fail(ExitCommandError, ErrCodeConfigMissing, "required configuration missing", err)
	}
	return a.formatter.Fail(ExitCommandError, ErrCodeConfigInvalid, "invalid sync configuration", err)
}
