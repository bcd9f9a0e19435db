package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/roach88/agentlog/internal/metrics"
	"github.com/roach88/agentlog/internal/syncer"
	"github.com/roach88/agentlog/internal/warehouse"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Once        bool
	DryRun      bool
	MetricsAddr string
}

// SyncResult is the JSON payload of a single-pass sync.
type SyncResult struct {
	Records     int    `json:"records"`
	DryRun      bool   `json:"dry_run"`
	TotalSynced int64  `json:"total_synced"`
	File        string `json:"file,omitempty"`
	Offset      int64  `json:"offset"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Deliver new log records to the warehouse",
		Long: `Read records appended to today's activity log since the last checkpoint
and upload them to the configured SQL sink. The checkpoint advances only
after the sink confirms a batch.

Without --once the command runs until interrupted, syncing every
sink.flush_interval_seconds.

Example:
  agentlog sync --once
  agentlog sync --dry-run --once
  agentlog sync --metrics-addr :9464`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "run a single sync pass and exit")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "preview records without uploading or checkpointing")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides metrics.addr)")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	a, err := newApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	if err := cfg.ValidateSync(opts.DryRun); err != nil {
		return a.configError(err)
	}
	if !cfg.Sink.Enabled && !opts.DryRun {
		a.logger.Info("sink disabled in config, nothing to do")
		if a.formatter.JSON() {
			return a.formatter.Success(SyncResult{})
		}
		fmt.Fprintln(a.formatter.Writer, "Sink disabled; nothing synced.")
		return nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	addr := opts.MetricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		stop, err := serveMetrics(addr, reg, a)
		if err != nil {
			return a.formatter.Fail(ExitCommandError, ErrCodeMetricsStartup, "failed to start metrics listener", err)
		}
		defer stop()
	}

	var sink syncer.Sink
	if !opts.DryRun {
		up, err := warehouse.New(warehouse.Options{
			Driver: cfg.Sink.Driver,
			DSN:    cfg.Sink.DSN,
			Table:  cfg.Sink.Table,
			Logger: a.logger,
		})
		if err != nil {
			return a.configError(err)
		}
		sink = up
	}

	svc, err := syncer.New(sink, syncer.Options{
		LogsDir:       cfg.Logs.Dir,
		BatchSize:     cfg.Sink.BatchSize,
		Interval:      cfg.Sink.FlushInterval(),
		RetryAttempts: cfg.Sink.RetryAttempts,
		RetryDelay:    cfg.Sink.RetryDelay(),
		DryRun:        opts.DryRun,
		Clock:         a.clock,
		Logger:        a.logger,
		Metrics:       m,
	})
	if err != nil {
		if sink != nil {
			_ = sink.Close()
		}
		return a.configError(err)
	}

	ctx, cancel := signalContext(cmd.Context(), a)
	defer cancel()

	if !opts.Once {
		a.formatter.VerboseLog("Continuous sync every %s. Press Ctrl-C to stop.", cfg.Sink.FlushInterval())
		if err := svc.Run(ctx); err != nil {
			return a.formatter.Fail(ExitFailure, ErrCodeSyncFailed, "sync shutdown failed", err)
		}
		return nil
	}

	n, runErr := svc.RunOnce(ctx)
	shutdownErr := svc.Shutdown()
	if err := errors.Join(runErr, shutdownErr); err != nil {
		return a.formatter.Fail(ExitFailure, ErrCodeSyncFailed, "sync failed", err)
	}

	cp := svc.Checkpoint()
	res := SyncResult{
		Records:     n,
		DryRun:      opts.DryRun,
		TotalSynced: cp.TotalSynced,
		File:        cp.LastFile,
		Offset:      cp.LastPosition,
	}
	if a.formatter.JSON() {
		return a.formatter.Success(res)
	}
	if opts.DryRun {
		fmt.Fprintf(a.formatter.Writer, "Dry run: %d record(s) pending\n", n)
		return nil
	}
	fmt.Fprintf(a.formatter.Writer, "Synced %d record(s) (total %d)\n", n, cp.TotalSynced)
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context, a *app) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			a.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// serveMetrics starts the metrics endpoint and returns its stop function.
func serveMetrics(addr string, reg *prometheus.Registry, a *app) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", "error", err)
		}
	}()
	a.logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
