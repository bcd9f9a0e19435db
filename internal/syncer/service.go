package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/roach88/agentlog/internal/clock"
	"github.com/roach88/agentlog/internal/eventlog"
	"github.com/roach88/agentlog/internal/faults"
	"github.com/roach88/agentlog/internal/metrics"
)

// Defaults applied by New when an option is left at its zero value.
const (
	DefaultBatchSize     = 100
	DefaultInterval      = 60 * time.Second
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 5 * time.Second
)

const (
	previewRecords = 5
	previewPrompt  = 50
)

// State is a step of the sync cycle.
type State string

const (
	StateIdle       State = "IDLE"
	StateRead       State = "READ"
	StateUpload     State = "UPLOAD"
	StateCheckpoint State = "CHECKPOINT"
	StateError      State = "ERROR"
)

// Sink accepts batches of events. WriteBatch must be all-or-nothing and
// return the number of events accepted.
type Sink interface {
	WriteBatch(ctx context.Context, events []eventlog.Event) (int, error)
	Close() error
}

// Options configures a Service.
type Options struct {
	// LogsDir holds the daily log files. Required.
	LogsDir string

	// CheckpointPath defaults to LogsDir/.sync_state.json.
	CheckpointPath string

	BatchSize     int
	Interval      time.Duration
	RetryAttempts int
	RetryDelay    time.Duration

	// DryRun reads and previews batches without uploading or
	// checkpointing. No sink is needed.
	DryRun bool

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// OnTransition, if set, is called on every state change.
	OnTransition func(from, to State)
}

// Service drives the tailer and the sink. It is the only writer of the
// checkpoint file.
type Service struct {
	sink    Sink
	tailer  *eventlog.Tailer
	cpPath  string
	opts    Options
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	state      State
	checkpoint Checkpoint

	shutdownOnce sync.Once
	shutdownErr  error
}

// New loads the checkpoint and returns a Service. Missing required
// configuration is reported as a faults.KindConfigMissing error before any
// state is touched.
func New(sink Sink, opts Options) (*Service, error) {
	if opts.LogsDir == "" {
		return nil, faults.ConfigMissing("logs.dir")
	}
	if sink == nil && !opts.DryRun {
		return nil, faults.ConfigMissing("sink")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = DefaultRetryAttempts
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.CheckpointPath == "" {
		opts.CheckpointPath = filepath.Join(opts.LogsDir, CheckpointFile)
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With("component", "syncer")

	cp, err := LoadCheckpoint(opts.CheckpointPath, logger)
	if err != nil {
		return nil, err
	}

	return &Service{
		sink:       sink,
		tailer:     eventlog.NewTailer(opts.LogsDir, opts.Clock, logger),
		cpPath:     opts.CheckpointPath,
		opts:       opts,
		clock:      opts.Clock,
		logger:     logger,
		metrics:    opts.Metrics,
		state:      StateIdle,
		checkpoint: cp,
	}, nil
}

// State returns the current step of the cycle.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Checkpoint returns a copy of the in-memory checkpoint.
func (s *Service) Checkpoint() Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoint
}

func (s *Service) setState(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()
	if from == to {
		return
	}
	s.logger.Debug("state transition", "from", from, "to", to)
	if s.opts.OnTransition != nil {
		s.opts.OnTransition(from, to)
	}
}

// RunOnce performs one READ, UPLOAD, CHECKPOINT cycle and returns the
// number of events delivered (or previewed, in dry-run mode).
//
// When every attempt fails the checkpoint is left where it was and the
// last upload error is returned.
func (s *Service) RunOnce(ctx context.Context) (int, error) {
	s.setState(StateRead)
	batch, err := s.tailer.ReadNew(s.Checkpoint().Position(), s.opts.BatchSize)
	if err != nil {
		s.fail("read failed", err)
		return 0, fmt.Errorf("sync: %w", err)
	}
	s.metrics.LinesSkipped(batch.Skipped)

	if len(batch.Events) == 0 {
		// Only malformed lines were consumed; nothing is owed to the sink.
		if !s.opts.DryRun && batch.Skipped > 0 {
			if err := s.persist(batch.Position, nil); err != nil {
				s.fail("checkpoint failed", err)
				return 0, err
			}
		}
		s.logger.Debug("no new records")
		s.setState(StateIdle)
		return 0, nil
	}

	if s.opts.DryRun {
		s.preview(batch.Events)
		s.setState(StateIdle)
		return len(batch.Events), nil
	}

	s.setState(StateUpload)
	n, err := s.upload(ctx, batch.Events)
	if err != nil {
		s.fail("upload failed, checkpoint not advanced", err)
		return 0, err
	}

	s.setState(StateCheckpoint)
	if err := s.persist(batch.Position, batch.Events); err != nil {
		s.fail("checkpoint failed", err)
		return n, err
	}
	s.metrics.RecordsSynced(n)

	cp := s.Checkpoint()
	s.logger.Info("synced records",
		"count", n,
		"file", filepath.Base(cp.LastFile),
		"offset", cp.LastPosition,
		"total", cp.TotalSynced)
	s.setState(StateIdle)
	return n, nil
}

func (s *Service) upload(ctx context.Context, events []eventlog.Event) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= s.opts.RetryAttempts; attempt++ {
		n, err := s.sink.WriteBatch(ctx, events)
		s.metrics.UploadAttempt(err == nil)
		if err == nil {
			return n, nil
		}
		lastErr = err
		s.logger.Warn("upload attempt failed",
			"attempt", attempt,
			"attempts", s.opts.RetryAttempts,
			"error", err)

		if attempt == s.opts.RetryAttempts {
			break
		}
		if ctx.Err() != nil {
			return 0, fmt.Errorf("sync: upload interrupted: %w", ctx.Err())
		}
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("sync: upload interrupted: %w", ctx.Err())
		case <-s.clock.After(s.opts.RetryDelay):
		}
	}
	return 0, fmt.Errorf("sync: upload failed after %d attempts: %w", s.opts.RetryAttempts, lastErr)
}

func (s *Service) persist(pos eventlog.Position, delivered []eventlog.Event) error {
	s.mu.Lock()
	next := s.checkpoint
	next.Advance(pos, delivered, s.clock.Now())
	s.mu.Unlock()

	if err := next.Save(s.cpPath); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	s.mu.Lock()
	s.checkpoint = next
	s.mu.Unlock()
	s.metrics.CheckpointOffset(next.LastPosition)
	return nil
}

func (s *Service) fail(msg string, err error) {
	s.setState(StateError)
	s.logger.Error(msg, "error", err)
	s.setState(StateIdle)
}

func (s *Service) preview(events []eventlog.Event) {
	s.logger.Info("dry run: would upload records", "count", len(events))
	for i, ev := range events {
		if i == previewRecords {
			s.logger.Info(fmt.Sprintf("  ... and %d more", len(events)-previewRecords))
			break
		}
		s.logger.Info("  preview", "operation", ev.Operation, "prompt", clip(ev.Prompt, previewPrompt))
	}
}

// Run repeats RunOnce every interval until ctx is cancelled, then shuts
// the service down. Cycle errors are logged and the loop continues.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("continuous sync started",
		"interval", s.opts.Interval,
		"batch_size", s.opts.BatchSize,
		"dry_run", s.opts.DryRun)

	for ctx.Err() == nil {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("sync cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
		case <-s.clock.After(s.opts.Interval):
		}
	}

	s.logger.Info("continuous sync stopping")
	return s.Shutdown()
}

// Shutdown persists the checkpoint and releases the sink. Calls after the
// first return the first result.
func (s *Service) Shutdown() error {
	s.shutdownOnce.Do(func() {
		var errs []error
		if !s.opts.DryRun {
			if err := s.Checkpoint().Save(s.cpPath); err != nil {
				errs = append(errs, err)
			}
		}
		if s.sink != nil {
			if err := s.sink.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			s.shutdownErr = fmt.Errorf("sync shutdown: %w", errors.Join(errs...))
			s.logger.Error("shutdown incomplete", "error", s.shutdownErr)
			return
		}
		s.logger.Info("sync stopped")
	})
	return s.shutdownErr
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
