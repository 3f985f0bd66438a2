package indexer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/embedder"
	"github.com/Wojciech-Przybylski/Software-Developer-Portal/pkg/types"
)

// ErrRefreshInProgress is returned when a refresh is requested while another one runs
var ErrRefreshInProgress = errors.New("embedding refresh already in progress")

// Store is the part of storage.Store the indexer needs
type Store interface {
	FetchPending(ctx context.Context) ([]types.Entity, error)
	WriteOne(ctx context.Context, embedding types.Embedding) error
	WriteBatch(ctx context.Context, embeddings []types.Embedding) error
}

// Indexer brings stored embeddings up to date with entity content
type Indexer struct {
	source embedder.Computer
	store  Store
	logger *zap.Logger

	workers int
	retry   RetryPolicy
	sleep   func(ctx context.Context, d time.Duration) error

	lock IndexLock

	// Background runs
	bgCtx    context.Context
	bgCancel context.CancelFunc
	mu       sync.Mutex
	closed   bool
	wg       sync.WaitGroup

	lastMu  sync.Mutex
	lastRun *RunSummary
}

// Config contains configuration for the indexer
type Config struct {
	Workers int         // Concurrent computations in bulk mode (default: runtime.NumCPU())
	Retry   RetryPolicy // Incremental retry policy (default: DefaultRetryPolicy())
	Logger  *zap.Logger
}

// Statistics contains statistics about one refresh run
type Statistics struct {
	Mode       Mode
	Pending    int
	Embedded   int
	Skipped    int
	Retries    int
	SkippedIDs []string
	Duration   time.Duration
}

// RunSummary records the outcome of the most recent run
type RunSummary struct {
	Stats      Statistics
	Err        error
	FinishedAt time.Time
}

// New creates a new Indexer instance
func New(source embedder.Computer, store Store, cfg Config) *Indexer {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Retry.Interval <= 0 {
		cfg.Retry.Interval = DefaultRetryInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	return &Indexer{
		source:   source,
		store:    store,
		logger:   logger,
		workers:  cfg.Workers,
		retry:    cfg.Retry,
		sleep:    sleepContext,
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
	}
}

// Refresh runs one refresh in the given mode and blocks until it ends.
// It returns ErrRefreshInProgress if another run holds the lock. Statistics
// are returned alongside an error to report partial progress.
func (idx *Indexer) Refresh(ctx context.Context, mode Mode) (*Statistics, error) {
	if err := validateMode(mode); err != nil {
		return nil, err
	}
	if mode == ModeSkip {
		return &Statistics{Mode: ModeSkip}, nil
	}

	if !idx.lock.TryAcquire() {
		return nil, ErrRefreshInProgress
	}
	defer idx.lock.Release()

	return idx.run(ctx, mode)
}

// RefreshAsync starts a refresh in the background and returns immediately.
// It reports whether a run was started: false for ModeSkip, an unknown mode,
// a closed indexer, or when another run is in progress.
func (idx *Indexer) RefreshAsync(mode Mode) bool {
	if validateMode(mode) != nil || mode == ModeSkip {
		return false
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return false
	}
	if !idx.lock.TryAcquire() {
		idx.logger.Debug("refresh already in progress", zap.Stringer("mode", mode))
		return false
	}

	idx.wg.Add(1)
	go func() {
		defer idx.wg.Done()
		defer idx.lock.Release()
		_, _ = idx.run(idx.bgCtx, mode)
	}()
	return true
}

// Running reports whether a refresh is in progress
func (idx *Indexer) Running() bool {
	return idx.lock.Held()
}

// LastRun returns the outcome of the most recent completed run, or nil
func (idx *Indexer) LastRun() *RunSummary {
	idx.lastMu.Lock()
	defer idx.lastMu.Unlock()
	if idx.lastRun == nil {
		return nil
	}
	summary := *idx.lastRun
	return &summary
}

// Wait blocks until background runs have finished
func (idx *Indexer) Wait() {
	idx.wg.Wait()
}

// Close cancels background runs and waits for them to return
func (idx *Indexer) Close() error {
	idx.mu.Lock()
	idx.closed = true
	idx.mu.Unlock()

	idx.bgCancel()
	idx.wg.Wait()
	return nil
}

func validateMode(mode Mode) error {
	switch mode {
	case ModeBulk, ModeIncremental, ModeSkip:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, string(mode))
	}
}

// run executes a refresh; the caller holds the lock
func (idx *Indexer) run(ctx context.Context, mode Mode) (*Statistics, error) {
	startTime := time.Now()
	stats := &Statistics{Mode: mode}

	err := idx.refresh(ctx, mode, stats)
	stats.Duration = time.Since(startTime)

	fields := []zap.Field{
		zap.Stringer("mode", mode),
		zap.Int("pending", stats.Pending),
		zap.Int("embedded", stats.Embedded),
		zap.Int("skipped", stats.Skipped),
		zap.Int("retries", stats.Retries),
		zap.Duration("duration", stats.Duration),
	}
	if err != nil {
		idx.logger.Error("embedding refresh failed", append(fields, zap.Error(err))...)
	} else {
		idx.logger.Info("embedding refresh finished", fields...)
	}

	idx.lastMu.Lock()
	idx.lastRun = &RunSummary{Stats: *stats, Err: err, FinishedAt: time.Now()}
	idx.lastMu.Unlock()

	return stats, err
}

func (idx *Indexer) refresh(ctx context.Context, mode Mode, stats *Statistics) error {
	pending, err := idx.store.FetchPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pending entities: %w", err)
	}
	stats.Pending = len(pending)

	switch mode {
	case ModeBulk:
		return idx.refreshBulk(ctx, pending, stats)
	case ModeIncremental:
		return idx.refreshIncremental(ctx, pending, stats)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, string(mode))
	}
}

// refreshBulk computes all embeddings concurrently and writes them in one
// batch. A single failed computation leaves the store untouched.
func (idx *Indexer) refreshBulk(ctx context.Context, pending []types.Entity, stats *Statistics) error {
	embeddings := make([]types.Embedding, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)
	for i, entity := range pending {
		g.Go(func() error {
			emb, err := idx.source.Compute(gctx, entity)
			if err != nil {
				return fmt.Errorf("failed to compute embedding for %s: %w", entity.ID, err)
			}
			embeddings[i] = emb
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if err := idx.store.WriteBatch(ctx, embeddings); err != nil {
		return fmt.Errorf("failed to write embeddings: %w", err)
	}
	stats.Embedded = len(embeddings)
	return nil
}

// refreshIncremental processes entities one at a time in fetch order and
// writes each embedding as soon as it is computed.
func (idx *Indexer) refreshIncremental(ctx context.Context, pending []types.Entity, stats *Statistics) error {
	for _, entity := range pending {
		if err := idx.embedEntity(ctx, entity, stats); err != nil {
			return err
		}
	}
	return nil
}

// embedEntity drives one entity to done or skipped. Transient failures wait
// for the retry interval and try again until the policy gives up.
func (idx *Indexer) embedEntity(ctx context.Context, entity types.Entity, stats *Statistics) error {
	schedule := idx.retry.newBackOff()

	for attempt := 1; ; attempt++ {
		emb, err := idx.source.Compute(ctx, entity)
		switch {
		case err == nil:
			if err := idx.store.WriteOne(ctx, emb); err != nil {
				return fmt.Errorf("failed to write embedding for %s: %w", entity.ID, err)
			}
			stats.Embedded++
			return nil

		case errors.Is(err, types.ErrContentTooLong), errors.Is(err, types.ErrEmptyContent):
			idx.logger.Warn("skipping entity",
				zap.String("entity_id", entity.ID),
				zap.Int("length", entity.Length()),
				zap.Error(err))
			stats.Skipped++
			stats.SkippedIDs = append(stats.SkippedIDs, entity.ID)
			return nil

		case errors.Is(err, types.ErrRemoteCompute):
			wait := schedule.NextBackOff()
			if wait == backoff.Stop {
				return fmt.Errorf("giving up on %s after %d attempts: %w", entity.ID, attempt, err)
			}
			idx.logger.Warn("embedding failed, retrying",
				zap.String("entity_id", entity.ID),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err))
			stats.Retries++
			if err := idx.sleep(ctx, wait); err != nil {
				return err
			}

		default:
			return fmt.Errorf("failed to compute embedding for %s: %w", entity.ID, err)
		}
	}
}
