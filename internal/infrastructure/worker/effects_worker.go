package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	"github.com/smbgAlokk/bharatforce/internal/domain/event"
	domainwf "github.com/smbgAlokk/bharatforce/internal/domain/workflow"
)

// SystemUserID is the actor ID the worker retries effects as
const SystemUserID = "system:effects-retry"

// EffectsRetrier re-runs the side effects of the transition at trailSeq
type EffectsRetrier interface {
	RetryEffects(ctx context.Context, actor domainwf.Actor, id string, trailSeq int) (*entity.Record, error)
}

// EffectsWorkerConfig holds configuration for the effects retry worker
type EffectsWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	RetryTimeout time.Duration
}

// DefaultEffectsWorkerConfig returns default configuration
func DefaultEffectsWorkerConfig() EffectsWorkerConfig {
	return EffectsWorkerConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    20,
		MaxAttempts:  5,
		RetryTimeout: 30 * time.Second,
	}
}

type pendingRetry struct {
	tenantID string
	recordID string
	trailSeq int
	attempts int
	queuedAt time.Time
	lastErr  error
}

// EffectsWorker retries side effects of committed transitions whose effects failed.
// Records are queued from EffectsFailed events and retried until they succeed or
// MaxAttempts is reached.
type EffectsWorker struct {
	config  EffectsWorkerConfig
	retrier EffectsRetrier
	logger  *zap.Logger

	mu           sync.Mutex
	pending      map[string]*pendingRetry
	abandoned    map[string]bool
	ctx          context.Context
	cancel       context.CancelFunc
	done         chan struct{}
	isRunning    bool
	retriedCount int
	failedCount  int
	lastError    error
}

// NewEffectsWorker creates a new effects retry worker
func NewEffectsWorker(config EffectsWorkerConfig, retrier EffectsRetrier, logger *zap.Logger) *EffectsWorker {
	defaults := DefaultEffectsWorkerConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.RetryTimeout <= 0 {
		config.RetryTimeout = defaults.RetryTimeout
	}

	return &EffectsWorker{
		config:    config,
		retrier:   retrier,
		logger:    logger,
		pending:   make(map[string]*pendingRetry),
		abandoned: make(map[string]bool),
	}
}

func retryKey(tenantID, recordID string, trailSeq int) string {
	return fmt.Sprintf("%s/%s/%d", tenantID, recordID, trailSeq)
}

// Enqueue queues the record of an EffectsFailed event. It has the dispatcher handler signature.
func (w *EffectsWorker) Enqueue(ctx context.Context, evt *event.Event) error {
	if evt.Type != event.TypeEffectsFailed {
		return nil
	}
	if evt.TenantID == "" || evt.RecordID == "" {
		return fmt.Errorf("effects failure event %s has no record", evt.ID)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// A failed retry emits another failure event for the same transition
	k := retryKey(evt.TenantID, evt.RecordID, evt.TrailSeq)
	if _, queued := w.pending[k]; queued || w.abandoned[k] {
		return nil
	}
	w.pending[k] = &pendingRetry{
		tenantID: evt.TenantID,
		recordID: evt.RecordID,
		trailSeq: evt.TrailSeq,
		queuedAt: time.Now(),
	}

	w.logger.Info("Queued effects retry",
		zap.String("tenant_id", evt.TenantID),
		zap.String("record_id", evt.RecordID),
		zap.Int("trail_seq", evt.TrailSeq))
	return nil
}

// Start begins the worker polling loop
func (w *EffectsWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("effects worker already running")
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("EffectsWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize),
		zap.Int("max_attempts", w.config.MaxAttempts))

	go w.pollLoop(w.ctx, w.done)

	return nil
}

// Stop terminates the polling loop and waits for the running batch
func (w *EffectsWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.mu.Lock()
	defer w.mu.Unlock()
	w.logger.Info("EffectsWorker stopped",
		zap.Int("retried_count", w.retriedCount),
		zap.Int("failed_count", w.failedCount),
		zap.Int("pending", len(w.pending)))

	return nil
}

// Name returns the worker name for identification
func (w *EffectsWorker) Name() string {
	return "EffectsWorker"
}

// Pending returns the number of queued records
func (w *EffectsWorker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Stats returns the number of successful and abandoned retries
func (w *EffectsWorker) Stats() (retried, failed int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.retriedCount, w.failedCount
}

func (w *EffectsWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Poll loop context cancelled")
			return

		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce retries one batch of queued records, oldest first, and returns how many succeeded
func (w *EffectsWorker) RunOnce(ctx context.Context) int {
	batch := w.nextBatch()
	succeeded := 0

	for _, p := range batch {
		if ctx.Err() != nil {
			break
		}
		if w.retry(ctx, p) {
			succeeded++
		}
	}
	return succeeded
}

func (w *EffectsWorker) nextBatch() []*pendingRetry {
	w.mu.Lock()
	defer w.mu.Unlock()

	batch := make([]*pendingRetry, 0, len(w.pending))
	for _, p := range w.pending {
		batch = append(batch, p)
	}
	sort.Slice(batch, func(i, j int) bool {
		if !batch[i].queuedAt.Equal(batch[j].queuedAt) {
			return batch[i].queuedAt.Before(batch[j].queuedAt)
		}
		return batch[i].recordID < batch[j].recordID
	})
	if len(batch) > w.config.BatchSize {
		batch = batch[:w.config.BatchSize]
	}
	return batch
}

// retry runs the effects of one record and settles its queue entry
func (w *EffectsWorker) retry(ctx context.Context, p *pendingRetry) bool {
	retryCtx, cancel := context.WithTimeout(ctx, w.config.RetryTimeout)
	defer cancel()

	actor := domainwf.Actor{TenantID: p.tenantID, UserID: SystemUserID, Role: domainwf.RoleSuperAdmin}
	_, err := w.retrier.RetryEffects(retryCtx, actor, p.recordID, p.trailSeq)

	w.mu.Lock()
	defer w.mu.Unlock()

	k := retryKey(p.tenantID, p.recordID, p.trailSeq)
	p.attempts++

	switch {
	case err == nil:
		delete(w.pending, k)
		w.retriedCount++
		w.logger.Info("Effects retried",
			zap.String("record_id", p.recordID),
			zap.Int("trail_seq", p.trailSeq),
			zap.Int("attempts", p.attempts))
		return true

	case errors.Is(err, domainwf.ErrNotFound), errors.Is(err, domainwf.ErrTenantMismatch), errors.Is(err, domainwf.ErrValidation):
		// Nothing left to retry for this record
		delete(w.pending, k)
		w.logger.Info("Dropped effects retry",
			zap.String("record_id", p.recordID),
			zap.Error(err))
		return false

	case p.attempts >= w.config.MaxAttempts:
		delete(w.pending, k)
		w.abandoned[k] = true
		w.failedCount++
		w.lastError = err
		w.logger.Error("Giving up on effects retry",
			zap.String("tenant_id", p.tenantID),
			zap.String("record_id", p.recordID),
			zap.Int("attempts", p.attempts),
			zap.Error(err))
		return false

	default:
		p.lastErr = err
		w.lastError = err
		w.logger.Warn("Effects retry failed",
			zap.String("record_id", p.recordID),
			zap.Int("attempts", p.attempts),
			zap.Error(err))
		return false
	}
}
