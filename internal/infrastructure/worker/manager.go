package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Worker is a background loop owned by the container
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// WorkerManager starts the container's workers together and stops them in
// reverse order. The effects retry worker is the only thing that completes
// a transition whose effects failed, so a worker that cannot start fails the
// whole start and the ones already running are stopped again.
type WorkerManager struct {
	workers []Worker
	logger  *zap.Logger

	mu      sync.RWMutex
	started []Worker
	cancel  context.CancelFunc
}

// NewWorkerManager creates an empty manager
func NewWorkerManager(logger *zap.Logger) *WorkerManager {
	return &WorkerManager{logger: logger}
}

// Register adds a worker. Workers registered after StartAll wait for the next start.
func (m *WorkerManager) Register(w Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.workers = append(m.workers, w)
	m.logger.Info("Worker registered",
		zap.String("worker_name", w.Name()),
		zap.Int("total_workers", len(m.workers)))
}

// StartAll starts every registered worker in registration order
func (m *WorkerManager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return errors.New("workers already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	started := make([]Worker, 0, len(m.workers))

	for _, w := range m.workers {
		if err := w.Start(runCtx); err != nil {
			m.logger.Error("Failed to start worker, stopping the rest",
				zap.String("worker_name", w.Name()),
				zap.Int("already_started", len(started)),
				zap.Error(err))
			cancel()
			stopReverse(started, m.logger)
			return fmt.Errorf("start %s: %w", w.Name(), err)
		}
		started = append(started, w)
		m.logger.Info("Worker started", zap.String("worker_name", w.Name()))
	}

	m.started = started
	m.cancel = cancel
	return nil
}

// StopAll cancels the shared context and stops the running workers, last started first
func (m *WorkerManager) StopAll() error {
	m.mu.Lock()
	started, cancel := m.started, m.cancel
	m.started, m.cancel = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		m.logger.Debug("Workers not running, nothing to stop")
		return nil
	}
	cancel()

	if failed := stopReverse(started, m.logger); failed > 0 {
		return fmt.Errorf("failed to stop %d workers", failed)
	}
	m.logger.Info("Workers stopped", zap.Int("count", len(started)))
	return nil
}

func stopReverse(workers []Worker, logger *zap.Logger) int {
	failed := 0
	for i := len(workers) - 1; i >= 0; i-- {
		if err := workers[i].Stop(); err != nil {
			logger.Error("Failed to stop worker",
				zap.String("worker_name", workers[i].Name()),
				zap.Error(err))
			failed++
		}
	}
	return failed
}

// Running returns the names of the running workers for the health report
func (m *WorkerManager) Running() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.started))
	for _, w := range m.started {
		names = append(names, w.Name())
	}
	return names
}

// IsRunning reports whether StartAll succeeded and StopAll has not run since
func (m *WorkerManager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cancel != nil
}
