package effects

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smbgAlokk/bharatforce/internal/application/dispatcher"
	"github.com/smbgAlokk/bharatforce/internal/application/port"
	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	"github.com/smbgAlokk/bharatforce/internal/domain/event"
	"github.com/smbgAlokk/bharatforce/internal/domain/workflow"
)

// Effect names, also used in idempotency keys
const (
	ExitEligible     = "exit_eligible"
	LeaveDebit       = "leave_debit"
	ExpensePayout    = "expense_payroll_sync"
	LetterUnlock     = "letter_unlock"
	RevisionSync     = "revision_payroll_sync"
	ExitCompleted    = "exit_completed"
	ProfileApply     = "profile_apply"
	ArchiveStatement = "statement_archive"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Applier runs the side effects of committed transitions against adjacent employee state
type Applier struct {
	store    port.Store
	logger   Logger
	metrics  port.MetricsRecorder
	exporter port.StatementExporter
	storage  port.DocumentStorage
	now      func() time.Time
}

// Option configures the applier
type Option func(*Applier)

// WithMetrics records effect outcomes
func WithMetrics(m port.MetricsRecorder) Option {
	return func(a *Applier) {
		a.metrics = m
	}
}

// WithStatementArchive archives the statement of every finalised settlement
func WithStatementArchive(exporter port.StatementExporter, storage port.DocumentStorage) Option {
	return func(a *Applier) {
		a.exporter = exporter
		a.storage = storage
	}
}

// WithClock sets the clock used for applied-at timestamps
func WithClock(now func() time.Time) Option {
	return func(a *Applier) {
		a.now = now
	}
}

// NewApplier creates an effect applier over store
func NewApplier(store port.Store, logger Logger, opts ...Option) *Applier {
	a := &Applier{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type binding struct {
	route event.Route
	name  string
	fn    effectFunc
}

func (a *Applier) bindings() []binding {
	b := []binding{
		{route(workflow.TypeResignation, workflow.StatusHRApproved), ExitEligible, a.markExitEligible},
		{route(workflow.TypeLeave, workflow.StatusApproved), LeaveDebit, a.debitLeave},
		{route(workflow.TypeExpense, workflow.StatusHRApproved), ExpensePayout, a.queueExpensePayout},
		{route(workflow.TypeProposal, workflow.StatusApproved), LetterUnlock, a.unlockLetter},
		{route(workflow.TypeProposal, workflow.StatusApproved), RevisionSync, a.queueRevision},
		{route(workflow.TypeSettlement, workflow.StatusFinalised), ExitCompleted, a.markExitCompleted},
		{route(workflow.TypeProfileChange, workflow.StatusApproved), ProfileApply, a.applyProfile},
	}
	if a.exporter != nil && a.storage != nil {
		b = append(b, binding{route(workflow.TypeSettlement, workflow.StatusFinalised), ArchiveStatement, a.archiveStatement})
	}
	return b
}

// Register subscribes every effect on its route
func (a *Applier) Register(d dispatcher.Dispatcher) {
	bindings := a.bindings()
	for _, b := range bindings {
		d.SubscribeEffect(b.route, b.name, a.guarded(b.name, b.fn))
	}

	logged := make(map[event.Route]bool)
	for _, b := range bindings {
		if logged[b.route] {
			continue
		}
		logged[b.route] = true
		a.logger.Info("Effects registered", "workflow", b.route.Workflow, "status", b.route.Status, "count", len(d.ListEffects(b.route)))
	}
}

// Once wraps an observer so it runs at most once per event type and transition.
// Retries replay transitions; notifications already delivered for them are skipped.
func (a *Applier) Once(name string, h dispatcher.Handler) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		effect := string(evt.Type) + "/" + name
		key := evt.EffectKey(effect)

		done, err := a.store.EffectLogs().HasEffect(ctx, key)
		if err != nil {
			return err
		}
		if done {
			a.observe(name, nil, false)
			return nil
		}

		if err := h(ctx, evt); err != nil {
			a.observe(name, err, false)
			return err
		}
		a.observe(name, nil, true)

		if err := a.store.EffectLogs().RecordEffect(ctx, newEffectLog(key, evt, effect, a.now())); err != nil {
			a.logger.Error("Failed to record delivery", "observer", name, "record_id", evt.RecordID, "error", err)
		}
		return nil
	}
}

func route(wfType workflow.Type, status workflow.Status) event.Route {
	return event.Route{Workflow: wfType, Status: status}
}

type effectFunc func(ctx context.Context, evt *event.Event) error

// guarded runs fn once per effect key, in one transaction with its ledger entry
func (a *Applier) guarded(name string, fn effectFunc) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		if evt.Record == nil {
			return fmt.Errorf("event %s carries no record", evt.ID)
		}
		key := evt.EffectKey(name)

		applied := false
		err := a.store.WithTransaction(ctx, func(txCtx context.Context) error {
			done, err := a.store.EffectLogs().HasEffect(txCtx, key)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
			if err := fn(txCtx, evt); err != nil {
				return err
			}
			applied = true
			return a.store.EffectLogs().RecordEffect(txCtx, newEffectLog(key, evt, name, a.now()))
		})

		a.observe(name, err, applied)
		if err != nil {
			a.logger.Error("Effect failed", "effect", name, "record_id", evt.RecordID, "error", err)
			return err
		}
		if applied {
			a.logger.Info("Effect applied", "effect", name, "record_id", evt.RecordID, "tenant_id", evt.TenantID)
		}
		return nil
	}
}

func (a *Applier) observe(name string, err error, applied bool) {
	if a.metrics == nil {
		return
	}
	outcome := "skipped"
	switch {
	case err != nil:
		outcome = "error"
	case applied:
		outcome = "applied"
	}
	a.metrics.ObserveEffect(name, outcome)
}

func newEffectLog(key string, evt *event.Event, name string, at time.Time) *entity.EffectLog {
	return &entity.EffectLog{
		Key:       key,
		TenantID:  evt.TenantID,
		RecordID:  evt.RecordID,
		Effect:    name,
		AppliedAt: at.UTC(),
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, workflow.ErrNotFound)
}
