package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/smbgAlokk/bharatforce/internal/application/port"
	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	"github.com/smbgAlokk/bharatforce/internal/domain/workflow"
)

type contextKey string

const txKey contextKey = "memory-tx"

// Store is a thread-safe in-memory backend for every repository.
// Writes outside a transaction are serialised with transactions so a rollback
// never discards another caller's write.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	records  map[string]*entity.Record
	balances map[string]*entity.EmployeeLeaveBalance
	changes  []*entity.LeaveBalanceChangeLog
	exits    map[string]*entity.ExitStatus
	payroll  map[string]*entity.PayrollSync
	letters  map[string]*entity.LetterGrant
	profiles map[string]*entity.EmployeeProfile
	effects  map[string]*entity.EffectLog
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		records:  make(map[string]*entity.Record),
		balances: make(map[string]*entity.EmployeeLeaveBalance),
		exits:    make(map[string]*entity.ExitStatus),
		payroll:  make(map[string]*entity.PayrollSync),
		letters:  make(map[string]*entity.LetterGrant),
		profiles: make(map[string]*entity.EmployeeProfile),
		effects:  make(map[string]*entity.EffectLog),
	}
}

// --- port.Store ---

func (s *Store) Records() port.RecordRepository             { return &recordStore{s} }
func (s *Store) LeaveBalances() port.LeaveBalanceRepository { return s }
func (s *Store) ExitStatuses() port.ExitStatusRepository    { return s }
func (s *Store) PayrollSyncs() port.PayrollSyncRepository   { return s }
func (s *Store) Letters() port.LetterRepository             { return s }
func (s *Store) Profiles() port.ProfileRepository           { return s }
func (s *Store) EffectLogs() port.EffectLogRepository       { return s }

// WithTransaction runs fn with all-or-nothing semantics. Nested calls join the outer transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snap := s.snapshot()
	s.mu.RUnlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey).(bool)
	return v
}

// write applies fn under the data lock, serialised with running transactions
func (s *Store) write(ctx context.Context, fn func() error) error {
	if !inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

type snapshot struct {
	records  map[string]*entity.Record
	balances map[string]*entity.EmployeeLeaveBalance
	changes  []*entity.LeaveBalanceChangeLog
	exits    map[string]*entity.ExitStatus
	payroll  map[string]*entity.PayrollSync
	letters  map[string]*entity.LetterGrant
	profiles map[string]*entity.EmployeeProfile
	effects  map[string]*entity.EffectLog
}

// snapshot copies the top-level maps. Stored values are replaced, never mutated, so
// sharing value pointers is safe.
func (s *Store) snapshot() snapshot {
	return snapshot{
		records:  copyMap(s.records),
		balances: copyMap(s.balances),
		changes:  append([]*entity.LeaveBalanceChangeLog(nil), s.changes...),
		exits:    copyMap(s.exits),
		payroll:  copyMap(s.payroll),
		letters:  copyMap(s.letters),
		profiles: copyMap(s.profiles),
		effects:  copyMap(s.effects),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = snap.records
	s.balances = snap.balances
	s.changes = snap.changes
	s.exits = snap.exits
	s.payroll = snap.payroll
	s.letters = snap.letters
	s.profiles = snap.profiles
	s.effects = snap.effects
}

func copyMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func key(parts ...string) string {
	k := ""
	for i, p := range parts {
		if i > 0 {
			k += "\x00"
		}
		k += p
	}
	return k
}

// --- records ---

type recordStore struct {
	s *Store
}

func (r *recordStore) Create(ctx context.Context, rec *entity.Record) error {
	return r.s.write(ctx, func() error {
		if _, exists := r.s.records[rec.ID]; exists {
			return fmt.Errorf("record %s already exists", rec.ID)
		}
		r.s.records[rec.ID] = rec.Clone()
		return nil
	})
}

func (r *recordStore) Get(ctx context.Context, tenantID, id string) (*entity.Record, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: record %s", workflow.ErrNotFound, id)
	}
	if rec.TenantID != tenantID {
		return nil, fmt.Errorf("%w: record %s", workflow.ErrTenantMismatch, id)
	}
	return rec.Clone(), nil
}

func (r *recordStore) Update(ctx context.Context, rec *entity.Record, expectedVersion int64) error {
	return r.s.write(ctx, func() error {
		stored, ok := r.s.records[rec.ID]
		if !ok {
			return fmt.Errorf("%w: record %s", workflow.ErrNotFound, rec.ID)
		}
		if stored.TenantID != rec.TenantID {
			return fmt.Errorf("%w: record %s", workflow.ErrTenantMismatch, rec.ID)
		}
		if stored.Version != expectedVersion {
			return fmt.Errorf("%w: record %s is at version %d, expected %d", workflow.ErrStaleState, rec.ID, stored.Version, expectedVersion)
		}
		r.s.records[rec.ID] = rec.Clone()
		return nil
	})
}

func (r *recordStore) List(ctx context.Context, tenantID string, filter port.RecordFilter) ([]*entity.Record, error) {
	r.s.mu.RLock()
	var matched []*entity.Record
	for _, rec := range r.s.records {
		if matches(rec, tenantID, filter) {
			matched = append(matched, rec.Clone())
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	if filter.Offset >= len(matched) {
		return []*entity.Record{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func matches(rec *entity.Record, tenantID string, f port.RecordFilter) bool {
	if rec.TenantID != tenantID {
		return false
	}
	if f.Workflow != "" && rec.Workflow != f.Workflow {
		return false
	}
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	if f.SubjectID != "" && rec.SubjectID != f.SubjectID {
		return false
	}
	if f.SubjectOrManager != "" && rec.SubjectID != f.SubjectOrManager && rec.ManagerID != f.SubjectOrManager {
		return false
	}
	return true
}

// --- leave balances ---

func (s *Store) GetBalance(ctx context.Context, tenantID, employeeID, leaveType string) (*entity.EmployeeLeaveBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.balances[key(tenantID, employeeID, leaveType)]
	if !ok {
		return nil, fmt.Errorf("%w: %s balance of %s", workflow.ErrNotFound, leaveType, employeeID)
	}
	c := *b
	return &c, nil
}

func (s *Store) ListBalances(ctx context.Context, tenantID, employeeID string) ([]*entity.EmployeeLeaveBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.EmployeeLeaveBalance
	for _, b := range s.balances {
		if b.TenantID == tenantID && b.EmployeeID == employeeID {
			c := *b
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeaveType < out[j].LeaveType })
	return out, nil
}

func (s *Store) UpsertBalance(ctx context.Context, balance *entity.EmployeeLeaveBalance) error {
	return s.write(ctx, func() error {
		c := *balance
		s.balances[key(balance.TenantID, balance.EmployeeID, balance.LeaveType)] = &c
		return nil
	})
}

func (s *Store) AppendChange(ctx context.Context, change *entity.LeaveBalanceChangeLog) error {
	return s.write(ctx, func() error {
		c := *change
		s.changes = append(s.changes, &c)
		return nil
	})
}

func (s *Store) ListChanges(ctx context.Context, tenantID, employeeID string) ([]*entity.LeaveBalanceChangeLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.LeaveBalanceChangeLog
	for _, ch := range s.changes {
		if ch.TenantID == tenantID && ch.EmployeeID == employeeID {
			c := *ch
			out = append(out, &c)
		}
	}
	return out, nil
}

// --- exit status ---

func (s *Store) GetExitStatus(ctx context.Context, tenantID, employeeID string) (*entity.ExitStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.exits[key(tenantID, employeeID)]
	if !ok {
		return nil, fmt.Errorf("%w: exit status of %s", workflow.ErrNotFound, employeeID)
	}
	c := *st
	return &c, nil
}

func (s *Store) UpsertExitStatus(ctx context.Context, status *entity.ExitStatus) error {
	return s.write(ctx, func() error {
		c := *status
		s.exits[key(status.TenantID, status.EmployeeID)] = &c
		return nil
	})
}

// --- payroll sync ---

func (s *Store) GetPayrollSync(ctx context.Context, tenantID, employeeID string) (*entity.PayrollSync, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ps, ok := s.payroll[key(tenantID, employeeID)]
	if !ok {
		return nil, fmt.Errorf("%w: payroll sync of %s", workflow.ErrNotFound, employeeID)
	}
	c := *ps
	return &c, nil
}

func (s *Store) UpsertPayrollSync(ctx context.Context, sync *entity.PayrollSync) error {
	return s.write(ctx, func() error {
		c := *sync
		s.payroll[key(sync.TenantID, sync.EmployeeID)] = &c
		return nil
	})
}

// --- letters ---

func (s *Store) GetLetter(ctx context.Context, tenantID, proposalID string) (*entity.LetterGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.letters[key(tenantID, proposalID)]
	if !ok {
		return nil, fmt.Errorf("%w: letter for %s", workflow.ErrNotFound, proposalID)
	}
	c := *l
	return &c, nil
}

func (s *Store) UpsertLetter(ctx context.Context, letter *entity.LetterGrant) error {
	return s.write(ctx, func() error {
		c := *letter
		s.letters[key(letter.TenantID, letter.ProposalID)] = &c
		return nil
	})
}

// --- profiles ---

func (s *Store) GetProfile(ctx context.Context, tenantID, employeeID string) (*entity.EmployeeProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[key(tenantID, employeeID)]
	if !ok {
		return nil, fmt.Errorf("%w: profile of %s", workflow.ErrNotFound, employeeID)
	}
	return cloneProfile(p), nil
}

func (s *Store) UpsertProfile(ctx context.Context, profile *entity.EmployeeProfile) error {
	return s.write(ctx, func() error {
		s.profiles[key(profile.TenantID, profile.EmployeeID)] = cloneProfile(profile)
		return nil
	})
}

func cloneProfile(p *entity.EmployeeProfile) *entity.EmployeeProfile {
	c := *p
	c.Fields = make(map[string]string, len(p.Fields))
	for k, v := range p.Fields {
		c.Fields[k] = v
	}
	return &c
}

// --- effect log ---

func (s *Store) HasEffect(ctx context.Context, k string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.effects[k]
	return ok, nil
}

func (s *Store) RecordEffect(ctx context.Context, log *entity.EffectLog) error {
	return s.write(ctx, func() error {
		if _, exists := s.effects[log.Key]; exists {
			return fmt.Errorf("effect %s already recorded", log.Key)
		}
		c := *log
		s.effects[log.Key] = &c
		return nil
	})
}

// Verify interface compliance
var _ port.Store = (*Store)(nil)
