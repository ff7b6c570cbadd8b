package effects

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smbgAlokk/bharatforce/internal/application/dispatcher"
	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	"github.com/smbgAlokk/bharatforce/internal/domain/event"
	"github.com/smbgAlokk/bharatforce/internal/domain/workflow"
	"github.com/smbgAlokk/bharatforce/internal/infrastructure/persistence/memory"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type countingMetrics struct {
	mu       sync.Mutex
	outcomes map[string][]string
}

func (m *countingMetrics) ObserveTransition(workflow, action, outcome string, d time.Duration) {}

func (m *countingMetrics) ObserveEffect(effect, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = make(map[string][]string)
	}
	m.outcomes[effect] = append(m.outcomes[effect], outcome)
}

type fakeExporter struct {
	err error
}

func (f *fakeExporter) ExportSettlement(rec *entity.Record, s *entity.SettlementPayload) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("statement " + rec.ID + " " + s.NetPayable.String()), nil
}

type fakeStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (f *fakeStorage) Save(ctx context.Context, tenantID, path string, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.files == nil {
		f.files = make(map[string][]byte)
	}
	f.files[tenantID+"/"+path] = content
	return nil
}

func (f *fakeStorage) Read(ctx context.Context, tenantID, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[tenantID+"/"+path], nil
}

func (f *fakeStorage) Exists(ctx context.Context, tenantID, path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[tenantID+"/"+path]
	return ok
}

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T, opts ...Option) (*memory.Store, dispatcher.Dispatcher) {
	t.Helper()
	store := memory.NewStore()
	d := dispatcher.NewDispatcher()
	t.Cleanup(func() { _ = d.Close() })

	opts = append(opts, WithClock(func() time.Time { return fixedNow }))
	NewApplier(store, nopLogger{}, opts...).Register(d)
	return store, d
}

func transitionEvent(wfType workflow.Type, to workflow.State, payload map[string]interface{}) *event.Event {
	rec := &entity.Record{
		ID:        "rec-1",
		TenantID:  "t1",
		Workflow:  wfType,
		Stage:     to.Stage,
		Status:    to.Status,
		SubjectID: "emp-1",
		Payload:   payload,
	}
	entry := entity.TrailEntry{
		Seq:       3,
		ActorRole: workflow.RoleCompanyAdmin,
		ActorID:   "hr-1",
		ToStage:   to.Stage,
		ToStatus:  to.Status,
		Timestamp: fixedNow,
	}
	rec.Trail = []entity.TrailEntry{entry}
	return event.NewTransitionEvent(rec, entry, workflow.Actor{TenantID: "t1", UserID: "hr-1", Role: workflow.RoleCompanyAdmin})
}

func TestOnce_DeliversEachTransitionOnce(t *testing.T) {
	store := memory.NewStore()
	m := &countingMetrics{}
	a := NewApplier(store, nopLogger{}, WithMetrics(m), WithClock(func() time.Time { return fixedNow }))
	ctx := context.Background()

	calls := 0
	notify := a.Once("lark.notify", func(ctx context.Context, evt *event.Event) error {
		calls++
		if calls == 1 {
			return errors.New("lark unavailable")
		}
		return nil
	})

	evt := transitionEvent(workflow.TypeExpense, workflow.At(workflow.StatusHRApproved), map[string]interface{}{})
	assert.Error(t, notify(ctx, evt))
	require.NoError(t, notify(ctx, evt))

	// A retry replays the same transition
	require.NoError(t, notify(ctx, evt))
	assert.Equal(t, 2, calls)

	failed := *evt
	failed.Type = event.TypeEffectsFailed
	require.NoError(t, notify(ctx, &failed))
	require.NoError(t, notify(ctx, &failed))

	next := *evt
	next.TrailSeq = 4
	require.NoError(t, notify(ctx, &next))
	assert.Equal(t, 4, calls)

	assert.Equal(t, []string{"error", "applied", "skipped", "applied", "skipped", "applied"}, m.outcomes["lark.notify"])

	done, err := store.EffectLogs().HasEffect(ctx, evt.EffectKey("record.transitioned/lark.notify"))
	require.NoError(t, err)
	assert.True(t, done)
}

func TestLeaveDebit(t *testing.T) {
	store, d := setup(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertBalance(ctx, &entity.EmployeeLeaveBalance{
		TenantID: "t1", EmployeeID: "emp-1", LeaveType: "casual",
		CurrentBalance: decimal.NewFromInt(12),
	}))

	evt := transitionEvent(workflow.TypeLeave, workflow.At(workflow.StatusApproved), map[string]interface{}{
		"leaveType": "casual", "startDate": "2026-05-10", "endDate": "2026-05-12", "days": "2.5",
	})

	require.NoError(t, d.Dispatch(ctx, evt))

	t.Run("debits balance and logs the change", func(t *testing.T) {
		b, err := store.GetBalance(ctx, "t1", "emp-1", "casual")
		require.NoError(t, err)
		assert.True(t, b.CurrentBalance.Equal(decimal.RequireFromString("9.5")), b.CurrentBalance.String())

		changes, err := store.ListChanges(ctx, "t1", "emp-1")
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.True(t, changes[0].Delta.Equal(decimal.RequireFromString("-2.5")))
		assert.Equal(t, "rec-1", changes[0].RecordID)
		assert.Equal(t, "hr-1", changes[0].CreatedBy)
	})

	t.Run("re-running the same transition is a no-op", func(t *testing.T) {
		require.NoError(t, d.Dispatch(ctx, evt))

		b, err := store.GetBalance(ctx, "t1", "emp-1", "casual")
		require.NoError(t, err)
		assert.True(t, b.CurrentBalance.Equal(decimal.RequireFromString("9.5")))

		changes, err := store.ListChanges(ctx, "t1", "emp-1")
		require.NoError(t, err)
		assert.Len(t, changes, 1)
	})
}

func TestLeaveDebit_MissingDaysFailsWithoutWrites(t *testing.T) {
	store, d := setup(t)
	ctx := context.Background()

	evt := transitionEvent(workflow.TypeLeave, workflow.At(workflow.StatusApproved), map[string]interface{}{
		"leaveType": "casual",
	})

	err := d.Dispatch(ctx, evt)
	require.Error(t, err)
	assert.True(t, errors.Is(err, workflow.ErrValidation))

	has, err := store.HasEffect(ctx, evt.EffectKey(LeaveDebit))
	require.NoError(t, err)
	assert.False(t, has)
}

func TestResignationAndSettlementExit(t *testing.T) {
	store, d := setup(t)
	ctx := context.Background()

	resignation := transitionEvent(workflow.TypeResignation, workflow.At(workflow.StatusHRApproved), map[string]interface{}{
		"reason": "relocation", "lastWorkingDay": "2026-06-30",
	})
	require.NoError(t, d.Dispatch(ctx, resignation))

	status, err := store.GetExitStatus(ctx, "t1", "emp-1")
	require.NoError(t, err)
	assert.True(t, status.ExitEligible)
	assert.False(t, status.ExitCompleted)
	assert.Equal(t, "2026-06-30", status.LastWorkingDay)

	settlement := transitionEvent(workflow.TypeSettlement, workflow.At(workflow.StatusFinalised), map[string]interface{}{
		"components": []interface{}{map[string]interface{}{"kind": "Earning", "label": "Gratuity", "amount": "1000"}},
	})
	settlement.Record.ID = "fnf-1"
	settlement.RecordID = "fnf-1"
	require.NoError(t, d.Dispatch(ctx, settlement))

	status, err = store.GetExitStatus(ctx, "t1", "emp-1")
	require.NoError(t, err)
	assert.True(t, status.ExitEligible)
	assert.True(t, status.ExitCompleted)
	assert.Equal(t, "fnf-1", status.SettlementID)
}

func TestPayrollSyncEffects(t *testing.T) {
	tests := []struct {
		name   string
		wfType workflow.Type
		to     workflow.State
		want   bool
	}{
		{"expense HR approved", workflow.TypeExpense, workflow.At(workflow.StatusHRApproved), true},
		{"proposal approved by management", workflow.TypeProposal, workflow.AtStage(workflow.StageManagementApproval, workflow.StatusApproved), true},
		{"proposal closed", workflow.TypeProposal, workflow.AtStage(workflow.StageClosed, workflow.StatusApproved), false},
		{"expense paid", workflow.TypeExpense, workflow.At(workflow.StatusPaid), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, d := setup(t)
			ctx := context.Background()

			require.NoError(t, d.Dispatch(ctx, transitionEvent(tt.wfType, tt.to, map[string]interface{}{})))

			ps, err := store.GetPayrollSync(ctx, "t1", "emp-1")
			if !tt.want {
				assert.True(t, errors.Is(err, workflow.ErrNotFound))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, entity.PayrollSyncPending, ps.Status)
			assert.Equal(t, "rec-1", ps.SourceRecordID)
		})
	}
}

func TestLetterUnlock(t *testing.T) {
	store, d := setup(t)
	ctx := context.Background()

	evt := transitionEvent(workflow.TypeProposal, workflow.AtStage(workflow.StageManagementApproval, workflow.StatusApproved), map[string]interface{}{})
	require.NoError(t, d.Dispatch(ctx, evt))

	letter, err := store.GetLetter(ctx, "t1", "rec-1")
	require.NoError(t, err)
	assert.True(t, letter.Unlocked)
	assert.False(t, letter.Issued)
	assert.Equal(t, "emp-1", letter.EmployeeID)
}

func TestProfileApply(t *testing.T) {
	store, d := setup(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertProfile(ctx, &entity.EmployeeProfile{
		TenantID: "t1", EmployeeID: "emp-1",
		Fields: map[string]string{"phone": "old", "city": "Pune"},
	}))

	evt := transitionEvent(workflow.TypeProfileChange, workflow.At(workflow.StatusApproved), map[string]interface{}{
		"changes": map[string]interface{}{"phone": "new"},
	})
	require.NoError(t, d.Dispatch(ctx, evt))

	profile, err := store.GetProfile(ctx, "t1", "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "new", profile.Fields["phone"])
	assert.Equal(t, "Pune", profile.Fields["city"])
	assert.Equal(t, "hr-1", profile.UpdatedBy)
}

func TestStatementArchive(t *testing.T) {
	storage := &fakeStorage{}
	metrics := &countingMetrics{}
	store, d := setup(t, WithStatementArchive(&fakeExporter{}, storage), WithMetrics(metrics))
	ctx := context.Background()

	evt := transitionEvent(workflow.TypeSettlement, workflow.At(workflow.StatusFinalised), map[string]interface{}{
		"netPayable": "1500",
	})
	require.NoError(t, d.Dispatch(ctx, evt))
	require.NoError(t, d.Dispatch(ctx, evt))

	assert.True(t, storage.Exists(ctx, "t1", StatementPath("rec-1")))
	content, _ := storage.Read(ctx, "t1", StatementPath("rec-1"))
	assert.Equal(t, "statement rec-1 1500", string(content))

	has, err := store.HasEffect(ctx, evt.EffectKey(ArchiveStatement))
	require.NoError(t, err)
	assert.True(t, has)

	assert.Equal(t, []string{"applied", "skipped"}, metrics.outcomes[ArchiveStatement])
}

func TestStatementArchive_ExportFailureLeavesArchivePending(t *testing.T) {
	store, d := setup(t, WithStatementArchive(&fakeExporter{err: errors.New("disk full")}, &fakeStorage{}))
	ctx := context.Background()

	evt := transitionEvent(workflow.TypeSettlement, workflow.At(workflow.StatusFinalised), map[string]interface{}{})
	require.Error(t, d.Dispatch(ctx, evt))

	// The first effect committed on its own; only the archive is pending
	has, err := store.HasEffect(ctx, evt.EffectKey(ExitCompleted))
	require.NoError(t, err)
	assert.True(t, has)

	has, err = store.HasEffect(ctx, evt.EffectKey(ArchiveStatement))
	require.NoError(t, err)
	assert.False(t, has)
}
