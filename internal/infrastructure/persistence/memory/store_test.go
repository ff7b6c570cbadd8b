package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smbgAlokk/bharatforce/internal/application/port"
	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	"github.com/smbgAlokk/bharatforce/internal/domain/workflow"
)

func newRecord(id, tenant, subject string, created time.Time) *entity.Record {
	return &entity.Record{
		ID:        id,
		TenantID:  tenant,
		Workflow:  workflow.TypeLeave,
		Status:    workflow.StatusDraft,
		SubjectID: subject,
		ManagerID: "mgr-1",
		Payload:   map[string]interface{}{"days": "1"},
		Trail:     []entity.TrailEntry{},
		Version:   1,
		CreatedAt: created,
	}
}

func TestRecords_GetIsolation(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	records := store.Records()

	rec := newRecord("r1", "t1", "emp-1", time.Now())
	require.NoError(t, records.Create(ctx, rec))
	assert.Error(t, records.Create(ctx, rec))

	_, err := records.Get(ctx, "t2", "r1")
	assert.ErrorIs(t, err, workflow.ErrTenantMismatch)

	_, err = records.Get(ctx, "t1", "missing")
	assert.ErrorIs(t, err, workflow.ErrNotFound)

	// Callers get copies
	got, err := records.Get(ctx, "t1", "r1")
	require.NoError(t, err)
	got.Payload["days"] = "9"
	rec.Payload["days"] = "8"

	again, err := records.Get(ctx, "t1", "r1")
	require.NoError(t, err)
	assert.Equal(t, "1", again.PayloadString("days"))
}

func TestRecords_CompareAndSwap(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	records := store.Records()

	require.NoError(t, records.Create(ctx, newRecord("r1", "t1", "emp-1", time.Now())))

	next := newRecord("r1", "t1", "emp-1", time.Now())
	next.Status = workflow.StatusSubmitted
	next.Version = 2
	require.NoError(t, records.Update(ctx, next, 1))

	stale := newRecord("r1", "t1", "emp-1", time.Now())
	stale.Version = 2
	assert.ErrorIs(t, records.Update(ctx, stale, 1), workflow.ErrStaleState)

	foreign := newRecord("r1", "t2", "emp-1", time.Now())
	assert.ErrorIs(t, records.Update(ctx, foreign, 2), workflow.ErrTenantMismatch)

	assert.ErrorIs(t, records.Update(ctx, newRecord("r9", "t1", "emp-1", time.Now()), 1), workflow.ErrNotFound)

	got, err := records.Get(ctx, "t1", "r1")
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusSubmitted, got.Status)
	assert.EqualValues(t, 2, got.Version)
}

func TestRecords_List(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	records := store.Records()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, records.Create(ctx, newRecord("a", "t1", "emp-1", base)))
	require.NoError(t, records.Create(ctx, newRecord("b", "t1", "emp-2", base.Add(time.Hour))))
	require.NoError(t, records.Create(ctx, newRecord("c", "t1", "mgr-1", base.Add(2*time.Hour))))
	require.NoError(t, records.Create(ctx, newRecord("d", "t2", "emp-1", base.Add(3*time.Hour))))
	other := newRecord("e", "t1", "emp-3", base)
	other.ManagerID = "mgr-2"
	require.NoError(t, records.Create(ctx, other))

	ids := func(recs []*entity.Record) []string {
		out := make([]string, 0, len(recs))
		for _, r := range recs {
			out = append(out, r.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter port.RecordFilter
		want   []string
	}{
		{"newest first, id breaks ties", port.RecordFilter{}, []string{"c", "b", "a", "e"}},
		{"subject", port.RecordFilter{SubjectID: "emp-1"}, []string{"a"}},
		{"subject or manager", port.RecordFilter{SubjectOrManager: "mgr-1"}, []string{"c", "b", "a"}},
		{"status", port.RecordFilter{Status: workflow.StatusSubmitted}, []string{}},
		{"workflow", port.RecordFilter{Workflow: workflow.TypeExpense}, []string{}},
		{"limit", port.RecordFilter{Limit: 2}, []string{"c", "b"}},
		{"offset", port.RecordFilter{Offset: 3}, []string{"e"}},
		{"offset past end", port.RecordFilter{Offset: 10}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := records.List(ctx, "t1", tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestWithTransaction_RollsBack(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	balance := &entity.EmployeeLeaveBalance{TenantID: "t1", EmployeeID: "emp-1", LeaveType: "CASUAL", CurrentBalance: decimal.NewFromInt(12)}
	require.NoError(t, store.LeaveBalances().UpsertBalance(ctx, balance))

	boom := errors.New("boom")
	err := store.WithTransaction(ctx, func(ctx context.Context) error {
		spent := *balance
		spent.CurrentBalance = decimal.NewFromInt(10)
		if err := store.LeaveBalances().UpsertBalance(ctx, &spent); err != nil {
			return err
		}
		if err := store.LeaveBalances().AppendChange(ctx, &entity.LeaveBalanceChangeLog{TenantID: "t1", EmployeeID: "emp-1", Delta: decimal.NewFromInt(-2)}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.LeaveBalances().GetBalance(ctx, "t1", "emp-1", "CASUAL")
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance.Equal(decimal.NewFromInt(12)))

	changes, err := store.LeaveBalances().ListChanges(ctx, "t1", "emp-1")
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestWithTransaction_Commits(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.WithTransaction(ctx, func(ctx context.Context) error {
		if err := store.ExitStatuses().UpsertExitStatus(ctx, &entity.ExitStatus{TenantID: "t1", EmployeeID: "emp-1", ExitEligible: true}); err != nil {
			return err
		}
		// Nested calls join the outer transaction
		return store.WithTransaction(ctx, func(ctx context.Context) error {
			return store.PayrollSyncs().UpsertPayrollSync(ctx, &entity.PayrollSync{TenantID: "t1", EmployeeID: "emp-1", Status: entity.PayrollSyncPending})
		})
	})
	require.NoError(t, err)

	exit, err := store.ExitStatuses().GetExitStatus(ctx, "t1", "emp-1")
	require.NoError(t, err)
	assert.True(t, exit.ExitEligible)

	sync, err := store.PayrollSyncs().GetPayrollSync(ctx, "t1", "emp-1")
	require.NoError(t, err)
	assert.Equal(t, entity.PayrollSyncPending, sync.Status)

	_, err = store.PayrollSyncs().GetPayrollSync(ctx, "t2", "emp-1")
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestEffectLog(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	logs := store.EffectLogs()

	done, err := logs.HasEffect(ctx, "r1:3:leave.deduct")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, logs.RecordEffect(ctx, &entity.EffectLog{Key: "r1:3:leave.deduct", TenantID: "t1", RecordID: "r1"}))
	assert.Error(t, logs.RecordEffect(ctx, &entity.EffectLog{Key: "r1:3:leave.deduct"}))

	done, err = logs.HasEffect(ctx, "r1:3:leave.deduct")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestProfiles_AreCopied(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	profile := &entity.EmployeeProfile{TenantID: "t1", EmployeeID: "emp-1", Fields: map[string]string{"phone": "98100"}}
	require.NoError(t, store.Profiles().UpsertProfile(ctx, profile))
	profile.Fields["phone"] = "changed"

	got, err := store.Profiles().GetProfile(ctx, "t1", "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "98100", got.Fields["phone"])
}
