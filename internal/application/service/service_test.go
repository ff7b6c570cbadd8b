package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smbgAlokk/bharatforce/internal/application/dispatcher"
	"github.com/smbgAlokk/bharatforce/internal/application/effects"
	"github.com/smbgAlokk/bharatforce/internal/application/port"
	"github.com/smbgAlokk/bharatforce/internal/application/workflow"
	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	domainwf "github.com/smbgAlokk/bharatforce/internal/domain/workflow"
	"github.com/smbgAlokk/bharatforce/internal/infrastructure/persistence/memory"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockDrafter struct {
	body string
	err  error
	reqs []port.LetterRequest
}

func (m *mockDrafter) DraftLetter(ctx context.Context, req port.LetterRequest) (string, error) {
	m.reqs = append(m.reqs, req)
	return m.body, m.err
}

type mockExporter struct{}

func (mockExporter) ExportSettlement(rec *entity.Record, s *entity.SettlementPayload) ([]byte, error) {
	return []byte("rendered " + s.NetPayable.StringFixed(2)), nil
}

type mockStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *mockStorage) Save(ctx context.Context, tenantID, path string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[tenantID+"/"+path] = content
	return nil
}

func (m *mockStorage) Read(ctx context.Context, tenantID, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[tenantID+"/"+path], nil
}

func (m *mockStorage) Exists(ctx context.Context, tenantID, path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[tenantID+"/"+path]
	return ok
}

var (
	employee   = domainwf.Actor{TenantID: "t1", UserID: "emp-1", Role: domainwf.RoleEmployee}
	manager    = domainwf.Actor{TenantID: "t1", UserID: "mgr-1", Role: domainwf.RoleManager}
	hr         = domainwf.Actor{TenantID: "t1", UserID: "hr-1", Role: domainwf.RoleCompanyAdmin}
	superAdmin = domainwf.Actor{TenantID: "t1", UserID: "sa-1", Role: domainwf.RoleSuperAdmin}
	otherHR    = domainwf.Actor{TenantID: "t2", UserID: "hr-9", Role: domainwf.RoleCompanyAdmin}
)

type fixture struct {
	store   *memory.Store
	engine  workflow.Engine
	storage *mockStorage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	d := dispatcher.NewDispatcher()
	t.Cleanup(func() { _ = d.Close() })

	storage := &mockStorage{}
	effects.NewApplier(store, nopLogger{}, effects.WithStatementArchive(mockExporter{}, storage)).Register(d)

	require.NoError(t, store.UpsertProfile(context.Background(), &entity.EmployeeProfile{
		TenantID:   "t1",
		EmployeeID: "emp-1",
		Fields:     map[string]string{entity.ProfileFieldManager: "mgr-1"},
	}))

	return &fixture{
		store:   store,
		engine:  workflow.NewEngine(store.Records(), workflow.DefaultRegistry(), workflow.WithDispatcher(d), workflow.WithProfiles(store.Profiles())),
		storage: storage,
	}
}

func (f *fixture) transition(t *testing.T, actor domainwf.Actor, id string, action domainwf.Action) *entity.Record {
	t.Helper()
	rec, err := f.engine.ApplyTransition(context.Background(), actor, workflow.TransitionRequest{RecordID: id, Action: action})
	require.NoError(t, err)
	return rec
}

func (f *fixture) approvedProposal(t *testing.T) *entity.Record {
	t.Helper()
	rec, err := f.engine.Create(context.Background(), manager, workflow.CreateRequest{
		Workflow:  domainwf.TypeProposal,
		SubjectID: "emp-1",
		ManagerID: "mgr-1",
		Payload: map[string]interface{}{
			"kind":           entity.ProposalPromotion,
			"currentCtc":     "1200000",
			"proposedCtc":    "1500000",
			"newDesignation": "Senior Engineer",
			"effectiveDate":  "2026-04-01",
		},
	})
	require.NoError(t, err)

	f.transition(t, manager, rec.ID, domainwf.ActionSubmit)
	f.transition(t, manager, rec.ID, domainwf.ActionForward)
	f.transition(t, hr, rec.ID, domainwf.ActionForward)
	return f.transition(t, superAdmin, rec.ID, domainwf.ActionApprove)
}

func (f *fixture) settlement(t *testing.T) *entity.Record {
	t.Helper()
	rec, err := f.engine.Create(context.Background(), hr, workflow.CreateRequest{
		Workflow:  domainwf.TypeSettlement,
		SubjectID: "emp-1",
	})
	require.NoError(t, err)
	return rec
}

func component(kind, label, amount string) entity.SettlementComponent {
	return entity.SettlementComponent{Kind: kind, Label: label, Amount: decimal.RequireFromString(amount)}
}

func decodeSettlement(t *testing.T, rec *entity.Record) entity.SettlementPayload {
	t.Helper()
	var p entity.SettlementPayload
	require.NoError(t, entity.DecodePayload(rec.Payload, &p))
	return p
}

func TestSettlementService_Components(t *testing.T) {
	f := newFixture(t)
	svc := NewSettlementService(f.engine, mockExporter{}, f.storage, nopLogger{})
	ctx := context.Background()
	rec := f.settlement(t)

	rec, err := svc.AddComponent(ctx, hr, rec.ID, rec.Version, component(entity.ComponentEarning, "Gratuity", "100000"))
	require.NoError(t, err)
	rec, err = svc.AddComponent(ctx, hr, rec.ID, rec.Version, component(entity.ComponentEarning, "Leave encashment", "25000.50"))
	require.NoError(t, err)
	rec, err = svc.AddComponent(ctx, superAdmin, rec.ID, 0, component(entity.ComponentDeduction, "Notice shortfall", "15000"))
	require.NoError(t, err)

	p := decodeSettlement(t, rec)
	assert.Len(t, p.Components, 3)
	assert.Equal(t, "125000.50", p.TotalEarnings.StringFixed(2))
	assert.Equal(t, "15000.00", p.TotalDeductions.StringFixed(2))
	assert.Equal(t, "110000.50", p.NetPayable.StringFixed(2))

	rec, err = svc.RemoveComponent(ctx, hr, rec.ID, 1, rec.Version)
	require.NoError(t, err)
	p = decodeSettlement(t, rec)
	assert.Len(t, p.Components, 2)
	assert.Equal(t, "85000.00", p.NetPayable.StringFixed(2))

	last := rec.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, domainwf.ActionUpdate, last.Action)
	assert.Equal(t, "Removed component 1", last.Comment)
}

func TestSettlementService_Rejections(t *testing.T) {
	f := newFixture(t)
	svc := NewSettlementService(f.engine, mockExporter{}, f.storage, nopLogger{})
	ctx := context.Background()
	rec := f.settlement(t)

	tests := []struct {
		name    string
		call    func() error
		wantErr error
	}{
		{
			name: "invalid component",
			call: func() error {
				_, err := svc.AddComponent(ctx, hr, rec.ID, 0, component("Bonus", "x", "1"))
				return err
			},
			wantErr: domainwf.ErrValidation,
		},
		{
			name: "employee may not edit",
			call: func() error {
				_, err := svc.AddComponent(ctx, employee, rec.ID, 0, component(entity.ComponentEarning, "x", "1"))
				return err
			},
			wantErr: domainwf.ErrUnauthorizedActor,
		},
		{
			name: "other tenant",
			call: func() error {
				_, err := svc.AddComponent(ctx, otherHR, rec.ID, 0, component(entity.ComponentEarning, "x", "1"))
				return err
			},
			wantErr: domainwf.ErrTenantMismatch,
		},
		{
			name: "stale version",
			call: func() error {
				_, err := svc.AddComponent(ctx, hr, rec.ID, rec.Version+5, component(entity.ComponentEarning, "x", "1"))
				return err
			},
			wantErr: domainwf.ErrStaleState,
		},
		{
			name: "index out of range",
			call: func() error {
				_, err := svc.RemoveComponent(ctx, hr, rec.ID, 3, 0)
				return err
			},
			wantErr: domainwf.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), tt.wantErr)
		})
	}

	got, err := f.engine.Get(ctx, hr, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Version, got.Version)
}

func TestSettlementService_LockedAfterFinalise(t *testing.T) {
	f := newFixture(t)
	svc := NewSettlementService(f.engine, mockExporter{}, f.storage, nopLogger{})
	ctx := context.Background()
	rec := f.settlement(t)

	_, err := svc.AddComponent(ctx, hr, rec.ID, 0, component(entity.ComponentEarning, "Gratuity", "5000"))
	require.NoError(t, err)
	f.transition(t, hr, rec.ID, domainwf.ActionSubmitReview)
	final := f.transition(t, superAdmin, rec.ID, domainwf.ActionFinalise)

	_, err = svc.AddComponent(ctx, hr, rec.ID, 0, component(entity.ComponentEarning, "Bonus", "1"))
	assert.ErrorIs(t, err, domainwf.ErrRecordLocked)
	_, err = svc.RemoveComponent(ctx, hr, rec.ID, 0, 0)
	assert.ErrorIs(t, err, domainwf.ErrRecordLocked)

	got, err := f.engine.Get(ctx, hr, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, final.Version, got.Version)
	assert.Len(t, got.Trail, len(final.Trail))

	// Finalising archived the statement, so it is served from storage
	f.storage.files["t1/"+effects.StatementPath(rec.ID)] = []byte("archived")
	content, err := svc.Statement(ctx, hr, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "archived", string(content))
}

func TestSettlementService_Statement(t *testing.T) {
	f := newFixture(t)
	svc := NewSettlementService(f.engine, mockExporter{}, nil, nopLogger{})
	ctx := context.Background()
	rec := f.settlement(t)

	_, err := svc.AddComponent(ctx, hr, rec.ID, 0, component(entity.ComponentEarning, "Gratuity", "5000"))
	require.NoError(t, err)

	content, err := svc.Statement(ctx, hr, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "rendered 5000.00", string(content))

	_, err = svc.Statement(ctx, otherHR, rec.ID)
	assert.ErrorIs(t, err, domainwf.ErrTenantMismatch)

	proposal := f.approvedProposal(t)
	_, err = svc.Statement(ctx, hr, proposal.ID)
	assert.ErrorIs(t, err, domainwf.ErrValidation)
}

func TestLetterService_IssueLetter(t *testing.T) {
	f := newFixture(t)
	drafter := &mockDrafter{body: "Dear emp-1, congratulations."}
	svc := NewLetterService(f.engine, f.store, drafter, f.storage, "Bharat Industries", nopLogger{})
	ctx := context.Background()

	rec := f.approvedProposal(t)

	// Closing is refused until the letter is issued
	_, err := f.engine.ApplyTransition(ctx, hr, workflow.TransitionRequest{RecordID: rec.ID, Action: domainwf.ActionCloseProposal})
	assert.ErrorIs(t, err, domainwf.ErrValidation)

	result, err := svc.IssueLetter(ctx, hr, rec.ID, rec.Version)
	require.NoError(t, err)
	assert.True(t, result.Record.PayloadBool(entity.FieldLetterIssued))
	assert.True(t, result.Letter.Issued)
	assert.Equal(t, "hr-1", result.Letter.IssuedBy)
	assert.Equal(t, drafter.body, result.Letter.Body)
	assert.Equal(t, drafter.body, string(f.storage.files["t1/"+LetterPath(rec.ID)]))

	require.Len(t, drafter.reqs, 1)
	assert.Equal(t, "Bharat Industries", drafter.reqs[0].CompanyName)
	assert.Equal(t, "1500000.00", drafter.reqs[0].ProposedCTC)

	closed := f.transition(t, hr, rec.ID, domainwf.ActionCloseProposal)
	assert.Equal(t, domainwf.AtStage(domainwf.StageClosed, domainwf.StatusApproved), closed.State())

	_, err = svc.IssueLetter(ctx, hr, rec.ID, 0)
	assert.ErrorIs(t, err, domainwf.ErrValidation)
}

// racingDrafter issues the letter through another request while the first is still drafting
type racingDrafter struct {
	issue func() error
	raced error
	calls int
}

func (d *racingDrafter) DraftLetter(ctx context.Context, req port.LetterRequest) (string, error) {
	d.calls++
	if d.calls == 1 {
		d.raced = d.issue()
	}
	return fmt.Sprintf("letter %d", d.calls), nil
}

func TestLetterService_IssuesOnceUnderConcurrentRequests(t *testing.T) {
	f := newFixture(t)
	drafter := &racingDrafter{}
	svc := NewLetterService(f.engine, f.store, drafter, nil, "Bharat Industries", nopLogger{})
	ctx := context.Background()

	rec := f.approvedProposal(t)
	drafter.issue = func() error {
		_, err := svc.IssueLetter(ctx, superAdmin, rec.ID, 0)
		return err
	}

	_, err := svc.IssueLetter(ctx, hr, rec.ID, 0)
	assert.ErrorIs(t, err, domainwf.ErrValidation)
	require.NoError(t, drafter.raced)

	grant, err := f.store.Letters().GetLetter(ctx, "t1", rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "letter 2", grant.Body)
	assert.Equal(t, "sa-1", grant.IssuedBy)

	stored, err := f.engine.Get(ctx, hr, rec.ID)
	require.NoError(t, err)
	issued := 0
	for _, entry := range stored.Trail {
		if entry.Comment == "Letter issued" {
			issued++
		}
	}
	assert.Equal(t, 1, issued)
}

func TestLetterService_DrafterFailureUsesTemplate(t *testing.T) {
	f := newFixture(t)
	drafter := &mockDrafter{err: errors.New("rate limited")}
	svc := NewLetterService(f.engine, f.store, drafter, nil, "Bharat Industries", nopLogger{})

	rec := f.approvedProposal(t)
	result, err := svc.IssueLetter(context.Background(), superAdmin, rec.ID, 0)
	require.NoError(t, err)

	assert.Contains(t, result.Letter.Body, "Dear emp-1")
	assert.Contains(t, result.Letter.Body, "Your new designation is Senior Engineer.")
	assert.Contains(t, result.Letter.Body, "INR 1200000.00 to INR 1500000.00")
}

func TestLetterService_Rejections(t *testing.T) {
	f := newFixture(t)
	svc := NewLetterService(f.engine, f.store, nil, nil, "Bharat Industries", nopLogger{})
	ctx := context.Background()

	draft, err := f.engine.Create(ctx, manager, workflow.CreateRequest{
		Workflow:  domainwf.TypeProposal,
		SubjectID: "emp-1",
		ManagerID: "mgr-1",
		Payload:   map[string]interface{}{"kind": entity.ProposalIncrement, "proposedCtc": "10"},
	})
	require.NoError(t, err)

	_, err = svc.IssueLetter(ctx, manager, draft.ID, 0)
	assert.ErrorIs(t, err, domainwf.ErrUnauthorizedActor)

	_, err = svc.IssueLetter(ctx, hr, draft.ID, 0)
	assert.ErrorIs(t, err, domainwf.ErrValidation)

	_, err = svc.IssueLetter(ctx, otherHR, draft.ID, 0)
	assert.ErrorIs(t, err, domainwf.ErrTenantMismatch)

	got, err := f.engine.Get(ctx, hr, draft.ID)
	require.NoError(t, err)
	assert.False(t, got.PayloadBool(entity.FieldLetterIssued))
}

func TestLeaveService_Balances(t *testing.T) {
	f := newFixture(t)
	svc := NewLeaveService(f.store.LeaveBalances(), nopLogger{})
	ctx := context.Background()

	require.NoError(t, f.store.UpsertBalance(ctx, &entity.EmployeeLeaveBalance{
		TenantID:       "t1",
		EmployeeID:     "emp-1",
		LeaveType:      "CASUAL",
		CurrentBalance: decimal.NewFromInt(12),
	}))

	rec, err := f.engine.Create(ctx, employee, workflow.CreateRequest{
		Workflow:  domainwf.TypeLeave,
		SubjectID: "emp-1",
		ManagerID: "mgr-1",
		Payload:   map[string]interface{}{"leaveType": "CASUAL", "days": "2.5", "startDate": "2026-06-01", "endDate": "2026-06-03"},
	})
	require.NoError(t, err)
	f.transition(t, employee, rec.ID, domainwf.ActionSubmit)
	f.transition(t, manager, rec.ID, domainwf.ActionManagerApprove)
	f.transition(t, hr, rec.ID, domainwf.ActionApprove)

	sheet, err := svc.Balances(ctx, employee, "emp-1")
	require.NoError(t, err)
	require.Len(t, sheet.Balances, 1)
	assert.Equal(t, "9.5", sheet.Balances[0].CurrentBalance.String())
	require.Len(t, sheet.Changes, 1)
	assert.Equal(t, rec.ID, sheet.Changes[0].RecordID)

	_, err = svc.Balances(ctx, hr, "emp-1")
	assert.NoError(t, err)

	_, err = svc.Balances(ctx, manager, "emp-1")
	assert.ErrorIs(t, err, domainwf.ErrUnauthorizedActor)

	other, err := svc.Balances(ctx, otherHR, "emp-1")
	require.NoError(t, err)
	assert.Empty(t, other.Balances)
}
