package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smbgAlokk/bharatforce/internal/application/dispatcher"
	"github.com/smbgAlokk/bharatforce/internal/application/effects"
	"github.com/smbgAlokk/bharatforce/internal/application/service"
	"github.com/smbgAlokk/bharatforce/internal/application/workflow"
	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	domainwf "github.com/smbgAlokk/bharatforce/internal/domain/workflow"
	"github.com/smbgAlokk/bharatforce/internal/infrastructure/auth"
	"github.com/smbgAlokk/bharatforce/internal/infrastructure/export"
	"github.com/smbgAlokk/bharatforce/internal/infrastructure/persistence/memory"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type testServer struct {
	t      *testing.T
	router http.Handler
	tokens *auth.TokenManager
	store  *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	d := dispatcher.NewDispatcher()
	t.Cleanup(func() { _ = d.Close() })
	effects.NewApplier(store, nopLogger{}).Register(d)

	for _, employeeID := range []string{"emp-1", "emp-2"} {
		require.NoError(t, store.UpsertProfile(context.Background(), &entity.EmployeeProfile{
			TenantID:   "t1",
			EmployeeID: employeeID,
			Fields:     map[string]string{entity.ProfileFieldManager: "mgr-1"},
		}))
	}

	engine := workflow.NewEngine(store.Records(), workflow.DefaultRegistry(),
		workflow.WithDispatcher(d),
		workflow.WithProfiles(store.Profiles()),
	)
	tokens := auth.NewTokenManager([]byte("test-secret"), time.Hour)

	srv := NewServer(DefaultServerConfig(), Dependencies{
		Engine:      engine,
		Settlements: service.NewSettlementService(engine, export.NewStatementWriter("Bharat Industries", zap.NewNop()), nil, nopLogger{}),
		Letters:     service.NewLetterService(engine, store, nil, nil, "Bharat Industries", nopLogger{}),
		Leave:       service.NewLeaveService(store.LeaveBalances(), nopLogger{}),
		Tokens:      tokens,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("bharatforce_transitions_total 0\n"))
		}),
	}, nopLogger{})

	return &testServer{t: t, router: srv.Router(), tokens: tokens, store: store}
}

func (s *testServer) token(tenantID, userID string, role domainwf.Role) string {
	s.t.Helper()
	token, err := s.tokens.Issue(domainwf.Actor{TenantID: tenantID, UserID: userID, Role: role})
	require.NoError(s.t, err)
	return token
}

func (s *testServer) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, testResponse) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp testResponse
	if w.Header().Get("Content-Type") != xlsxContentType && w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func decodeRecord(t *testing.T, resp testResponse) *entity.Record {
	t.Helper()
	var rec entity.Record
	require.NoError(t, json.Unmarshal(resp.Data, &rec))
	return &rec
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mw := httptest.NewRecorder()
	s.router.ServeHTTP(mw, req)
	assert.Equal(t, http.StatusOK, mw.Code)
	assert.Contains(t, mw.Body.String(), "bharatforce_transitions_total")
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"empty token", "Bearer  "},
		{"bad token", "Bearer not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/records", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestExpenseLifecycle(t *testing.T) {
	s := newTestServer(t)
	emp := s.token("t1", "emp-1", domainwf.RoleEmployee)
	mgr := s.token("t1", "mgr-1", domainwf.RoleManager)
	hr := s.token("t1", "hr-1", domainwf.RoleCompanyAdmin)

	w, resp := s.do(http.MethodPost, "/api/v1/records", emp, map[string]interface{}{
		"workflow":   "expense_claim",
		"subject_id": "emp-1",
		"manager_id": "mgr-1",
		"payload":    map[string]interface{}{"title": "Taxi", "category": "Travel", "amount": "0", "currency": "INR"},
	})
	require.Equal(t, http.StatusCreated, w.Code, resp.Error)
	rec := decodeRecord(t, resp)
	base := "/api/v1/records/" + rec.ID

	// Submit guard: amount must be positive
	w, resp = s.do(http.MethodPost, base+"/transitions", emp, map[string]interface{}{"action": "submit"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "validation_failed", resp.Code)

	w, resp = s.do(http.MethodPatch, base, emp, map[string]interface{}{"patch": map[string]interface{}{"amount": "850.50"}})
	require.Equal(t, http.StatusOK, w.Code, resp.Error)
	rec = decodeRecord(t, resp)

	w, resp = s.do(http.MethodGet, base+"/actions", emp, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["submit"]`, string(resp.Data))

	w, resp = s.do(http.MethodPost, base+"/transitions", emp, map[string]interface{}{"action": "submit", "expected_version": rec.Version})
	require.Equal(t, http.StatusOK, w.Code, resp.Error)

	// Stale version
	w, resp = s.do(http.MethodPost, base+"/transitions", mgr, map[string]interface{}{"action": "manager_approve", "expected_version": rec.Version})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "stale_state", resp.Code)

	// No such edge from Submitted
	w, resp = s.do(http.MethodPost, base+"/transitions", hr, map[string]interface{}{"action": "mark_paid"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "illegal_transition", resp.Code)

	// Edge exists but not for employees
	w, resp = s.do(http.MethodPost, base+"/transitions", emp, map[string]interface{}{"action": "manager_approve"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "unauthorized_actor", resp.Code)

	for _, step := range []struct {
		token  string
		action string
	}{
		{mgr, "manager_approve"},
		{hr, "hr_approve"},
		{hr, "mark_paid"},
	} {
		w, resp = s.do(http.MethodPost, base+"/transitions", step.token, map[string]interface{}{"action": step.action, "comment": "ok"})
		require.Equal(t, http.StatusOK, w.Code, resp.Error)
	}
	rec = decodeRecord(t, resp)
	assert.Equal(t, domainwf.StatusPaid, rec.Status)

	ps, err := s.store.GetPayrollSync(context.Background(), "t1", "emp-1")
	require.NoError(t, err)
	assert.Equal(t, entity.PayrollSyncPending, ps.Status)

	// Paid is terminal
	w, resp = s.do(http.MethodPatch, base, hr, map[string]interface{}{"patch": map[string]interface{}{"title": "x"}})
	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Equal(t, "record_locked", resp.Code)

	w, resp = s.do(http.MethodGet, base+"/history", emp, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var trail []entity.TrailEntry
	require.NoError(t, json.Unmarshal(resp.Data, &trail))
	require.Len(t, trail, 5)
	for i, entry := range trail {
		assert.Equal(t, i+1, entry.Seq)
	}
	assert.Equal(t, domainwf.ActionMarkPaid, trail[4].Action)
}

func TestCreateRecord_ManagerMustMatchDirectory(t *testing.T) {
	s := newTestServer(t)
	emp := s.token("t1", "emp-1", domainwf.RoleEmployee)

	w, resp := s.do(http.MethodPost, "/api/v1/records", emp, map[string]interface{}{
		"workflow":   "expense_claim",
		"manager_id": "mgr-7",
		"payload":    map[string]interface{}{"title": "Taxi", "amount": "120", "currency": "INR"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "validation_failed", resp.Code)

	w, resp = s.do(http.MethodPost, "/api/v1/records", emp, map[string]interface{}{
		"workflow": "expense_claim",
		"payload":  map[string]interface{}{"title": "Taxi", "amount": "120", "currency": "INR"},
	})
	require.Equal(t, http.StatusCreated, w.Code, resp.Error)
	assert.Equal(t, "mgr-1", decodeRecord(t, resp).ManagerID)
}

// listSpy records the filter the handler passes to the engine
type listSpy struct {
	workflow.Engine
	filter workflow.ListFilter
}

func (l *listSpy) ListForActor(ctx context.Context, actor domainwf.Actor, filter workflow.ListFilter) ([]*entity.Record, error) {
	l.filter = filter
	return nil, nil
}

func TestListRecords_PageSize(t *testing.T) {
	tests := []struct {
		query string
		limit int
	}{
		{"", 20},
		{"?limit=0", 20},
		{"?limit=35", 35},
		{"?limit=100", 100},
		{"?limit=500", 100},
	}

	for _, tt := range tests {
		t.Run("limit"+tt.query, func(t *testing.T) {
			spy := &listSpy{}
			tokens := auth.NewTokenManager([]byte("test-secret"), time.Hour)
			srv := NewServer(DefaultServerConfig(), Dependencies{Engine: spy, Tokens: tokens}, nopLogger{})
			token, err := tokens.Issue(domainwf.Actor{TenantID: "t1", UserID: "hr-1", Role: domainwf.RoleCompanyAdmin})
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/records"+tt.query, nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			srv.Router().ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.limit, spy.filter.Limit)
			assert.JSONEq(t, `{"success":true,"data":[]}`, w.Body.String())
		})
	}
}

func TestTenantIsolation(t *testing.T) {
	s := newTestServer(t)
	emp := s.token("t1", "emp-1", domainwf.RoleEmployee)
	foreign := s.token("t2", "hr-9", domainwf.RoleCompanyAdmin)

	w, resp := s.do(http.MethodPost, "/api/v1/records", emp, map[string]interface{}{
		"workflow":   "leave_request",
		"subject_id": "emp-1",
		"payload":    map[string]interface{}{"leaveType": "CASUAL", "days": "1"},
	})
	require.Equal(t, http.StatusCreated, w.Code, resp.Error)
	rec := decodeRecord(t, resp)

	w, resp = s.do(http.MethodGet, "/api/v1/records/"+rec.ID, foreign, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "tenant_mismatch", resp.Code)

	w, resp = s.do(http.MethodGet, "/api/v1/records", foreign, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(resp.Data))

	w, resp = s.do(http.MethodGet, "/api/v1/records/missing", emp, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", resp.Code)
}

func TestWorkflowCatalogue(t *testing.T) {
	s := newTestServer(t)
	emp := s.token("t1", "emp-1", domainwf.RoleEmployee)

	w, resp := s.do(http.MethodGet, "/api/v1/workflows", emp, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var defs []domainwf.Description
	require.NoError(t, json.Unmarshal(resp.Data, &defs))
	assert.Len(t, defs, 8)

	w, resp = s.do(http.MethodGet, "/api/v1/workflows/pi_proposal", emp, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var def domainwf.Description
	require.NoError(t, json.Unmarshal(resp.Data, &def))
	assert.Equal(t, domainwf.AtStage(domainwf.StageDraft, domainwf.StatusDraft), def.Initial)

	w, _ = s.do(http.MethodGet, "/api/v1/workflows/payroll", emp, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSettlementEndpoints(t *testing.T) {
	s := newTestServer(t)
	hr := s.token("t1", "hr-1", domainwf.RoleCompanyAdmin)

	// Clients may open a settlement with its lines but never with totals
	w, resp := s.do(http.MethodPost, "/api/v1/records", hr, map[string]interface{}{
		"workflow":   "fnf_settlement",
		"subject_id": "emp-1",
		"payload": map[string]interface{}{
			"components": []map[string]interface{}{{"kind": "Earning", "label": "Basic", "amount": "50000"}},
			"netPayable": "50000",
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, resp = s.do(http.MethodPost, "/api/v1/records", hr, map[string]interface{}{
		"workflow":   "fnf_settlement",
		"subject_id": "emp-1",
		"payload": map[string]interface{}{
			"components": []map[string]interface{}{{"kind": "Earning", "label": "Basic", "amount": "50000"}},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, resp.Error)
	rec := decodeRecord(t, resp)
	base := "/api/v1/settlements/" + rec.ID

	var created entity.SettlementPayload
	require.NoError(t, entity.DecodePayload(rec.Payload, &created))
	assert.Equal(t, "50000", created.TotalEarnings.String())
	assert.Equal(t, "50000", created.NetPayable.String())

	// Totals are system managed
	w, resp = s.do(http.MethodPatch, "/api/v1/records/"+rec.ID, hr, map[string]interface{}{"patch": map[string]interface{}{"netPayable": "1"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	for _, c := range []map[string]interface{}{
		{"kind": "Earning", "label": "Gratuity", "amount": "40000"},
		{"kind": "Earning", "label": "Bonus", "amount": "1000"},
		{"kind": "Deduction", "label": "Notice shortfall", "amount": "5000"},
	} {
		w, resp = s.do(http.MethodPost, base+"/components", hr, c)
		require.Equal(t, http.StatusOK, w.Code, resp.Error)
	}

	w, resp = s.do(http.MethodDelete, base+"/components/2", hr, nil)
	require.Equal(t, http.StatusOK, w.Code, resp.Error)
	rec = decodeRecord(t, resp)
	var payload entity.SettlementPayload
	require.NoError(t, entity.DecodePayload(rec.Payload, &payload))
	assert.Equal(t, "85000", payload.NetPayable.String())

	w, _ = s.do(http.MethodDelete, base+"/components/x", hr, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodGet, base+"/statement", hr, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "settlement-"+rec.ID+".xlsx")
	assert.NotZero(t, w.Body.Len())
}

func TestLetterAndRetry(t *testing.T) {
	s := newTestServer(t)
	mgr := s.token("t1", "mgr-1", domainwf.RoleManager)
	hr := s.token("t1", "hr-1", domainwf.RoleCompanyAdmin)
	sa := s.token("t1", "sa-1", domainwf.RoleSuperAdmin)

	w, resp := s.do(http.MethodPost, "/api/v1/records", mgr, map[string]interface{}{
		"workflow":   "pi_proposal",
		"subject_id": "emp-1",
		"manager_id": "mgr-1",
		"payload":    map[string]interface{}{"kind": "Increment", "currentCtc": "900000", "proposedCtc": "990000", "effectiveDate": "2026-04-01"},
	})
	require.Equal(t, http.StatusCreated, w.Code, resp.Error)
	rec := decodeRecord(t, resp)
	base := "/api/v1/records/" + rec.ID

	for _, step := range []struct {
		token  string
		action string
	}{
		{mgr, "submit"},
		{mgr, "forward"},
		{hr, "forward"},
		{sa, "approve"},
	} {
		w, resp = s.do(http.MethodPost, base+"/transitions", step.token, map[string]interface{}{"action": step.action})
		require.Equal(t, http.StatusOK, w.Code, resp.Error)
	}

	w, resp = s.do(http.MethodPost, base+"/effects/retry", mgr, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, resp = s.do(http.MethodPost, base+"/effects/retry", hr, nil)
	require.Equal(t, http.StatusOK, w.Code, resp.Error)
	w, resp = s.do(http.MethodPost, base+"/effects/retry?trail_seq=4", hr, nil)
	require.Equal(t, http.StatusOK, w.Code, resp.Error)
	w, resp = s.do(http.MethodPost, base+"/effects/retry?trail_seq=9", hr, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w, resp = s.do(http.MethodPost, base+"/effects/retry?trail_seq=-1", hr, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = s.do(http.MethodPost, base+"/transitions", hr, map[string]interface{}{"action": "close_proposal"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, resp = s.do(http.MethodPost, "/api/v1/proposals/"+rec.ID+"/letter", hr, nil)
	require.Equal(t, http.StatusOK, w.Code, resp.Error)

	w, resp = s.do(http.MethodPost, base+"/transitions", hr, map[string]interface{}{"action": "close_proposal"})
	require.Equal(t, http.StatusOK, w.Code, resp.Error)
	rec = decodeRecord(t, resp)
	assert.Equal(t, domainwf.StageClosed, rec.Stage)
}

func TestLeaveBalancesEndpoint(t *testing.T) {
	s := newTestServer(t)
	emp := s.token("t1", "emp-1", domainwf.RoleEmployee)
	other := s.token("t1", "emp-2", domainwf.RoleEmployee)

	w, resp := s.do(http.MethodGet, "/api/v1/employees/emp-1/leave-balances", emp, nil)
	require.Equal(t, http.StatusOK, w.Code, resp.Error)

	w, resp = s.do(http.MethodGet, "/api/v1/employees/emp-1/leave-balances", other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "unauthorized_actor", resp.Code)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domainwf.ErrIllegalTransition, http.StatusConflict, "illegal_transition"},
		{domainwf.ErrStaleState, http.StatusConflict, "stale_state"},
		{domainwf.ErrUnauthorizedActor, http.StatusForbidden, "unauthorized_actor"},
		{domainwf.ErrTenantMismatch, http.StatusForbidden, "tenant_mismatch"},
		{domainwf.ErrRecordLocked, http.StatusLocked, "record_locked"},
		{domainwf.ErrValidation, http.StatusUnprocessableEntity, "validation_failed"},
		{domainwf.ErrNotFound, http.StatusNotFound, "not_found"},
		{assert.AnError, http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}
