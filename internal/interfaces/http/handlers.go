package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/smbgAlokk/bharatforce/internal/application/service"
	"github.com/smbgAlokk/bharatforce/internal/application/workflow"
	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	domainwf "github.com/smbgAlokk/bharatforce/internal/domain/workflow"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxPageSize     = 100
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine      workflow.Engine
	settlements service.SettlementService
	letters     service.LetterService
	leave       service.LeaveService
	logger      Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	engine workflow.Engine,
	settlements service.SettlementService,
	letters service.LetterService,
	leave service.LeaveService,
	logger Logger,
) *Handlers {
	return &Handlers{
		engine:      engine,
		settlements: settlements,
		letters:     letters,
		leave:       leave,
		logger:      logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// TransitionBody is the body of POST /records/:id/transitions
type TransitionBody struct {
	Action          domainwf.Action `json:"action" binding:"required"`
	Comment         string          `json:"comment"`
	ExpectedVersion int64           `json:"expected_version"`
}

// UpdateBody is the body of PATCH /records/:id
type UpdateBody struct {
	Patch           map[string]interface{} `json:"patch" binding:"required"`
	Comment         string                 `json:"comment"`
	ExpectedVersion int64                  `json:"expected_version"`
}

// ComponentBody is the body of POST /settlements/:id/components
type ComponentBody struct {
	Kind            string          `json:"kind" binding:"required"`
	Label           string          `json:"label" binding:"required"`
	Amount          decimal.Decimal `json:"amount"`
	ExpectedVersion int64           `json:"expected_version"`
}

// LetterBody is the optional body of POST /proposals/:id/letter
type LetterBody struct {
	ExpectedVersion int64 `json:"expected_version"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// ListWorkflows handles GET /api/v1/workflows
func (h *Handlers) ListWorkflows(c *gin.Context) {
	registry := h.engine.Registry()

	var defs []domainwf.Description
	for _, t := range registry.Types() {
		def, err := registry.Get(t)
		if err != nil {
			continue
		}
		defs = append(defs, def.Describe())
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: defs})
}

// GetWorkflow handles GET /api/v1/workflows/:type
func (h *Handlers) GetWorkflow(c *gin.Context) {
	def, err := h.engine.Registry().Get(domainwf.Type(c.Param("type")))
	if err != nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: err.Error(), Code: "not_found"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: def.Describe()})
}

// CreateRecord handles POST /api/v1/records
func (h *Handlers) CreateRecord(c *gin.Context) {
	var req workflow.CreateRequest
	if !h.bind(c, &req) {
		return
	}

	rec, err := h.engine.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: rec})
}

// ListRecords handles GET /api/v1/records
func (h *Handlers) ListRecords(c *gin.Context) {
	var filter workflow.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.badRequest(c, "invalid query parameters")
		return
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	records, err := h.engine.ListForActor(c.Request.Context(), actorFrom(c), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	if records == nil {
		records = []*entity.Record{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// GetRecord handles GET /api/v1/records/:id
func (h *Handlers) GetRecord(c *gin.Context) {
	rec, err := h.engine.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: rec})
}

// UpdateRecord handles PATCH /api/v1/records/:id
func (h *Handlers) UpdateRecord(c *gin.Context) {
	var body UpdateBody
	if !h.bind(c, &body) {
		return
	}

	rec, err := h.engine.UpdatePayload(c.Request.Context(), actorFrom(c), workflow.UpdateRequest{
		RecordID:        c.Param("id"),
		Patch:           body.Patch,
		Comment:         body.Comment,
		ExpectedVersion: body.ExpectedVersion,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: rec})
}

// PermittedActions handles GET /api/v1/records/:id/actions
func (h *Handlers) PermittedActions(c *gin.Context) {
	actions, err := h.engine.PermittedActions(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if actions == nil {
		actions = []domainwf.Action{}
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: actions})
}

// History handles GET /api/v1/records/:id/history
func (h *Handlers) History(c *gin.Context) {
	trail, err := h.engine.History(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: trail})
}

// ApplyTransition handles POST /api/v1/records/:id/transitions
func (h *Handlers) ApplyTransition(c *gin.Context) {
	var body TransitionBody
	if !h.bind(c, &body) {
		return
	}

	rec, err := h.engine.ApplyTransition(c.Request.Context(), actorFrom(c), workflow.TransitionRequest{
		RecordID:        c.Param("id"),
		Action:          body.Action,
		Comment:         body.Comment,
		ExpectedVersion: body.ExpectedVersion,
	})
	h.committed(c, rec, err)
}

// RetryEffects handles POST /api/v1/records/:id/effects/retry?trail_seq=N.
// Without trail_seq the last transition is retried.
func (h *Handlers) RetryEffects(c *gin.Context) {
	var query struct {
		TrailSeq int `form:"trail_seq" binding:"min=0"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		h.badRequest(c, "invalid trail_seq")
		return
	}

	rec, err := h.engine.RetryEffects(c.Request.Context(), actorFrom(c), c.Param("id"), query.TrailSeq)
	h.committed(c, rec, err)
}

// AddComponent handles POST /api/v1/settlements/:id/components
func (h *Handlers) AddComponent(c *gin.Context) {
	var body ComponentBody
	if !h.bind(c, &body) {
		return
	}

	rec, err := h.settlements.AddComponent(c.Request.Context(), actorFrom(c), c.Param("id"), body.ExpectedVersion,
		entity.SettlementComponent{Kind: body.Kind, Label: body.Label, Amount: body.Amount})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: rec})
}

// RemoveComponent handles DELETE /api/v1/settlements/:id/components/:index
func (h *Handlers) RemoveComponent(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		h.badRequest(c, "invalid component index")
		return
	}
	var expected int64
	if v := c.Query("expected_version"); v != "" {
		expected, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			h.badRequest(c, "invalid expected_version")
			return
		}
	}

	rec, err := h.settlements.RemoveComponent(c.Request.Context(), actorFrom(c), c.Param("id"), index, expected)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: rec})
}

// Statement handles GET /api/v1/settlements/:id/statement
func (h *Handlers) Statement(c *gin.Context) {
	id := c.Param("id")
	content, err := h.settlements.Statement(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="settlement-%s.xlsx"`, id))
	c.Data(http.StatusOK, xlsxContentType, content)
}

// IssueLetter handles POST /api/v1/proposals/:id/letter
func (h *Handlers) IssueLetter(c *gin.Context) {
	var body LetterBody
	if c.Request.ContentLength > 0 && !h.bind(c, &body) {
		return
	}

	result, err := h.letters.IssueLetter(c.Request.Context(), actorFrom(c), c.Param("id"), body.ExpectedVersion)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// LeaveBalances handles GET /api/v1/employees/:id/leave-balances
func (h *Handlers) LeaveBalances(c *gin.Context) {
	sheet, err := h.leave.Balances(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: sheet})
}

// committed answers a write that may have committed with incomplete side effects
func (h *Handlers) committed(c *gin.Context, rec *entity.Record, err error) {
	if err != nil && errors.Is(err, domainwf.ErrEffectsIncomplete) && rec != nil {
		h.logger.Error("Side effects incomplete", "error", err, "record_id", rec.ID)
		c.JSON(http.StatusAccepted, Response{
			Success: true,
			Data:    rec,
			Error:   err.Error(),
			Code:    "effects_incomplete",
		})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: rec})
}

// bind decodes the JSON body and answers 400 on failure
func (h *Handlers) bind(c *gin.Context, out interface{}) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg, Code: "bad_request"})
}

// fail maps an error to its HTTP status. Infrastructure failures are logged and hidden.
func (h *Handlers) fail(c *gin.Context, err error) {
	status, code := classify(err)
	msg := err.Error()
	if !domainwf.IsDomainError(err) {
		h.logger.Error("Request failed", "error", err, "path", c.Request.URL.Path)
		msg = "internal error"
	}
	c.JSON(status, Response{Success: false, Error: msg, Code: code})
}

// classify returns the HTTP status and error code of err
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domainwf.ErrIllegalTransition):
		return http.StatusConflict, "illegal_transition"
	case errors.Is(err, domainwf.ErrStaleState):
		return http.StatusConflict, "stale_state"
	case errors.Is(err, domainwf.ErrUnauthorizedActor):
		return http.StatusForbidden, "unauthorized_actor"
	case errors.Is(err, domainwf.ErrTenantMismatch):
		return http.StatusForbidden, "tenant_mismatch"
	case errors.Is(err, domainwf.ErrRecordLocked):
		return http.StatusLocked, "record_locked"
	case errors.Is(err, domainwf.ErrValidation):
		return http.StatusUnprocessableEntity, "validation_failed"
	case errors.Is(err, domainwf.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domainwf.ErrEffectsIncomplete):
		return http.StatusAccepted, "effects_incomplete"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
