package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smbgAlokk/bharatforce/internal/application/dispatcher"
	"github.com/smbgAlokk/bharatforce/internal/application/port"
	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	"github.com/smbgAlokk/bharatforce/internal/domain/event"
	domainwf "github.com/smbgAlokk/bharatforce/internal/domain/workflow"
	"github.com/smbgAlokk/bharatforce/pkg/utils"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	records    port.RecordRepository
	registry   *domainwf.Registry
	guard      *LockGuard
	stamper    *Stamper
	dispatcher dispatcher.Dispatcher
	metrics    port.MetricsRecorder
	profiles   port.ProfileRepository
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the dispatcher for side effects and observers
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithClock sets the clock used for audit fields and trail entries
func WithClock(now Clock) EngineOption {
	return func(e *engineImpl) {
		e.stamper = NewStamper(now)
	}
}

// WithMetrics sets the recorder for transition outcomes
func WithMetrics(m port.MetricsRecorder) EngineOption {
	return func(e *engineImpl) {
		e.metrics = m
	}
}

// WithProfiles sets the employee directory that names each employee's reporting manager
func WithProfiles(p port.ProfileRepository) EngineOption {
	return func(e *engineImpl) {
		e.profiles = p
	}
}

// NewEngine creates a new workflow engine
func NewEngine(records port.RecordRepository, registry *domainwf.Registry, opts ...EngineOption) Engine {
	e := &engineImpl{
		records:  records,
		registry: registry,
		guard:    NewLockGuard(registry),
		stamper:  NewStamper(nil),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Registry returns the workflow definitions the engine runs
func (e *engineImpl) Registry() *domainwf.Registry {
	return e.registry
}

// Create opens a record in the initial state of its workflow
func (e *engineImpl) Create(ctx context.Context, actor domainwf.Actor, req CreateRequest) (*entity.Record, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}

	def, err := e.registry.Get(req.Workflow)
	if err != nil {
		return nil, err
	}

	subjectID := req.SubjectID
	if subjectID == "" {
		subjectID = actor.UserID
	}
	if err := def.CheckCreate(actor, subjectID); err != nil {
		return nil, err
	}
	if err := def.CheckCreateFields(req.Payload); err != nil {
		return nil, err
	}

	payload, err := normalizePayload(req.Workflow, req.Payload)
	if err != nil {
		return nil, err
	}

	if def.SingleActive() {
		if err := e.checkSingleActive(ctx, def, actor.TenantID, subjectID); err != nil {
			return nil, err
		}
	}

	managerID, err := e.resolveManager(ctx, actor, subjectID, req.ManagerID)
	if err != nil {
		return nil, err
	}

	initial := def.Initial()
	rec := &entity.Record{
		ID:        uuid.NewString(),
		TenantID:  actor.TenantID,
		Workflow:  req.Workflow,
		Stage:     initial.Stage,
		Status:    initial.Status,
		SubjectID: subjectID,
		ManagerID: managerID,
		Payload:   payload,
		Trail:     []entity.TrailEntry{},
		Version:   1,
	}
	e.stamper.StampCreate(rec, actor)

	if err := e.records.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create record: %w", err)
	}

	e.observe(ctx, event.NewEvent(event.TypeRecordCreated, rec, actor))
	return rec, nil
}

// resolveManager picks the reviewing manager of a new record. The directory entry wins,
// then a manager filing for someone else. Only admins may name a different manager.
func (e *engineImpl) resolveManager(ctx context.Context, actor domainwf.Actor, subjectID, requested string) (string, error) {
	expected := ""
	if e.profiles != nil {
		profile, err := e.profiles.GetProfile(ctx, actor.TenantID, subjectID)
		switch {
		case err == nil:
			expected = profile.Fields[entity.ProfileFieldManager]
		case !errors.Is(err, domainwf.ErrNotFound):
			return "", fmt.Errorf("failed to look up manager of %s: %w", subjectID, err)
		}
	}
	if expected == "" && actor.Role == domainwf.RoleManager && actor.UserID != subjectID {
		expected = actor.UserID
	}

	if requested == "" || requested == expected {
		return expected, nil
	}
	if actor.Role.SeesTenant() {
		return requested, nil
	}
	return "", fmt.Errorf("%w: %s is not the manager of %s", domainwf.ErrValidation, requested, subjectID)
}

// Get loads a record visible to the actor
func (e *engineImpl) Get(ctx context.Context, actor domainwf.Actor, id string) (*entity.Record, error) {
	rec, err := e.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, rec) {
		return nil, fmt.Errorf("%w: %s may not read record %s", domainwf.ErrUnauthorizedActor, actor.UserID, id)
	}
	return rec, nil
}

// ListForActor lists records by role: employees see their own, managers their own and
// their reports', admins the whole tenant
func (e *engineImpl) ListForActor(ctx context.Context, actor domainwf.Actor, filter ListFilter) ([]*entity.Record, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}

	f := port.RecordFilter{
		Workflow:  filter.Workflow,
		Status:    filter.Status,
		SubjectID: filter.SubjectID,
		Limit:     filter.Limit,
		Offset:    filter.Offset,
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	switch {
	case actor.Role.SeesTenant():
	case actor.Role == domainwf.RoleManager:
		f.SubjectOrManager = actor.UserID
	default:
		if f.SubjectID != "" && f.SubjectID != actor.UserID {
			return []*entity.Record{}, nil
		}
		f.SubjectID = actor.UserID
	}

	records, err := e.records.List(ctx, actor.TenantID, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}

// PermittedActions returns the actions the actor may take on a record
func (e *engineImpl) PermittedActions(ctx context.Context, actor domainwf.Actor, id string) ([]domainwf.Action, error) {
	rec, err := e.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	def, err := e.registry.Get(rec.Workflow)
	if err != nil {
		return nil, err
	}
	return def.PermittedActions(rec.State(), actor, rec.Subject()), nil
}

// History returns the audit trail of a record
func (e *engineImpl) History(ctx context.Context, actor domainwf.Actor, id string) ([]entity.TrailEntry, error) {
	rec, err := e.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return rec.Trail, nil
}

// ApplyTransition moves a record along one edge. Checks run in order: tenant, lock,
// version, edge. The record is written once; effects run after the write.
func (e *engineImpl) ApplyTransition(ctx context.Context, actor domainwf.Actor, req TransitionRequest) (rec *entity.Record, err error) {
	start := time.Now()
	wfType := ""
	defer func() {
		e.recordOutcome(wfType, req.Action, err, time.Since(start))
	}()

	current, err := e.load(ctx, actor, req.RecordID)
	if err != nil {
		return nil, err
	}
	wfType = string(current.Workflow)

	def, err := e.registry.Get(current.Workflow)
	if err != nil {
		return nil, err
	}
	if err := e.guard.CheckMutable(current); err != nil {
		return nil, err
	}
	if err := checkVersion(current, req.ExpectedVersion); err != nil {
		return nil, err
	}

	t, err := def.Resolve(ctx, current.State(), req.Action, actor, current.Subject())
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	next.Stage = t.To.Stage
	next.Status = t.To.Status
	entry := e.appendTrail(next, current, actor, req.Action, req.Comment)
	e.stamper.StampUpdate(next, actor)
	next.Version = current.Version + 1

	if err := e.records.Update(ctx, next, current.Version); err != nil {
		return nil, err
	}

	evt := event.NewTransitionEvent(next, entry, actor)
	if err := e.runEffects(ctx, evt); err != nil {
		return next, err
	}
	return next, nil
}

// UpdatePayload edits the payload of a record under its edit policy
func (e *engineImpl) UpdatePayload(ctx context.Context, actor domainwf.Actor, req UpdateRequest) (*entity.Record, error) {
	return e.mutate(ctx, actor, req.RecordID, req.ExpectedVersion, req.Comment, func(def *domainwf.Definition, rec *entity.Record) error {
		if !def.CanEdit(rec.State(), actor, rec.Subject()) {
			return fmt.Errorf("%w: %s may not edit %s in %s", domainwf.ErrUnauthorizedActor, actor.Role, rec.Workflow, rec.State())
		}
		if err := def.CheckFields(req.Patch); err != nil {
			return err
		}
		for k, v := range req.Patch {
			if v == nil {
				delete(rec.Payload, k)
				continue
			}
			rec.Payload[k] = v
		}
		payload, err := normalizePayload(rec.Workflow, rec.Payload)
		if err != nil {
			return err
		}
		rec.Payload = payload
		return nil
	})
}

// Mutate applies a system change to a record under the tenant, lock and version checks
func (e *engineImpl) Mutate(ctx context.Context, actor domainwf.Actor, id string, expectedVersion int64, comment string, fn MutateFunc) (*entity.Record, error) {
	return e.mutate(ctx, actor, id, expectedVersion, comment, func(def *domainwf.Definition, rec *entity.Record) error {
		if err := fn(rec); err != nil {
			return err
		}
		payload, err := normalizePayload(rec.Workflow, rec.Payload)
		if err != nil {
			return err
		}
		rec.Payload = payload
		return nil
	})
}

// RetryEffects re-runs the side effects of the transition at trailSeq, or of the last
// transition when trailSeq is zero. Effects see the record as that transition left it
// and skip work already logged.
func (e *engineImpl) RetryEffects(ctx context.Context, actor domainwf.Actor, id string, trailSeq int) (*entity.Record, error) {
	if !actor.Role.SeesTenant() {
		return nil, fmt.Errorf("%w: %s may not retry effects", domainwf.ErrUnauthorizedActor, actor.Role)
	}
	rec, err := e.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	entry := rec.LastTransition()
	if trailSeq != 0 {
		entry = rec.TransitionAt(trailSeq)
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: record %s has no transition at %d", domainwf.ErrValidation, id, trailSeq)
	}

	// Effects act for whoever made the transition, not for the retrying admin
	original := domainwf.Actor{TenantID: rec.TenantID, UserID: entry.ActorID, Role: entry.ActorRole}
	evt := event.NewTransitionEvent(rec.AsOf(*entry), *entry, original)
	if err := e.runEffects(ctx, evt); err != nil {
		return rec, err
	}
	return rec, nil
}

func (e *engineImpl) mutate(ctx context.Context, actor domainwf.Actor, id string, expectedVersion int64, comment string, change func(*domainwf.Definition, *entity.Record) error) (*entity.Record, error) {
	current, err := e.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	def, err := e.registry.Get(current.Workflow)
	if err != nil {
		return nil, err
	}
	if err := e.guard.CheckMutable(current); err != nil {
		return nil, err
	}
	if err := checkVersion(current, expectedVersion); err != nil {
		return nil, err
	}

	next := current.Clone()
	if next.Payload == nil {
		next.Payload = make(map[string]interface{})
	}
	if err := change(def, next); err != nil {
		return nil, err
	}

	e.appendTrail(next, current, actor, domainwf.ActionUpdate, comment)
	e.stamper.StampUpdate(next, actor)
	next.Version = current.Version + 1

	if err := e.records.Update(ctx, next, current.Version); err != nil {
		return nil, err
	}

	e.observe(ctx, event.NewEvent(event.TypeRecordUpdated, next, actor))
	return next, nil
}

// load reads a record within the actor's tenant
func (e *engineImpl) load(ctx context.Context, actor domainwf.Actor, id string) (*entity.Record, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	rec, err := e.records.Get(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if rec.TenantID != actor.TenantID {
		return nil, fmt.Errorf("%w: record %s", domainwf.ErrTenantMismatch, id)
	}
	return rec, nil
}

// appendTrail adds the next trail entry to rec, describing the move from prev
func (e *engineImpl) appendTrail(rec, prev *entity.Record, actor domainwf.Actor, action domainwf.Action, comment string) entity.TrailEntry {
	entry := entity.TrailEntry{
		Seq:        len(prev.Trail) + 1,
		ActorRole:  actor.Role,
		ActorID:    actor.UserID,
		Action:     action,
		Comment:    utils.SanitizeComment(comment),
		FromStage:  prev.Stage,
		FromStatus: prev.Status,
		ToStage:    rec.Stage,
		ToStatus:   rec.Status,
		Timestamp:  e.stamper.TrailTime(prev),
	}
	if action != domainwf.ActionUpdate {
		entry.Payload = rec.SnapshotPayload()
	}
	rec.Trail = append(rec.Trail, entry)
	return entry
}

func (e *engineImpl) checkSingleActive(ctx context.Context, def *domainwf.Definition, tenantID, subjectID string) error {
	existing, err := e.records.List(ctx, tenantID, port.RecordFilter{
		Workflow:  def.Type(),
		SubjectID: subjectID,
		Limit:     maxListLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to check active records: %w", err)
	}
	for _, rec := range existing {
		if def.Occupies(rec.State()) {
			return fmt.Errorf("%w: %s already has %s %s in %s", domainwf.ErrValidation, subjectID, def.Type(), rec.ID, rec.State())
		}
	}
	return nil
}

// runEffects dispatches the side effects of a committed transition, then notifies observers
func (e *engineImpl) runEffects(ctx context.Context, evt *event.Event) error {
	if e.dispatcher == nil {
		return nil
	}
	if err := e.dispatcher.Dispatch(ctx, evt); err != nil {
		failed := evt.WithCorrelation(evt.ID)
		failed.ID = uuid.NewString()
		failed.Type = event.TypeEffectsFailed
		e.dispatcher.DispatchAsync(ctx, failed)
		return fmt.Errorf("%w: %s %s: %v", domainwf.ErrEffectsIncomplete, evt.Workflow, evt.RecordID, err)
	}
	e.dispatcher.DispatchAsync(ctx, evt)
	return nil
}

func (e *engineImpl) observe(ctx context.Context, evt *event.Event) {
	if e.dispatcher != nil {
		e.dispatcher.DispatchAsync(ctx, evt)
	}
}

func (e *engineImpl) recordOutcome(wfType string, action domainwf.Action, err error, d time.Duration) {
	if e.metrics == nil || wfType == "" {
		return
	}
	e.metrics.ObserveTransition(wfType, string(action), Outcome(err), d)
}

// Outcome names the error kind of a transition for metrics and logs
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domainwf.ErrIllegalTransition):
		return "illegal"
	case errors.Is(err, domainwf.ErrUnauthorizedActor):
		return "unauthorized"
	case errors.Is(err, domainwf.ErrRecordLocked):
		return "locked"
	case errors.Is(err, domainwf.ErrTenantMismatch):
		return "tenant_mismatch"
	case errors.Is(err, domainwf.ErrStaleState):
		return "stale"
	case errors.Is(err, domainwf.ErrValidation):
		return "invalid"
	case errors.Is(err, domainwf.ErrNotFound):
		return "not_found"
	case errors.Is(err, domainwf.ErrEffectsIncomplete):
		return "effects_incomplete"
	default:
		return "error"
	}
}

func checkActor(actor domainwf.Actor) error {
	if actor.TenantID == "" || actor.UserID == "" || !actor.Role.IsValid() {
		return fmt.Errorf("%w: incomplete actor", domainwf.ErrUnauthorizedActor)
	}
	return nil
}

func checkVersion(rec *entity.Record, expected int64) error {
	if expected != 0 && expected != rec.Version {
		return fmt.Errorf("%w: record %s is at version %d, expected %d", domainwf.ErrStaleState, rec.ID, rec.Version, expected)
	}
	return nil
}

func canSee(actor domainwf.Actor, rec *entity.Record) bool {
	switch {
	case actor.Role.SeesTenant():
		return true
	case rec.SubjectID == actor.UserID:
		return true
	case actor.Role == domainwf.RoleManager && rec.ManagerID == actor.UserID:
		return true
	default:
		return false
	}
}
