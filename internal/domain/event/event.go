package event

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	"github.com/smbgAlokk/bharatforce/internal/domain/workflow"
)

// Event represents a domain event about one workflow record
type Event struct {
	ID            string          `json:"id"`
	Type          Type            `json:"type"`
	TenantID      string          `json:"tenant_id"`
	RecordID      string          `json:"record_id"`
	Workflow      workflow.Type   `json:"workflow"`
	Action        workflow.Action `json:"action,omitempty"`
	From          workflow.State  `json:"from"`
	To            workflow.State  `json:"to"`
	TrailSeq      int             `json:"trail_seq"`
	Actor         workflow.Actor  `json:"actor"`
	Record        *entity.Record  `json:"record,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
}

// NewEvent creates an event for a record snapshot. From and To default to the record state.
func NewEvent(eventType Type, rec *entity.Record, actor workflow.Actor) *Event {
	snapshot := rec.Clone()
	e := &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		TenantID:      rec.TenantID,
		RecordID:      rec.ID,
		Workflow:      rec.Workflow,
		From:          rec.State(),
		To:            rec.State(),
		Actor:         actor,
		Record:        snapshot,
		Timestamp:     time.Now(),
		CorrelationID: uuid.NewString(),
	}
	if last := rec.LastEntry(); last != nil {
		e.TrailSeq = last.Seq
		e.Action = last.Action
		e.Timestamp = last.Timestamp
	}
	return e
}

// NewTransitionEvent creates an event for the transition recorded by entry
func NewTransitionEvent(rec *entity.Record, entry entity.TrailEntry, actor workflow.Actor) *Event {
	e := NewEvent(TypeRecordTransitioned, rec, actor)
	e.Action = entry.Action
	e.From = workflow.AtStage(entry.FromStage, entry.FromStatus)
	e.To = workflow.AtStage(entry.ToStage, entry.ToStatus)
	e.TrailSeq = entry.Seq
	e.Timestamp = entry.Timestamp
	return e
}

// WithCorrelation returns a copy of the event linked to a correlation chain
func (e *Event) WithCorrelation(correlationID string) *Event {
	c := *e
	c.CorrelationID = correlationID
	return &c
}

// Route returns the side-effect route of the event
func (e *Event) Route() Route {
	return Route{Workflow: e.Workflow, Status: e.To.Status}
}

// EffectKey builds the idempotency key of a named side effect for this event
func (e *Event) EffectKey(effect string) string {
	return e.RecordID + ":" + strconv.Itoa(e.TrailSeq) + ":" + effect
}
