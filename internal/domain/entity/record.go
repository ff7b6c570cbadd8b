package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/smbgAlokk/bharatforce/internal/domain/workflow"
)

// Record is a workflow record: one resignation, leave request, expense claim, proposal,
// appraisal, settlement, profile change or rater assignment
type Record struct {
	ID        string                 `json:"id"`
	TenantID  string                 `json:"tenant_id"`
	Workflow  workflow.Type          `json:"workflow"`
	Stage     workflow.Stage         `json:"stage,omitempty"`
	Status    workflow.Status        `json:"status"`
	SubjectID string                 `json:"subject_id"`
	ManagerID string                 `json:"manager_id,omitempty"`
	Payload   map[string]interface{} `json:"payload"`
	Trail     []TrailEntry           `json:"trail"`
	Version   int64                  `json:"version"`
	CreatedAt time.Time              `json:"created_at"`
	CreatedBy string                 `json:"created_by"`
	UpdatedAt time.Time              `json:"updated_at"`
	UpdatedBy string                 `json:"updated_by"`
}

// TrailEntry is one append-only audit entry of a record
type TrailEntry struct {
	Seq        int             `json:"seq"`
	ActorRole  workflow.Role   `json:"actor_role"`
	ActorID    string          `json:"actor_id"`
	Action     workflow.Action `json:"action"`
	Comment    string          `json:"comment,omitempty"`
	FromStage  workflow.Stage  `json:"from_stage,omitempty"`
	FromStatus workflow.Status `json:"from_status"`
	ToStage    workflow.Stage  `json:"to_stage,omitempty"`
	ToStatus   workflow.Status `json:"to_status"`
	Timestamp  time.Time       `json:"timestamp"`
	// Payload is the record payload right after a transition; update entries leave it empty
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// State returns the current workflow state of the record
func (r *Record) State() workflow.State {
	return workflow.AtStage(r.Stage, r.Status)
}

// Subject returns the facts edge resolution needs
func (r *Record) Subject() workflow.Subject {
	return workflow.Subject{
		OwnerID:   r.SubjectID,
		ManagerID: r.ManagerID,
		Payload:   r.Payload,
	}
}

// LastEntry returns the most recent trail entry, or nil for an empty trail
func (r *Record) LastEntry() *TrailEntry {
	if len(r.Trail) == 0 {
		return nil
	}
	return &r.Trail[len(r.Trail)-1]
}

// LastTransition returns the most recent entry that changed state
func (r *Record) LastTransition() *TrailEntry {
	for i := len(r.Trail) - 1; i >= 0; i-- {
		if r.Trail[i].Action != workflow.ActionUpdate {
			return &r.Trail[i]
		}
	}
	return nil
}

// TransitionAt returns the entry with seq when it records a state change
func (r *Record) TransitionAt(seq int) *TrailEntry {
	if seq < 1 || seq > len(r.Trail) {
		return nil
	}
	entry := &r.Trail[seq-1]
	if entry.Seq != seq || entry.Action == workflow.ActionUpdate {
		return nil
	}
	return entry
}

// AsOf returns a copy of the record as the transition in entry left it.
// An entry without a payload snapshot keeps the current payload.
func (r *Record) AsOf(entry TrailEntry) *Record {
	c := r.Clone()
	c.Stage = entry.ToStage
	c.Status = entry.ToStatus
	if entry.Seq >= 0 && entry.Seq <= len(c.Trail) {
		c.Trail = c.Trail[:entry.Seq]
	}
	if entry.Payload != nil {
		c.Payload = clonePayload(entry.Payload)
	}
	return c
}

// SnapshotPayload returns a deep copy of the payload
func (r *Record) SnapshotPayload() map[string]interface{} {
	return clonePayload(r.Payload)
}

// Clone returns a deep copy so callers never share payload maps or trail slices
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Payload = clonePayload(r.Payload)
	if r.Trail != nil {
		c.Trail = make([]TrailEntry, len(r.Trail))
		for i, entry := range r.Trail {
			entry.Payload = clonePayload(entry.Payload)
			c.Trail[i] = entry
		}
	}
	return &c
}

// PayloadBool reads a boolean payload field
func (r *Record) PayloadBool(key string) bool {
	if val, ok := r.Payload[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return false
}

// PayloadString reads a string payload field
func (r *Record) PayloadString(key string) string {
	if val, ok := r.Payload[key]; ok {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}

// DecodePayload decodes a payload map into a typed payload struct
func DecodePayload(payload map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}

// EncodePayload converts a typed payload struct into a payload map
func EncodePayload(in interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	out := make(map[string]interface{})
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return out, nil
}

// clonePayload deep-copies a JSON-shaped map
func clonePayload(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return clonePayload(t)
	case []interface{}:
		s := make([]interface{}, len(t))
		for i := range t {
			s[i] = cloneValue(t[i])
		}
		return s
	default:
		return v
	}
}
