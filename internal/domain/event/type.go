package event

import "github.com/smbgAlokk/bharatforce/internal/domain/workflow"

// Type identifies the type of domain event
type Type string

const (
	TypeRecordCreated      Type = "record.created"
	TypeRecordTransitioned Type = "record.transitioned"
	TypeRecordUpdated      Type = "record.updated"
	TypeEffectsFailed      Type = "record.effects_failed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRecordCreated,
		TypeRecordTransitioned,
		TypeRecordUpdated,
		TypeEffectsFailed:
		return true
	default:
		return false
	}
}

// Route selects side effects by the workflow and the status a record entered
type Route struct {
	Workflow workflow.Type
	Status   workflow.Status
}

// String returns the route as workflow:status
func (r Route) String() string {
	return string(r.Workflow) + ":" + string(r.Status)
}
