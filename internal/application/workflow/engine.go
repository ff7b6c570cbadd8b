package workflow

import (
	"context"

	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	domainwf "github.com/smbgAlokk/bharatforce/internal/domain/workflow"
)

// CreateRequest opens a new workflow record
type CreateRequest struct {
	Workflow  domainwf.Type          `json:"workflow"`
	SubjectID string                 `json:"subject_id"`
	ManagerID string                 `json:"manager_id"`
	Payload   map[string]interface{} `json:"payload"`
}

// TransitionRequest asks to move a record along one edge.
// A non-zero ExpectedVersion must match the stored version.
type TransitionRequest struct {
	RecordID        string          `json:"record_id"`
	Action          domainwf.Action `json:"action"`
	Comment         string          `json:"comment"`
	ExpectedVersion int64           `json:"expected_version"`
}

// UpdateRequest merges a patch into the payload of a record. Null values delete keys.
type UpdateRequest struct {
	RecordID        string                 `json:"record_id"`
	Patch           map[string]interface{} `json:"patch"`
	Comment         string                 `json:"comment"`
	ExpectedVersion int64                  `json:"expected_version"`
}

// ListFilter narrows ListForActor
type ListFilter struct {
	Workflow  domainwf.Type   `form:"workflow"`
	Status    domainwf.Status `form:"status"`
	SubjectID string          `form:"subject_id"`
	Limit     int             `form:"limit"`
	Offset    int             `form:"offset"`
}

// MutateFunc changes a private copy of a record. Returning an error aborts the write.
type MutateFunc func(rec *entity.Record) error

// Engine drives workflow records through their definitions
type Engine interface {
	// Create opens a record in the initial state of its workflow
	Create(ctx context.Context, actor domainwf.Actor, req CreateRequest) (*entity.Record, error)

	// Get loads a record visible to the actor
	Get(ctx context.Context, actor domainwf.Actor, id string) (*entity.Record, error)

	// ListForActor lists the records of the actor's tenant the actor's role may see
	ListForActor(ctx context.Context, actor domainwf.Actor, filter ListFilter) ([]*entity.Record, error)

	// PermittedActions returns the actions the actor may take on a record
	PermittedActions(ctx context.Context, actor domainwf.Actor, id string) ([]domainwf.Action, error)

	// History returns the audit trail of a record
	History(ctx context.Context, actor domainwf.Actor, id string) ([]entity.TrailEntry, error)

	// ApplyTransition moves a record along one edge and runs its side effects
	ApplyTransition(ctx context.Context, actor domainwf.Actor, req TransitionRequest) (*entity.Record, error)

	// UpdatePayload edits the payload of a record under its edit policy
	UpdatePayload(ctx context.Context, actor domainwf.Actor, req UpdateRequest) (*entity.Record, error)

	// Mutate applies a system change to a record under the tenant, lock and version checks
	Mutate(ctx context.Context, actor domainwf.Actor, id string, expectedVersion int64, comment string, fn MutateFunc) (*entity.Record, error)

	// RetryEffects re-runs the side effects of the transition at trailSeq; zero means the last one
	RetryEffects(ctx context.Context, actor domainwf.Actor, id string, trailSeq int) (*entity.Record, error)

	// Registry returns the workflow definitions the engine runs
	Registry() *domainwf.Registry
}
