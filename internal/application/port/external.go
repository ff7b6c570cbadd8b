package port

import (
	"context"
	"time"

	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	"github.com/smbgAlokk/bharatforce/internal/domain/event"
)

// Notifier tells people about committed transitions
type Notifier interface {
	NotifyTransition(ctx context.Context, evt *event.Event) error
}

// EventPublisher publishes domain events to other systems
type EventPublisher interface {
	Publish(ctx context.Context, evt *event.Event) error
}

// LetterRequest holds the facts a proposal letter is drafted from
type LetterRequest struct {
	CompanyName    string
	EmployeeID     string
	Kind           string
	CurrentCTC     string
	ProposedCTC    string
	NewDesignation string
	EffectiveDate  string
	Justification  string
}

// LetterDrafter drafts the body of an increment or promotion letter
type LetterDrafter interface {
	DraftLetter(ctx context.Context, req LetterRequest) (string, error)
}

// StatementExporter renders a settlement statement document
type StatementExporter interface {
	ExportSettlement(rec *entity.Record, settlement *entity.SettlementPayload) ([]byte, error)
}

// MetricsRecorder records engine activity
type MetricsRecorder interface {
	ObserveTransition(workflow, action, outcome string, duration time.Duration)
	ObserveEffect(effect, outcome string)
}
