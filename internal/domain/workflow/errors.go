package workflow

import "errors"

var (
	// ErrIllegalTransition is returned when no edge exists for the action from the current state
	ErrIllegalTransition = errors.New("illegal transition")

	// ErrUnauthorizedActor is returned when the edge exists but the actor may not take it
	ErrUnauthorizedActor = errors.New("unauthorized actor")

	// ErrRecordLocked is returned when a record in a terminal state is mutated
	ErrRecordLocked = errors.New("record locked")

	// ErrTenantMismatch is returned when a record belongs to another tenant
	ErrTenantMismatch = errors.New("tenant mismatch")

	// ErrStaleState is returned when the record changed since the caller read it
	ErrStaleState = errors.New("stale state")

	// ErrValidation is returned when a guard or payload rule rejects the request
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")

	// ErrEffectsIncomplete is returned when a transition committed but a side effect failed
	ErrEffectsIncomplete = errors.New("side effects incomplete")
)

var domainErrors = []error{
	ErrIllegalTransition,
	ErrUnauthorizedActor,
	ErrRecordLocked,
	ErrTenantMismatch,
	ErrStaleState,
	ErrValidation,
	ErrNotFound,
	ErrEffectsIncomplete,
}

// IsDomainError reports whether err wraps one of the workflow error kinds
func IsDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
