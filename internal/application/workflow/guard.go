package workflow

import (
	"fmt"

	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	domainwf "github.com/smbgAlokk/bharatforce/internal/domain/workflow"
)

// LockGuard rejects mutations of records that reached a terminal state.
// Every write path calls CheckMutable before touching a record.
type LockGuard struct {
	registry *domainwf.Registry
}

// NewLockGuard creates a lock guard over a registry
func NewLockGuard(registry *domainwf.Registry) *LockGuard {
	return &LockGuard{registry: registry}
}

// IsLocked reports whether the record sits in a terminal state of its workflow
func (g *LockGuard) IsLocked(rec *entity.Record) bool {
	def, err := g.registry.Get(rec.Workflow)
	if err != nil {
		return true
	}
	return def.IsTerminal(rec.State())
}

// CheckMutable returns ErrRecordLocked for locked records
func (g *LockGuard) CheckMutable(rec *entity.Record) error {
	if g.IsLocked(rec) {
		return fmt.Errorf("%w: %s %s is %s", domainwf.ErrRecordLocked, rec.Workflow, rec.ID, rec.State())
	}
	return nil
}
