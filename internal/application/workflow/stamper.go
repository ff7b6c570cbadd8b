package workflow

import (
	"time"

	"github.com/smbgAlokk/bharatforce/internal/domain/entity"
	domainwf "github.com/smbgAlokk/bharatforce/internal/domain/workflow"
)

// Clock returns the current time
type Clock func() time.Time

// Stamper sets audit fields and trail timestamps from the server clock.
// Client-supplied audit values are always overwritten.
type Stamper struct {
	now Clock
}

// NewStamper creates a stamper. A nil clock uses time.Now.
func NewStamper(now Clock) *Stamper {
	if now == nil {
		now = time.Now
	}
	return &Stamper{now: now}
}

// Now returns the current UTC time
func (s *Stamper) Now() time.Time {
	return s.now().UTC()
}

// StampCreate sets creation and update fields
func (s *Stamper) StampCreate(rec *entity.Record, actor domainwf.Actor) {
	ts := s.Now()
	rec.CreatedAt = ts
	rec.CreatedBy = actor.UserID
	rec.UpdatedAt = ts
	rec.UpdatedBy = actor.UserID
}

// StampUpdate sets update fields
func (s *Stamper) StampUpdate(rec *entity.Record, actor domainwf.Actor) {
	rec.UpdatedAt = s.Now()
	rec.UpdatedBy = actor.UserID
}

// TrailTime returns the timestamp of the next trail entry, never earlier than the last one
func (s *Stamper) TrailTime(rec *entity.Record) time.Time {
	ts := s.Now()
	if last := rec.LastEntry(); last != nil && ts.Before(last.Timestamp) {
		return last.Timestamp
	}
	return ts
}
