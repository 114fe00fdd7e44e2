package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity carries the identity and audit timestamps of a persisted aggregate
type Entity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewEntity assigns a fresh ID and stamps both timestamps with the current time
func NewEntity() Entity {
	now := time.Now()
	return Entity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// Touch moves UpdatedAt forward to at. An earlier time is ignored, so
// replaying a stale clock never rewinds the audit trail.
func (e *Entity) Touch(at time.Time) {
	if at.After(e.UpdatedAt) {
		e.UpdatedAt = at
	}
}
