package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/ordersync/internal/domain/shared"
)

// EntityModel holds the id and audit columns of entity tables.
// Timestamps come from the domain, so GORM's auto time tracking is off.
type EntityModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (m EntityModel) entity() shared.Entity {
	return shared.Entity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

func entityModel(e shared.Entity) EntityModel {
	return EntityModel{ID: e.ID, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt}
}
