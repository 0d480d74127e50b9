// Package models defines the GORM entities audarr persists.
package models

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel carries the primary key and timestamps shared by all entities.
type BaseModel struct {
	ID        ULID      `gorm:"primarykey;type:varchar(26)" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate mints an ID unless the caller set one.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID.IsZero() {
		b.ID = NewULID()
	}
	return nil
}
