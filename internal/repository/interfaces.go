// Package repository defines data access interfaces for audarr entities.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"

	"github.com/jmylchreest/audarr/internal/models"
)

// TrackRepository defines operations for probed track persistence.
type TrackRepository interface {
	// Create creates a new track.
	Create(ctx context.Context, track *models.Track) error
	// GetByID retrieves a track by ID.
	GetByID(ctx context.Context, id models.ULID) (*models.Track, error)
	// GetByPath retrieves a track by its canonical path.
	GetByPath(ctx context.Context, path string) (*models.Track, error)
	// List retrieves tracks ordered by path with pagination.
	List(ctx context.Context, offset, limit int) ([]*models.Track, int64, error)
	// Update updates an existing track.
	Update(ctx context.Context, track *models.Track) error
	// Upsert creates a track, or refreshes the probe columns of the
	// existing row with the same path. The row keeps its original ID;
	// callers that need it should re-read by path.
	Upsert(ctx context.Context, track *models.Track) error
	// Delete deletes a track by ID.
	Delete(ctx context.Context, id models.ULID) error
	// Count returns the total number of tracks.
	Count(ctx context.Context) (int64, error)
	// PruneMissing deletes tracks whose path fails the exists check,
	// returning the number of rows removed.
	PruneMissing(ctx context.Context, exists func(path string) bool) (int64, error)
}
