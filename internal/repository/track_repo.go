package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jmylchreest/audarr/internal/models"
)

// trackRepo implements TrackRepository using GORM.
type trackRepo struct {
	db *gorm.DB
}

// NewTrackRepository creates a new TrackRepository.
func NewTrackRepository(db *gorm.DB) *trackRepo {
	return &trackRepo{db: db}
}

// Create creates a new track.
func (r *trackRepo) Create(ctx context.Context, track *models.Track) error {
	if err := r.db.WithContext(ctx).Create(track).Error; err != nil {
		return fmt.Errorf("creating track: %w", err)
	}
	return nil
}

// GetByID retrieves a track by ID.
func (r *trackRepo) GetByID(ctx context.Context, id models.ULID) (*models.Track, error) {
	var track models.Track
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&track).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting track by ID: %w", err)
	}
	return &track, nil
}

// GetByPath retrieves a track by its canonical path.
func (r *trackRepo) GetByPath(ctx context.Context, path string) (*models.Track, error) {
	var track models.Track
	if err := r.db.WithContext(ctx).Where("path = ?", path).First(&track).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting track by path: %w", err)
	}
	return &track, nil
}

// List retrieves tracks ordered by path with pagination.
func (r *trackRepo) List(ctx context.Context, offset, limit int) ([]*models.Track, int64, error) {
	var tracks []*models.Track
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.Track{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting tracks: %w", err)
	}

	q := r.db.WithContext(ctx).Order("path ASC").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&tracks).Error; err != nil {
		return nil, 0, fmt.Errorf("listing tracks: %w", err)
	}

	return tracks, total, nil
}

// Update updates an existing track.
func (r *trackRepo) Update(ctx context.Context, track *models.Track) error {
	if err := r.db.WithContext(ctx).Save(track).Error; err != nil {
		return fmt.Errorf("updating track: %w", err)
	}
	return nil
}

// Upsert creates a track or refreshes the probe columns of the existing
// row with the same path.
func (r *trackRepo) Upsert(ctx context.Context, track *models.Track) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"size_bytes", "mod_time", "duration_ms", "container", "codec",
			"sample_rate", "channels", "channel_layout", "bitrate",
			"stream_index", "title", "artist", "album", "probed_at",
			"updated_at",
		}),
	}).Create(track).Error; err != nil {
		return fmt.Errorf("upserting track: %w", err)
	}
	return nil
}

// Delete deletes a track by ID.
func (r *trackRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Track{}).Error; err != nil {
		return fmt.Errorf("deleting track: %w", err)
	}
	return nil
}

// Count returns the total number of tracks.
func (r *trackRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Track{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting tracks: %w", err)
	}
	return count, nil
}

// PruneMissing deletes tracks whose path fails the exists check.
// Batches use keyset pagination on the primary key, so deleting inside
// the walk cannot skip rows.
func (r *trackRepo) PruneMissing(ctx context.Context, exists func(path string) bool) (int64, error) {
	const batchSize = 500

	var pruned int64
	err := r.db.WithContext(ctx).
		Select("id", "path").
		Order("id ASC").
		FindInBatches(&[]models.Track{}, batchSize, func(tx *gorm.DB, batch int) error {
			tracks := tx.Statement.Dest.(*[]models.Track)
			var stale []models.ULID
			for i := range *tracks {
				if !exists((*tracks)[i].Path) {
					stale = append(stale, (*tracks)[i].ID)
				}
			}
			if len(stale) == 0 {
				return nil
			}

			res := r.db.WithContext(ctx).Where("id IN ?", stale).Delete(&models.Track{})
			if res.Error != nil {
				return res.Error
			}
			pruned += res.RowsAffected
			return nil
		}).Error
	if err != nil {
		return pruned, fmt.Errorf("pruning missing tracks: %w", err)
	}
	return pruned, nil
}

// Ensure trackRepo implements TrackRepository at compile time.
var _ TrackRepository = (*trackRepo)(nil)
