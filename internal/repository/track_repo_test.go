package repository

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jmylchreest/audarr/internal/models"
)

func setupTrackTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.Track{})
	require.NoError(t, err)

	return db
}

func testTrack(path string) *models.Track {
	return &models.Track{
		Path:       path,
		SizeBytes:  24837205,
		ModTime:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		DurationMS: 185352,
		Container:  "flac",
		Codec:      "flac",
		SampleRate: 44100,
		Channels:   2,
		Bitrate:    1071872,
		Title:      "Song",
		Artist:     "Artist",
		Album:      "Album",
		ProbedAt:   time.Date(2025, 6, 1, 12, 0, 1, 0, time.UTC),
	}
}

func TestTrackRepo_Create(t *testing.T) {
	db := setupTrackTestDB(t)
	repo := NewTrackRepository(db)
	ctx := context.Background()

	track := testTrack("/music/a/one.flac")
	err := repo.Create(ctx, track)
	require.NoError(t, err)
	assert.False(t, track.ID.IsZero())

	// Unique path constraint
	err = repo.Create(ctx, testTrack("/music/a/one.flac"))
	assert.Error(t, err)
}

func TestTrackRepo_GetByID(t *testing.T) {
	db := setupTrackTestDB(t)
	repo := NewTrackRepository(db)
	ctx := context.Background()

	track := testTrack("/music/a/find.flac")
	require.NoError(t, repo.Create(ctx, track))

	t.Run("found", func(t *testing.T) {
		found, err := repo.GetByID(ctx, track.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "/music/a/find.flac", found.Path)
		assert.Equal(t, int64(185352), found.DurationMS)
	})

	t.Run("not found", func(t *testing.T) {
		found, err := repo.GetByID(ctx, models.NewULID())
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestTrackRepo_GetByPath(t *testing.T) {
	db := setupTrackTestDB(t)
	repo := NewTrackRepository(db)
	ctx := context.Background()

	track := testTrack("/music/a/by-path.flac")
	require.NoError(t, repo.Create(ctx, track))

	t.Run("found", func(t *testing.T) {
		found, err := repo.GetByPath(ctx, "/music/a/by-path.flac")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, track.ID, found.ID)
	})

	t.Run("not found", func(t *testing.T) {
		found, err := repo.GetByPath(ctx, "/music/a/nope.flac")
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestTrackRepo_List(t *testing.T) {
	db := setupTrackTestDB(t)
	repo := NewTrackRepository(db)
	ctx := context.Background()

	for _, path := range []string{"/music/c.flac", "/music/a.flac", "/music/b.flac"} {
		require.NoError(t, repo.Create(ctx, testTrack(path)))
	}

	all, total, err := repo.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 3)

	// Ordered by path
	assert.Equal(t, "/music/a.flac", all[0].Path)
	assert.Equal(t, "/music/b.flac", all[1].Path)
	assert.Equal(t, "/music/c.flac", all[2].Path)

	// Pagination window
	page, total, err := repo.List(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 1)
	assert.Equal(t, "/music/b.flac", page[0].Path)
}

func TestTrackRepo_Upsert(t *testing.T) {
	db := setupTrackTestDB(t)
	repo := NewTrackRepository(db)
	ctx := context.Background()

	first := testTrack("/music/a/upsert.flac")
	require.NoError(t, repo.Upsert(ctx, first))

	// Same path with refreshed probe data updates in place.
	second := testTrack("/music/a/upsert.flac")
	second.SizeBytes = 999
	second.Bitrate = 320000
	second.Title = "Remaster"
	require.NoError(t, repo.Upsert(ctx, second))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	found, err := repo.GetByPath(ctx, "/music/a/upsert.flac")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID, "conflict update must keep the original row ID")
	assert.Equal(t, int64(999), found.SizeBytes)
	assert.Equal(t, 320000, found.Bitrate)
	assert.Equal(t, "Remaster", found.Title)
}

func TestTrackRepo_Delete(t *testing.T) {
	db := setupTrackTestDB(t)
	repo := NewTrackRepository(db)
	ctx := context.Background()

	track := testTrack("/music/a/delete.flac")
	require.NoError(t, repo.Create(ctx, track))

	require.NoError(t, repo.Delete(ctx, track.ID))

	found, err := repo.GetByID(ctx, track.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	// Path is free again after a hard delete.
	require.NoError(t, repo.Create(ctx, testTrack("/music/a/delete.flac")))
}

func TestTrackRepo_PruneMissing(t *testing.T) {
	db := setupTrackTestDB(t)
	repo := NewTrackRepository(db)
	ctx := context.Background()

	for _, path := range []string{"/music/keep1.flac", "/music/gone.flac", "/music/keep2.flac"} {
		require.NoError(t, repo.Create(ctx, testTrack(path)))
	}

	pruned, err := repo.PruneMissing(ctx, func(path string) bool {
		return path != "/music/gone.flac"
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	found, err := repo.GetByPath(ctx, "/music/gone.flac")
	require.NoError(t, err)
	assert.Nil(t, found)

	t.Run("nothing missing", func(t *testing.T) {
		pruned, err := repo.PruneMissing(ctx, func(string) bool { return true })
		require.NoError(t, err)
		assert.Zero(t, pruned)
	})
}
