package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jmylchreest/audarr/internal/models"
	"github.com/jmylchreest/audarr/internal/repository"
)

func setupTrackRepo(t *testing.T) repository.TrackRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Track{}))

	return repository.NewTrackRepository(db)
}

func createTrack(t *testing.T, repo repository.TrackRepository, path string) {
	t.Helper()

	track := &models.Track{
		Path:      path,
		SizeBytes: 1024,
		ModTime:   time.Now().UTC(),
		ProbedAt:  time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), track))
}

func TestNewScheduler_InvalidExpression(t *testing.T) {
	repo := setupTrackRepo(t)

	s, err := NewScheduler(repo, "not a cron expr")
	assert.Error(t, err)
	assert.Nil(t, s)

	s, err = NewScheduler(repo, "@every 1h")
	assert.Error(t, err, "descriptors are not part of the five-field syntax")
	assert.Nil(t, s)
}

func TestScheduler_DueSince(t *testing.T) {
	repo := setupTrackRepo(t)

	s, err := NewScheduler(repo, "*/5 * * * *")
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC)

	tests := []struct {
		name string
		last time.Time
		now  time.Time
		want bool
	}{
		{"occurrence inside window", base, base.Add(5 * time.Minute), true},
		{"window too short", base, base.Add(time.Minute), false},
		{"boundary is inclusive", base, time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC), true},
		{"long gap still fires", base, base.Add(time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.dueSince(tt.last, tt.now))
		})
	}
}

func TestScheduler_RunPrune(t *testing.T) {
	repo := setupTrackRepo(t)
	dir := t.TempDir()

	keep1 := filepath.Join(dir, "keep1.mp3")
	keep2 := filepath.Join(dir, "keep2.mp3")
	gone := filepath.Join(dir, "gone.mp3")
	require.NoError(t, os.WriteFile(keep1, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(keep2, []byte("x"), 0644))

	createTrack(t, repo, keep1)
	createTrack(t, repo, keep2)
	createTrack(t, repo, gone)

	s, err := NewScheduler(repo, "0 3 * * *")
	require.NoError(t, err)

	s.runPrune(context.Background())

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	remaining, err := repo.GetByPath(context.Background(), gone)
	require.NoError(t, err)
	assert.Nil(t, remaining)
}

func TestScheduler_StartStop(t *testing.T) {
	repo := setupTrackRepo(t)

	s, err := NewScheduler(repo, "0 3 * * *")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))

	// Second start while running is refused
	err = s.Start(ctx)
	assert.Error(t, err)

	s.Stop()

	// A stopped scheduler can start again
	require.NoError(t, s.Start(ctx))
	s.Stop()
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	repo := setupTrackRepo(t)

	s, err := NewScheduler(repo, "0 3 * * *")
	require.NoError(t, err)

	// Must return immediately rather than wait on a loop that never ran.
	s.Stop()
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present.mp3")
	require.NoError(t, os.WriteFile(present, []byte("x"), 0644))

	assert.True(t, fileExists(present))
	assert.False(t, fileExists(filepath.Join(dir, "absent.mp3")))
}
