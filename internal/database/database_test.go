package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jmylchreest/audarr/internal/config"
	"github.com/jmylchreest/audarr/internal/database/migrations"
	"github.com/jmylchreest/audarr/internal/models"
)

// openTestDB opens a file-backed sqlite database under t.TempDir. New widens
// the sqlite pool to several connections, and with a plain :memory: DSN each
// pooled connection would see its own empty database.
func openTestDB(t *testing.T, opts *Options) *DB {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver:          "sqlite",
		DSN:             filepath.Join(t.TempDir(), "audarr.db"),
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		LogLevel:        "silent",
	}

	db, err := New(cfg, nil, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestNew_OpensSQLite(t *testing.T) {
	db := openTestDB(t, nil)

	require.NoError(t, db.Ping(context.Background()))
	assert.Equal(t, "sqlite", db.Driver())
}

func TestNew_SQLitePoolSizing(t *testing.T) {
	// The configured pool size is ignored for sqlite; the pool is clamped
	// to a handful of connections to keep writer contention down.
	cfg := config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          filepath.Join(t.TempDir(), "audarr.db"),
		MaxOpenConns: 64,
		MaxIdleConns: 32,
		LogLevel:     "silent",
	}

	db, err := New(cfg, nil, nil)
	require.NoError(t, err)
	defer db.Close()

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 4, stats["max_open_connections"])
	assert.Contains(t, stats, "open_connections")
	assert.Contains(t, stats, "in_use")
	assert.Contains(t, stats, "idle")
	assert.Contains(t, stats, "wait_count")
}

func TestNew_UnknownDriver(t *testing.T) {
	db, err := New(config.DatabaseConfig{Driver: "mssql", DSN: "server=localhost"}, nil, nil)

	assert.Nil(t, db)
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestDB_PingAfterClose(t *testing.T) {
	db := openTestDB(t, nil)
	ctx := context.Background()

	require.NoError(t, db.Ping(ctx))
	require.NoError(t, db.Close())
	assert.Error(t, db.Ping(ctx))
}

func TestDB_WithContext(t *testing.T) {
	db := openTestDB(t, nil)

	ctxDB := db.WithContext(context.Background())
	require.NotNil(t, ctxDB)
	assert.Equal(t, "sqlite", ctxDB.Driver())

	var one int
	require.NoError(t, ctxDB.Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}

func TestDB_Transaction(t *testing.T) {
	db := openTestDB(t, &Options{PrepareStmt: false})
	ctx := context.Background()

	require.NoError(t, db.DB.AutoMigrate(&models.Track{}))

	newTrack := func(path string) *models.Track {
		return &models.Track{
			Path:      path,
			SizeBytes: 1 << 20,
			ModTime:   time.Now().UTC(),
			Codec:     "flac",
			ProbedAt:  time.Now().UTC(),
		}
	}
	countByPath := func(path string) int64 {
		var count int64
		require.NoError(t, db.DB.Model(&models.Track{}).Where("path = ?", path).Count(&count).Error)
		return count
	}

	t.Run("commit", func(t *testing.T) {
		err := db.Transaction(ctx, func(tx *gorm.DB) error {
			return tx.Create(newTrack("/music/a/01 intro.flac")).Error
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), countByPath("/music/a/01 intro.flac"))
	})

	t.Run("rollback", func(t *testing.T) {
		boom := errors.New("probe rejected")
		err := db.Transaction(ctx, func(tx *gorm.DB) error {
			if err := tx.Create(newTrack("/music/a/02 reject.flac")).Error; err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.Zero(t, countByPath("/music/a/02 reject.flac"))
	})
}

func TestDB_SQLitePragmas(t *testing.T) {
	db := openTestDB(t, nil)

	var journalMode string
	require.NoError(t, db.DB.Raw("PRAGMA journal_mode").Scan(&journalMode).Error)
	assert.Equal(t, "wal", journalMode)

	var foreignKeys int
	require.NoError(t, db.DB.Raw("PRAGMA foreign_keys").Scan(&foreignKeys).Error)
	assert.Equal(t, 1, foreignKeys)

	var busyTimeout int
	require.NoError(t, db.DB.Raw("PRAGMA busy_timeout").Scan(&busyTimeout).Error)
	assert.Equal(t, 30000, busyTimeout)
}

func TestDB_MigrationsApply(t *testing.T) {
	db := openTestDB(t, nil)
	ctx := context.Background()

	migrator := migrations.NewMigrator(db.DB, nil)
	migrator.Register(migrations.AllMigrations()...)
	require.NoError(t, migrator.Up(ctx))

	assert.True(t, db.DB.Migrator().HasTable("tracks"))

	var records []migrations.AppliedMigration
	require.NoError(t, db.DB.Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, "001", records[0].Version)
	assert.WithinDuration(t, time.Now().UTC(), records[0].AppliedAt, time.Minute)
}

func TestGormLogLevel(t *testing.T) {
	levels := map[string]logger.LogLevel{
		"silent": logger.Silent,
		"error":  logger.Error,
		"warn":   logger.Warn,
		"info":   logger.Info,
	}
	for input, want := range levels {
		assert.Equal(t, want, gormLogLevel(input), input)
	}

	// Anything unrecognised lands on warn.
	assert.Equal(t, logger.Warn, gormLogLevel(""))
	assert.Equal(t, logger.Warn, gormLogLevel("everything"))
}

func TestGormTraceLogging(t *testing.T) {
	newTraceLogger := func(gormLevel string, slogLevel slog.Level) (*slogGormLogger, *bytes.Buffer) {
		var buf bytes.Buffer
		sl := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slogLevel}))
		return newGormLogger(gormLevel, sl), &buf
	}
	ctx := context.Background()

	t.Run("queries log at debug", func(t *testing.T) {
		gl, buf := newTraceLogger("info", slog.LevelDebug)
		gl.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT * FROM tracks", 3 }, nil)

		assert.Contains(t, buf.String(), "database query")
		assert.Contains(t, buf.String(), "SELECT * FROM tracks")
	})

	t.Run("sql rendering is skipped when nothing will log", func(t *testing.T) {
		gl, buf := newTraceLogger("info", slog.LevelInfo)
		rendered := false
		gl.Trace(ctx, time.Now(), func() (string, int64) {
			rendered = true
			return "SELECT * FROM tracks", 3
		}, nil)

		assert.Empty(t, buf.String())
		assert.False(t, rendered)
	})

	t.Run("errors always log", func(t *testing.T) {
		gl, buf := newTraceLogger("error", slog.LevelInfo)
		gl.Trace(ctx, time.Now(), func() (string, int64) { return "INSERT INTO tracks", 0 }, errors.New("constraint failed"))

		assert.Contains(t, buf.String(), "database error")
		assert.Contains(t, buf.String(), "constraint failed")
	})

	t.Run("record not found is not an error", func(t *testing.T) {
		gl, buf := newTraceLogger("error", slog.LevelInfo)
		gl.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT", 0 }, gorm.ErrRecordNotFound)

		assert.Empty(t, buf.String())
	})

	t.Run("slow queries warn", func(t *testing.T) {
		gl, buf := newTraceLogger("warn", slog.LevelInfo)
		gl.Trace(ctx, time.Now().Add(-2*slowQueryThreshold), func() (string, int64) { return "SELECT * FROM tracks", 50000 }, nil)

		assert.Contains(t, buf.String(), "slow query")
	})

	t.Run("silent drops everything", func(t *testing.T) {
		gl, buf := newTraceLogger("silent", slog.LevelDebug)
		gl.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, errors.New("boom"))

		assert.Empty(t, buf.String())
	})
}

func TestTruncateSQL(t *testing.T) {
	short := "SELECT id FROM tracks"
	assert.Equal(t, short, truncateSQL(short))

	long := strings.Repeat("x", maxSQLLogLength+1)
	got := truncateSQL(long)
	assert.True(t, strings.HasSuffix(got, " [truncated]"))
	assert.Len(t, got, maxSQLLogLength+len(" [truncated]"))
}
