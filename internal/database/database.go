// Package database manages the GORM connection for the track store. SQLite,
// PostgreSQL, and MySQL are supported; SQLite is the default deployment.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jmylchreest/audarr/internal/config"
)

// DB is the track store handle: GORM plus pool setup and lifecycle helpers.
type DB struct {
	*gorm.DB
	cfg    config.DatabaseConfig
	logger *slog.Logger
}

// Options tunes the connection beyond what DatabaseConfig carries.
type Options struct {
	// PrepareStmt caches prepared statements, on by default. Tests that
	// mix transactions over one SQLite handle turn it off.
	PrepareStmt bool
}

// New opens a database connection for the given configuration. Pass nil
// opts for the defaults (PrepareStmt: true).
func New(cfg config.DatabaseConfig, log *slog.Logger, opts *Options) (*DB, error) {
	if opts == nil {
		opts = &Options{PrepareStmt: true}
	}
	if log == nil {
		log = slog.Default()
	}

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newGormLogger(cfg.LogLevel, log),
		SkipDefaultTransaction: true,
		PrepareStmt:            opts.PrepareStmt,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{DB: gdb, cfg: cfg, logger: log}
	if err := db.configurePool(); err != nil {
		return nil, err
	}
	return db, nil
}

// sqlitePragmas ride the DSN so they apply to every pooled connection, not
// just the first one opened.
const sqlitePragmas = "_pragma=busy_timeout(30000)" +
	"&_pragma=journal_mode(WAL)" +
	"&_pragma=synchronous(NORMAL)" +
	"&_pragma=foreign_keys(ON)" +
	"&_pragma=temp_store(MEMORY)"

// dialectorFor picks the GORM dialector for the configured driver.
func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite":
		sep := "?"
		if strings.Contains(cfg.DSN, "?") {
			sep = "&"
		}
		return sqlite.Open(cfg.DSN + sep + sqlitePragmas), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	}
	return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
}

// configurePool sizes the connection pool. The track store sees small probe
// upserts and point reads, and SQLite in WAL mode wants few writers, so
// sqlite pools are clamped to a handful of connections regardless of the
// configured sizes.
func (db *DB) configurePool() error {
	h, err := db.sqlDB()
	if err != nil {
		return err
	}

	maxOpen, maxIdle := db.cfg.MaxOpenConns, db.cfg.MaxIdleConns
	if db.cfg.Driver == "sqlite" {
		maxOpen, maxIdle = 4, 2
	}
	h.SetMaxOpenConns(maxOpen)
	h.SetMaxIdleConns(maxIdle)
	h.SetConnMaxLifetime(db.cfg.ConnMaxLifetime)
	h.SetConnMaxIdleTime(db.cfg.ConnMaxIdleTime)

	db.logger.Info("database connected",
		slog.String("driver", db.cfg.Driver),
		slog.Int("max_open_conns", maxOpen),
		slog.Int("max_idle_conns", maxIdle),
	)
	return nil
}

// sqlDB unwraps the database/sql handle beneath GORM.
func (db *DB) sqlDB() (*sql.DB, error) {
	h, err := db.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	return h, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	h, err := db.sqlDB()
	if err != nil {
		return err
	}
	return h.Close()
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	h, err := db.sqlDB()
	if err != nil {
		return err
	}
	return h.PingContext(ctx)
}

// WithContext returns a new DB with the given context.
func (db *DB) WithContext(ctx context.Context) *DB {
	return &DB{DB: db.DB.WithContext(ctx), cfg: db.cfg, logger: db.logger}
}

// Transaction runs fn inside a transaction, rolling back when it errors.
func (db *DB) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return db.DB.WithContext(ctx).Transaction(fn)
}

// Driver returns the database driver name.
func (db *DB) Driver() string {
	return db.cfg.Driver
}

// Stats returns database connection pool statistics.
func (db *DB) Stats() (map[string]interface{}, error) {
	h, err := db.sqlDB()
	if err != nil {
		return nil, err
	}

	s := h.Stats()
	return map[string]interface{}{
		"max_open_connections": s.MaxOpenConnections,
		"open_connections":     s.OpenConnections,
		"in_use":               s.InUse,
		"idle":                 s.Idle,
		"wait_count":           s.WaitCount,
		"wait_duration":        s.WaitDuration.String(),
	}, nil
}

var gormLogLevels = map[string]logger.LogLevel{
	"silent": logger.Silent,
	"error":  logger.Error,
	"warn":   logger.Warn,
	"info":   logger.Info,
}

// gormLogLevel maps a config string to a GORM logger level. Unrecognised
// values fall back to warn.
func gormLogLevel(level string) logger.LogLevel {
	if l, ok := gormLogLevels[level]; ok {
		return l
	}
	return logger.Warn
}

// newGormLogger creates a GORM logger that forwards to slog.
func newGormLogger(level string, log *slog.Logger) *slogGormLogger {
	return &slogGormLogger{logger: log, level: gormLogLevel(level)}
}

// slogGormLogger implements GORM's logger.Interface on top of slog.
type slogGormLogger struct {
	logger *slog.Logger
	level  logger.LogLevel
}

func (l *slogGormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &slogGormLogger{logger: l.logger, level: level}
}

func (l *slogGormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.logf(ctx, logger.Info, slog.LevelInfo, msg, args)
}

func (l *slogGormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.logf(ctx, logger.Warn, slog.LevelWarn, msg, args)
}

func (l *slogGormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.logf(ctx, logger.Error, slog.LevelError, msg, args)
}

func (l *slogGormLogger) logf(ctx context.Context, min logger.LogLevel, level slog.Level, msg string, args []interface{}) {
	if l.level >= min {
		l.logger.Log(ctx, level, fmt.Sprintf(msg, args...))
	}
}

const (
	// Queries slower than slowQueryThreshold log at warn.
	slowQueryThreshold = time.Second
	// maxSQLLogLength caps the SQL text carried in a log record.
	maxSQLLogLength = 200
)

// truncateSQL caps the SQL text carried in a log record.
func truncateSQL(sql string) string {
	if len(sql) <= maxSQLLogLength {
		return sql
	}
	return sql[:maxSQLLogLength] + " [truncated]"
}

func (l *slogGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	isError := err != nil && err != gorm.ErrRecordNotFound
	isSlow := elapsed > slowQueryThreshold

	// fc() interpolates the full SQL string, so skip it unless slog will
	// actually emit the record.
	var willLog bool
	switch {
	case isError && l.level >= logger.Error:
		willLog = true
	case isSlow && l.level >= logger.Warn:
		willLog = l.logger.Enabled(ctx, slog.LevelWarn)
	case l.level >= logger.Info:
		willLog = l.logger.Enabled(ctx, slog.LevelDebug)
	}
	if !willLog {
		return
	}

	sqlStr, rows := fc()
	attrs := []any{
		slog.String("sql", truncateSQL(sqlStr)),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", elapsed),
	}

	switch {
	case isError:
		attrs = append(attrs, slog.String("error", err.Error()))
		l.logger.ErrorContext(ctx, "database error", attrs...)
	case isSlow:
		l.logger.WarnContext(ctx, "slow query", attrs...)
	default:
		l.logger.DebugContext(ctx, "database query", attrs...)
	}
}
