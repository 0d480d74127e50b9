// Package migrations tracks and applies schema migrations. Each migration
// runs inside a transaction together with the insert of its tracking row, so
// a failed migration leaves no partial state behind.
package migrations

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/jmylchreest/audarr/internal/observability"
)

// Migration is one versioned schema change. Down is optional; migrations
// without it refuse to roll back.
type Migration struct {
	Version     string
	Description string
	Up          func(tx *gorm.DB) error
	Down        func(tx *gorm.DB) error
}

// AppliedMigration is the tracking row recording that a version has run.
type AppliedMigration struct {
	ID          uint      `gorm:"primarykey"`
	Version     string    `gorm:"uniqueIndex;not null"`
	Description string    `gorm:"not null"`
	AppliedAt   time.Time `gorm:"not null"`
}

func (AppliedMigration) TableName() string {
	return "schema_migrations"
}

// Migrator applies registered migrations in version order.
type Migrator struct {
	db         *gorm.DB
	logger     *slog.Logger
	migrations []Migration
}

func NewMigrator(db *gorm.DB, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Migrator{db: db, logger: observability.WithComponent(logger, "migrator")}
}

// Register adds migrations to the set Up and Down consider.
func (m *Migrator) Register(migs ...Migration) {
	m.migrations = append(m.migrations, migs...)
}

// Init creates the tracking table. Up and Down call it themselves; it is
// exported for tools that only inspect state.
func (m *Migrator) Init(ctx context.Context) error {
	return m.db.WithContext(ctx).AutoMigrate(&AppliedMigration{})
}

// Up applies every registered migration that has no tracking row yet, in
// ascending version order.
func (m *Migrator) Up(ctx context.Context) error {
	if err := m.Init(ctx); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return fmt.Errorf("reading applied migrations: %w", err)
	}

	for _, mig := range m.pending(applied) {
		if err := m.apply(ctx, mig); err != nil {
			return fmt.Errorf("applying migration %s: %w", mig.Version, err)
		}
	}
	return nil
}

// pending sorts the registered set in place and filters out versions that
// already have a tracking row.
func (m *Migrator) pending(applied map[string]struct{}) []Migration {
	slices.SortFunc(m.migrations, func(a, b Migration) int {
		return strings.Compare(a.Version, b.Version)
	})

	var todo []Migration
	for _, mig := range m.migrations {
		if _, done := applied[mig.Version]; !done {
			todo = append(todo, mig)
		}
	}
	return todo
}

// apply runs one migration and its tracking insert in a single transaction.
func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	log := observability.WithOperation(m.logger, "migrate_up")
	log.InfoContext(ctx, "applying migration",
		slog.String("version", mig.Version),
		slog.String("description", mig.Description))

	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mig.Up(tx); err != nil {
			return err
		}
		return tx.Create(&AppliedMigration{
			Version:     mig.Version,
			Description: mig.Description,
			AppliedAt:   time.Now().UTC(),
		}).Error
	})
}

// Down rolls back the most recently applied migration. Rolling back an empty
// database is a no-op.
func (m *Migrator) Down(ctx context.Context) error {
	if err := m.Init(ctx); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	last, err := m.lastApplied(ctx)
	if err != nil {
		return err
	}
	if last == nil {
		m.logger.InfoContext(ctx, "no migrations to roll back")
		return nil
	}

	mig := m.definition(last.Version)
	switch {
	case mig == nil:
		return fmt.Errorf("no definition registered for version %s", last.Version)
	case mig.Down == nil:
		return fmt.Errorf("migration %s cannot be rolled back", last.Version)
	}

	log := observability.WithOperation(m.logger, "migrate_down")
	log.InfoContext(ctx, "rolling back migration",
		slog.String("version", mig.Version),
		slog.String("description", mig.Description))

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := mig.Down(tx); err != nil {
			return err
		}
		return tx.Where("version = ?", mig.Version).Delete(&AppliedMigration{}).Error
	})
	if err != nil {
		return fmt.Errorf("rolling back migration %s: %w", mig.Version, err)
	}
	return nil
}

// lastApplied returns the tracking row with the highest version, or nil when
// nothing has been applied.
func (m *Migrator) lastApplied(ctx context.Context) (*AppliedMigration, error) {
	var last AppliedMigration
	err := m.db.WithContext(ctx).Order("version DESC").First(&last).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("reading last migration: %w", err)
	}
	return &last, nil
}

func (m *Migrator) definition(version string) *Migration {
	for i := range m.migrations {
		if m.migrations[i].Version == version {
			return &m.migrations[i]
		}
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context) (map[string]struct{}, error) {
	var versions []string
	err := m.db.WithContext(ctx).Model(&AppliedMigration{}).Pluck("version", &versions).Error
	if err != nil {
		return nil, err
	}

	applied := make(map[string]struct{}, len(versions))
	for _, v := range versions {
		applied[v] = struct{}{}
	}
	return applied, nil
}
