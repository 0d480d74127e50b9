package migrations

import (
	"gorm.io/gorm"

	"github.com/jmylchreest/audarr/internal/models"
)

// AllMigrations returns the full migration set in version order. audarr's
// schema is small enough that a single baseline migration carries it; new
// versions append here.
func AllMigrations() []Migration {
	return []Migration{
		schemaBaseline(),
	}
}

// schemaBaseline creates the track store schema.
func schemaBaseline() Migration {
	return Migration{
		Version:     "001",
		Description: "create track store schema",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.Track{})
		},
		// DropTable issues DROP TABLE IF EXISTS, so rolling back a
		// half-applied baseline cannot fail on a missing table.
		Down: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&models.Track{})
		},
	}
}
