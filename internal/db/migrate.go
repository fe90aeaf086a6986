package db

import (
	"fmt"

	"github.com/zulandar/reputation/internal/config"
	"github.com/zulandar/reputation/internal/models"
	"github.com/zulandar/reputation/internal/record"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Slot{},
		&models.Agent{},
		&models.Event{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedAgents upserts identity registry rows from configuration. It exists
// for development databases; production identity rows belong to the
// identity registry.
func SeedAgents(db *gorm.DB, agents []config.AgentConfig) error {
	for _, ac := range agents {
		owner, err := record.ParseIdentity(ac.Owner)
		if err != nil {
			return fmt.Errorf("db: seed agent %d: %w", ac.ID, err)
		}

		agent := models.Agent{
			ID:       models.AgentKey(ac.ID),
			Owner:    owner.String(),
			TokenURI: ac.TokenURI,
		}

		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"owner", "token_uri"}),
		}).Create(&agent)
		if result.Error != nil {
			return fmt.Errorf("db: seed agent %d: %w", ac.ID, result.Error)
		}
	}
	return nil
}
