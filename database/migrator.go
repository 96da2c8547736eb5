package database

import (
	"github.com/evandrarf/halpi-mastery/internal/entity"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&entity.ActivityConcept{},
		&entity.MemorizationProgress{},
		&entity.ConceptRestitution{},
	)
	return err
}
