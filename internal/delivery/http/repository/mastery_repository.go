package repository

import (
	"github.com/evandrarf/halpi-mastery/internal/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type (
	MasteryRepository interface {
		// Concept operations
		UpsertConcepts(db *gorm.DB, concepts *entity.ActivityConcept) error
		FindConceptsByActivity(db *gorm.DB, activityID, userID string) (*entity.ActivityConcept, error)
		FindConceptsByChapter(db *gorm.DB, chapterID, userID string) ([]entity.ActivityConcept, error)

		// Progress operations
		FindProgress(db *gorm.DB, activityID, userID string) (*entity.MemorizationProgress, error)
		UpsertIdentification(db *gorm.DB, progress *entity.MemorizationProgress) error
		UpsertResult(db *gorm.DB, progress *entity.MemorizationProgress) error

		// Restitution operations
		FindRestitutions(db *gorm.DB, activityID, userID string) ([]entity.ConceptRestitution, error)
		UpsertRestitution(db *gorm.DB, restitution *entity.ConceptRestitution) error
		DeleteRestitutions(db *gorm.DB, activityID, userID string) error
	}

	masteryRepository struct {
		db *gorm.DB
	}
)

var (
	progressKey    = []clause.Column{{Name: "activity_id"}, {Name: "user_id"}}
	restitutionKey = []clause.Column{{Name: "activity_id"}, {Name: "user_id"}, {Name: "concept_id"}}
)

func NewMasteryRepository(db *gorm.DB) MasteryRepository {
	return &masteryRepository{db: db}
}

// Concept operations
func (r *masteryRepository) UpsertConcepts(db *gorm.DB, concepts *entity.ActivityConcept) error {
	if db == nil {
		db = r.db
	}
	return db.Clauses(clause.OnConflict{
		Columns:   progressKey,
		DoUpdates: clause.AssignmentColumns([]string{"concepts", "updated_at"}),
	}).Create(concepts).Error
}

func (r *masteryRepository) FindConceptsByActivity(db *gorm.DB, activityID, userID string) (*entity.ActivityConcept, error) {
	if db == nil {
		db = r.db
	}
	var concepts entity.ActivityConcept
	err := db.Where("activity_id = ? AND user_id = ?", activityID, userID).First(&concepts).Error
	if err != nil {
		return nil, err
	}
	return &concepts, nil
}

// FindConceptsByChapter returns every concept list the learner authored in
// the chapter, newest first.
func (r *masteryRepository) FindConceptsByChapter(db *gorm.DB, chapterID, userID string) ([]entity.ActivityConcept, error) {
	if db == nil {
		db = r.db
	}
	var concepts []entity.ActivityConcept
	err := db.Where("activity_id LIKE ? AND user_id = ?", "%-"+chapterID+"-%", userID).
		Order("updated_at DESC").
		Find(&concepts).Error
	return concepts, err
}

// Progress operations
func (r *masteryRepository) FindProgress(db *gorm.DB, activityID, userID string) (*entity.MemorizationProgress, error) {
	if db == nil {
		db = r.db
	}
	var progress entity.MemorizationProgress
	err := db.Where("activity_id = ? AND user_id = ?", activityID, userID).First(&progress).Error
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// UpsertIdentification writes the identification columns only, leaving the
// result columns of an existing row untouched.
func (r *masteryRepository) UpsertIdentification(db *gorm.DB, progress *entity.MemorizationProgress) error {
	if db == nil {
		db = r.db
	}
	return db.Clauses(clause.OnConflict{
		Columns: progressKey,
		DoUpdates: clause.AssignmentColumns([]string{
			"chapter_id",
			"concept_order",
			"found_concepts",
			"current_concept_index",
			"hint_level",
			"locked",
			"identification_complete",
			"updated_at",
		}),
	}).Create(progress).Error
}

// UpsertResult writes the step and score columns only.
func (r *masteryRepository) UpsertResult(db *gorm.DB, progress *entity.MemorizationProgress) error {
	if db == nil {
		db = r.db
	}
	return db.Clauses(clause.OnConflict{
		Columns: progressKey,
		DoUpdates: clause.AssignmentColumns([]string{
			"evaluated_concepts",
			"user_score",
			"max_score",
			"step",
			"is_complete",
			"updated_at",
		}),
	}).Create(progress).Error
}

// Restitution operations
func (r *masteryRepository) FindRestitutions(db *gorm.DB, activityID, userID string) ([]entity.ConceptRestitution, error) {
	if db == nil {
		db = r.db
	}
	var restitutions []entity.ConceptRestitution
	err := db.Where("activity_id = ? AND user_id = ?", activityID, userID).
		Order("concept_id ASC").
		Find(&restitutions).Error
	return restitutions, err
}

func (r *masteryRepository) UpsertRestitution(db *gorm.DB, restitution *entity.ConceptRestitution) error {
	if db == nil {
		db = r.db
	}
	return db.Clauses(clause.OnConflict{
		Columns: restitutionKey,
		DoUpdates: clause.AssignmentColumns([]string{
			"user_responses",
			"evaluation",
			"source",
			"note_on_30",
			"validated",
			"updated_at",
		}),
	}).Create(restitution).Error
}

func (r *masteryRepository) DeleteRestitutions(db *gorm.DB, activityID, userID string) error {
	if db == nil {
		db = r.db
	}
	return db.Where("activity_id = ? AND user_id = ?", activityID, userID).
		Delete(&entity.ConceptRestitution{}).Error
}
