package entity

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityConcept - Concepts authored by a learner for one activity
type ActivityConcept struct {
	ID         uint           `gorm:"primarykey" json:"id"`
	ActivityID string         `gorm:"size:100;not null;uniqueIndex:idx_activity_concepts_activity_user" json:"activity_id"` // e.g. "a2-ch0-step3"
	UserID     string         `gorm:"size:100;not null;uniqueIndex:idx_activity_concepts_activity_user;index" json:"user_id"`
	Concepts   datatypes.JSON `json:"concepts"` // JSON array of concept cards
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (ActivityConcept) TableName() string {
	return "activity_concepts"
}

// MemorizationProgress - Identification state and final result per learner and activity
type MemorizationProgress struct {
	ID                     uint           `gorm:"primarykey" json:"id"`
	ActivityID             string         `gorm:"size:100;not null;uniqueIndex:idx_memorization_progress_activity_user" json:"activity_id"`
	UserID                 string         `gorm:"size:100;not null;uniqueIndex:idx_memorization_progress_activity_user" json:"user_id"`
	ChapterID              string         `gorm:"size:50;index" json:"chapter_id"`
	ConceptOrder           datatypes.JSON `json:"concept_order"`  // shuffled concept ids
	FoundConcepts          datatypes.JSON `json:"found_concepts"` // ids in discovery order
	CurrentConceptIndex    int            `gorm:"default:0" json:"current_concept_index"`
	HintLevel              int            `gorm:"default:0" json:"hint_level"`
	Locked                 bool           `gorm:"default:false" json:"locked"`
	IdentificationComplete bool           `gorm:"default:false" json:"identification_complete"`
	EvaluatedConcepts      datatypes.JSON `json:"evaluated_concepts"`
	UserScore              float64        `gorm:"default:0" json:"user_score"`
	MaxScore               float64        `gorm:"default:0" json:"max_score"`
	Step                   string         `gorm:"size:20" json:"step"` // introduction, identification, restitution, conclusion
	IsComplete             bool           `gorm:"default:false" json:"is_complete"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

func (MemorizationProgress) TableName() string {
	return "memorization_progress"
}

// ConceptRestitution - Learner answers and evaluation for one concept
type ConceptRestitution struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	ActivityID    string         `gorm:"size:100;not null;uniqueIndex:idx_concept_restitutions_identity" json:"activity_id"`
	UserID        string         `gorm:"size:100;not null;uniqueIndex:idx_concept_restitutions_identity" json:"user_id"`
	ConceptID     string         `gorm:"size:100;not null;uniqueIndex:idx_concept_restitutions_identity" json:"concept_id"`
	UserResponses datatypes.JSON `json:"user_responses"`        // field key -> answer
	Evaluation    datatypes.JSON `json:"evaluation"`            // tagged remote/fallback result, null until evaluated
	Source        string         `gorm:"size:20" json:"source"` // remote, fallback
	NoteOn30      float64        `gorm:"column:note_on_30;default:0" json:"note_on_30"`
	Validated     *bool          `json:"validated"` // nil for fallback evaluations
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (ConceptRestitution) TableName() string {
	return "concept_restitutions"
}
