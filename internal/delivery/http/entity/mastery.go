package entity

import "github.com/evandrarf/halpi-mastery/internal/mastery"

// Requests

type LearnerRequest struct {
	LearnerID string `json:"learner_id" query:"learner_id" validate:"required,max=100"`
}

type IdentificationAnswerRequest struct {
	LearnerID string `json:"learner_id" validate:"required,max=100"`
	Answer    string `json:"answer" validate:"required,max=200"`
}

type ConfirmRequest struct {
	LearnerID string `json:"learner_id" validate:"required,max=100"`
	Confirm   bool   `json:"confirm" validate:"required"`
}

type AnswersRequest struct {
	LearnerID string            `json:"learner_id" validate:"required,max=100"`
	Answers   map[string]string `json:"answers" validate:"required,dive,max=5000"`
}

type EvaluateRequest struct {
	LearnerID string `json:"learner_id" validate:"required,max=100"`
	// Answers replace the saved draft when present.
	Answers map[string]string `json:"answers" validate:"omitempty,dive,max=5000"`
}

type FinishRequest struct {
	LearnerID         string `json:"learner_id" validate:"required,max=100"`
	Override          bool   `json:"override"`
	EvaluateRemaining bool   `json:"evaluate_remaining"`
}

// Views

type FoundConcept struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type IdentificationView struct {
	Phase       mastery.IdentificationPhase `json:"phase"`
	Total       int                         `json:"total"`
	Found       []FoundConcept              `json:"found"`
	TargetIndex int                         `json:"target_index"`
	HintLevel   int                         `json:"hint_level"`
	Hint        string                      `json:"hint,omitempty"`
	Locked      bool                        `json:"locked"`
	Complete    bool                        `json:"complete"`
}

type RestitutionConceptSummary struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	FieldCount int      `json:"field_count"`
	Evaluated  bool     `json:"evaluated"`
	Pending    bool     `json:"pending"`
	Source     string   `json:"source,omitempty"`
	Score      *float64 `json:"score,omitempty"`
	Passed     bool     `json:"passed"`
}

type RestitutionView struct {
	Concepts  []RestitutionConceptSummary `json:"concepts"`
	Score     float64                     `json:"score"`
	MaxScore  float64                     `json:"max_score"`
	Evaluated int                         `json:"evaluated"`
	Total     int                         `json:"total"`
	Complete  bool                        `json:"complete"`
}

type SessionView struct {
	ActivityID     string              `json:"activity_id"`
	LearnerID      string              `json:"learner_id"`
	Step           mastery.Step        `json:"step"`
	Identification IdentificationView  `json:"identification"`
	Restitution    RestitutionView     `json:"restitution"`
	Conclusion     *mastery.Conclusion `json:"conclusion,omitempty"`
}

type IdentificationAnswerResponse struct {
	mastery.Attempt
	Identification IdentificationView `json:"identification"`
}

type HintResponse struct {
	mastery.HintView
	Locked bool `json:"locked"`
}

type RestitutionConceptView struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Fields      []mastery.Field     `json:"fields"`
	Answers     map[string]string   `json:"answers"`
	Evaluation  *mastery.Evaluation `json:"evaluation"`
	Pending     bool                `json:"pending"`
	HasSchema   bool                `json:"has_schema"`
	SchemaImage string              `json:"schema_image,omitempty"`
}

type EvaluationResponse struct {
	ConceptID  string             `json:"concept_id"`
	Evaluation mastery.Evaluation `json:"evaluation"`
	Fallback   bool               `json:"fallback"`
	Score      float64            `json:"score"`
	MaxScore   float64            `json:"max_score"`
}
