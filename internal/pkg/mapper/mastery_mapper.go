package mapper

import (
	"encoding/json"
	"fmt"

	dbEntity "github.com/evandrarf/halpi-mastery/internal/entity"
	"github.com/evandrarf/halpi-mastery/internal/mastery"
	"gorm.io/datatypes"
)

// ConvertToConcepts - Convert stored concept cards to domain concepts
func ConvertToConcepts(row *dbEntity.ActivityConcept) ([]mastery.Concept, error) {
	if row == nil || len(row.Concepts) == 0 {
		return nil, nil
	}
	var concepts []mastery.Concept
	if err := json.Unmarshal(row.Concepts, &concepts); err != nil {
		return nil, fmt.Errorf("decode concepts of %s: %w", row.ActivityID, err)
	}
	return concepts, nil
}

func ToActivityConcept(key mastery.SessionKey, concepts []mastery.Concept) (*dbEntity.ActivityConcept, error) {
	data, err := json.Marshal(concepts)
	if err != nil {
		return nil, err
	}
	return &dbEntity.ActivityConcept{
		ActivityID: key.ActivityID,
		UserID:     key.LearnerID,
		Concepts:   datatypes.JSON(data),
	}, nil
}

// ToIdentificationRow - Fill the identification columns of a progress row
func ToIdentificationRow(key mastery.SessionKey, state mastery.IdentificationState) (*dbEntity.MemorizationProgress, error) {
	order, err := marshalIDs(state.Order)
	if err != nil {
		return nil, err
	}
	found, err := marshalIDs(state.Found)
	if err != nil {
		return nil, err
	}
	return &dbEntity.MemorizationProgress{
		ActivityID:             key.ActivityID,
		UserID:                 key.LearnerID,
		ChapterID:              mastery.ChapterID(key.ActivityID),
		ConceptOrder:           order,
		FoundConcepts:          found,
		CurrentConceptIndex:    state.TargetIndex,
		HintLevel:              state.HintLevel,
		Locked:                 state.Locked,
		IdentificationComplete: state.Complete,
	}, nil
}

// ConvertToIdentificationState - Read the identification columns back. A row
// written only by result saves has no concept order and reports not found.
func ConvertToIdentificationState(row *dbEntity.MemorizationProgress) (mastery.IdentificationState, error) {
	order, err := unmarshalIDs(row.ConceptOrder)
	if err != nil {
		return mastery.IdentificationState{}, fmt.Errorf("decode concept order: %w", err)
	}
	if len(order) == 0 {
		return mastery.IdentificationState{}, mastery.ErrNotFound
	}
	found, err := unmarshalIDs(row.FoundConcepts)
	if err != nil {
		return mastery.IdentificationState{}, fmt.Errorf("decode found concepts: %w", err)
	}
	return mastery.IdentificationState{
		Order:       order,
		Found:       found,
		TargetIndex: row.CurrentConceptIndex,
		HintLevel:   row.HintLevel,
		Locked:      row.Locked,
		Complete:    row.IdentificationComplete,
	}, nil
}

// ToResultRow - Fill the step and score columns of a progress row
func ToResultRow(key mastery.SessionKey, p mastery.Progress) (*dbEntity.MemorizationProgress, error) {
	evaluated, err := marshalIDs(p.EvaluatedConcepts)
	if err != nil {
		return nil, err
	}
	return &dbEntity.MemorizationProgress{
		ActivityID:        key.ActivityID,
		UserID:            key.LearnerID,
		ChapterID:         mastery.ChapterID(key.ActivityID),
		EvaluatedConcepts: evaluated,
		UserScore:         p.Score,
		MaxScore:          p.MaxScore,
		Step:              string(p.Step),
		IsComplete:        p.Complete,
	}, nil
}

func ConvertToProgress(row *dbEntity.MemorizationProgress) (mastery.Progress, error) {
	if row.Step == "" {
		return mastery.Progress{}, mastery.ErrNotFound
	}
	evaluated, err := unmarshalIDs(row.EvaluatedConcepts)
	if err != nil {
		return mastery.Progress{}, fmt.Errorf("decode evaluated concepts: %w", err)
	}
	return mastery.Progress{
		Step:              mastery.Step(row.Step),
		Score:             row.UserScore,
		MaxScore:          row.MaxScore,
		EvaluatedConcepts: evaluated,
		Complete:          row.IsComplete,
	}, nil
}

func ToRestitutionRow(key mastery.SessionKey, rec mastery.RestitutionRecord) (*dbEntity.ConceptRestitution, error) {
	answers := rec.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	responses, err := json.Marshal(answers)
	if err != nil {
		return nil, err
	}
	evaluation, err := json.Marshal(rec.Evaluation)
	if err != nil {
		return nil, err
	}
	row := &dbEntity.ConceptRestitution{
		ActivityID:    key.ActivityID,
		UserID:        key.LearnerID,
		ConceptID:     rec.ConceptID,
		UserResponses: datatypes.JSON(responses),
		Evaluation:    datatypes.JSON(evaluation),
		Source:        string(rec.Evaluation.Source()),
		NoteOn30:      rec.Evaluation.Score(),
	}
	if r, ok := rec.Evaluation.Remote(); ok {
		v := r.Validated
		row.Validated = &v
	}
	return row, nil
}

func ConvertToRestitutionRecord(row *dbEntity.ConceptRestitution) (mastery.RestitutionRecord, error) {
	rec := mastery.RestitutionRecord{
		ConceptID: row.ConceptID,
		Answers:   map[string]string{},
		UpdatedAt: row.UpdatedAt,
	}
	if len(row.UserResponses) > 0 {
		if err := json.Unmarshal(row.UserResponses, &rec.Answers); err != nil {
			return mastery.RestitutionRecord{}, fmt.Errorf("decode responses of %s: %w", row.ConceptID, err)
		}
	}
	if len(row.Evaluation) > 0 {
		if err := json.Unmarshal(row.Evaluation, &rec.Evaluation); err != nil {
			return mastery.RestitutionRecord{}, fmt.Errorf("decode evaluation of %s: %w", row.ConceptID, err)
		}
	}
	return rec, nil
}

func marshalIDs(ids []string) (datatypes.JSON, error) {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func unmarshalIDs(data datatypes.JSON) ([]string, error) {
	ids := []string{}
	if len(data) == 0 {
		return ids, nil
	}
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
