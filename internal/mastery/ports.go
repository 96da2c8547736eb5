package mastery

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// EvaluationRequest is what the remote evaluator gets for one concept. Only
// requested (populated) fields are included.
type EvaluationRequest struct {
	ConceptID   string
	ConceptName string
	Fields      []Field
	Answers     map[string]string
}

// Evaluator is the remote evaluation service. Any error, including a
// malformed response, makes the caller fall back to local scoring.
type Evaluator interface {
	Evaluate(ctx context.Context, req EvaluationRequest) (RemoteResult, error)
}

// ConceptSource reads the authored concepts an exercise is built from.
type ConceptSource interface {
	Concepts(ctx context.Context, key SessionKey) ([]Concept, error)
}

// RestitutionRecord is the persisted per-concept restitution state.
type RestitutionRecord struct {
	ConceptID  string
	Answers    map[string]string
	Evaluation Evaluation
	UpdatedAt  time.Time
}

// Progress is the session level outcome written by the orchestrator.
type Progress struct {
	Step              Step
	Score             float64
	MaxScore          float64
	EvaluatedConcepts []string
	Complete          bool
}

// Store persists session state. Saves are upserts keyed by
// (activity, learner) or (activity, learner, concept); loads return
// ErrNotFound when nothing was stored yet.
type Store interface {
	LoadIdentification(ctx context.Context, key SessionKey) (IdentificationState, error)
	SaveIdentification(ctx context.Context, key SessionKey, state IdentificationState) error
	LoadRestitution(ctx context.Context, key SessionKey) ([]RestitutionRecord, error)
	SaveRestitution(ctx context.Context, key SessionKey, rec RestitutionRecord) error
	ClearRestitution(ctx context.Context, key SessionKey) error
	LoadProgress(ctx context.Context, key SessionKey) (Progress, error)
	SaveProgress(ctx context.Context, key SessionKey, p Progress) error
}

func orDiscard(log logrus.FieldLogger) logrus.FieldLogger {
	if log != nil {
		return log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
