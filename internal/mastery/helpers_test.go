package mastery

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
)

type evaluatorFunc func(ctx context.Context, req EvaluationRequest) (RemoteResult, error)

func (f evaluatorFunc) Evaluate(ctx context.Context, req EvaluationRequest) (RemoteResult, error) {
	return f(ctx, req)
}

var errRemoteDown = errors.New("remote down")

func failingEvaluator() Evaluator {
	return evaluatorFunc(func(context.Context, EvaluationRequest) (RemoteResult, error) {
		return RemoteResult{}, errRemoteDown
	})
}

// fixedEvaluator gives every requested field the same note.
func fixedEvaluator(note float64) Evaluator {
	return evaluatorFunc(func(_ context.Context, req EvaluationRequest) (RemoteResult, error) {
		res := RemoteResult{Concept: req.ConceptName, Fields: map[string]FieldEvaluation{}}
		for _, f := range req.Fields {
			res.Fields[f.Key] = FieldEvaluation{Note: note, Comment: "ok"}
		}
		res.OverallNote = note * 3
		res.Validated = note >= PassingFieldNote
		return res, nil
	})
}

type memStore struct {
	mu       sync.Mutex
	ident    map[SessionKey]IdentificationState
	resti    map[SessionKey]map[string]RestitutionRecord
	progress map[SessionKey]Progress
}

func newMemStore() *memStore {
	return &memStore{
		ident:    make(map[SessionKey]IdentificationState),
		resti:    make(map[SessionKey]map[string]RestitutionRecord),
		progress: make(map[SessionKey]Progress),
	}
}

func (m *memStore) LoadIdentification(_ context.Context, key SessionKey) (IdentificationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.ident[key]
	if !ok {
		return IdentificationState{}, ErrNotFound
	}
	return st.clone(), nil
}

func (m *memStore) SaveIdentification(_ context.Context, key SessionKey, st IdentificationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ident[key] = st.clone()
	return nil
}

func (m *memStore) LoadRestitution(_ context.Context, key SessionKey) ([]RestitutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs, ok := m.resti[key]
	if !ok || len(recs) == 0 {
		return nil, ErrNotFound
	}
	out := make([]RestitutionRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConceptID < out[j].ConceptID })
	return out, nil
}

func (m *memStore) SaveRestitution(_ context.Context, key SessionKey, rec RestitutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resti[key] == nil {
		m.resti[key] = make(map[string]RestitutionRecord)
	}
	m.resti[key][rec.ConceptID] = rec
	return nil
}

func (m *memStore) ClearRestitution(_ context.Context, key SessionKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.resti, key)
	return nil
}

func (m *memStore) LoadProgress(_ context.Context, key SessionKey) (Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.progress[key]
	if !ok {
		return Progress{}, ErrNotFound
	}
	return p, nil
}

func (m *memStore) SaveProgress(_ context.Context, key SessionKey, p Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress[key] = p
	return nil
}

func (m *memStore) record(key SessionKey, conceptID string) (RestitutionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resti[key][conceptID]
	return r, ok
}

var testKey = SessionKey{ActivityID: "a2-ch0-step3", LearnerID: "learner-1"}

func seeded() *rand.Rand { return rand.New(rand.NewSource(7)) }

func fiveConcepts() []Concept {
	return []Concept{
		{ID: "c1", Name: "Photosynthèse", What: "Conversion de la lumière en énergie chimique"},
		{ID: "c2", Name: "Dissonance cognitive", What: "Tension entre deux croyances", Why: "Explique les changements d'attitude"},
		{ID: "c3", Name: "Cycle de Krebs", What: "Voie métabolique mitochondriale"},
		{ID: "c4", Name: "Effet placebo", What: "Amélioration sans principe actif"},
		{ID: "c5", Name: "Biais de confirmation", What: "Chercher ce qui confirme ses idées"},
	}
}
