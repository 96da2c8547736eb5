package mastery

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultEvaluationTimeout = 30 * time.Second

type RestitutionConfig struct {
	Key      SessionKey
	Concepts []Concept
	// Restored holds previously stored per-concept records.
	Restored  []RestitutionRecord
	Evaluator Evaluator
	Store     Store
	Saver     *Saver
	Log       logrus.FieldLogger
	// Timeout bounds a single remote evaluation.
	Timeout time.Duration
	Now     func() time.Time
}

// Restitution drives the "restitute the concept's fields" exercise. Only
// concepts with at least one populated field take part.
type Restitution struct {
	mu       sync.Mutex
	key      SessionKey
	concepts []Concept
	byID     map[string]Concept
	answers  map[string]map[string]string
	evals    map[string]Evaluation
	pending  map[string]struct{}
	epoch    uint64

	evaluator Evaluator
	store     Store
	saver     *Saver
	log       logrus.FieldLogger
	timeout   time.Duration
	now       func() time.Time
}

func NewRestitution(cfg RestitutionConfig) *Restitution {
	r := &Restitution{
		key:       cfg.Key,
		byID:      make(map[string]Concept),
		answers:   make(map[string]map[string]string),
		evals:     make(map[string]Evaluation),
		pending:   make(map[string]struct{}),
		evaluator: cfg.Evaluator,
		store:     cfg.Store,
		saver:     cfg.Saver,
		timeout:   cfg.Timeout,
		now:       cfg.Now,
		log: orDiscard(cfg.Log).WithFields(logrus.Fields{
			"activity_id": cfg.Key.ActivityID,
			"learner_id":  cfg.Key.LearnerID,
		}),
	}
	if r.timeout <= 0 {
		r.timeout = defaultEvaluationTimeout
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.store != nil && r.saver == nil {
		r.saver = NewSaver(0, cfg.Log)
	}

	for _, c := range Freeze(cfg.Concepts) {
		if len(c.RequestedFields()) == 0 {
			continue
		}
		r.concepts = append(r.concepts, c)
		r.byID[c.ID] = c
	}

	for _, rec := range cfg.Restored {
		c, ok := r.byID[rec.ConceptID]
		if !ok {
			continue
		}
		if a := filterAnswers(c, rec.Answers); len(a) > 0 {
			r.answers[c.ID] = a
		}
		if !rec.Evaluation.IsZero() {
			r.evals[c.ID] = rec.Evaluation
		}
	}
	return r
}

// filterAnswers keeps answers for requested fields only.
func filterAnswers(c Concept, in map[string]string) map[string]string {
	out := make(map[string]string)
	for _, f := range c.RequestedFields() {
		if v, ok := in[f.Key]; ok {
			out[f.Key] = v
		}
	}
	return out
}

func blank(answers map[string]string) bool {
	for _, v := range answers {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Concepts returns the concepts taking part, in authoring order.
func (r *Restitution) Concepts() []Concept {
	out := make([]Concept, len(r.concepts))
	for i, c := range r.concepts {
		out[i] = c.clone()
	}
	return out
}

func (r *Restitution) concept(id string) (Concept, error) {
	c, ok := r.byID[id]
	if !ok {
		return Concept{}, fmt.Errorf("%w: %s", ErrUnknownConcept, id)
	}
	return c, nil
}

// Fields returns the requested field set of a concept.
func (r *Restitution) Fields(conceptID string) ([]Field, error) {
	c, err := r.concept(conceptID)
	if err != nil {
		return nil, err
	}
	return c.RequestedFields(), nil
}

func (r *Restitution) Answers(conceptID string) map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.answers[conceptID]))
	for k, v := range r.answers[conceptID] {
		out[k] = v
	}
	return out
}

func (r *Restitution) Evaluation(conceptID string) (Evaluation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.evals[conceptID]
	return e, ok
}

// Pending reports whether an evaluation of the concept is in flight.
func (r *Restitution) Pending(conceptID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[conceptID]
	return ok
}

// SetAnswers records draft answers for a concept and autosaves them. Keys
// that are not requested fields are ignored. State is keyed by the
// snapshot's concept id, never by the caller's string.
func (r *Restitution) SetAnswers(conceptID string, answers map[string]string) error {
	c, err := r.concept(conceptID)
	if err != nil {
		return err
	}
	a := filterAnswers(c, answers)

	r.mu.Lock()
	merged := make(map[string]string, len(a))
	for k, v := range r.answers[c.ID] {
		merged[k] = v
	}
	for k, v := range a {
		merged[k] = v
	}
	r.answers[c.ID] = merged
	rec := r.recordLocked(c.ID)
	r.mu.Unlock()

	r.persist(rec)
	return nil
}

func (r *Restitution) recordLocked(conceptID string) RestitutionRecord {
	ans := make(map[string]string, len(r.answers[conceptID]))
	for k, v := range r.answers[conceptID] {
		ans[k] = v
	}
	return RestitutionRecord{
		ConceptID:  conceptID,
		Answers:    ans,
		Evaluation: r.evals[conceptID],
		UpdatedAt:  r.now(),
	}
}

// Evaluate scores the answers for one concept. The remote evaluator is tried
// first; any failure falls back to local keyword scoring. A second call for
// the same concept while one is in flight returns ErrEvaluationPending, and
// a result that arrives after Reset returns ErrSuperseded.
func (r *Restitution) Evaluate(ctx context.Context, conceptID string, answers map[string]string) (Evaluation, error) {
	c, err := r.concept(conceptID)
	if err != nil {
		return Evaluation{}, err
	}

	r.mu.Lock()
	if answers == nil {
		answers = r.answers[c.ID]
	}
	a := filterAnswers(c, answers)
	if blank(a) {
		r.mu.Unlock()
		return Evaluation{}, ErrEmptyAnswer
	}
	if _, busy := r.pending[c.ID]; busy {
		r.mu.Unlock()
		return Evaluation{}, ErrEvaluationPending
	}
	r.pending[c.ID] = struct{}{}
	r.answers[c.ID] = a
	epoch := r.epoch
	r.mu.Unlock()

	requestID := uuid.NewString()
	log := r.log.WithFields(logrus.Fields{"concept_id": c.ID, "request_id": requestID})

	fields := c.RequestedFields()
	eval := r.evaluate(ctx, log, c, fields, a)
	eval.ID = requestID
	eval.EvaluatedAt = r.now()

	r.mu.Lock()
	if r.epoch != epoch {
		r.mu.Unlock()
		log.Debug("evaluation superseded")
		return Evaluation{}, ErrSuperseded
	}
	delete(r.pending, c.ID)
	r.evals[c.ID] = eval
	rec := r.recordLocked(c.ID)
	r.mu.Unlock()

	log.WithFields(logrus.Fields{"source": eval.Source(), "score": eval.Score()}).Info("concept evaluated")
	r.persist(rec)
	return eval, nil
}

func (r *Restitution) evaluate(ctx context.Context, log logrus.FieldLogger, c Concept, fields []Field, answers map[string]string) Evaluation {
	if r.evaluator != nil {
		rctx, cancel := context.WithTimeout(ctx, r.timeout)
		res, err := r.evaluator.Evaluate(rctx, EvaluationRequest{
			ConceptID:   c.ID,
			ConceptName: c.Name,
			Fields:      fields,
			Answers:     answers,
		})
		cancel()
		if err == nil {
			res, err = checkRemote(fields, res)
		}
		if err == nil {
			return NewRemoteEvaluation(res)
		}
		log.WithError(err).Warn("remote evaluation failed, using fallback")
	}
	return NewFallbackEvaluation(ScoreFallback(fields, answers))
}

var errMalformedResult = errors.New("malformed evaluation result")

// checkRemote rejects results with out of range notes or missing requested
// fields and drops fields that were not requested.
func checkRemote(fields []Field, res RemoteResult) (RemoteResult, error) {
	if !inRange(res.OverallNote, MaxConceptNote) {
		return RemoteResult{}, fmt.Errorf("%w: overall note %v", errMalformedResult, res.OverallNote)
	}
	out := make(map[string]FieldEvaluation, len(fields))
	for _, f := range fields {
		fe, ok := res.Fields[f.Key]
		if !ok {
			return RemoteResult{}, fmt.Errorf("%w: missing field %q", errMalformedResult, f.Key)
		}
		if !inRange(fe.Note, MaxFieldNote) {
			return RemoteResult{}, fmt.Errorf("%w: field %q note %v", errMalformedResult, f.Key, fe.Note)
		}
		out[f.Key] = fe
	}
	res.Fields = out
	return res, nil
}

func inRange(v, hi float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= hi
}

// Aggregate sums the /30 score of every evaluated concept.
func (r *Restitution) Aggregate() (score, maxScore float64, evaluated int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.evals {
		score += e.Score()
		evaluated++
	}
	return score, float64(evaluated * MaxConceptNote), evaluated
}

// EvaluatedIDs lists evaluated concepts in authoring order.
func (r *Restitution) EvaluatedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.concepts {
		if _, ok := r.evals[c.ID]; ok {
			out = append(out, c.ID)
		}
	}
	return out
}

// Remaining lists concepts without an evaluation, in authoring order.
func (r *Restitution) Remaining() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.concepts {
		if _, ok := r.evals[c.ID]; !ok {
			out = append(out, c.ID)
		}
	}
	return out
}

// Complete reports whether every concept has an evaluation.
func (r *Restitution) Complete() bool {
	return len(r.Remaining()) == 0
}

// Reset drops all answers and evaluations. Pending evaluations are
// superseded and queued saves are cancelled before the stored records are
// cleared.
func (r *Restitution) Reset(ctx context.Context) {
	r.mu.Lock()
	r.epoch++
	r.answers = make(map[string]map[string]string)
	r.evals = make(map[string]Evaluation)
	r.pending = make(map[string]struct{})
	r.mu.Unlock()

	if r.store == nil {
		return
	}
	for _, c := range r.concepts {
		k := r.saveKey(c.ID)
		r.saver.Cancel(k)
		if err := r.saver.Wait(ctx, k); err != nil {
			r.log.WithError(err).Warn("waiting for restitution save")
		}
	}
	if err := r.store.ClearRestitution(ctx, r.key); err != nil {
		r.log.WithError(err).Warn("clear restitution failed")
	}
	r.log.Info("restitution reset")
}

func (r *Restitution) saveKey(conceptID string) string {
	return "restitution:" + r.key.String() + ":" + conceptID
}

func (r *Restitution) persist(rec RestitutionRecord) {
	if r.store == nil {
		return
	}
	r.saver.Enqueue(r.saveKey(rec.ConceptID), func(ctx context.Context) error {
		return r.store.SaveRestitution(ctx, r.key, rec)
	})
}

// Flush waits for pending saves of this session.
func (r *Restitution) Flush(ctx context.Context) error {
	if r.saver == nil {
		return nil
	}
	for _, c := range r.concepts {
		if err := r.saver.Wait(ctx, r.saveKey(c.ID)); err != nil {
			return err
		}
	}
	return nil
}
