package mastery

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Step string

const (
	StepIntroduction   Step = "introduction"
	StepIdentification Step = "identification"
	StepRestitution    Step = "restitution"
	StepConclusion     Step = "conclusion"
)

var stepRank = map[Step]int{
	StepIntroduction:   0,
	StepIdentification: 1,
	StepRestitution:    2,
	StepConclusion:     3,
}

func (s Step) Valid() bool {
	_, ok := stepRank[s]
	return ok
}

type Tier string

const (
	TierExcellent     Tier = "excellent"
	TierGood          Tier = "good"
	TierFair          Tier = "fair"
	TierNeedsPractice Tier = "needs_practice"
)

func TierFor(percentage float64) Tier {
	switch {
	case percentage >= 80:
		return TierExcellent
	case percentage >= 60:
		return TierGood
	case percentage >= 40:
		return TierFair
	}
	return TierNeedsPractice
}

func (t Tier) Message() string {
	switch t {
	case TierExcellent:
		return "Excellent! You have a very good grasp of these concepts."
	case TierGood:
		return "Good work! You have a good understanding of the concepts."
	case TierFair:
		return "You're on the right track, but some concepts deserve another look."
	}
	return "These concepts still need work. Don't hesitate to review the chapter."
}

// Conclusion is the outcome carried to the final step.
type Conclusion struct {
	Score      float64 `json:"score"`
	MaxScore   float64 `json:"max_score"`
	Percentage float64 `json:"percentage"`
	Tier       Tier    `json:"tier"`
	Message    string  `json:"message"`
	Evaluated  int     `json:"evaluated"`
	Validated  int     `json:"validated"`
	Total      int     `json:"total"`
	Override   bool    `json:"override"`
}

// CompletionFunc is called once when a session reaches its conclusion.
type CompletionFunc func(score, maxScore float64)

type FinishOptions struct {
	// Override finishes even when some concepts were never evaluated.
	Override bool
	// EvaluateRemaining evaluates every unevaluated concept that has a
	// draft answer before finishing.
	EvaluateRemaining bool
}

type SessionConfig struct {
	Key               SessionKey
	Concepts          []Concept
	Evaluator         Evaluator
	Store             Store
	Saver             *Saver
	Log               logrus.FieldLogger
	Rand              *rand.Rand
	EvaluationTimeout time.Duration
	// Parallelism bounds concurrent evaluations run by Finish.
	Parallelism int
	Now         func() time.Time
	OnComplete  CompletionFunc
}

// Session sequences introduction, identification, restitution and
// conclusion for one learner on one activity.
type Session struct {
	mu          sync.Mutex
	key         SessionKey
	step        Step
	ident       *Identification
	resti       *Restitution
	conclusion  *Conclusion
	completed   bool
	store       Store
	saver       *Saver
	log         logrus.FieldLogger
	parallelism int
	onComplete  CompletionFunc
}

// NewSession builds a session from the concept snapshot and whatever was
// stored for the key before.
func NewSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	concepts := Freeze(cfg.Concepts)
	if len(concepts) == 0 {
		return nil, ErrNoConcepts
	}

	s := &Session{
		key:         cfg.Key,
		step:        StepIntroduction,
		store:       cfg.Store,
		saver:       cfg.Saver,
		parallelism: cfg.Parallelism,
		onComplete:  cfg.OnComplete,
		log: orDiscard(cfg.Log).WithFields(logrus.Fields{
			"activity_id": cfg.Key.ActivityID,
			"learner_id":  cfg.Key.LearnerID,
		}),
	}
	if s.parallelism <= 0 {
		s.parallelism = 4
	}
	if s.store != nil && s.saver == nil {
		s.saver = NewSaver(0, cfg.Log)
	}

	var (
		restoredIdent *IdentificationState
		restoredResti []RestitutionRecord
		progress      Progress
		hasProgress   bool
	)
	if s.store != nil {
		st, err := s.store.LoadIdentification(ctx, cfg.Key)
		switch {
		case err == nil:
			restoredIdent = &st
		case !errors.Is(err, ErrNotFound):
			s.log.WithError(err).Warn("load identification failed")
		}

		recs, err := s.store.LoadRestitution(ctx, cfg.Key)
		switch {
		case err == nil:
			restoredResti = recs
		case !errors.Is(err, ErrNotFound):
			s.log.WithError(err).Warn("load restitution failed")
		}

		p, err := s.store.LoadProgress(ctx, cfg.Key)
		switch {
		case err == nil:
			progress, hasProgress = p, true
		case !errors.Is(err, ErrNotFound):
			s.log.WithError(err).Warn("load progress failed")
		}
	}

	ident, err := NewIdentification(IdentificationConfig{
		Key:      cfg.Key,
		Concepts: concepts,
		Restored: restoredIdent,
		Store:    s.store,
		Saver:    s.saver,
		Log:      cfg.Log,
		Rand:     cfg.Rand,
		OnComplete: func() {
			s.log.Debug("identification gate open")
		},
	})
	if err != nil {
		return nil, err
	}
	s.ident = ident
	s.resti = NewRestitution(RestitutionConfig{
		Key:       cfg.Key,
		Concepts:  concepts,
		Restored:  restoredResti,
		Evaluator: cfg.Evaluator,
		Store:     s.store,
		Saver:     s.saver,
		Log:       cfg.Log,
		Timeout:   cfg.EvaluationTimeout,
		Now:       cfg.Now,
	})

	if hasProgress && progress.Step.Valid() {
		s.step = progress.Step
	}
	if stepRank[s.step] > stepRank[StepIdentification] && !s.ident.Complete() {
		s.step = StepIdentification
	}
	if s.step == StepConclusion {
		c := s.conclude(progress.Complete && !s.resti.Complete())
		s.conclusion = &c
		s.completed = true
	}
	return s, nil
}

func (s *Session) Key() SessionKey { return s.key }

func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Session) Identification() *Identification { return s.ident }

func (s *Session) Restitution() *Restitution { return s.resti }

func (s *Session) Conclusion() (Conclusion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conclusion == nil {
		return Conclusion{}, false
	}
	return *s.conclusion, true
}

// Begin leaves the introduction. It is a no-op past that step.
func (s *Session) Begin() {
	s.mu.Lock()
	if s.step != StepIntroduction {
		s.mu.Unlock()
		return
	}
	s.step = StepIdentification
	s.mu.Unlock()
	s.saveProgress()
}

// StartRestitution moves to the restitution step once every concept name
// was found.
func (s *Session) StartRestitution() error {
	s.mu.Lock()
	switch s.step {
	case StepRestitution:
		s.mu.Unlock()
		return nil
	case StepConclusion:
		s.mu.Unlock()
		return ErrInvalidStep
	}
	if !s.ident.Complete() {
		s.mu.Unlock()
		return ErrIdentificationIncomplete
	}
	s.step = StepRestitution
	s.mu.Unlock()

	s.log.Info("restitution started")
	s.saveProgress()
	return nil
}

func (s *Session) requireStep(step Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != step {
		return ErrInvalidStep
	}
	return nil
}

// Submit forwards a typed name to the identification exercise.
func (s *Session) Submit(input string) (Attempt, error) {
	if err := s.requireStep(StepIdentification); err != nil {
		return Attempt{}, err
	}
	return s.ident.Submit(input)
}

func (s *Session) RequestHint() (HintView, error) {
	if err := s.requireStep(StepIdentification); err != nil {
		return HintView{}, err
	}
	return s.ident.RequestHint()
}

// ResetIdentification restarts the name recall exercise. Later steps are
// gated on it again.
func (s *Session) ResetIdentification() {
	s.ident.Reset()
	s.mu.Lock()
	if s.step != StepIntroduction {
		s.step = StepIdentification
	}
	s.conclusion = nil
	s.mu.Unlock()
	s.saveProgress()
}

func (s *Session) SetAnswers(conceptID string, answers map[string]string) error {
	if err := s.requireStep(StepRestitution); err != nil {
		return err
	}
	return s.resti.SetAnswers(conceptID, answers)
}

// Evaluate scores one concept and records the new aggregate.
func (s *Session) Evaluate(ctx context.Context, conceptID string, answers map[string]string) (Evaluation, error) {
	if err := s.requireStep(StepRestitution); err != nil {
		return Evaluation{}, err
	}
	e, err := s.resti.Evaluate(ctx, conceptID, answers)
	if err != nil {
		return Evaluation{}, err
	}
	s.saveProgress()
	return e, nil
}

// Finish concludes the restitution step. Without Override every concept
// must have an evaluation.
func (s *Session) Finish(ctx context.Context, opts FinishOptions) (Conclusion, error) {
	s.mu.Lock()
	switch s.step {
	case StepConclusion:
		c := *s.conclusion
		s.mu.Unlock()
		return c, nil
	case StepRestitution:
	default:
		s.mu.Unlock()
		return Conclusion{}, ErrInvalidStep
	}
	s.mu.Unlock()

	if opts.EvaluateRemaining {
		if err := s.evaluateRemaining(ctx); err != nil {
			return Conclusion{}, err
		}
	}
	complete := s.resti.Complete()
	if !complete && !opts.Override {
		return Conclusion{}, ErrRestitutionIncomplete
	}

	s.mu.Lock()
	if s.step != StepRestitution {
		s.mu.Unlock()
		return Conclusion{}, ErrInvalidStep
	}
	c := s.conclude(!complete)
	s.conclusion = &c
	s.step = StepConclusion
	fire := !s.completed
	s.completed = true
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"score":     c.Score,
		"max_score": c.MaxScore,
		"override":  c.Override,
	}).Info("session concluded")
	s.saveProgress()
	if fire && s.onComplete != nil {
		s.onComplete(c.Score, c.MaxScore)
	}
	return c, nil
}

func (s *Session) evaluateRemaining(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, id := range s.resti.Remaining() {
		answers := s.resti.Answers(id)
		if blank(answers) {
			continue
		}
		g.Go(func() error {
			_, err := s.resti.Evaluate(gctx, id, answers)
			switch {
			case err == nil,
				errors.Is(err, ErrEvaluationPending),
				errors.Is(err, ErrEmptyAnswer):
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

func (s *Session) conclude(override bool) Conclusion {
	score, maxScore, evaluated := s.resti.Aggregate()
	c := Conclusion{
		Score:     math.Round(score*10) / 10,
		MaxScore:  maxScore,
		Evaluated: evaluated,
		Total:     len(s.resti.concepts),
		Override:  override,
	}
	if maxScore > 0 {
		c.Percentage = math.Round(score / maxScore * 100)
	}
	for _, id := range s.resti.EvaluatedIDs() {
		if e, ok := s.resti.Evaluation(id); ok && e.Passed() {
			c.Validated++
		}
	}
	c.Tier = TierFor(c.Percentage)
	c.Message = c.Tier.Message()
	return c
}

// Restart wipes both exercises and goes back to identification.
func (s *Session) Restart(ctx context.Context) {
	s.ident.Reset()
	s.resti.Reset(ctx)
	s.mu.Lock()
	s.step = StepIdentification
	s.conclusion = nil
	s.completed = false
	s.mu.Unlock()
	s.log.Info("session restarted")
	s.saveProgress()
}

// Progress reports the session level outcome as it is persisted.
func (s *Session) Progress() Progress {
	score, maxScore, _ := s.resti.Aggregate()
	s.mu.Lock()
	defer s.mu.Unlock()
	return Progress{
		Step:              s.step,
		Score:             score,
		MaxScore:          maxScore,
		EvaluatedConcepts: s.resti.EvaluatedIDs(),
		Complete:          s.step == StepConclusion,
	}
}

func (s *Session) saveProgress() {
	if s.store == nil {
		return
	}
	p := s.Progress()
	s.saver.Enqueue("progress:"+s.key.String(), func(ctx context.Context) error {
		return s.store.SaveProgress(ctx, s.key, p)
	})
}

// Flush waits for every pending save of the session.
func (s *Session) Flush(ctx context.Context) error {
	if err := s.ident.Flush(ctx); err != nil {
		return err
	}
	if err := s.resti.Flush(ctx); err != nil {
		return err
	}
	if s.saver == nil {
		return nil
	}
	return s.saver.Wait(ctx, "progress:"+s.key.String())
}
