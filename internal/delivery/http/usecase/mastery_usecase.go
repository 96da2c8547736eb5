package usecase

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/evandrarf/halpi-mastery/internal/cache"
	"github.com/evandrarf/halpi-mastery/internal/delivery/http/entity"
	"github.com/evandrarf/halpi-mastery/internal/delivery/http/repository"
	"github.com/evandrarf/halpi-mastery/internal/mastery"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

type MasteryUsecase interface {
	Start(ctx context.Context, key mastery.SessionKey) (*entity.SessionView, error)
	GetSession(ctx context.Context, key mastery.SessionKey) (*entity.SessionView, error)
	SubmitIdentification(ctx context.Context, key mastery.SessionKey, answer string) (*entity.IdentificationAnswerResponse, error)
	RequestHint(ctx context.Context, key mastery.SessionKey) (*entity.HintResponse, error)
	ResetIdentification(ctx context.Context, key mastery.SessionKey) (*entity.SessionView, error)
	StartRestitution(ctx context.Context, key mastery.SessionKey) (*entity.SessionView, error)
	GetConcept(ctx context.Context, key mastery.SessionKey, conceptID string) (*entity.RestitutionConceptView, error)
	SaveAnswers(ctx context.Context, key mastery.SessionKey, conceptID string, answers map[string]string) (*entity.RestitutionConceptView, error)
	Evaluate(ctx context.Context, key mastery.SessionKey, conceptID string, answers map[string]string) (*entity.EvaluationResponse, error)
	Finish(ctx context.Context, key mastery.SessionKey, opts mastery.FinishOptions) (*mastery.Conclusion, error)
	Restart(ctx context.Context, key mastery.SessionKey) (*entity.SessionView, error)
	Shutdown(ctx context.Context) error
}

// CompletionHook is notified once per session when the conclusion is reached.
type CompletionHook func(key mastery.SessionKey, score, maxScore float64)

type MasteryConfig struct {
	DB         *gorm.DB
	Repository repository.MasteryRepository
	// Cache is optional.
	Cache      cache.ProgressCache
	Evaluator  mastery.Evaluator
	Log        logrus.FieldLogger
	Config     *viper.Viper
	OnComplete CompletionHook
}

type masteryUsecase struct {
	cfg    MasteryConfig
	store  *masteryStore
	source mastery.ConceptSource
	saver  *mastery.Saver
	log    logrus.FieldLogger

	evaluationTimeout time.Duration
	parallelism       int
	sessionTTL        time.Duration
	now               func() time.Time

	mu        sync.Mutex
	sessions  map[mastery.SessionKey]*liveSession
	lastSweep time.Time
}

// liveSession is a registry entry. Idle entries are flushed and dropped;
// the next request rebuilds them from the store.
type liveSession struct {
	session  *mastery.Session
	lastUsed time.Time
}

func NewMasteryUsecase(cfg MasteryConfig) MasteryUsecase {
	log := cfg.Log
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	cfg.Log = log
	if cfg.Config == nil {
		cfg.Config = viper.New()
	}
	cfg.Config.SetDefault("mastery.save_timeout", "10s")
	cfg.Config.SetDefault("mastery.evaluation_parallelism", 4)
	cfg.Config.SetDefault("mastery.session_ttl", "30m")
	cfg.Config.SetDefault("llm.timeout", "30s")

	u := &masteryUsecase{
		cfg:               cfg,
		store:             newMasteryStore(cfg.DB, cfg.Repository, cfg.Cache, log),
		source:            &conceptSource{db: cfg.DB, repo: cfg.Repository},
		saver:             mastery.NewSaver(cfg.Config.GetDuration("mastery.save_timeout"), log),
		log:               log,
		evaluationTimeout: cfg.Config.GetDuration("llm.timeout"),
		parallelism:       cfg.Config.GetInt("mastery.evaluation_parallelism"),
		sessionTTL:        cfg.Config.GetDuration("mastery.session_ttl"),
		now:               time.Now,
		sessions:          make(map[mastery.SessionKey]*liveSession),
	}
	return u
}

// session returns the live session for key, building it from the concept
// source and the store on first use.
func (u *masteryUsecase) session(ctx context.Context, key mastery.SessionKey) (*mastery.Session, error) {
	u.sweep(ctx)

	u.mu.Lock()
	e, ok := u.sessions[key]
	if ok {
		e.lastUsed = u.now()
	}
	u.mu.Unlock()
	if ok {
		return e.session, nil
	}

	concepts, err := u.source.Concepts(ctx, key)
	if err != nil {
		return nil, err
	}
	built, err := mastery.NewSession(ctx, mastery.SessionConfig{
		Key:               key,
		Concepts:          concepts,
		Evaluator:         u.cfg.Evaluator,
		Store:             u.store,
		Saver:             u.saver,
		Log:               u.log,
		Rand:              rand.New(rand.NewSource(time.Now().UnixNano())),
		EvaluationTimeout: u.evaluationTimeout,
		Parallelism:       u.parallelism,
		OnComplete: func(score, maxScore float64) {
			u.complete(key, score, maxScore)
		},
	})
	if err != nil {
		return nil, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	if e, ok := u.sessions[key]; ok {
		e.lastUsed = u.now()
		return e.session, nil
	}
	u.sessions[key] = &liveSession{session: built, lastUsed: u.now()}
	return built, nil
}

// sweep drops sessions idle for longer than the ttl. An entry is only
// dropped once its pending saves are flushed and nobody touched it since.
func (u *masteryUsecase) sweep(ctx context.Context) {
	if u.sessionTTL <= 0 {
		return
	}
	u.mu.Lock()
	now := u.now()
	if now.Sub(u.lastSweep) < u.sessionTTL/2 {
		u.mu.Unlock()
		return
	}
	u.lastSweep = now
	idle := make(map[mastery.SessionKey]liveSession)
	for key, e := range u.sessions {
		if now.Sub(e.lastUsed) >= u.sessionTTL {
			idle[key] = *e
		}
	}
	u.mu.Unlock()

	for key, e := range idle {
		u.evict(ctx, key, e.session, func(cur *liveSession) bool { return cur.lastUsed.Equal(e.lastUsed) })
	}
}

// evict flushes s and removes it from the registry when keep reports the
// entry is still the one that was flushed.
func (u *masteryUsecase) evict(ctx context.Context, key mastery.SessionKey, s *mastery.Session, keep func(*liveSession) bool) {
	if err := s.Flush(ctx); err != nil {
		u.log.WithError(err).WithFields(logrus.Fields{
			"activity_id": key.ActivityID,
			"learner_id":  key.LearnerID,
		}).Warn("flush before eviction failed")
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if cur, ok := u.sessions[key]; ok && cur.session == s && keep(cur) {
		delete(u.sessions, key)
	}
}

func (u *masteryUsecase) complete(key mastery.SessionKey, score, maxScore float64) {
	u.log.WithFields(logrus.Fields{
		"activity_id": key.ActivityID,
		"learner_id":  key.LearnerID,
		"score":       score,
		"max_score":   maxScore,
	}).Info("mastery completed")
	if u.cfg.OnComplete != nil {
		u.cfg.OnComplete(key, score, maxScore)
	}
}

func (u *masteryUsecase) Start(ctx context.Context, key mastery.SessionKey) (*entity.SessionView, error) {
	s, err := u.session(ctx, key)
	if err != nil {
		return nil, err
	}
	s.Begin()
	return buildSessionView(s), nil
}

func (u *masteryUsecase) GetSession(ctx context.Context, key mastery.SessionKey) (*entity.SessionView, error) {
	s, err := u.session(ctx, key)
	if err != nil {
		return nil, err
	}
	return buildSessionView(s), nil
}

func (u *masteryUsecase) SubmitIdentification(ctx context.Context, key mastery.SessionKey, answer string) (*entity.IdentificationAnswerResponse, error) {
	s, err := u.session(ctx, key)
	if err != nil {
		return nil, err
	}
	attempt, err := s.Submit(answer)
	if err != nil {
		return nil, err
	}
	return &entity.IdentificationAnswerResponse{
		Attempt:        attempt,
		Identification: buildIdentificationView(s.Identification()),
	}, nil
}

func (u *masteryUsecase) RequestHint(ctx context.Context, key mastery.SessionKey) (*entity.HintResponse, error) {
	s, err := u.session(ctx, key)
	if err != nil {
		return nil, err
	}
	hint, err := s.RequestHint()
	if err != nil {
		return nil, err
	}
	return &entity.HintResponse{
		HintView: hint,
		Locked:   s.Identification().State().Locked,
	}, nil
}

func (u *masteryUsecase) ResetIdentification(ctx context.Context, key mastery.SessionKey) (*entity.SessionView, error) {
	s, err := u.session(ctx, key)
	if err != nil {
		return nil, err
	}
	u.store.invalidate(ctx, key)
	s.ResetIdentification()
	return buildSessionView(s), nil
}

func (u *masteryUsecase) StartRestitution(ctx context.Context, key mastery.SessionKey) (*entity.SessionView, error) {
	s, err := u.session(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := s.StartRestitution(); err != nil {
		return nil, err
	}
	return buildSessionView(s), nil
}

func (u *masteryUsecase) GetConcept(ctx context.Context, key mastery.SessionKey, conceptID string) (*entity.RestitutionConceptView, error) {
	s, err := u.session(ctx, key)
	if err != nil {
		return nil, err
	}
	return buildConceptView(s.Restitution(), conceptID)
}

func (u *masteryUsecase) SaveAnswers(ctx context.Context, key mastery.SessionKey, conceptID string, answers map[string]string) (*entity.RestitutionConceptView, error) {
	s, err := u.session(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := s.SetAnswers(conceptID, answers); err != nil {
		return nil, err
	}
	return buildConceptView(s.Restitution(), conceptID)
}

func (u *masteryUsecase) Evaluate(ctx context.Context, key mastery.SessionKey, conceptID string, answers map[string]string) (*entity.EvaluationResponse, error) {
	s, err := u.session(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(answers) == 0 {
		answers = nil
	}
	eval, err := s.Evaluate(ctx, conceptID, answers)
	if err != nil {
		return nil, err
	}
	score, maxScore, _ := s.Restitution().Aggregate()
	return &entity.EvaluationResponse{
		ConceptID:  conceptID,
		Evaluation: eval,
		Fallback:   eval.Source() == mastery.SourceFallback,
		Score:      score,
		MaxScore:   maxScore,
	}, nil
}

func (u *masteryUsecase) Finish(ctx context.Context, key mastery.SessionKey, opts mastery.FinishOptions) (*mastery.Conclusion, error) {
	s, err := u.session(ctx, key)
	if err != nil {
		return nil, err
	}
	c, err := s.Finish(ctx, opts)
	if err != nil {
		return nil, err
	}
	// concluded sessions are read-only until restarted
	u.evict(ctx, key, s, func(*liveSession) bool { return true })
	return &c, nil
}

func (u *masteryUsecase) Restart(ctx context.Context, key mastery.SessionKey) (*entity.SessionView, error) {
	s, err := u.session(ctx, key)
	if err != nil {
		return nil, err
	}
	u.store.invalidate(ctx, key)
	s.Restart(ctx)
	return buildSessionView(s), nil
}

// Shutdown waits for every queued save.
func (u *masteryUsecase) Shutdown(ctx context.Context) error {
	return u.saver.Flush(ctx)
}

func buildSessionView(s *mastery.Session) *entity.SessionView {
	key := s.Key()
	view := &entity.SessionView{
		ActivityID:     key.ActivityID,
		LearnerID:      key.LearnerID,
		Step:           s.Step(),
		Identification: buildIdentificationView(s.Identification()),
		Restitution:    buildRestitutionView(s.Restitution()),
	}
	if c, ok := s.Conclusion(); ok {
		view.Conclusion = &c
	}
	return view
}

func buildIdentificationView(ident *mastery.Identification) entity.IdentificationView {
	st := ident.State()
	names := ident.FoundNames()
	found := make([]entity.FoundConcept, 0, len(st.Found))
	for i, id := range st.Found {
		fc := entity.FoundConcept{ID: id}
		if i < len(names) {
			fc.Name = names[i]
		}
		found = append(found, fc)
	}
	view := entity.IdentificationView{
		Phase:       st.Phase(),
		Total:       ident.Total(),
		Found:       found,
		TargetIndex: st.TargetIndex,
		HintLevel:   st.HintLevel,
		Locked:      st.Locked,
		Complete:    st.Complete,
	}
	if !st.Complete {
		view.Hint = ident.Hint().Text
	}
	return view
}

func buildRestitutionView(r *mastery.Restitution) entity.RestitutionView {
	concepts := r.Concepts()
	score, maxScore, evaluated := r.Aggregate()
	view := entity.RestitutionView{
		Concepts:  make([]entity.RestitutionConceptSummary, 0, len(concepts)),
		Score:     score,
		MaxScore:  maxScore,
		Evaluated: evaluated,
		Total:     len(concepts),
		Complete:  r.Complete(),
	}
	for _, c := range concepts {
		sum := entity.RestitutionConceptSummary{
			ID:         c.ID,
			Name:       c.Name,
			FieldCount: len(c.RequestedFields()),
			Pending:    r.Pending(c.ID),
		}
		if e, ok := r.Evaluation(c.ID); ok {
			conceptScore := e.Score()
			sum.Evaluated = true
			sum.Source = string(e.Source())
			sum.Score = &conceptScore
			sum.Passed = e.Passed()
		}
		view.Concepts = append(view.Concepts, sum)
	}
	return view
}

func buildConceptView(r *mastery.Restitution, conceptID string) (*entity.RestitutionConceptView, error) {
	fields, err := r.Fields(conceptID)
	if err != nil {
		return nil, err
	}
	var concept mastery.Concept
	for _, c := range r.Concepts() {
		if c.ID == conceptID {
			concept = c
			break
		}
	}
	view := &entity.RestitutionConceptView{
		ID:          concept.ID,
		Name:        concept.Name,
		Fields:      fields,
		Answers:     r.Answers(conceptID),
		Pending:     r.Pending(conceptID),
		HasSchema:   concept.HasSchema,
		SchemaImage: concept.SchemaImage,
	}
	if e, ok := r.Evaluation(conceptID); ok {
		view.Evaluation = &e
	}
	return view, nil
}
