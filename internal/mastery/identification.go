package mastery

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/evandrarf/halpi-mastery/internal/pkg/hint"
	"github.com/evandrarf/halpi-mastery/internal/pkg/similarity"
)

const (
	CorrectThreshold = 0.80
	CloseThreshold   = 0.60
	OnTrackThreshold = 0.40
)

type Feedback string

const (
	FeedbackCorrect   Feedback = "correct"
	FeedbackClose     Feedback = "close"
	FeedbackOnTrack   Feedback = "on_track"
	FeedbackIncorrect Feedback = "incorrect"
)

// FeedbackFor maps a similarity score to the tier shown to the learner.
func FeedbackFor(score float64) Feedback {
	switch {
	case score >= CorrectThreshold:
		return FeedbackCorrect
	case score >= CloseThreshold:
		return FeedbackClose
	case score >= OnTrackThreshold:
		return FeedbackOnTrack
	}
	return FeedbackIncorrect
}

func (f Feedback) Message() string {
	switch f {
	case FeedbackCorrect:
		return "Correct!"
	case FeedbackClose:
		return "You're close! Try a slightly different wording."
	case FeedbackOnTrack:
		return "You're on the right track, but that's not quite it."
	}
	return "That's not the expected concept. Try to recall the key concepts of the chapter."
}

type IdentificationPhase string

const (
	PhaseUnlocked IdentificationPhase = "unlocked"
	PhaseLocked   IdentificationPhase = "locked"
	PhaseComplete IdentificationPhase = "complete"
)

// IdentificationState is the persisted form of the name recall exercise.
type IdentificationState struct {
	Order       []string `json:"order"`
	Found       []string `json:"found"`
	TargetIndex int      `json:"target_index"`
	HintLevel   int      `json:"hint_level"`
	Locked      bool     `json:"locked"`
	Complete    bool     `json:"complete"`
}

func (s IdentificationState) Phase() IdentificationPhase {
	switch {
	case s.Complete:
		return PhaseComplete
	case s.Locked:
		return PhaseLocked
	}
	return PhaseUnlocked
}

func (s IdentificationState) clone() IdentificationState {
	out := s
	out.Order = append([]string{}, s.Order...)
	out.Found = append([]string{}, s.Found...)
	return out
}

// Attempt is the outcome of one submitted name.
type Attempt struct {
	Feedback    Feedback `json:"feedback"`
	Message     string   `json:"message"`
	Similarity  float64  `json:"similarity"`
	FoundID     string   `json:"found_id,omitempty"`
	FoundName   string   `json:"found_name,omitempty"`
	TargetIndex int      `json:"target_index"`
	Locked      bool     `json:"locked"`
	Complete    bool     `json:"complete"`
}

type HintView struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

type IdentificationConfig struct {
	Key      SessionKey
	Concepts []Concept
	// Restored is the last stored state, nil on first entry.
	Restored   *IdentificationState
	Store      Store
	Saver      *Saver
	Log        logrus.FieldLogger
	Rand       *rand.Rand
	OnComplete func()
}

// Identification drives the "find the concept name" exercise.
type Identification struct {
	mu         sync.Mutex
	key        SessionKey
	byID       map[string]Concept
	state      IdentificationState
	found      map[string]struct{}
	store      Store
	saver      *Saver
	log        logrus.FieldLogger
	rnd        *rand.Rand
	onComplete func()
	completed  bool
}

func NewIdentification(cfg IdentificationConfig) (*Identification, error) {
	concepts := Freeze(cfg.Concepts)
	if len(concepts) == 0 {
		return nil, ErrNoConcepts
	}

	s := &Identification{
		key:        cfg.Key,
		byID:       make(map[string]Concept, len(concepts)),
		found:      make(map[string]struct{}),
		store:      cfg.Store,
		saver:      cfg.Saver,
		rnd:        cfg.Rand,
		onComplete: cfg.OnComplete,
		log: orDiscard(cfg.Log).WithFields(logrus.Fields{
			"activity_id": cfg.Key.ActivityID,
			"learner_id":  cfg.Key.LearnerID,
		}),
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.store != nil && s.saver == nil {
		s.saver = NewSaver(0, cfg.Log)
	}

	ids := make([]string, 0, len(concepts))
	for _, c := range concepts {
		s.byID[c.ID] = c
		ids = append(ids, c.ID)
	}

	if cfg.Restored != nil {
		s.restore(*cfg.Restored, ids)
	} else {
		s.state.Order = s.shuffled(ids)
	}
	return s, nil
}

func (s *Identification) shuffled(ids []string) []string {
	out := append([]string{}, ids...)
	s.rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// restore rebuilds state from a stored snapshot, dropping ids that are no
// longer part of the concept set and appending new ones in shuffled order.
func (s *Identification) restore(st IdentificationState, ids []string) {
	order := make([]string, 0, len(ids))
	inOrder := make(map[string]struct{}, len(ids))
	for _, id := range st.Order {
		if _, ok := s.byID[id]; !ok {
			continue
		}
		if _, dup := inOrder[id]; dup {
			continue
		}
		inOrder[id] = struct{}{}
		order = append(order, id)
	}
	var missing []string
	for _, id := range ids {
		if _, ok := inOrder[id]; !ok {
			missing = append(missing, id)
		}
	}
	order = append(order, s.shuffled(missing)...)

	s.state = IdentificationState{Order: order}
	for _, id := range st.Found {
		if _, ok := s.byID[id]; !ok {
			continue
		}
		if _, dup := s.found[id]; dup {
			continue
		}
		s.found[id] = struct{}{}
		s.state.Found = append(s.state.Found, id)
	}

	if len(s.found) == len(order) {
		s.state.Complete = true
		s.completed = true
		s.state.TargetIndex = clampIndex(st.TargetIndex, len(order))
		return
	}

	s.state.TargetIndex = clampIndex(st.TargetIndex, len(order))
	s.state.HintLevel = hint.Clamp(st.HintLevel)
	s.state.Locked = st.Locked && s.state.HintLevel > 0
	if _, ok := s.found[s.state.Order[s.state.TargetIndex]]; ok {
		s.state.HintLevel, s.state.Locked = 0, false
		s.advance()
	}
}

func clampIndex(i, n int) int {
	if i < 0 || i >= n {
		return 0
	}
	return i
}

// State returns a copy of the current state.
func (s *Identification) State() IdentificationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *Identification) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Complete
}

// Total is the number of concepts in the exercise.
func (s *Identification) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.Order)
}

// Hint returns the hint for the current target at the current level.
func (s *Identification) Hint() HintView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hintLocked()
}

func (s *Identification) hintLocked() HintView {
	if s.state.Complete || s.state.HintLevel == 0 {
		return HintView{Level: s.state.HintLevel}
	}
	target := s.byID[s.state.Order[s.state.TargetIndex]]
	return HintView{Level: s.state.HintLevel, Text: hint.For(target.Name, s.state.HintLevel)}
}

// FoundNames returns the names of found concepts in discovery order.
func (s *Identification) FoundNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.state.Found))
	for _, id := range s.state.Found {
		out = append(out, s.byID[id].Name)
	}
	return out
}

// Submit checks a typed name. While unlocked it is compared with every
// concept not found yet; once a hint was requested only the current target
// counts.
func (s *Identification) Submit(input string) (Attempt, error) {
	if strings.TrimSpace(input) == "" {
		return Attempt{}, ErrEmptyAnswer
	}

	s.mu.Lock()
	if s.state.Complete {
		s.mu.Unlock()
		return Attempt{}, ErrInvalidStep
	}

	var (
		bestID    string
		bestScore float64
	)
	if s.state.Locked {
		bestID = s.state.Order[s.state.TargetIndex]
		bestScore = similarity.Score(input, s.byID[bestID].Name)
	} else {
		n := len(s.state.Order)
		for i := 0; i < n; i++ {
			id := s.state.Order[(s.state.TargetIndex+i)%n]
			if _, ok := s.found[id]; ok {
				continue
			}
			if sc := similarity.Score(input, s.byID[id].Name); sc > bestScore || bestID == "" {
				bestID, bestScore = id, sc
			}
		}
	}

	fb := FeedbackFor(bestScore)
	at := Attempt{Feedback: fb, Message: fb.Message(), Similarity: bestScore}
	if fb != FeedbackCorrect {
		at.TargetIndex, at.Locked = s.state.TargetIndex, s.state.Locked
		s.mu.Unlock()
		return at, nil
	}

	s.markFound(bestID)
	at.FoundID, at.FoundName = bestID, s.byID[bestID].Name
	at.TargetIndex, at.Locked, at.Complete = s.state.TargetIndex, s.state.Locked, s.state.Complete
	fire := s.state.Complete && !s.completed
	if fire {
		s.completed = true
	}
	snap := s.state.clone()
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{"concept_id": bestID, "similarity": bestScore}).Debug("concept identified")
	s.persist(snap)
	if fire {
		s.log.Info("identification complete")
		if s.onComplete != nil {
			s.onComplete()
		}
	}
	return at, nil
}

func (s *Identification) markFound(id string) {
	s.found[id] = struct{}{}
	s.state.Found = append(s.state.Found, id)
	s.state.Locked = false
	s.state.HintLevel = 0
	if len(s.found) == len(s.state.Order) {
		s.state.Complete = true
		return
	}
	s.advance()
}

// advance moves the target to the first unfound concept, searching
// cyclically from the current position.
func (s *Identification) advance() {
	n := len(s.state.Order)
	for i := 0; i < n; i++ {
		idx := (s.state.TargetIndex + i) % n
		if _, ok := s.found[s.state.Order[idx]]; !ok {
			s.state.TargetIndex = idx
			return
		}
	}
	s.state.Complete = true
}

// RequestHint locks the exercise on the current target and reveals one more
// hint level, saturating at hint.MaxLevel.
func (s *Identification) RequestHint() (HintView, error) {
	s.mu.Lock()
	if s.state.Complete {
		s.mu.Unlock()
		return HintView{}, ErrInvalidStep
	}
	s.state.Locked = true
	s.state.HintLevel = hint.Clamp(s.state.HintLevel + 1)
	view := s.hintLocked()
	snap := s.state.clone()
	s.mu.Unlock()

	s.persist(snap)
	return view, nil
}

// Reset clears the found set and re-shuffles the order. Pending saves for
// the previous run are cancelled before the reset state is written.
func (s *Identification) Reset() {
	s.mu.Lock()
	s.found = make(map[string]struct{})
	s.state = IdentificationState{Order: s.shuffled(s.state.Order)}
	s.completed = false
	snap := s.state.clone()
	s.mu.Unlock()

	if s.saver != nil {
		s.saver.Cancel(s.saveKey())
	}
	s.log.Info("identification reset")
	s.persist(snap)
}

func (s *Identification) saveKey() string {
	return "identification:" + s.key.String()
}

func (s *Identification) persist(snap IdentificationState) {
	if s.store == nil {
		return
	}
	s.saver.Enqueue(s.saveKey(), func(ctx context.Context) error {
		return s.store.SaveIdentification(ctx, s.key, snap)
	})
}

// Flush waits for pending saves of this session.
func (s *Identification) Flush(ctx context.Context) error {
	if s.saver == nil {
		return nil
	}
	return s.saver.Wait(ctx, s.saveKey())
}
