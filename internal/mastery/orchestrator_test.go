package mastery

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func newSession(t *testing.T, store Store, ev Evaluator, onComplete CompletionFunc) *Session {
	t.Helper()
	var saver *Saver
	if store != nil {
		saver = NewSaver(time.Second, nil)
	}
	s, err := NewSession(context.Background(), SessionConfig{
		Key:               testKey,
		Concepts:          fiveConcepts(),
		Evaluator:         ev,
		Store:             store,
		Saver:             saver,
		Rand:              seeded(),
		EvaluationTimeout: time.Second,
		Parallelism:       2,
		OnComplete:        onComplete,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func identifyAll(t *testing.T, s *Session) {
	t.Helper()
	for _, c := range fiveConcepts() {
		if _, err := s.Submit(c.Name); err != nil {
			t.Fatalf("Submit(%q): %v", c.Name, err)
		}
	}
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		pct  float64
		want Tier
	}{
		{100, TierExcellent},
		{80, TierExcellent},
		{79, TierGood},
		{60, TierGood},
		{59, TierFair},
		{40, TierFair},
		{39, TierNeedsPractice},
		{0, TierNeedsPractice},
	}
	for _, tt := range tests {
		if got := TierFor(tt.pct); got != tt.want {
			t.Errorf("TierFor(%v) = %q; want %q", tt.pct, got, tt.want)
		}
	}
}

func TestSessionStepGates(t *testing.T) {
	s := newSession(t, nil, nil, nil)
	if s.Step() != StepIntroduction {
		t.Fatalf("step = %q; want introduction", s.Step())
	}
	if _, err := s.Submit("Photosynthèse"); !errors.Is(err, ErrInvalidStep) {
		t.Errorf("Submit before Begin err = %v; want ErrInvalidStep", err)
	}

	s.Begin()
	if err := s.StartRestitution(); !errors.Is(err, ErrIdentificationIncomplete) {
		t.Errorf("StartRestitution err = %v; want ErrIdentificationIncomplete", err)
	}
	if _, err := s.Finish(context.Background(), FinishOptions{Override: true}); !errors.Is(err, ErrInvalidStep) {
		t.Errorf("Finish during identification err = %v; want ErrInvalidStep", err)
	}

	identifyAll(t, s)
	if err := s.StartRestitution(); err != nil {
		t.Fatalf("StartRestitution: %v", err)
	}
	if s.Step() != StepRestitution {
		t.Errorf("step = %q; want restitution", s.Step())
	}
	if _, err := s.RequestHint(); !errors.Is(err, ErrInvalidStep) {
		t.Errorf("RequestHint during restitution err = %v; want ErrInvalidStep", err)
	}
}

func TestSessionFinish(t *testing.T) {
	var calls int
	var gotScore, gotMax float64
	s := newSession(t, nil, fixedEvaluator(8), func(score, maxScore float64) {
		calls++
		gotScore, gotMax = score, maxScore
	})
	s.Begin()
	identifyAll(t, s)
	if err := s.StartRestitution(); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for _, id := range []string{"c1", "c2", "c3"} {
		if _, err := s.Evaluate(ctx, id, map[string]string{"what": "answer", "why": "answer"}); err != nil {
			t.Fatalf("Evaluate(%s): %v", id, err)
		}
	}
	if _, err := s.Finish(ctx, FinishOptions{}); !errors.Is(err, ErrRestitutionIncomplete) {
		t.Fatalf("Finish err = %v; want ErrRestitutionIncomplete", err)
	}

	c, err := s.Finish(ctx, FinishOptions{Override: true})
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	want := Conclusion{
		Score: 72, MaxScore: 90, Percentage: 80, Tier: TierExcellent, Message: TierExcellent.Message(),
		Evaluated: 3, Validated: 3, Total: 5, Override: true,
	}
	if !reflect.DeepEqual(c, want) {
		t.Errorf("conclusion = %+v; want %+v", c, want)
	}
	if calls != 1 || gotScore != 72 || gotMax != 90 {
		t.Errorf("callback calls = %d with %v/%v", calls, gotScore, gotMax)
	}

	if _, err := s.Finish(ctx, FinishOptions{Override: true}); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("callback calls = %d; want 1", calls)
	}
	if s.Step() != StepConclusion {
		t.Errorf("step = %q; want conclusion", s.Step())
	}
}

func TestSessionFinishEvaluatesRemaining(t *testing.T) {
	s := newSession(t, nil, fixedEvaluator(10), nil)
	s.Begin()
	identifyAll(t, s)
	if err := s.StartRestitution(); err != nil {
		t.Fatal(err)
	}
	for _, c := range fiveConcepts() {
		if err := s.SetAnswers(c.ID, map[string]string{"what": "draft"}); err != nil {
			t.Fatal(err)
		}
	}

	c, err := s.Finish(context.Background(), FinishOptions{EvaluateRemaining: true})
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if c.Evaluated != 5 || c.Score != 150 || c.Override {
		t.Errorf("conclusion = %+v; want 5 evaluated, 150 points, no override", c)
	}
}

func TestSessionResume(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	s := newSession(t, store, fixedEvaluator(7), nil)
	s.Begin()
	identifyAll(t, s)
	if err := s.StartRestitution(); err != nil {
		t.Fatal(err)
	}
	e, err := s.Evaluate(ctx, "c4", map[string]string{"what": "placebo"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	r := newSession(t, store, fixedEvaluator(7), nil)
	if r.Step() != StepRestitution {
		t.Errorf("restored step = %q; want restitution", r.Step())
	}
	if !reflect.DeepEqual(r.Identification().State(), s.Identification().State()) {
		t.Errorf("restored identification = %+v; want %+v", r.Identification().State(), s.Identification().State())
	}
	got, ok := r.Restitution().Evaluation("c4")
	if !ok || got.ID != e.ID {
		t.Errorf("restored evaluation = %+v; want id %q", got, e.ID)
	}
	if !reflect.DeepEqual(r.Progress(), s.Progress()) {
		t.Errorf("restored progress = %+v; want %+v", r.Progress(), s.Progress())
	}
}

func TestSessionRestoredConclusionDoesNotFire(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	s := newSession(t, store, fixedEvaluator(9), nil)
	s.Begin()
	identifyAll(t, s)
	if err := s.StartRestitution(); err != nil {
		t.Fatal(err)
	}
	want, err := s.Finish(ctx, FinishOptions{Override: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	calls := 0
	r := newSession(t, store, nil, func(float64, float64) { calls++ })
	got, ok := r.Conclusion()
	if !ok || !reflect.DeepEqual(got, want) {
		t.Errorf("restored conclusion = %+v; want %+v", got, want)
	}
	if _, err := r.Finish(ctx, FinishOptions{}); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("callback fired %d times on restore", calls)
	}
}

func TestSessionRestart(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	s := newSession(t, store, fixedEvaluator(9), nil)
	s.Begin()
	identifyAll(t, s)
	if err := s.StartRestitution(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Evaluate(ctx, "c1", map[string]string{"what": "x"}); err != nil {
		t.Fatal(err)
	}

	s.Restart(ctx)
	if s.Step() != StepIdentification {
		t.Errorf("step = %q; want identification", s.Step())
	}
	if len(s.Identification().State().Found) != 0 {
		t.Error("found set survived restart")
	}
	if _, _, n := s.Restitution().Aggregate(); n != 0 {
		t.Errorf("evaluated = %d after restart; want 0", n)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := store.LoadRestitution(ctx, testKey); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadRestitution err = %v; want ErrNotFound", err)
	}
}
