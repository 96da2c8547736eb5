package mastery

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"
	"time"
)

func newIdent(t *testing.T, concepts []Concept, onComplete func()) *Identification {
	t.Helper()
	s, err := NewIdentification(IdentificationConfig{
		Key:        testKey,
		Concepts:   concepts,
		Rand:       seeded(),
		OnComplete: onComplete,
	})
	if err != nil {
		t.Fatalf("NewIdentification: %v", err)
	}
	return s
}

func currentTarget(s *Identification) string {
	st := s.State()
	return st.Order[st.TargetIndex]
}

func TestFeedbackFor(t *testing.T) {
	tests := []struct {
		score float64
		want  Feedback
	}{
		{1, FeedbackCorrect},
		{0.80, FeedbackCorrect},
		{0.79, FeedbackClose},
		{0.60, FeedbackClose},
		{0.59, FeedbackOnTrack},
		{0.40, FeedbackOnTrack},
		{0.39, FeedbackIncorrect},
		{0, FeedbackIncorrect},
	}
	for _, tt := range tests {
		if got := FeedbackFor(tt.score); got != tt.want {
			t.Errorf("FeedbackFor(%v) = %q; want %q", tt.score, got, tt.want)
		}
	}
}

func TestNewIdentificationNoConcepts(t *testing.T) {
	_, err := NewIdentification(IdentificationConfig{Key: testKey, Concepts: []Concept{{ID: "x"}}})
	if !errors.Is(err, ErrNoConcepts) {
		t.Fatalf("err = %v; want ErrNoConcepts", err)
	}
}

func TestIdentificationScenario(t *testing.T) {
	s := newIdent(t, []Concept{
		{ID: "c1", Name: "Photosynthèse"},
		{ID: "c2", Name: "Dissonance cognitive"},
	}, nil)

	at, err := s.Submit("disonance cognitive")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if at.Feedback != FeedbackCorrect || at.FoundID != "c2" {
		t.Fatalf("attempt = %+v; want c2 found", at)
	}
	if at.Similarity < 0.94 || at.Similarity > 0.96 {
		t.Errorf("similarity = %v; want about 0.95", at.Similarity)
	}
	if got := currentTarget(s); got != "c1" {
		t.Fatalf("target = %q; want c1", got)
	}

	h, err := s.RequestHint()
	if err != nil {
		t.Fatalf("RequestHint: %v", err)
	}
	if h.Level != 1 || h.Text != "P____________" {
		t.Errorf("hint = %+v; want level 1 %q", h, "P____________")
	}
	if !s.State().Locked {
		t.Error("expected locked after hint")
	}

	at, err = s.Submit("Photosynthese")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if at.FoundID != "c1" || !at.Complete {
		t.Fatalf("attempt = %+v; want c1 found and complete", at)
	}
	st := s.State()
	if st.Phase() != PhaseComplete || st.Locked || st.HintLevel != 0 {
		t.Errorf("state = %+v; want complete, unlocked, level 0", st)
	}
}

func TestIdentificationCompletesOnce(t *testing.T) {
	calls := 0
	concepts := fiveConcepts()
	s := newIdent(t, concepts, func() { calls++ })

	for _, i := range []int{3, 0, 4, 1, 2} {
		at, err := s.Submit(concepts[i].Name)
		if err != nil {
			t.Fatalf("Submit(%q): %v", concepts[i].Name, err)
		}
		if at.FoundID != concepts[i].ID {
			t.Fatalf("Submit(%q) found %q; want %q", concepts[i].Name, at.FoundID, concepts[i].ID)
		}
	}
	if !s.Complete() {
		t.Fatal("expected complete")
	}
	if calls != 1 {
		t.Errorf("completion calls = %d; want 1", calls)
	}
	if _, err := s.Submit(concepts[0].Name); !errors.Is(err, ErrInvalidStep) {
		t.Errorf("Submit after complete err = %v; want ErrInvalidStep", err)
	}
	if calls != 1 {
		t.Errorf("completion calls = %d; want 1", calls)
	}
}

func TestIdentificationLockedIgnoresOtherConcepts(t *testing.T) {
	concepts := fiveConcepts()
	s := newIdent(t, concepts, nil)

	if _, err := s.RequestHint(); err != nil {
		t.Fatalf("RequestHint: %v", err)
	}
	target := currentTarget(s)
	var other Concept
	for _, c := range concepts {
		if c.ID != target {
			other = c
			break
		}
	}

	at, err := s.Submit(other.Name)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if at.FoundID != "" {
		t.Errorf("locked submit found %q; want nothing", at.FoundID)
	}
	if len(s.State().Found) != 0 {
		t.Errorf("found = %v; want empty", s.State().Found)
	}
	if !s.State().Locked {
		t.Error("expected still locked")
	}
}

func TestIdentificationFreeSearchFindsAnyUnfound(t *testing.T) {
	concepts := fiveConcepts()
	s := newIdent(t, concepts, nil)
	target := currentTarget(s)
	for _, c := range concepts {
		if c.ID == target {
			continue
		}
		at, err := s.Submit(c.Name)
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if at.FoundID != c.ID {
			t.Fatalf("found %q; want %q", at.FoundID, c.ID)
		}
		if got := currentTarget(s); got != target {
			t.Errorf("target moved to %q; want %q", got, target)
		}
		break
	}
}

func TestIdentificationIncorrectKeepsState(t *testing.T) {
	s := newIdent(t, fiveConcepts(), nil)
	before := s.State()
	at, err := s.Submit("zzzz")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if at.Feedback != FeedbackIncorrect {
		t.Errorf("feedback = %q; want incorrect", at.Feedback)
	}
	if !reflect.DeepEqual(s.State(), before) {
		t.Errorf("state = %+v; want %+v", s.State(), before)
	}
}

func TestIdentificationEmptyInput(t *testing.T) {
	s := newIdent(t, fiveConcepts(), nil)
	for _, in := range []string{"", "   ", "\t\n"} {
		if _, err := s.Submit(in); !errors.Is(err, ErrEmptyAnswer) {
			t.Errorf("Submit(%q) err = %v; want ErrEmptyAnswer", in, err)
		}
	}
}

func TestIdentificationHintSaturates(t *testing.T) {
	s := newIdent(t, fiveConcepts(), nil)
	var h HintView
	for i := 0; i < 6; i++ {
		var err error
		if h, err = s.RequestHint(); err != nil {
			t.Fatalf("RequestHint: %v", err)
		}
	}
	if h.Level != 4 {
		t.Errorf("level = %d; want 4", h.Level)
	}
	target := currentTarget(s)
	for _, c := range fiveConcepts() {
		if c.ID == target && h.Text != c.Name {
			t.Errorf("level 4 hint = %q; want %q", h.Text, c.Name)
		}
	}
}

func TestIdentificationReset(t *testing.T) {
	concepts := fiveConcepts()
	s := newIdent(t, concepts, nil)
	if _, err := s.Submit(concepts[0].Name); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RequestHint(); err != nil {
		t.Fatal(err)
	}

	s.Reset()
	st := s.State()
	if len(st.Found) != 0 || st.Locked || st.HintLevel != 0 || st.TargetIndex != 0 || st.Complete {
		t.Fatalf("state after reset = %+v", st)
	}
	got := append([]string{}, st.Order...)
	sort.Strings(got)
	if want := []string{"c1", "c2", "c3", "c4", "c5"}; !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v; want permutation of %v", st.Order, want)
	}
}

func TestIdentificationResume(t *testing.T) {
	store := newMemStore()
	saver := NewSaver(time.Second, nil)
	concepts := fiveConcepts()
	s, err := NewIdentification(IdentificationConfig{
		Key: testKey, Concepts: concepts, Store: store, Saver: saver, Rand: seeded(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Submit(concepts[2].Name); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RequestHint(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RequestHint(); err != nil {
		t.Fatal(err)
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	stored, err := store.LoadIdentification(context.Background(), testKey)
	if err != nil {
		t.Fatalf("LoadIdentification: %v", err)
	}
	calls := 0
	r, err := NewIdentification(IdentificationConfig{
		Key: testKey, Concepts: concepts, Restored: &stored, Rand: seeded(),
		OnComplete: func() { calls++ },
	})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(r.State(), s.State()) {
		t.Errorf("restored state = %+v; want %+v", r.State(), s.State())
	}
	if r.Hint() != s.Hint() {
		t.Errorf("restored hint = %+v; want %+v", r.Hint(), s.Hint())
	}
	if calls != 0 {
		t.Errorf("completion fired on restore")
	}
}

func TestIdentificationRestoreReconciles(t *testing.T) {
	concepts := fiveConcepts()
	restored := &IdentificationState{
		Order:       []string{"c2", "gone", "c1", "c3", "c4"},
		Found:       []string{"c2", "gone"},
		TargetIndex: 2,
		HintLevel:   9,
		Locked:      true,
	}
	s, err := NewIdentification(IdentificationConfig{
		Key: testKey, Concepts: concepts, Restored: restored, Rand: seeded(),
	})
	if err != nil {
		t.Fatal(err)
	}
	st := s.State()
	if want := []string{"c2", "c1", "c3", "c4", "c5"}; !reflect.DeepEqual(st.Order, want) {
		t.Errorf("order = %v; want %v", st.Order, want)
	}
	if want := []string{"c2"}; !reflect.DeepEqual(st.Found, want) {
		t.Errorf("found = %v; want %v", st.Found, want)
	}
	if st.HintLevel != 4 || !st.Locked {
		t.Errorf("hint level = %d locked = %v; want 4 true", st.HintLevel, st.Locked)
	}
	if st.TargetIndex != 2 {
		t.Errorf("target index = %d; want 2", st.TargetIndex)
	}
}

func TestIdentificationRestoreCompleteDoesNotFire(t *testing.T) {
	calls := 0
	s, err := NewIdentification(IdentificationConfig{
		Key:      testKey,
		Concepts: []Concept{{ID: "c1", Name: "A"}, {ID: "c2", Name: "B"}},
		Restored: &IdentificationState{Order: []string{"c1", "c2"}, Found: []string{"c1", "c2"}, Complete: true},
		OnComplete: func() {
			calls++
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !s.Complete() || calls != 0 {
		t.Errorf("complete = %v calls = %d; want true 0", s.Complete(), calls)
	}
}
