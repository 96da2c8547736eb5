package llm

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

type scriptedGenerator struct {
	calls atomic.Int32
	errs  []error
	text  string
}

func (g *scriptedGenerator) Name() string { return "scripted" }

func (g *scriptedGenerator) GenerateText(context.Context, string) (string, error) {
	n := int(g.calls.Add(1)) - 1
	if n < len(g.errs) && g.errs[n] != nil {
		return "", g.errs[n]
	}
	return g.text, nil
}

func fastConfig() ResilientConfig {
	return ResilientConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}
}

func TestResilientRetriesTransientErrors(t *testing.T) {
	g := &scriptedGenerator{
		errs: []error{
			&openai.APIError{HTTPStatusCode: 503, Message: "overloaded"},
			fmt.Errorf("gemini generate error: status 429"),
		},
		text: `{"ok":true}`,
	}
	r := NewResilient(g, fastConfig())

	got, err := r.GenerateText(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if got != `{"ok":true}` {
		t.Errorf("text = %q", got)
	}
	if n := g.calls.Load(); n != 3 {
		t.Errorf("calls = %d; want 3", n)
	}
}

func TestResilientDoesNotRetryPermanentErrors(t *testing.T) {
	g := &scriptedGenerator{errs: []error{&openai.APIError{HTTPStatusCode: 401, Message: "bad key"}}}
	r := NewResilient(g, fastConfig())

	if _, err := r.GenerateText(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error")
	}
	if n := g.calls.Load(); n != 1 {
		t.Errorf("calls = %d; want 1", n)
	}
}

func TestResilientDisabled(t *testing.T) {
	r := NewResilient(NewDisabled(), fastConfig())
	_, err := r.GenerateText(context.Background(), "prompt")
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("err = %v; want ErrDisabled", err)
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&openai.APIError{HTTPStatusCode: 500}, 500},
		{fmt.Errorf("wrapped: %w", &openai.RequestError{HTTPStatusCode: 502}), 502},
		{errors.New("Error 503, Message: unavailable"), 503},
		{errors.New("boom"), 0},
	}
	for _, tt := range tests {
		if got := StatusCode(tt.err); got != tt.want {
			t.Errorf("StatusCode(%v) = %d; want %d", tt.err, got, tt.want)
		}
	}
}
