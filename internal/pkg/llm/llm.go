package llm

import (
	"context"
	"errors"
)

// ErrDisabled is returned by the disabled generator so callers fall back
// without a network round trip.
var ErrDisabled = errors.New("llm disabled")

// TextGenerator produces a JSON text completion for a prompt.
type TextGenerator interface {
	Name() string
	GenerateText(ctx context.Context, prompt string) (string, error)
}

type disabled struct{}

// NewDisabled returns a generator that always fails with ErrDisabled.
func NewDisabled() TextGenerator { return disabled{} }

func (disabled) Name() string { return "disabled" }

func (disabled) GenerateText(context.Context, string) (string, error) {
	return "", ErrDisabled
}
