package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/evandrarf/halpi-mastery/internal/mastery"
	"github.com/evandrarf/halpi-mastery/internal/pkg/llm"
)

type stubGenerator struct {
	text   string
	err    error
	prompt string
}

func (g *stubGenerator) Name() string { return "stub" }

func (g *stubGenerator) GenerateText(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.text, g.err
}

func evaluationRequest() mastery.EvaluationRequest {
	c := mastery.Concept{ID: "c1", Name: "Photosynthèse", What: "Conversion de la lumière", Why: "Produire de l'énergie"}
	return mastery.EvaluationRequest{
		ConceptID:   c.ID,
		ConceptName: c.Name,
		Fields:      c.RequestedFields(),
		Answers:     map[string]string{"what": "la lumière devient énergie", "why": "pour vivre"},
	}
}

func TestConceptEvaluatorParsesFencedJSON(t *testing.T) {
	g := &stubGenerator{text: "```json\n" + `{
		"concept": "Photosynthèse",
		"fields": {
			"what": {"note": 8, "comment": "Bien", "error_type": "inaccuracy"},
			"why": {"note": 6.5, "comment": "Quel lien énergétique ?", "error_type": "missing information"},
			"how": {"note": 10}
		},
		"overall_note": 21.8,
		"validated": false,
		"comment": "Continue !"
	}` + "\n```"}
	e := NewConceptEvaluator(g)

	res, err := e.Evaluate(context.Background(), evaluationRequest())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(res.Fields) != 2 {
		t.Errorf("fields = %v; want what and why only", res.Fields)
	}
	if res.Fields["why"].Note != 6.5 || res.Fields["why"].ErrorType != "missing information" {
		t.Errorf("why = %+v", res.Fields["why"])
	}
	if res.OverallNote != 21.8 || res.Validated || res.Comment != "Continue !" {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(g.prompt, "Reference: Conversion de la lumière") || !strings.Contains(g.prompt, "Learner answer: pour vivre") {
		t.Errorf("prompt does not carry the card:\n%s", g.prompt)
	}
	if strings.Contains(g.prompt, "[how]") {
		t.Error("prompt asks about an unrequested field")
	}
}

func TestConceptEvaluatorDerivesMissingTotals(t *testing.T) {
	g := &stubGenerator{text: `{"fields":{"what":{"note":8},"why":{"note":7}}}`}
	res, err := NewConceptEvaluator(g).Evaluate(context.Background(), evaluationRequest())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.OverallNote != 22.5 || !res.Validated || res.Concept != "Photosynthèse" {
		t.Errorf("result = %+v; want 22.5 validated", res)
	}
}

func TestConceptEvaluatorRejectsInvalidOutput(t *testing.T) {
	tests := map[string]string{
		"not json":         "Sorry, I cannot help.",
		"no fields":        `{"fields":{},"overall_note":10}`,
		"only unrequested": `{"fields":{"how":{"note":9}}}`,
		"note too high":    `{"fields":{"what":{"note":12}}}`,
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewConceptEvaluator(&stubGenerator{text: text}).Evaluate(context.Background(), evaluationRequest())
			if !errors.Is(err, errInvalidEvaluation) {
				t.Errorf("err = %v; want errInvalidEvaluation", err)
			}
		})
	}
}

func TestConceptEvaluatorPropagatesProviderErrors(t *testing.T) {
	_, err := NewConceptEvaluator(llm.NewDisabled()).Evaluate(context.Background(), evaluationRequest())
	if !errors.Is(err, llm.ErrDisabled) {
		t.Errorf("err = %v; want ErrDisabled", err)
	}
}
