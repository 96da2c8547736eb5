package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/evandrarf/halpi-mastery/internal/mastery"
	"github.com/evandrarf/halpi-mastery/internal/pkg/llm"
)

var errInvalidEvaluation = errors.New("AI output is not a valid evaluation")

type conceptEvaluator struct {
	generator llm.TextGenerator
}

// NewConceptEvaluator adapts a text generator to the remote evaluation port.
func NewConceptEvaluator(generator llm.TextGenerator) mastery.Evaluator {
	return &conceptEvaluator{generator: generator}
}

type fieldEvaluationJSON struct {
	Note      *float64 `json:"note"`
	Comment   string   `json:"comment"`
	ErrorType string   `json:"error_type"`
}

type conceptEvaluationJSON struct {
	Concept     string                         `json:"concept"`
	Fields      map[string]fieldEvaluationJSON `json:"fields"`
	OverallNote *float64                       `json:"overall_note"`
	Validated   *bool                          `json:"validated"`
	Comment     string                         `json:"comment"`
}

func (e *conceptEvaluator) Evaluate(ctx context.Context, req mastery.EvaluationRequest) (mastery.RemoteResult, error) {
	if e.generator == nil {
		return mastery.RemoteResult{}, mastery.ErrEvaluatorUnavailable
	}

	text, err := e.generator.GenerateText(ctx, buildEvaluationPrompt(req))
	if err != nil {
		return mastery.RemoteResult{}, err
	}
	return parseEvaluation(text, req)
}

func buildEvaluationPrompt(req mastery.EvaluationRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, `A learner is trying to restitute, from memory, the knowledge card of the concept "%s".

Compare every field below with the reference card, field by field.
Note each field on 10 with these criteria:
- Fidelity (3.5): the idea matches the reference
- Key content (3.5): the essential elements are present
- Clarity (3): the wording is understandable, structured and logical

For every field give the error type, one of:
"manifest error", "inaccuracy", "missing information", "field not completed", "concept confusion".
An empty "error_type" means no error.

Write a formative comment per field (partial reformulation, follow-up question or indirect hint).
NEVER give the correct answer, even when the field is completely wrong.

overall_note = mean of the field notes x 3 (a note on 30).
validated = true only if every field has a note >= 7.
Add a general remediation comment with encouragement.

Fields:
`, req.ConceptName)

	for _, f := range req.Fields {
		fmt.Fprintf(&b, "\n[%s] %s\nReference: %s\nLearner answer: %s\n", f.Key, f.Label, f.Reference, req.Answers[f.Key])
	}

	b.WriteString(`
IMPORTANT: Return ONLY valid JSON, NO markdown, NO code blocks. Use the field keys in brackets.
JSON format:
{"concept":"...","fields":{"<key>":{"note":8,"comment":"...","error_type":"inaccuracy"}},"overall_note":24,"validated":true,"comment":"..."}`)

	return b.String()
}

// parseEvaluation decodes the model output. Fields outside the requested set
// are dropped; a missing overall note or verdict is derived from the field
// notes.
func parseEvaluation(text string, req mastery.EvaluationRequest) (mastery.RemoteResult, error) {
	clean := strings.TrimSpace(text)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	var parsed conceptEvaluationJSON
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return mastery.RemoteResult{}, fmt.Errorf("%w: %v", errInvalidEvaluation, err)
	}

	res := mastery.RemoteResult{
		Concept: parsed.Concept,
		Fields:  make(map[string]mastery.FieldEvaluation, len(req.Fields)),
		Comment: parsed.Comment,
	}
	if res.Concept == "" {
		res.Concept = req.ConceptName
	}

	var sum float64
	validated := true
	for _, f := range req.Fields {
		fe, ok := parsed.Fields[f.Key]
		if !ok || fe.Note == nil {
			continue
		}
		note := *fe.Note
		if math.IsNaN(note) || note < 0 || note > mastery.MaxFieldNote {
			return mastery.RemoteResult{}, fmt.Errorf("%w: field %q note %v", errInvalidEvaluation, f.Key, note)
		}
		res.Fields[f.Key] = mastery.FieldEvaluation{
			Note:      note,
			Comment:   strings.TrimSpace(fe.Comment),
			ErrorType: strings.TrimSpace(fe.ErrorType),
		}
		sum += note
		if note < mastery.PassingFieldNote {
			validated = false
		}
	}
	if len(res.Fields) == 0 {
		return mastery.RemoteResult{}, fmt.Errorf("%w: no requested field was evaluated", errInvalidEvaluation)
	}

	if parsed.OverallNote != nil {
		res.OverallNote = *parsed.OverallNote
	} else {
		res.OverallNote = math.Round(sum/float64(len(res.Fields))*3*10) / 10
	}
	if parsed.Validated != nil {
		res.Validated = *parsed.Validated
	} else {
		res.Validated = validated
	}
	return res, nil
}
