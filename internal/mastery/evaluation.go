package mastery

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

const (
	// MaxFieldNote is the best note a single field can get.
	MaxFieldNote = 10
	// MaxConceptNote is the scale every concept evaluation is aggregated on.
	MaxConceptNote = 30
	// PassingFieldNote is the minimum note every scored field needs for a
	// card to count as validated.
	PassingFieldNote = 7
)

type Source string

const (
	SourceRemote   Source = "remote"
	SourceFallback Source = "fallback"
)

type FieldEvaluation struct {
	Note      float64 `json:"note"`
	Comment   string  `json:"comment,omitempty"`
	ErrorType string  `json:"error_type,omitempty"`
}

// RemoteResult is what the remote evaluator asserts about a restitution.
type RemoteResult struct {
	Concept     string
	Fields      map[string]FieldEvaluation
	OverallNote float64
	Validated   bool
	Comment     string
}

// FallbackResult is the local keyword overlap score. It carries no error
// classification and no validation verdict of its own.
type FallbackResult struct {
	Fields  map[string]FieldEvaluation
	Note    int
	MaxNote int
}

// Evaluation is either a remote or a fallback result. Use Remote or Fallback
// to get at the underlying value; Score and Passed apply the same policy to
// both kinds.
type Evaluation struct {
	ID          string
	EvaluatedAt time.Time

	remote   *RemoteResult
	fallback *FallbackResult
}

func NewRemoteEvaluation(r RemoteResult) Evaluation {
	r.Fields = copyFields(r.Fields)
	return Evaluation{remote: &r}
}

func NewFallbackEvaluation(f FallbackResult) Evaluation {
	f.Fields = copyFields(f.Fields)
	return Evaluation{fallback: &f}
}

func (e Evaluation) IsZero() bool {
	return e.remote == nil && e.fallback == nil
}

func (e Evaluation) Source() Source {
	switch {
	case e.remote != nil:
		return SourceRemote
	case e.fallback != nil:
		return SourceFallback
	}
	return ""
}

func (e Evaluation) Remote() (RemoteResult, bool) {
	if e.remote == nil {
		return RemoteResult{}, false
	}
	r := *e.remote
	r.Fields = copyFields(r.Fields)
	return r, true
}

func (e Evaluation) Fallback() (FallbackResult, bool) {
	if e.fallback == nil {
		return FallbackResult{}, false
	}
	f := *e.fallback
	f.Fields = copyFields(f.Fields)
	return f, true
}

func (e Evaluation) Fields() map[string]FieldEvaluation {
	switch {
	case e.remote != nil:
		return copyFields(e.remote.Fields)
	case e.fallback != nil:
		return copyFields(e.fallback.Fields)
	}
	return map[string]FieldEvaluation{}
}

// Score is the concept note on the /30 scale used for aggregation. Fallback
// notes are rescaled from their 10-per-field scale.
func (e Evaluation) Score() float64 {
	switch {
	case e.remote != nil:
		return clamp(e.remote.OverallNote, 0, MaxConceptNote)
	case e.fallback != nil:
		if e.fallback.MaxNote <= 0 {
			return 0
		}
		s := float64(e.fallback.Note) / float64(e.fallback.MaxNote) * MaxConceptNote
		return clamp(math.Round(s*10)/10, 0, MaxConceptNote)
	}
	return 0
}

// Passed reports whether the card counts as validated. A remote result
// carries its own verdict; a fallback result passes when it scored at least
// one field and every scored field reached PassingFieldNote.
func (e Evaluation) Passed() bool {
	switch {
	case e.remote != nil:
		return e.remote.Validated
	case e.fallback != nil:
		if len(e.fallback.Fields) == 0 {
			return false
		}
		for _, f := range e.fallback.Fields {
			if f.Note < PassingFieldNote {
				return false
			}
		}
		return true
	}
	return false
}

type evaluationJSON struct {
	ID          string                     `json:"id,omitempty"`
	Source      Source                     `json:"source"`
	Concept     string                     `json:"concept,omitempty"`
	Fields      map[string]FieldEvaluation `json:"fields"`
	OverallNote float64                    `json:"overall_note"`
	MaxNote     float64                    `json:"max_note"`
	Score       float64                    `json:"score"`
	Validated   *bool                      `json:"validated,omitempty"`
	Passed      bool                       `json:"passed"`
	Comment     string                     `json:"comment,omitempty"`
	EvaluatedAt time.Time                  `json:"evaluated_at"`
}

func (e Evaluation) MarshalJSON() ([]byte, error) {
	if e.IsZero() {
		return []byte("null"), nil
	}
	out := evaluationJSON{
		ID:          e.ID,
		Source:      e.Source(),
		Fields:      e.Fields(),
		Score:       e.Score(),
		Passed:      e.Passed(),
		EvaluatedAt: e.EvaluatedAt,
	}
	if r := e.remote; r != nil {
		v := r.Validated
		out.Concept = r.Concept
		out.OverallNote = r.OverallNote
		out.MaxNote = MaxConceptNote
		out.Validated = &v
		out.Comment = r.Comment
	}
	if f := e.fallback; f != nil {
		out.OverallNote = float64(f.Note)
		out.MaxNote = float64(f.MaxNote)
		out.Comment = FallbackComment
	}
	return json.Marshal(out)
}

func (e *Evaluation) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*e = Evaluation{}
		return nil
	}
	var in evaluationJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	var out Evaluation
	switch in.Source {
	case SourceRemote:
		validated := false
		if in.Validated != nil {
			validated = *in.Validated
		}
		out = NewRemoteEvaluation(RemoteResult{
			Concept:     in.Concept,
			Fields:      in.Fields,
			OverallNote: in.OverallNote,
			Validated:   validated,
			Comment:     in.Comment,
		})
	case SourceFallback:
		out = NewFallbackEvaluation(FallbackResult{
			Fields:  in.Fields,
			Note:    int(in.OverallNote),
			MaxNote: int(in.MaxNote),
		})
	default:
		return fmt.Errorf("unknown evaluation source %q", in.Source)
	}
	out.ID = in.ID
	out.EvaluatedAt = in.EvaluatedAt
	*e = out
	return nil
}

func copyFields(in map[string]FieldEvaluation) map[string]FieldEvaluation {
	out := make(map[string]FieldEvaluation, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
