package mastery

import (
	"math"
	"unicode/utf8"

	"github.com/evandrarf/halpi-mastery/internal/pkg/similarity"
)

// minKeywordLength is the shortest token (in runes, exclusive) that counts as
// a keyword during overlap scoring.
const minKeywordLength = 3

// FallbackComment is attached to fallback evaluations so the learner knows
// the note was computed locally.
const FallbackComment = "Automatic evaluation unavailable; scored locally by keyword overlap."

// TokenOverlap is the share of the answer's tokens that are keywords (longer
// than three runes) also present in the reference. The result is in [0,1].
func TokenOverlap(answer, reference string) float64 {
	na, nr := similarity.Normalize(answer), similarity.Normalize(reference)
	if na == "" || nr == "" {
		return 0
	}
	if na == nr {
		return 1
	}

	ref := make(map[string]struct{})
	for _, t := range similarity.Tokens(nr) {
		ref[t] = struct{}{}
	}
	tokens := similarity.Tokens(na)
	matched := 0
	for _, t := range tokens {
		if utf8.RuneCountInString(t) <= minKeywordLength {
			continue
		}
		if _, ok := ref[t]; ok {
			matched++
		}
	}
	return math.Min(1, float64(matched)/float64(len(tokens)))
}

// ScoreFallback scores every requested field on 10. Unanswered fields score
// 0 but still count towards the maximum.
func ScoreFallback(fields []Field, answers map[string]string) FallbackResult {
	res := FallbackResult{Fields: make(map[string]FieldEvaluation, len(fields))}
	for _, f := range fields {
		note := int(math.Round(TokenOverlap(answers[f.Key], f.Reference) * MaxFieldNote))
		res.Fields[f.Key] = FieldEvaluation{Note: float64(note)}
		res.Note += note
		res.MaxNote += MaxFieldNote
	}
	return res
}
