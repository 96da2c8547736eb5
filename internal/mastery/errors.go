package mastery

import "errors"

var (
	ErrEmptyAnswer              = errors.New("answer is empty")
	ErrUnknownConcept           = errors.New("unknown concept")
	ErrNoConcepts               = errors.New("no concepts available for this activity")
	ErrEvaluationPending        = errors.New("an evaluation for this concept is already in progress")
	ErrSuperseded               = errors.New("result superseded by a newer request")
	ErrIdentificationIncomplete = errors.New("identification is not complete")
	ErrRestitutionIncomplete    = errors.New("some concepts have not been evaluated")
	ErrInvalidStep              = errors.New("operation not allowed at the current step")
	ErrNotFound                 = errors.New("not found")
	ErrEvaluatorUnavailable     = errors.New("remote evaluator unavailable")
)
