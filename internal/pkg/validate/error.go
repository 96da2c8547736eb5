package validate

import (
	"maps"
	"slices"
	"strings"
)

// FieldsError maps each rejected request field to its translated message.
type FieldsError struct {
	Fields map[string]string
}

func NewFieldsError(fields map[string]string) *FieldsError {
	return &FieldsError{
		Fields: fields,
	}
}

func (f *FieldsError) Error() string {
	if len(f.Fields) == 0 {
		return "invalid request"
	}
	return "invalid fields: " + strings.Join(slices.Sorted(maps.Keys(f.Fields)), ", ")
}
