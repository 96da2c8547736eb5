package validate

import (
	"errors"
	"testing"
)

type startRequest struct {
	LearnerID string `json:"learner_id" validate:"required,max=100"`
	Confirm   bool   `json:"confirm"`
}

func TestValidateReportsJSONFieldNames(t *testing.T) {
	err := NewValidator().Validate(&startRequest{})
	var fe *FieldsError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v; want *FieldsError", err)
	}
	if _, ok := fe.Fields["learner_id"]; !ok {
		t.Errorf("fields = %v; want learner_id", fe.Fields)
	}
	if got, want := err.Error(), "invalid fields: learner_id"; got != want {
		t.Errorf("Error() = %q; want %q", got, want)
	}

	if err := NewValidator().Validate(&startRequest{LearnerID: "learner-1"}); err != nil {
		t.Errorf("valid request err = %v", err)
	}
}

func TestFieldsErrorListsSortedNames(t *testing.T) {
	tests := []struct {
		fields map[string]string
		want   string
	}{
		{nil, "invalid request"},
		{map[string]string{"answers": "x", "learner_id": "y", "confirm": "z"}, "invalid fields: answers, confirm, learner_id"},
	}
	for _, tt := range tests {
		if got := NewFieldsError(tt.fields).Error(); got != tt.want {
			t.Errorf("Error() = %q; want %q", got, tt.want)
		}
	}
}
