package mastery

import (
	"fmt"
	"strings"
)

type FieldKey string

const (
	FieldWhat       FieldKey = "what"
	FieldWhy        FieldKey = "why"
	FieldHow        FieldKey = "how"
	FieldWho        FieldKey = "who"
	FieldWhen       FieldKey = "when"
	FieldWhere      FieldKey = "where"
	FieldEssentials FieldKey = "essentials"
)

// StandardFields lists the fixed concept fields in presentation order.
var StandardFields = []FieldKey{FieldWhat, FieldWhy, FieldHow, FieldWho, FieldWhen, FieldWhere, FieldEssentials}

var standardLabels = map[FieldKey]string{
	FieldWhat:       "What",
	FieldWhy:        "Why",
	FieldHow:        "How",
	FieldWho:        "Who",
	FieldWhen:       "When",
	FieldWhere:      "Where",
	FieldEssentials: "Essentials",
}

type CustomField struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Concept is an authored card. It is owned by the authoring side and only
// read here.
type Concept struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	What         string        `json:"what,omitempty"`
	Why          string        `json:"why,omitempty"`
	How          string        `json:"how,omitempty"`
	Who          string        `json:"who,omitempty"`
	When         string        `json:"when,omitempty"`
	Where        string        `json:"where,omitempty"`
	Essentials   string        `json:"essentials,omitempty"`
	CustomFields []CustomField `json:"custom_fields,omitempty"`
	HasSchema    bool          `json:"has_schema,omitempty"`
	SchemaImage  string        `json:"schema_image,omitempty"`
}

// Field is one populated slot of a concept as presented to the learner.
type Field struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	Custom    bool   `json:"custom"`
	Reference string `json:"-"`
}

func (c Concept) standard(k FieldKey) string {
	switch k {
	case FieldWhat:
		return c.What
	case FieldWhy:
		return c.Why
	case FieldHow:
		return c.How
	case FieldWho:
		return c.Who
	case FieldWhen:
		return c.When
	case FieldWhere:
		return c.Where
	case FieldEssentials:
		return c.Essentials
	}
	return ""
}

// CustomKey is the answer key of the i-th custom field.
func CustomKey(f CustomField, i int) string {
	if id := strings.TrimSpace(f.ID); id != "" {
		return id
	}
	return fmt.Sprintf("custom_%d", i)
}

// RequestedFields returns the fields populated at authoring time, standard
// fields first. Only these are ever asked about or scored.
func (c Concept) RequestedFields() []Field {
	fields := make([]Field, 0, len(StandardFields)+len(c.CustomFields))
	for _, k := range StandardFields {
		v := c.standard(k)
		if strings.TrimSpace(v) == "" {
			continue
		}
		fields = append(fields, Field{Key: string(k), Label: standardLabels[k], Reference: v})
	}
	for i, cf := range c.CustomFields {
		if strings.TrimSpace(cf.Content) == "" {
			continue
		}
		label := strings.TrimSpace(cf.Title)
		if label == "" {
			label = CustomKey(cf, i)
		}
		fields = append(fields, Field{Key: CustomKey(cf, i), Label: label, Custom: true, Reference: cf.Content})
	}
	return fields
}

func (c Concept) clone() Concept {
	out := c
	if c.CustomFields != nil {
		out.CustomFields = append([]CustomField(nil), c.CustomFields...)
	}
	return out
}

// Freeze deep-copies concepts so later authoring edits cannot leak into a
// running session. Concepts without an id or a name are skipped, as are
// duplicate ids.
func Freeze(concepts []Concept) []Concept {
	out := make([]Concept, 0, len(concepts))
	seen := make(map[string]struct{}, len(concepts))
	for _, c := range concepts {
		if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.Name) == "" {
			continue
		}
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c.clone())
	}
	return out
}

// SessionKey identifies session level state.
type SessionKey struct {
	ActivityID string
	LearnerID  string
}

func (k SessionKey) String() string {
	return k.ActivityID + ":" + k.LearnerID
}

// ChapterID extracts the chapter part of an activity id shaped like
// "a2-ch0-step3". It returns "" when the id has no chapter segment.
func ChapterID(activityID string) string {
	parts := strings.Split(activityID, "-")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
