package analysis

import (
	"fmt"
	"strings"

	"github.com/gyasis/smalltalk-sub002/types"
)

// FieldKind identifies how a field's raw value is interpreted.
type FieldKind int

const (
	// FieldInt is an integer on a 0-100 scale.
	FieldInt FieldKind = iota
	// FieldList is a comma or newline separated list.
	FieldList
	// FieldText is free text kept verbatim.
	FieldText
)

// FieldSpec declares one field of a decision schema.
type FieldSpec struct {
	Name     string
	Kind     FieldKind
	Required bool
	// Hint is shown to the model in the prompt instructions.
	Hint string
}

// Schema declares the fields one analytical decision expects. Each component
// owns one schema per decision it asks the model for.
type Schema struct {
	decision string
	fields   []FieldSpec
	byName   map[string]*FieldSpec
}

// NewSchema creates an empty schema for a named decision.
func NewSchema(decision string) *Schema {
	return &Schema{decision: decision, byName: make(map[string]*FieldSpec)}
}

// Decision returns the decision name the schema belongs to.
func (s *Schema) Decision() string { return s.decision }

// Fields returns the declared fields in declaration order.
func (s *Schema) Fields() []FieldSpec { return s.fields }

func (s *Schema) add(spec FieldSpec) *Schema {
	if spec.Hint == "" {
		switch spec.Kind {
		case FieldInt:
			spec.Hint = "integer 0-100"
		case FieldList:
			spec.Hint = "comma-separated list"
		case FieldText:
			spec.Hint = "short text"
		}
	}
	s.fields = append(s.fields, spec)
	s.byName[spec.Name] = &s.fields[len(s.fields)-1]
	return s
}

// Int declares an optional integer field.
func (s *Schema) Int(name string) *Schema {
	return s.add(FieldSpec{Name: name, Kind: FieldInt})
}

// RequireInt declares a required integer field.
func (s *Schema) RequireInt(name string) *Schema {
	return s.add(FieldSpec{Name: name, Kind: FieldInt, Required: true})
}

// List declares an optional list field.
func (s *Schema) List(name string) *Schema {
	return s.add(FieldSpec{Name: name, Kind: FieldList})
}

// RequireList declares a required list field.
func (s *Schema) RequireList(name string) *Schema {
	return s.add(FieldSpec{Name: name, Kind: FieldList, Required: true})
}

// Text declares an optional free-text field.
func (s *Schema) Text(name string) *Schema {
	return s.add(FieldSpec{Name: name, Kind: FieldText})
}

// RequireText declares a required free-text field.
func (s *Schema) RequireText(name string) *Schema {
	return s.add(FieldSpec{Name: name, Kind: FieldText, Required: true})
}

// Hint overrides the prompt hint of the most recently declared field.
func (s *Schema) WithHint(hint string) *Schema {
	if len(s.fields) > 0 {
		s.fields[len(s.fields)-1].Hint = hint
	}
	return s
}

// PromptInstructions renders the response-format block appended to every
// decision prompt.
func (s *Schema) PromptInstructions() string {
	var sb strings.Builder
	sb.WriteString("Respond with one line per field, formatted exactly as FIELD_NAME: value.\n")
	sb.WriteString("Do not add commentary before or after the fields.\n\nFields:\n")
	for _, f := range s.fields {
		sb.WriteString("- ")
		sb.WriteString(f.Name)
		sb.WriteString(": <")
		sb.WriteString(f.Hint)
		sb.WriteString(">")
		if f.Required {
			sb.WriteString(" (required)")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Validate checks a raw reply against the schema. A reply missing a required
// field, or carrying a required integer field without any integer in it, is
// rejected as a malformed-analysis error. Optional deviations fall back to
// their documented defaults at read time.
func (s *Schema) Validate(raw string) (*Result, error) {
	fields := ParseFields(raw)

	var missing []string
	for _, f := range s.fields {
		value, ok := fields[f.Name]
		if !ok {
			if f.Required {
				missing = append(missing, f.Name)
			}
			continue
		}
		if f.Kind == FieldInt && f.Required {
			if _, ok := firstInt(value); !ok {
				missing = append(missing, f.Name)
			}
		}
	}
	if len(missing) > 0 {
		return nil, types.NewError(types.ErrMalformedAnalysis,
			fmt.Sprintf("%s reply missing fields: %s", s.decision, strings.Join(missing, ", ")))
	}

	return &Result{decision: s.decision, raw: raw, fields: fields}, nil
}
