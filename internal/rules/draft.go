package rules

import (
	"fmt"

	"white-traffic-console/internal/client"
	"white-traffic-console/internal/model"
)

// Field names a user-editable rule attribute.
type Field string

const (
	FieldName        Field = "name"
	FieldDescription Field = "description"
	FieldConditions  Field = "conditions"
	FieldActive      Field = "active"
)

// ParseField maps a form field name onto a Field.
func ParseField(s string) (Field, error) {
	switch Field(s) {
	case FieldName, FieldDescription, FieldConditions, FieldActive:
		return Field(s), nil
	}
	return "", client.NewValidationError(s, "unknown rule field")
}

// Draft is a working copy of a rule. A draft with an empty target is the
// new-rule form; otherwise it edits the rule with that id.
type Draft struct {
	target model.ID
	rule   model.Rule
	closed bool
}

func newFormDraft() *Draft {
	return &Draft{rule: model.Rule{Active: true}}
}

func newEditDraft(rule model.Rule) *Draft {
	return &Draft{target: rule.ID, rule: rule}
}

// IsNew reports whether the draft is the new-rule form.
func (d *Draft) IsNew() bool {
	return d.target.IsZero()
}

// Target is the id of the rule under edit, empty for the new-rule form.
func (d *Draft) Target() model.ID {
	return d.target
}

// Rule returns a copy of the working values.
func (d *Draft) Rule() model.Rule {
	return d.rule
}

func (d *Draft) set(field Field, value any) error {
	switch field {
	case FieldName, FieldDescription, FieldConditions:
		s, ok := value.(string)
		if !ok {
			return client.NewValidationError(string(field), fmt.Sprintf("expected text, got %T", value))
		}
		switch field {
		case FieldName:
			d.rule.Name = s
		case FieldDescription:
			d.rule.Description = s
		case FieldConditions:
			d.rule.Conditions = s
		}
	case FieldActive:
		b, ok := value.(bool)
		if !ok {
			return client.NewValidationError(string(field), fmt.Sprintf("expected true/false, got %T", value))
		}
		d.rule.Active = b
	default:
		return client.NewValidationError(string(field), "unknown rule field")
	}
	return nil
}

func (d *Draft) reset() {
	d.rule = model.Rule{Active: true}
}
