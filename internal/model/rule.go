package model

// Rule is a named white-traffic filter expression held by the backend.
type Rule struct {
	ID          ID     `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	// Conditions holds the serialized filter expression, e.g.
	// {"ip_range": "192.168.1.0/24", "user_agent": "Chrome"}.
	Conditions string `json:"conditions" yaml:"conditions"`
	Active     bool   `json:"active" yaml:"active"`
}

// NewRuleInput is the payload of a create request.
type NewRuleInput struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Conditions  string `json:"conditions" validate:"required"`
	Active      bool   `json:"active"`
}

// Input strips the server-owned fields from a rule.
func (r Rule) Input() NewRuleInput {
	return NewRuleInput{
		Name:        r.Name,
		Description: r.Description,
		Conditions:  r.Conditions,
		Active:      r.Active,
	}
}

// TestOutcome is the backend's answer to a rule test invocation.
type TestOutcome struct {
	RuleID  ID     `json:"rule_id,omitempty"`
	Message string `json:"message"`
}
