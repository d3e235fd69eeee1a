package rules

import (
	"context"
	"errors"
	"strings"
	"sync"

	"white-traffic-console/internal/client"
	"white-traffic-console/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

var (
	ErrRuleNotFound  = errors.New("rule not found")
	ErrSessionClosed = errors.New("edit session is no longer open")
)

var validate = validator.New()

// Gateway is the rules resource group of the API.
type Gateway interface {
	ListRules(ctx context.Context) ([]model.Rule, error)
	CreateRule(ctx context.Context, in model.NewRuleInput) (model.Rule, error)
	UpdateRule(ctx context.Context, rule model.Rule) (model.Rule, error)
	DeleteRule(ctx context.Context, id model.ID) error
	TestRule(ctx context.Context, id model.ID) (model.TestOutcome, error)
}

// Registry owns the local copy of the filter rules. Rules keep the order the
// server returned them in; creates append, updates and removals work in place
// by id. At most one rule is under edit at any time.
type Registry struct {
	gw     Gateway
	logger *logrus.Logger

	mu      sync.Mutex
	rules   []model.Rule
	form    *Draft
	session *Draft
	lastErr string
}

func NewRegistry(gw Gateway, logger *logrus.Logger) *Registry {
	return &Registry{
		gw:     gw,
		logger: logger,
		rules:  make([]model.Rule, 0),
		form:   newFormDraft(),
	}
}

// Load replaces the collection with the server's list.
func (r *Registry) Load(ctx context.Context) error {
	rules, err := r.gw.ListRules(ctx)
	if err != nil {
		return r.fail(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = dedupe(rules)
	r.lastErr = ""
	if r.session != nil && indexOf(r.rules, r.session.target) < 0 {
		r.closeSessionLocked()
	}
	r.logger.Debugf("Loaded %d rules", len(r.rules))
	return nil
}

// List returns the rules in server order.
func (r *Registry) List() []model.Rule {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Get looks a rule up by id.
func (r *Registry) Get(id model.ID) (model.Rule, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := indexOf(r.rules, id); i >= 0 {
		return r.rules[i], true
	}
	return model.Rule{}, false
}

// Form returns the new-rule draft. It survives failed creates so the user
// can correct and resubmit.
func (r *Registry) Form() *Draft {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.form
}

// ResetForm discards the new-rule draft.
func (r *Registry) ResetForm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.form.reset()
}

// Create submits the new-rule form. The conditions expression is forwarded
// untouched; the server owns its grammar.
func (r *Registry) Create(ctx context.Context) (model.Rule, error) {
	r.mu.Lock()
	input := r.form.rule.Input()
	r.mu.Unlock()

	if err := validateInput(input); err != nil {
		return model.Rule{}, r.fail(err)
	}

	created, err := r.gw.CreateRule(ctx, input)
	if err != nil {
		return model.Rule{}, r.fail(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if i := indexOf(r.rules, created.ID); i >= 0 {
		// A concurrent Load already picked it up.
		r.rules[i] = created
	} else {
		r.rules = append(r.rules, created)
	}
	r.form.reset()
	r.lastErr = ""
	r.logger.Infof("Created rule %s (%s)", created.ID, created.Name)
	return created, nil
}

// BeginEdit opens the edit session for id. An open session on another rule
// is discarded without saving.
func (r *Registry) BeginEdit(id model.ID) (*Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := indexOf(r.rules, id)
	if i < 0 {
		return nil, ErrRuleNotFound
	}
	if r.session != nil {
		if r.session.target == id {
			return r.session, nil
		}
		r.logger.Warnf("Discarding unsaved edit of rule %s", r.session.target)
		r.closeSessionLocked()
	}
	r.session = newEditDraft(r.rules[i])
	return r.session, nil
}

// Editing returns the open edit session, if any.
func (r *Registry) Editing() (*Draft, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session, r.session != nil
}

// UpdateField changes one field of a draft. It never touches the network.
func (r *Registry) UpdateField(d *Draft, field Field, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d == nil || d.closed {
		return ErrSessionClosed
	}
	if !d.IsNew() && d != r.session {
		return ErrSessionClosed
	}
	return d.set(field, value)
}

// CommitEdit sends the whole draft to the server. On success the matching
// rule is replaced and the session closes; on failure the session stays open
// for a retry.
func (r *Registry) CommitEdit(ctx context.Context, d *Draft) (model.Rule, error) {
	r.mu.Lock()
	if d == nil || d.IsNew() || d.closed || d != r.session {
		r.mu.Unlock()
		return model.Rule{}, ErrSessionClosed
	}
	rule := d.rule
	rule.ID = d.target
	r.mu.Unlock()

	if err := validateInput(rule.Input()); err != nil {
		return model.Rule{}, r.fail(err)
	}

	updated, err := r.gw.UpdateRule(ctx, rule)
	if err != nil {
		return model.Rule{}, r.fail(err)
	}
	updated.ID = d.target

	r.mu.Lock()
	defer r.mu.Unlock()
	if i := indexOf(r.rules, d.target); i >= 0 {
		r.rules[i] = updated
	}
	if r.session == d {
		r.closeSessionLocked()
	}
	r.lastErr = ""
	r.logger.Infof("Updated rule %s", updated.ID)
	return updated, nil
}

// CancelEdit closes the session and drops the draft.
func (r *Registry) CancelEdit(d *Draft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d != nil && r.session == d {
		r.closeSessionLocked()
	}
}

// Remove deletes a rule. Confirmation is the caller's job. Removing the rule
// under edit cancels the edit.
func (r *Registry) Remove(ctx context.Context, id model.ID) error {
	if err := r.gw.DeleteRule(ctx, id); err != nil {
		return r.fail(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if i := indexOf(r.rules, id); i >= 0 {
		r.rules = append(r.rules[:i:i], r.rules[i+1:]...)
	}
	if r.session != nil && r.session.target == id {
		r.closeSessionLocked()
	}
	r.lastErr = ""
	r.logger.Infof("Removed rule %s", id)
	return nil
}

// Test asks the backend to test a rule. Local state is not modified.
func (r *Registry) Test(ctx context.Context, id model.ID) (model.TestOutcome, error) {
	outcome, err := r.gw.TestRule(ctx, id)
	if err != nil {
		return model.TestOutcome{}, r.fail(err)
	}
	r.mu.Lock()
	r.lastErr = ""
	r.mu.Unlock()
	return outcome, nil
}

// Err returns the latest surfaced error, "" after a successful operation.
func (r *Registry) Err() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

type Stats struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
}

func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{Total: len(r.rules)}
	for i := range r.rules {
		if r.rules[i].Active {
			stats.Active++
		} else {
			stats.Inactive++
		}
	}
	return stats
}

func (r *Registry) fail(err error) error {
	r.mu.Lock()
	r.lastErr = err.Error()
	r.mu.Unlock()
	if !client.IsValidation(err) {
		r.logger.Warnf("Rule operation failed: %v", err)
	}
	return err
}

func (r *Registry) closeSessionLocked() {
	r.session.closed = true
	r.session = nil
}

func validateInput(in model.NewRuleInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Conditions = strings.TrimSpace(in.Conditions)
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Field() {
		case "Name":
			return client.NewValidationError("name", "rule name must not be empty")
		case "Conditions":
			return client.NewValidationError("conditions", "filter conditions must not be empty")
		}
	}
	return err
}

func indexOf(rules []model.Rule, id model.ID) int {
	for i := range rules {
		if rules[i].ID == id {
			return i
		}
	}
	return -1
}

// dedupe keeps the first occurrence of every id.
func dedupe(rules []model.Rule) []model.Rule {
	seen := make(map[model.ID]bool, len(rules))
	out := make([]model.Rule, 0, len(rules))
	for _, rule := range rules {
		if seen[rule.ID] {
			continue
		}
		seen[rule.ID] = true
		out = append(out, rule)
	}
	return out
}
