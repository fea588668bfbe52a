// Package validation decides whether a draft satisfies a wizard step.
// Evaluation is pure: drafts are only read.
package validation

import (
	"fmt"
	"strings"

	"onboard/internal/profile/fields"
	"onboard/internal/profile/models"
)

// Result is the outcome of validating one step (or several, for ValidateAll).
type Result struct {
	OK         bool
	Missing    []models.FieldRef
	Violations []string
}

// Err converts a failed result into a *models.ValidationError for step.
func (r Result) Err(step int) error {
	if r.OK {
		return nil
	}
	return &models.ValidationError{Step: step, Missing: r.Missing, Violations: r.Violations}
}

// Engine evaluates step requirements and optional cross-field rules.
type Engine struct {
	rules map[ruleKey][]compiledRule
}

type Option func(e *Engine) error

// New builds an engine. Without options it enforces only the static step
// requirements.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{rules: make(map[ruleKey][]compiledRule)}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

var defaultEngine = &Engine{rules: map[ruleKey][]compiledRule{}}

// Default returns the engine with no extra rules.
func Default() *Engine {
	return defaultEngine
}

// ValidateStep validates d against the default engine.
func ValidateStep(stepID int, d *models.ProfileDraft) Result {
	return defaultEngine.ValidateStep(stepID, d)
}

// ValidateStep checks every requirement of one step.
func (e *Engine) ValidateStep(stepID int, d *models.ProfileDraft) Result {
	step, ok := models.Step(d.Category, stepID)
	if !ok {
		return Result{Violations: []string{fmt.Sprintf("unknown step %d", stepID)}}
	}

	var res Result
	for _, req := range step.Required {
		if !satisfied(d, req) {
			res.Missing = append(res.Missing, req.Ref)
		}
	}
	if step.Documents {
		for _, t := range d.MissingRequiredDocuments() {
			res.Missing = append(res.Missing, models.DocumentRef(t))
		}
	}
	res.Violations = append(res.Violations, e.evaluateRules(d, stepID)...)
	res.OK = len(res.Missing) == 0 && len(res.Violations) == 0
	return res
}

// FirstInvalid validates steps from..to-1 in order and returns the first
// failing step. It returns 0 when all of them pass.
func (e *Engine) FirstInvalid(d *models.ProfileDraft, from, to int) (int, Result) {
	for id := from; id < to; id++ {
		if res := e.ValidateStep(id, d); !res.OK {
			return id, res
		}
	}
	return 0, Result{OK: true}
}

// ValidateAll merges the results of every step of the draft's category.
func (e *Engine) ValidateAll(d *models.ProfileDraft) Result {
	all := Result{OK: true}
	for _, step := range models.Steps(d.Category) {
		res := e.ValidateStep(step.ID, d)
		all.Missing = append(all.Missing, res.Missing...)
		all.Violations = append(all.Violations, res.Violations...)
		all.OK = all.OK && res.OK
	}
	return all
}

func satisfied(d *models.ProfileDraft, req models.Requirement) bool {
	v, err := fields.Get(d, req.Ref)
	if err != nil {
		return false
	}
	switch req.Check {
	case models.CheckNonEmpty:
		s, ok := v.(string)
		return ok && strings.TrimSpace(s) != ""
	case models.CheckPositive:
		n, ok := v.(int)
		return ok && n > 0
	}
	return false
}
