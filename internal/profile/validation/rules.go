package validation

import (
	"fmt"
	"os"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"

	"onboard/internal/profile/fields"
	"onboard/internal/profile/models"
	dErrors "onboard/pkg/domain-errors"
)

// Rule is a cross-field constraint attached to a step, written as an expr
// expression over the draft environment, for example:
//
//	capacity.icuBeds <= capacity.totalBeds
//
// Groups are addressed by their JSON names; lists live under "lists" and
// document counts under "documents". An empty Category applies to all categories.
type Rule struct {
	Name       string          `yaml:"name"`
	Category   models.Category `yaml:"category"`
	Step       int             `yaml:"step"`
	Expression string          `yaml:"expression"`
}

type ruleKey struct {
	category models.Category
	step     int
}

type compiledRule struct {
	name    string
	program *vm.Program
}

// WithRules compiles rules into the engine. A rule that does not compile
// fails engine construction.
func WithRules(rules ...Rule) Option {
	return func(e *Engine) error {
		for _, r := range rules {
			if r.Name == "" || r.Expression == "" {
				return dErrors.New(dErrors.CodeInvalidInput, "validation rule requires a name and an expression")
			}
			if r.Step < 1 {
				return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("validation rule %s: step must be positive", r.Name))
			}
			program, err := expr.Compile(r.Expression,
				expr.Env(map[string]any{}),
				expr.AllowUndefinedVariables(),
			)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInvalidInput, "compile validation rule "+r.Name)
			}
			key := ruleKey{category: r.Category, step: r.Step}
			e.rules[key] = append(e.rules[key], compiledRule{name: r.Name, program: program})
		}
		return nil
	}
}

// evaluateRules returns the names of the rules that did not hold.
func (e *Engine) evaluateRules(d *models.ProfileDraft, step int) []string {
	shared := e.rules[ruleKey{step: step}]
	own := e.rules[ruleKey{category: d.Category, step: step}]
	applicable := make([]compiledRule, 0, len(shared)+len(own))
	applicable = append(applicable, shared...)
	applicable = append(applicable, own...)
	if len(applicable) == 0 {
		return nil
	}
	env := fields.Env(d)
	var failed []string
	for _, r := range applicable {
		out, err := expr.Run(r.program, env)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", r.name, err))
			continue
		}
		if ok, isBool := out.(bool); !isBool || !ok {
			failed = append(failed, r.name)
		}
	}
	return failed
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads rules from a YAML document of the form
//
//	rules:
//	  - name: icu-within-total
//	    category: hospital
//	    step: 3
//	    expression: capacity.icuBeds <= capacity.totalBeds
func LoadRules(path string) ([]Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", path, err)
	}
	return f.Rules, nil
}
