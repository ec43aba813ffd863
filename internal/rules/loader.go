package rules

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/goccy/go-yaml"
)

// rawRule mirrors one YAML entry. A condition may be written inline
// (field/operator/threshold at the top level) or as a conditions list.
type rawRule struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Severity    string         `yaml:"severity"`
	Field       string         `yaml:"field"`
	Operator    string         `yaml:"operator"`
	Condition   string         `yaml:"condition"` // legacy alias for operator
	Threshold   any            `yaml:"threshold"`
	Conditions  []rawCondition `yaml:"conditions"`
}

type rawCondition struct {
	Field     string `yaml:"field"`
	Operator  string `yaml:"operator"`
	Threshold any    `yaml:"threshold"`
	Value     any    `yaml:"value"` // legacy alias for threshold
}

// ruleFile accepts either a bare list of rules or a document with a
// top-level "rules:" key.
type ruleFile struct {
	Rules []rawRule `yaml:"rules"`
}

// LoadFile reads an ordered rule set from a YAML file. Entries that cannot
// be interpreted (missing name, unknown operator, no condition) are skipped
// with a warning; a bad entry never fails the whole load.
func LoadFile(path string, logger *slog.Logger) (*Set, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return Parse(data, logger)
}

// Parse interprets YAML rule definitions, preserving declaration order.
func Parse(data []byte, logger *slog.Logger) (*Set, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var raws []rawRule
	if err := yaml.Unmarshal(data, &raws); err != nil {
		var rf ruleFile
		if err2 := yaml.Unmarshal(data, &rf); err2 != nil {
			return nil, fmt.Errorf("parse rules yaml: %w", err)
		}
		raws = rf.Rules
	}

	var out []Rule
	for i, raw := range raws {
		rule, err := raw.toRule()
		if err != nil {
			logger.Warn("skipping unusable rule definition", "index", i, "name", raw.Name, "error", err)
			continue
		}
		out = append(out, rule)
	}
	return NewSet(out...), nil
}

func (r rawRule) toRule() (Rule, error) {
	if r.Name == "" {
		return Rule{}, fmt.Errorf("rule has no name")
	}

	rule := Rule{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Severity:    r.Severity,
	}

	if len(r.Conditions) > 0 {
		for _, rc := range r.Conditions {
			cond, err := rc.toCondition()
			if err != nil {
				return Rule{}, err
			}
			rule.Conditions = append(rule.Conditions, cond)
		}
		return rule, nil
	}

	// Inline shorthand: a single condition on the rule itself.
	opName := r.Operator
	if opName == "" {
		opName = r.Condition
	}
	cond, err := rawCondition{Field: r.Field, Operator: opName, Threshold: r.Threshold}.toCondition()
	if err != nil {
		return Rule{}, err
	}
	rule.Conditions = []Condition{cond}
	return rule, nil
}

func (rc rawCondition) toCondition() (Condition, error) {
	if rc.Field == "" {
		return Condition{}, fmt.Errorf("condition has no field")
	}
	op, err := normalizeOperator(rc.Operator)
	if err != nil {
		return Condition{}, err
	}
	threshold := rc.Threshold
	if threshold == nil {
		threshold = rc.Value
	}
	if threshold == nil {
		return Condition{}, fmt.Errorf("condition on %q has no threshold", rc.Field)
	}
	return Condition{Field: rc.Field, Operator: op, Threshold: threshold}, nil
}

// normalizeOperator maps short aliases onto the canonical operator names.
func normalizeOperator(name string) (Operator, error) {
	switch name {
	case "greater_than", "gt":
		return OpGreaterThan, nil
	case "less_than", "lt":
		return OpLessThan, nil
	case "equals", "eq":
		return OpEquals, nil
	case "not_equals", "ne":
		return OpNotEquals, nil
	case "contains":
		return OpContains, nil
	case "":
		return "", fmt.Errorf("condition has no operator")
	}
	return "", fmt.Errorf("unknown operator %q", name)
}
