// Package rules implements the deterministic fraud rule engine: an ordered
// rule set loaded from YAML, evaluated against transactions with a closed
// condition vocabulary. No host-environment access, no expression eval.
package rules

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mbd888/fraudwatch/internal/feature"
)

// Operator is the closed set of condition operators.
type Operator string

const (
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
)

// Severity levels a rule may carry.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Condition is one field/operator/threshold tuple. A rule triggers only if
// all of its conditions match.
type Condition struct {
	Field     string   `yaml:"field"`
	Operator  Operator `yaml:"operator"`
	Threshold any      `yaml:"threshold"`
}

// Rule is a single named condition set over transaction fields.
type Rule struct {
	ID          string      `yaml:"id"`
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Severity    string      `yaml:"severity"`
	Conditions  []Condition `yaml:"conditions"`
}

// Set is an ordered rule collection. Order is preserved from the definition
// file so triggered-rule output is deterministic.
type Set struct {
	rules []Rule
}

// NewSet builds a rule set from rules in the given order.
func NewSet(rules ...Rule) *Set {
	return &Set{rules: rules}
}

// Rules returns the ordered rules.
func (s *Set) Rules() []Rule { return s.rules }

// Len returns the number of rules in the set.
func (s *Set) Len() int { return len(s.rules) }

// Evaluation is the result of running a rule set against one transaction.
type Evaluation struct {
	Flagged bool     `json:"flagged"`
	Flags   []string `json:"flags"`  // triggered rule names, rule-set order
	Reason  string   `json:"reason"` // empty when nothing triggered
	Ratio   float64  `json:"ratio"`  // triggered / total, 0 for empty set
}

// Engine evaluates rule sets. Stateless; safe for concurrent use.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a rule engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Evaluate runs every rule in order. A rule whose target field is absent is
// silently skipped; a rule that cannot be evaluated (type mismatch, bad
// threshold) is skipped and logged. The batch always produces a result.
func (e *Engine) Evaluate(tx *feature.Transaction, set *Set) Evaluation {
	var flags []string

	for _, rule := range set.Rules() {
		matched, err := e.matches(tx, rule)
		if err != nil {
			e.logger.Warn("rule skipped", "rule", rule.Name, "error", err)
			continue
		}
		if matched {
			flags = append(flags, rule.Name)
		}
	}

	ev := Evaluation{Flags: flags}
	if len(flags) > 0 {
		ev.Flagged = true
		ev.Reason = "Triggered rules: " + strings.Join(flags, ", ")
	}
	if n := set.Len(); n > 0 {
		ev.Ratio = float64(len(flags)) / float64(n)
	}
	return ev
}

// matches reports whether every condition of the rule holds. A missing field
// on any condition means the rule does not apply (nil error, no match).
func (e *Engine) matches(tx *feature.Transaction, rule Rule) (bool, error) {
	if len(rule.Conditions) == 0 {
		return false, fmt.Errorf("rule %q has no conditions", rule.Name)
	}
	for _, cond := range rule.Conditions {
		value, ok := tx.Field(cond.Field)
		if !ok {
			return false, nil
		}
		matched, err := compare(value, cond.Operator, cond.Threshold)
		if err != nil {
			return false, err
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

// compare applies one operator. Numeric operators require both sides to be
// numeric and fail-skip otherwise; contains requires both sides to be strings.
func compare(value any, op Operator, threshold any) (bool, error) {
	switch op {
	case OpGreaterThan, OpLessThan:
		v, vok := toFloat(value)
		t, tok := toFloat(threshold)
		if !vok || !tok {
			return false, fmt.Errorf("non-numeric operands for %s: %T vs %T", op, value, threshold)
		}
		if op == OpGreaterThan {
			return v > t, nil
		}
		return v < t, nil

	case OpEquals:
		return valuesEqual(value, threshold), nil

	case OpNotEquals:
		return !valuesEqual(value, threshold), nil

	case OpContains:
		vs, vok := value.(string)
		ts, tok := threshold.(string)
		if !vok || !tok {
			return false, fmt.Errorf("contains requires string operands, got %T and %T", value, threshold)
		}
		return strings.Contains(vs, ts), nil
	}
	return false, fmt.Errorf("unknown operator %q", op)
}

// valuesEqual is exact equality, with numeric types compared by value so a
// YAML integer threshold matches a float transaction field.
func valuesEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
