package rules

// DefaultSet returns the built-in rule set used when no rule file is
// configured. Kept intentionally small; deployments ship their own YAML.
func DefaultSet() *Set {
	return NewSet(
		Rule{
			ID:          "default-high-amount",
			Name:        "high_amount",
			Description: "Single transaction over 10k",
			Severity:    SeverityHigh,
			Conditions: []Condition{
				{Field: "amount", Operator: OpGreaterThan, Threshold: 10000.0},
			},
		},
		Rule{
			ID:          "default-wire",
			Name:        "large_wire_transfer",
			Description: "Wire transfers over 5k",
			Severity:    SeverityMedium,
			Conditions: []Condition{
				{Field: "type", Operator: OpEquals, Threshold: "wire"},
				{Field: "amount", Operator: OpGreaterThan, Threshold: 5000.0},
			},
		},
		Rule{
			ID:          "default-crypto",
			Name:        "crypto_offramp",
			Description: "Purchases at crypto exchanges",
			Severity:    SeverityLow,
			Conditions: []Condition{
				{Field: "merchant", Operator: OpContains, Threshold: "crypto"},
			},
		},
	)
}
