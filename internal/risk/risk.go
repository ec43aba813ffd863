// Package risk combines rule and behavioral anomaly signals into a single
// composite fraud score and coarse verdict. Scores range 0.0 (safe) to 1.0
// (high risk); the weighting and thresholds are fixed product constants.
package risk

import "math"

// Verdict is the coarse classification of a final score.
type Verdict string

const (
	VerdictLow    Verdict = "low"
	VerdictMedium Verdict = "medium"
	VerdictHigh   Verdict = "high"
)

// Composite weighting and verdict thresholds.
const (
	weightRules = 0.6
	weightML    = 0.4

	highThreshold   = 0.8
	mediumThreshold = 0.5
)

// Score is the result of combining one transaction's signals.
type Score struct {
	RuleScore  float64 `json:"rule_score"`
	MLScore    float64 `json:"ml_score"`
	FinalScore float64 `json:"final_score"`
	Verdict    Verdict `json:"verdict"`
}

// Compute combines a rule score (flagged-count ratio or binary 0/1,
// depending on the producing path) with an anomaly score. Inputs are
// clamped to [0,1] before weighting; all outputs round to 2 decimals.
func Compute(ruleScore, mlScore float64) Score {
	ruleScore = clamp01(ruleScore)
	mlScore = clamp01(mlScore)

	final := round2(weightRules*ruleScore + weightML*mlScore)

	verdict := VerdictLow
	switch {
	case final >= highThreshold:
		verdict = VerdictHigh
	case final >= mediumThreshold:
		verdict = VerdictMedium
	}

	return Score{
		RuleScore:  round2(ruleScore),
		MLScore:    round2(mlScore),
		FinalScore: final,
		Verdict:    verdict,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
