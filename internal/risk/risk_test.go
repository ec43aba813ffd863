package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute_WeightingAndRounding(t *testing.T) {
	tests := []struct {
		name      string
		rule, ml  float64
		wantFinal float64
		wantV     Verdict
	}{
		{"all zero", 0, 0, 0, VerdictLow},
		{"all max", 1, 1, 1, VerdictHigh},
		{"rule only", 1, 0, 0.6, VerdictMedium},
		{"ml only", 0, 1, 0.4, VerdictLow},
		{"exactly high threshold", 1, 0.5, 0.8, VerdictHigh},
		{"exactly medium threshold", 0.5, 0.5, 0.5, VerdictMedium},
		{"just below medium", 0.49, 0.5, 0.49, VerdictLow},
		{"one triggered rule of three, hot ml", 1.0 / 3.0, 0.9, 0.56, VerdictMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.rule, tt.ml)
			assert.InDelta(t, tt.wantFinal, got.FinalScore, 1e-9)
			assert.Equal(t, tt.wantV, got.Verdict)
		})
	}
}

func TestCompute_ClampsOutOfRangeInputs(t *testing.T) {
	got := Compute(4.2, -1)
	assert.Equal(t, 1.0, got.RuleScore)
	assert.Equal(t, 0.0, got.MLScore)
	assert.InDelta(t, 0.6, got.FinalScore, 1e-9)
}

func TestCompute_ComponentScoresRounded(t *testing.T) {
	got := Compute(1.0/3.0, 0.666)
	assert.Equal(t, 0.33, got.RuleScore)
	assert.Equal(t, 0.67, got.MLScore)
}
