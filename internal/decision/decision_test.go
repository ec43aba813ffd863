package decision

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mbd888/fraudwatch/internal/feature"
)

func TestDecide_Precedence(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want Branch
	}{
		{"default path", Input{}, BranchManualReview},
		{"high risk", Input{RiskScore: 0.85}, BranchHighRiskEscalation},
		{"high risk regardless of pattern", Input{RiskScore: 0.9, PatternMatch: true}, BranchHighRiskEscalation},
		{"pattern match", Input{RiskScore: 0.5, PatternMatch: true}, BranchAutoResolve},
		{"compliance beats high risk", Input{
			RiskScore:  0.99,
			Compliance: ComplianceSignal{Flagged: true, Reason: "sanctions"},
		}, BranchEscalateToCompliance},
		{"compliance beats pattern", Input{
			PatternMatch: true,
			Compliance:   ComplianceSignal{Flagged: true, Reason: "sanctions"},
		}, BranchEscalateToCompliance},
		{"just under high risk", Input{RiskScore: 0.8499}, BranchManualReview},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.in)
			assert.Equal(t, tt.want, got.Branch)
			assert.NotEmpty(t, got.Reason)
		})
	}
}

func TestDecide_ComplianceReasonEchoed(t *testing.T) {
	got := Decide(Input{Compliance: ComplianceSignal{Flagged: true, Reason: "Party match on sanctions list"}})
	assert.Equal(t, "Party match on sanctions list", got.Reason)
}

// Sweep scores at and above the threshold with compliance off: always the
// high-risk branch, whatever the pattern signal says.
func TestDecide_HighRiskProperty(t *testing.T) {
	for _, score := range []float64{0.85, 0.9, 0.95, 1.0} {
		for _, pattern := range []bool{true, false} {
			got := Decide(Input{RiskScore: score, PatternMatch: pattern})
			assert.Equal(t, BranchHighRiskEscalation, got.Branch,
				"score=%v pattern=%v", score, pattern)
		}
	}
}

type failingCompliance struct{}

func (failingCompliance) Check(context.Context, *feature.Transaction, float64) (ComplianceSignal, error) {
	return ComplianceSignal{}, fmt.Errorf("compliance service unavailable")
}

type slowPatternMatcher struct{ delay time.Duration }

func (m slowPatternMatcher) Match(ctx context.Context, _ *feature.Transaction) (string, error) {
	select {
	case <-time.After(m.delay):
		return "late match", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestEvaluate_CollaboratorFailureDegrades(t *testing.T) {
	r := NewRouter(failingCompliance{}, slowPatternMatcher{delay: time.Second},
		WithTimeout(20*time.Millisecond))

	tx := &feature.Transaction{ID: "tx-1", AccountID: "A1", Amount: 10}
	got := r.Evaluate(context.Background(), tx, 0.3, false)

	// Failure and timeout both resolve to fallback signals: default path.
	assert.Equal(t, BranchManualReview, got.Branch)
}

type countingCompliance struct{ calls int }

func (c *countingCompliance) Check(context.Context, *feature.Transaction, float64) (ComplianceSignal, error) {
	c.calls++
	return ComplianceSignal{}, fmt.Errorf("compliance service unavailable")
}

func TestEvaluate_BreakerStopsCallingFailingCollaborator(t *testing.T) {
	cc := &countingCompliance{}
	r := NewRouter(cc, nil, WithTimeout(50*time.Millisecond))

	tx := &feature.Transaction{ID: "tx-1", AccountID: "A1", Amount: 10}
	for i := 0; i < breakerThreshold+3; i++ {
		got := r.Evaluate(context.Background(), tx, 0.3, false)
		assert.Equal(t, BranchManualReview, got.Branch)
	}

	// Circuit opened at the threshold; later calls never reach the collaborator.
	assert.Equal(t, breakerThreshold, cc.calls)
}

func TestEvaluate_NilCollaborators(t *testing.T) {
	r := NewRouter(nil, nil)
	got := r.Evaluate(context.Background(), &feature.Transaction{ID: "t", AccountID: "a"}, 0.9, false)
	assert.Equal(t, BranchHighRiskEscalation, got.Branch)
}

func TestClassifyIntent_FallbackOnMissingClassifier(t *testing.T) {
	r := NewRouter(nil, nil)
	intent := r.ClassifyIntent(context.Background(), "scan this transaction")
	assert.Equal(t, PathFlow, intent.Path)
	assert.Equal(t, FlowDetectAndEscalate, intent.Name)
}

func TestStaticCompliance(t *testing.T) {
	c := NewStaticCompliance()

	sig, err := c.Check(context.Background(), &feature.Transaction{Amount: 500000}, 0.1)
	assert.NoError(t, err)
	assert.True(t, sig.Flagged)
	assert.Equal(t, "Over threshold transfer", sig.Reason)

	sig, err = c.Check(context.Background(), &feature.Transaction{Amount: 10, Merchant: "Sanctioned Exports Ltd"}, 0.1)
	assert.NoError(t, err)
	assert.True(t, sig.Flagged)

	sig, err = c.Check(context.Background(), &feature.Transaction{Amount: 10, Merchant: "corner store"}, 0.1)
	assert.NoError(t, err)
	assert.False(t, sig.Flagged)
}

func TestSignals_CarriesPatternReason(t *testing.T) {
	m := &StaticPatternMatcher{Patterns: map[string]string{
		"giftcard": "known_pattern: gift card drain",
	}}
	r := NewRouter(nil, m)

	tx := &feature.Transaction{ID: "t", AccountID: "a", Merchant: "GiftCard Hub"}
	in := r.Signals(context.Background(), tx, 0.2, false)
	assert.True(t, in.PatternMatch)
	assert.Equal(t, "known_pattern: gift card drain", in.PatternReason)

	in = r.Signals(context.Background(), &feature.Transaction{ID: "t", AccountID: "a", Merchant: "grocery"}, 0.2, false)
	assert.False(t, in.PatternMatch)
	assert.Empty(t, in.PatternReason)
}

func TestStaticPatternMatcher(t *testing.T) {
	m := &StaticPatternMatcher{Patterns: map[string]string{
		"giftcard": "known_pattern: gift card drain",
	}}

	match, err := m.Match(context.Background(), &feature.Transaction{Merchant: "GiftCard Hub"})
	assert.NoError(t, err)
	assert.NotEmpty(t, match)

	match, err = m.Match(context.Background(), &feature.Transaction{Merchant: "grocery"})
	assert.NoError(t, err)
	assert.Empty(t, match)
}
