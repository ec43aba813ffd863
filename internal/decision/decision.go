// Package decision picks the single next action for a scored transaction.
//
// Branching precedence is fixed and load-bearing: a compliance hit always
// wins over generic high-risk handling, which wins over a known-pattern
// auto-resolve. Exactly one branch comes back from every call; collaborator
// failures degrade to their fallback signals and never surface here.
package decision

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mbd888/fraudwatch/internal/circuitbreaker"
	"github.com/mbd888/fraudwatch/internal/feature"
	"github.com/mbd888/fraudwatch/internal/metrics"
)

// Branch is the closed set of decision outcomes.
type Branch string

const (
	BranchEscalateToCompliance Branch = "escalate_to_compliance"
	BranchHighRiskEscalation   Branch = "high_risk_escalation"
	BranchAutoResolve          Branch = "auto_resolve"
	BranchManualReview         Branch = "manual_review"
)

// highRiskThreshold routes to high_risk_escalation at or above this score.
const highRiskThreshold = 0.85

// defaultCollaboratorTimeout bounds each external call per invocation.
const defaultCollaboratorTimeout = 2 * time.Second

// Breaker settings for collaborator calls: trip after three consecutive
// failures, probe again after 30 seconds.
const (
	breakerThreshold    = 3
	breakerOpenDuration = 30 * time.Second
)

var errCircuitOpen = errors.New("collaborator circuit open")

// Decision pairs the chosen branch with its reason. Both fields are always
// populated.
type Decision struct {
	Branch Branch `json:"branch"`
	Reason string `json:"reason"`
}

// ComplianceSignal is the resolved output of a compliance check.
type ComplianceSignal struct {
	Flagged bool
	Reason  string
}

// Input carries the resolved signals the router branches on.
type Input struct {
	RiskScore     float64
	RuleFlagged   bool
	Compliance    ComplianceSignal
	PatternMatch  bool
	PatternReason string // description of the matched pattern, empty when none
}

// Decide applies the precedence ladder top-down; first match wins.
// Pure: it consumes resolved signals only and cannot fail.
func Decide(in Input) Decision {
	if in.Compliance.Flagged {
		return Decision{Branch: BranchEscalateToCompliance, Reason: in.Compliance.Reason}
	}
	if in.RiskScore >= highRiskThreshold {
		return Decision{Branch: BranchHighRiskEscalation, Reason: "Risk score exceeds threshold"}
	}
	if in.PatternMatch {
		return Decision{Branch: BranchAutoResolve, Reason: "Matched known fraud pattern"}
	}
	return Decision{Branch: BranchManualReview, Reason: "Default path"}
}

// Router resolves collaborator signals with bounded timeouts and a circuit
// breaker per collaborator, then decides.
type Router struct {
	compliance ComplianceChecker
	patterns   PatternMatcher
	intents    IntentClassifier
	timeout    time.Duration
	breaker    *circuitbreaker.Breaker
	logger     *slog.Logger
}

// Option configures the Router.
type Option func(*Router)

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithTimeout overrides the per-collaborator call timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Router) { r.timeout = d }
}

// WithIntentClassifier sets the tool/flow intent collaborator.
func WithIntentClassifier(ic IntentClassifier) Option {
	return func(r *Router) { r.intents = ic }
}

// NewRouter creates a router over the given collaborators. Either
// collaborator may be nil; its signal then resolves to the fallback.
func NewRouter(compliance ComplianceChecker, patterns PatternMatcher, opts ...Option) *Router {
	r := &Router{
		compliance: compliance,
		patterns:   patterns,
		timeout:    defaultCollaboratorTimeout,
		breaker:    circuitbreaker.New(breakerThreshold, breakerOpenDuration),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.breaker.OnTransition(func(key string, from, to circuitbreaker.State) {
		metrics.CollaboratorBreakerTransition(key, from.String(), to.String())
		r.logger.Warn("collaborator circuit state changed",
			"collaborator", key, "from", from.String(), "to", to.String())
	})
	return r
}

// Evaluate resolves the compliance and pattern signals for one transaction
// and returns the branch decision. Collaborator errors and timeouts fall
// back to not-flagged / no-match; the transaction is never left untriaged.
func (r *Router) Evaluate(ctx context.Context, tx *feature.Transaction, riskScore float64, ruleFlagged bool) Decision {
	return Decide(r.Signals(ctx, tx, riskScore, ruleFlagged))
}

// Signals resolves the collaborator inputs for one transaction without
// deciding. Errors and timeouts degrade to the fallback signal values.
func (r *Router) Signals(ctx context.Context, tx *feature.Transaction, riskScore float64, ruleFlagged bool) Input {
	in := Input{RiskScore: riskScore, RuleFlagged: ruleFlagged}

	if r.compliance != nil {
		in.Compliance = guarded(ctx, r, "compliance", ComplianceSignal{},
			func(ctx context.Context) (ComplianceSignal, error) {
				return r.compliance.Check(ctx, tx, riskScore)
			},
			func(err error) {
				metrics.CollaboratorFailure("compliance")
				r.logger.Warn("compliance check degraded to not-flagged", "txn", tx.ID, "error", err)
			})
	}

	if r.patterns != nil {
		match := guarded(ctx, r, "pattern_match", "",
			func(ctx context.Context) (string, error) {
				return r.patterns.Match(ctx, tx)
			},
			func(err error) {
				metrics.CollaboratorFailure("pattern_match")
				r.logger.Warn("pattern match degraded to no-match", "txn", tx.ID, "error", err)
			})
		in.PatternMatch = match != ""
		in.PatternReason = match
	}

	return in
}

// ClassifyIntent resolves the tool/flow execution path for a free-form
// request, falling back to flow execution of the detection pipeline when
// the classifier is absent, slow, or failing.
func (r *Router) ClassifyIntent(ctx context.Context, message string) Intent {
	fallback := Intent{Path: PathFlow, Name: FlowDetectAndEscalate}
	if r.intents == nil {
		return fallback
	}
	return guarded(ctx, r, "intent_classifier", fallback,
		func(ctx context.Context) (Intent, error) {
			return r.intents.Classify(ctx, message)
		},
		func(err error) {
			metrics.CollaboratorFailure("intent_classifier")
			r.logger.Warn("intent classification degraded to default flow", "error", err)
		})
}

// guarded wraps callWithTimeout with the router's circuit breaker: an open
// circuit skips the call entirely, and the outcome feeds the breaker.
func guarded[T any](ctx context.Context, r *Router, name string, fallback T, fn func(context.Context) (T, error), onErr func(error)) T {
	if !r.breaker.Allow(name) {
		onErr(errCircuitOpen)
		return fallback
	}

	failed := false
	out := callWithTimeout(ctx, r.timeout, fallback, fn, func(err error) {
		failed = true
		r.breaker.RecordFailure(name)
		onErr(err)
	})
	if !failed {
		r.breaker.RecordSuccess(name)
	}
	return out
}

// callWithTimeout runs fn with a bounded deadline and returns fallback on
// error or timeout, reporting the failure through onErr.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fallback T, fn func(context.Context) (T, error), onErr func(error)) T {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		onErr(ctx.Err())
		return fallback
	case res := <-ch:
		if res.err != nil {
			onErr(res.err)
			return fallback
		}
		return res.value
	}
}
