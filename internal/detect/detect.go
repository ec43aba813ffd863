// Package detect wires the scoring pipeline end to end: feature extraction,
// rule evaluation, behavioral anomaly scoring, risk blending, decision
// routing, and the follow-on case and memory writes.
package detect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mbd888/fraudwatch/internal/baseline"
	"github.com/mbd888/fraudwatch/internal/cases"
	"github.com/mbd888/fraudwatch/internal/decision"
	"github.com/mbd888/fraudwatch/internal/feature"
	"github.com/mbd888/fraudwatch/internal/idgen"
	"github.com/mbd888/fraudwatch/internal/memory"
	"github.com/mbd888/fraudwatch/internal/metrics"
	"github.com/mbd888/fraudwatch/internal/notify"
	"github.com/mbd888/fraudwatch/internal/risk"
	"github.com/mbd888/fraudwatch/internal/rules"
)

// defaultEscalateThreshold marks a report for escalation above this final
// score even when no rule or pattern fired.
const defaultEscalateThreshold = 0.75

// fraudEventType tags long-term memory records written by the detection flow.
const fraudEventType = "fraud_event"

// StructuredCase is the case payload embedded in a detection report.
type StructuredCase struct {
	AccountID string   `json:"account_id"`
	Amount    float64  `json:"amount"`
	Location  string   `json:"location"`
	Method    string   `json:"method"`
	Flags     []string `json:"flags"`
	MLScore   float64  `json:"ml_score"`
	RiskScore float64  `json:"risk_score"`
}

// Report is the output contract of one scoring pass.
type Report struct {
	TransactionID  string           `json:"transaction_id"`
	Reason         string           `json:"reason"`
	RuleTriggered  rules.Evaluation `json:"rule_triggered"`
	MLScore        float64          `json:"ml_score"`
	RiskScore      risk.Score       `json:"risk_score"`
	Escalate       bool             `json:"escalate"`
	StructuredCase StructuredCase   `json:"structured_case"`
}

// Outcome is a full detect-and-escalate flow result: the report, the branch
// the router chose, and the case opened for it (nil when none was needed).
type Outcome struct {
	Report   *Report           `json:"report"`
	Decision decision.Decision `json:"decision"`
	Case     *cases.Case       `json:"case,omitempty"`
}

// Service runs the detection pipeline.
type Service struct {
	engine    *rules.Engine
	ruleSet   *rules.Set
	baselines *baseline.Model
	router    *decision.Router
	cases     *cases.Service
	memory    *memory.Router
	notifier  notify.Notifier
	logger    *slog.Logger

	escalateThreshold float64
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithNotifier sets the alert sink.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithEscalateThreshold overrides the final-score escalation cutoff.
func WithEscalateThreshold(v float64) Option {
	return func(s *Service) { s.escalateThreshold = v }
}

// NewService wires the pipeline stages together.
func NewService(
	engine *rules.Engine,
	ruleSet *rules.Set,
	baselines *baseline.Model,
	router *decision.Router,
	caseSvc *cases.Service,
	mem *memory.Router,
	opts ...Option,
) *Service {
	s := &Service{
		engine:            engine,
		ruleSet:           ruleSet,
		baselines:         baselines,
		router:            router,
		cases:             caseSvc,
		memory:            mem,
		notifier:          notify.Noop{},
		logger:            slog.Default(),
		escalateThreshold: defaultEscalateThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score runs one transaction through the pipeline and returns the report.
// The pass is read-only: no case, memory, or baseline writes.
func (s *Service) Score(ctx context.Context, tx *feature.Transaction) (*Report, error) {
	report, _, err := s.score(ctx, tx)
	return report, err
}

func (s *Service) score(ctx context.Context, tx *feature.Transaction) (*Report, decision.Input, error) {
	start := time.Now()

	if err := tx.Validate(); err != nil {
		return nil, decision.Input{}, fmt.Errorf("invalid transaction: %w", err)
	}

	rec := feature.Extract(tx)
	eval := s.engine.Evaluate(tx, s.ruleSet)
	for _, name := range eval.Flags {
		metrics.RuleTriggered(name)
	}

	b := s.baselines.ForAccount(ctx, tx.AccountID)
	mlScore := baseline.Score(tx, b)
	score := risk.Compute(eval.Ratio, mlScore)

	in := s.router.Signals(ctx, tx, score.FinalScore, eval.Flagged)

	escalate := score.FinalScore > s.escalateThreshold || eval.Flagged || in.PatternMatch

	// Pattern description wins over the rule reason; a score-only
	// escalation still carries a generic one.
	reason := in.PatternReason
	if reason == "" {
		reason = eval.Reason
	}
	if reason == "" && escalate {
		reason = "Suspicious activity detected"
	}

	report := &Report{
		TransactionID: tx.ID,
		Reason:        reason,
		RuleTriggered: eval,
		MLScore:       score.MLScore,
		RiskScore:     score,
		Escalate:      escalate,
		StructuredCase: StructuredCase{
			AccountID: tx.AccountID,
			Amount:    tx.Amount,
			Location:  rec.Location,
			Method:    tx.Method,
			Flags:     eval.Flags,
			MLScore:   score.MLScore,
			RiskScore: score.FinalScore,
		},
	}

	metrics.TransactionScored(string(score.Verdict), time.Since(start))
	s.logger.Debug("transaction scored",
		"txn", tx.ID,
		"account_id", tx.AccountID,
		"final_score", score.FinalScore,
		"verdict", score.Verdict,
		"flagged", eval.Flagged,
		"escalate", escalate)

	return report, in, nil
}

// DetectAndEscalate runs the full flow: score, decide, open and possibly
// escalate a case, log the event to both memory tiers, and fan out alerts.
// Memory and notification writes are best-effort; a failing tier never
// blocks the verdict.
func (s *Service) DetectAndEscalate(ctx context.Context, tx *feature.Transaction, sessionID string) (*Outcome, error) {
	report, in, err := s.score(ctx, tx)
	if err != nil {
		return nil, err
	}

	dec := decision.Decide(in)
	metrics.DecisionBranch(string(dec.Branch))

	out := &Outcome{Report: report, Decision: dec}

	if report.Escalate {
		c, err := s.openCase(ctx, tx, report, dec)
		if err != nil {
			return nil, fmt.Errorf("open case for %s: %w", tx.ID, err)
		}
		out.Case = c
	}

	s.baselines.Observe(ctx, tx)
	s.recordMemory(ctx, tx, report, dec, out.Case, sessionID)

	if report.RiskScore.Verdict == risk.VerdictHigh {
		s.notifier.Notify(ctx, notify.Event{
			Type:      notify.EventHighRiskTxn,
			AccountID: tx.AccountID,
			TxnID:     tx.ID,
			Severity:  string(cases.SeverityHigh),
			RiskScore: report.RiskScore.FinalScore,
			Message:   dec.Reason,
			At:        time.Now().UTC(),
		})
	}

	return out, nil
}

func (s *Service) openCase(ctx context.Context, tx *feature.Transaction, report *Report, dec decision.Decision) (*cases.Case, error) {
	severity := cases.SeverityMedium
	if report.RiskScore.Verdict == risk.VerdictHigh {
		severity = cases.SeverityHigh
	}

	desc := fmt.Sprintf("Suspicious transaction %s for account %s (%.2f)",
		tx.ID, tx.AccountID, tx.Amount)

	c, err := s.cases.Create(ctx, tx.AccountID, desc, severity, "detector", report.StructuredCase.Flags)
	if err != nil {
		return nil, err
	}
	metrics.CaseOpened()

	s.notifier.Notify(ctx, notify.Event{
		Type:      notify.EventCaseOpened,
		CaseID:    c.ID,
		AccountID: tx.AccountID,
		TxnID:     tx.ID,
		Severity:  string(severity),
		RiskScore: report.RiskScore.FinalScore,
		Message:   dec.Reason,
		At:        time.Now().UTC(),
	})

	switch dec.Branch {
	case decision.BranchEscalateToCompliance, decision.BranchHighRiskEscalation:
		if _, err := s.cases.Escalate(ctx, c.ID, dec.Reason); err != nil {
			s.logger.Error("case escalation failed", "case_id", c.ID, "error", err)
		} else {
			c.Status = cases.StatusEscalated
			c.Notes = dec.Reason
			s.notifier.Notify(ctx, notify.Event{
				Type:      notify.EventCaseEscalated,
				CaseID:    c.ID,
				AccountID: tx.AccountID,
				Severity:  string(severity),
				Message:   dec.Reason,
				At:        time.Now().UTC(),
			})
		}
	}

	return c, nil
}

func (s *Service) recordMemory(ctx context.Context, tx *feature.Transaction, report *Report, dec decision.Decision, c *cases.Case, sessionID string) {
	caseID := ""
	if c != nil {
		caseID = c.ID
	}

	snapshot := memory.Record{
		SessionID: sessionID,
		AccountID: tx.AccountID,
		CaseID:    caseID,
		Type:      "risk_snapshot",
		Data: map[string]any{
			"transaction_id": tx.ID,
			"final_score":    report.RiskScore.FinalScore,
			"verdict":        string(report.RiskScore.Verdict),
			"branch":         string(dec.Branch),
		},
	}
	if err := s.memory.Store(ctx, snapshot, memory.ScopeShort, true); err != nil {
		s.logger.Warn("short-term memory write failed", "txn", tx.ID, "error", err)
	}

	event := memory.Record{
		ID:        idgen.WithPrefix("evt_"),
		SessionID: sessionID,
		AccountID: tx.AccountID,
		CaseID:    caseID,
		Type:      fraudEventType,
		Data: map[string]any{
			"transaction_id": tx.ID,
			"amount":         tx.Amount,
			"location":       tx.Location,
			"final_score":    report.RiskScore.FinalScore,
			"verdict":        string(report.RiskScore.Verdict),
			"branch":         string(dec.Branch),
			"reason":         dec.Reason,
			"escalate":       report.Escalate,
		},
	}
	if err := s.memory.Store(ctx, event, memory.ScopeLong, true); err != nil {
		s.logger.Warn("long-term memory write failed", "txn", tx.ID, "error", err)
	}
}

// ResolveAlert closes the loop on a case: marks it RESOLVED with the given
// resolution notes, records the event, and notifies. Returns false when the
// case does not exist.
func (s *Service) ResolveAlert(ctx context.Context, caseID, resolution string) (bool, error) {
	ok, err := s.cases.UpdateStatus(ctx, caseID, cases.StatusResolved, resolution)
	if err != nil || !ok {
		return ok, err
	}

	event := memory.Record{
		ID:     idgen.WithPrefix("evt_"),
		CaseID: caseID,
		Type:   "case_resolution",
		Data:   map[string]any{"resolution": resolution},
	}
	if err := s.memory.Store(ctx, event, memory.ScopeLong, true); err != nil {
		s.logger.Warn("resolution memory write failed", "case_id", caseID, "error", err)
	}

	s.notifier.Notify(ctx, notify.Event{
		Type:    notify.EventAlertResolved,
		CaseID:  caseID,
		Message: resolution,
		At:      time.Now().UTC(),
	})

	return true, nil
}

// RecentFraudEvents returns fraud events recorded in the past interval.
func (s *Service) RecentFraudEvents(ctx context.Context, within time.Duration) ([]memory.Record, error) {
	return s.memory.RecentEvents(ctx, fraudEventType, within)
}
