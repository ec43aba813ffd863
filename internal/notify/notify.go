// Package notify fans fraud alerts out to interested sinks: logs, the
// realtime hub, or anything else implementing Notifier.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Event types emitted by the detection and case layers.
const (
	EventCaseOpened    = "case_opened"
	EventCaseEscalated = "case_escalated"
	EventAlertResolved = "alert_resolved"
	EventHighRiskTxn   = "high_risk_transaction"
)

// Event is a single alert to be delivered.
type Event struct {
	Type      string    `json:"type"`
	CaseID    string    `json:"case_id,omitempty"`
	AccountID string    `json:"account_id,omitempty"`
	TxnID     string    `json:"transaction_id,omitempty"`
	Severity  string    `json:"severity,omitempty"`
	Message   string    `json:"message,omitempty"`
	RiskScore float64   `json:"risk_score,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier delivers alert events. Implementations must not block the
// caller beyond the context deadline and must swallow their own errors;
// alerting is best-effort by design of the callers.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// LogNotifier writes events to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that logs each event.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, ev Event) {
	n.logger.Info("fraud alert",
		"event", ev.Type,
		"case_id", ev.CaseID,
		"account_id", ev.AccountID,
		"transaction_id", ev.TxnID,
		"severity", ev.Severity,
		"risk_score", ev.RiskScore,
		"message", ev.Message)
}

// Multi delivers each event to every wrapped notifier in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) {
	for _, n := range m {
		n.Notify(ctx, ev)
	}
}

// Noop discards all events.
type Noop struct{}

func (Noop) Notify(context.Context, Event) {}
