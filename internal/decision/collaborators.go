package decision

import (
	"context"
	"strings"

	"github.com/mbd888/fraudwatch/internal/feature"
)

// ComplianceChecker verifies a transaction against compliance SOPs.
// Production deployments back this with a vector-grounded SOP index; the
// router only ever consumes the resolved signal.
type ComplianceChecker interface {
	Check(ctx context.Context, tx *feature.Transaction, riskScore float64) (ComplianceSignal, error)
}

// PatternMatcher searches known fraud patterns for a semantic match.
// Returns the matched pattern description, or "" for no match.
type PatternMatcher interface {
	Match(ctx context.Context, tx *feature.Transaction) (string, error)
}

// ExecutionPath is how a classified request should be handled.
type ExecutionPath string

const (
	PathTool ExecutionPath = "tool"
	PathFlow ExecutionPath = "flow"
)

// Known flow names for intent fallback routing.
const (
	FlowDetectAndEscalate = "detect_and_escalate"
	FlowResolveAlert      = "resolve_alert"
)

// Intent is a classified execution target: a named tool or a named flow.
type Intent struct {
	Path ExecutionPath `json:"path"`
	Name string        `json:"name"`
}

// IntentClassifier chooses between tool and flow execution for a request.
// Backed by an LLM in production; modeled here as a collaborator with a
// mandatory timeout + fallback at the call site.
type IntentClassifier interface {
	Classify(ctx context.Context, message string) (Intent, error)
}

// ---------------------------------------------------------------------------
// Static collaborators: deterministic stand-ins for demo mode and tests.
// ---------------------------------------------------------------------------

// Descriptions for built-in compliance flags.
var complianceFlagDescriptions = map[string]string{
	"HIGH_VALUE_TXN":    "Over threshold transfer",
	"SANCTION_HIT":      "Party match on sanctions list",
	"LOCATION_MISMATCH": "Geo-IP vs known device mismatch",
}

// StaticCompliance flags transactions over a fixed amount ceiling or whose
// merchant matches a sanction watch term.
type StaticCompliance struct {
	AmountCeiling float64
	WatchTerms    []string
}

var _ ComplianceChecker = (*StaticCompliance)(nil)

// NewStaticCompliance creates the built-in compliance checker.
func NewStaticCompliance() *StaticCompliance {
	return &StaticCompliance{
		AmountCeiling: 100000,
		WatchTerms:    []string{"sanction", "embargo"},
	}
}

func (c *StaticCompliance) Check(_ context.Context, tx *feature.Transaction, _ float64) (ComplianceSignal, error) {
	if c.AmountCeiling > 0 && tx.Amount > c.AmountCeiling {
		return ComplianceSignal{Flagged: true, Reason: complianceFlagDescriptions["HIGH_VALUE_TXN"]}, nil
	}
	haystack := strings.ToLower(tx.Merchant + " " + tx.Location)
	for _, term := range c.WatchTerms {
		if strings.Contains(haystack, term) {
			return ComplianceSignal{Flagged: true, Reason: complianceFlagDescriptions["SANCTION_HIT"]}, nil
		}
	}
	return ComplianceSignal{}, nil
}

// StaticPatternMatcher matches transactions against a fixed list of known
// fraud pattern descriptions keyed by merchant/location substrings.
type StaticPatternMatcher struct {
	Patterns map[string]string // substring → pattern description
}

var _ PatternMatcher = (*StaticPatternMatcher)(nil)

func (m *StaticPatternMatcher) Match(_ context.Context, tx *feature.Transaction) (string, error) {
	haystack := strings.ToLower(tx.Merchant + " " + tx.Location + " " + tx.Type)
	for needle, desc := range m.Patterns {
		if strings.Contains(haystack, strings.ToLower(needle)) {
			return desc, nil
		}
	}
	return "", nil
}
