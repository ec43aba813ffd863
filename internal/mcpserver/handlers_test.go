package mcpserver

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/fraudwatch/internal/baseline"
	"github.com/mbd888/fraudwatch/internal/cases"
	"github.com/mbd888/fraudwatch/internal/decision"
	"github.com/mbd888/fraudwatch/internal/detect"
	"github.com/mbd888/fraudwatch/internal/memory"
	"github.com/mbd888/fraudwatch/internal/rules"
)

// --- Test helpers ---

type testEnv struct {
	h     *Handlers
	cases *cases.Service
	mem   *memory.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	caseSvc := cases.NewService(cases.NewMemoryStore())
	mem := memory.NewRouter(memory.NewShortTermStore(), memory.NewMemoryLongTermStore())

	set := rules.NewSet(rules.Rule{
		ID:       "r-amount",
		Name:     "high_amount",
		Severity: rules.SeverityHigh,
		Conditions: []rules.Condition{
			{Field: "amount", Operator: rules.OpGreaterThan, Threshold: 10000.0},
		},
	})

	svc := detect.NewService(
		rules.NewEngine(logger),
		set,
		baseline.NewModel(baseline.NewMemoryHistoryStore(), logger),
		decision.NewRouter(nil, nil),
		caseSvc,
		mem,
		detect.WithLogger(logger),
	)

	return &testEnv{h: NewHandlers(svc, caseSvc, mem), cases: caseSvc, mem: mem}
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	if args == nil {
		args = map[string]any{}
	}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content block")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

// ============================================================
// Handler: detect_fraud
// ============================================================

func TestHandleDetectFraud_OpensCase(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.h.HandleDetectFraud(context.Background(), makeRequest(map[string]any{
		"transaction_id": "txn-1",
		"account_id":     "acct-1",
		"amount":         float64(50000),
		"timestamp":      "2026-03-10T10:00:00Z",
		"location":       "XX",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "txn-1")
	assert.Contains(t, text, "high_amount")
	assert.Contains(t, text, "Decision:")
	assert.Contains(t, text, "CASE-")
}

func TestHandleDetectFraud_LowRisk_NoCase(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.h.HandleDetectFraud(context.Background(), makeRequest(map[string]any{
		"transaction_id": "txn-2",
		"account_id":     "acct-1",
		"amount":         float64(10),
		"timestamp":      "2026-03-10T10:00:00Z",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "No case opened.")
}

func TestHandleDetectFraud_MissingTransactionID(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.h.HandleDetectFraud(context.Background(), makeRequest(map[string]any{
		"account_id": "acct-1",
		"amount":     float64(10),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "transaction_id is required")
}

func TestHandleDetectFraud_MissingAccountID(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.h.HandleDetectFraud(context.Background(), makeRequest(map[string]any{
		"transaction_id": "txn-1",
		"amount":         float64(10),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "account_id is required")
}

func TestHandleDetectFraud_NegativeAmount(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.h.HandleDetectFraud(context.Background(), makeRequest(map[string]any{
		"transaction_id": "txn-1",
		"account_id":     "acct-1",
		"amount":         float64(-5),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Detection failed")
}

// ============================================================
// Handler: create_case
// ============================================================

func TestHandleCreateCase(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.h.HandleCreateCase(context.Background(), makeRequest(map[string]any{
		"account_id":  "acct-1",
		"description": "manual referral",
		"severity":    "high",
		"source":      "analyst",
		"flags":       []any{"manual", "velocity"},
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "acct-1")
	assert.Contains(t, text, "Severity: high")
	assert.Contains(t, text, "Status: OPEN")
	assert.Contains(t, text, "manual, velocity")
}

func TestHandleCreateCase_DefaultSeverity(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.h.HandleCreateCase(context.Background(), makeRequest(map[string]any{
		"account_id": "acct-1",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Severity: medium")
}

func TestHandleCreateCase_MissingAccountID(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.h.HandleCreateCase(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "account_id is required")
}

func TestHandleCreateCase_InvalidSeverity(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.h.HandleCreateCase(context.Background(), makeRequest(map[string]any{
		"account_id": "acct-1",
		"severity":   "extreme",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Failed to create case")
}

// ============================================================
// Handler: update_case_status
// ============================================================

func TestHandleUpdateCaseStatus(t *testing.T) {
	env := newTestEnv(t)
	c, err := env.cases.Create(context.Background(), "acct-1", "d", cases.SeverityLow, "test", nil)
	require.NoError(t, err)

	result, err := env.h.HandleUpdateCaseStatus(context.Background(), makeRequest(map[string]any{
		"case_id": c.ID,
		"status":  "INVESTIGATING",
		"notes":   "assigned",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "moved to INVESTIGATING")

	got, err := env.cases.Fetch(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, cases.StatusInvestigating, got.Status)
}

func TestHandleUpdateCaseStatus_NotFound(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.h.HandleUpdateCaseStatus(context.Background(), makeRequest(map[string]any{
		"case_id": "CASE-FFFFFFFF",
		"status":  "RESOLVED",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not found")
}

func TestHandleUpdateCaseStatus_InvalidStatus(t *testing.T) {
	env := newTestEnv(t)
	c, err := env.cases.Create(context.Background(), "acct-1", "d", cases.SeverityLow, "test", nil)
	require.NoError(t, err)

	result, err := env.h.HandleUpdateCaseStatus(context.Background(), makeRequest(map[string]any{
		"case_id": c.ID,
		"status":  "LIMBO",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Failed to update case")
}

func TestHandleUpdateCaseStatus_MissingArgs(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.h.HandleUpdateCaseStatus(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "case_id is required")

	result, err = env.h.HandleUpdateCaseStatus(context.Background(), makeRequest(map[string]any{
		"case_id": "CASE-00000001",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "status is required")
}

// ============================================================
// Handler: escalate_case
// ============================================================

func TestHandleEscalateCase(t *testing.T) {
	env := newTestEnv(t)
	c, err := env.cases.Create(context.Background(), "acct-1", "d", cases.SeverityHigh, "test", nil)
	require.NoError(t, err)

	result, err := env.h.HandleEscalateCase(context.Background(), makeRequest(map[string]any{
		"case_id": c.ID,
		"reason":  "confirmed suspicious",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "escalated")
	assert.Contains(t, resultText(t, result), "confirmed suspicious")

	got, err := env.cases.Fetch(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, cases.StatusEscalated, got.Status)
}

func TestHandleEscalateCase_NotFound(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.h.HandleEscalateCase(context.Background(), makeRequest(map[string]any{
		"case_id": "CASE-FFFFFFFF",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not found")
}

// ============================================================
// Handler: resolve_alert
// ============================================================

func TestHandleResolveAlert(t *testing.T) {
	env := newTestEnv(t)
	c, err := env.cases.Create(context.Background(), "acct-1", "d", cases.SeverityHigh, "test", nil)
	require.NoError(t, err)

	result, err := env.h.HandleResolveAlert(context.Background(), makeRequest(map[string]any{
		"case_id":    c.ID,
		"resolution": "chargeback issued",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "resolved")

	got, err := env.cases.Fetch(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, cases.StatusResolved, got.Status)

	// Resolution lands in long-term memory.
	records, err := env.mem.Retrieve(context.Background(), memory.ScopeLong,
		memory.Filters{"case_id": c.ID, "type": "case_resolution"})
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestHandleResolveAlert_NotFound(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.h.HandleResolveAlert(context.Background(), makeRequest(map[string]any{
		"case_id": "CASE-FFFFFFFF",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not found")
}

// ============================================================
// Handler: get_case_history
// ============================================================

func TestHandleGetCaseHistory(t *testing.T) {
	env := newTestEnv(t)

	// A flagged transaction opens a case and writes its memory trail.
	_, err := env.h.HandleDetectFraud(context.Background(), makeRequest(map[string]any{
		"transaction_id": "txn-1",
		"account_id":     "acct-1",
		"amount":         float64(50000),
		"timestamp":      "2026-03-10T10:00:00Z",
	}))
	require.NoError(t, err)

	open, err := env.cases.FetchByStatus(context.Background(), cases.StatusOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)

	result, err := env.h.HandleGetCaseHistory(context.Background(), makeRequest(map[string]any{
		"case_id": open[0].ID,
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "fraud_event")
	assert.Contains(t, text, "txn-1")
}

func TestHandleGetCaseHistory_Empty(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.h.HandleGetCaseHistory(context.Background(), makeRequest(map[string]any{
		"case_id": "CASE-FFFFFFFF",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "No history")
}

func TestHandleGetCaseHistory_MissingCaseID(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.h.HandleGetCaseHistory(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "case_id is required")
}

// ============================================================
// Handler: fetch_fraud_logs
// ============================================================

func TestHandleFetchFraudLogs_Empty(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.h.HandleFetchFraudLogs(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "No fraud events")
}

func TestHandleFetchFraudLogs_AfterDetection(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.h.HandleDetectFraud(context.Background(), makeRequest(map[string]any{
		"transaction_id": "txn-1",
		"account_id":     "acct-1",
		"amount":         float64(50000),
		"timestamp":      "2026-03-10T10:00:00Z",
	}))
	require.NoError(t, err)

	result, err := env.h.HandleFetchFraudLogs(context.Background(), makeRequest(map[string]any{
		"minutes": float64(60),
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Found 1 record(s)")
	assert.Contains(t, text, "fraud_event")
}

// ============================================================
// Helpers & wiring
// ============================================================

func TestStringSlice(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, stringSlice([]any{"a", "b"}))
	assert.Equal(t, []string{"a"}, stringSlice([]any{"a", 42, true}))
	assert.Nil(t, stringSlice("not an array"))
	assert.Nil(t, stringSlice(nil))
}

func TestNewMCPServer_RegistersAllTools(t *testing.T) {
	env := newTestEnv(t)
	s := NewMCPServer(env.h.detect, env.h.cases, env.h.memory)
	require.NotNil(t, s)
}

func TestHandlers_NeverReturnGoError(t *testing.T) {
	// Handlers report failures through result.IsError; the Go error stays nil.
	env := newTestEnv(t)

	tests := []struct {
		name string
		fn   func() (*mcp.CallToolResult, error)
	}{
		{"DetectFraud", func() (*mcp.CallToolResult, error) {
			return env.h.HandleDetectFraud(context.Background(), makeRequest(nil))
		}},
		{"CreateCase", func() (*mcp.CallToolResult, error) {
			return env.h.HandleCreateCase(context.Background(), makeRequest(nil))
		}},
		{"UpdateCaseStatus", func() (*mcp.CallToolResult, error) {
			return env.h.HandleUpdateCaseStatus(context.Background(), makeRequest(nil))
		}},
		{"EscalateCase", func() (*mcp.CallToolResult, error) {
			return env.h.HandleEscalateCase(context.Background(), makeRequest(nil))
		}},
		{"ResolveAlert", func() (*mcp.CallToolResult, error) {
			return env.h.HandleResolveAlert(context.Background(), makeRequest(nil))
		}},
		{"GetCaseHistory", func() (*mcp.CallToolResult, error) {
			return env.h.HandleGetCaseHistory(context.Background(), makeRequest(nil))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.fn()
			assert.NoError(t, err, "handler should never return Go error")
			assert.NotNil(t, result, "handler should always return a result")
		})
	}
}
