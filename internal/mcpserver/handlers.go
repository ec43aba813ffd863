package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mbd888/fraudwatch/internal/cases"
	"github.com/mbd888/fraudwatch/internal/detect"
	"github.com/mbd888/fraudwatch/internal/feature"
	"github.com/mbd888/fraudwatch/internal/memory"
)

// Handlers holds the handler functions for each MCP tool. They call the
// detection, case, and memory services in-process; failures are reported
// through the tool result, never as Go errors.
type Handlers struct {
	detect *detect.Service
	cases  *cases.Service
	memory *memory.Router
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(detectSvc *detect.Service, caseSvc *cases.Service, mem *memory.Router) *Handlers {
	return &Handlers{detect: detectSvc, cases: caseSvc, memory: mem}
}

// HandleDetectFraud scores a transaction and runs the escalation flow.
func (h *Handlers) HandleDetectFraud(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tx := feature.Transaction{
		ID:        req.GetString("transaction_id", ""),
		AccountID: req.GetString("account_id", ""),
		Amount:    req.GetFloat("amount", 0),
		Timestamp: req.GetString("timestamp", ""),
		Location:  req.GetString("location", ""),
		Merchant:  req.GetString("merchant", ""),
		Type:      req.GetString("type", ""),
		Method:    req.GetString("method", ""),
		DeviceID:  req.GetString("device_id", ""),
	}
	if tx.ID == "" {
		return mcp.NewToolResultError("transaction_id is required"), nil
	}
	if tx.AccountID == "" {
		return mcp.NewToolResultError("account_id is required"), nil
	}

	sessionID := req.GetString("session_id", "")
	if sessionID == "" {
		sessionID = tx.AccountID
	}

	out, err := h.detect.DetectAndEscalate(ctx, &tx, sessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Detection failed: %v", err)), nil
	}

	var sb strings.Builder
	score := out.Report.RiskScore
	fmt.Fprintf(&sb, "Transaction %s scored %.2f (verdict: %s)\n", tx.ID, score.FinalScore, score.Verdict)
	fmt.Fprintf(&sb, "Rule score: %.2f | ML score: %.2f\n", score.RuleScore, score.MLScore)
	if flags := out.Report.RuleTriggered.Flags; len(flags) > 0 {
		fmt.Fprintf(&sb, "Flags: %s\n", strings.Join(flags, ", "))
	}
	fmt.Fprintf(&sb, "Decision: %s (%s)\n", out.Decision.Branch, out.Decision.Reason)

	if out.Case != nil {
		fmt.Fprintf(&sb, "\nCase %s opened with status %s.", out.Case.ID, out.Case.Status)
	} else {
		sb.WriteString("\nNo case opened.")
	}

	return mcp.NewToolResultText(sb.String()), nil
}

// HandleCreateCase opens an investigation case manually.
func (h *Handlers) HandleCreateCase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	accountID := req.GetString("account_id", "")
	if accountID == "" {
		return mcp.NewToolResultError("account_id is required"), nil
	}
	description := req.GetString("description", "")
	severity := cases.Severity(req.GetString("severity", ""))
	source := req.GetString("source", "")
	flags := stringSlice(req.GetArguments()["flags"])

	c, err := h.cases.Create(ctx, accountID, description, severity, source, flags)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create case: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Case %s opened for account %s.\n", c.ID, c.AccountID)
	fmt.Fprintf(&sb, "Severity: %s | Status: %s\n", c.Severity, c.Status)
	if len(c.Flags) > 0 {
		fmt.Fprintf(&sb, "Flags: %s\n", strings.Join(c.Flags, ", "))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleUpdateCaseStatus moves a case to a new status.
func (h *Handlers) HandleUpdateCaseStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	caseID := req.GetString("case_id", "")
	if caseID == "" {
		return mcp.NewToolResultError("case_id is required"), nil
	}
	status := req.GetString("status", "")
	if status == "" {
		return mcp.NewToolResultError("status is required"), nil
	}
	notes := req.GetString("notes", "")

	ok, err := h.cases.UpdateStatus(ctx, caseID, cases.Status(status), notes)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update case: %v", err)), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("Case %s not found", caseID)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Case %s moved to %s.", caseID, status)), nil
}

// HandleEscalateCase escalates a case for compliance review.
func (h *Handlers) HandleEscalateCase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	caseID := req.GetString("case_id", "")
	if caseID == "" {
		return mcp.NewToolResultError("case_id is required"), nil
	}
	reason := req.GetString("reason", "")

	ok, err := h.cases.Escalate(ctx, caseID, reason)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to escalate case: %v", err)), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("Case %s not found", caseID)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Case %s escalated.\nReason: %s", caseID, reason)), nil
}

// HandleResolveAlert resolves a case and records the resolution.
func (h *Handlers) HandleResolveAlert(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	caseID := req.GetString("case_id", "")
	if caseID == "" {
		return mcp.NewToolResultError("case_id is required"), nil
	}
	resolution := req.GetString("resolution", "")

	ok, err := h.detect.ResolveAlert(ctx, caseID, resolution)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve case: %v", err)), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("Case %s not found", caseID)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Case %s resolved.\nResolution: %s", caseID, resolution)), nil
}

// HandleGetCaseHistory fetches the memory trail for a case.
func (h *Handlers) HandleGetCaseHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	caseID := req.GetString("case_id", "")
	if caseID == "" {
		return mcp.NewToolResultError("case_id is required"), nil
	}
	limit := req.GetInt("limit", 20)

	records, err := h.memory.CaseHistory(ctx, caseID, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch history: %v", err)), nil
	}
	if len(records) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No history for case %s.", caseID)), nil
	}

	return mcp.NewToolResultText(formatRecords(records)), nil
}

// HandleFetchFraudLogs lists recent fraud events.
func (h *Handlers) HandleFetchFraudLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	minutes := req.GetInt("minutes", 60)

	events, err := h.detect.RecentFraudEvents(ctx, time.Duration(minutes)*time.Minute)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch fraud logs: %v", err)), nil
	}
	if len(events) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No fraud events in the last %d minute(s).", minutes)), nil
	}

	return mcp.NewToolResultText(formatRecords(events)), nil
}

// --- Formatting helpers ---

func formatRecords(records []memory.Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d record(s):\n\n", len(records))
	for i, r := range records {
		ts := r.Timestamp
		if ts == "" {
			ts = "no timestamp"
		}
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, ts, r.Type)
		if r.CaseID != "" || r.AccountID != "" {
			fmt.Fprintf(&sb, "   Case: %s | Account: %s\n", orDash(r.CaseID), orDash(r.AccountID))
		}
		if len(r.Data) > 0 {
			fmt.Fprintf(&sb, "   %s\n", compactJSON(r.Data))
		}
	}
	return sb.String()
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// stringSlice coerces a JSON array argument into a []string, skipping
// non-string items.
func stringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
