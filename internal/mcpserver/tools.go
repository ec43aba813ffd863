package mcpserver

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mbd888/fraudwatch/internal/feature"
)

// Tool definitions for the Fraudwatch MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolDetectFraud = mcp.NewTool("detect_fraud",
	mcp.WithDescription(
		"Score a transaction for fraud risk and route it through the decision "+
			"pipeline. Runs rule evaluation and behavioral anomaly scoring, picks "+
			"a decision branch, opens and escalates a fraud case when warranted, "+
			"and records the event in investigation memory."),
	mcp.WithString("transaction_id",
		mcp.Required(),
		mcp.Description("Unique transaction identifier (e.g. 'txn_20931')")),
	mcp.WithString("account_id",
		mcp.Required(),
		mcp.Description("Account the transaction belongs to")),
	mcp.WithNumber("amount",
		mcp.Required(),
		mcp.Description("Transaction amount, non-negative")),
	mcp.WithString("timestamp",
		mcp.Description("Transaction time, RFC 3339 or bare ISO 8601 (e.g. '2026-03-10T03:00:00Z')")),
	mcp.WithString("location",
		mcp.Description("Where the transaction originated (city, country code, etc.)")),
	mcp.WithString("merchant",
		mcp.Description("Merchant or counterparty name")),
	mcp.WithString("type",
		mcp.Description("Transaction type, typically one of: "+strings.Join(feature.KnownTypes, ", "))),
	mcp.WithString("method",
		mcp.Description("Payment method (e.g. 'card', 'ach')")),
	mcp.WithString("device_id",
		mcp.Description("Device identifier, if known")),
	mcp.WithString("session_id",
		mcp.Description("Investigation session key for working memory. Defaults to the account ID.")),
)

var ToolCreateCase = mcp.NewTool("create_case",
	mcp.WithDescription(
		"Open a fraud investigation case manually. "+
			"Returns the new case ID; the case starts in status OPEN."),
	mcp.WithString("account_id",
		mcp.Required(),
		mcp.Description("Account under investigation")),
	mcp.WithString("description",
		mcp.Description("What prompted the case")),
	mcp.WithString("severity",
		mcp.Description("Case severity. Defaults to 'medium'."),
		mcp.Enum("low", "medium", "high")),
	mcp.WithString("source",
		mcp.Description("Where the referral came from (e.g. 'analyst', 'chargeback')")),
	mcp.WithArray("flags",
		mcp.Description("Rule or pattern flags to attach to the case")),
)

var ToolUpdateCaseStatus = mcp.NewTool("update_case_status",
	mcp.WithDescription(
		"Move a fraud case to a new status. The usual ladder is "+
			"OPEN -> INVESTIGATING -> ESCALATED -> RESOLVED -> CLOSED, but any "+
			"valid status is accepted."),
	mcp.WithString("case_id",
		mcp.Required(),
		mcp.Description("The case ID (e.g. 'CASE-1A2B3C4D')")),
	mcp.WithString("status",
		mcp.Required(),
		mcp.Description("Target status"),
		mcp.Enum("OPEN", "INVESTIGATING", "ESCALATED", "RESOLVED", "CLOSED")),
	mcp.WithString("notes",
		mcp.Description("Notes explaining the transition")),
)

var ToolEscalateCase = mcp.NewTool("escalate_case",
	mcp.WithDescription(
		"Escalate a fraud case for compliance review. "+
			"Shorthand for moving the case to ESCALATED with a reason."),
	mcp.WithString("case_id",
		mcp.Required(),
		mcp.Description("The case ID to escalate")),
	mcp.WithString("reason",
		mcp.Description("Why the case is being escalated")),
)

var ToolResolveAlert = mcp.NewTool("resolve_alert",
	mcp.WithDescription(
		"Resolve a fraud case: marks it RESOLVED, records the resolution in "+
			"long-term memory, and notifies subscribers."),
	mcp.WithString("case_id",
		mcp.Required(),
		mcp.Description("The case ID to resolve")),
	mcp.WithString("resolution",
		mcp.Description("Resolution notes (e.g. 'confirmed fraud, card reissued')")),
)

var ToolGetCaseHistory = mcp.NewTool("get_case_history",
	mcp.WithDescription(
		"Fetch the memory trail for a case: risk snapshots, fraud events, and "+
			"resolutions from both memory tiers, newest first."),
	mcp.WithString("case_id",
		mcp.Required(),
		mcp.Description("The case ID to look up")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of records to return (default 20)")),
)

var ToolFetchFraudLogs = mcp.NewTool("fetch_fraud_logs",
	mcp.WithDescription(
		"List fraud events recorded by the detection pipeline in the recent "+
			"past, newest first. Useful for spotting account-level patterns."),
	mcp.WithNumber("minutes",
		mcp.Description("Lookback window in minutes (default 60)")),
)
