// Fraudwatch MCP Server - Exposes fraud detection tools for LLMs over stdio
package main

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mbd888/fraudwatch/internal/baseline"
	"github.com/mbd888/fraudwatch/internal/cases"
	"github.com/mbd888/fraudwatch/internal/config"
	"github.com/mbd888/fraudwatch/internal/decision"
	"github.com/mbd888/fraudwatch/internal/detect"
	"github.com/mbd888/fraudwatch/internal/logging"
	"github.com/mbd888/fraudwatch/internal/mcpserver"
	"github.com/mbd888/fraudwatch/internal/memory"
	"github.com/mbd888/fraudwatch/internal/notify"
	"github.com/mbd888/fraudwatch/internal/rules"
)

func main() {
	// Stdout carries the MCP stdio transport; all logging goes to stderr.
	logger := logging.NewWriter(os.Stderr, "warn", "text")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var caseStore cases.Store
	var longTerm memory.LongTermStore
	var historyStore baseline.HistoryStore
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()

		db.SetMaxOpenConns(10)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.Ping(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
			os.Exit(1)
		}

		caseStore = cases.NewPostgresStore(db)
		longTerm = memory.NewPostgresLongTermStore(db)
		historyStore = baseline.NewPostgresHistoryStore(db)
	} else {
		caseStore = cases.NewMemoryStore()
		longTerm = memory.NewMemoryLongTermStore()
		historyStore = baseline.NewMemoryHistoryStore()
	}

	var ruleSet *rules.Set
	if cfg.RulesPath != "" {
		ruleSet, err = rules.LoadFile(cfg.RulesPath, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load rules from %s: %v\n", cfg.RulesPath, err)
			os.Exit(1)
		}
	} else {
		ruleSet = rules.DefaultSet()
	}

	caseSvc := cases.NewService(caseStore, cases.WithLogger(logger))
	mem := memory.NewRouter(memory.NewShortTermStore(), longTerm, memory.WithLogger(logger))

	compliance := decision.NewStaticCompliance()
	compliance.AmountCeiling = cfg.ComplianceCeiling
	patterns := &decision.StaticPatternMatcher{Patterns: map[string]string{
		"gift card": "known_pattern: gift card drain",
		"crypto":    "known_pattern: crypto off-ramp",
	}}

	detectSvc := detect.NewService(
		rules.NewEngine(logger),
		ruleSet,
		baseline.NewModel(historyStore, logger,
			baseline.WithHistoryWindow(cfg.BaselineHistoryLimit)),
		decision.NewRouter(compliance, patterns,
			decision.WithLogger(logger),
			decision.WithTimeout(cfg.CollaboratorTimeout)),
		caseSvc,
		mem,
		detect.WithLogger(logger),
		detect.WithNotifier(notify.NewLogNotifier(logger)),
		detect.WithEscalateThreshold(cfg.EscalateThreshold),
	)

	s := mcpserver.NewMCPServer(detectSvc, caseSvc, mem)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}
