package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/fraudwatch/internal/cases"
	"github.com/mbd888/fraudwatch/internal/feature"
	"github.com/mbd888/fraudwatch/internal/memory"
	"github.com/mbd888/fraudwatch/internal/pagination"
	"github.com/mbd888/fraudwatch/internal/traces"
)

// -----------------------------------------------------------------------------
// Detection
// -----------------------------------------------------------------------------

func (s *Server) detectHandler(c *gin.Context) {
	var tx feature.Transaction
	if err := c.ShouldBindJSON(&tx); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	ctx, span := traces.StartSpan(c.Request.Context(), "detect.score",
		traces.TxnID(tx.ID), traces.AccountID(tx.AccountID))
	defer span.End()

	report, err := s.detectSvc.Score(ctx, &tx)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_transaction", "message": err.Error()})
		return
	}

	span.SetAttributes(
		traces.Verdict(string(report.RiskScore.Verdict)),
		traces.FinalScore(report.RiskScore.FinalScore))
	c.JSON(http.StatusOK, report)
}

func (s *Server) detectAndEscalateHandler(c *gin.Context) {
	var tx feature.Transaction
	if err := c.ShouldBindJSON(&tx); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	sessionID := c.GetHeader("X-Session-ID")
	if sessionID == "" {
		sessionID = tx.AccountID
	}

	ctx, span := traces.StartSpan(c.Request.Context(), "detect.escalate",
		traces.TxnID(tx.ID), traces.AccountID(tx.AccountID))
	defer span.End()

	out, err := s.detectSvc.DetectAndEscalate(ctx, &tx, sessionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_transaction", "message": err.Error()})
		return
	}

	span.SetAttributes(traces.Branch(string(out.Decision.Branch)))
	if out.Case != nil {
		span.SetAttributes(traces.CaseID(out.Case.ID))
	}
	c.JSON(http.StatusOK, out)
}

// -----------------------------------------------------------------------------
// Cases
// -----------------------------------------------------------------------------

type createCaseRequest struct {
	AccountID   string         `json:"account_id" binding:"required"`
	Description string         `json:"description"`
	Severity    cases.Severity `json:"severity"`
	Source      string         `json:"source"`
	Flags       []string       `json:"flags"`
}

func (s *Server) createCaseHandler(c *gin.Context) {
	var req createCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	created, err := s.caseSvc.Create(c.Request.Context(),
		req.AccountID, req.Description, req.Severity, req.Source, req.Flags)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "create_failed", "message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (s *Server) getCaseHandler(c *gin.Context) {
	got, err := s.caseSvc.Fetch(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, cases.ErrCaseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "case_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, got)
}

func caseKey(cs *cases.Case) pagination.Cursor {
	return pagination.Cursor{CreatedAt: cs.CreatedAt, ID: cs.ID}
}

func (s *Server) listCasesHandler(c *gin.Context) {
	ctx := c.Request.Context()

	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_cursor", "message": err.Error()})
		return
	}
	limit := intQuery(c, "limit", 50)

	var list []*cases.Case
	if account := c.Query("account_id"); account != "" {
		list, err = s.caseSvc.FetchByAccount(ctx, account)
	} else {
		status := cases.Status(c.DefaultQuery("status", string(cases.StatusOpen)))
		list, err = s.caseSvc.FetchByStatus(ctx, status)
	}
	if err != nil {
		if errors.Is(err, cases.ErrInvalidStatus) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status", "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed", "message": err.Error()})
		return
	}

	page := pagination.ComputePage(pagination.SkipPast(list, cursor, caseKey), limit, caseKey)

	resp := gin.H{"cases": page.Items, "count": len(page.Items), "has_more": page.HasMore}
	if page.NextCursor != "" {
		resp["next_cursor"] = page.NextCursor
	}
	c.JSON(http.StatusOK, resp)
}

type updateStatusRequest struct {
	Status cases.Status `json:"status" binding:"required"`
	Notes  string       `json:"notes"`
}

func (s *Server) updateCaseStatusHandler(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	ok, err := s.caseSvc.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, req.Notes)
	if err != nil {
		if errors.Is(err, cases.ErrInvalidStatus) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status", "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed", "message": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "case_not_found", "updated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

type escalateRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) escalateCaseHandler(c *gin.Context) {
	var req escalateRequest
	_ = c.ShouldBindJSON(&req)

	ok, err := s.caseSvc.Escalate(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "escalate_failed", "message": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "case_not_found", "updated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

type resolveRequest struct {
	Resolution string `json:"resolution"`
}

func (s *Server) resolveCaseHandler(c *gin.Context) {
	var req resolveRequest
	_ = c.ShouldBindJSON(&req)

	ok, err := s.detectSvc.ResolveAlert(c.Request.Context(), c.Param("id"), req.Resolution)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolve_failed", "message": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "case_not_found", "updated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

func (s *Server) caseHistoryHandler(c *gin.Context) {
	limit := intQuery(c, "limit", 50)

	records, err := s.memoryRouter.CaseHistory(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

// -----------------------------------------------------------------------------
// Memory
// -----------------------------------------------------------------------------

type storeMemoryRequest struct {
	Record     memory.Record `json:"record" binding:"required"`
	Scope      memory.Scope  `json:"scope" binding:"required"`
	AppendOnly *bool         `json:"append_only"`
}

func (s *Server) storeMemoryHandler(c *gin.Context) {
	var req storeMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	appendOnly := true
	if req.AppendOnly != nil {
		appendOnly = *req.AppendOnly
	}

	if err := s.memoryRouter.Store(c.Request.Context(), req.Record, req.Scope, appendOnly); err != nil {
		if errors.Is(err, memory.ErrUnknownScope) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_scope", "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"stored": true})
}

func (s *Server) retrieveMemoryHandler(c *gin.Context) {
	scope := memory.Scope(c.Param("scope"))

	filters := memory.Filters{}
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			filters[key] = values[0]
		}
	}

	records, err := s.memoryRouter.Retrieve(c.Request.Context(), scope, filters)
	if err != nil {
		if errors.Is(err, memory.ErrUnknownScope) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_scope", "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "retrieve_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

// -----------------------------------------------------------------------------
// Events
// -----------------------------------------------------------------------------

func (s *Server) recentEventsHandler(c *gin.Context) {
	minutes := intQuery(c, "minutes", 60)

	events, err := s.detectSvc.RecentFraudEvents(c.Request.Context(), time.Duration(minutes)*time.Minute)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "events_failed", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

func intQuery(c *gin.Context, key string, fallback int) int {
	if raw := c.Query(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
