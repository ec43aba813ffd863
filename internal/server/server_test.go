package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/fraudwatch/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a minimal in-memory config for testing
func testConfig() *config.Config {
	return &config.Config{
		Port:                 "0",
		Env:                  "development",
		LogLevel:             "error",
		EscalateThreshold:    config.DefaultEscalateThreshold,
		ComplianceCeiling:    config.DefaultComplianceCeiling,
		CollaboratorTimeout:  time.Second,
		BaselineHistoryLimit: config.DefaultHistoryLimit,
	}
}

func testServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig())
	require.NoError(t, err)
	return s
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoints(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, w.Code)

	// Not ready until Run() marks it
	w = doJSON(t, s, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := testServer(t)
	w := doJSON(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fraudwatch")
}

func TestDetect(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodPost, "/v1/detect", `{
		"transaction_id": "tx-1",
		"account_id": "acct-1",
		"amount": 50000,
		"timestamp": "2026-03-10T10:00:00Z",
		"location": "XX"
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report struct {
		TransactionID string `json:"transaction_id"`
		RiskScore     struct {
			FinalScore float64 `json:"final_score"`
			Verdict    string  `json:"verdict"`
		} `json:"risk_score"`
		Escalate       bool `json:"escalate"`
		StructuredCase struct {
			AccountID string   `json:"account_id"`
			Flags     []string `json:"flags"`
		} `json:"structured_case"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))

	assert.Equal(t, "tx-1", report.TransactionID)
	assert.Equal(t, "acct-1", report.StructuredCase.AccountID)
	assert.Contains(t, report.StructuredCase.Flags, "high_amount")
	assert.True(t, report.Escalate)
	assert.Greater(t, report.RiskScore.FinalScore, 0.0)
}

func TestDetect_InvalidBody(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodPost, "/v1/detect", `{"amount": "not a number"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing required identifiers
	w = doJSON(t, s, http.MethodPost, "/v1/detect", `{"amount": 10}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDetectAndEscalate_CreatesCase(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodPost, "/v1/detect/escalate", `{
		"transaction_id": "tx-1",
		"account_id": "acct-1",
		"amount": 50000,
		"timestamp": "2026-03-10T10:00:00Z"
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out struct {
		Decision struct {
			Branch string `json:"branch"`
			Reason string `json:"reason"`
		} `json:"decision"`
		Case *struct {
			ID     string `json:"case_id"`
			Status string `json:"status"`
		} `json:"case"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.NotNil(t, out.Case)
	assert.True(t, strings.HasPrefix(out.Case.ID, "CASE-"))
	assert.NotEmpty(t, out.Decision.Branch)

	// The case is fetchable afterwards.
	w = doJSON(t, s, http.MethodGet, "/v1/cases/"+out.Case.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)

	// And shows up in its history.
	w = doJSON(t, s, http.MethodGet, "/v1/cases/"+out.Case.ID+"/history?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	var hist struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	assert.Greater(t, hist.Count, 0)
}

func TestCaseLifecycleOverHTTP(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodPost, "/v1/cases", `{
		"account_id": "acct-1",
		"description": "manual referral",
		"severity": "low",
		"source": "analyst",
		"flags": ["manual"]
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID     string `json:"case_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "OPEN", created.Status)

	// Listing by status includes it
	w = doJSON(t, s, http.MethodGet, "/v1/cases?status=OPEN", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), created.ID)

	// Move it through the lifecycle
	w = doJSON(t, s, http.MethodPatch, "/v1/cases/"+created.ID+"/status",
		`{"status": "INVESTIGATING", "notes": "assigned"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodPost, "/v1/cases/"+created.ID+"/escalate",
		`{"reason": "confirmed suspicious"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodPost, "/v1/cases/"+created.ID+"/resolve",
		`{"resolution": "chargeback issued"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/v1/cases/"+created.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"RESOLVED"`)
}

func TestListCases_Pagination(t *testing.T) {
	s := testServer(t)

	for i := 0; i < 3; i++ {
		w := doJSON(t, s, http.MethodPost, "/v1/cases", `{
			"account_id": "acct-1",
			"description": "manual referral",
			"severity": "low"
		}`)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	type listResponse struct {
		Cases []struct {
			ID string `json:"case_id"`
		} `json:"cases"`
		Count      int    `json:"count"`
		NextCursor string `json:"next_cursor"`
		HasMore    bool   `json:"has_more"`
	}

	w := doJSON(t, s, http.MethodGet, "/v1/cases?status=OPEN&limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var first listResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.Equal(t, 2, first.Count)
	assert.True(t, first.HasMore)
	require.NotEmpty(t, first.NextCursor)

	w = doJSON(t, s, http.MethodGet, "/v1/cases?status=OPEN&limit=2&cursor="+first.NextCursor, "")
	require.Equal(t, http.StatusOK, w.Code)
	var second listResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, 1, second.Count)
	assert.False(t, second.HasMore)

	// No overlap between pages.
	seen := map[string]bool{}
	for _, cs := range append(first.Cases, second.Cases...) {
		assert.False(t, seen[cs.ID], "case %s appeared twice", cs.ID)
		seen[cs.ID] = true
	}
	assert.Len(t, seen, 3)
}

func TestListCases_InvalidCursor(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodGet, "/v1/cases?cursor=%21%21%21", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimiting(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 60
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.limiter.Stop() })

	limited := false
	for i := 0; i < 20; i++ {
		w := doJSON(t, s, http.MethodGet, "/api", "")
		if w.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	assert.True(t, limited, "burst of requests from one client never hit the limit")
}

func TestCaseNotFound(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodGet, "/v1/cases/CASE-NONEXISTENT", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, s, http.MethodPatch, "/v1/cases/CASE-NONEXISTENT/status",
		`{"status": "RESOLVED"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, s, http.MethodPost, "/v1/cases/CASE-NONEXISTENT/resolve",
		`{"resolution": "n/a"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidStatusRejected(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodGet, "/v1/cases?status=BOGUS", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMemoryEndpoints(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodPost, "/v1/memory", `{
		"scope": "long",
		"record": {"id": "rec-1", "case_id": "CASE-AAAA0001", "type": "note", "data": {"body": "test"}}
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, s, http.MethodGet, "/v1/memory/long?case_id=CASE-AAAA0001", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rec-1")

	w = doJSON(t, s, http.MethodGet, "/v1/memory/bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecentEvents(t *testing.T) {
	s := testServer(t)

	// Generate one fraud event via the escalation flow.
	w := doJSON(t, s, http.MethodPost, "/v1/detect/escalate", `{
		"transaction_id": "tx-1",
		"account_id": "acct-1",
		"amount": 50000,
		"timestamp": "2026-03-10T10:00:00Z"
	}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/v1/events/recent?minutes=60", "")
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, 1, out.Count)
}

func TestRequestIDHeader(t *testing.T) {
	s := testServer(t)

	w := doJSON(t, s, http.MethodGet, "/health", "")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
