package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/mbd888/fraudwatch/internal/cases"
	"github.com/mbd888/fraudwatch/internal/detect"
	"github.com/mbd888/fraudwatch/internal/memory"
)

// NewMCPServer creates a configured MCP server with all Fraudwatch tools registered.
func NewMCPServer(detectSvc *detect.Service, caseSvc *cases.Service, mem *memory.Router) *server.MCPServer {
	s := server.NewMCPServer("fraudwatch", "1.0.0")
	h := NewHandlers(detectSvc, caseSvc, mem)

	s.AddTool(ToolDetectFraud, h.HandleDetectFraud)
	s.AddTool(ToolCreateCase, h.HandleCreateCase)
	s.AddTool(ToolUpdateCaseStatus, h.HandleUpdateCaseStatus)
	s.AddTool(ToolEscalateCase, h.HandleEscalateCase)
	s.AddTool(ToolResolveAlert, h.HandleResolveAlert)
	s.AddTool(ToolGetCaseHistory, h.HandleGetCaseHistory)
	s.AddTool(ToolFetchFraudLogs, h.HandleFetchFraudLogs)

	return s
}
