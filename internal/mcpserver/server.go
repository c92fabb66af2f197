package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all scream tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("scream", "0.1.0")
	client := NewScreamClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolGetProtectionStatus, h.HandleGetProtectionStatus)
	s.AddTool(ToolPanicTrigger, h.HandlePanicTrigger)
	s.AddTool(ToolCheckBalance, h.HandleCheckBalance)
	s.AddTool(ToolListAggressors, h.HandleListAggressors)
	s.AddTool(ToolCheckAggressor, h.HandleCheckAggressor)
	s.AddTool(ToolCheckCompromised, h.HandleCheckCompromised)
	s.AddTool(ToolInitiateRecovery, h.HandleInitiateRecovery)
	s.AddTool(ToolApproveRecovery, h.HandleApproveRecovery)

	return s
}
