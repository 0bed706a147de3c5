package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all dunning tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("dunning", "1.0.0")
	client := NewDunningClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolScoreCustomer, h.HandleScoreCustomer)
	s.AddTool(ToolListAssessments, h.HandleListAssessments)
	s.AddTool(ToolListRules, h.HandleListRules)
	s.AddTool(ToolGetActiveModel, h.HandleGetActiveModel)
	s.AddTool(ToolModelScore, h.HandleModelScore)
	s.AddTool(ToolListTrainingRuns, h.HandleListTrainingRuns)

	return s
}
