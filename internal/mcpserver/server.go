package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with every analysis tool
// registered.
func NewMCPServer(cfg Config, version string) *server.MCPServer {
	s := server.NewMCPServer("rugchekr", version)
	h := NewHandlers(NewClient(cfg))

	s.AddTool(ToolAnalyzeToken, h.HandleAnalyzeToken)
	s.AddTool(ToolExplainToken, h.HandleExplainToken)
	s.AddTool(ToolListRecentAnalyses, h.HandleListRecentAnalyses)
	s.AddTool(ToolGetAnalysis, h.HandleGetAnalysis)

	return s
}
