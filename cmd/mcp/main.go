// rugchekr MCP server - exposes token risk assessment as MCP tools for LLMs
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rcollins22/rugchekr/internal/mcpserver"
)

// Version is set by ldflags.
var Version = "dev"

func main() {
	cfg := mcpserver.Config{
		APIURL:    envOrDefault("RUGCHEKR_API_URL", "http://localhost:8080"),
		ClientID:  os.Getenv("RUGCHEKR_CLIENT_ID"),
		OpenAIKey: os.Getenv("OPENAI_API_KEY"),
	}

	s := mcpserver.NewMCPServer(cfg, Version)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
