package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rcollins22/rugchekr/internal/analysis"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 100
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *Client
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *Client) *Handlers {
	return &Handlers{client: client}
}

// HandleAnalyzeToken runs a risk assessment.
func (h *Handlers) HandleAnalyzeToken(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	addr := strings.TrimSpace(req.GetString("address", ""))
	if addr == "" {
		return mcp.NewToolResultError("address is required"), nil
	}

	fresh, _ := req.GetArguments()["fresh"].(bool)
	a, err := h.client.Analyze(ctx, addr, fresh)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Analysis failed: %v", err)), nil
	}
	return mcp.NewToolResultText(formatAnalysis(a)), nil
}

// HandleExplainToken analyzes and explains a token.
func (h *Handlers) HandleExplainToken(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	addr := strings.TrimSpace(req.GetString("address", ""))
	if addr == "" {
		return mcp.NewToolResultError("address is required"), nil
	}

	text, a, err := h.client.Explain(ctx, addr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Explanation failed: %v", err)), nil
	}

	var sb strings.Builder
	if a != nil {
		fmt.Fprintf(&sb, "%s: risk %d/100 (%s)\n\n", displayName(a), a.RiskScore, a.RiskLevel.Label)
	}
	sb.WriteString(text)
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleListRecentAnalyses lists recent results.
func (h *Handlers) HandleListRecentAnalyses(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultRecentLimit)
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	list, err := h.client.Recent(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list analyses: %v", err)), nil
	}
	return mcp.NewToolResultText(formatRecent(list)), nil
}

// HandleGetAnalysis fetches a stored report.
func (h *Handlers) HandleGetAnalysis(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := strings.TrimSpace(req.GetString("id", ""))
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}
	a, err := h.client.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get analysis: %v", err)), nil
	}
	return mcp.NewToolResultText(formatAnalysis(a)), nil
}

func displayName(a *analysis.ContractAnalysis) string {
	switch {
	case a.Token.Name != "" && a.Token.Symbol != "":
		return fmt.Sprintf("%s (%s)", a.Token.Name, a.Token.Symbol)
	case a.ContractName != "":
		return a.ContractName
	default:
		return a.Address
	}
}

func formatAnalysis(a *analysis.ContractAnalysis) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Risk assessment for %s\n", displayName(a))
	fmt.Fprintf(&sb, "  Address:      %s\n", a.Address)
	fmt.Fprintf(&sb, "  Risk score:   %d/100 (%s)\n", a.RiskScore, a.RiskLevel.Label)
	fmt.Fprintf(&sb, "  Audit score:  %d/100\n", a.AuditScore)
	fmt.Fprintf(&sb, "  Verified:     %s\n", a.IsVerified)
	fmt.Fprintf(&sb, "  Ownership:    %s\n", a.Ownership)
	fmt.Fprintf(&sb, "  Liquidity:    %s (%s, lock: %s)\n", a.Liquidity, a.LiquidityStatus, a.LiquidityLock)
	if a.Pairs > 0 {
		fmt.Fprintf(&sb, "  Volume 24h:   $%s over %d pairs\n", humanize.CommafWithDigits(a.Volume24hUSD, 0), a.Pairs)
	}
	if a.IsProxy && a.Implementation != "" {
		fmt.Fprintf(&sb, "  Proxy for:    %s\n", a.Implementation)
	}
	fmt.Fprintf(&sb, "  Honeypot:     %s\n", a.HoneypotStatus)
	fmt.Fprintf(&sb, "  Holders:      %d (top 10 hold %.1f%%)\n", a.HolderCount, a.TopHolderPercent)
	fmt.Fprintf(&sb, "  Contract age: %s\n", a.ContractAge)
	if a.ContractCreator != "" {
		fmt.Fprintf(&sb, "  Creator:      %s (%.2f%% of supply)\n", a.ContractCreator, a.CreatorPercent)
	}

	if len(a.RiskFactors) > 0 {
		sb.WriteString("\nRisk factors:\n")
		for _, f := range a.RiskFactors {
			fmt.Fprintf(&sb, "  - [%s] %s\n", f.Severity, f.Text)
		}
	}
	if failed := a.FailedSources(); len(failed) > 0 {
		fmt.Fprintf(&sb, "\nUnavailable sources: %s\n", strings.Join(failed, ", "))
	}
	if a.ID != "" {
		fmt.Fprintf(&sb, "\nAnalysis ID: %s\n", a.ID)
	}
	return sb.String()
}

func formatRecent(list []*analysis.ContractAnalysis) string {
	if len(list) == 0 {
		return "No analyses yet."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d analysis(es):\n\n", len(list))
	for i, a := range list {
		fmt.Fprintf(&sb, "%d. %s  %d/100 %s  (%s)\n", i+1, displayName(a), a.RiskScore, a.RiskLevel.Label, a.ID)
		fmt.Fprintf(&sb, "   %s, analyzed %s\n", a.Address, a.AnalyzedAt.Format("2006-01-02 15:04 UTC"))
	}
	return sb.String()
}
