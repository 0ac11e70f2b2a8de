package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions. Descriptions are what the LLM reads to decide which
// tool to use.

var ToolAnalyzeToken = mcp.NewTool("analyze_token",
	mcp.WithDescription(
		"Run a rug-pull risk assessment on an Ethereum token contract. "+
			"Returns a 0-100 risk score (higher is riskier), an audit score, the risk factors found in the verified source, "+
			"ownership, liquidity and lock status, honeypot check, holder concentration and contract age. "+
			"Fields a data source could not supply are reported as Unknown."),
	mcp.WithString("address",
		mcp.Required(),
		mcp.Description("Token contract address (0x followed by 40 hex characters)")),
	mcp.WithBoolean("fresh",
		mcp.Description("Bypass the result cache and query every data source again")),
)

var ToolExplainToken = mcp.NewTool("explain_token",
	mcp.WithDescription(
		"Analyze a token and return a plain-language explanation of its risks and recommendations for investors. "+
			"Requires an explanation API key on the server or in the client configuration."),
	mcp.WithString("address",
		mcp.Required(),
		mcp.Description("Token contract address (0x followed by 40 hex characters)")),
)

var ToolListRecentAnalyses = mcp.NewTool("list_recent_analyses",
	mcp.WithDescription(
		"List the most recent token analyses, newest first, with their risk scores and levels."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of analyses to return (default 10, max 100)")),
)

var ToolGetAnalysis = mcp.NewTool("get_analysis",
	mcp.WithDescription(
		"Fetch a stored analysis report by its ID (as returned by analyze_token or list_recent_analyses)."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Analysis ID, e.g. 'an_...'")),
)
