package explain

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/rcollins22/rugchekr/internal/analysis"
)

// Prompt renders the instruction sent to the model for a.
func Prompt(a *analysis.ContractAnalysis) string {
	var b strings.Builder
	b.WriteString("You are a blockchain security expert. Analyze this smart contract and explain it in a conversational, easy-to-understand way.\n\n")

	b.WriteString("Contract details:\n")
	fmt.Fprintf(&b, "- Address: %s\n", a.Address)
	fmt.Fprintf(&b, "- Network: %s\n", a.Network)
	if a.Token.Name != "" {
		fmt.Fprintf(&b, "- Token: %s (%s)\n", a.Token.Name, a.Token.Symbol)
	}
	fmt.Fprintf(&b, "- Risk score: %d/100 (%s)\n", a.RiskScore, a.RiskLevel.Label)
	fmt.Fprintf(&b, "- Audit score: %d/100\n", a.AuditScore)
	fmt.Fprintf(&b, "- Contract age: %s\n", a.ContractAge)
	fmt.Fprintf(&b, "- Verified: %s\n", a.IsVerified)
	fmt.Fprintf(&b, "- Holders: %d\n", a.HolderCount)
	fmt.Fprintf(&b, "- Total supply: %s\n", a.TotalSupply)
	fmt.Fprintf(&b, "- Liquidity: %s (%s, lock: %s)\n", a.Liquidity, a.LiquidityStatus, a.LiquidityLock)
	if a.Pairs > 0 {
		fmt.Fprintf(&b, "- 24h trading volume: $%.0f across %d pairs\n", a.Volume24hUSD, a.Pairs)
	}
	if a.IsProxy {
		fmt.Fprintf(&b, "- Upgradeable proxy, implementation: %s\n", cmp.Or(a.Implementation, "unknown"))
	}
	fmt.Fprintf(&b, "- Top 10 holders: %.2f%%\n", a.TopHolderPercent)
	fmt.Fprintf(&b, "- Ownership: %s\n", a.Ownership)
	fmt.Fprintf(&b, "- Honeypot check: %s (buy tax %.1f%%, sell tax %.1f%%)\n", a.HoneypotStatus, a.BuyTax, a.SellTax)

	b.WriteString("\nRisk factors:\n")
	if len(a.RiskFactors) == 0 {
		b.WriteString("- None detected in the source code\n")
	}
	for _, f := range a.RiskFactors {
		fmt.Fprintf(&b, "- %s (%s risk)\n", f.Text, f.Severity)
	}

	if failed := a.FailedSources(); len(failed) > 0 {
		fmt.Fprintf(&b, "\nData from these sources was unavailable, so some fields are unknown: %s\n", strings.Join(failed, ", "))
	}

	b.WriteString("\nPlease provide:\n")
	b.WriteString("1. A summary of what this contract appears to be\n")
	b.WriteString("2. An explanation of the main risks and concerns\n")
	b.WriteString("3. Specific recommendations for potential investors\n")
	b.WriteString("4. What to look out for with similar contracts\n\n")
	b.WriteString("Keep the explanation accessible to non-technical users while being thorough about the security implications.\n")
	return b.String()
}
