// Package scanner flags risky constructs in contract source text.
//
// The scan is a fixed, ordered table of regular expressions. It is a
// heuristic: obfuscated code slips past it and benign code that happens to
// contain a flagged token trips it. Both are accepted; the output is a list
// of indicators, not a verdict.
package scanner

import "regexp"

// Severity grades a factor.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// RiskFactor is one matched rule.
type RiskFactor struct {
	Text     string   `json:"text"`
	Severity Severity `json:"severity"`
	Points   int      `json:"points"`
}

// Rule pairs a pattern with the factor it produces.
type Rule struct {
	Pattern *regexp.Regexp
	Factor  RiskFactor
}

func rule(expr, text string, sev Severity, points int) Rule {
	return Rule{
		Pattern: regexp.MustCompile(expr),
		Factor:  RiskFactor{Text: text, Severity: sev, Points: points},
	}
}

// Rules is the pattern table in output order.
var Rules = []Rule{
	rule(`tx\.origin`, "Use of tx.origin", SeverityHigh, 25),
	rule(`selfdestruct`, "Self-destruct function found", SeverityHigh, 25),
	rule(`assembly`, "Inline assembly used", SeverityHigh, 20),
	rule(`delegatecall`, "Proxy or upgradeable contract (delegatecall)", SeverityHigh, 20),
	rule(`mint\(`, "Owner can mint tokens", SeverityHigh, 20),
	rule(`burn\(`, "Owner can burn arbitrary tokens", SeverityHigh, 15),
	rule(`blacklist`, "Blacklist functionality present", SeverityHigh, 15),
	rule(`require\(!blacklist`, "Blacklist logic in transfer functions", SeverityHigh, 15),
	rule(`_transfer\(`, "Check for suspicious transfer modifications", SeverityHigh, 20),
	rule(`revert\(`, "Revert on certain addresses or actions (possible honeypot)", SeverityHigh, 20),
	rule(`block\.number`, "Launch period block logic", SeverityMedium, 15),
	rule(`require\(.*maxTxAmount`, "Max TX limitation logic", SeverityMedium, 15),
	rule(`require\(.*maxWallet`, "Max wallet restriction logic", SeverityMedium, 10),
	rule(`approve\(`, "Check for allowance manipulation", SeverityMedium, 10),
	rule(`transferFrom`, "Check for unlimited approval handling", SeverityMedium, 10),
	rule(`owner\s*=|onlyOwner`, "Owner pattern found", SeverityMedium, 15),
	rule(`renounceOwnership`, "Renounce ownership function found", SeverityLow, 5),
	rule(`name\s*=\s*".*(ETH|BTC|USDT).*"`, "Suspicious name pattern", SeverityLow, 5),
	rule(`symbol\s*=\s*".*(ETH|BTC|USDT).*"`, "Suspicious symbol pattern", SeverityLow, 5),
	rule(`totalSupply\(`, "Check totalSupply behavior", SeverityLow, 5),
	rule(`decimals\(`, "Custom decimals, check for manipulation", SeverityLow, 5),
	rule(`Transfer\(`, "Missing or misleading Transfer events", SeverityLow, 5),
}

// Scanner evaluates a rule table against source text.
type Scanner struct {
	rules []Rule
}

// New returns a scanner over the default table.
func New() *Scanner {
	return &Scanner{rules: Rules}
}

// NewWithRules returns a scanner over a custom table.
func NewWithRules(rules []Rule) *Scanner {
	return &Scanner{rules: rules}
}

// Scan returns one factor per matching rule, in table order. Empty source
// yields an empty, non-nil list.
func (s *Scanner) Scan(source string) []RiskFactor {
	factors := make([]RiskFactor, 0)
	if source == "" {
		return factors
	}
	for _, r := range s.rules {
		if r.Pattern.MatchString(source) {
			factors = append(factors, r.Factor)
		}
	}
	return factors
}

// Scan runs the default table.
func Scan(source string) []RiskFactor {
	return New().Scan(source)
}
