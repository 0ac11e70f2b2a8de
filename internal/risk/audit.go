package risk

// AuditCeiling caps the audit score. A clean scan only means no known
// pattern matched, so no contract reads 100.
const AuditCeiling = 95

// Ownership state as seen by the audit score.
type Ownership int

const (
	OwnershipUnknown Ownership = iota
	OwnershipOwned
	OwnershipRenounced
)

// Liquidity depth as seen by the audit score.
type Liquidity int

const (
	LiquidityUnknown Liquidity = iota
	LiquidityInadequate
	LiquidityLow
	LiquidityAdequate
)

// AuditSignals are the merged facts the audit score reads. Unknown values
// earn nothing.
type AuditSignals struct {
	Verified        bool
	Ownership       Ownership
	Liquidity       Liquidity
	LiquidityLocked bool
	HoneypotSafe    bool
	RiskScore       int
}

const (
	auditVerified      = 30
	auditRenounced     = 15
	auditOwned         = 5
	auditLiquidityOK   = 15
	auditLiquidityLow  = 5
	auditLocked        = 10
	auditHoneypotSafe  = 10
	auditCleanScanSpan = 20
)

// AuditScore rates how much positive evidence exists about a contract, on
// a 0 to AuditCeiling scale. It is independent of the risk score except
// for a clean-scan bonus that only counts when the source was verified,
// since an empty scan of unavailable source proves nothing.
func AuditScore(s AuditSignals) int {
	score := 0
	if s.Verified {
		score += auditVerified
		clean := MaxScore - clamp(s.RiskScore, 0, MaxScore)
		score += clean * auditCleanScanSpan / MaxScore
	}

	switch s.Ownership {
	case OwnershipRenounced:
		score += auditRenounced
	case OwnershipOwned:
		score += auditOwned
	}

	switch s.Liquidity {
	case LiquidityAdequate:
		score += auditLiquidityOK
	case LiquidityLow:
		score += auditLiquidityLow
	}

	if s.LiquidityLocked {
		score += auditLocked
	}
	if s.HoneypotSafe {
		score += auditHoneypotSafe
	}

	return clamp(score, 0, AuditCeiling)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
