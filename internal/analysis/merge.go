package analysis

import (
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rcollins22/rugchekr/internal/address"
	"github.com/rcollins22/rugchekr/internal/holders"
	"github.com/rcollins22/rugchekr/internal/providers"
	"github.com/rcollins22/rugchekr/internal/risk"
	"github.com/rcollins22/rugchekr/internal/scanner"
)

const (
	inadequateLiquidityUSD = 1_000
	lowLiquidityUSD        = 50_000

	// lockedShare is the LP percentage that counts as locked or burned.
	lockedShare = 50.0
	// highTax is the buy or sell tax percentage above which a sellable
	// token is still flagged.
	highTax = 10.0
)

// assemble turns a merged snapshot into the final record. It never fails:
// every nil snapshot field resolves to its sentinel.
func assemble(snap *providers.Snapshot, sc *scanner.Scanner, scorer *risk.Scorer, now time.Time) ContractAnalysis {
	var a ContractAnalysis

	source := ""
	a.IsVerified = FlagUnknown
	if s := snap.Source; s != nil {
		source = s.Code
		a.IsVerified = FlagOf(s.Verified)
		a.ContractName = s.ContractName
		a.IsProxy = s.Proxy
		if s.Proxy && s.Implementation != "" {
			a.Implementation = address.Checksum(s.Implementation)
		}
	}

	a.RiskFactors = sc.Scan(source)
	a.RiskScore = scorer.Score(a.RiskFactors)
	a.RiskLevel = scorer.Level(a.RiskScore)

	if t := snap.Token; t != nil {
		a.Token = Token{Name: t.Name, Symbol: t.Symbol, Image: t.Image}
	}

	a.TotalSupply = "0"
	supplyKnown := snap.TotalSupply != nil
	if supplyKnown {
		a.TotalSupply = snap.TotalSupply.Raw
	}
	if hc := snap.HolderCount; hc != nil {
		a.HolderCount = hc.Count
	}

	a.Ownership, a.Owner = ownership(snap)
	a.IsRenounced = a.Ownership == OwnershipRenounced

	a.LiquidityStatus = liquidityStatus(snap.Market)
	a.Liquidity = Unknown
	if m := snap.Market; m != nil {
		a.LiquidityUSD = m.LiquidityUSD
		a.Liquidity = formatUSD(m.LiquidityUSD)
		a.Volume24hUSD = m.Volume24hUSD
		a.Pairs = m.Pairs
	}
	a.LiquidityLock = lockStatus(snap.Security)

	a.HoneypotStatus = honeypotStatus(snap.Security, a.RiskLevel == risk.LevelHigh)
	if sec := snap.Security; sec != nil && sec.TaxesKnown {
		a.BuyTax = sec.BuyTax
		a.SellTax = sec.SellTax
	}

	a.ContractCreator = creator(snap)
	hint := ""
	if supplyKnown {
		hint = a.TotalSupply
	}
	if h := snap.Holders; h != nil {
		a.Holders = holders.Analyze(h.Balances, hint, a.ContractCreator)
	} else {
		a.Holders = holders.Empty(a.ContractCreator)
	}
	a.TopHolderPercent = a.Holders.Top10Percentage

	if supplyKnown {
		if b := snap.CreatorBalance; b != nil {
			a.CreatorPercent = holders.Share(b.Amount, a.TotalSupply)
		}
		if b := snap.BurnedBalance; b != nil {
			a.BurnedPercent = holders.Share(b.Amount, a.TotalSupply)
		}
	}

	a.ContractAge = Unknown
	if c := snap.Creation; c != nil {
		a.CreationTxHash = c.TxHash
		if !c.CreatedAt.IsZero() {
			deployed := c.CreatedAt
			a.DeployedAt = &deployed
			a.ContractAge = contractAge(deployed, now)
		}
	}

	a.AuditScore = risk.AuditScore(risk.AuditSignals{
		Verified:        a.IsVerified == FlagYes,
		Ownership:       auditOwnership(a.Ownership),
		Liquidity:       auditLiquidity(a.LiquidityStatus),
		LiquidityLocked: a.LiquidityLock == LockBurned || a.LiquidityLock == LockLocked,
		HoneypotSafe:    a.HoneypotStatus == HoneypotSafe,
		RiskScore:       a.RiskScore,
	})
	return a
}

// ownership prefers an on-chain owner() read over the security report.
func ownership(snap *providers.Snapshot) (OwnershipStatus, string) {
	owner := ""
	switch {
	case snap.Owner != nil:
		owner = snap.Owner.Address
	case snap.Security != nil:
		owner = snap.Security.OwnerAddress
	}
	if owner == "" {
		return OwnershipUnknown, ""
	}
	if address.IsBurn(owner) {
		return OwnershipRenounced, address.Checksum(owner)
	}
	return OwnershipOwned, address.Checksum(owner)
}

func creator(snap *providers.Snapshot) string {
	if c := snap.Creation; c != nil && c.Creator != "" {
		return address.Checksum(c.Creator)
	}
	if b := snap.CreatorBalance; b != nil && b.Holder != "" {
		return address.Checksum(b.Holder)
	}
	return ""
}

func liquidityStatus(m *providers.MarketInfo) LiquidityStatus {
	switch {
	case m == nil:
		return LiquidityUnknown
	case m.LiquidityUSD < inadequateLiquidityUSD:
		return LiquidityInadequate
	case m.LiquidityUSD < lowLiquidityUSD:
		return LiquidityLow
	default:
		return LiquidityAdequate
	}
}

func lockStatus(sec *providers.SecurityInfo) LockStatus {
	switch {
	case sec == nil || !sec.LPHoldersKnown:
		return LockUnknown
	case sec.LPBurnedShare >= lockedShare:
		return LockBurned
	case sec.LPBurnedShare+sec.LPLockedShare >= lockedShare:
		return LockLocked
	default:
		return LockUnlocked
	}
}

// honeypotStatus falls back to the risk level when the report carries no
// sellability verdict. A sell restriction or a high tax still counts as
// evidence without one.
func honeypotStatus(sec *providers.SecurityInfo, highRisk bool) HoneypotStatus {
	switch {
	case sec == nil:
	case sec.Honeypot || sec.CannotSellAll:
		return HoneypotDetected
	case sec.TaxesKnown && (sec.BuyTax > highTax || sec.SellTax > highTax):
		return HoneypotHighTax
	case sec.VerdictKnown:
		return HoneypotSafe
	}
	if highRisk {
		return HoneypotSuspected
	}
	return HoneypotUnknown
}

func auditOwnership(o OwnershipStatus) risk.Ownership {
	switch o {
	case OwnershipRenounced:
		return risk.OwnershipRenounced
	case OwnershipOwned:
		return risk.OwnershipOwned
	default:
		return risk.OwnershipUnknown
	}
}

func auditLiquidity(l LiquidityStatus) risk.Liquidity {
	switch l {
	case LiquidityAdequate:
		return risk.LiquidityAdequate
	case LiquidityLow:
		return risk.LiquidityLow
	case LiquidityInadequate:
		return risk.LiquidityInadequate
	default:
		return risk.LiquidityUnknown
	}
}

// formatUSD renders whole dollars with thousands separators: "$12,345".
func formatUSD(v float64) string {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return Unknown
	}
	return "$" + humanize.Comma(int64(math.Round(v)))
}

// contractAge renders the time since deployment, e.g. "3 days".
func contractAge(deployed, now time.Time) string {
	if deployed.After(now) {
		return "now"
	}
	return strings.TrimSpace(humanize.RelTime(deployed, now, "", ""))
}
