// Package analysis aggregates provider data about a token contract into a
// single ContractAnalysis record.
//
// The Service classifies the address, fans out to every configured
// provider concurrently, waits for all of them to settle (or for the
// analysis deadline), merges whatever succeeded, runs the heuristic
// scanner and scores the result. A provider failure only ever degrades
// the fields that provider owns: the caller receives either a complete
// record, with sentinels where data was unavailable, or one of the fatal
// precondition errors.
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/rcollins22/rugchekr/internal/address"
	"github.com/rcollins22/rugchekr/internal/holders"
	"github.com/rcollins22/rugchekr/internal/pagination"
	"github.com/rcollins22/rugchekr/internal/risk"
	"github.com/rcollins22/rugchekr/internal/scanner"
)

var (
	// ErrConfiguration means the block explorer credential is missing. No
	// provider is called when it is returned.
	ErrConfiguration = errors.New("analysis: block explorer API key not configured")
	ErrNotFound      = errors.New("analysis: not found")
)

// Unknown is the display sentinel for any value a provider could not
// supply.
const Unknown = "Unknown"

// Flag is a tri-state boolean.
type Flag string

const (
	FlagYes     Flag = "Yes"
	FlagNo      Flag = "No"
	FlagUnknown Flag = Unknown
)

// FlagOf converts a known boolean.
func FlagOf(b bool) Flag {
	if b {
		return FlagYes
	}
	return FlagNo
}

// OwnershipStatus describes who controls the contract.
type OwnershipStatus string

const (
	OwnershipRenounced OwnershipStatus = "Renounced"
	OwnershipOwned     OwnershipStatus = "Owned"
	OwnershipUnknown   OwnershipStatus = Unknown
)

// LiquidityStatus buckets pooled liquidity.
type LiquidityStatus string

const (
	LiquidityAdequate   LiquidityStatus = "Adequate"
	LiquidityLow        LiquidityStatus = "Low"
	LiquidityInadequate LiquidityStatus = "Inadequate"
	LiquidityUnknown    LiquidityStatus = Unknown
)

// LockStatus describes whether pool liquidity can be withdrawn.
type LockStatus string

const (
	LockBurned   LockStatus = "Burned"
	LockLocked   LockStatus = "Locked"
	LockUnlocked LockStatus = "Unlocked"
	LockUnknown  LockStatus = Unknown
)

// HoneypotStatus is the sellability verdict.
type HoneypotStatus string

const (
	HoneypotSafe      HoneypotStatus = "Safe"
	HoneypotHighTax   HoneypotStatus = "High Tax"
	HoneypotDetected  HoneypotStatus = "Honeypot"
	HoneypotSuspected HoneypotStatus = "Suspected"
	HoneypotUnknown   HoneypotStatus = Unknown
)

// Token is display identity. Fields are empty when metadata was
// unavailable.
type Token struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Image  string `json:"image"`
}

// SourceStatus reports how one provider fared during an analysis.
type SourceStatus struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	ErrorKind string `json:"errorKind,omitempty"`
	LatencyMs int64  `json:"latencyMs"`
}

// ContractAnalysis is the finished, write-once analysis record. Every
// status field carries a sentinel rather than being absent.
type ContractAnalysis struct {
	ID      string          `json:"id"`
	Address string          `json:"address"`
	Network address.Network `json:"network"`
	Token   Token           `json:"token"`

	RiskScore   int                  `json:"riskScore"`
	AuditScore  int                  `json:"auditScore"`
	RiskLevel   risk.Level           `json:"riskLevel"`
	RiskFactors []scanner.RiskFactor `json:"riskFactors"`

	IsVerified     Flag   `json:"isVerified"`
	ContractName   string `json:"contractName"`
	IsProxy        bool   `json:"isProxy"`
	Implementation string `json:"implementation,omitempty"` // proxy target

	Ownership   OwnershipStatus `json:"ownership"`
	IsRenounced bool            `json:"isRenounced"`
	Owner       string          `json:"owner,omitempty"`

	Liquidity       string          `json:"liquidity"`
	LiquidityUSD    float64         `json:"liquidityUsd"`
	LiquidityStatus LiquidityStatus `json:"liquidityStatus"`
	LiquidityLock   LockStatus      `json:"liquidityLock"`
	Volume24hUSD    float64         `json:"volume24hUsd"`
	Pairs           int             `json:"pairs"`

	HoneypotStatus HoneypotStatus `json:"honeypotStatus"`
	BuyTax         float64        `json:"buyTax"`
	SellTax        float64        `json:"sellTax"`

	HolderCount      int              `json:"holderCount"`
	TotalSupply      string           `json:"totalSupply"`
	TopHolderPercent float64          `json:"topHolderPercent"`
	Holders          holders.Analysis `json:"holders"`
	CreatorPercent   float64          `json:"creatorPercent"`
	BurnedPercent    float64          `json:"burnedPercent"`

	ContractAge     string     `json:"contractAge"`
	ContractCreator string     `json:"contractCreator,omitempty"`
	CreationTxHash  string     `json:"creationTxHash,omitempty"`
	DeployedAt      *time.Time `json:"deployedAt,omitempty"`

	Sources    []SourceStatus `json:"sources"`
	AnalyzedAt time.Time      `json:"analyzedAt"`
	DurationMs int64          `json:"durationMs"`
}

// FailedSources lists the providers that fell back to sentinels.
func (a *ContractAnalysis) FailedSources() []string {
	var failed []string
	for _, s := range a.Sources {
		if !s.OK {
			failed = append(failed, s.Name)
		}
	}
	return failed
}

// Store persists finished analyses.
type Store interface {
	Save(ctx context.Context, a *ContractAnalysis) error
	Get(ctx context.Context, id string) (*ContractAnalysis, error)
	LatestForAddress(ctx context.Context, addr string) (*ContractAnalysis, error)
	// ListRecent returns up to limit analyses older than before (nil for
	// the newest), ordered by analyzed_at then ID, both descending.
	ListRecent(ctx context.Context, before *pagination.Cursor, limit int) ([]*ContractAnalysis, error)
}

// Cache short-circuits repeated analyses of the same address.
type Cache interface {
	Get(ctx context.Context, addr string) (*ContractAnalysis, bool, error)
	Set(ctx context.Context, a *ContractAnalysis) error
}

// Publisher is notified of every completed analysis.
type Publisher interface {
	PublishAnalysis(a *ContractAnalysis)
}

// AnalyzeRequest is the POST body for an analysis.
type AnalyzeRequest struct {
	Address string `json:"address" binding:"required"`
	Fresh   bool   `json:"fresh"`
}
