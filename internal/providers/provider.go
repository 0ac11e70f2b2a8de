// Package providers wraps each external data source behind a uniform
// Provider contract. A provider returns a typed Contribution that fills
// only its own fields of a Snapshot, or a *ProviderError. Nothing escapes
// a provider boundary as a panic or an untyped payload.
package providers

import (
	"context"
	"time"

	"github.com/rcollins22/rugchekr/internal/holders"
)

// Provider names, used for logging, metrics and the per-source report.
const (
	NameSourceCode    = "source_code"
	NameSupply        = "supply"
	NameHolderCount   = "holder_count"
	NameTokenMetadata = "token_metadata"
	NameMarketData    = "market_data"
	NameHoneypot      = "honeypot"
	NameCreationTime  = "creation_time"
	NameCreatorBal    = "creator_balance"
	NameBurnedBal     = "burned_balance"
	NameHolderList    = "holder_list"
	NameOwner         = "owner"
)

// Provider fetches one slice of data about a token contract.
type Provider interface {
	Name() string
	Timeout() time.Duration
	Fetch(ctx context.Context, address string) (Contribution, error)
}

// Contribution writes a provider's fields into a snapshot. Implementations
// touch only the fields they own.
type Contribution interface {
	Apply(s *Snapshot)
}

// Snapshot is the merged view of every provider that succeeded. Nil
// pointers mean the owning provider failed or was not configured.
type Snapshot struct {
	Source         *SourceInfo
	TotalSupply    *SupplyInfo
	HolderCount    *HolderCountInfo
	Token          *TokenInfo
	Market         *MarketInfo
	Security       *SecurityInfo
	Creation       *CreationInfo
	CreatorBalance *BalanceInfo
	BurnedBalance  *BalanceInfo
	Holders        *HolderListInfo
	Owner          *OwnerInfo
}

// SourceInfo is the verified source of a contract. Verified is false when
// the explorer knows the contract but holds no source for it.
type SourceInfo struct {
	Code           string
	Verified       bool
	ContractName   string
	Proxy          bool
	Implementation string
}

func (i SourceInfo) Apply(s *Snapshot) { s.Source = &i }

// SupplyInfo is the total supply in the token's smallest unit.
type SupplyInfo struct {
	Raw string
}

func (i SupplyInfo) Apply(s *Snapshot) { s.TotalSupply = &i }

// HolderCountInfo is the explorer's holder count.
type HolderCountInfo struct {
	Count int
}

func (i HolderCountInfo) Apply(s *Snapshot) { s.HolderCount = &i }

// TokenInfo is display metadata.
type TokenInfo struct {
	Name   string
	Symbol string
	Image  string
}

func (i TokenInfo) Apply(s *Snapshot) { s.Token = &i }

// MarketInfo aggregates DEX pairs for the token.
type MarketInfo struct {
	LiquidityUSD float64
	Volume24hUSD float64
	Pairs        int
}

func (i MarketInfo) Apply(s *Snapshot) { s.Market = &i }

// SecurityInfo is a token security report. Taxes and LP shares are
// percentages (0 to 100). Honeypot means nothing unless VerdictKnown is
// set; reports for tokens the provider has not simulated omit it.
type SecurityInfo struct {
	Honeypot       bool
	VerdictKnown   bool
	CannotSellAll  bool
	BuyTax         float64
	SellTax        float64
	TaxesKnown     bool
	LPHoldersKnown bool
	LPLockedShare  float64
	LPBurnedShare  float64
	OwnerAddress   string
}

func (i SecurityInfo) Apply(s *Snapshot) { s.Security = &i }

// CreationInfo identifies who deployed the contract and when. CreatedAt
// is zero when the explorer omits the timestamp.
type CreationInfo struct {
	Creator   string
	TxHash    string
	CreatedAt time.Time
}

func (i CreationInfo) Apply(s *Snapshot) { s.Creation = &i }

// BalanceRole selects which snapshot field a balance fills.
type BalanceRole string

const (
	RoleCreator BalanceRole = "creator"
	RoleBurned  BalanceRole = "burned"
)

// BalanceInfo is a token balance held by one address, raw units.
type BalanceInfo struct {
	Role   BalanceRole
	Holder string
	Amount string
}

func (i BalanceInfo) Apply(s *Snapshot) {
	switch i.Role {
	case RoleCreator:
		s.CreatorBalance = &i
	case RoleBurned:
		s.BurnedBalance = &i
	}
}

// HolderListInfo is the largest holders, balances in raw units.
type HolderListInfo struct {
	Balances []holders.Balance
}

func (i HolderListInfo) Apply(s *Snapshot) { s.Holders = &i }

// OwnerInfo is the result of calling owner() on the contract.
type OwnerInfo struct {
	Address string
}

func (i OwnerInfo) Apply(s *Snapshot) { s.Owner = &i }

// funcProvider adapts a fetch function to Provider.
type funcProvider struct {
	name    string
	timeout time.Duration
	fetch   func(ctx context.Context, address string) (Contribution, error)
}

func (p funcProvider) Name() string           { return p.name }
func (p funcProvider) Timeout() time.Duration { return p.timeout }
func (p funcProvider) Fetch(ctx context.Context, address string) (Contribution, error) {
	return p.fetch(ctx, address)
}

// Func builds a Provider from a fetch function.
func Func(name string, timeout time.Duration, fetch func(ctx context.Context, address string) (Contribution, error)) Provider {
	return funcProvider{name: name, timeout: timeout, fetch: fetch}
}
