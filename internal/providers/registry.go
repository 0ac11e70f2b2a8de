package providers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rcollins22/rugchekr/internal/config"
)

// Registry is the set of providers an analysis fans out to.
type Registry struct {
	providers []Provider
	onchain   *OnChain
}

// NewRegistry wraps an explicit provider list.
func NewRegistry(ps ...Provider) *Registry {
	return &Registry{providers: ps}
}

// Providers returns the providers in launch order.
func (r *Registry) Providers() []Provider {
	return r.providers
}

// Names lists provider names in launch order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}

// Close releases provider connections.
func (r *Registry) Close() {
	if r.onchain != nil {
		r.onchain.Close()
	}
}

// FromConfig builds every provider the configuration allows. With
// RPC_URL set, balances and ownership are read on-chain; otherwise
// balances come from the explorer and ownership only from the security
// report.
func FromConfig(ctx context.Context, cfg *config.Config, deps Deps, logger *slog.Logger) (*Registry, error) {
	deps = deps.withDefaults()
	pt := cfg.ProviderTimeout

	es := NewEtherscan(EtherscanConfig{
		BaseURL: cfg.EtherscanBaseURL,
		APIKey:  cfg.EtherscanAPIKey,
		ChainID: cfg.ChainID,
		RPS:     cfg.EtherscanRPS,
	}, deps)

	reg := &Registry{}
	var balances BalanceReader = es
	if cfg.RPCURL != "" {
		oc, err := DialOnChain(ctx, cfg.RPCURL, deps.Breaker)
		if err != nil {
			return nil, fmt.Errorf("providers: %w", err)
		}
		reg.onchain = oc
		balances = oc
	}

	reg.providers = []Provider{
		es.SourceCodeProvider(pt),
		es.SupplyProvider(pt),
		es.HolderCountProvider(pt),
		NewCoinGecko(cfg.CoinGeckoBaseURL, cfg.CoinGeckoPlatform, "", deps).TokenMetadataProvider(pt),
		NewDexScreener(cfg.DexScreenerBaseURL, cfg.ChainID, deps).MarketDataProvider(pt),
		NewGoPlus(cfg.GoPlusBaseURL, cfg.ChainID, deps).HoneypotProvider(cfg.HoneypotTimeout),
		es.CreationTimeProvider(pt),
		CreatorBalanceProvider(es, balances, pt),
		BurnedBalanceProvider(balances, pt),
		NewBitquery(cfg.BitqueryURL, cfg.BitqueryAPIKey, cfg.ChainID, deps).HolderListProvider(pt),
	}
	if reg.onchain != nil {
		reg.providers = append(reg.providers, reg.onchain.OwnerProvider(pt))
	}

	if logger != nil {
		logger.Info("providers configured",
			"count", len(reg.providers),
			"onchain", reg.onchain != nil,
			"holder_list", cfg.BitqueryAPIKey != "",
		)
	}
	return reg, nil
}
