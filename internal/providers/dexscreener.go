package providers

import (
	"context"
	"strings"
	"time"
)

const upstreamDexScreener = "dexscreener"

// dexScreenerChains maps EVM chain IDs to DexScreener chain slugs.
var dexScreenerChains = map[int64]string{
	1:     "ethereum",
	10:    "optimism",
	56:    "bsc",
	137:   "polygon",
	8453:  "base",
	42161: "arbitrum",
	43114: "avalanche",
}

type dexScreenerResponse struct {
	Pairs []dexScreenerPair `json:"pairs"`
}

type dexScreenerPair struct {
	ChainID   string `json:"chainId"`
	DexID     string `json:"dexId"`
	BaseToken struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	Liquidity *struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
}

// DexScreener reads DEX pair data.
type DexScreener struct {
	baseURL string
	chain   string
	req     *requester
}

// NewDexScreener creates a client. Pairs on other chains are ignored when
// chainID maps to a known slug.
func NewDexScreener(baseURL string, chainID int64, deps Deps) *DexScreener {
	return &DexScreener{
		baseURL: strings.TrimRight(baseURL, "/"),
		chain:   dexScreenerChains[chainID],
		req:     newRequester(upstreamDexScreener, 4, 4, deps),
	}
}

// Market sums liquidity and 24h volume across the token's pairs. A token
// with no pairs has zero liquidity, which is a known value.
func (d *DexScreener) Market(ctx context.Context, token string) (MarketInfo, error) {
	var resp dexScreenerResponse
	if err := d.req.getJSON(ctx, d.baseURL+"/latest/dex/tokens/"+token, nil, &resp); err != nil {
		return MarketInfo{}, err
	}

	var info MarketInfo
	for _, p := range resp.Pairs {
		if d.chain != "" && p.ChainID != d.chain {
			continue
		}
		if p.Liquidity == nil || p.Liquidity.USD < 0 {
			continue
		}
		info.Pairs++
		info.LiquidityUSD += p.Liquidity.USD
		info.Volume24hUSD += p.Volume.H24
	}
	return info, nil
}

// MarketDataProvider contributes liquidity.
func (d *DexScreener) MarketDataProvider(timeout time.Duration) Provider {
	return Func(NameMarketData, timeout, func(ctx context.Context, addr string) (Contribution, error) {
		info, err := d.Market(ctx, addr)
		if err != nil {
			return nil, err
		}
		return info, nil
	})
}
