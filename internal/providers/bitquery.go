package providers

import (
	"context"
	"strings"
	"time"

	"github.com/rcollins22/rugchekr/internal/holders"
)

const upstreamBitquery = "bitquery"

// HolderListLimit is how many holders are requested.
const HolderListLimit = 100

var bitqueryNetworks = map[int64]string{
	1:     "eth",
	10:    "optimism",
	56:    "bsc",
	137:   "matic",
	8453:  "base",
	42161: "arbitrum",
}

const tokenHoldersQuery = `query ($network: evm_network, $date: String!, $token: String!, $limit: Int!) {
  EVM(dataset: archive, network: $network) {
    TokenHolders(
      date: $date
      tokenSmartContract: $token
      limit: {count: $limit}
      orderBy: {descending: Balance_Amount}
      where: {Balance: {Amount: {gt: "0"}}}
    ) {
      Holder { Address }
      Balance { Amount }
      Currency { Decimals }
    }
  }
}`

type bitqueryRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type bitqueryResponse struct {
	Data struct {
		EVM struct {
			TokenHolders []bitqueryHolder `json:"TokenHolders"`
		} `json:"EVM"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (r *bitqueryResponse) check() error {
	if len(r.Errors) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	joined := strings.Join(msgs, "; ")
	kind := KindUpstream
	lower := strings.ToLower(joined)
	switch {
	case strings.Contains(lower, "unauthorized"), strings.Contains(lower, "api key"):
		kind = KindAuth
	case strings.Contains(lower, "limit"):
		kind = KindRateLimited
	}
	return errorf(upstreamBitquery, kind, "graphql: %s", joined)
}

type bitqueryHolder struct {
	Holder struct {
		Address string `json:"Address"`
	} `json:"Holder"`
	Balance struct {
		Amount string `json:"Amount"`
	} `json:"Balance"`
	Currency struct {
		Decimals int32 `json:"Decimals"`
	} `json:"Currency"`
}

// Bitquery reads top holders over GraphQL.
type Bitquery struct {
	url     string
	apiKey  string
	network string
	req     *requester
	now     func() time.Time
}

// NewBitquery creates a client. An empty apiKey makes every fetch fail
// with a config error.
func NewBitquery(url, apiKey string, chainID int64, deps Deps) *Bitquery {
	network, ok := bitqueryNetworks[chainID]
	if !ok {
		network = "eth"
	}
	return &Bitquery{
		url:     url,
		apiKey:  apiKey,
		network: network,
		req:     newRequester(upstreamBitquery, 1, 2, deps),
		now:     time.Now,
	}
}

// TopHolders returns up to HolderListLimit holders in raw units, largest
// first.
func (b *Bitquery) TopHolders(ctx context.Context, token string) ([]holders.Balance, error) {
	if b.apiKey == "" {
		return nil, errorf(upstreamBitquery, KindConfig, "BITQUERY_API_KEY not configured")
	}

	body := bitqueryRequest{
		Query: tokenHoldersQuery,
		Variables: map[string]any{
			"network": b.network,
			"date":    b.now().UTC().Format("2006-01-02"),
			"token":   strings.ToLower(token),
			"limit":   HolderListLimit,
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + b.apiKey}

	var resp bitqueryResponse
	if err := b.req.postJSON(ctx, b.url, headers, body, &resp); err != nil {
		return nil, err
	}

	out := make([]holders.Balance, 0, len(resp.Data.EVM.TokenHolders))
	for _, h := range resp.Data.EVM.TokenHolders {
		if h.Holder.Address == "" {
			continue
		}
		raw, err := holders.ToRaw(h.Balance.Amount, h.Currency.Decimals)
		if err != nil {
			return nil, errorf(upstreamBitquery, KindMalformed, "holder %s: bad amount %q", h.Holder.Address, h.Balance.Amount)
		}
		out = append(out, holders.Balance{Address: h.Holder.Address, Amount: raw})
	}
	return out, nil
}

// HolderListProvider contributes the top-holder list.
func (b *Bitquery) HolderListProvider(timeout time.Duration) Provider {
	return Func(NameHolderList, timeout, func(ctx context.Context, addr string) (Contribution, error) {
		list, err := b.TopHolders(ctx, addr)
		if err != nil {
			return nil, err
		}
		return HolderListInfo{Balances: list}, nil
	})
}
