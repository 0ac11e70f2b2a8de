package providers

import (
	"context"
	"net/url"
	"strings"
	"time"
)

const upstreamCoinGecko = "coingecko"

type coinGeckoContract struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Image  struct {
		Thumb string `json:"thumb"`
		Small string `json:"small"`
		Large string `json:"large"`
	} `json:"image"`
}

// CoinGecko reads token metadata by contract address.
type CoinGecko struct {
	baseURL  string
	platform string
	apiKey   string
	req      *requester
}

// NewCoinGecko creates a client for an asset platform ("ethereum").
// apiKey is optional and sent as a demo key.
func NewCoinGecko(baseURL, platform, apiKey string, deps Deps) *CoinGecko {
	return &CoinGecko{
		baseURL:  strings.TrimRight(baseURL, "/"),
		platform: platform,
		apiKey:   apiKey,
		// public tier allows roughly 30 calls per minute
		req: newRequester(upstreamCoinGecko, 0.5, 2, deps),
	}
}

// Metadata returns name, upper-cased symbol and the best available image.
func (c *CoinGecko) Metadata(ctx context.Context, token string) (TokenInfo, error) {
	u := c.baseURL + "/coins/" + url.PathEscape(c.platform) + "/contract/" + strings.ToLower(token)
	var headers map[string]string
	if c.apiKey != "" {
		headers = map[string]string{"x-cg-demo-api-key": c.apiKey}
	}

	var resp coinGeckoContract
	if err := c.req.getJSON(ctx, u, headers, &resp); err != nil {
		return TokenInfo{}, err
	}
	if resp.Name == "" && resp.Symbol == "" {
		return TokenInfo{}, errorf(upstreamCoinGecko, KindMalformed, "contract response has no name or symbol")
	}

	image := resp.Image.Small
	if image == "" {
		image = resp.Image.Large
	}
	if image == "" {
		image = resp.Image.Thumb
	}
	return TokenInfo{Name: resp.Name, Symbol: strings.ToUpper(resp.Symbol), Image: image}, nil
}

// TokenMetadataProvider contributes name, symbol and image.
func (c *CoinGecko) TokenMetadataProvider(timeout time.Duration) Provider {
	return Func(NameTokenMetadata, timeout, func(ctx context.Context, addr string) (Contribution, error) {
		info, err := c.Metadata(ctx, addr)
		if err != nil {
			return nil, err
		}
		return info, nil
	})
}
