package providers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rcollins22/rugchekr/internal/address"
)

const upstreamGoPlus = "goplus"

type goPlusResponse struct {
	Code    int                       `json:"code"`
	Message string                    `json:"message"`
	Result  map[string]goPlusSecurity `json:"result"`
}

func (r *goPlusResponse) check() error {
	if r.Code == 1 {
		return nil
	}
	kind := KindUpstream
	if strings.Contains(strings.ToLower(r.Message), "too many") {
		kind = KindRateLimited
	}
	return errorf(upstreamGoPlus, kind, "code %d: %s", r.Code, r.Message)
}

type goPlusSecurity struct {
	IsHoneypot    string         `json:"is_honeypot"`
	CannotSellAll string         `json:"cannot_sell_all"`
	BuyTax        string         `json:"buy_tax"`
	SellTax       string         `json:"sell_tax"`
	OwnerAddress  string         `json:"owner_address"`
	LPHolders     []goPlusHolder `json:"lp_holders"`
}

type goPlusHolder struct {
	Address  string `json:"address"`
	Tag      string `json:"tag"`
	IsLocked int    `json:"is_locked"`
	Percent  string `json:"percent"`
}

// GoPlus reads token security reports.
type GoPlus struct {
	baseURL string
	chainID int64
	req     *requester
}

// NewGoPlus creates a client.
func NewGoPlus(baseURL string, chainID int64, deps Deps) *GoPlus {
	return &GoPlus{
		baseURL: strings.TrimRight(baseURL, "/"),
		chainID: chainID,
		req:     newRequester(upstreamGoPlus, 1, 2, deps),
	}
}

// Security returns the honeypot verdict, taxes, LP lock shares and owner.
func (g *GoPlus) Security(ctx context.Context, token string) (SecurityInfo, error) {
	key := strings.ToLower(token)
	u := fmt.Sprintf("%s/api/v1/token_security/%d?contract_addresses=%s", g.baseURL, g.chainID, key)

	var resp goPlusResponse
	if err := g.req.getJSON(ctx, u, nil, &resp); err != nil {
		return SecurityInfo{}, err
	}
	sec, ok := resp.Result[key]
	if !ok {
		return SecurityInfo{}, errorf(upstreamGoPlus, KindNotFound, "no report for %s", token)
	}

	info := SecurityInfo{
		Honeypot:      sec.IsHoneypot == "1",
		VerdictKnown:  sec.IsHoneypot == "0" || sec.IsHoneypot == "1",
		CannotSellAll: sec.CannotSellAll == "1",
		OwnerAddress:  sec.OwnerAddress,
	}

	buy, buyErr := strconv.ParseFloat(sec.BuyTax, 64)
	sell, sellErr := strconv.ParseFloat(sec.SellTax, 64)
	if buyErr == nil && sellErr == nil {
		info.TaxesKnown = true
		info.BuyTax = buy * 100
		info.SellTax = sell * 100
	}

	if len(sec.LPHolders) > 0 {
		info.LPHoldersKnown = true
		for _, h := range sec.LPHolders {
			pct, err := strconv.ParseFloat(h.Percent, 64)
			if err != nil {
				continue
			}
			switch {
			case address.IsBurn(h.Address):
				info.LPBurnedShare += pct * 100
			case h.IsLocked == 1:
				info.LPLockedShare += pct * 100
			}
		}
	}
	return info, nil
}

// HoneypotProvider contributes the security report.
func (g *GoPlus) HoneypotProvider(timeout time.Duration) Provider {
	return Func(NameHoneypot, timeout, func(ctx context.Context, addr string) (Contribution, error) {
		info, err := g.Security(ctx, addr)
		if err != nil {
			return nil, err
		}
		return info, nil
	})
}
