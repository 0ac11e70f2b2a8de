package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rcollins22/rugchekr/internal/address"
)

const upstreamEtherscan = "etherscan"

var digits = regexp.MustCompile(`^[0-9]+$`)

// EtherscanConfig configures the block explorer client.
type EtherscanConfig struct {
	BaseURL string // v2 multichain endpoint, e.g. https://api.etherscan.io/v2/api
	APIKey  string
	ChainID int64
	RPS     float64
}

// Etherscan is a block explorer client. All providers built from one
// client share its rate limiter.
type Etherscan struct {
	cfg EtherscanConfig
	req *requester
}

// NewEtherscan creates an explorer client.
func NewEtherscan(cfg EtherscanConfig, deps Deps) *Etherscan {
	burst := int(cfg.RPS)
	if burst < 1 {
		burst = 1
	}
	return &Etherscan{cfg: cfg, req: newRequester(upstreamEtherscan, cfg.RPS, burst, deps)}
}

// etherscanEnvelope wraps every explorer response.
type etherscanEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type etherscanSource struct {
	SourceCode     string `json:"SourceCode"`
	ABI            string `json:"ABI"`
	ContractName   string `json:"ContractName"`
	Proxy          string `json:"Proxy"`
	Implementation string `json:"Implementation"`
}

type etherscanCreation struct {
	ContractAddress string `json:"contractAddress"`
	ContractCreator string `json:"contractCreator"`
	TxHash          string `json:"txHash"`
	Timestamp       string `json:"timestamp"`
}

// call performs one explorer request and decodes result into out. A
// status other than "1" is mapped to a ProviderError by its message.
func (e *Etherscan) call(ctx context.Context, params url.Values, out any) error {
	if e.cfg.APIKey == "" {
		return errorf(upstreamEtherscan, KindConfig, "explorer API key not configured")
	}
	params.Set("chainid", strconv.FormatInt(e.cfg.ChainID, 10))
	params.Set("apikey", e.cfg.APIKey)

	var env etherscanEnvelope
	if err := e.req.getJSON(ctx, e.cfg.BaseURL+"?"+params.Encode(), nil, &env); err != nil {
		return err
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return errorf(upstreamEtherscan, KindMalformed, "decode result: %v", err)
	}
	return nil
}

func (env *etherscanEnvelope) check() error {
	if env.Status == "1" {
		return nil
	}
	return envelopeError(*env)
}

func envelopeError(env etherscanEnvelope) error {
	var detail string
	if err := json.Unmarshal(env.Result, &detail); err != nil {
		detail = string(env.Result)
	}
	text := strings.TrimSpace(env.Message + ": " + detail)
	lower := strings.ToLower(text)

	kind := KindUpstream
	switch {
	case strings.Contains(lower, "rate limit"):
		kind = KindRateLimited
	case strings.Contains(lower, "invalid api key"):
		kind = KindAuth
	case strings.Contains(lower, "no data found"), strings.Contains(lower, "no transactions found"):
		kind = KindNotFound
	case strings.Contains(lower, "invalid"), strings.Contains(lower, "error! "):
		kind = KindMalformed
	}
	if env.Status == "" && env.Message == "" {
		kind = KindMalformed
		text = "empty envelope"
	}
	pe := newError(upstreamEtherscan, kind, errors.New(text))
	if kind == KindRateLimited {
		pe.Err = &retryAfter{wait: time.Second, msg: text}
	}
	return pe
}

// SourceCode fetches verified source for a contract.
func (e *Etherscan) SourceCode(ctx context.Context, addr string) (SourceInfo, error) {
	params := url.Values{"module": {"contract"}, "action": {"getsourcecode"}, "address": {addr}}
	var results []etherscanSource
	if err := e.call(ctx, params, &results); err != nil {
		return SourceInfo{}, err
	}
	if len(results) == 0 {
		return SourceInfo{}, errorf(upstreamEtherscan, KindMalformed, "getsourcecode returned no entries")
	}
	r := results[0]
	code := flattenSource(r.SourceCode)
	return SourceInfo{
		Code:           code,
		Verified:       code != "",
		ContractName:   r.ContractName,
		Proxy:          r.Proxy == "1",
		Implementation: r.Implementation,
	}, nil
}

// flattenSource expands standard-json multi-file sources ("{{...}}" or a
// bare JSON object with "sources") into concatenated file contents.
// Single-file sources are returned unchanged.
func flattenSource(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") {
		trimmed = trimmed[1 : len(trimmed)-1]
	}
	if !strings.HasPrefix(trimmed, "{") {
		return raw
	}

	var multi struct {
		Sources map[string]struct {
			Content string `json:"content"`
		} `json:"sources"`
	}
	if err := json.Unmarshal([]byte(trimmed), &multi); err != nil || len(multi.Sources) == 0 {
		// Some explorers return {"file.sol": {"content": ...}} without the wrapper.
		var bare map[string]struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal([]byte(trimmed), &bare); err != nil || len(bare) == 0 {
			return raw
		}
		multi.Sources = bare
	}

	names := make([]string, 0, len(multi.Sources))
	for name := range multi.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString("// File: ")
		b.WriteString(name)
		b.WriteString("\n")
		b.WriteString(multi.Sources[name].Content)
		b.WriteString("\n")
	}
	return b.String()
}

// TokenSupply returns total supply in raw units.
func (e *Etherscan) TokenSupply(ctx context.Context, token string) (string, error) {
	params := url.Values{"module": {"stats"}, "action": {"tokensupply"}, "contractaddress": {token}}
	var supply string
	if err := e.call(ctx, params, &supply); err != nil {
		return "", err
	}
	if !digits.MatchString(supply) {
		return "", errorf(upstreamEtherscan, KindMalformed, "tokensupply is not an integer: %q", supply)
	}
	return supply, nil
}

// HolderCount returns the number of holders the explorer tracks.
func (e *Etherscan) HolderCount(ctx context.Context, token string) (int, error) {
	params := url.Values{"module": {"token"}, "action": {"tokenholdercount"}, "contractaddress": {token}}
	var raw string
	if err := e.call(ctx, params, &raw); err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errorf(upstreamEtherscan, KindMalformed, "tokenholdercount is not a count: %q", raw)
	}
	return n, nil
}

// ContractCreation returns the deployer and deployment time.
func (e *Etherscan) ContractCreation(ctx context.Context, addr string) (CreationInfo, error) {
	params := url.Values{"module": {"contract"}, "action": {"getcontractcreation"}, "contractaddresses": {addr}}
	var results []etherscanCreation
	if err := e.call(ctx, params, &results); err != nil {
		return CreationInfo{}, err
	}
	if len(results) == 0 || address.Classify(results[0].ContractCreator) != address.NetworkEthereum {
		return CreationInfo{}, errorf(upstreamEtherscan, KindMalformed, "getcontractcreation returned no creator")
	}
	r := results[0]
	info := CreationInfo{Creator: r.ContractCreator, TxHash: r.TxHash}
	if r.Timestamp != "" {
		secs, err := strconv.ParseInt(r.Timestamp, 10, 64)
		if err != nil || secs <= 0 {
			return CreationInfo{}, errorf(upstreamEtherscan, KindMalformed, "bad creation timestamp %q", r.Timestamp)
		}
		info.CreatedAt = time.Unix(secs, 0).UTC()
	}
	return info, nil
}

// TokenBalance returns holder's balance of token in raw units.
func (e *Etherscan) TokenBalance(ctx context.Context, token, holder string) (string, error) {
	params := url.Values{
		"module":          {"account"},
		"action":          {"tokenbalance"},
		"contractaddress": {token},
		"address":         {holder},
		"tag":             {"latest"},
	}
	var balance string
	if err := e.call(ctx, params, &balance); err != nil {
		return "", err
	}
	if !digits.MatchString(balance) {
		return "", errorf(upstreamEtherscan, KindMalformed, "tokenbalance is not an integer: %q", balance)
	}
	return balance, nil
}

// SourceCodeProvider contributes source text and verification status.
func (e *Etherscan) SourceCodeProvider(timeout time.Duration) Provider {
	return Func(NameSourceCode, timeout, func(ctx context.Context, addr string) (Contribution, error) {
		info, err := e.SourceCode(ctx, addr)
		if err != nil {
			return nil, err
		}
		return info, nil
	})
}

// SupplyProvider contributes total supply.
func (e *Etherscan) SupplyProvider(timeout time.Duration) Provider {
	return Func(NameSupply, timeout, func(ctx context.Context, addr string) (Contribution, error) {
		supply, err := e.TokenSupply(ctx, addr)
		if err != nil {
			return nil, err
		}
		return SupplyInfo{Raw: supply}, nil
	})
}

// HolderCountProvider contributes the holder count.
func (e *Etherscan) HolderCountProvider(timeout time.Duration) Provider {
	return Func(NameHolderCount, timeout, func(ctx context.Context, addr string) (Contribution, error) {
		n, err := e.HolderCount(ctx, addr)
		if err != nil {
			return nil, err
		}
		return HolderCountInfo{Count: n}, nil
	})
}

// CreationTimeProvider contributes creator and creation time.
func (e *Etherscan) CreationTimeProvider(timeout time.Duration) Provider {
	return Func(NameCreationTime, timeout, func(ctx context.Context, addr string) (Contribution, error) {
		info, err := e.ContractCreation(ctx, addr)
		if err != nil {
			return nil, err
		}
		return info, nil
	})
}
