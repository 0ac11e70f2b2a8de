package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func etherscanServer(t *testing.T, handle func(q map[string]string) (status, message string, result any)) *Etherscan {
	t.Helper()
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := map[string]string{}
		for k, v := range r.URL.Query() {
			q[k] = v[0]
		}
		assert.Equal(t, "1", q["chainid"])
		assert.Equal(t, "test-key", q["apikey"])

		status, message, result := handle(q)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "message": message, "result": result})
	})
	return NewEtherscan(EtherscanConfig{BaseURL: srv.URL, APIKey: "test-key", ChainID: 1, RPS: 100}, testDeps(srv))
}

func TestEtherscan_SourceCodeVerified(t *testing.T) {
	es := etherscanServer(t, func(q map[string]string) (string, string, any) {
		assert.Equal(t, "contract", q["module"])
		assert.Equal(t, "getsourcecode", q["action"])
		assert.Equal(t, testToken, q["address"])
		return "1", "OK", []map[string]string{{
			"SourceCode":     "contract T { function kill() onlyOwner { selfdestruct(owner); } }",
			"ContractName":   "T",
			"Proxy":          "0",
			"Implementation": "",
		}}
	})

	info, err := es.SourceCode(context.Background(), testToken)
	require.NoError(t, err)
	assert.True(t, info.Verified)
	assert.Equal(t, "T", info.ContractName)
	assert.False(t, info.Proxy)
	assert.Contains(t, info.Code, "selfdestruct")
}

func TestEtherscan_SourceCodeUnverified(t *testing.T) {
	es := etherscanServer(t, func(q map[string]string) (string, string, any) {
		return "1", "OK", []map[string]string{{"SourceCode": "", "ABI": "Contract source code not verified"}}
	})

	info, err := es.SourceCode(context.Background(), testToken)
	require.NoError(t, err)
	assert.False(t, info.Verified)
	assert.Empty(t, info.Code)
}

func TestEtherscan_MultiFileSource(t *testing.T) {
	multi := `{{"language":"Solidity","sources":{"b/Token.sol":{"content":"contract Token { function mint() {} }"},"a/Ownable.sol":{"content":"contract Ownable { modifier onlyOwner() { _; } }"}}}}`
	es := etherscanServer(t, func(q map[string]string) (string, string, any) {
		return "1", "OK", []map[string]string{{"SourceCode": multi, "Proxy": "1", "Implementation": "0xabc"}}
	})

	info, err := es.SourceCode(context.Background(), testToken)
	require.NoError(t, err)
	assert.True(t, info.Proxy)
	assert.Equal(t, "0xabc", info.Implementation)
	assert.Contains(t, info.Code, "// File: a/Ownable.sol")
	assert.Contains(t, info.Code, "contract Token { function mint() {} }")
	assert.Less(t, strings.Index(info.Code, "a/Ownable.sol"), strings.Index(info.Code, "b/Token.sol"))
}

func TestFlattenSource_PlainPassesThrough(t *testing.T) {
	src := "pragma solidity ^0.8.0; contract A {}"
	assert.Equal(t, src, flattenSource(src))
	assert.Equal(t, "{not json", flattenSource("{not json"))
}

func TestEtherscan_TokenSupply(t *testing.T) {
	es := etherscanServer(t, func(q map[string]string) (string, string, any) {
		assert.Equal(t, "tokensupply", q["action"])
		return "1", "OK", "1000000000000000000000000"
	})
	supply, err := es.TokenSupply(context.Background(), testToken)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000000000", supply)
}

func TestEtherscan_TokenSupplyMalformed(t *testing.T) {
	es := etherscanServer(t, func(q map[string]string) (string, string, any) {
		return "1", "OK", "1.5e24"
	})
	_, err := es.TokenSupply(context.Background(), testToken)
	assert.Equal(t, KindMalformed, KindOf(err))
}

func TestEtherscan_HolderCount(t *testing.T) {
	es := etherscanServer(t, func(q map[string]string) (string, string, any) {
		assert.Equal(t, "tokenholdercount", q["action"])
		return "1", "OK", "4213"
	})
	n, err := es.HolderCount(context.Background(), testToken)
	require.NoError(t, err)
	assert.Equal(t, 4213, n)
}

func TestEtherscan_ContractCreation(t *testing.T) {
	es := etherscanServer(t, func(q map[string]string) (string, string, any) {
		assert.Equal(t, "getcontractcreation", q["action"])
		assert.Equal(t, testToken, q["contractaddresses"])
		return "1", "OK", []map[string]string{{
			"contractAddress": testToken,
			"contractCreator": "0x41653c7d61609d856f29355e404f310ec4142cfb",
			"txHash":          "0x4fc1580e7f66c58b7c26881cce0aab9c3509afe6e507527f30566fbf8039bcd0",
			"timestamp":       "1600107086",
		}}
	})
	info, err := es.ContractCreation(context.Background(), testToken)
	require.NoError(t, err)
	assert.Equal(t, "0x41653c7d61609d856f29355e404f310ec4142cfb", info.Creator)
	assert.Equal(t, time.Unix(1600107086, 0).UTC(), info.CreatedAt)
}

func TestEtherscan_TokenBalance(t *testing.T) {
	es := etherscanServer(t, func(q map[string]string) (string, string, any) {
		assert.Equal(t, "tokenbalance", q["action"])
		assert.Equal(t, "0x000000000000000000000000000000000000dEaD", q["address"])
		return "1", "OK", "500"
	})
	bal, err := es.TokenBalance(context.Background(), testToken, "0x000000000000000000000000000000000000dEaD")
	require.NoError(t, err)
	assert.Equal(t, "500", bal)
}

func TestEtherscan_EnvelopeErrors(t *testing.T) {
	tests := []struct {
		name    string
		message string
		result  string
		want    Kind
	}{
		{"rate limit", "NOTOK", "Max rate limit reached", KindRateLimited},
		{"bad key", "NOTOK", "Missing/Invalid API Key", KindAuth},
		{"no data", "No data found", "", KindNotFound},
		{"bad address", "NOTOK", "Error! Invalid address format", KindMalformed},
		{"other", "NOTOK", "Query Timeout occured. Please select a smaller result dataset", KindUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			es := etherscanServer(t, func(q map[string]string) (string, string, any) {
				return "0", tt.message, tt.result
			})
			_, err := es.TokenSupply(context.Background(), testToken)
			assert.Equal(t, tt.want, KindOf(err))
		})
	}
}

func TestEtherscan_EnvelopeRateLimitIsRetried(t *testing.T) {
	var calls atomic.Int32
	es := etherscanServer(t, func(q map[string]string) (string, string, any) {
		if calls.Add(1) == 1 {
			return "0", "NOTOK", "Max rate limit reached"
		}
		return "1", "OK", "42"
	})
	supply, err := es.TokenSupply(context.Background(), testToken)
	require.NoError(t, err)
	assert.Equal(t, "42", supply)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEtherscan_MissingKey(t *testing.T) {
	es := NewEtherscan(EtherscanConfig{BaseURL: "http://127.0.0.1:1", ChainID: 1, RPS: 5}, Deps{})
	_, err := es.SourceCode(context.Background(), testToken)
	assert.Equal(t, KindConfig, KindOf(err))
}

func TestEtherscan_Providers(t *testing.T) {
	es := etherscanServer(t, func(q map[string]string) (string, string, any) {
		switch q["action"] {
		case "tokensupply":
			return "1", "OK", "1000"
		case "tokenholdercount":
			return "1", "OK", "7"
		default:
			return "0", "NOTOK", "unexpected"
		}
	})

	snap := &Snapshot{}
	c, err := es.SupplyProvider(time.Second).Fetch(context.Background(), testToken)
	require.NoError(t, err)
	c.Apply(snap)
	c, err = es.HolderCountProvider(time.Second).Fetch(context.Background(), testToken)
	require.NoError(t, err)
	c.Apply(snap)

	assert.Equal(t, "1000", snap.TotalSupply.Raw)
	assert.Equal(t, 7, snap.HolderCount.Count)
	assert.Nil(t, snap.Source)
	assert.Equal(t, NameSupply, es.SupplyProvider(time.Second).Name())
	assert.Equal(t, time.Second, es.SupplyProvider(time.Second).Timeout())
}
