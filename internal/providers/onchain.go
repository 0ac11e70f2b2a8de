package providers

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/rcollins22/rugchekr/internal/circuitbreaker"
)

const upstreamRPC = "rpc"

// Minimal ABI for ownership and balance reads.
const ownableERC20ABI = `[
	{"constant":true,"inputs":[],"name":"owner","outputs":[{"name":"","type":"address"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

var parsedOwnableERC20 = mustParseABI(ownableERC20ABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("providers: bad ABI: %v", err))
	}
	return parsed
}

// ContractCaller is the subset of ethclient.Client used for eth_call.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// OnChain reads contract state over JSON-RPC.
type OnChain struct {
	caller  ContractCaller
	breaker *circuitbreaker.Breaker
	closer  func()
}

// NewOnChain wraps an existing caller.
func NewOnChain(caller ContractCaller, breaker *circuitbreaker.Breaker) *OnChain {
	if breaker == nil {
		breaker = circuitbreaker.New(5, 30*time.Second)
	}
	return &OnChain{caller: caller, breaker: breaker, closer: func() {}}
}

// DialOnChain connects to an RPC endpoint.
func DialOnChain(ctx context.Context, rpcURL string, breaker *circuitbreaker.Breaker) (*OnChain, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	oc := NewOnChain(client, breaker)
	oc.closer = client.Close
	return oc, nil
}

// Close releases the RPC connection.
func (o *OnChain) Close() { o.closer() }

func (o *OnChain) call(ctx context.Context, to string, method string, args ...any) ([]any, error) {
	data, err := parsedOwnableERC20.Pack(method, args...)
	if err != nil {
		return nil, errorf(upstreamRPC, KindConfig, "pack %s: %v", method, err)
	}
	target := common.HexToAddress(to)

	var out []byte
	err = o.breaker.Execute(upstreamRPC, func(err error) bool {
		return KindOf(err).tripsBreaker()
	}, func() error {
		var callErr error
		out, callErr = o.caller.CallContract(ctx, ethereum.CallMsg{To: &target, Data: data}, nil)
		if callErr != nil {
			return classifyRPCError(callErr)
		}
		return nil
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return nil, newError(upstreamRPC, KindUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errorf(upstreamRPC, KindNotFound, "%s returned no data", method)
	}

	values, err := parsedOwnableERC20.Unpack(method, out)
	if err != nil || len(values) == 0 {
		return nil, errorf(upstreamRPC, KindMalformed, "unpack %s: %v", method, err)
	}
	return values, nil
}

func classifyRPCError(err error) error {
	if errors.Is(err, context.Canceled) {
		return newError(upstreamRPC, KindCanceled, err)
	}
	if isTimeout(err) {
		return newError(upstreamRPC, KindTimeout, err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "execution reverted"):
		return newError(upstreamRPC, KindNotFound, err)
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate limit"):
		return newError(upstreamRPC, KindRateLimited, err)
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"):
		return newError(upstreamRPC, KindAuth, err)
	default:
		return newError(upstreamRPC, KindNetwork, err)
	}
}

// Owner calls owner() on the contract.
func (o *OnChain) Owner(ctx context.Context, token string) (string, error) {
	values, err := o.call(ctx, token, "owner")
	if err != nil {
		return "", err
	}
	owner, ok := values[0].(common.Address)
	if !ok {
		return "", errorf(upstreamRPC, KindMalformed, "owner() returned %T", values[0])
	}
	return owner.Hex(), nil
}

// TokenBalance calls balanceOf(holder) on the token.
func (o *OnChain) TokenBalance(ctx context.Context, token, holder string) (string, error) {
	values, err := o.call(ctx, token, "balanceOf", common.HexToAddress(holder))
	if err != nil {
		return "", err
	}
	bal, ok := values[0].(*big.Int)
	if !ok {
		return "", errorf(upstreamRPC, KindMalformed, "balanceOf returned %T", values[0])
	}
	return bal.String(), nil
}

// OwnerProvider contributes the current owner.
func (o *OnChain) OwnerProvider(timeout time.Duration) Provider {
	return Func(NameOwner, timeout, func(ctx context.Context, addr string) (Contribution, error) {
		owner, err := o.Owner(ctx, addr)
		if err != nil {
			return nil, err
		}
		return OwnerInfo{Address: owner}, nil
	})
}
