package providers

import (
	"context"
	"time"

	"github.com/rcollins22/rugchekr/internal/address"
)

// BalanceReader reads ERC-20 balances. Etherscan and OnChain both
// implement it.
type BalanceReader interface {
	TokenBalance(ctx context.Context, token, holder string) (string, error)
}

// CreatorResolver finds a contract's deployer.
type CreatorResolver interface {
	ContractCreation(ctx context.Context, addr string) (CreationInfo, error)
}

// BurnedBalanceProvider contributes the balance held by the dead address.
func BurnedBalanceProvider(reader BalanceReader, timeout time.Duration) Provider {
	holder := address.Dead.Hex()
	return Func(NameBurnedBal, timeout, func(ctx context.Context, token string) (Contribution, error) {
		amount, err := reader.TokenBalance(ctx, token, holder)
		if err != nil {
			return nil, Wrap(NameBurnedBal, err)
		}
		return BalanceInfo{Role: RoleBurned, Holder: holder, Amount: amount}, nil
	})
}

// CreatorBalanceProvider contributes the deployer's balance. It resolves
// the deployer itself, inside its own timeout, so it never waits on the
// creation-time provider.
func CreatorBalanceProvider(resolver CreatorResolver, reader BalanceReader, timeout time.Duration) Provider {
	return Func(NameCreatorBal, timeout, func(ctx context.Context, token string) (Contribution, error) {
		creation, err := resolver.ContractCreation(ctx, token)
		if err != nil {
			return nil, Wrap(NameCreatorBal, err)
		}
		amount, err := reader.TokenBalance(ctx, token, creation.Creator)
		if err != nil {
			return nil, Wrap(NameCreatorBal, err)
		}
		return BalanceInfo{Role: RoleCreator, Holder: creation.Creator, Amount: amount}, nil
	})
}
