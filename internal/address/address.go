// Package address classifies token contract addresses by network family.
//
// Classification is purely structural: no lookup is performed, so callers
// can reject bad input before any provider is contacted.
package address

import (
	"errors"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Network is the family an address belongs to.
type Network string

const (
	NetworkEthereum Network = "Ethereum"
	NetworkSolana   Network = "Solana"
	NetworkInvalid  Network = "Invalid"
)

var (
	ErrInvalidFormat      = errors.New("address: invalid format")
	ErrUnsupportedNetwork = errors.New("address: unsupported network")
)

var (
	evmPattern    = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	solanaPattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
)

var (
	// Zero is the null address.
	Zero = common.Address{}
	// Dead is the conventional burn address.
	Dead = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
)

// Classify tags addr with its network. EVM wins when both patterns could
// apply, which cannot happen in practice because base58 has no 'x'.
func Classify(addr string) Network {
	switch {
	case evmPattern.MatchString(addr):
		return NetworkEthereum
	case solanaPattern.MatchString(addr):
		return NetworkSolana
	default:
		return NetworkInvalid
	}
}

// Analyzable returns nil when addr can be analyzed, ErrInvalidFormat for
// malformed input and ErrUnsupportedNetwork for valid non-EVM addresses.
func Analyzable(addr string) (Network, error) {
	n := Classify(addr)
	switch n {
	case NetworkEthereum:
		return n, nil
	case NetworkSolana:
		return n, ErrUnsupportedNetwork
	default:
		return n, ErrInvalidFormat
	}
}

// Normalize trims surrounding whitespace. Case is preserved so the
// classifier sees exactly what the caller typed.
func Normalize(addr string) string {
	return strings.TrimSpace(addr)
}

// Checksum returns the EIP-55 form of an EVM address. Non-EVM input is
// returned unchanged.
func Checksum(addr string) string {
	if !evmPattern.MatchString(addr) {
		return addr
	}
	return common.HexToAddress(addr).Hex()
}

// Equal compares two EVM addresses case-insensitively.
func Equal(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}

// IsBurn reports whether addr is the zero or dead address.
func IsBurn(addr string) bool {
	if !evmPattern.MatchString(addr) {
		return false
	}
	a := common.HexToAddress(addr)
	return a == Zero || a == Dead
}
