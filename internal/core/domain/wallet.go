package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ParseWallet validates and parses a hex wallet address. The zero address is rejected.
func ParseWallet(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidWallet, s)
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: zero address", ErrInvalidWallet)
	}
	return addr, nil
}
