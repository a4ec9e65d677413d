package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IsValidAddress reports whether addr is a 0x-prefixed 20-byte hex address.
func IsValidAddress(addr string) bool {
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return false
	}
	return common.IsHexAddress(addr)
}

// NormalizeAddress returns the EIP-55 checksummed form of a valid address.
func NormalizeAddress(addr string) string {
	return common.HexToAddress(addr).Hex()
}
