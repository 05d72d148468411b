package splitter

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrMalformedAddress = errors.New("malformed address")
	ErrBadChecksum      = errors.New("address checksum mismatch")
)

// ParseAddress accepts a 20-byte hex address with or without the 0x prefix.
// Single-case input is taken as is; mixed-case input must carry a valid
// EIP-55 checksum.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, ErrMalformedAddress
	}
	addr := common.HexToAddress(s)
	body := s
	if len(body) == 2*common.AddressLength+2 {
		body = body[2:]
	}
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return addr, nil
	}
	if body != addr.Hex()[2:] {
		return common.Address{}, ErrBadChecksum
	}
	return addr, nil
}

// ShortAddress renders 0x1234...abcd.
func ShortAddress(a common.Address) string {
	h := a.Hex()
	return h[:6] + "..." + h[len(h)-4:]
}
