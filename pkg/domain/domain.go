package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	dErrors "crowdgate/pkg/domain-errors"
)

// BuyerID is the opaque identifier binding a purchase to an off-chain KYC
// record. The KYC authority assigns it; the sale engine only ever hashes it.
type BuyerID uint64

// ZeroAddress is the all-zero address, rejected wherever an address must
// designate a real recipient.
var ZeroAddress = common.Address{}

// ParseAddress parses a 0x-prefixed hex address.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, dErrors.New(dErrors.CodeBadRequest, "invalid address: "+s)
	}
	return common.HexToAddress(s), nil
}

// ParseAmount parses a non-negative base-10 amount (wei or token quanta).
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "amount must not be empty")
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid amount: "+s)
	}
	if n.Sign() < 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "amount must not be negative")
	}
	return n, nil
}

// AmountString renders an amount for transport; nil renders as "0".
func AmountString(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}
