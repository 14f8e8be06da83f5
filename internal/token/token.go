// Package token holds the sale engine's external token collaborator: the
// narrow interface the engine mints through, and an in-process capped,
// mintable, pausable ledger implementing it.
package token

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Sentinel errors returned by the ledger. Callers match with errors.Is.
var (
	ErrNotOwner              = errors.New("caller is not the token owner")
	ErrPaused                = errors.New("token is paused")
	ErrNotPaused             = errors.New("token is not paused")
	ErrCapExceeded           = errors.New("cap exceeded")
	ErrMintingFinished       = errors.New("minting is finished")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrZeroAddress           = errors.New("zero address")
	ErrInvalidAmount         = errors.New("invalid amount")
)

// Token is the narrow surface the sale engine requires from the token.
// Owner-gated operations take the caller's address explicitly; the engine
// passes its own sale address after ownership has been handed over.
type Token interface {
	Mint(caller, to common.Address, amount *big.Int) error
	Pause(caller common.Address) error
	Unpause(caller common.Address) error
	Paused() bool
	TotalSupply() *big.Int
	BalanceOf(addr common.Address) *big.Int
	Cap() *big.Int
	TransferOwnership(caller, newOwner common.Address) error
}
