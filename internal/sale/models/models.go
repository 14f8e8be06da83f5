// Package models holds the sale engine's domain types: the fixed
// configuration, the mutable ledger, per-call purchase authorizations, and
// receipts.
package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"crowdgate/pkg/domain"
)

// Config is the sale's fixed configuration, set at construction. Price and
// the team wallet have owner-mutable counterparts on the Ledger; everything
// else is immutable for the sale's lifetime.
type Config struct {
	// SaleAddress identifies this sale instance; the KYC authority binds
	// every authorization to it.
	SaleAddress common.Address

	// Price is the initial number of token quanta minted per wei.
	Price *big.Int

	StartTime time.Time
	EndTime   time.Time

	// Wallet receives all accepted payments.
	Wallet common.Address

	// TeamWallet receives the team share at finalization. May start unset;
	// must be set before finalize.
	TeamWallet common.Address

	// CompanyWallet and AdvisorsWallet are auxiliary recipients carried in
	// the configuration for operational reporting.
	CompanyWallet  common.Address
	AdvisorsWallet common.Address

	// TotalTokens is the sale-allocatable supply, excluding the team share.
	TotalTokens *big.Int

	// TeamShare is minted to TeamWallet only at finalization.
	TeamShare *big.Int

	// Signers is the registered KYC signer set.
	Signers []common.Address
}

// Ledger is the mutable sale state. The engine serializes all mutations;
// stores persist snapshots of it.
type Ledger struct {
	Price           *big.Int
	TeamWallet      common.Address
	RemainingTokens *big.Int
	WeiRaised       *big.Int
	Finalized       bool
}

// NewLedger builds the initial ledger from configuration.
func NewLedger(cfg Config) *Ledger {
	return &Ledger{
		Price:           new(big.Int).Set(cfg.Price),
		TeamWallet:      cfg.TeamWallet,
		RemainingTokens: new(big.Int).Set(cfg.TotalTokens),
		WeiRaised:       big.NewInt(0),
		Finalized:       false,
	}
}

// Clone returns a deep copy so callers can compute against a snapshot and
// commit atomically.
func (l *Ledger) Clone() *Ledger {
	return &Ledger{
		Price:           new(big.Int).Set(l.Price),
		TeamWallet:      l.TeamWallet,
		RemainingTokens: new(big.Int).Set(l.RemainingTokens),
		WeiRaised:       new(big.Int).Set(l.WeiRaised),
		Finalized:       l.Finalized,
	}
}

// Authorization is the per-call purchase authorization issued off-chain by
// the KYC authority. It is verified and discarded, never persisted.
type Authorization struct {
	BuyerID   domain.BuyerID
	MaxAmount *big.Int
	V         uint8
	R         [32]byte
	S         [32]byte
}

// PurchaseRequest is a fully parsed buy call.
type PurchaseRequest struct {
	Sender        common.Address
	Buyer         common.Address
	Value         *big.Int
	Authorization Authorization
}

// PurchaseReceipt records the outcome of an accepted purchase.
type PurchaseReceipt struct {
	ID       uuid.UUID
	Sender   common.Address
	Buyer    common.Address
	Value    *big.Int // accepted wei, excludes any refund
	Tokens   *big.Int // token quanta minted
	Refund   *big.Int // zero unless the buy was partially filled
	BoughtAt time.Time
}

// Status is the read-model returned by the status endpoint.
type Status struct {
	Started         bool
	Ended           bool
	Finalized       bool
	Price           *big.Int
	RemainingTokens *big.Int
	TotalTokens     *big.Int
	TeamShare       *big.Int
	WeiRaised       *big.Int
	StartTime       time.Time
	EndTime         time.Time
	Wallet          common.Address
	TeamWallet      common.Address
}
