package handler

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"crowdgate/internal/sale/models"
	"crowdgate/pkg/domain"
	dErrors "crowdgate/pkg/domain-errors"
)

// AuthorizationPayload is the wire form of a KYC purchase authorization. R
// and S are 0x-prefixed 32-byte hex strings; amounts are decimal strings.
type AuthorizationPayload struct {
	BuyerID   uint64 `json:"buyer_id"`
	MaxAmount string `json:"max_amount"`
	V         uint8  `json:"v"`
	R         string `json:"r"`
	S         string `json:"s"`
}

// BuyRequest is the wire form of a purchase.
type BuyRequest struct {
	Sender        string               `json:"sender"`
	Buyer         string               `json:"buyer"`
	Value         string               `json:"value"`
	Authorization AuthorizationPayload `json:"authorization"`
}

// ToDomain parses the wire request into a domain purchase request.
func (r BuyRequest) ToDomain() (models.PurchaseRequest, error) {
	var req models.PurchaseRequest

	sender, err := domain.ParseAddress(r.Sender)
	if err != nil {
		return req, dErrors.New(dErrors.CodeBadRequest, "invalid sender address")
	}
	buyer, err := domain.ParseAddress(r.Buyer)
	if err != nil {
		return req, dErrors.New(dErrors.CodeBadRequest, "invalid buyer address")
	}
	value, err := domain.ParseAmount(r.Value)
	if err != nil {
		return req, dErrors.New(dErrors.CodeBadRequest, "invalid payment value")
	}
	maxAmount, err := domain.ParseAmount(r.Authorization.MaxAmount)
	if err != nil {
		return req, dErrors.New(dErrors.CodeBadRequest, "invalid authorization max amount")
	}

	auth := models.Authorization{
		BuyerID:   domain.BuyerID(r.Authorization.BuyerID),
		MaxAmount: maxAmount,
		V:         r.Authorization.V,
	}
	if err := decodeWord(r.Authorization.R, auth.R[:]); err != nil {
		return req, dErrors.New(dErrors.CodeBadRequest, "invalid authorization r value")
	}
	if err := decodeWord(r.Authorization.S, auth.S[:]); err != nil {
		return req, dErrors.New(dErrors.CodeBadRequest, "invalid authorization s value")
	}

	req = models.PurchaseRequest{
		Sender:        sender,
		Buyer:         buyer,
		Value:         value,
		Authorization: auth,
	}
	return req, nil
}

// decodeWord parses a 0x-prefixed hex string into a fixed 32-byte slot.
func decodeWord(s string, dst []byte) error {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return err
	}
	if len(raw) != len(dst) {
		return dErrors.New(dErrors.CodeBadRequest, "wrong word length")
	}
	copy(dst, raw)
	return nil
}

// SetPriceRequest changes the sale price.
type SetPriceRequest struct {
	Price string `json:"price"`
}

func (r SetPriceRequest) ParsedPrice() (*big.Int, error) {
	price, err := domain.ParseAmount(r.Price)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid price")
	}
	return price, nil
}

// SetTeamWalletRequest changes the team wallet.
type SetTeamWalletRequest struct {
	Wallet string `json:"wallet"`
}

// PresaleRequest distributes presale allocations. Investors and amounts are
// parallel lists.
type PresaleRequest struct {
	Investors []string `json:"investors"`
	Amounts   []string `json:"amounts"`
}

// LoginRequest authenticates an operator.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
