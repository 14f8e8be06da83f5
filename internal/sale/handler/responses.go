package handler

import (
	"time"

	"crowdgate/internal/sale/models"
	"crowdgate/pkg/domain"
)

// BuyResponse is the wire form of a purchase receipt.
type BuyResponse struct {
	ID       string    `json:"id"`
	Sender   string    `json:"sender"`
	Buyer    string    `json:"buyer"`
	Value    string    `json:"value"`
	Tokens   string    `json:"tokens"`
	Refund   string    `json:"refund"`
	BoughtAt time.Time `json:"bought_at"`
}

func FromReceipt(r *models.PurchaseReceipt) BuyResponse {
	return BuyResponse{
		ID:       r.ID.String(),
		Sender:   r.Sender.Hex(),
		Buyer:    r.Buyer.Hex(),
		Value:    domain.AmountString(r.Value),
		Tokens:   domain.AmountString(r.Tokens),
		Refund:   domain.AmountString(r.Refund),
		BoughtAt: r.BoughtAt,
	}
}

// StatusResponse is the wire form of the sale status read-model.
type StatusResponse struct {
	Started         bool      `json:"started"`
	Ended           bool      `json:"ended"`
	Finalized       bool      `json:"finalized"`
	Price           string    `json:"price"`
	RemainingTokens string    `json:"remaining_tokens"`
	TotalTokens     string    `json:"total_tokens"`
	TeamShare       string    `json:"team_share"`
	WeiRaised       string    `json:"wei_raised"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	Wallet          string    `json:"wallet"`
	TeamWallet      string    `json:"team_wallet"`
}

func FromStatus(s *models.Status) StatusResponse {
	return StatusResponse{
		Started:         s.Started,
		Ended:           s.Ended,
		Finalized:       s.Finalized,
		Price:           domain.AmountString(s.Price),
		RemainingTokens: domain.AmountString(s.RemainingTokens),
		TotalTokens:     domain.AmountString(s.TotalTokens),
		TeamShare:       domain.AmountString(s.TeamShare),
		WeiRaised:       domain.AmountString(s.WeiRaised),
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		Wallet:          s.Wallet.Hex(),
		TeamWallet:      s.TeamWallet.Hex(),
	}
}

// SignerResponse reports whether an address is a registered KYC signer.
type SignerResponse struct {
	Address  string `json:"address"`
	IsSigner bool   `json:"is_signer"`
}

// LoginResponse carries an issued owner token.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// AcceptedResponse acknowledges an admin mutation.
type AcceptedResponse struct {
	Status string `json:"status"`
}
