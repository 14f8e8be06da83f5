package service

import (
	"context"
	"math/big"
	"time"

	"github.com/google/uuid"

	"crowdgate/internal/kyc"
	"crowdgate/internal/sale/models"
	"crowdgate/pkg/domain"
	dErrors "crowdgate/pkg/domain-errors"
	audit "crowdgate/pkg/platform/audit"
	"crowdgate/pkg/requestcontext"
)

// BuyTokens processes a purchase at the given time. The buy is filled at the
// current price; when the request exceeds the remaining allocation it is
// partially filled and the unspendable remainder of the payment is refunded.
//
// Ledger state is committed before the token mint and funds movement, so a
// reentrant or concurrent call can never buy against stale remaining supply.
func (s *Service) BuyTokens(ctx context.Context, req models.PurchaseRequest, now time.Time) (*models.PurchaseReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, err := s.store.Load(ctx)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load sale ledger", err)
	}

	if !s.Started(now) {
		s.metrics.IncRejection("not_started")
		return nil, dErrors.New(dErrors.CodeConflict, "sale has not started")
	}
	if s.ended(now, ledger) {
		s.metrics.IncRejection("ended")
		return nil, dErrors.New(dErrors.CodeConflict, "sale has ended")
	}

	auth := req.Authorization
	sig := kyc.Signature{V: auth.V, R: auth.R, S: auth.S}
	if !s.verifier.Verify(s.cfg.SaleAddress, req.Buyer, auth.BuyerID, auth.MaxAmount, sig) {
		s.metrics.IncRejection("unauthorized")
		s.logger.WarnContext(ctx, "purchase authorization denied",
			"buyer", req.Buyer.Hex(),
			"buyer_id", auth.BuyerID,
		)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "purchase authorization denied")
	}

	if req.Value == nil || req.Value.Sign() <= 0 {
		s.metrics.IncRejection("zero_value")
		return nil, dErrors.New(dErrors.CodeInvalidInput, "payment value must be positive")
	}

	// Fill math. On a partial fill the accepted value is the truncated
	// quotient of the filled tokens by the price; the truncation remainder
	// goes back to the sender as part of the refund.
	requested := new(big.Int).Mul(req.Value, ledger.Price)
	var filled, accepted, refund *big.Int
	if requested.Cmp(ledger.RemainingTokens) <= 0 {
		filled = requested
		accepted = new(big.Int).Set(req.Value)
		refund = big.NewInt(0)
	} else {
		filled = new(big.Int).Set(ledger.RemainingTokens)
		accepted = new(big.Int).Quo(filled, ledger.Price)
		refund = new(big.Int).Sub(req.Value, accepted)
	}

	next := ledger.Clone()
	next.RemainingTokens.Sub(next.RemainingTokens, filled)
	next.WeiRaised.Add(next.WeiRaised, accepted)
	if err := s.store.Save(ctx, next); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "commit sale ledger", err)
	}

	if err := s.token.Mint(s.cfg.SaleAddress, req.Buyer, filled); err != nil {
		// Ledger committed but mint refused: put the allocation back.
		if restoreErr := s.store.Save(ctx, ledger); restoreErr != nil {
			s.logger.ErrorContext(ctx, "restore sale ledger after failed mint",
				"error", restoreErr,
			)
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "mint purchased tokens", err)
	}

	if err := s.funds.Forward(ctx, s.cfg.Wallet, accepted); err != nil {
		// Tokens are already minted; the sale is committed. Settlement is
		// reconciled operationally, the buy itself does not unwind.
		s.logger.ErrorContext(ctx, "forward accepted funds",
			"wallet", s.cfg.Wallet.Hex(),
			"value", domain.AmountString(accepted),
			"error", err,
		)
		return nil, dErrors.Wrap(dErrors.CodeInternal, "forward accepted funds", err)
	}
	if refund.Sign() > 0 {
		if err := s.funds.Refund(ctx, req.Sender, refund); err != nil {
			s.logger.ErrorContext(ctx, "refund unfilled payment",
				"sender", req.Sender.Hex(),
				"value", domain.AmountString(refund),
				"error", err,
			)
			return nil, dErrors.Wrap(dErrors.CodeInternal, "refund unfilled payment", err)
		}
	}

	receipt := &models.PurchaseReceipt{
		ID:       uuid.New(),
		Sender:   req.Sender,
		Buyer:    req.Buyer,
		Value:    accepted,
		Tokens:   filled,
		Refund:   refund,
		BoughtAt: now,
	}
	if err := s.store.AppendPurchase(ctx, *receipt); err != nil {
		s.logger.ErrorContext(ctx, "append purchase receipt", "error", err)
	}

	s.emit(ctx, audit.Event{
		Action:    audit.ActionTokenPurchased,
		Sender:    req.Sender.Hex(),
		Buyer:     req.Buyer.Hex(),
		Value:     domain.AmountString(accepted),
		Tokens:    domain.AmountString(filled),
		RequestID: requestcontext.RequestID(ctx),
	})
	if refund.Sign() > 0 {
		s.emit(ctx, audit.Event{
			Action:    audit.ActionBuyerRefunded,
			Sender:    req.Sender.Hex(),
			Buyer:     req.Buyer.Hex(),
			Value:     domain.AmountString(refund),
			RequestID: requestcontext.RequestID(ctx),
		})
	}

	s.metrics.IncPurchase(refund.Sign() > 0)
	s.metrics.ObserveLedger(next.RemainingTokens, next.WeiRaised, next.Finalized)

	s.logger.InfoContext(ctx, "purchase accepted",
		"buyer", req.Buyer.Hex(),
		"value", domain.AmountString(accepted),
		"tokens", domain.AmountString(filled),
		"refund", domain.AmountString(refund),
	)
	return receipt, nil
}
