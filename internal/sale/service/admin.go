package service

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"crowdgate/pkg/domain"
	dErrors "crowdgate/pkg/domain-errors"
	audit "crowdgate/pkg/platform/audit"
	"crowdgate/pkg/requestcontext"
)

// SetPrice changes the tokens-per-wei price for subsequent purchases. The new
// price must be positive. Owner authority is enforced by the transport layer;
// the authenticated actor is read from the context for the audit trail.
func (s *Service) SetPrice(ctx context.Context, newPrice *big.Int) error {
	if newPrice == nil || newPrice.Sign() <= 0 {
		s.metrics.IncRejection("invalid_price")
		return dErrors.New(dErrors.CodeInvalidInput, "price must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, err := s.store.Load(ctx)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "load sale ledger", err)
	}

	next := ledger.Clone()
	next.Price = new(big.Int).Set(newPrice)
	if err := s.store.Save(ctx, next); err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "commit sale ledger", err)
	}

	s.emit(ctx, audit.Event{
		Action:    audit.ActionPriceChanged,
		Value:     domain.AmountString(newPrice),
		ActorID:   requestcontext.ActorID(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
	s.logger.InfoContext(ctx, "sale price changed",
		"price", domain.AmountString(newPrice),
		"actor", requestcontext.ActorID(ctx),
	)
	return nil
}

// SetTeamWallet sets the address that receives the team share at
// finalization. It may be changed any number of times in any lifecycle
// state; changes after finalize no longer affect minting.
func (s *Service) SetTeamWallet(ctx context.Context, wallet common.Address) error {
	if wallet == domain.ZeroAddress {
		s.metrics.IncRejection("invalid_team_wallet")
		return dErrors.New(dErrors.CodeInvalidInput, "team wallet must not be the zero address")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, err := s.store.Load(ctx)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "load sale ledger", err)
	}

	next := ledger.Clone()
	next.TeamWallet = wallet
	if err := s.store.Save(ctx, next); err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "commit sale ledger", err)
	}

	s.emit(ctx, audit.Event{
		Action:    audit.ActionTeamWalletChanged,
		Buyer:     wallet.Hex(),
		ActorID:   requestcontext.ActorID(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
	s.logger.InfoContext(ctx, "team wallet changed",
		"wallet", wallet.Hex(),
		"actor", requestcontext.ActorID(ctx),
	)
	return nil
}
