package service

import (
	"context"
	"time"

	"crowdgate/pkg/domain"
	dErrors "crowdgate/pkg/domain-errors"
	audit "crowdgate/pkg/platform/audit"
	"crowdgate/pkg/requestcontext"
)

// Finalize closes out an ended sale: it mints the team share to the team
// wallet, unpauses the token so holders can transfer, and marks the ledger
// finalized. It is one-way and can only succeed once.
func (s *Service) Finalize(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, err := s.store.Load(ctx)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "load sale ledger", err)
	}
	if ledger.Finalized {
		s.metrics.IncRejection("finalized")
		return dErrors.New(dErrors.CodeConflict, "sale already finalized")
	}
	if !s.ended(now, ledger) {
		s.metrics.IncRejection("finalize_not_ended")
		return dErrors.New(dErrors.CodeConflict, "main sale has not ended")
	}
	if ledger.TeamWallet == domain.ZeroAddress {
		s.metrics.IncRejection("finalize_no_team_wallet")
		return dErrors.New(dErrors.CodeInvalidInput, "team wallet is not set")
	}

	next := ledger.Clone()
	next.Finalized = true
	if err := s.store.Save(ctx, next); err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "commit sale ledger", err)
	}

	if s.cfg.TeamShare.Sign() > 0 {
		if err := s.token.Mint(s.cfg.SaleAddress, ledger.TeamWallet, s.cfg.TeamShare); err != nil {
			if restoreErr := s.store.Save(ctx, ledger); restoreErr != nil {
				s.logger.ErrorContext(ctx, "restore sale ledger after failed team mint",
					"error", restoreErr,
				)
			}
			return dErrors.Wrap(dErrors.CodeInternal, "mint team share", err)
		}
	}

	if err := s.token.Unpause(s.cfg.SaleAddress); err != nil {
		// The team share is minted and the ledger is finalized; a token that
		// cannot be unpaused needs operator intervention, not a rollback.
		s.logger.ErrorContext(ctx, "unpause token at finalization", "error", err)
		return dErrors.Wrap(dErrors.CodeInternal, "unpause token", err)
	}

	s.emit(ctx, audit.Event{
		Action:    audit.ActionFinalized,
		Buyer:     ledger.TeamWallet.Hex(),
		Tokens:    domain.AmountString(s.cfg.TeamShare),
		ActorID:   requestcontext.ActorID(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
	s.metrics.ObserveLedger(next.RemainingTokens, next.WeiRaised, true)

	s.logger.InfoContext(ctx, "sale finalized",
		"team_wallet", ledger.TeamWallet.Hex(),
		"team_share", domain.AmountString(s.cfg.TeamShare),
		"actor", requestcontext.ActorID(ctx),
	)
	return nil
}
