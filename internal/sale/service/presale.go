package service

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"crowdgate/pkg/domain"
	dErrors "crowdgate/pkg/domain-errors"
	audit "crowdgate/pkg/platform/audit"
	"crowdgate/pkg/requestcontext"
)

// DistributePresale mints presale allocations directly to investors after the
// main sale has ended. The allocations do not draw on the main sale's
// remaining tokens; they are bounded only by the token cap minus the supply
// already minted and the reserved team share.
func (s *Service) DistributePresale(ctx context.Context, investors []common.Address, amounts []*big.Int, now time.Time) error {
	if len(investors) != len(amounts) {
		s.metrics.IncRejection("presale_shape")
		return dErrors.New(dErrors.CodeInvalidInput, "investors and amounts must be of equal length")
	}

	total := big.NewInt(0)
	for i, amount := range amounts {
		if investors[i] == domain.ZeroAddress {
			s.metrics.IncRejection("presale_zero_address")
			return dErrors.New(dErrors.CodeInvalidInput, "presale investor must not be the zero address")
		}
		if amount == nil || amount.Sign() <= 0 {
			s.metrics.IncRejection("presale_amount")
			return dErrors.New(dErrors.CodeInvalidInput, "presale amount must be positive")
		}
		total.Add(total, amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ledger, err := s.store.Load(ctx)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "load sale ledger", err)
	}
	if !s.ended(now, ledger) {
		s.metrics.IncRejection("presale_not_ended")
		return dErrors.New(dErrors.CodeConflict, "main sale has not ended")
	}
	if ledger.Finalized {
		s.metrics.IncRejection("finalized")
		return dErrors.New(dErrors.CodeConflict, "sale is finalized")
	}

	// An empty batch is a valid no-op: nothing to mint, nothing to record.
	if len(investors) == 0 {
		return nil
	}

	// The team share stays reserved until finalize, so the presale headroom
	// is the cap minus minted supply minus that reservation.
	headroom := new(big.Int).Sub(s.token.Cap(), s.token.TotalSupply())
	headroom.Sub(headroom, s.cfg.TeamShare)
	if total.Cmp(headroom) > 0 {
		s.metrics.IncRejection("presale_cap")
		return dErrors.New(dErrors.CodeInvalidInput, "presale total exceeds cap headroom")
	}

	for i, investor := range investors {
		if err := s.token.Mint(s.cfg.SaleAddress, investor, amounts[i]); err != nil {
			s.logger.ErrorContext(ctx, "presale mint failed",
				"investor", investor.Hex(),
				"amount", domain.AmountString(amounts[i]),
				"error", err,
			)
			return dErrors.Wrap(dErrors.CodeInternal, "mint presale allocation", err)
		}
	}

	s.emit(ctx, audit.Event{
		Action:    audit.ActionPresaleDistributed,
		Tokens:    domain.AmountString(total),
		ActorID:   requestcontext.ActorID(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
	s.metrics.AddPresaleMints(len(investors))

	s.logger.InfoContext(ctx, "presale distributed",
		"investors", len(investors),
		"tokens", domain.AmountString(total),
		"actor", requestcontext.ActorID(ctx),
	)
	return nil
}
