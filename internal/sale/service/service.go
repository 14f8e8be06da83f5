// Package service implements the sale engine: a time-windowed, KYC-gated,
// capped token sale with partial-fill refunds, a batch presale path, and a
// one-way finalization.
//
// The engine serializes every mutating operation behind a single lock and
// commits ledger state to the store before invoking the token or funds
// collaborators, so a collaborator can never observe or exploit stale sale
// state.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"crowdgate/internal/funds"
	"crowdgate/internal/kyc"
	"crowdgate/internal/sale/metrics"
	"crowdgate/internal/sale/models"
	"crowdgate/internal/sale/store"
	"crowdgate/internal/token"
	"crowdgate/pkg/domain"
	dErrors "crowdgate/pkg/domain-errors"
	audit "crowdgate/pkg/platform/audit"
	"crowdgate/pkg/platform/sentinel"
)

// Auditor receives the engine's structured events.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the sale engine. All mutating operations take the current time
// explicitly so lifecycle behavior is deterministic under test.
type Service struct {
	mu sync.Mutex

	cfg      models.Config
	store    store.Store
	token    token.Token
	funds    funds.Forwarder
	verifier *kyc.Verifier
	auditor  Auditor
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New validates the sale configuration, seeds the ledger on first run, and
// returns a ready engine.
func New(
	cfg models.Config,
	st store.Store,
	tok token.Token,
	fwd funds.Forwarder,
	auditor Auditor,
	m *metrics.Metrics,
	logger *slog.Logger,
) (*Service, error) {
	if st == nil || tok == nil || fwd == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "store, token, and funds forwarder are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SaleAddress == domain.ZeroAddress {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "sale address must not be the zero address")
	}
	if cfg.Price == nil || cfg.Price.Sign() <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "price must be positive")
	}
	if cfg.TotalTokens == nil || cfg.TotalTokens.Sign() <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "total sale tokens must be positive")
	}
	if cfg.TeamShare == nil || cfg.TeamShare.Sign() < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "team share must not be negative")
	}
	if !cfg.StartTime.Before(cfg.EndTime) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "sale start must precede sale end")
	}
	if cfg.Wallet == domain.ZeroAddress {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "funds wallet must not be the zero address")
	}

	verifier, err := kyc.NewVerifier(cfg.Signers)
	if err != nil {
		return nil, err
	}

	// The engine must never be able to request a mint beyond the cap.
	allocated := new(big.Int).Add(cfg.TotalTokens, cfg.TeamShare)
	if allocated.Cmp(tok.Cap()) > 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "total tokens plus team share exceed the token cap")
	}

	s := &Service{
		cfg:      cfg,
		store:    st,
		token:    tok,
		funds:    fwd,
		verifier: verifier,
		auditor:  auditor,
		metrics:  m,
		logger:   logger,
	}

	ledger, err := st.Load(context.Background())
	if errors.Is(err, sentinel.ErrNotFound) {
		ledger = models.NewLedger(cfg)
		if err := st.Init(context.Background(), ledger); err != nil {
			return nil, dErrors.Wrap(dErrors.CodeInternal, "seed sale ledger", err)
		}
	} else if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load sale ledger", err)
	}
	m.ObserveLedger(ledger.RemainingTokens, ledger.WeiRaised, ledger.Finalized)

	return s, nil
}

// Started reports whether the sale window has opened at now.
func (s *Service) Started(now time.Time) bool {
	return !now.Before(s.cfg.StartTime)
}

// Ended reports whether the sale is over at now: the window has closed or the
// allocation is exhausted.
func (s *Service) Ended(ctx context.Context, now time.Time) (bool, error) {
	ledger, err := s.store.Load(ctx)
	if err != nil {
		return false, dErrors.Wrap(dErrors.CodeInternal, "load sale ledger", err)
	}
	return s.ended(now, ledger), nil
}

func (s *Service) ended(now time.Time, ledger *models.Ledger) bool {
	return !now.Before(s.cfg.EndTime) || ledger.RemainingTokens.Sign() == 0
}

// IsKycSigner reports whether addr is a registered KYC signer.
func (s *Service) IsKycSigner(addr common.Address) bool {
	return s.verifier.IsSigner(addr)
}

// Status returns a read-model snapshot of the sale at now.
func (s *Service) Status(ctx context.Context, now time.Time) (*models.Status, error) {
	ledger, err := s.store.Load(ctx)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load sale ledger", err)
	}
	return &models.Status{
		Started:         s.Started(now),
		Ended:           s.ended(now, ledger),
		Finalized:       ledger.Finalized,
		Price:           ledger.Price,
		RemainingTokens: ledger.RemainingTokens,
		TotalTokens:     new(big.Int).Set(s.cfg.TotalTokens),
		TeamShare:       new(big.Int).Set(s.cfg.TeamShare),
		WeiRaised:       ledger.WeiRaised,
		StartTime:       s.cfg.StartTime,
		EndTime:         s.cfg.EndTime,
		Wallet:          s.cfg.Wallet,
		TeamWallet:      ledger.TeamWallet,
	}, nil
}

// emit forwards an event to the auditor when one is wired. Event loss never
// fails the operation that produced it.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "emit sale event failed",
			"action", event.Action,
			"error", err,
		)
	}
}
