// Package handler wires the sale engine to its HTTP endpoints.
package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"crowdgate/internal/operator"
	"crowdgate/internal/sale/models"
	"crowdgate/pkg/domain"
	dErrors "crowdgate/pkg/domain-errors"
	"crowdgate/pkg/platform/httputil"
	"crowdgate/pkg/requestcontext"
)

// Service defines the sale operations the handler exposes.
type Service interface {
	BuyTokens(ctx context.Context, req models.PurchaseRequest, now time.Time) (*models.PurchaseReceipt, error)
	Status(ctx context.Context, now time.Time) (*models.Status, error)
	IsKycSigner(addr common.Address) bool
	SetPrice(ctx context.Context, newPrice *big.Int) error
	SetTeamWallet(ctx context.Context, wallet common.Address) error
	DistributePresale(ctx context.Context, investors []common.Address, amounts []*big.Int, now time.Time) error
	Finalize(ctx context.Context, now time.Time) error
}

// Handler wires sale endpoints to the sale service.
type Handler struct {
	service   Service
	operators *operator.Service
	logger    *slog.Logger
	now       func() time.Time
}

// New constructs a sale handler. now defaults to time.Now and exists so tests
// can pin the clock.
func New(service Service, operators *operator.Service, logger *slog.Logger, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{
		service:   service,
		operators: operators,
		logger:    logger,
		now:       now,
	}
}

// Register mounts the public sale endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/sale/buy", h.HandleBuy)
	r.Get("/sale/status", h.HandleStatus)
	r.Get("/sale/signers/{address}", h.HandleSigner)
	r.Post("/sale/admin/login", h.HandleLogin)
}

// RegisterOwner mounts the owner-only endpoints; the caller wraps the router
// with the owner-token gate.
func (h *Handler) RegisterOwner(r chi.Router) {
	r.Post("/sale/admin/price", h.HandleSetPrice)
	r.Post("/sale/admin/team-wallet", h.HandleSetTeamWallet)
	r.Post("/sale/presale", h.HandlePresale)
	r.Post("/sale/finalize", h.HandleFinalize)
}

// HandleBuy handles POST /sale/buy requests.
func (h *Handler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[BuyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	domainReq, err := req.ToDomain()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	receipt, err := h.service.BuyTokens(ctx, domainReq, h.now())
	if err != nil {
		h.logger.WarnContext(ctx, "purchase rejected",
			"request_id", requestID,
			"buyer", req.Buyer,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "purchase processed",
		"request_id", requestID,
		"buyer", req.Buyer,
		"tokens", domain.AmountString(receipt.Tokens),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromReceipt(receipt))
}

// HandleStatus handles GET /sale/status requests.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status(r.Context(), h.now())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromStatus(status))
}

// HandleSigner handles GET /sale/signers/{address} requests.
func (h *Handler) HandleSigner(w http.ResponseWriter, r *http.Request) {
	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid address"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SignerResponse{
		Address:  addr.Hex(),
		IsSigner: h.service.IsKycSigner(addr),
	})
}

// HandleLogin handles POST /sale/admin/login requests.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LoginRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.operators.Login(ctx, req.Username, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, LoginResponse{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(result.ExpiresIn.Seconds()),
	})
}

// HandleSetPrice handles POST /sale/admin/price requests.
func (h *Handler) HandleSetPrice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SetPriceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	price, err := req.ParsedPrice()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.SetPrice(ctx, price); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AcceptedResponse{Status: "ok"})
}

// HandleSetTeamWallet handles POST /sale/admin/team-wallet requests.
func (h *Handler) HandleSetTeamWallet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SetTeamWalletRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	wallet, err := domain.ParseAddress(req.Wallet)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid wallet address"))
		return
	}

	if err := h.service.SetTeamWallet(ctx, wallet); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AcceptedResponse{Status: "ok"})
}

// HandlePresale handles POST /sale/presale requests.
func (h *Handler) HandlePresale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[PresaleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	investors := make([]common.Address, 0, len(req.Investors))
	for _, raw := range req.Investors {
		addr, err := domain.ParseAddress(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid investor address"))
			return
		}
		investors = append(investors, addr)
	}
	amounts := make([]*big.Int, 0, len(req.Amounts))
	for _, raw := range req.Amounts {
		amount, err := domain.ParseAmount(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid presale amount"))
			return
		}
		amounts = append(amounts, amount)
	}

	if err := h.service.DistributePresale(ctx, investors, amounts, h.now()); err != nil {
		h.logger.WarnContext(ctx, "presale distribution rejected",
			"request_id", requestID,
			"actor", requestcontext.ActorID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AcceptedResponse{Status: "ok"})
}

// HandleFinalize handles POST /sale/finalize requests.
func (h *Handler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	if err := h.service.Finalize(ctx, h.now()); err != nil {
		h.logger.WarnContext(ctx, "finalize rejected",
			"request_id", requestID,
			"actor", requestcontext.ActorID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AcceptedResponse{Status: "ok"})
}
