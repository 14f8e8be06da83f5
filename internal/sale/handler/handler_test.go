package handler_test

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"crowdgate/internal/funds"
	"crowdgate/internal/jwtauth"
	"crowdgate/internal/kyc"
	"crowdgate/internal/operator"
	"crowdgate/internal/platform/middleware"
	"crowdgate/internal/sale/handler"
	"crowdgate/internal/sale/models"
	"crowdgate/internal/sale/service"
	"crowdgate/internal/sale/store"
	"crowdgate/internal/token"
	"crowdgate/pkg/platform/secrets"
)

type HandlerSuite struct {
	suite.Suite

	key      *ecdsa.PrivateKey
	signer   common.Address
	saleAddr common.Address
	buyer    common.Address

	start time.Time
	end   time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupSuite() {
	key, err := crypto.GenerateKey()
	s.Require().NoError(err)
	s.key = key
	s.signer = crypto.PubkeyToAddress(key.PublicKey)

	s.saleAddr = common.HexToAddress("0x5a1e5a1e5a1e5a1e5a1e5a1e5a1e5a1e5a1e5a1e")
	s.buyer = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	s.start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.end = s.start.Add(time.Hour)
}

type apiFixture struct {
	router *chi.Mux
	token  *token.Ledger
	clock  *time.Time
}

// newAPI stands up the full handler stack against in-memory collaborators.
// The returned clock pointer moves the sale through its lifecycle.
func (s *HandlerSuite) newAPI() *apiFixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := models.Config{
		SaleAddress: s.saleAddr,
		Price:       big.NewInt(1000),
		StartTime:   s.start,
		EndTime:     s.end,
		Wallet:      common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		TotalTokens: big.NewInt(1_000_000_000),
		TeamShare:   big.NewInt(500_000),
		Signers:     []common.Address{s.signer},
	}

	tok, err := token.NewLedger(big.NewInt(2_000_000_000), cfg.SaleAddress)
	s.Require().NoError(err)

	svc, err := service.New(cfg, store.NewInMemoryStore(), tok, funds.NewMemoryForwarder(), nil, nil, logger)
	s.Require().NoError(err)

	hash, err := secrets.Hash("hunter2")
	s.Require().NoError(err)
	jwtSvc := jwtauth.NewService("test-signing-key", "crowdgate", "crowdgate")
	operators, err := operator.New(
		[]operator.Credential{{Username: "operator-1", PasswordHash: hash}},
		jwtSvc, time.Hour, logger,
	)
	s.Require().NoError(err)

	clock := s.start.Add(time.Minute)
	h := handler.New(svc, operators, logger, func() time.Time { return clock })

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	h.Register(r)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireOwner(jwtSvc, logger))
		h.RegisterOwner(r)
	})

	return &apiFixture{router: r, token: tok, clock: &clock}
}

func (s *HandlerSuite) buyBody(value string) []byte {
	maxAmount := big.NewInt(1_000_000_000_000)
	hash, ok := kyc.AuthorizationHash(s.saleAddr, s.buyer, 7, maxAmount)
	s.Require().True(ok)
	raw, err := crypto.Sign(hash[:], s.key)
	s.Require().NoError(err)

	body, err := json.Marshal(handler.BuyRequest{
		Sender: s.buyer.Hex(),
		Buyer:  s.buyer.Hex(),
		Value:  value,
		Authorization: handler.AuthorizationPayload{
			BuyerID:   7,
			MaxAmount: maxAmount.String(),
			V:         raw[64] + 27,
			R:         hexutil.Encode(raw[0:32]),
			S:         hexutil.Encode(raw[32:64]),
		},
	})
	s.Require().NoError(err)
	return body
}

func (s *HandlerSuite) post(router *chi.Mux, path string, body []byte, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) login(f *apiFixture) string {
	body, err := json.Marshal(handler.LoginRequest{Username: "operator-1", Password: "hunter2"})
	s.Require().NoError(err)
	rec := s.post(f.router, "/sale/admin/login", body, "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp handler.LoginResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	return resp.AccessToken
}

func (s *HandlerSuite) TestBuy() {
	s.Run("accepts a signed purchase", func() {
		f := s.newAPI()
		rec := s.post(f.router, "/sale/buy", s.buyBody("5000"), "")
		s.Require().Equal(http.StatusOK, rec.Code)

		var resp handler.BuyResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal("5000000", resp.Tokens)
		s.Equal("0", resp.Refund)
		s.Equal(int64(5_000_000), f.token.BalanceOf(s.buyer).Int64())
	})

	s.Run("rejects malformed JSON", func() {
		f := s.newAPI()
		rec := s.post(f.router, "/sale/buy", []byte("{nope"), "")
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("rejects an invalid buyer address", func() {
		f := s.newAPI()
		body := s.buyBody("5000")
		var req handler.BuyRequest
		s.Require().NoError(json.Unmarshal(body, &req))
		req.Buyer = "not-an-address"
		raw, err := json.Marshal(req)
		s.Require().NoError(err)

		rec := s.post(f.router, "/sale/buy", raw, "")
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("rejects a tampered signature", func() {
		f := s.newAPI()
		body := s.buyBody("5000")
		var req handler.BuyRequest
		s.Require().NoError(json.Unmarshal(body, &req))
		req.Authorization.BuyerID = 8
		raw, err := json.Marshal(req)
		s.Require().NoError(err)

		rec := s.post(f.router, "/sale/buy", raw, "")
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("rejects once the window closes", func() {
		f := s.newAPI()
		*f.clock = s.end.Add(time.Minute)
		rec := s.post(f.router, "/sale/buy", s.buyBody("5000"), "")
		s.Equal(http.StatusConflict, rec.Code)
	})
}

func (s *HandlerSuite) TestStatus() {
	f := s.newAPI()
	req := httptest.NewRequest(http.MethodGet, "/sale/status", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp handler.StatusResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.True(resp.Started)
	s.False(resp.Ended)
	s.Equal("1000", resp.Price)
	s.Equal("1000000000", resp.RemainingTokens)
}

func (s *HandlerSuite) TestSigner() {
	f := s.newAPI()

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/sale/signers/%s", s.signer.Hex()), nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp handler.SignerResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.True(resp.IsSigner)

	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/sale/signers/%s", s.buyer.Hex()), nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.False(resp.IsSigner)
}

func (s *HandlerSuite) TestOwnerEndpoints() {
	s.Run("owner endpoints demand a token", func() {
		f := s.newAPI()
		body, _ := json.Marshal(handler.SetPriceRequest{Price: "2000"})
		rec := s.post(f.router, "/sale/admin/price", body, "")
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("set price with an owner token", func() {
		f := s.newAPI()
		ownerToken := s.login(f)

		body, _ := json.Marshal(handler.SetPriceRequest{Price: "2000"})
		rec := s.post(f.router, "/sale/admin/price", body, ownerToken)
		s.Require().Equal(http.StatusOK, rec.Code)

		req := httptest.NewRequest(http.MethodGet, "/sale/status", nil)
		getRec := httptest.NewRecorder()
		f.router.ServeHTTP(getRec, req)
		var status handler.StatusResponse
		s.Require().NoError(json.NewDecoder(getRec.Body).Decode(&status))
		s.Equal("2000", status.Price)
	})

	s.Run("zero price is rejected", func() {
		f := s.newAPI()
		ownerToken := s.login(f)
		body, _ := json.Marshal(handler.SetPriceRequest{Price: "0"})
		rec := s.post(f.router, "/sale/admin/price", body, ownerToken)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("full close out over HTTP", func() {
		f := s.newAPI()
		ownerToken := s.login(f)

		teamWallet := common.HexToAddress("0x00000000000000000000000000000000000000bb")
		body, _ := json.Marshal(handler.SetTeamWalletRequest{Wallet: teamWallet.Hex()})
		rec := s.post(f.router, "/sale/admin/team-wallet", body, ownerToken)
		s.Require().Equal(http.StatusOK, rec.Code)

		*f.clock = s.end.Add(time.Minute)

		investor := common.HexToAddress("0x0000000000000000000000000000000000000011")
		presale, _ := json.Marshal(handler.PresaleRequest{
			Investors: []string{investor.Hex()},
			Amounts:   []string{"12345"},
		})
		rec = s.post(f.router, "/sale/presale", presale, ownerToken)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Equal(int64(12345), f.token.BalanceOf(investor).Int64())

		rec = s.post(f.router, "/sale/finalize", nil, ownerToken)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Equal(int64(500_000), f.token.BalanceOf(teamWallet).Int64())
		s.False(f.token.Paused())

		// Finalize twice conflicts.
		rec = s.post(f.router, "/sale/finalize", nil, ownerToken)
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("presale before end conflicts", func() {
		f := s.newAPI()
		ownerToken := s.login(f)

		presale, _ := json.Marshal(handler.PresaleRequest{
			Investors: []string{s.buyer.Hex()},
			Amounts:   []string{"10"},
		})
		rec := s.post(f.router, "/sale/presale", presale, ownerToken)
		s.Equal(http.StatusConflict, rec.Code)
	})
}
