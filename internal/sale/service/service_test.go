package service_test

import (
	"context"
	"crypto/ecdsa"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/suite"

	"crowdgate/internal/funds"
	"crowdgate/internal/kyc"
	"crowdgate/internal/sale/models"
	"crowdgate/internal/sale/service"
	"crowdgate/internal/sale/store"
	"crowdgate/internal/token"
	"crowdgate/pkg/domain"
	dErrors "crowdgate/pkg/domain-errors"
	audit "crowdgate/pkg/platform/audit"
	auditmem "crowdgate/pkg/platform/audit/store/memory"
	"crowdgate/pkg/platform/audit/publisher"
)

type ServiceSuite struct {
	suite.Suite

	key    *ecdsa.PrivateKey
	signer common.Address

	saleAddr common.Address
	wallet   common.Address
	team     common.Address
	buyer    common.Address
	sender   common.Address

	start time.Time
	end   time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupSuite() {
	key, err := crypto.GenerateKey()
	s.Require().NoError(err)
	s.key = key
	s.signer = crypto.PubkeyToAddress(key.PublicKey)

	s.saleAddr = common.HexToAddress("0x5a1e5a1e5a1e5a1e5a1e5a1e5a1e5a1e5a1e5a1e")
	s.wallet = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	s.team = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	s.buyer = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	s.sender = common.HexToAddress("0x00000000000000000000000000000000000000dd")

	s.start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.end = s.start.Add(time.Hour)
}

type saleFixture struct {
	svc    *service.Service
	store  *store.InMemoryStore
	token  *token.Ledger
	funds  *funds.MemoryForwarder
	events *auditmem.Store
	cfg    models.Config
}

// newSale builds a ready sale with an in-memory stack. mutate may adjust the
// config before construction; nil keeps the defaults.
func (s *ServiceSuite) newSale(mutate func(*models.Config)) *saleFixture {
	cfg := models.Config{
		SaleAddress: s.saleAddr,
		Price:       big.NewInt(1000),
		StartTime:   s.start,
		EndTime:     s.end,
		Wallet:      s.wallet,
		TotalTokens: big.NewInt(1_000_000_000),
		TeamShare:   big.NewInt(500_000),
		Signers:     []common.Address{s.signer},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	tok, err := token.NewLedger(big.NewInt(2_000_000_000), cfg.SaleAddress)
	s.Require().NoError(err)

	st := store.NewInMemoryStore()
	fwd := funds.NewMemoryForwarder()
	events := auditmem.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := service.New(cfg, st, tok, fwd, publisher.New(events), nil, logger)
	s.Require().NoError(err)

	return &saleFixture{svc: svc, store: st, token: tok, funds: fwd, events: events, cfg: cfg}
}

// authFor signs a valid purchase authorization for buyer with the registered
// signer key.
func (s *ServiceSuite) authFor(buyer common.Address, buyerID domain.BuyerID, maxAmount *big.Int) models.Authorization {
	hash, ok := kyc.AuthorizationHash(s.saleAddr, buyer, buyerID, maxAmount)
	s.Require().True(ok)

	raw, err := crypto.Sign(hash[:], s.key)
	s.Require().NoError(err)

	auth := models.Authorization{
		BuyerID:   buyerID,
		MaxAmount: maxAmount,
		V:         raw[64] + 27,
	}
	copy(auth.R[:], raw[0:32])
	copy(auth.S[:], raw[32:64])
	return auth
}

func (s *ServiceSuite) buyReq(value int64) models.PurchaseRequest {
	return models.PurchaseRequest{
		Sender:        s.sender,
		Buyer:         s.buyer,
		Value:         big.NewInt(value),
		Authorization: s.authFor(s.buyer, 7, big.NewInt(1_000_000_000_000)),
	}
}

func (s *ServiceSuite) during() time.Time { return s.start.Add(time.Minute) }
func (s *ServiceSuite) after() time.Time  { return s.end.Add(time.Minute) }

func (s *ServiceSuite) TestNewValidation() {
	base := func() models.Config {
		return models.Config{
			SaleAddress: s.saleAddr,
			Price:       big.NewInt(1000),
			StartTime:   s.start,
			EndTime:     s.end,
			Wallet:      s.wallet,
			TotalTokens: big.NewInt(1_000_000_000),
			TeamShare:   big.NewInt(500_000),
			Signers:     []common.Address{s.signer},
		}
	}
	build := func(cfg models.Config) error {
		tok, err := token.NewLedger(big.NewInt(2_000_000_000), cfg.SaleAddress)
		s.Require().NoError(err)
		_, err = service.New(cfg, store.NewInMemoryStore(), tok, funds.NewMemoryForwarder(), nil, nil, nil)
		return err
	}

	s.Run("zero price is rejected", func() {
		cfg := base()
		cfg.Price = big.NewInt(0)
		s.True(dErrors.HasCode(build(cfg), dErrors.CodeInvalidInput))
	})

	s.Run("start at or after end is rejected", func() {
		cfg := base()
		cfg.StartTime = cfg.EndTime
		s.True(dErrors.HasCode(build(cfg), dErrors.CodeInvalidInput))
	})

	s.Run("zero funds wallet is rejected", func() {
		cfg := base()
		cfg.Wallet = common.Address{}
		s.True(dErrors.HasCode(build(cfg), dErrors.CodeInvalidInput))
	})

	s.Run("empty signer set is rejected", func() {
		cfg := base()
		cfg.Signers = nil
		s.Error(build(cfg))
	})

	s.Run("allocation above the token cap is rejected", func() {
		cfg := base()
		cfg.TotalTokens = big.NewInt(1_999_999_999)
		cfg.TeamShare = big.NewInt(2)
		s.True(dErrors.HasCode(build(cfg), dErrors.CodeInvalidInput))
	})

	s.Run("resumes from an existing ledger", func() {
		cfg := base()
		st := store.NewInMemoryStore()
		tok, err := token.NewLedger(big.NewInt(2_000_000_000), cfg.SaleAddress)
		s.Require().NoError(err)

		first, err := service.New(cfg, st, tok, funds.NewMemoryForwarder(), nil, nil, nil)
		s.Require().NoError(err)
		s.Require().NoError(first.SetPrice(context.Background(), big.NewInt(42)))

		second, err := service.New(cfg, st, tok, funds.NewMemoryForwarder(), nil, nil, nil)
		s.Require().NoError(err)
		status, err := second.Status(context.Background(), s.during())
		s.Require().NoError(err)
		s.Equal(int64(42), status.Price.Int64())
	})
}

func (s *ServiceSuite) TestBuyTokens() {
	ctx := context.Background()

	s.Run("before start is rejected", func() {
		f := s.newSale(nil)
		_, err := f.svc.BuyTokens(ctx, s.buyReq(100), s.start.Add(-time.Second))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("after end is rejected", func() {
		f := s.newSale(nil)
		_, err := f.svc.BuyTokens(ctx, s.buyReq(100), s.after())
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("tampered authorization is rejected", func() {
		f := s.newSale(nil)
		req := s.buyReq(100)
		req.Authorization.BuyerID++
		_, err := f.svc.BuyTokens(ctx, req, s.during())
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("authorization from an unregistered signer is rejected", func() {
		f := s.newSale(nil)
		stranger, err := crypto.GenerateKey()
		s.Require().NoError(err)

		maxAmount := big.NewInt(1_000_000)
		hash, ok := kyc.AuthorizationHash(s.saleAddr, s.buyer, 7, maxAmount)
		s.Require().True(ok)
		raw, err := crypto.Sign(hash[:], stranger)
		s.Require().NoError(err)

		req := s.buyReq(100)
		req.Authorization.MaxAmount = maxAmount
		req.Authorization.V = raw[64] + 27
		copy(req.Authorization.R[:], raw[0:32])
		copy(req.Authorization.S[:], raw[32:64])

		_, err = f.svc.BuyTokens(ctx, req, s.during())
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("zero value is rejected", func() {
		f := s.newSale(nil)
		_, err := f.svc.BuyTokens(ctx, s.buyReq(0), s.during())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("full fill mints value times price", func() {
		f := s.newSale(nil)
		receipt, err := f.svc.BuyTokens(ctx, s.buyReq(5000), s.during())
		s.Require().NoError(err)

		s.Equal(int64(5_000_000), receipt.Tokens.Int64())
		s.Equal(int64(5000), receipt.Value.Int64())
		s.Zero(receipt.Refund.Sign())
		s.Equal(int64(5_000_000), f.token.BalanceOf(s.buyer).Int64())
		s.Equal(int64(5000), f.funds.Forwarded(s.wallet).Int64())
		s.Zero(f.funds.Refunded(s.sender).Sign())

		status, err := f.svc.Status(ctx, s.during())
		s.Require().NoError(err)
		s.Equal(int64(1_000_000_000-5_000_000), status.RemainingTokens.Int64())
		s.Equal(int64(5000), status.WeiRaised.Int64())

		purchases, err := f.store.ListPurchases(ctx)
		s.Require().NoError(err)
		s.Require().Len(purchases, 1)
		s.Equal(receipt.ID, purchases[0].ID)

		s.Len(f.events.ByAction(audit.ActionTokenPurchased), 1)
		s.Empty(f.events.ByAction(audit.ActionBuyerRefunded))
	})

	s.Run("oversubscription is partially filled and refunded", func() {
		f := s.newSale(nil)

		// Value covering the whole allocation plus 100 wei too much.
		receipt, err := f.svc.BuyTokens(ctx, s.buyReq(1_000_100), s.during())
		s.Require().NoError(err)

		s.Equal(int64(1_000_000_000), receipt.Tokens.Int64())
		s.Equal(int64(1_000_000), receipt.Value.Int64())
		s.Equal(int64(100), receipt.Refund.Int64())
		s.Equal(int64(100), f.funds.Refunded(s.sender).Int64())
		s.Equal(int64(1_000_000), f.funds.Forwarded(s.wallet).Int64())

		refunds := f.events.ByAction(audit.ActionBuyerRefunded)
		s.Require().Len(refunds, 1)
		s.Equal("100", refunds[0].Value)

		// Exhaustion ends the sale even inside the time window.
		ended, err := f.svc.Ended(ctx, s.during())
		s.Require().NoError(err)
		s.True(ended)

		_, err = f.svc.BuyTokens(ctx, s.buyReq(1), s.during())
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("partial fill truncates the accepted value", func() {
		f := s.newSale(func(cfg *models.Config) {
			cfg.Price = big.NewInt(7)
			cfg.TotalTokens = big.NewInt(100)
		})

		// 20 wei requests 140 tokens against 100 remaining: fill 100,
		// accept floor(100/7) = 14 wei, refund 6.
		receipt, err := f.svc.BuyTokens(ctx, s.buyReq(20), s.during())
		s.Require().NoError(err)
		s.Equal(int64(100), receipt.Tokens.Int64())
		s.Equal(int64(14), receipt.Value.Int64())
		s.Equal(int64(6), receipt.Refund.Int64())

		status, err := f.svc.Status(ctx, s.during())
		s.Require().NoError(err)
		s.Zero(status.RemainingTokens.Sign())
		s.Equal(int64(14), status.WeiRaised.Int64())
	})

	s.Run("successive buys accumulate", func() {
		f := s.newSale(nil)
		for _, v := range []int64{100, 200, 300} {
			_, err := f.svc.BuyTokens(ctx, s.buyReq(v), s.during())
			s.Require().NoError(err)
		}
		status, err := f.svc.Status(ctx, s.during())
		s.Require().NoError(err)
		s.Equal(int64(600), status.WeiRaised.Int64())
		s.Equal(int64(600_000), f.token.BalanceOf(s.buyer).Int64())
		s.Equal(int64(600), f.funds.Forwarded(s.wallet).Int64())
	})

	s.Run("published price drives the fill", func() {
		f := s.newSale(func(cfg *models.Config) {
			cfg.Price = big.NewInt(12_000)
		})
		receipt, err := f.svc.BuyTokens(ctx, s.buyReq(2000), s.during())
		s.Require().NoError(err)
		s.Equal(int64(24_000_000), receipt.Tokens.Int64())
	})
}

func (s *ServiceSuite) TestSetPrice() {
	ctx := context.Background()

	s.Run("rejects a non-positive price", func() {
		f := s.newSale(nil)
		s.True(dErrors.HasCode(f.svc.SetPrice(ctx, big.NewInt(0)), dErrors.CodeInvalidInput))
		s.True(dErrors.HasCode(f.svc.SetPrice(ctx, big.NewInt(-5)), dErrors.CodeInvalidInput))
		s.True(dErrors.HasCode(f.svc.SetPrice(ctx, nil), dErrors.CodeInvalidInput))
	})

	s.Run("applies to subsequent purchases", func() {
		f := s.newSale(nil)
		s.Require().NoError(f.svc.SetPrice(ctx, big.NewInt(2)))

		receipt, err := f.svc.BuyTokens(ctx, s.buyReq(50), s.during())
		s.Require().NoError(err)
		s.Equal(int64(100), receipt.Tokens.Int64())

		changes := f.events.ByAction(audit.ActionPriceChanged)
		s.Require().Len(changes, 1)
		s.Equal("2", changes[0].Value)
	})
}

func (s *ServiceSuite) TestSetTeamWallet() {
	ctx := context.Background()

	s.Run("rejects the zero address", func() {
		f := s.newSale(nil)
		err := f.svc.SetTeamWallet(ctx, common.Address{})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("updates the ledger and emits an event", func() {
		f := s.newSale(nil)
		s.Require().NoError(f.svc.SetTeamWallet(ctx, s.team))

		status, err := f.svc.Status(ctx, s.during())
		s.Require().NoError(err)
		s.Equal(s.team, status.TeamWallet)
		s.Len(f.events.ByAction(audit.ActionTeamWalletChanged), 1)
	})

	s.Run("allowed after finalize", func() {
		f := s.newSale(nil)
		s.Require().NoError(f.svc.SetTeamWallet(ctx, s.team))
		s.Require().NoError(f.svc.Finalize(ctx, s.after()))

		other := common.HexToAddress("0x00000000000000000000000000000000000000ee")
		s.Require().NoError(f.svc.SetTeamWallet(ctx, other))

		status, err := f.svc.Status(ctx, s.after())
		s.Require().NoError(err)
		s.Equal(other, status.TeamWallet)
		s.Equal(int64(500_000), f.token.BalanceOf(s.team).Int64())
	})
}

func (s *ServiceSuite) TestDistributePresale() {
	ctx := context.Background()
	investors := []common.Address{
		common.HexToAddress("0x0000000000000000000000000000000000000011"),
		common.HexToAddress("0x0000000000000000000000000000000000000022"),
		common.HexToAddress("0x0000000000000000000000000000000000000033"),
	}
	amounts := []*big.Int{big.NewInt(10), big.NewInt(100), big.NewInt(1000)}

	s.Run("rejected while the sale is open", func() {
		f := s.newSale(nil)
		err := f.svc.DistributePresale(ctx, investors, amounts, s.during())
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("rejected before the sale starts", func() {
		f := s.newSale(nil)
		err := f.svc.DistributePresale(ctx, investors, amounts, s.start.Add(-time.Second))
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("rejects mismatched lengths", func() {
		f := s.newSale(nil)
		err := f.svc.DistributePresale(ctx, investors, amounts[:2], s.after())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("accepts an empty batch as a no-op", func() {
		f := s.newSale(nil)
		s.Require().NoError(f.svc.DistributePresale(ctx, nil, nil, s.after()))
		s.Empty(f.events.ByAction(audit.ActionPresaleDistributed))
		s.Equal(int64(0), f.token.TotalSupply().Int64())
	})

	s.Run("empty batch still requires the sale to have ended", func() {
		f := s.newSale(nil)
		err := f.svc.DistributePresale(ctx, nil, nil, s.during())
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("rejects a non-positive amount", func() {
		f := s.newSale(nil)
		bad := []*big.Int{big.NewInt(10), big.NewInt(0), big.NewInt(1000)}
		err := f.svc.DistributePresale(ctx, investors, bad, s.after())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects a zero investor address", func() {
		f := s.newSale(nil)
		bad := []common.Address{investors[0], {}, investors[2]}
		err := f.svc.DistributePresale(ctx, bad, amounts, s.after())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects totals above the cap headroom", func() {
		f := s.newSale(nil)
		// Cap 2e9 minus team share 5e5, with nothing minted yet.
		over := []*big.Int{big.NewInt(2_000_000_000)}
		err := f.svc.DistributePresale(ctx, []common.Address{investors[0]}, over, s.after())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("mints allocations without touching the main sale ledger", func() {
		f := s.newSale(nil)
		before, err := f.svc.Status(ctx, s.after())
		s.Require().NoError(err)

		s.Require().NoError(f.svc.DistributePresale(ctx, investors, amounts, s.after()))

		for i, inv := range investors {
			s.Equal(amounts[i].Int64(), f.token.BalanceOf(inv).Int64())
		}
		after, err := f.svc.Status(ctx, s.after())
		s.Require().NoError(err)
		s.Equal(before.RemainingTokens, after.RemainingTokens)
		s.Equal(before.WeiRaised, after.WeiRaised)

		dists := f.events.ByAction(audit.ActionPresaleDistributed)
		s.Require().Len(dists, 1)
		s.Equal("1110", dists[0].Tokens)
	})

	s.Run("rejected once finalized", func() {
		f := s.newSale(nil)
		s.Require().NoError(f.svc.SetTeamWallet(ctx, s.team))
		s.Require().NoError(f.svc.Finalize(ctx, s.after()))

		err := f.svc.DistributePresale(ctx, investors, amounts, s.after())
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestFinalize() {
	ctx := context.Background()

	s.Run("rejected while the sale is open", func() {
		f := s.newSale(nil)
		s.Require().NoError(f.svc.SetTeamWallet(ctx, s.team))
		err := f.svc.Finalize(ctx, s.during())
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("rejected without a team wallet", func() {
		f := s.newSale(nil)
		err := f.svc.Finalize(ctx, s.after())
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("mints the team share and unpauses the token", func() {
		f := s.newSale(nil)
		s.Require().NoError(f.svc.SetTeamWallet(ctx, s.team))
		s.Require().True(f.token.Paused())

		s.Require().NoError(f.svc.Finalize(ctx, s.after()))

		s.Equal(int64(500_000), f.token.BalanceOf(s.team).Int64())
		s.False(f.token.Paused())

		status, err := f.svc.Status(ctx, s.after())
		s.Require().NoError(err)
		s.True(status.Finalized)
		s.Len(f.events.ByAction(audit.ActionFinalized), 1)

		// Holders can transfer once finalized.
		target := common.HexToAddress("0x0000000000000000000000000000000000000044")
		s.Require().NoError(f.token.Transfer(s.team, target, big.NewInt(1)))
		s.Equal(int64(1), f.token.BalanceOf(target).Int64())
	})

	s.Run("second finalize is rejected", func() {
		f := s.newSale(nil)
		s.Require().NoError(f.svc.SetTeamWallet(ctx, s.team))
		s.Require().NoError(f.svc.Finalize(ctx, s.after()))

		err := f.svc.Finalize(ctx, s.after())
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("allowed after early exhaustion inside the window", func() {
		f := s.newSale(func(cfg *models.Config) {
			cfg.TotalTokens = big.NewInt(1000)
		})
		s.Require().NoError(f.svc.SetTeamWallet(ctx, s.team))

		_, err := f.svc.BuyTokens(ctx, s.buyReq(10), s.during())
		s.Require().NoError(err)

		s.Require().NoError(f.svc.Finalize(ctx, s.during()))
	})
}

func (s *ServiceSuite) TestStatus() {
	ctx := context.Background()
	f := s.newSale(nil)

	s.Run("before start", func() {
		status, err := f.svc.Status(ctx, s.start.Add(-time.Second))
		s.Require().NoError(err)
		s.False(status.Started)
		s.False(status.Ended)
		s.False(status.Finalized)
		s.Equal(int64(1_000_000_000), status.TotalTokens.Int64())
	})

	s.Run("during the window", func() {
		status, err := f.svc.Status(ctx, s.during())
		s.Require().NoError(err)
		s.True(status.Started)
		s.False(status.Ended)
	})

	s.Run("after the window", func() {
		status, err := f.svc.Status(ctx, s.after())
		s.Require().NoError(err)
		s.True(status.Started)
		s.True(status.Ended)
	})
}

func (s *ServiceSuite) TestIsKycSigner() {
	f := s.newSale(nil)
	s.True(f.svc.IsKycSigner(s.signer))
	s.False(f.svc.IsKycSigner(s.buyer))
}
