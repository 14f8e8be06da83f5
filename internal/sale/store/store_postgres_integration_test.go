//go:build integration

package store_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"crowdgate/internal/sale/models"
	"crowdgate/internal/sale/store"
	"crowdgate/pkg/platform/sentinel"
	"crowdgate/pkg/testutil/containers"
)

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()
	pg := containers.NewPostgresContainer(t)

	st := store.NewPostgresStore(pg.Pool)
	require.NoError(t, st.EnsureSchema(ctx))

	ledger := &models.Ledger{
		Price:           big.NewInt(1000),
		TeamWallet:      common.HexToAddress("0x00000000000000000000000000000000000000bb"),
		RemainingTokens: big.NewInt(1_000_000_000),
		WeiRaised:       big.NewInt(0),
		Finalized:       false,
	}

	t.Run("load before init is not found", func(t *testing.T) {
		_, err := st.Load(ctx)
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("init then load round-trips", func(t *testing.T) {
		require.NoError(t, st.Init(ctx, ledger))

		got, err := st.Load(ctx)
		require.NoError(t, err)
		require.Zero(t, got.Price.Cmp(ledger.Price))
		require.Equal(t, ledger.TeamWallet, got.TeamWallet)
		require.Zero(t, got.RemainingTokens.Cmp(ledger.RemainingTokens))
		require.Zero(t, got.WeiRaised.Sign())
		require.False(t, got.Finalized)
	})

	t.Run("second init conflicts", func(t *testing.T) {
		require.ErrorIs(t, st.Init(ctx, ledger), sentinel.ErrConflict)
	})

	t.Run("save persists mutations", func(t *testing.T) {
		next := ledger.Clone()
		next.RemainingTokens = big.NewInt(999_995_000)
		next.WeiRaised = big.NewInt(5)
		next.Finalized = true
		require.NoError(t, st.Save(ctx, next))

		got, err := st.Load(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(999_995_000), got.RemainingTokens.Int64())
		require.Equal(t, int64(5), got.WeiRaised.Int64())
		require.True(t, got.Finalized)
	})

	t.Run("purchases append and list in order", func(t *testing.T) {
		first := models.PurchaseReceipt{
			ID:       uuid.New(),
			Sender:   common.HexToAddress("0x00000000000000000000000000000000000000dd"),
			Buyer:    common.HexToAddress("0x00000000000000000000000000000000000000cc"),
			Value:    big.NewInt(5),
			Tokens:   big.NewInt(5000),
			Refund:   big.NewInt(0),
			BoughtAt: time.Now().UTC().Truncate(time.Microsecond),
		}
		second := first
		second.ID = uuid.New()
		second.Refund = big.NewInt(2)

		require.NoError(t, st.AppendPurchase(ctx, first))
		require.NoError(t, st.AppendPurchase(ctx, second))

		got, err := st.ListPurchases(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, first.ID, got[0].ID)
		require.Equal(t, second.ID, got[1].ID)
		require.Equal(t, int64(2), got[1].Refund.Int64())

		// Very large amounts survive the NUMERIC round-trip.
		huge := first
		huge.ID = uuid.New()
		huge.Tokens, _ = new(big.Int).SetString("123456789012345678901234567890123456789", 10)
		require.NoError(t, st.AppendPurchase(ctx, huge))

		got, err = st.ListPurchases(ctx)
		require.NoError(t, err)
		require.Zero(t, got[2].Tokens.Cmp(huge.Tokens))
	})
}
