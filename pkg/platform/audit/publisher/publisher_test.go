package publisher

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "crowdgate/pkg/platform/audit"
	memstore "crowdgate/pkg/platform/audit/store/memory"
)

func TestEmitStampsEvents(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	pub := New(store)

	err := pub.Emit(ctx, audit.Event{
		Action: audit.ActionTokenPurchased,
		Sender: "0x1111111111111111111111111111111111111111",
		Value:  "2000",
		Tokens: "24000000",
	})
	require.NoError(t, err)

	events, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	assert.NotEqual(t, uuid.Nil, got.ID)
	assert.False(t, got.Timestamp.IsZero())
	assert.Equal(t, audit.ActionTokenPurchased, got.Action)
	assert.Equal(t, audit.CategoryCompliance, got.Category())
}

func TestCategoryMapping(t *testing.T) {
	assert.Equal(t, audit.CategoryCompliance, audit.ActionBuyerRefunded.Category())
	assert.Equal(t, audit.CategoryCompliance, audit.ActionFinalized.Category())
	assert.Equal(t, audit.CategoryCompliance, audit.ActionPresaleDistributed.Category())
	assert.Equal(t, audit.CategoryOperations, audit.ActionPriceChanged.Category())
	assert.Equal(t, audit.CategoryOperations, audit.Action("unknown").Category())
}
