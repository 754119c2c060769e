package board

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyeonsoft/orderpulse/internal/ledger"
	"github.com/hyeonsoft/orderpulse/internal/models"
)

// seedFold stores one single-line order and folds it into the accumulators.
func seedFold(t *testing.T, mem *ledger.Memory, shop, id, ts, item string, qty, price int64) models.Order {
	t.Helper()

	when, err := time.Parse(time.RFC3339, ts)
	require.NoError(t, err)

	order := models.Order{
		ID:        id,
		Items:     []models.OrderItem{{Name: item, Quantity: qty, Price: &price}},
		Timestamp: when,
	}
	order.TotalPrice = qty * price

	ctx := context.Background()
	require.NoError(t, mem.CreateOrder(ctx, shop, &order))

	applied, err := mem.FoldOrderStats(ctx, shop, order.ID, BuildDeltas(order, nil))
	require.NoError(t, err)
	require.True(t, applied)
	return order
}
