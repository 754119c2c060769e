package board

import (
	"context"

	"github.com/hyeonsoft/orderpulse/internal/ledger"
)

// Reset clears every order for the shop and zeroes its running order
// counter. Accumulated statistics are deliberately left alone: history
// outlives the orders that produced it. Idempotent; re-running after a
// partial failure converges on the same empty state.
func Reset(ctx context.Context, l ledger.Ledger, shop string) (int, error) {
	deleted, err := l.DeleteOrders(ctx, shop)
	if err != nil {
		return deleted, err
	}
	if err := l.ResetOrderCount(ctx, shop); err != nil {
		return deleted, err
	}
	return deleted, nil
}
