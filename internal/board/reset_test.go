package board

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyeonsoft/orderpulse/internal/ledger"
	"github.com/hyeonsoft/orderpulse/internal/models"
)

func TestResetClearsOrdersButKeepsStats(t *testing.T) {
	ctx := context.Background()
	mem := ledger.NewMemory()

	seedFold(t, mem, "버거킹", "", "2024-03-15T10:00:00Z", "와퍼", 2, 7000)
	seedFold(t, mem, "버거킹", "", "2024-03-16T11:00:00Z", "콜라", 1, 1500)

	dailyBefore, err := mem.ListStats(ctx, "버거킹", models.GranularityDaily)
	require.NoError(t, err)
	monthlyBefore, err := mem.ListStats(ctx, "버거킹", models.GranularityMonthly)
	require.NoError(t, err)
	require.NotEmpty(t, dailyBefore)

	deleted, err := Reset(ctx, mem, "버거킹")
	require.NoError(t, err)
	require.Equal(t, 2, deleted)

	ch, err := mem.WatchOrders(ctx, "버거킹")
	require.NoError(t, err)
	snap := <-ch
	require.Empty(t, snap.Orders)
	require.Equal(t, int64(0), mem.OrderCount("버거킹"))

	// Historical stats outlive the orders that produced them.
	dailyAfter, err := mem.ListStats(ctx, "버거킹", models.GranularityDaily)
	require.NoError(t, err)
	require.Equal(t, dailyBefore, dailyAfter)
	monthlyAfter, err := mem.ListStats(ctx, "버거킹", models.GranularityMonthly)
	require.NoError(t, err)
	require.Equal(t, monthlyBefore, monthlyAfter)
}

func TestResetScopedToOneShop(t *testing.T) {
	ctx := context.Background()
	mem := ledger.NewMemory()

	seedFold(t, mem, "버거킹", "", "2024-03-15T10:00:00Z", "와퍼", 1, 7000)
	seedFold(t, mem, "김밥천국", "", "2024-03-15T10:00:00Z", "김밥", 1, 3000)

	_, err := Reset(ctx, mem, "버거킹")
	require.NoError(t, err)

	other, err := mem.WatchOrders(ctx, "김밥천국")
	require.NoError(t, err)
	snap := <-other
	require.Len(t, snap.Orders, 1)
	require.Equal(t, int64(1), mem.OrderCount("김밥천국"))
}

func TestResetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	mem := ledger.NewMemory()

	seedFold(t, mem, "버거킹", "", "2024-03-15T10:00:00Z", "와퍼", 1, 7000)

	deleted, err := Reset(ctx, mem, "버거킹")
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	deleted, err = Reset(ctx, mem, "버거킹")
	require.NoError(t, err)
	require.Equal(t, 0, deleted)
}
