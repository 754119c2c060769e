package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyeonsoft/orderpulse/internal/models"
)

func price(v int64) *int64 { return &v }

func memOrder(name string, qty, p int64, ts time.Time) *models.Order {
	return &models.Order{
		Items:     []models.OrderItem{{Name: name, Quantity: qty, Price: price(p)}},
		Timestamp: ts,
	}
}

func TestMemoryCreateOrderAssignsIDAndNumber(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	ts := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	first := memOrder("와퍼", 1, 7000, ts)
	require.NoError(t, m.CreateOrder(ctx, "버거킹", first))
	second := memOrder("콜라", 2, 1500, ts.Add(time.Minute))
	require.NoError(t, m.CreateOrder(ctx, "버거킹", second))

	require.NotEmpty(t, first.ID)
	require.Equal(t, int64(1), first.OrderNumber)
	require.Equal(t, int64(2), second.OrderNumber)
	require.Equal(t, int64(2), m.OrderCount("버거킹"))
}

func TestMemorySnapshotNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	ts := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	older := memOrder("와퍼", 1, 7000, ts)
	require.NoError(t, m.CreateOrder(ctx, "버거킹", older))
	newer := memOrder("콜라", 1, 1500, ts.Add(time.Hour))
	require.NoError(t, m.CreateOrder(ctx, "버거킹", newer))

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch, err := m.WatchOrders(watchCtx, "버거킹")
	require.NoError(t, err)

	snap := <-ch
	require.Len(t, snap.Orders, 2)
	require.Equal(t, newer.ID, snap.Orders[0].ID)
	require.Equal(t, older.ID, snap.Orders[1].ID)
}

func TestMemoryWatchDeliversOnChange(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch, err := m.WatchOrders(watchCtx, "버거킹")
	require.NoError(t, err)

	initial := <-ch
	require.Empty(t, initial.Orders)

	ts := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	require.NoError(t, m.CreateOrder(ctx, "버거킹", memOrder("와퍼", 1, 7000, ts)))

	select {
	case snap := <-ch:
		require.Len(t, snap.Orders, 1)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after order creation")
	}
}

func TestMemoryFoldOrderStatsGate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	ts := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	order := memOrder("와퍼", 1, 7000, ts)
	require.NoError(t, m.CreateOrder(ctx, "버거킹", order))

	deltas := []models.StatDelta{
		{Granularity: models.GranularityDaily, Period: "2024-03-15", Item: "와퍼", Quantity: 1, Total: 7000},
	}

	applied, err := m.FoldOrderStats(ctx, "버거킹", order.ID, deltas)
	require.NoError(t, err)
	require.True(t, applied)

	// Second fold of the same order is rejected and changes nothing.
	applied, err = m.FoldOrderStats(ctx, "버거킹", order.ID, deltas)
	require.NoError(t, err)
	require.False(t, applied)

	doc, err := m.GetStat(ctx, "버거킹", models.GranularityDaily, "2024-03-15")
	require.NoError(t, err)
	require.Equal(t, models.ItemStat{Quantity: 1, Total: 7000}, doc["와퍼"])

	applied, err = m.FoldOrderStats(ctx, "버거킹", "no-such-order", deltas)
	require.NoError(t, err)
	require.False(t, applied)
}

// TestNaiveReplaceMergeLosesUpdates demonstrates why the fold path exists:
// a read-merge-write over whole accumulator documents drops one of two
// interleaved contributions, while atomic folds keep both.
func TestNaiveReplaceMergeLosesUpdates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	const period = "2024-03-15"

	merge := func(doc models.StatDoc, qty, total int64) models.StatDoc {
		out := doc.Clone()
		st := out["와퍼"]
		st.Quantity += qty
		st.Total += total
		out["와퍼"] = st
		return out
	}

	// Both writers read the document before either writes it back.
	read1, err := m.GetStat(ctx, "버거킹", models.GranularityDaily, period)
	require.NoError(t, err)
	read2, err := m.GetStat(ctx, "버거킹", models.GranularityDaily, period)
	require.NoError(t, err)

	require.NoError(t, m.PutStat(ctx, "버거킹", models.GranularityDaily, period, merge(read1, 1, 7000)))
	require.NoError(t, m.PutStat(ctx, "버거킹", models.GranularityDaily, period, merge(read2, 2, 14000)))

	doc, err := m.GetStat(ctx, "버거킹", models.GranularityDaily, period)
	require.NoError(t, err)
	// The first contribution is gone: 3 units were sold, 2 survive.
	require.Equal(t, models.ItemStat{Quantity: 2, Total: 14000}, doc["와퍼"])

	// The same two contributions through atomic folds are both kept.
	ts := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	o1 := memOrder("와퍼", 1, 7000, ts)
	o2 := memOrder("와퍼", 2, 7000, ts)
	require.NoError(t, m.CreateOrder(ctx, "스타벅스", o1))
	require.NoError(t, m.CreateOrder(ctx, "스타벅스", o2))
	for _, o := range []*models.Order{o1, o2} {
		var qty int64
		for _, it := range o.Items {
			qty = it.Quantity
		}
		applied, err := m.FoldOrderStats(ctx, "스타벅스", o.ID, []models.StatDelta{
			{Granularity: models.GranularityDaily, Period: period, Item: "와퍼", Quantity: qty, Total: qty * 7000},
		})
		require.NoError(t, err)
		require.True(t, applied)
	}

	doc, err = m.GetStat(ctx, "스타벅스", models.GranularityDaily, period)
	require.NoError(t, err)
	require.Equal(t, models.ItemStat{Quantity: 3, Total: 21000}, doc["와퍼"])
}

func TestMemoryDeleteOrdersKeepsStats(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	ts := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	order := memOrder("와퍼", 1, 7000, ts)
	require.NoError(t, m.CreateOrder(ctx, "버거킹", order))
	_, err := m.FoldOrderStats(ctx, "버거킹", order.ID, []models.StatDelta{
		{Granularity: models.GranularityDaily, Period: "2024-03-15", Item: "와퍼", Quantity: 1, Total: 7000},
	})
	require.NoError(t, err)

	n, err := m.DeleteOrders(ctx, "버거킹")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoError(t, m.ResetOrderCount(ctx, "버거킹"))

	_, err = m.GetOrder(ctx, "버거킹", order.ID)
	require.ErrorIs(t, err, ErrNotFound)

	doc, err := m.GetStat(ctx, "버거킹", models.GranularityDaily, "2024-03-15")
	require.NoError(t, err)
	require.Equal(t, models.ItemStat{Quantity: 1, Total: 7000}, doc["와퍼"])
}
