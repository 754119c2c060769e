package board

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hyeonsoft/orderpulse/internal/ledger"
	"github.com/hyeonsoft/orderpulse/internal/models"
)

type watcherFixture struct {
	mem     *ledger.Memory
	watcher *Watcher
	alerter *Alerter
	alerts  <-chan AlertEvent
	orders  [][]models.Order
}

func newWatcherFixture(t *testing.T, shop string) *watcherFixture {
	t.Helper()

	mem := ledger.NewMemory()
	logger := zap.NewNop()
	alerter := NewAlerter(nil, logger, nil)
	alerter.Arm()
	alerts, cancel := alerter.Subscribe()
	t.Cleanup(cancel)

	f := &watcherFixture{mem: mem, alerter: alerter, alerts: alerts}
	agg := NewAggregator(mem, nil, nil, logger, nil)
	sink := func(orders []models.Order) {
		f.orders = append(f.orders, orders)
	}
	f.watcher = NewWatcher(shop, mem, agg, alerter, sink, logger, nil)
	return f
}

func (f *watcherFixture) snapshot(ctx context.Context, t *testing.T, shop string) ledger.OrderSnapshot {
	t.Helper()

	ch, err := f.mem.WatchOrders(ctx, shop)
	require.NoError(t, err)
	return <-ch
}

func drainAlert(t *testing.T, ch <-chan AlertEvent) *AlertEvent {
	t.Helper()

	select {
	case ev := <-ch:
		return &ev
	case <-time.After(50 * time.Millisecond):
		return nil
	}
}

func TestWatcherEmptySnapshotPublishesEmptyList(t *testing.T) {
	f := newWatcherFixture(t, "버거킹")

	f.watcher.handle(context.Background(), ledger.OrderSnapshot{Shop: "버거킹"})

	require.Len(t, f.orders, 1)
	require.Empty(t, f.orders[0])
	require.Nil(t, drainAlert(t, f.alerts))
}

func TestWatcherDetectsAndFoldsNewOrder(t *testing.T) {
	ctx := context.Background()
	f := newWatcherFixture(t, "버거킹")

	ts := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	order := testOrder("", ts, models.OrderItem{Name: "와퍼", Quantity: 1, Price: intp(7000)})
	require.NoError(t, f.mem.CreateOrder(ctx, "버거킹", &order))

	f.watcher.handle(ctx, f.snapshot(ctx, t, "버거킹"))

	ev := drainAlert(t, f.alerts)
	require.NotNil(t, ev)
	require.Equal(t, order.ID, ev.OrderID)

	stored, err := f.mem.GetOrder(ctx, "버거킹", order.ID)
	require.NoError(t, err)
	require.True(t, stored.StatsProcessed)

	daily, err := f.mem.GetStat(ctx, "버거킹", models.GranularityDaily, "2024-03-15")
	require.NoError(t, err)
	require.Equal(t, models.ItemStat{Quantity: 1, Total: 7000}, daily["와퍼"])

	require.NotEmpty(t, f.orders)
	require.Len(t, f.orders[len(f.orders)-1], 1)
}

func TestWatcherSuppressesProcessedOrderOnRedelivery(t *testing.T) {
	ctx := context.Background()
	f := newWatcherFixture(t, "버거킹")

	ts := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	order := testOrder("", ts, models.OrderItem{Name: "와퍼", Quantity: 1, Price: intp(7000)})
	require.NoError(t, f.mem.CreateOrder(ctx, "버거킹", &order))

	snap := f.snapshot(ctx, t, "버거킹")
	f.watcher.handle(ctx, snap)
	require.NotNil(t, drainAlert(t, f.alerts))

	// Simulate a re-subscription replay: fresh watcher instance, same shop,
	// so last-seen is unset but the order is already processed.
	replayAlerter := NewAlerter(nil, zap.NewNop(), nil)
	replayAlerter.Arm()
	replayAlerts, cancel := replayAlerter.Subscribe()
	defer cancel()
	fresh := NewWatcher("버거킹", f.mem, NewAggregator(f.mem, nil, nil, zap.NewNop(), nil),
		replayAlerter, nil, zap.NewNop(), nil)
	fresh.handle(ctx, f.snapshot(ctx, t, "버거킹"))

	require.Nil(t, drainAlert(t, replayAlerts))
	daily, err := f.mem.GetStat(ctx, "버거킹", models.GranularityDaily, "2024-03-15")
	require.NoError(t, err)
	require.Equal(t, models.ItemStat{Quantity: 1, Total: 7000}, daily["와퍼"])
}

func TestWatcherSameNewestOrderFiresOnce(t *testing.T) {
	ctx := context.Background()
	f := newWatcherFixture(t, "버거킹")

	ts := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	order := testOrder("", ts, models.OrderItem{Name: "와퍼", Quantity: 1, Price: intp(7000)})
	require.NoError(t, f.mem.CreateOrder(ctx, "버거킹", &order))

	snap := f.snapshot(ctx, t, "버거킹")
	f.watcher.handle(ctx, snap)
	require.NotNil(t, drainAlert(t, f.alerts))

	// Same newest id again: last-seen short-circuits before any reads.
	f.watcher.handle(ctx, snap)
	require.Nil(t, drainAlert(t, f.alerts))
}

func TestWatcherUnarmedAlerterStaysSilent(t *testing.T) {
	ctx := context.Background()
	mem := ledger.NewMemory()
	logger := zap.NewNop()
	alerter := NewAlerter(nil, logger, nil) // never armed
	alerts, cancel := alerter.Subscribe()
	defer cancel()

	w := NewWatcher("버거킹", mem, NewAggregator(mem, nil, nil, logger, nil), alerter, nil, logger, nil)

	ts := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	order := testOrder("", ts, models.OrderItem{Name: "와퍼", Quantity: 1, Price: intp(7000)})
	require.NoError(t, mem.CreateOrder(ctx, "버거킹", &order))

	ch, err := mem.WatchOrders(ctx, "버거킹")
	require.NoError(t, err)
	w.handle(ctx, <-ch)

	// No alert, but the order still folds: the audio gate never blocks
	// bookkeeping.
	require.Nil(t, drainAlert(t, alerts))
	stored, err := mem.GetOrder(ctx, "버거킹", order.ID)
	require.NoError(t, err)
	require.True(t, stored.StatsProcessed)
}
