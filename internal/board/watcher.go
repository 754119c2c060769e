package board

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/hyeonsoft/orderpulse/internal/ledger"
	"github.com/hyeonsoft/orderpulse/internal/metrics"
	"github.com/hyeonsoft/orderpulse/internal/models"
)

// OrderSink receives the current visible order list after every snapshot.
type OrderSink func(orders []models.Order)

// Watcher consumes order-list snapshots for one shop and turns "newest order
// changed" into a new-order event: alert, then hand off to the aggregator.
// Last-seen tracking lives here and dies with the watcher on shop switch; the
// durable idempotence guard is the order's processed flag, re-checked with a
// point read because the snapshot and the read may race.
type Watcher struct {
	shop    string
	ledger  ledger.Ledger
	agg     *Aggregator
	alerter *Alerter
	sink    OrderSink
	logger  *zap.Logger
	metrics *metrics.Metrics

	lastSeen string
}

func NewWatcher(shop string, l ledger.Ledger, agg *Aggregator, alerter *Alerter, sink OrderSink, logger *zap.Logger, m *metrics.Metrics) *Watcher {
	return &Watcher{
		shop:    shop,
		ledger:  l,
		agg:     agg,
		alerter: alerter,
		sink:    sink,
		logger:  logger,
		metrics: m,
	}
}

// Run subscribes and handles snapshots until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ch, err := w.ledger.WatchOrders(ctx, w.shop)
	if err != nil {
		return err
	}
	for snap := range ch {
		w.handle(ctx, snap)
	}
	return nil
}

func (w *Watcher) handle(ctx context.Context, snap ledger.OrderSnapshot) {
	if w.metrics != nil {
		w.metrics.RecordSnapshot(w.shop)
	}

	if len(snap.Orders) > 0 && snap.Orders[0].ID != w.lastSeen {
		w.onNewOrder(ctx, snap.Orders[0])
	}

	if w.sink != nil {
		w.sink(snap.Orders)
	}
}

func (w *Watcher) onNewOrder(ctx context.Context, order models.Order) {
	// The snapshot may predate a fold that already happened (redelivery,
	// re-subscription). Re-read the order before raising the event.
	fresh, err := w.ledger.GetOrder(ctx, w.shop, order.ID)
	if err != nil {
		if !errors.Is(err, ledger.ErrNotFound) {
			w.logger.Error("order re-read failed",
				zap.String("shop", w.shop), zap.String("order_id", order.ID), zap.Error(err))
		}
		return
	}
	if fresh.StatsProcessed {
		if w.metrics != nil {
			w.metrics.RecordDuplicateSuppressed(w.shop)
		}
		return
	}

	w.alerter.NewOrder(ctx, w.shop, *fresh)
	w.lastSeen = fresh.ID

	if err := w.agg.Process(ctx, w.shop, *fresh); err != nil {
		// The order is still unprocessed. Forget it as last-seen so the
		// next snapshot retries the fold.
		w.lastSeen = ""
		w.logger.Error("aggregation failed",
			zap.String("shop", w.shop), zap.String("order_id", fresh.ID), zap.Error(err))
	}
}
