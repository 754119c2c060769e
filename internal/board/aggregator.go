package board

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hyeonsoft/orderpulse/internal/ledger"
	"github.com/hyeonsoft/orderpulse/internal/metrics"
	"github.com/hyeonsoft/orderpulse/internal/models"
)

// PriceLookup resolves the current menu price for an item name.
type PriceLookup interface {
	Price(name string) (int64, bool)
}

// Archiver receives folded orders for long-term history.
type Archiver interface {
	ArchiveOrder(ctx context.Context, shop string, order models.Order) error
}

// Aggregator folds detected orders into the daily and monthly accumulators.
// The fold itself is a single atomic ledger call, so redelivered orders are
// no-ops and concurrent orders in the same period never lose updates.
type Aggregator struct {
	ledger  ledger.Ledger
	prices  PriceLookup
	archive Archiver
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewAggregator constructs an Aggregator. archive may be nil.
func NewAggregator(l ledger.Ledger, prices PriceLookup, archive Archiver, logger *zap.Logger, m *metrics.Metrics) *Aggregator {
	return &Aggregator{
		ledger:  l,
		prices:  prices,
		archive: archive,
		logger:  logger,
		metrics: m,
	}
}

// BuildDeltas computes the order's per-item contributions for both
// granularities. Effective price per line: explicit line price, else the
// menu price for the name, else 0. Lines sharing a name are summed first.
func BuildDeltas(order models.Order, prices PriceLookup) []models.StatDelta {
	perItem := make(map[string]models.ItemStat)
	for _, it := range order.Items {
		price := int64(0)
		switch {
		case it.Price != nil:
			price = *it.Price
		case prices != nil:
			if p, ok := prices.Price(it.Name); ok {
				price = p
			}
		}
		st := perItem[it.Name]
		st.Quantity += it.Quantity
		st.Total += it.Quantity * price
		perItem[it.Name] = st
	}

	names := make([]string, 0, len(perItem))
	for name := range perItem {
		names = append(names, name)
	}
	sort.Strings(names)

	dailyKey := models.DailyKey(order.Timestamp)
	monthlyKey := models.MonthlyKey(order.Timestamp)

	deltas := make([]models.StatDelta, 0, 2*len(names))
	for _, name := range names {
		st := perItem[name]
		deltas = append(deltas,
			models.StatDelta{Granularity: models.GranularityDaily, Period: dailyKey, Item: name, Quantity: st.Quantity, Total: st.Total},
			models.StatDelta{Granularity: models.GranularityMonthly, Period: monthlyKey, Item: name, Quantity: st.Quantity, Total: st.Total},
		)
	}
	return deltas
}

// Process folds one order. Safe to call again for the same order: the
// processed flag inside the fold rejects the replay.
func (a *Aggregator) Process(ctx context.Context, shop string, order models.Order) error {
	deltas := BuildDeltas(order, a.prices)

	start := time.Now()
	applied, err := a.ledger.FoldOrderStats(ctx, shop, order.ID, deltas)
	if err != nil {
		if a.metrics != nil {
			a.metrics.RecordFoldFailure(shop)
		}
		return err
	}
	if !applied {
		a.logger.Debug("order already folded, skipping",
			zap.String("shop", shop), zap.String("order_id", order.ID))
		if a.metrics != nil {
			a.metrics.RecordDuplicateSuppressed(shop)
		}
		return nil
	}

	if a.metrics != nil {
		a.metrics.RecordOrderFolded(shop, time.Since(start))
	}
	a.logger.Info("order folded into stats",
		zap.String("shop", shop),
		zap.String("order_id", order.ID),
		zap.Int64("order_number", order.OrderNumber),
		zap.Int("items", len(order.Items)),
	)

	if a.archive != nil {
		if err := a.archive.ArchiveOrder(ctx, shop, order); err != nil {
			// Archival is best effort; the accumulators are already durable.
			a.logger.Warn("order archive failed",
				zap.String("shop", shop), zap.String("order_id", order.ID), zap.Error(err))
			if a.metrics != nil {
				a.metrics.RecordArchiveFailure(shop)
			}
		}
	}
	return nil
}
