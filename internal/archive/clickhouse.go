package archive

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/hyeonsoft/orderpulse/internal/metrics"
	"github.com/hyeonsoft/orderpulse/internal/models"
)

const archiveDDL = `
CREATE TABLE IF NOT EXISTS order_items_archive (
    shop         String,
    order_id     String,
    order_number Int64,
    item         String,
    quantity     Int64,
    price        Int64,
    total_price  Int64,
    ts           DateTime
) ENGINE = MergeTree()
ORDER BY (shop, ts, order_id)
`

// ClickHouse appends folded orders to a warehouse table, one row per item
// line. Resets delete live orders but never touch this table, so it is the
// long-term record of what was sold and when.
type ClickHouse struct {
	conn    driver.Conn
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewClickHouse creates the archive sink and ensures its table exists.
func NewClickHouse(ctx context.Context, conn driver.Conn, logger *zap.Logger, m *metrics.Metrics) (*ClickHouse, error) {
	if err := conn.Exec(ctx, archiveDDL); err != nil {
		return nil, fmt.Errorf("create archive table: %w", err)
	}
	return &ClickHouse{conn: conn, logger: logger, metrics: m}, nil
}

// ArchiveOrder appends one order's item lines. Lines without an explicit
// price are stored with price 0; the accumulators already carry the
// menu-resolved revenue.
func (a *ClickHouse) ArchiveOrder(ctx context.Context, shop string, order models.Order) error {
	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO order_items_archive
		(shop, order_id, order_number, item, quantity, price, total_price, ts)
	`)
	if err != nil {
		return fmt.Errorf("prepare archive batch: %w", err)
	}

	for _, it := range order.Items {
		price := int64(0)
		if it.Price != nil {
			price = *it.Price
		}
		err = batch.Append(
			shop,
			order.ID,
			order.OrderNumber,
			it.Name,
			it.Quantity,
			price,
			order.TotalPrice,
			order.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("append archive row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send archive batch: %w", err)
	}

	if a.metrics != nil {
		a.metrics.RecordArchivedOrder(shop)
	}
	a.logger.Debug("order archived",
		zap.String("shop", shop),
		zap.String("order_id", order.ID),
		zap.Int("items", len(order.Items)),
	)
	return nil
}
