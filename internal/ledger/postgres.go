package ledger

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hyeonsoft/orderpulse/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// Postgres is the durable Ledger. Orders, accumulators, menus and counters
// live in PostgreSQL; change notification rides a Redis pub/sub channel per
// shop. Without Redis the watcher falls back to interval polling.
type Postgres struct {
	pool         *pgxpool.Pool
	redis        *redis.Client
	logger       *zap.Logger
	pollInterval time.Duration
	deleteBatch  int
}

// PostgresOptions tunes the Postgres ledger.
type PostgresOptions struct {
	// Redis carries change notifications when set.
	Redis *redis.Client
	// PollInterval is the snapshot refresh period used when Redis is
	// absent. Zero means 2s.
	PollInterval time.Duration
	// DeleteBatch is the bulk-delete batch size. Zero means 500.
	DeleteBatch int
}

// NewPostgres creates a Postgres-backed ledger and applies the schema.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, opts PostgresOptions, logger *zap.Logger) (*Postgres, error) {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}

	p := &Postgres{
		pool:         pool,
		redis:        opts.Redis,
		logger:       logger,
		pollInterval: opts.PollInterval,
		deleteBatch:  opts.DeleteBatch,
	}
	if p.pollInterval <= 0 {
		p.pollInterval = 2 * time.Second
	}
	if p.deleteBatch <= 0 {
		p.deleteBatch = 500
	}
	return p, nil
}

func ordersChannel(shop string) string {
	return "orders:" + shop
}

func (p *Postgres) WatchOrders(ctx context.Context, shop string) (<-chan OrderSnapshot, error) {
	out := make(chan OrderSnapshot, 16)

	var sub *redis.PubSub
	if p.redis != nil {
		sub = p.redis.Subscribe(ctx, ordersChannel(shop))
	}

	go func() {
		defer close(out)
		if sub != nil {
			defer sub.Close()
		}

		deliver := func() {
			snap, err := p.listOrders(ctx, shop)
			if err != nil {
				p.logger.Error("order snapshot query failed",
					zap.String("shop", shop), zap.Error(err))
				return
			}
			select {
			case out <- OrderSnapshot{Shop: shop, Orders: snap}:
			case <-ctx.Done():
			}
		}

		deliver()

		if sub != nil {
			msgs := sub.Channel()
			for {
				select {
				case <-ctx.Done():
					return
				case _, ok := <-msgs:
					if !ok {
						return
					}
					deliver()
				}
			}
		}

		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deliver()
			}
		}
	}()

	return out, nil
}

func (p *Postgres) listOrders(ctx context.Context, shop string) ([]models.Order, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, order_number, items, total_price, ts, stats_processed
		FROM orders WHERE shop = $1
		ORDER BY ts DESC, order_number DESC
	`, shop)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	var items []byte
	if err := row.Scan(&o.ID, &o.OrderNumber, &items, &o.TotalPrice, &o.Timestamp, &o.StatsProcessed); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	return &o, nil
}

func (p *Postgres) GetOrder(ctx context.Context, shop, id string) (*models.Order, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, order_number, items, total_price, ts, stats_processed
		FROM orders WHERE shop = $1 AND id = $2
	`, shop, id)

	o, err := scanOrder(row)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (p *Postgres) CreateOrder(ctx context.Context, shop string, order *models.Order) error {
	if err := order.Validate(); err != nil {
		return err
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Timestamp.IsZero() {
		order.Timestamp = time.Now().UTC()
	}

	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create order: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO shops (name, order_count) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET order_count = shops.order_count + 1
		RETURNING order_count
	`, shop).Scan(&order.OrderNumber)
	if err != nil {
		return fmt.Errorf("bump order counter: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, shop, order_number, items, total_price, ts, stats_processed)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
	`, order.ID, shop, order.OrderNumber, items, order.TotalPrice, order.Timestamp)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create order: %w", err)
	}

	p.notify(ctx, shop)
	return nil
}

// FoldOrderStats runs the processed-flag set and every accumulator increment
// in one transaction. The flag update doubles as the optimistic lock: zero
// rows affected means another fold already won, and nothing is applied.
func (p *Postgres) FoldOrderStats(ctx context.Context, shop, orderID string, deltas []models.StatDelta) (bool, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin fold: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE orders SET stats_processed = TRUE
		WHERE shop = $1 AND id = $2 AND NOT stats_processed
	`, shop, orderID)
	if err != nil {
		return false, fmt.Errorf("mark order processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	for _, d := range deltas {
		_, err = tx.Exec(ctx, `
			INSERT INTO stat_items (shop, granularity, period, item, quantity, total)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (shop, granularity, period, item) DO UPDATE
			SET quantity = stat_items.quantity + EXCLUDED.quantity,
			    total    = stat_items.total + EXCLUDED.total
		`, shop, string(d.Granularity), d.Period, d.Item, d.Quantity, d.Total)
		if err != nil {
			return false, fmt.Errorf("apply stat delta: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit fold: %w", err)
	}

	p.notify(ctx, shop)
	return true, nil
}

func (p *Postgres) GetStat(ctx context.Context, shop string, g models.Granularity, period string) (models.StatDoc, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT item, quantity, total FROM stat_items
		WHERE shop = $1 AND granularity = $2 AND period = $3
	`, shop, string(g), period)
	if err != nil {
		return nil, fmt.Errorf("get stat: %w", err)
	}
	defer rows.Close()

	doc := models.StatDoc{}
	for rows.Next() {
		var item string
		var st models.ItemStat
		if err := rows.Scan(&item, &st.Quantity, &st.Total); err != nil {
			return nil, err
		}
		doc[item] = st
	}
	return doc, rows.Err()
}

func (p *Postgres) ListStats(ctx context.Context, shop string, g models.Granularity) (map[string]models.StatDoc, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT period, item, quantity, total FROM stat_items
		WHERE shop = $1 AND granularity = $2
	`, shop, string(g))
	if err != nil {
		return nil, fmt.Errorf("list stats: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.StatDoc)
	for rows.Next() {
		var period, item string
		var st models.ItemStat
		if err := rows.Scan(&period, &item, &st.Quantity, &st.Total); err != nil {
			return nil, err
		}
		doc, ok := out[period]
		if !ok {
			doc = models.StatDoc{}
			out[period] = doc
		}
		doc[item] = st
	}
	return out, rows.Err()
}

func (p *Postgres) ListMenus(ctx context.Context, shop string) ([]models.Menu, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT name, price FROM menus WHERE shop = $1
	`, shop)
	if err != nil {
		return nil, fmt.Errorf("list menus: %w", err)
	}
	defer rows.Close()

	var menus []models.Menu
	for rows.Next() {
		var m models.Menu
		if err := rows.Scan(&m.Name, &m.Price); err != nil {
			return nil, err
		}
		menus = append(menus, m)
	}
	return menus, rows.Err()
}

// DeleteOrders removes the shop's orders in fixed-size batches. A failure
// partway leaves earlier batches gone; re-running converges on empty.
func (p *Postgres) DeleteOrders(ctx context.Context, shop string) (int, error) {
	total := 0
	for {
		tag, err := p.pool.Exec(ctx, `
			DELETE FROM orders WHERE id IN (
				SELECT id FROM orders WHERE shop = $1 LIMIT $2
			)
		`, shop, p.deleteBatch)
		if err != nil {
			return total, fmt.Errorf("delete orders batch: %w", err)
		}
		n := int(tag.RowsAffected())
		total += n
		if n < p.deleteBatch {
			break
		}
	}

	p.notify(ctx, shop)
	return total, nil
}

func (p *Postgres) ResetOrderCount(ctx context.Context, shop string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO shops (name, order_count) VALUES ($1, 0)
		ON CONFLICT (name) DO UPDATE SET order_count = 0
	`, shop)
	if err != nil {
		return fmt.Errorf("reset order count: %w", err)
	}
	return nil
}

// notify publishes a change signal for a shop. Watchers re-query on receipt,
// so the payload carries no data. Publish failures only cost liveness for
// Redis-driven watchers; polling watchers are unaffected.
func (p *Postgres) notify(ctx context.Context, shop string) {
	if p.redis == nil {
		return
	}
	if err := p.redis.Publish(ctx, ordersChannel(shop), "changed").Err(); err != nil {
		p.logger.Warn("change notification failed",
			zap.String("shop", shop), zap.Error(err))
	}
}

var _ Ledger = (*Postgres)(nil)
