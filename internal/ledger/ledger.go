package ledger

import (
	"context"
	"errors"

	"github.com/hyeonsoft/orderpulse/internal/models"
)

// ErrNotFound is returned by point reads when the document does not exist.
var ErrNotFound = errors.New("ledger: not found")

// OrderSnapshot is one delivery from an order subscription: the full current
// order list for a shop, newest first.
type OrderSnapshot struct {
	Shop   string
	Orders []models.Order
}

// Ledger is the persistent document store behind the dashboard. It holds
// orders, stat accumulators, menus and per-shop counters, and exposes a
// subscription primitive that delivers the full current order list on every
// change.
type Ledger interface {
	// WatchOrders subscribes to the shop's order list, newest first. The
	// initial snapshot is delivered immediately; further snapshots follow
	// each change. The channel is closed when ctx is cancelled.
	WatchOrders(ctx context.Context, shop string) (<-chan OrderSnapshot, error)

	// GetOrder reads one order. Returns ErrNotFound if it does not exist.
	GetOrder(ctx context.Context, shop, id string) (*models.Order, error)

	// CreateOrder stores a new order, assigning its id and shop-local
	// order number, and notifies watchers.
	CreateOrder(ctx context.Context, shop string, order *models.Order) error

	// FoldOrderStats marks the order processed and applies all stat deltas
	// in a single atomic step. Returns false without applying anything if
	// the order was already processed (or does not exist). The increments
	// are additive per (granularity, period, item), so two shops' worth of
	// concurrent folds never lose updates.
	FoldOrderStats(ctx context.Context, shop, orderID string, deltas []models.StatDelta) (bool, error)

	// GetStat reads one accumulator document. A missing document is an
	// empty, non-nil StatDoc.
	GetStat(ctx context.Context, shop string, g models.Granularity, period string) (models.StatDoc, error)

	// ListStats reads all accumulator documents for a granularity, keyed
	// by period.
	ListStats(ctx context.Context, shop string, g models.Granularity) (map[string]models.StatDoc, error)

	// ListMenus reads the shop's menu documents.
	ListMenus(ctx context.Context, shop string) ([]models.Menu, error)

	// DeleteOrders removes every order for the shop in batches and returns
	// the number deleted. Accumulators are untouched.
	DeleteOrders(ctx context.Context, shop string) (int, error)

	// ResetOrderCount sets the shop's running order counter to zero.
	ResetOrderCount(ctx context.Context, shop string) error
}
