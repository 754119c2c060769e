package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/hyeonsoft/orderpulse/internal/models"
)

// Memory is an in-memory Ledger. It backs the dashboard when Postgres is not
// reachable and serves as the store fake in tests. Change notification is
// in-process: every mutation republishes a full snapshot to all watchers.
type Memory struct {
	mu       sync.RWMutex
	orders   map[string][]models.Order          // shop -> orders, unsorted
	stats    map[statKey]models.StatDoc         // accumulator documents
	menus    map[string][]models.Menu           // shop -> menus
	counters map[string]int64                   // shop -> running order count
	watchers map[string][]chan OrderSnapshot    // shop -> subscriber channels
}

type statKey struct {
	shop   string
	gran   models.Granularity
	period string
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		orders:   make(map[string][]models.Order),
		stats:    make(map[statKey]models.StatDoc),
		menus:    make(map[string][]models.Menu),
		counters: make(map[string]int64),
		watchers: make(map[string][]chan OrderSnapshot),
	}
}

func (m *Memory) WatchOrders(ctx context.Context, shop string) (<-chan OrderSnapshot, error) {
	ch := make(chan OrderSnapshot, 16)

	m.mu.Lock()
	m.watchers[shop] = append(m.watchers[shop], ch)
	initial := m.snapshotLocked(shop)
	m.mu.Unlock()

	ch <- initial

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		subs := m.watchers[shop]
		for i, sub := range subs {
			if sub == ch {
				m.watchers[shop] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// snapshotLocked builds the newest-first order list for a shop. Callers hold
// at least a read lock.
func (m *Memory) snapshotLocked(shop string) OrderSnapshot {
	list := make([]models.Order, len(m.orders[shop]))
	copy(list, m.orders[shop])
	sort.Slice(list, func(i, j int) bool {
		if !list[i].Timestamp.Equal(list[j].Timestamp) {
			return list[i].Timestamp.After(list[j].Timestamp)
		}
		return list[i].OrderNumber > list[j].OrderNumber
	})
	return OrderSnapshot{Shop: shop, Orders: list}
}

// notifyLocked fans the current snapshot out to all watchers of a shop.
// Snapshots carry full state, so a lagging subscriber that misses one simply
// catches up on the next delivery.
func (m *Memory) notifyLocked(shop string) {
	snap := m.snapshotLocked(shop)
	for _, ch := range m.watchers[shop] {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (m *Memory) GetOrder(ctx context.Context, shop, id string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, o := range m.orders[shop] {
		if o.ID == id {
			cp := o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) CreateOrder(ctx context.Context, shop string, order *models.Order) error {
	if err := order.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	m.counters[shop]++
	order.OrderNumber = m.counters[shop]
	m.orders[shop] = append(m.orders[shop], *order)
	m.notifyLocked(shop)
	return nil
}

func (m *Memory) FoldOrderStats(ctx context.Context, shop, orderID string, deltas []models.StatDelta) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.orders[shop]
	idx := -1
	for i := range list {
		if list[i].ID == orderID {
			idx = i
			break
		}
	}
	if idx < 0 || list[idx].StatsProcessed {
		return false, nil
	}

	list[idx].StatsProcessed = true
	for _, d := range deltas {
		key := statKey{shop: shop, gran: d.Granularity, period: d.Period}
		doc := m.stats[key]
		if doc == nil {
			doc = make(models.StatDoc)
			m.stats[key] = doc
		}
		st := doc[d.Item]
		st.Quantity += d.Quantity
		st.Total += d.Total
		doc[d.Item] = st
	}
	m.notifyLocked(shop)
	return true, nil
}

func (m *Memory) GetStat(ctx context.Context, shop string, g models.Granularity, period string) (models.StatDoc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc := m.stats[statKey{shop: shop, gran: g, period: period}]
	if doc == nil {
		return models.StatDoc{}, nil
	}
	return doc.Clone(), nil
}

// PutStat replaces a whole accumulator document. It exists so the naive
// read-merge-write update can be exercised; FoldOrderStats is the safe path.
func (m *Memory) PutStat(ctx context.Context, shop string, g models.Granularity, period string, doc models.StatDoc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats[statKey{shop: shop, gran: g, period: period}] = doc.Clone()
	return nil
}

func (m *Memory) ListStats(ctx context.Context, shop string, g models.Granularity) (map[string]models.StatDoc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]models.StatDoc)
	for key, doc := range m.stats {
		if key.shop == shop && key.gran == g {
			out[key.period] = doc.Clone()
		}
	}
	return out, nil
}

func (m *Memory) ListMenus(ctx context.Context, shop string) ([]models.Menu, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Menu, len(m.menus[shop]))
	copy(out, m.menus[shop])
	return out, nil
}

// SetMenus replaces the shop's menu documents. Menus are read-only from the
// dashboard's perspective; this is the seeding path.
func (m *Memory) SetMenus(shop string, menus []models.Menu) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.menus[shop] = append([]models.Menu(nil), menus...)
}

func (m *Memory) DeleteOrders(ctx context.Context, shop string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.orders[shop])
	m.orders[shop] = nil
	m.notifyLocked(shop)
	return n, nil
}

func (m *Memory) ResetOrderCount(ctx context.Context, shop string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters[shop] = 0
	return nil
}

// OrderCount returns the shop's running order counter.
func (m *Memory) OrderCount(shop string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.counters[shop]
}

var _ Ledger = (*Memory)(nil)
