package board

import (
	"context"
	"sync"

	"github.com/hyeonsoft/orderpulse/internal/ledger"
)

// MenuCache holds the current menu prices for the selected shop. Load
// replaces the whole mapping, so a previous shop's prices never leak into
// lookups for the next one.
type MenuCache struct {
	mu     sync.RWMutex
	shop   string
	prices map[string]int64
}

func NewMenuCache() *MenuCache {
	return &MenuCache{prices: make(map[string]int64)}
}

// Load reads the shop's menus and swaps in a fresh mapping. Entries missing
// a name or a positive price are skipped.
func (c *MenuCache) Load(ctx context.Context, l ledger.Ledger, shop string) error {
	menus, err := l.ListMenus(ctx, shop)
	if err != nil {
		return err
	}

	prices := make(map[string]int64, len(menus))
	for _, m := range menus {
		if m.Name == "" || m.Price <= 0 {
			continue
		}
		prices[m.Name] = m.Price
	}

	c.mu.Lock()
	c.shop = shop
	c.prices = prices
	c.mu.Unlock()
	return nil
}

// Price returns the cached price for an item name.
func (c *MenuCache) Price(name string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.prices[name]
	return p, ok
}

// Shop returns the shop the cache was last loaded for.
func (c *MenuCache) Shop() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.shop
}

var _ PriceLookup = (*MenuCache)(nil)
