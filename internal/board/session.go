package board

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyeonsoft/orderpulse/internal/ledger"
	"github.com/hyeonsoft/orderpulse/internal/metrics"
	"github.com/hyeonsoft/orderpulse/internal/models"
)

// ViewState is the dashboard's transient UI state. It is never persisted.
type ViewState struct {
	Shop         string             `json:"shop"`
	Granularity  models.Granularity `json:"granularity"`
	ShowStats    bool               `json:"show_stats"`
	SelectedDate string             `json:"selected_date"`
	AlertArmed   bool               `json:"alert_armed"`
}

// StatsView is the statistics payload for the presentation layer.
type StatsView struct {
	Granularity    models.Granularity `json:"granularity"`
	Series         Series             `json:"series"`
	SelectedPeriod string             `json:"selected_period"`
	Total          int64              `json:"total"`
}

// Session is the single dashboard session: one selected shop watched live,
// one view state, explicit transition methods. Selecting a shop tears down
// the previous subscription and menu cache and starts fresh ones, so
// last-seen tracking and prices never cross shops.
type Session struct {
	ledgr   ledger.Ledger
	shops   []string
	menu    *MenuCache
	alerter *Alerter
	agg     *Aggregator
	reader  *Reader
	logger  *zap.Logger
	metrics *metrics.Metrics

	baseCtx context.Context

	mu          sync.Mutex
	view        ViewState
	orders      []models.Order
	cancelWatch context.CancelFunc
	watchDone   chan struct{}
}

// NewSession wires a session over the given ledger. archive may be nil.
func NewSession(l ledger.Ledger, shops []string, alerter *Alerter, archive Archiver, logger *zap.Logger, m *metrics.Metrics) *Session {
	menu := NewMenuCache()
	return &Session{
		ledgr:   l,
		shops:   shops,
		menu:    menu,
		alerter: alerter,
		agg:     NewAggregator(l, menu, archive, logger, m),
		reader:  NewReader(l),
		logger:  logger,
		metrics: m,
		view:    ViewState{Granularity: models.GranularityDaily},
	}
}

// Start selects the first configured shop and begins watching it. ctx bounds
// the whole session; cancelling it stops the active watcher.
func (s *Session) Start(ctx context.Context) error {
	s.baseCtx = ctx
	if len(s.shops) == 0 {
		return fmt.Errorf("no shops configured")
	}
	return s.SelectShop(ctx, s.shops[0])
}

// Shops returns the configured shop list.
func (s *Session) Shops() []string {
	out := make([]string, len(s.shops))
	copy(out, s.shops)
	return out
}

func (s *Session) knownShop(shop string) bool {
	for _, name := range s.shops {
		if name == shop {
			return true
		}
	}
	return false
}

// SelectShop switches the session to another shop: stop the old watcher,
// reload the menu cache, start a fresh watcher with clean last-seen state.
func (s *Session) SelectShop(ctx context.Context, shop string) error {
	if !s.knownShop(shop) {
		return fmt.Errorf("unknown shop %q", shop)
	}

	s.mu.Lock()
	if s.cancelWatch != nil {
		s.cancelWatch()
		s.cancelWatch = nil
	}
	done := s.watchDone
	s.mu.Unlock()
	if done != nil {
		<-done
	}

	if err := s.menu.Load(ctx, s.ledgr, shop); err != nil {
		return fmt.Errorf("load menu prices for %s: %w", shop, err)
	}

	base := s.baseCtx
	if base == nil {
		base = context.Background()
	}
	watchCtx, cancel := context.WithCancel(base)
	watcher := NewWatcher(shop, s.ledgr, s.agg, s.alerter, s.setOrders, s.logger, s.metrics)
	done = make(chan struct{})

	s.mu.Lock()
	s.view.Shop = shop
	s.orders = nil
	s.cancelWatch = cancel
	s.watchDone = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		if err := watcher.Run(watchCtx); err != nil && watchCtx.Err() == nil {
			s.logger.Error("order watcher stopped",
				zap.String("shop", shop), zap.Error(err))
		}
	}()

	s.logger.Info("shop selected", zap.String("shop", shop))
	return nil
}

func (s *Session) setOrders(orders []models.Order) {
	s.mu.Lock()
	s.orders = orders
	s.mu.Unlock()
}

// Orders returns the current visible order list, newest first.
func (s *Session) Orders() []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Order, len(s.orders))
	copy(out, s.orders)
	return out
}

// View returns a copy of the current view state.
func (s *Session) View() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.view
	v.AlertArmed = s.alerter.Armed()
	return v
}

// ToggleStats flips between the live-order view and the statistics view and
// returns the new value.
func (s *Session) ToggleStats() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.view.ShowStats = !s.view.ShowStats
	return s.view.ShowStats
}

// SetGranularity switches between daily and monthly statistics.
func (s *Session) SetGranularity(g models.Granularity) error {
	if !g.Valid() {
		return fmt.Errorf("invalid granularity %q", g)
	}

	s.mu.Lock()
	if s.view.Granularity != g {
		s.view.Granularity = g
		// Period keys differ between granularities, so the previous
		// selection cannot apply.
		s.view.SelectedDate = ""
	}
	s.mu.Unlock()
	return nil
}

// SelectDate pins the displayed period.
func (s *Session) SelectDate(period string) {
	s.mu.Lock()
	s.view.SelectedDate = period
	s.mu.Unlock()
}

// ArmAlert enables the audible new-order alert for this session.
func (s *Session) ArmAlert() {
	s.alerter.Arm()
}

// Stats loads and reshapes the accumulators for the current shop and
// granularity. With no date selected it defaults to the most recent period
// and remembers that choice.
func (s *Session) Stats(ctx context.Context) (StatsView, error) {
	s.mu.Lock()
	shop := s.view.Shop
	g := s.view.Granularity
	selected := s.view.SelectedDate
	s.mu.Unlock()

	series, err := s.reader.Read(ctx, shop, g)
	if err != nil {
		return StatsView{}, err
	}

	if selected == "" {
		selected = series.DefaultPeriod()
		s.mu.Lock()
		if s.view.SelectedDate == "" {
			s.view.SelectedDate = selected
		}
		s.mu.Unlock()
	}

	return StatsView{
		Granularity:    g,
		Series:         series,
		SelectedPeriod: selected,
		Total:          series.TotalFor(selected),
	}, nil
}

// Reset clears the current shop's orders and order counter. Statistics are
// untouched.
func (s *Session) Reset(ctx context.Context) (int, error) {
	s.mu.Lock()
	shop := s.view.Shop
	s.mu.Unlock()

	deleted, err := Reset(ctx, s.ledgr, shop)
	if err != nil {
		return deleted, err
	}

	if s.metrics != nil {
		s.metrics.RecordReset(shop, deleted)
	}
	s.logger.Info("orders reset",
		zap.String("shop", shop), zap.Int("deleted", deleted))
	return deleted, nil
}

// Ledger exposes the underlying ledger for the order-intake handler.
func (s *Session) Ledger() ledger.Ledger {
	return s.ledgr
}

// Alerter exposes the session's alerter for event streaming.
func (s *Session) Alerter() *Alerter {
	return s.alerter
}
