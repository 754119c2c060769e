package board

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hyeonsoft/orderpulse/internal/metrics"
	"github.com/hyeonsoft/orderpulse/internal/models"
)

// AlertEvent is the new-order cue delivered to the presentation layer, which
// plays the actual sound.
type AlertEvent struct {
	Shop        string    `json:"shop"`
	OrderID     string    `json:"order_id"`
	OrderNumber int64     `json:"order_number"`
	TotalPrice  int64     `json:"total_price"`
	Timestamp   time.Time `json:"timestamp"`
}

// Alerter fans new-order events out to subscribers. It stays silent until
// armed: browsers refuse audio before a user interaction, so the front-end
// arms the alerter on the first click. Delivery is best effort; a failed or
// dropped alert is ignored, matching how refused audio playback is treated.
type Alerter struct {
	mu     sync.Mutex
	armed  bool
	subs   map[chan AlertEvent]struct{}
	redis  *redis.Client
	logger *zap.Logger
	mtr    *metrics.Metrics
}

// NewAlerter constructs an Alerter. redis may be nil; when present, events
// are mirrored to the alerts:{shop} channel for external listeners.
func NewAlerter(rdb *redis.Client, logger *zap.Logger, m *metrics.Metrics) *Alerter {
	return &Alerter{
		subs:   make(map[chan AlertEvent]struct{}),
		redis:  rdb,
		logger: logger,
		mtr:    m,
	}
}

// Arm enables alert delivery for the rest of the session.
func (a *Alerter) Arm() {
	a.mu.Lock()
	a.armed = true
	a.mu.Unlock()
}

// Armed reports whether alerts are enabled.
func (a *Alerter) Armed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.armed
}

// Subscribe registers an in-process listener. The returned cancel func must
// be called when the listener goes away.
func (a *Alerter) Subscribe() (<-chan AlertEvent, func()) {
	ch := make(chan AlertEvent, 8)

	a.mu.Lock()
	a.subs[ch] = struct{}{}
	a.mu.Unlock()

	cancel := func() {
		a.mu.Lock()
		delete(a.subs, ch)
		a.mu.Unlock()
	}
	return ch, cancel
}

// NewOrder publishes an alert for a freshly detected order, if armed.
func (a *Alerter) NewOrder(ctx context.Context, shop string, order models.Order) {
	a.mu.Lock()
	armed := a.armed
	var targets []chan AlertEvent
	if armed {
		for ch := range a.subs {
			targets = append(targets, ch)
		}
	}
	a.mu.Unlock()

	if !armed {
		return
	}

	ev := AlertEvent{
		Shop:        shop,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		TotalPrice:  order.TotalPrice,
		Timestamp:   order.Timestamp,
	}

	for _, ch := range targets {
		select {
		case ch <- ev:
		default:
		}
	}

	if a.redis != nil {
		payload, _ := json.Marshal(ev)
		if err := a.redis.Publish(ctx, "alerts:"+shop, payload).Err(); err != nil {
			a.logger.Debug("alert publish failed", zap.String("shop", shop), zap.Error(err))
		}
	}

	if a.mtr != nil {
		a.mtr.RecordAlert(shop)
	}
	a.logger.Info("new order alert",
		zap.String("shop", shop),
		zap.Int64("order_number", order.OrderNumber),
		zap.Int64("total_price", order.TotalPrice),
	)
}
