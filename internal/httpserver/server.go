package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hyeonsoft/orderpulse/internal/board"
	"github.com/hyeonsoft/orderpulse/internal/config"
	"github.com/hyeonsoft/orderpulse/internal/database"
	"github.com/hyeonsoft/orderpulse/internal/metrics"
	"github.com/hyeonsoft/orderpulse/internal/middleware"
	"github.com/hyeonsoft/orderpulse/internal/models"
)

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	Session *board.Session
	DB      *database.PostgresDB
	Redis   *database.RedisDB
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Server exposes the dashboard session to the presentation layer.
type Server struct {
	session *board.Session
	db      *database.PostgresDB
	redis   *database.RedisDB
	logger  *zap.Logger
	config  *config.Config
	metrics *metrics.Metrics
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	s := &Server{
		session: deps.Session,
		db:      deps.DB,
		redis:   deps.Redis,
		logger:  deps.Logger,
		config:  deps.Config,
		metrics: deps.Metrics,
	}

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	if deps.Config.Metrics.Enabled {
		mux.Handle(deps.Config.Metrics.Path, metrics.Handler())
	}

	// Shops
	mux.HandleFunc("/api/shops", s.handleShops)
	mux.HandleFunc("/api/shops/select", s.handleSelectShop)

	// Orders
	mux.HandleFunc("/api/orders", s.handleOrders)

	// Statistics
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/stats/granularity", s.handleGranularity)
	mux.HandleFunc("/api/stats/date", s.handleSelectDate)

	// View state
	mux.HandleFunc("/api/view", s.handleView)
	mux.HandleFunc("/api/view/toggle", s.handleToggle)

	// Actions
	mux.HandleFunc("/api/reset", s.handleReset)
	mux.HandleFunc("/api/alert/arm", s.handleArmAlert)

	// New-order alert stream
	mux.HandleFunc("/api/events", s.handleEvents)

	var handler http.Handler = mux
	if deps.Config.RateLimit.Enabled {
		rl := middleware.NewRateLimitMiddleware(deps.Config.RateLimit.RPS, deps.Config.RateLimit.Burst, deps.Metrics)
		handler = rl.Handler(handler)
	}
	handler = middleware.NewLoggingMiddleware(deps.Logger).Handler(handler)
	handler = middleware.NewRecoveryMiddleware(deps.Logger).Handler(handler)
	return handler
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	backends := map[string]string{}
	status := "ok"

	check := func(name string, health func() error, present bool) {
		if !present {
			backends[name] = "absent"
			return
		}
		if err := health(); err != nil {
			backends[name] = "error"
			status = "degraded"
			return
		}
		backends[name] = "ok"
	}

	check("postgres", func() error {
		return s.db.Health(r.Context())
	}, s.db != nil)
	check("redis", func() error {
		return s.redis.Health(r.Context())
	}, s.redis != nil)

	s.jsonResponse(w, map[string]interface{}{
		"status":   status,
		"backends": backends,
	})
}

// ---- Shops ----

func (s *Server) handleShops(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.jsonResponse(w, map[string]interface{}{
		"shops":    s.session.Shops(),
		"selected": s.session.View().Shop,
	})
}

func (s *Server) handleSelectShop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Shop string `json:"shop"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	if err := s.session.SelectShop(r.Context(), req.Shop); err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.jsonResponse(w, s.session.View())
}

// ---- Orders ----

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		orders := s.session.Orders()
		if orders == nil {
			orders = []models.Order{}
		}
		s.jsonResponse(w, map[string]interface{}{
			"shop":   s.session.View().Shop,
			"orders": orders,
		})

	case http.MethodPost:
		s.handleCreateOrder(w, r)

	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleCreateOrder is the order intake used by the ordering front-end.
func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Shop       string             `json:"shop"`
		Items      []models.OrderItem `json:"items"`
		TotalPrice int64              `json:"total_price"`
		Timestamp  *time.Time         `json:"timestamp,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Shop == "" {
		s.errorResponse(w, "shop is required", http.StatusBadRequest)
		return
	}

	order := models.Order{
		Items:      req.Items,
		TotalPrice: req.TotalPrice,
	}
	if req.Timestamp != nil {
		order.Timestamp = req.Timestamp.UTC()
	}

	if err := s.session.Ledger().CreateOrder(r.Context(), req.Shop, &order); err != nil {
		switch err {
		case models.ErrNoItems, models.ErrItemName, models.ErrItemQuantity:
			s.errorResponse(w, err.Error(), http.StatusBadRequest)
		default:
			s.logger.Error("order intake failed",
				zap.String("shop", req.Shop), zap.Error(err))
			s.errorResponse(w, "failed to store order", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(order)
}

// ---- Statistics ----

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	view, err := s.session.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats read failed", zap.Error(err))
		s.errorResponse(w, "failed to load statistics", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, view)
}

func (s *Server) handleGranularity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Granularity models.Granularity `json:"granularity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	if err := s.session.SetGranularity(req.Granularity); err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.jsonResponse(w, s.session.View())
}

func (s *Server) handleSelectDate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	s.session.SelectDate(req.Date)
	s.jsonResponse(w, s.session.View())
}

// ---- View State ----

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.jsonResponse(w, s.session.View())
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	showStats := s.session.ToggleStats()
	s.jsonResponse(w, map[string]bool{"show_stats": showStats})
}

// ---- Actions ----

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	deleted, err := s.session.Reset(r.Context())
	if err != nil {
		s.logger.Error("reset failed", zap.Error(err))
		s.errorResponse(w, "reset failed", http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, map[string]int{"deleted": deleted})
}

func (s *Server) handleArmAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.session.ArmAlert()
	s.jsonResponse(w, map[string]bool{"armed": true})
}

// ---- Alert Stream ----

// handleEvents streams new-order alerts as server-sent events. The front-end
// plays the notification sound on each "order" event.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.errorResponse(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	events, cancel := s.session.Alerter().Subscribe()
	defer cancel()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev := <-events:
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: order\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// ---- Helpers ----

func (s *Server) jsonResponse(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) errorResponse(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
