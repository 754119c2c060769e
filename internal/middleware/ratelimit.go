package middleware

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/hyeonsoft/orderpulse/internal/metrics"
)

// RateLimitMiddleware applies a token-bucket limit across all API requests.
// The dashboard serves a handful of operators, so a single shared bucket is
// enough; the limit mainly shields the ledger from runaway polling clients.
type RateLimitMiddleware struct {
	limiter *rate.Limiter
	metrics *metrics.Metrics
}

// NewRateLimitMiddleware creates a rate limiter allowing rps requests per
// second with the given burst.
func NewRateLimitMiddleware(rps float64, burst int, m *metrics.Metrics) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		metrics: m,
	}
}

// Handler wraps an http.Handler with rate limiting.
func (rl *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiter.Allow() {
			if rl.metrics != nil {
				rl.metrics.RecordRateLimitHit(r.URL.Path)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
