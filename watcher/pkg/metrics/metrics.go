package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fomo_watcher_build_info",
			Help: "Build information of the fomo watcher",
		},
		[]string{"version", "commit", "date"},
	)

	ViewRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fomo_watcher_view_refresh_total",
			Help: "Total number of round view refreshes",
		},
		[]string{"status"},
	)

	ViewRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fomo_watcher_view_refresh_duration_seconds",
			Help:    "Duration of round view refreshes",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
	)

	VaultBalance = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fomo_watcher_vault_balance",
			Help: "Token balance of a round vault in base units",
		},
		[]string{"round", "vault"},
	)

	RoundMintCounter = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fomo_watcher_round_mint_counter",
			Help: "Number of keys minted in the round",
		},
		[]string{"round"},
	)

	RoundHolders = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fomo_watcher_round_holders",
			Help: "Number of keys minted and not burned",
		},
		[]string{"round"},
	)

	RoundCloseTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fomo_watcher_round_close_timestamp_seconds",
			Help: "Unix time at which the round stops accepting keys",
		},
		[]string{"round"},
	)

	NextKeyPrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fomo_watcher_next_key_price_lamports",
			Help: "Price of the next key in lamports",
		},
		[]string{"round"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fomo_watcher_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fomo_watcher_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Middleware records request counts and latency by route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}
