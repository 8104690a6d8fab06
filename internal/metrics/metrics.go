// Package metrics holds the Prometheus instruments for the trailer pipeline.
// They are exposed at GET /metrics through Handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StreamResolutions counts stream lookups by site and outcome (ok, failed, unsupported).
var StreamResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "trailerreel_stream_resolutions_total",
	Help: "Stream resolutions by site and result.",
}, []string{"site", "result"})

// ReconcileRuns counts reconciliation passes by result (ok, error).
var ReconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "trailerreel_reconcile_runs_total",
	Help: "Local trailer cache reconciliation passes.",
}, []string{"result"})

// ReconcileItems counts per-item reconciliation actions (downloaded, deleted, failed, skipped).
var ReconcileItems = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "trailerreel_reconcile_items_total",
	Help: "Items touched by reconciliation, by action.",
}, []string{"action"})

// CachedTrailers is the size of the cached id set after the last pass.
var CachedTrailers = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "trailerreel_cached_trailers",
	Help: "Trailers considered cached after the last reconciliation.",
})

// ReconcileDuration observes how long a pass takes.
var ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "trailerreel_reconcile_duration_seconds",
	Help:    "Duration of reconciliation passes.",
	Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
})

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
