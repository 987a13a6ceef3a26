package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	codesProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stocksync_codes_processed_total",
			Help: "Total number of distributor product codes processed.",
		},
	)
	productsUpdated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stocksync_products_updated_total",
			Help: "Total number of storefront inventory levels updated.",
		},
	)
	runErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stocksync_errors_total",
			Help: "Total number of per-item errors during the run.",
		},
	)
	runWarnings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stocksync_warnings_total",
			Help: "Total number of warnings during the run.",
		},
	)
	runDuration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stocksync_run_duration_seconds",
			Help: "Duration of the last sync run in seconds.",
		},
	)
)

func init() {
	prometheus.MustRegister(codesProcessed)
	prometheus.MustRegister(productsUpdated)
	prometheus.MustRegister(runErrors)
	prometheus.MustRegister(runWarnings)
	prometheus.MustRegister(runDuration)
}

// ObserveRun records the outcome of one batch run.
func ObserveRun(codes, updated, errors, warnings int, duration time.Duration) {
	codesProcessed.Add(float64(codes))
	productsUpdated.Add(float64(updated))
	runErrors.Add(float64(errors))
	runWarnings.Add(float64(warnings))
	runDuration.Set(duration.Seconds())
}

// Push delivers the run metrics to a Pushgateway. A batch job has nothing
// to scrape once it exits, so push is the only export path.
func Push(url, job string) error {
	return push.New(url, job).Gatherer(prometheus.DefaultGatherer).Push()
}
