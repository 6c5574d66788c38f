package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	samplesAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "footfolio_samples_accepted_total",
			Help: "Location samples appended to walking sessions",
		},
	)

	rendersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "footfolio_renders_total",
			Help: "Path renders by background mode and outcome",
		},
		[]string{"mode", "status"},
	)

	publishesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "footfolio_publishes_total",
			Help: "Content pins by step and outcome",
		},
		[]string{"step", "status"},
	)

	mintsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "footfolio_mints_total",
			Help: "Mint attempts by outcome",
		},
		[]string{"outcome"},
	)

	mintDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "footfolio_mint_pipeline_duration_seconds",
			Help:    "Time from mint command to submitted transaction",
			Buckets: prometheus.DefBuckets,
		},
	)

	activeWalks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "footfolio_active_walks",
			Help: "Walking sessions currently held in memory",
		},
	)

	initOnce sync.Once
)

// Init registers the collectors with the default registry. Safe to call more
// than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			samplesAccepted,
			rendersTotal,
			publishesTotal,
			mintsTotal,
			mintDuration,
			activeWalks,
		)
	})
}

func SampleAccepted() { samplesAccepted.Inc() }

func RecordRender(mode string, err error) {
	rendersTotal.WithLabelValues(mode, status(err)).Inc()
}

func RecordPublish(step string, err error) {
	publishesTotal.WithLabelValues(step, status(err)).Inc()
}

func RecordMint(outcome string, started time.Time) {
	mintsTotal.WithLabelValues(outcome).Inc()
	mintDuration.Observe(time.Since(started).Seconds())
}

func SetActiveWalks(n int) { activeWalks.Set(float64(n)) }

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
