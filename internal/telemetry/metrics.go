package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsEnqueued     = prometheus.NewCounter(prometheus.CounterOpts{Name: "transcription_jobs_enqueued_total", Help: "Total submitted jobs"})
	JobsCompleted    = prometheus.NewCounter(prometheus.CounterOpts{Name: "transcription_jobs_completed_total", Help: "Jobs completed successfully"})
	JobsFailed       = prometheus.NewCounter(prometheus.CounterOpts{Name: "transcription_jobs_failed_total", Help: "Jobs that ended in failure"})
	RateLimitRejects = prometheus.NewCounter(prometheus.CounterOpts{Name: "transcription_rate_limit_rejects_total", Help: "Submissions rejected by the rate limiter"})
	QueueDepthGauge  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "transcription_queue_depth", Help: "Pending queue depth"})
	InFlightGauge    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "transcription_inflight", Help: "Transcriptions currently executing (0 or 1)"})
	LiveSubscribers  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "transcription_live_subscribers", Help: "Open live update streams"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsEnqueued,
			JobsCompleted,
			JobsFailed,
			RateLimitRejects,
			QueueDepthGauge,
			InFlightGauge,
			LiveSubscribers,
		)
	})
	return promhttp.Handler()
}
