// Package metrics exposes Prometheus collectors for compiles and jobs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reportcompiler"

var (
	compileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compile_total",
			Help:      "Compiles by result (ok or the error kind)",
		},
		[]string{"result"},
	)

	compileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compile_duration_seconds",
			Help:      "Duration of whole compiles",
			Buckets:   []float64{1, 2, 5, 10, 20, 40, 80, 160, 320},
		},
	)

	renderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      "Duration of LibreOffice conversions by result",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 180},
		},
		[]string{"result"},
	)

	placeholdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "placeholders_total",
			Help:      "Placeholders compiled by kind (overlay, merge)",
		},
		[]string{"kind"},
	)

	overlayPages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overlay_pages_total",
			Help:      "Source pages drawn into overlay tables",
		},
	)

	mergePages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_pages_total",
			Help:      "Source pages spliced into reports",
		},
	)

	redactedMarkers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redacted_markers_total",
			Help:      "Residual marker occurrences removed from output",
		},
	)

	jobsInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_inflight",
			Help:      "Compile jobs currently held by workers",
		},
	)

	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Service jobs by result (done, retry, dlq, canceled)",
		},
		[]string{"result"},
	)

	breakerEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_events_total",
			Help:      "Renderer circuit breaker events by action",
		},
		[]string{"action"},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Queue depth gauges for stream, delayed and dlq",
		},
		[]string{"type"},
	)
)

// Init registers collectors.
func Init() {
	prometheus.MustRegister(compileTotal, compileDuration, renderDuration, placeholdersTotal,
		overlayPages, mergePages, redactedMarkers, jobsInflight, jobsTotal, breakerEvents, queueDepth)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

// ObserveCompile records one finished compile.
func ObserveCompile(result string, dur time.Duration) {
	compileTotal.WithLabelValues(result).Inc()
	compileDuration.Observe(dur.Seconds())
}

func ObserveRender(result string, dur time.Duration) {
	renderDuration.WithLabelValues(result).Observe(dur.Seconds())
}

func IncPlaceholder(kind string) { placeholdersTotal.WithLabelValues(kind).Inc() }
func AddOverlayPages(n int) { overlayPages.Add(float64(n)) }
func AddMergePages(n int) { mergePages.Add(float64(n)) }
func AddRedactedMarkers(n int) { redactedMarkers.Add(float64(n)) }
func JobStarted() { jobsInflight.Inc() }
func JobFinished(result string) { jobsInflight.Dec(); jobsTotal.WithLabelValues(result).Inc() }
func BreakerOpened() { breakerEvents.WithLabelValues("opened").Inc() }
func BreakerClosed() { breakerEvents.WithLabelValues("closed").Inc() }
func SetQueueDepth(kind string, v int64) { queueDepth.WithLabelValues(kind).Set(float64(v)) }
