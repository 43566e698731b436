package observability

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/socialfeed-backend/internal/domain/jobs"
)

type Metrics struct {
	gatherer prometheus.Gatherer

	jobsProcessed      *prometheus.CounterVec
	jobsReaped         prometheus.Counter
	classifierDuration prometheus.Histogram
	tickDuration       prometheus.Histogram
	queueDepth         *prometheus.GaugeVec

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	feedServed     *prometheus.CounterVec
	rankingSynced  *prometheus.CounterVec
	eventsFolded   prometheus.Counter
	profileUpdates *prometheus.CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Enabled defaults to true; METRICS_ENABLED=false turns collection off.
func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return true
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

// Init registers the process-wide metrics on the default registry once.
func Init() *Metrics {
	initOnce.Do(func() {
		if !Enabled() {
			return
		}
		instance = New(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	})
	return instance
}

func Current() *Metrics {
	return instance
}

// New builds a Metrics set on reg. Tests pass a fresh prometheus.Registry.
func New(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: gatherer,
		jobsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "socialfeed_jobs_processed_total",
			Help: "Classification jobs finished, by outcome.",
		}, []string{"status"}),
		jobsReaped: f.NewCounter(prometheus.CounterOpts{
			Name: "socialfeed_jobs_reaped_total",
			Help: "Processing jobs force-failed with Timeout.",
		}),
		classifierDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "socialfeed_classifier_duration_seconds",
			Help:    "Latency of one LLM classification.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80, 120},
		}),
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "socialfeed_processor_tick_duration_seconds",
			Help:    "Duration of one processor tick.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		queueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "socialfeed_queue_depth",
			Help: "Jobs in the classification queue, by status.",
		}, []string{"status"}),
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "socialfeed_api_requests_total",
			Help: "HTTP requests served.",
		}, []string{"method", "route", "status"}),
		apiLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "socialfeed_api_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "socialfeed_api_inflight_requests",
			Help: "HTTP requests in flight.",
		}),
		feedServed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "socialfeed_feed_pages_total",
			Help: "Feed pages served, by source.",
		}, []string{"source"}),
		rankingSynced: f.NewCounterVec(prometheus.CounterOpts{
			Name: "socialfeed_ranking_sync_posts_total",
			Help: "Posts pushed to the ranking service, by outcome.",
		}, []string{"outcome"}),
		eventsFolded: f.NewCounter(prometheus.CounterOpts{
			Name: "socialfeed_interaction_events_folded_total",
			Help: "Interaction events folded into interest profiles.",
		}),
		profileUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "socialfeed_interactions_total",
			Help: "Interactions recorded, by type.",
		}, []string{"type"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveJob(status string) {
	if m == nil {
		return
	}
	m.jobsProcessed.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveReaped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.jobsReaped.Add(float64(n))
}

func (m *Metrics) ObserveClassifier(d time.Duration) {
	if m == nil {
		return
	}
	m.classifierDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}

func (m *Metrics) SetQueueDepth(s jobs.Stats) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(jobs.StatusPending).Set(float64(s.Pending))
	m.queueDepth.WithLabelValues(jobs.StatusProcessing).Set(float64(s.Processing))
	m.queueDepth.WithLabelValues(jobs.StatusFailed).Set(float64(s.Failed))
}

func (m *Metrics) IncInflight() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) DecInflight() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveAPI(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) ObserveFeed(source string) {
	if m == nil {
		return
	}
	m.feedServed.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveRankingSync(synced, failed int) {
	if m == nil {
		return
	}
	m.rankingSynced.WithLabelValues("synced").Add(float64(synced))
	m.rankingSynced.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) ObserveFolded(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.eventsFolded.Add(float64(n))
}

func (m *Metrics) ObserveInteraction(kind string) {
	if m == nil {
		return
	}
	m.profileUpdates.WithLabelValues(kind).Inc()
}
