package observability

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "beadring"

// Metrics implements every hook interface on top of Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	stageDuration *prometheus.HistogramVec
	generations   *prometheus.CounterVec
	resolveFailed prometheus.Counter
	cacheEvents   *prometheus.CounterVec
	cacheBytes    *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	httpErrors    *prometheus.CounterVec
	queuePending  prometheus.Gauge
	queueRunning  prometheus.Gauge
	queueWait     prometheus.Histogram
	taskFailures  prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg gets a fresh registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{registry: reg}

	m.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Time spent in each generation stage",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	}, []string{"stage", "result"})
	m.generations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "generations_total",
		Help:      "Generations by status and artifact cache outcome",
	}, []string{"status", "cache_hit"})
	m.resolveFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "resolve_failures_total",
		Help:      "Bead images that could not be resolved",
	})
	m.cacheEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "events_total",
		Help:      "Cache events by cache and kind (hit, miss, set, evict)",
	}, []string{"cache", "event"})
	m.cacheBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "bytes_total",
		Help:      "Bytes written to or evicted from a cache",
	}, []string{"cache", "event"})
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "responses_total",
		Help:      "HTTP responses by host and status code",
	}, []string{"host", "code"})
	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Image download latency",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	}, []string{"host"})
	m.httpErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "errors_total",
		Help:      "Requests that failed without a response",
	}, []string{"host"})
	m.queuePending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "loader",
		Name:      "pending",
		Help:      "Tasks waiting for a slot",
	})
	m.queueRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "loader",
		Name:      "running",
		Help:      "Tasks currently running",
	})
	m.queueWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "loader",
		Name:      "wait_seconds",
		Help:      "Time a task spent queued before starting",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
	})
	m.taskFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "loader",
		Name:      "task_failures_total",
		Help:      "Tasks that returned an error",
	})

	reg.MustRegister(
		m.stageDuration, m.generations, m.resolveFailed,
		m.cacheEvents, m.cacheBytes,
		m.httpRequests, m.httpDuration, m.httpErrors,
		m.queuePending, m.queueRunning, m.queueWait, m.taskFailures,
	)
	return m
}

// Install registers m as the process-wide hooks for every category.
func (m *Metrics) Install() {
	SetPipelineHooks(m)
	SetCacheHooks(m)
	SetHTTPHooks(m)
	SetLoaderHooks(m)
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteText writes all gathered metrics in the Prometheus text format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) OnLayoutStart(context.Context, int) {}

func (m *Metrics) OnLayoutComplete(_ context.Context, _ int, d time.Duration, err error) {
	m.stageDuration.WithLabelValues("layout", result(err)).Observe(d.Seconds())
}

func (m *Metrics) OnResolveStart(context.Context, int) {}

func (m *Metrics) OnResolveComplete(_ context.Context, failed int, d time.Duration) {
	m.stageDuration.WithLabelValues("resolve", "ok").Observe(d.Seconds())
	m.resolveFailed.Add(float64(failed))
}

func (m *Metrics) OnRenderStart(context.Context, string) {}

func (m *Metrics) OnRenderComplete(_ context.Context, _ string, d time.Duration, err error) {
	m.stageDuration.WithLabelValues("render", result(err)).Observe(d.Seconds())
}

func (m *Metrics) OnGenerationComplete(_ context.Context, status string, hit bool, d time.Duration) {
	m.generations.WithLabelValues(status, strconv.FormatBool(hit)).Inc()
	m.stageDuration.WithLabelValues("generation", status).Observe(d.Seconds())
}

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheEvents.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheEvents.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.cacheEvents.WithLabelValues(keyType, "set").Inc()
	m.cacheBytes.WithLabelValues(keyType, "set").Add(float64(size))
}

func (m *Metrics) OnCacheEvict(_ context.Context, keyType string, size int) {
	m.cacheEvents.WithLabelValues(keyType, "evict").Inc()
	m.cacheBytes.WithLabelValues(keyType, "evict").Add(float64(size))
}

func (m *Metrics) OnRequest(context.Context, string, string, string) {}

func (m *Metrics) OnResponse(_ context.Context, _, host, _ string, code int, d time.Duration) {
	m.httpRequests.WithLabelValues(host, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(host).Observe(d.Seconds())
}

func (m *Metrics) OnError(_ context.Context, _, host, _ string, _ error) {
	m.httpErrors.WithLabelValues(host).Inc()
}

func (m *Metrics) OnEnqueue(_ context.Context, pending int) {
	m.queuePending.Set(float64(pending))
}

func (m *Metrics) OnStart(_ context.Context, running, pending int, waited time.Duration) {
	m.queueRunning.Set(float64(running))
	m.queuePending.Set(float64(pending))
	m.queueWait.Observe(waited.Seconds())
}

func (m *Metrics) OnFinish(_ context.Context, running, pending int, _ time.Duration, err error) {
	m.queueRunning.Set(float64(running))
	m.queuePending.Set(float64(pending))
	if err != nil {
		m.taskFailures.Inc()
	}
}

var (
	_ PipelineHooks = (*Metrics)(nil)
	_ CacheHooks    = (*Metrics)(nil)
	_ HTTPHooks     = (*Metrics)(nil)
	_ LoaderHooks   = (*Metrics)(nil)
)
