package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "threadcast"

// Collector exposes Prometheus metrics for inbound HTTP traffic plus the
// posting and engagement pipelines.
type Collector struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	postAttempts   *prometheus.CounterVec
	campaignCycles prometheus.Counter
	engageActions  *prometheus.CounterVec
	engageRestarts prometheus.Counter
}

// NewCollector constructs a collector with its own registry.
func NewCollector() (*Collector, error) {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "path", "status"})

	postAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "campaign",
		Name:      "post_attempts_total",
		Help:      "Posting attempts by outcome.",
	}, []string{"result"})

	campaignCycles := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "campaign",
		Name:      "cycles_total",
		Help:      "Completed repeat cycles.",
	})

	engageActions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engage",
		Name:      "actions_total",
		Help:      "Successful engagement actions by kind.",
	}, []string{"kind"})

	engageRestarts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engage",
		Name:      "restarts_total",
		Help:      "Browser session restarts requested by degraded runs.",
	})

	for _, c := range []prometheus.Collector{
		requestDuration, requestTotal, postAttempts, campaignCycles, engageActions, engageRestarts,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return &Collector{
		registry:        registry,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		postAttempts:    postAttempts,
		campaignCycles:  campaignCycles,
		engageActions:   engageActions,
		engageRestarts:  engageRestarts,
	}, nil
}

// Handler returns an HTTP handler for exposing Prometheus metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler to record HTTP metrics.
func (c *Collector) InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.status)
		path := r.URL.Path

		c.requestTotal.WithLabelValues(r.Method, path, status).Inc()
		c.requestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
	})
}

// RecordPostAttempt counts one posting attempt.
func (c *Collector) RecordPostAttempt(succeeded bool) {
	result := "failure"
	if succeeded {
		result = "success"
	}
	c.postAttempts.WithLabelValues(result).Inc()
}

// RecordCycle counts one completed repeat cycle.
func (c *Collector) RecordCycle() {
	c.campaignCycles.Inc()
}

// RecordEngageAction counts one successful engagement action.
func (c *Collector) RecordEngageAction(kind string) {
	c.engageActions.WithLabelValues(kind).Inc()
}

// RecordEngageRestart counts one session restart.
func (c *Collector) RecordEngageRestart() {
	c.engageRestarts.Inc()
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
