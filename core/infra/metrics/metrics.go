package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics captures counters for the build pipeline.
type Metrics interface {
	IncJobsStarted()
	IncJobsCompleted(status string)
	ObserveStageDuration(stage string, seconds float64)
	AddFilesMaterialized(n int)
}

// ServerMetrics captures request metrics for the HTTP API.
type ServerMetrics interface {
	ObserveRequest(method, route, status string, durationSeconds float64)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncJobsStarted()                      {}
func (Noop) IncJobsCompleted(string)              {}
func (Noop) ObserveStageDuration(string, float64) {}
func (Noop) AddFilesMaterialized(int)             {}

// Registration happens once per process. Later constructor calls get
// working collectors that are simply not exported on /metrics.
var (
	promOnce       sync.Once
	serverPromOnce sync.Once
)

// Prom implements Metrics backed by Prometheus collectors.
type Prom struct {
	jobsStarted       prometheus.Counter
	jobsCompleted     *prometheus.CounterVec
	stageDuration     *prometheus.HistogramVec
	filesMaterialized prometheus.Counter
}

func NewProm(namespace string) *Prom {
	p := &Prom{
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_started_total",
			Help:      "Build jobs started",
		}),
		jobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_completed_total",
			Help:      "Build jobs completed by terminal status",
		}, []string{"status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration by stage name",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		filesMaterialized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_materialized_total",
			Help:      "Files written from generator output",
		}),
	}
	promOnce.Do(func() {
		prometheus.MustRegister(p.jobsStarted, p.jobsCompleted, p.stageDuration, p.filesMaterialized)
	})
	return p
}

func (p *Prom) IncJobsStarted() {
	p.jobsStarted.Inc()
}

func (p *Prom) IncJobsCompleted(status string) {
	p.jobsCompleted.WithLabelValues(status).Inc()
}

func (p *Prom) ObserveStageDuration(stage string, seconds float64) {
	p.stageDuration.WithLabelValues(stage).Observe(seconds)
}

func (p *Prom) AddFilesMaterialized(n int) {
	p.filesMaterialized.Add(float64(n))
}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// --- Server metrics ---

type serverProm struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewServerProm constructs ServerMetrics with counters/histograms.
func NewServerProm(namespace string) ServerMetrics {
	s := &serverProm{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method/route/status",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method/route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	serverPromOnce.Do(func() {
		prometheus.MustRegister(s.requests, s.latency)
	})
	return s
}

func (s *serverProm) ObserveRequest(method, route, status string, durationSeconds float64) {
	s.requests.WithLabelValues(method, route, status).Inc()
	s.latency.WithLabelValues(method, route).Observe(durationSeconds)
}
