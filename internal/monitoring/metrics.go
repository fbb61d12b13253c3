package monitoring

import (
	"context"
	"strconv"
	"time"

	"task-management-api/internal/cache"
	"task-management-api/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taskapi"

// Metrics owns a private registry so tests and multiple servers in one
// process never collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	activeRequests prometheus.Gauge
	jobs           *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Requests currently being served.",
		}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Background jobs by type and outcome.",
		}, []string{"type", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Background job run time.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 60},
		}, []string{"type"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.duration,
		m.activeRequests,
		m.jobs,
		m.jobDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records per route counts and latency. Unmatched paths share one
// label value to keep cardinality bounded.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.activeRequests.Inc()

		c.Next()

		m.activeRequests.Dec()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry}))
}

// ObserveJob has the worker.ResultHook signature.
func (m *Metrics) ObserveJob(jobType worker.JobType, outcome string, elapsed time.Duration) {
	m.jobs.WithLabelValues(string(jobType), outcome).Inc()
	m.jobDuration.WithLabelValues(string(jobType)).Observe(elapsed.Seconds())
}

// RegisterCache exports the cache counters and circuit breaker state.
func (m *Metrics) RegisterCache(stats *cache.CacheMetrics, breaker *cache.CircuitBreaker) {
	counter := func(name, help string, read func(cache.CacheStats) int64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read(stats.GetStats())) })
	}

	m.registry.MustRegister(
		counter("hits_total", "Cache lookups that found a value.", func(s cache.CacheStats) int64 { return s.Hits }),
		counter("misses_total", "Cache lookups that found nothing.", func(s cache.CacheStats) int64 { return s.Misses }),
		counter("errors_total", "Cache operations that failed.", func(s cache.CacheStats) int64 { return s.Errors }),
		counter("sets_total", "Values written to the cache.", func(s cache.CacheStats) int64 { return s.Sets }),
		counter("deletes_total", "Keys removed from the cache.", func(s cache.CacheStats) int64 { return s.Deletes }),
	)

	if breaker != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "circuit_breaker_state",
			Help:      "0 closed, 1 open, 2 half-open.",
		}, func() float64 { return float64(breaker.GetState()) }))
	}
}

// RegisterQueues exports the length of each job queue.
func (m *Metrics) RegisterQueues(queue *worker.JobQueue, names ...string) {
	for _, name := range names {
		name := name
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "queue_length",
			Help:        "Jobs waiting in a queue.",
			ConstLabels: prometheus.Labels{"queue": name},
		}, func() float64 {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			n, err := queue.GetQueueSize(ctx, name)
			if err != nil {
				return -1
			}
			return float64(n)
		}))
	}
}
