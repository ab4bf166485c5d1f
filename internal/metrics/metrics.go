// Package metrics собирает Prometheus-метрики кэша и HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector реализует запись метрик кэша ответов и HTTP-запросов.
type Collector struct {
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheEvictions *prometheus.CounterVec
	cacheEntries   prometheus.Gauge
	httpRequests   *prometheus.CounterVec
	httpLatency    *prometheus.HistogramVec
}

// NewCollector создаёт Collector и регистрирует метрики в reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "placenotes_cache_hits_total",
			Help: "Попадания в кэш ответов по типу запроса.",
		}, []string{"kind"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "placenotes_cache_misses_total",
			Help: "Промахи кэша ответов по типу запроса.",
		}, []string{"kind"}),
		cacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "placenotes_cache_evictions_total",
			Help: "Вытеснения из кэша по причине (ttl, capacity, write, read_state, hide, delete, remote).",
		}, []string{"reason"}),
		cacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "placenotes_cache_entries",
			Help: "Текущее число записей в кэше ответов.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "placenotes_http_requests_total",
			Help: "HTTP-запросы по маршруту, методу и коду ответа.",
		}, []string{"method", "route", "code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "placenotes_http_request_duration_seconds",
			Help:    "Длительность обработки HTTP-запросов.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.cacheHits,
		c.cacheMisses,
		c.cacheEvictions,
		c.cacheEntries,
		c.httpRequests,
		c.httpLatency,
	)

	return c
}

// CacheHit записывает попадание в кэш.
func (c *Collector) CacheHit(kind string) {
	c.cacheHits.WithLabelValues(kind).Inc()
}

// CacheMiss записывает промах кэша.
func (c *Collector) CacheMiss(kind string) {
	c.cacheMisses.WithLabelValues(kind).Inc()
}

// CacheEvicted записывает n вытеснений по причине reason.
func (c *Collector) CacheEvicted(reason string, n int) {
	if n <= 0 {
		return
	}
	c.cacheEvictions.WithLabelValues(reason).Add(float64(n))
}

// CacheSize выставляет текущее число записей.
func (c *Collector) CacheSize(n int) {
	c.cacheEntries.Set(float64(n))
}

// ObserveHTTP записывает завершённый HTTP-запрос.
func (c *Collector) ObserveHTTP(method, route string, status int, dur time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}
