package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// value ищет серию name с заданными метками и возвращает её значение
// (counter, gauge или число наблюдений histogram).
func value(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	mfs, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}

	series:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue series
				}
			}

			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}

	t.Fatalf("series %s%v not found", name, labels)
	return 0
}

func TestCollector_Cache(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.CacheHit("area")
	c.CacheHit("area")
	c.CacheMiss("inbox")
	c.CacheEvicted("write", 3)
	c.CacheEvicted("write", 0)
	c.CacheSize(7)

	require.Equal(t, 2.0, value(t, reg, "placenotes_cache_hits_total", map[string]string{"kind": "area"}))
	require.Equal(t, 1.0, value(t, reg, "placenotes_cache_misses_total", map[string]string{"kind": "inbox"}))
	require.Equal(t, 3.0, value(t, reg, "placenotes_cache_evictions_total", map[string]string{"reason": "write"}))
	require.Equal(t, 7.0, value(t, reg, "placenotes_cache_entries", nil))
}

func TestCollector_HTTP(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveHTTP("GET", "/messages/near", 200, 15*time.Millisecond)
	c.ObserveHTTP("GET", "/messages/near", 400, time.Millisecond)

	route := map[string]string{"method": "GET", "route": "/messages/near"}
	require.Equal(t, 1.0, value(t, reg, "placenotes_http_requests_total",
		map[string]string{"method": "GET", "route": "/messages/near", "code": "200"}))
	require.Equal(t, 1.0, value(t, reg, "placenotes_http_requests_total",
		map[string]string{"method": "GET", "route": "/messages/near", "code": "400"}))
	require.Equal(t, 2.0, value(t, reg, "placenotes_http_request_duration_seconds", route))
}

func TestNewCollector_DoubleRegistrationPanics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	NewCollector(reg)
	require.Panics(t, func() { NewCollector(reg) })
}
