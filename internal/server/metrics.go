package server

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// costPerCPUHour turns CPU utilisation into a rough hourly cost estimate.
const costPerCPUHour = 0.0001

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	m := &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request durations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *httpMetrics) observe(method, route string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// appCollector samples the host on every scrape and reports it alongside
// the request counter and uptime.
type appCollector struct {
	srv *Server

	requests    *prometheus.Desc
	uptime      *prometheus.Desc
	cpu         *prometheus.Desc
	cpuRatio    *prometheus.Desc
	memory      *prometheus.Desc
	memoryRatio *prometheus.Desc
	fsUsage     *prometheus.Desc
	fsLimit     *prometheus.Desc
	cost        *prometheus.Desc
	timestamp   *prometheus.Desc
}

func newAppCollector(srv *Server) *appCollector {
	container := prometheus.Labels{"container": containerID}
	return &appCollector{
		srv:         srv,
		requests:    prometheus.NewDesc("app_requests_total", "Total number of requests.", nil, nil),
		uptime:      prometheus.NewDesc("app_uptime_seconds", "Application uptime in seconds.", nil, nil),
		// Named after the cAdvisor metric, but the value is the current
		// utilisation, not a running total, so rate() over it is meaningless.
		cpu:         prometheus.NewDesc("container_cpu_usage_seconds_total", "Current CPU utilisation as a fraction of one second per second.", nil, container),
		cpuRatio:    prometheus.NewDesc("app_cpu_usage_ratio", "Used CPU as a fraction of all cores.", nil, container),
		memory:      prometheus.NewDesc("container_memory_usage_bytes", "Memory usage in bytes.", nil, container),
		memoryRatio: prometheus.NewDesc("app_memory_usage_ratio", "Used memory as a fraction of total memory.", nil, container),
		fsUsage:     prometheus.NewDesc("container_fs_usage_bytes", "Filesystem usage in bytes.", nil, container),
		fsLimit:     prometheus.NewDesc("container_fs_limit_bytes", "Filesystem limit in bytes.", nil, container),
		cost:        prometheus.NewDesc("app_cost_per_hour", "Estimated cost per hour.", nil, container),
		timestamp:   prometheus.NewDesc("app_metrics_timestamp", "Last metrics collection timestamp.", nil, nil),
	}
}

func (c *appCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{c.requests, c.uptime, c.cpu, c.cpuRatio, c.memory, c.memoryRatio, c.fsUsage, c.fsLimit, c.cost, c.timestamp} {
		ch <- d
	}
}

func (c *appCollector) Collect(ch chan<- prometheus.Metric) {
	now := c.srv.now()
	ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(c.srv.requests.Load()))
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, now.Sub(c.srv.start).Seconds())
	ch <- prometheus.MustNewConstMetric(c.timestamp, prometheus.GaugeValue, float64(now.Unix()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	snap, err := c.srv.sampler.Sample(ctx)
	if err != nil {
		c.srv.logger.Warn("sampling host for metrics", "error", err)
		ch <- prometheus.NewInvalidMetric(c.cpu, err)
		return
	}

	cpu := snap.CPUPercent / 100
	ch <- prometheus.MustNewConstMetric(c.cpu, prometheus.CounterValue, cpu)
	ch <- prometheus.MustNewConstMetric(c.cpuRatio, prometheus.GaugeValue, cpu)
	ch <- prometheus.MustNewConstMetric(c.memory, prometheus.GaugeValue, float64(snap.MemoryUsed))
	ch <- prometheus.MustNewConstMetric(c.memoryRatio, prometheus.GaugeValue, snap.MemoryPercent/100)
	ch <- prometheus.MustNewConstMetric(c.fsUsage, prometheus.GaugeValue, float64(snap.DiskUsed))
	ch <- prometheus.MustNewConstMetric(c.fsLimit, prometheus.GaugeValue, float64(snap.DiskTotal))
	ch <- prometheus.MustNewConstMetric(c.cost, prometheus.GaugeValue, cpu*costPerCPUHour)
}
