package httpapi

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsSet struct {
	requests  *prometheus.CounterVec
	appErrors *prometheus.CounterVec
	convert   prometheus.Histogram
	proxies   prometheus.Gauge
	handler   gin.HandlerFunc
}

func newMetrics(reg *prometheus.Registry) *metricsSet {
	f := promauto.With(reg)
	return &metricsSet{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clashmerge_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"route", "status"}),
		appErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clashmerge_app_errors_total",
			Help: "Application errors returned to clients.",
		}, []string{"stage", "code"}),
		convert: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "clashmerge_convert_duration_seconds",
			Help:    "Duration of successful /sub conversions.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		proxies: f.NewGauge(prometheus.GaugeOpts{
			Name: "clashmerge_last_convert_proxies",
			Help: "Number of proxies in the last converted config.",
		}),
		handler: gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	}
}

func (m *metricsSet) incRequest(route string, status int) {
	if route == "" {
		route = "(unknown)"
	}
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func (m *metricsSet) incAppError(stage, code string) {
	stage = strings.TrimSpace(stage)
	code = strings.TrimSpace(code)
	if stage == "" {
		stage = "(unknown)"
	}
	if code == "" {
		code = "(unknown)"
	}
	m.appErrors.WithLabelValues(stage, code).Inc()
}
