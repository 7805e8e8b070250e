// Package metrics はポータルのPrometheusメトリクスを提供する。
//
// テストで複数のサーバーを同時に生成できるよう、グローバルレジストリではなく
// サーバーごとのレジストリに登録する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portal"

// Metrics はポータルが公開するメトリクスの集合。
type Metrics struct {
	registry *prometheus.Registry

	// HTTPRequestsTotal はメソッド・ルート・ステータスごとのリクエスト数。
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestDuration はリクエストの処理時間。
	HTTPRequestDuration *prometheus.HistogramVec
	// GateDecisionsTotal はアクセスゲートの判定結果ごとの件数。
	GateDecisionsTotal *prometheus.CounterVec
	// UpstreamRequestsTotal はエンドポイントと結果ごとの上流呼び出し数。
	UpstreamRequestsTotal *prometheus.CounterVec
}

// New は新しいレジストリにメトリクスを登録して返す。
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by method, route, and status.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10),
			},
			[]string{"method", "route"},
		),
		GateDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gate_decisions_total",
				Help:      "Access gate decisions by outcome.",
			},
			[]string{"decision"},
		),
		UpstreamRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Backend calls made by the proxy handlers, by endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GateDecisionsTotal,
		m.UpstreamRequestsTotal,
	)
	return m
}

// Handler は /metrics 用のハンドラを返す。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware はリクエスト数と処理時間を記録するGinミドルウェアを返す。
// ルートはGinのルートパターン（"/api/news/:id"）で集計し、未登録パスは "unmatched" にまとめる。
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// ObserveGate はゲートの判定を記録する。nilレシーバーでも安全に呼べる。
func (m *Metrics) ObserveGate(decision string) {
	if m == nil {
		return
	}
	m.GateDecisionsTotal.WithLabelValues(decision).Inc()
}

// ObserveUpstream は上流呼び出しの結果を記録する。nilレシーバーでも安全に呼べる。
func (m *Metrics) ObserveUpstream(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.UpstreamRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
}
