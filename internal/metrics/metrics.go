package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CentralRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "surveymap_central_requests_total",
		Help: "Total survey service requests by operation",
	}, []string{"op"})
	CentralFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "surveymap_central_fail_total",
		Help: "Total survey service failures by operation and kind (auth, upstream, network, decode)",
	}, []string{"op", "kind"})
	CentralDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "surveymap_central_duration_ms",
		Help:    "Survey service call duration in milliseconds",
		Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
	}, []string{"op"})
	StoreFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "surveymap_store_fetch_total",
		Help: "Store fetch outcomes by operation (ok, cached, shared, stale, fail, no_token)",
	}, []string{"op", "result"})
	GeoPointsDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "surveymap_geopoints_dropped_total",
		Help: "Submission records excluded from geopoint extraction by reason",
	}, []string{"reason"})
	RelayRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "surveymap_relay_requests_total",
		Help: "Total relay requests by route and status class",
	}, []string{"route", "status"})
	RelayDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "surveymap_relay_duration_ms",
		Help:    "Relay request duration in milliseconds",
		Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
	})
	RedisHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "surveymap_redis_hits_total",
		Help: "Total relay cache hits",
	})
	RedisMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "surveymap_redis_misses_total",
		Help: "Total relay cache misses",
	})
)

func init() {
	prometheus.MustRegister(CentralRequestsTotal)
	prometheus.MustRegister(CentralFailTotal)
	prometheus.MustRegister(CentralDurationMs)
	prometheus.MustRegister(StoreFetchTotal)
	prometheus.MustRegister(GeoPointsDroppedTotal)
	prometheus.MustRegister(RelayRequestsTotal)
	prometheus.MustRegister(RelayDurationMs)
	prometheus.MustRegister(RedisHitsTotal)
	prometheus.MustRegister(RedisMissesTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
