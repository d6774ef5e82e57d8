// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層やミドルウェアから利用する。
type MetricsCollector interface {
	RecordVoteCast()
	RecordUserRegistered()
	RecordCacheHit(key string)
	RecordCacheMiss(key string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordPasswordResetRequested()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	votesCast       prometheus.Counter
	usersRegistered prometheus.Counter
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	requestLatency  prometheus.Histogram
	resetRequests   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		votesCast: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voteman_votes_cast_total",
			Help: "記録された投票の合計数",
		}),
		usersRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voteman_users_registered_total",
			Help: "登録されたユーザーの合計数",
		}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voteman_cache_hits_total",
			Help: "キャッシュキー別のヒット数",
		}, []string{"key"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voteman_cache_misses_total",
			Help: "キャッシュキー別のミス数",
		}, []string{"key"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voteman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "voteman_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		resetRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voteman_password_reset_requests_total",
			Help: "パスワードリセット要求の合計数",
		}),
	}

	reg.MustRegister(
		c.votesCast,
		c.usersRegistered,
		c.cacheHits,
		c.cacheMisses,
		c.httpStatus,
		c.requestLatency,
		c.resetRequests,
	)

	return c
}

// RecordVoteCast は投票の記録を計上する。
func (c *Collector) RecordVoteCast() {
	c.votesCast.Inc()
}

// RecordUserRegistered はユーザー登録を計上する。
func (c *Collector) RecordUserRegistered() {
	c.usersRegistered.Inc()
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit(key string) {
	c.cacheHits.WithLabelValues(key).Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss(key string) {
	c.cacheMisses.WithLabelValues(key).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordPasswordResetRequested はパスワードリセット要求を計上する。
func (c *Collector) RecordPasswordResetRequested() {
	c.resetRequests.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
