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
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordLoginSuccess()
	RecordLoginFailure()
	RecordAuthDenied(reason string)
	RecordTokenIssued(tokenType string)
	IncSecurityEvent(eventType string)
	RecordRateLimited(limiter string)
	RecordItemsMerged(kind string, count int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess   prometheus.Counter
	loginFailure   prometheus.Counter
	authDenied     *prometheus.CounterVec
	tokensIssued   *prometheus.CounterVec
	securityEvents *prometheus.CounterVec
	rateLimited    *prometheus.CounterVec
	itemsMerged    *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ichiba_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ichiba_login_failure_total",
			Help: "ログイン失敗の合計数",
		}),
		authDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ichiba_auth_denied_total",
			Help: "認証・認可による拒否の合計数（理由別）",
		}, []string{"reason"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ichiba_tokens_issued_total",
			Help: "発行されたトークンの合計数（種別別）",
		}, []string{"type"}),
		securityEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ichiba_security_events_total",
			Help: "記録されたセキュリティイベントの合計数（種別別）",
		}, []string{"event_type"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ichiba_rate_limited_total",
			Help: "レート制限で拒否されたリクエストの合計数（制限種別別）",
		}, []string{"limiter"}),
		itemsMerged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ichiba_items_merged_total",
			Help: "ログイン時にサーバーへマージされたアイテムの合計数（種別別）",
		}, []string{"kind"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ichiba_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ichiba_request_duration_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFailure,
		c.authDenied,
		c.tokensIssued,
		c.securityEvents,
		c.rateLimited,
		c.itemsMerged,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFailure.Inc()
}

// RecordAuthDenied は認証・認可による拒否を理由付きで記録する。
func (c *Collector) RecordAuthDenied(reason string) {
	c.authDenied.WithLabelValues(reason).Inc()
}

// RecordTokenIssued はトークン発行を種別付きで記録する。
func (c *Collector) RecordTokenIssued(tokenType string) {
	c.tokensIssued.WithLabelValues(tokenType).Inc()
}

// IncSecurityEvent はセキュリティイベントを種別付きで記録する。
func (c *Collector) IncSecurityEvent(eventType string) {
	c.securityEvents.WithLabelValues(eventType).Inc()
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited(limiter string) {
	c.rateLimited.WithLabelValues(limiter).Inc()
}

// RecordItemsMerged はログイン時マージで移送されたアイテム数を記録する。
func (c *Collector) RecordItemsMerged(kind string, count int) {
	c.itemsMerged.WithLabelValues(kind).Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
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
