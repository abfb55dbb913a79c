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
// サービス層・ワーカーから利用する。
type MetricsCollector interface {
	RecordResolution(outcome string)
	RecordAuthAttempt(action string, success bool)
	RecordForcedLogout()
	RecordLogoFetchSuccess()
	RecordLogoFetchFailure(reason string)
	RecordLogoFetchLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	resolutions      *prometheus.CounterVec
	authAttempts     *prometheus.CounterVec
	forcedLogouts    prometheus.Counter
	logoFetchSuccess prometheus.Counter
	logoFetchFail    *prometheus.CounterVec
	logoFetchLatency prometheus.Histogram
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "naraigoto_profile_resolutions_total",
			Help: "プロフィール解決の結果別合計数",
		}, []string{"outcome"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "naraigoto_auth_attempts_total",
			Help: "認証アクションの種別・成否別合計数",
		}, []string{"action", "result"}),
		forcedLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "naraigoto_forced_logouts_total",
			Help: "セッション失効による強制ログアウトの合計数",
		}),
		logoFetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "naraigoto_logo_fetch_success_total",
			Help: "ロゴ取得成功の合計数",
		}),
		logoFetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "naraigoto_logo_fetch_fail_total",
			Help: "ロゴ取得失敗の理由別合計数",
		}, []string{"reason"}),
		logoFetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "naraigoto_logo_fetch_latency_seconds",
			Help:    "ロゴ取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "naraigoto_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.resolutions,
		c.authAttempts,
		c.forcedLogouts,
		c.logoFetchSuccess,
		c.logoFetchFail,
		c.logoFetchLatency,
		c.httpStatus,
	)

	return c
}

// RecordResolution はプロフィール解決の結果を記録する。
// outcomeは"resolved"、"placeholder"、"session_invalid"のいずれか。
func (c *Collector) RecordResolution(outcome string) {
	c.resolutions.WithLabelValues(outcome).Inc()
}

// RecordAuthAttempt は認証アクションの結果を記録する。
// actionは"login"、"signup"、"otp_send"、"otp_verify"など。
func (c *Collector) RecordAuthAttempt(action string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.authAttempts.WithLabelValues(action, result).Inc()
}

// RecordForcedLogout は強制ログアウトを記録する。
func (c *Collector) RecordForcedLogout() {
	c.forcedLogouts.Inc()
}

// RecordLogoFetchSuccess はロゴ取得成功を記録する。
func (c *Collector) RecordLogoFetchSuccess() {
	c.logoFetchSuccess.Inc()
}

// RecordLogoFetchFailure はロゴ取得失敗を記録する。
func (c *Collector) RecordLogoFetchFailure(reason string) {
	c.logoFetchFail.WithLabelValues(reason).Inc()
}

// RecordLogoFetchLatency はロゴ取得のレイテンシを記録する。
func (c *Collector) RecordLogoFetchLatency(duration time.Duration) {
	c.logoFetchLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
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

var _ MetricsCollector = (*Collector)(nil)
