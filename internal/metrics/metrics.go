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
// 認証フロー、セッション管理、OAuthクライアントから利用する。
type MetricsCollector interface {
	RecordLoginRedirect()
	RecordCallback(outcome string)
	RecordLogout()
	RecordSessionCreated()
	RecordSessionDestroyed()
	RecordSessionsCleaned(count int64)
	ObserveProviderRequest(endpoint, outcome string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginRedirects    prometheus.Counter
	callbacks         *prometheus.CounterVec
	logouts           prometheus.Counter
	sessionsCreated   prometheus.Counter
	sessionsDestroyed prometheus.Counter
	sessionsCleaned   prometheus.Counter
	providerLatency   *prometheus.HistogramVec
	httpStatus        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginRedirects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ghlogin_login_redirects_total",
			Help: "GitHubの認可画面へリダイレクトした回数",
		}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ghlogin_oauth_callbacks_total",
			Help: "OAuthコールバックの結果別の件数",
		}, []string{"outcome"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ghlogin_logouts_total",
			Help: "ログアウト成功の合計数",
		}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ghlogin_sessions_created_total",
			Help: "保存されたセッションの合計数",
		}),
		sessionsDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ghlogin_sessions_destroyed_total",
			Help: "破棄されたセッションの合計数",
		}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ghlogin_sessions_cleaned_total",
			Help: "期限切れとして掃除されたセッションの合計数",
		}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ghlogin_provider_request_duration_seconds",
			Help:    "GitHubへのリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint", "outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ghlogin_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.loginRedirects,
		c.callbacks,
		c.logouts,
		c.sessionsCreated,
		c.sessionsDestroyed,
		c.sessionsCleaned,
		c.providerLatency,
		c.httpStatus,
	)

	return c
}

// RecordLoginRedirect は認可画面へのリダイレクトを記録する。
func (c *Collector) RecordLoginRedirect() {
	c.loginRedirects.Inc()
}

// RecordCallback はOAuthコールバックの結果を記録する。
func (c *Collector) RecordCallback(outcome string) {
	c.callbacks.WithLabelValues(outcome).Inc()
}

// RecordLogout はログアウト成功を記録する。
func (c *Collector) RecordLogout() {
	c.logouts.Inc()
}

// RecordSessionCreated はセッションの保存を記録する。
func (c *Collector) RecordSessionCreated() {
	c.sessionsCreated.Inc()
}

// RecordSessionDestroyed はセッションの破棄を記録する。
func (c *Collector) RecordSessionDestroyed() {
	c.sessionsDestroyed.Inc()
}

// RecordSessionsCleaned は掃除したセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
}

// ObserveProviderRequest はGitHubへのリクエストの所要時間を記録する。
func (c *Collector) ObserveProviderRequest(endpoint, outcome string, duration time.Duration) {
	c.providerLatency.WithLabelValues(endpoint, outcome).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントだけを提供するHTTPハンドラーを返す。
// HTTPサーバーを持たないworkerプロセスで使う。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
