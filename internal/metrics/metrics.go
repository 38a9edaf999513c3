// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CommentRecorder はコメント操作の結果を記録するインターフェース。
type CommentRecorder interface {
	RecordCommentCreated()
	RecordCommentEdited()
	RecordCommentDeleted()
	RecordCommentRejected(reason string)
}

// ImportRecorder はニュース取り込みの結果を記録するインターフェース。
type ImportRecorder interface {
	RecordImportSuccess(sourceURL string)
	RecordImportFailure(sourceURL string, reason string)
	RecordParseFailure(sourceURL string)
	RecordImportLatency(duration time.Duration)
	RecordNewsImported(count int)
}

// HTTPRecorder はHTTPレスポンスのステータスを記録するインターフェース。
type HTTPRecorder interface {
	RecordHTTPStatus(statusCode int)
}

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層、ミドルウェアから利用する。
type MetricsCollector interface {
	CommentRecorder
	ImportRecorder
	HTTPRecorder
}

// コメントが拒否された理由のラベル値。
const (
	RejectReasonUnauthorized = "unauthorized"
	RejectReasonInvalid      = "invalid"
	RejectReasonNotFound     = "not_found"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	commentsCreated  prometheus.Counter
	commentsEdited   prometheus.Counter
	commentsDeleted  prometheus.Counter
	commentsRejected *prometheus.CounterVec
	importSuccess    prometheus.Counter
	importFail       *prometheus.CounterVec
	parseFail        prometheus.Counter
	httpStatus       *prometheus.CounterVec
	importLatency    prometheus.Histogram
	newsImported     prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		commentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsboard_comments_created_total",
			Help: "作成されたコメントの合計数",
		}),
		commentsEdited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsboard_comments_edited_total",
			Help: "編集されたコメントの合計数",
		}),
		commentsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsboard_comments_deleted_total",
			Help: "削除されたコメントの合計数",
		}),
		commentsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsboard_comments_rejected_total",
			Help: "拒否されたコメント操作の理由別合計数",
		}, []string{"reason"}),
		importSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsboard_import_success_total",
			Help: "ニュース取り込み成功の合計数",
		}),
		importFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsboard_import_fail_total",
			Help: "ニュース取り込み失敗の理由別合計数",
		}, []string{"reason"}),
		parseFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsboard_parse_fail_total",
			Help: "フィードパース失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsboard_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		importLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "newsboard_import_latency_seconds",
			Help:    "ニュース取り込みのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		newsImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsboard_news_imported_total",
			Help: "新規に取り込まれたニュースの合計数",
		}),
	}

	reg.MustRegister(
		c.commentsCreated,
		c.commentsEdited,
		c.commentsDeleted,
		c.commentsRejected,
		c.importSuccess,
		c.importFail,
		c.parseFail,
		c.httpStatus,
		c.importLatency,
		c.newsImported,
	)

	return c
}

// RecordCommentCreated はコメント作成を記録する。
func (c *Collector) RecordCommentCreated() {
	c.commentsCreated.Inc()
}

// RecordCommentEdited はコメント編集を記録する。
func (c *Collector) RecordCommentEdited() {
	c.commentsEdited.Inc()
}

// RecordCommentDeleted はコメント削除を記録する。
func (c *Collector) RecordCommentDeleted() {
	c.commentsDeleted.Inc()
}

// RecordCommentRejected は拒否されたコメント操作を理由付きで記録する。
func (c *Collector) RecordCommentRejected(reason string) {
	c.commentsRejected.WithLabelValues(reason).Inc()
}

// RecordImportSuccess は取り込み成功を記録する。
func (c *Collector) RecordImportSuccess(sourceURL string) {
	c.importSuccess.Inc()
}

// RecordImportFailure は取り込み失敗を記録する。
// ラベルの濃度を抑えるため取り込み元URLはラベルにしない。
func (c *Collector) RecordImportFailure(sourceURL string, reason string) {
	c.importFail.WithLabelValues(reason).Inc()
}

// RecordParseFailure はパース失敗を記録する。
func (c *Collector) RecordParseFailure(sourceURL string) {
	c.parseFail.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordImportLatency は取り込みのレイテンシを記録する。
func (c *Collector) RecordImportLatency(duration time.Duration) {
	c.importLatency.Observe(duration.Seconds())
}

// RecordNewsImported は新規に取り込まれたニュース数を記録する。
func (c *Collector) RecordNewsImported(count int) {
	c.newsImported.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// workerプロセスのスクレイプ用に使用する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

var _ MetricsCollector = (*Collector)(nil)
