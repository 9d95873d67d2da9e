// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// セッションのライフサイクルイベント種別
const (
	EventStarted = "started"
	EventEnded   = "ended"
	EventManual  = "manual"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// SessionRecorder は勤務セッションのサービス層から利用するメトリクス記録のインターフェース。
type SessionRecorder interface {
	RecordSessionEvent(event string)
	RecordSessionDuration(minutes int)
	RecordConflict(code string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	sessionEvents     *prometheus.CounterVec
	sessionDuration   prometheus.Histogram
	conflicts         *prometheus.CounterVec
	httpStatus        *prometheus.CounterVec
	httpLatency       prometheus.Histogram
	authSessionsPurge prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timecard_session_events_total",
			Help: "勤務セッションのライフサイクルイベント数",
		}, []string{"event"}),
		sessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "timecard_session_duration_minutes",
			Help: "終了した勤務セッションの所要時間（分）",
			// 15分から16時間まで
			Buckets: []float64{15, 30, 60, 120, 240, 360, 480, 600, 720, 960},
		}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timecard_session_conflicts_total",
			Help: "状態の不整合により拒否された操作数",
		}, []string{"code"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "timecard_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "timecard_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		authSessionsPurge: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timecard_auth_sessions_purged_total",
			Help: "クリーンアップで削除された期限切れログインセッション数",
		}),
	}

	reg.MustRegister(
		c.sessionEvents,
		c.sessionDuration,
		c.conflicts,
		c.httpStatus,
		c.httpLatency,
		c.authSessionsPurge,
	)

	return c
}

// RecordSessionEvent はセッションのライフサイクルイベントを記録する。
func (c *Collector) RecordSessionEvent(event string) {
	c.sessionEvents.WithLabelValues(event).Inc()
}

// RecordSessionDuration は終了したセッションの所要時間を記録する。
func (c *Collector) RecordSessionDuration(minutes int) {
	c.sessionDuration.Observe(float64(minutes))
}

// RecordConflict は競合により拒否された操作を記録する。
func (c *Collector) RecordConflict(code string) {
	c.conflicts.WithLabelValues(code).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordHTTPLatency はHTTPリクエストの処理時間を記録する。
func (c *Collector) RecordHTTPLatency(d time.Duration) {
	c.httpLatency.Observe(d.Seconds())
}

// RecordAuthSessionsPurged は削除された期限切れログインセッション数を記録する。
func (c *Collector) RecordAuthSessionsPurged(count int64) {
	c.authSessionsPurge.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないSessionRecorder。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordSessionEvent(string) {}
func (Nop) RecordSessionDuration(int) {}
func (Nop) RecordConflict(string) {}

var (
	_ SessionRecorder = (*Collector)(nil)
	_ SessionRecorder = Nop{}
)
