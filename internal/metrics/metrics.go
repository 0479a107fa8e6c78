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
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordAISuccess(kind string)
	RecordAIFailure(kind string)
	RecordAILatency(kind string, duration time.Duration)
	RecordParseStrategy(strategy string)
	RecordTranscription(success bool)
	RecordHTTPStatus(statusCode int)
}

// AI呼び出し種別のラベル値。
const (
	AIKindTidy    = "tidy"
	AIKindInsight = "insight"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	aiSuccess      *prometheus.CounterVec
	aiFail         *prometheus.CounterVec
	aiLatency      *prometheus.HistogramVec
	parseStrategy  *prometheus.CounterVec
	transcribeOK   prometheus.Counter
	transcribeFail prometheus.Counter
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		aiSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cleannote_ai_success_total",
			Help: "生成AI呼び出し成功の合計数（種別ラベル付き）",
		}, []string{"kind"}),
		aiFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cleannote_ai_fail_total",
			Help: "生成AI呼び出し失敗の合計数（種別ラベル付き）",
		}, []string{"kind"}),
		aiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cleannote_ai_latency_seconds",
			Help:    "生成AI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		parseStrategy: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cleannote_insight_parse_strategy_total",
			Help: "インサイト応答のパースに使われた抽出戦略別の合計数",
		}, []string{"strategy"}),
		transcribeOK: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cleannote_transcribe_success_total",
			Help: "音声文字起こし成功の合計数",
		}),
		transcribeFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cleannote_transcribe_fail_total",
			Help: "音声文字起こし失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cleannote_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.aiSuccess,
		c.aiFail,
		c.aiLatency,
		c.parseStrategy,
		c.transcribeOK,
		c.transcribeFail,
		c.httpStatus,
	)

	return c
}

// RecordAISuccess は生成AI呼び出しの成功を記録する。
func (c *Collector) RecordAISuccess(kind string) {
	c.aiSuccess.WithLabelValues(kind).Inc()
}

// RecordAIFailure は生成AI呼び出しの失敗を記録する。
func (c *Collector) RecordAIFailure(kind string) {
	c.aiFail.WithLabelValues(kind).Inc()
}

// RecordAILatency は生成AI呼び出しのレイテンシを記録する。
func (c *Collector) RecordAILatency(kind string, duration time.Duration) {
	c.aiLatency.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordParseStrategy はインサイト応答の抽出に成功した戦略を記録する。
func (c *Collector) RecordParseStrategy(strategy string) {
	c.parseStrategy.WithLabelValues(strategy).Inc()
}

// RecordTranscription は音声文字起こしの結果を記録する。
func (c *Collector) RecordTranscription(success bool) {
	if success {
		c.transcribeOK.Inc()
	} else {
		c.transcribeFail.Inc()
	}
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// NopCollector は何も記録しないコレクター。テストとメトリクス無効時用。
type NopCollector struct{}

func (NopCollector) RecordAISuccess(kind string)                         {}
func (NopCollector) RecordAIFailure(kind string)                         {}
func (NopCollector) RecordAILatency(kind string, duration time.Duration) {}
func (NopCollector) RecordParseStrategy(strategy string)                 {}
func (NopCollector) RecordTranscription(success bool)                    {}
func (NopCollector) RecordHTTPStatus(statusCode int)                     {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
