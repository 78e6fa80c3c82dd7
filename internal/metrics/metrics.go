// Package metrics collects and exports Prometheus metrics for promptchain.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ステータスラベル
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Collector はアプリケーションのメトリクスを保持する
// インスタンスごとに専用のRegistryを持つ
type Collector struct {
	registry *prometheus.Registry

	ChainRuns         *prometheus.CounterVec
	LLMRequests       *prometheus.CounterVec
	LLMDuration       *prometheus.HistogramVec
	DocumentsIngested prometheus.Counter
	ChunksIngested    prometheus.Counter
	RPCRequests       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを作成する
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		ChainRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chain_runs_total",
				Help:      "Total number of chain executions",
			},
			[]string{"chain", "status"},
		),
		LLMRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_requests_total",
				Help:      "Total number of LLM requests",
			},
			[]string{"provider", "status"},
		),
		LLMDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_request_duration_seconds",
				Help:      "LLM request duration in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),
		DocumentsIngested: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_ingested_total",
				Help:      "Total number of documents ingested",
			},
		),
		ChunksIngested: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunks_ingested_total",
				Help:      "Total number of chunks embedded and stored",
			},
		),
		RPCRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpc_requests_total",
				Help:      "Total number of JSON-RPC requests",
			},
			[]string{"method", "status"},
		),
	}

	registry.MustRegister(
		c.ChainRuns,
		c.LLMRequests,
		c.LLMDuration,
		c.DocumentsIngested,
		c.ChunksIngested,
		c.RPCRequests,
	)

	return c
}

// ObserveChain はチェーン実行結果を記録する
func (c *Collector) ObserveChain(chain string, err error) {
	if c == nil {
		return
	}
	c.ChainRuns.WithLabelValues(chain, statusOf(err)).Inc()
}

// ObserveLLM はLLM呼び出しの結果と所要時間を記録する
func (c *Collector) ObserveLLM(provider string, started time.Time, err error) {
	if c == nil {
		return
	}
	c.LLMRequests.WithLabelValues(provider, statusOf(err)).Inc()
	c.LLMDuration.WithLabelValues(provider).Observe(time.Since(started).Seconds())
}

// ObserveIngest は取り込んだドキュメント数とチャンク数を記録する
func (c *Collector) ObserveIngest(documents, chunks int) {
	if c == nil {
		return
	}
	c.DocumentsIngested.Add(float64(documents))
	c.ChunksIngested.Add(float64(chunks))
}

// ObserveRPC はJSON-RPCメソッドの呼び出し結果を記録する
func (c *Collector) ObserveRPC(method string, ok bool) {
	if c == nil {
		return
	}
	status := StatusOK
	if !ok {
		status = StatusError
	}
	c.RPCRequests.WithLabelValues(method, status).Inc()
}

// Registry はこのCollectorのRegistryを返す
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler は/metrics用のHTTPハンドラーを返す
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func statusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}
