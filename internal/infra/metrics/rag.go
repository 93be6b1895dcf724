package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(ragRequestsTotal, ragStageLatencyMs, ragContextPassages, liveSessions) }

var (
	ragRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rag_requests_total",
			Help: "Question requests by outcome; failed_stage is empty on success.",
		},
		[]string{"outcome", "failed_stage"},
	)

	ragStageLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rag_stage_latency_ms",
			Help:    "Latency of each pipeline stage in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"stage"},
	)

	ragContextPassages = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rag_context_passages",
			Help:    "Number of passages surviving reranking per request.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
	)

	liveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_sessions_live",
			Help: "Number of chat sessions currently held in memory.",
		},
	)
)

func IncRAGRequest(outcome, failedStage string) {
	ragRequestsTotal.WithLabelValues(norm(outcome), norm(failedStage)).Inc()
}

func ObserveStage(stage string, latencyMs int64) {
	ragStageLatencyMs.WithLabelValues(norm(stage)).Observe(float64(latencyMs))
}

func ObserveContextPassages(n int) {
	ragContextPassages.Observe(float64(n))
}

func SetLiveSessions(n int) {
	liveSessions.Set(float64(n))
}
