package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(ingestFilesTotal, ingestChunksTotal) }

var (
	ingestFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_files_total",
			Help: "Total number of documents ingested, labeled by source and status.",
		},
		[]string{"source", "status"}, // source: 'upload', 'seed'; status: 'completed', 'skipped', 'failed'
	)

	ingestChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_chunks_total",
			Help: "Total number of chunks written per collection.",
		},
		[]string{"collection"},
	)
)

func IncIngestFile(source, status string) {
	ingestFilesTotal.WithLabelValues(norm(source), norm(status)).Inc()
}

func AddIngestChunks(collection string, n int) {
	ingestChunksTotal.WithLabelValues(collection).Add(float64(n))
}
