package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(vectorPoolConns, collectionCacheTotal, buildInfo) }

var (
	vectorPoolConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vector_store_pool_conns",
			Help: "Postgres vector store connections by state.",
		},
		[]string{"state"}, // total | idle | acquired
	)

	collectionCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collection_cache_requests_total",
			Help: "Lookups of loaded collection handles in the retrieval gateway.",
		},
		[]string{"result"}, // hit | miss
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rag_build_info",
			Help: "Always 1; labels carry the running build.",
		},
		[]string{"version", "commit", "go_version"},
	)
)

func SetVectorPoolStats(total, idle, acquired int32) {
	vectorPoolConns.WithLabelValues("total").Set(float64(total))
	vectorPoolConns.WithLabelValues("idle").Set(float64(idle))
	vectorPoolConns.WithLabelValues("acquired").Set(float64(acquired))
}

func IncCollectionCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	collectionCacheTotal.WithLabelValues(result).Inc()
}

func SetBuildInfo(version, commit string) {
	buildInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
}
