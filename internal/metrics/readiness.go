package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReadinessState exposes the readiness gate state: 0 uninitialized, 1 loading, 2 ready, 3 failed.
var ReadinessState = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "readiness_state",
	Help:      "Readiness gate state (0=UNINITIALIZED, 1=LOADING, 2=READY, 3=FAILED)",
})

// IndexDocuments exposes the number of indexed documents once loaded.
var IndexDocuments = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "index_documents",
	Help:      "Number of documents in the loaded index",
})

func init() {
	prometheus.MustRegister(ReadinessState)
	prometheus.MustRegister(IndexDocuments)
}
