package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var countJobsInQueue = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "count_jobs_in_queue",
	Help: "Number of jobs in queue",
})

var dispatcherSignalCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "dispatcher_signal_count",
	Help: "How often the dispatcher has signaled to start worker",
})

var activeWorkerCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "active_worker_count",
	Help: "Number of active workers",
})

var cacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cache_lookups_total",
	Help: "Cache lookups labelled by kind (answer/tool) and outcome (volatile/durable/miss)",
}, []string{"kind", "outcome"})

var embeddingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ingest_embeddings_total",
	Help: "Chunk embeddings labelled by outcome (computed/skipped)",
}, []string{"outcome"})

var jobsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sync_jobs_completed_total",
	Help: "Finished sync jobs labelled by status (success/failed)",
}, []string{"status"})

var retrievalCandidates = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "retrieval_candidate_count",
	Help:    "Authorized candidates considered per retrieval.",
	Buckets: []float64{0, 10, 50, 100, 500, 1000, 5000},
})

type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) CaptureWriteHeaderMetrics(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

func IncrementJobsInQueue() {
	countJobsInQueue.Inc()
}

func DecrementJobsInQueue() {
	countJobsInQueue.Dec()
}

func StartDispatcherSignalCount() {
	dispatcherSignalCount.Inc()
}

func IncrementActiveWorkerCount() {
	activeWorkerCount.Inc()
}
func DecrementActiveWorkerCount() {
	activeWorkerCount.Dec()
}

func RecordCacheLookup(kind string, outcome string) {
	cacheLookupsTotal.WithLabelValues(kind, outcome).Inc()
}

func RecordEmbedding(outcome string) {
	embeddingsTotal.WithLabelValues(outcome).Inc()
}

func RecordJobCompleted(status string) {
	jobsCompletedTotal.WithLabelValues(status).Inc()
}

func RecordRetrievalCandidates(count int) {
	retrievalCandidates.Observe(float64(count))
}

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "process_request_duration_seconds",
	Help:    "Total time spent in ProcessRequest.",
	Buckets: []float64{.1, .5, 1, 2, 5, 10, 30},
}, []string{"status"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dependency_latency_seconds",
	Help:    "Latency of external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
}, []string{"service"})

func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	dependencyLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

func CaptureJobMetrics(label string, timeElapsed time.Duration) {
	requestDuration.WithLabelValues(label).Observe(timeElapsed.Seconds())
}
