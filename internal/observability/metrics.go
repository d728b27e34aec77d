package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpDurationHistogram  *prometheus.HistogramVec
	batchAssembledCounter  prometheus.Counter
	entriesEncodedCounter  prometheus.Counter
	uploadAttemptCounter   *prometheus.CounterVec
	returnProcessedCounter *prometheus.CounterVec
	unmatchedReturnCounter prometheus.Counter
	idempotencyCounter     *prometheus.CounterVec
	workerRunCounter       *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		batchAssembledCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ach_batches_assembled_total",
			Help: "Number of batches that reached the generated state",
		})

		entriesEncodedCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ach_entries_encoded_total",
			Help: "Number of entry detail records written to generated files",
		})

		uploadAttemptCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ach_upload_attempts_total",
			Help: "File upload attempts by outcome",
		}, []string{"result"})

		returnProcessedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ach_returns_processed_total",
			Help: "Processor returns applied, by return code",
		}, []string{"code"})

		unmatchedReturnCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ach_returns_unmatched_total",
			Help: "Return entries whose trace number matched no batch item",
		})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			batchAssembledCounter,
			entriesEncodedCounter,
			uploadAttemptCounter,
			returnProcessedCounter,
			unmatchedReturnCounter,
			idempotencyCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementBatchAssembled() {
	if batchAssembledCounter == nil {
		return
	}
	batchAssembledCounter.Inc()
}

func AddEntriesEncoded(n int) {
	if entriesEncodedCounter == nil {
		return
	}
	entriesEncodedCounter.Add(float64(n))
}

func IncrementUploadAttempt(result string) {
	if uploadAttemptCounter == nil {
		return
	}
	uploadAttemptCounter.WithLabelValues(result).Inc()
}

func IncrementReturnProcessed(code string) {
	if returnProcessedCounter == nil {
		return
	}
	returnProcessedCounter.WithLabelValues(code).Inc()
}

func IncrementUnmatchedReturn() {
	if unmatchedReturnCounter == nil {
		return
	}
	unmatchedReturnCounter.Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
