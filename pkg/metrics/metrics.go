package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Transaction metrics
	TxnCommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "durastore_txn_commits_total",
			Help: "Total number of transactions committed, by outcome",
		},
		[]string{"outcome"},
	)

	TxnConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "durastore_txn_conflicts_total",
			Help: "Total number of optimistic-concurrency conflicts detected at commit time",
		},
	)

	TxnRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "durastore_txn_retries_total",
			Help: "Total number of transaction retries triggered by a conflicting write-set",
		},
	)

	TxnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "durastore_txn_duration_seconds",
			Help:    "Time spent inside a transaction closure, from start to commit or rollback",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Flush / durability metrics
	FlushDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "durastore_flush_duration_seconds",
			Help:    "Time taken to flush a shadow buffer to backing storage",
			Buckets: prometheus.DefBuckets,
		},
	)

	FlushedEntriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "durastore_flushed_entries_total",
			Help: "Total number of key/value entries written to backing storage by flushes",
		},
	)

	PendingFlushes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "durastore_pending_flushes",
			Help: "Number of flush operations currently in flight for an object",
		},
	)

	// Gate metrics
	GateWaitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "durastore_gate_wait_seconds",
			Help:    "Time a caller waited to acquire the input or output gate",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"gate"},
	)

	// Alarm metrics
	AlarmFiresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "durastore_alarm_fires_total",
			Help: "Total number of times an object's alarm handler was invoked",
		},
	)

	AlarmScheduledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "durastore_alarm_scheduled_total",
			Help: "Total number of alarm set/clear operations, by action",
		},
		[]string{"action"},
	)

	ActiveAlarms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "durastore_active_alarms",
			Help: "Current number of objects with a pending alarm",
		},
	)

	// Storage backend metrics
	StorageOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "durastore_storage_op_duration_seconds",
			Help:    "Time taken by a backing storage operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	StorageOpErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "durastore_storage_op_errors_total",
			Help: "Total number of backing storage operations that returned an error",
		},
		[]string{"op"},
	)

	// Object lifecycle metrics
	ObjectsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "durastore_objects_active",
			Help: "Current number of objects with a live storage engine instance",
		},
	)
)

func init() {
	prometheus.MustRegister(TxnCommitsTotal)
	prometheus.MustRegister(TxnConflictsTotal)
	prometheus.MustRegister(TxnRetriesTotal)
	prometheus.MustRegister(TxnDuration)

	prometheus.MustRegister(FlushDuration)
	prometheus.MustRegister(FlushedEntriesTotal)
	prometheus.MustRegister(PendingFlushes)

	prometheus.MustRegister(GateWaitDuration)

	prometheus.MustRegister(AlarmFiresTotal)
	prometheus.MustRegister(AlarmScheduledTotal)
	prometheus.MustRegister(ActiveAlarms)

	prometheus.MustRegister(StorageOpDuration)
	prometheus.MustRegister(StorageOpErrorsTotal)

	prometheus.MustRegister(ObjectsActive)
}

// Handler returns the Prometheus HTTP handler for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations and recording the elapsed
// duration to a histogram once the operation completes.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer, starting the clock immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
