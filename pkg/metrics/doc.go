/*
Package metrics provides Prometheus metrics collection and exposition for
durastore.

The metrics package defines and registers all durastore metrics using the
Prometheus client library, giving visibility into transaction outcomes,
flush latency, gate contention, and alarm delivery. Metrics are exposed via
an HTTP endpoint for scraping by Prometheus servers.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │  Transactions: commits, conflicts, retries  │          │
	│  │  Flush: duration, entries written, pending  │          │
	│  │  Gates: input/output wait time              │          │
	│  │  Alarms: fires, scheduled, active count     │          │
	│  │  Storage: op duration, op errors            │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics                           │          │
	│  │  - Handler: promhttp.Handler()              │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metrics Catalog

durastore_txn_commits_total{outcome}:
  - Type: Counter
  - Description: Transactions committed, labeled by outcome (committed/rollback/error)

durastore_txn_conflicts_total:
  - Type: Counter
  - Description: Optimistic-concurrency conflicts detected at commit time

durastore_txn_retries_total:
  - Type: Counter
  - Description: Transaction retries triggered by a conflicting write-set

durastore_txn_duration_seconds:
  - Type: Histogram
  - Description: Time spent inside a transaction closure

durastore_flush_duration_seconds:
  - Type: Histogram
  - Description: Time taken to flush a shadow buffer to backing storage

durastore_flushed_entries_total:
  - Type: Counter
  - Description: Key/value entries written to backing storage by flushes

durastore_pending_flushes:
  - Type: Gauge
  - Description: Flush operations currently in flight for an object

durastore_gate_wait_seconds{gate}:
  - Type: Histogram
  - Description: Time a caller waited to acquire the input or output gate
  - Labels: gate ("input" or "output")

durastore_alarm_fires_total:
  - Type: Counter
  - Description: Alarm handler invocations across all objects

durastore_alarm_scheduled_total{action}:
  - Type: Counter
  - Description: Alarm set/clear operations, labeled by action

durastore_active_alarms:
  - Type: Gauge
  - Description: Objects currently holding a pending alarm

durastore_storage_op_duration_seconds{op}:
  - Type: Histogram
  - Description: Backing storage operation latency, labeled by op name

durastore_storage_op_errors_total{op}:
  - Type: Counter
  - Description: Backing storage operations that returned an error

durastore_objects_active:
  - Type: Gauge
  - Description: Objects with a live storage engine instance

# Usage

	import "github.com/cuemby/durastore/pkg/metrics"

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.FlushDuration)

	metrics.TxnCommitsTotal.WithLabelValues("committed").Inc()

	http.Handle("/metrics", metrics.Handler())

# Design Patterns

Package Init Registration:
  - All metrics registered in init(); MustRegister panics on duplicate
    registration, so a collision surfaces at process start, not under load.

Label Discipline:
  - Labels are bounded enums (outcome, gate, op, action), never object keys
    or namespace IDs, to keep cardinality predictable per object store.

Timer Pattern:
  - Create a Timer at the operation's start, call ObserveDuration or
    ObserveDurationVec once it completes.
*/
package metrics
