package types

import "time"

const (
	// MaxKeyBytes is the largest key accepted by the storage engine, in bytes.
	MaxKeyBytes = 2048

	// MaxValueBytes is the logical value size advertised to callers.
	MaxValueBytes = 128 * 1024

	// MaxStoredValueBytes is the largest value accepted as stored, allowing
	// a small amount of headroom over the logical cap for codec overhead.
	MaxStoredValueBytes = MaxValueBytes + 32

	// MaxBatchKeys bounds any single get/put/delete batch.
	MaxBatchKeys = 128

	// MaxTransactionWrites bounds the number of distinct keys a single
	// transaction may write.
	MaxTransactionWrites = 128

	// WriteSetHistoryCapacity is the size of the engine's OCC validation
	// ring buffer (number of retained write-sets).
	WriteSetHistoryCapacity = 16

	// AlarmPollInterval is how often the alarm scheduler re-scans its
	// in-memory table for alarms due within the next window.
	AlarmPollInterval = 30 * time.Second

	// AlarmPollWindow is the lookahead used both at setup and at each poll
	// tick to decide whether an alarm needs an individual timer armed.
	AlarmPollWindow = 30 * time.Second

	// AlarmArmWindow is the lookahead used by setAlarm to decide whether to
	// arm/re-arm an individual timer immediately, slightly larger than the
	// poll window so an alarm set just before a poll tick still gets armed.
	AlarmArmWindow = 31 * time.Second
)

// AlarmKey is the reserved backing-store key that mirrors an object's
// scheduled alarm time. It must never appear in results returned by list.
const AlarmKey = "__MINIFLARE_ALARMS__"

// StoredEntry is the unit of storage: an opaque value plus optional
// metadata. Metadata is used by the engine only to persist an alarm's
// scheduled time against the reserved AlarmKey.
type StoredEntry struct {
	Value    []byte
	Metadata any
}

// Clone returns a copy of the entry whose Value slice is independent of the
// receiver's, so caller mutation of a returned entry can never affect
// stored state.
func (e StoredEntry) Clone() StoredEntry {
	if e.Value == nil {
		return StoredEntry{Metadata: e.Metadata}
	}
	v := make([]byte, len(e.Value))
	copy(v, e.Value)
	return StoredEntry{Value: v, Metadata: e.Metadata}
}

// AlarmMetadata is the shape persisted alongside AlarmKey.
type AlarmMetadata struct {
	ScheduledTime int64 `json:"scheduledTime"`
}

// ListOptions controls range enumeration across the shadow and backing
// store. Start and StartAfter are mutually exclusive.
type ListOptions struct {
	Start      string
	StartAfter string
	End        string
	Prefix     string
	Reverse    bool
	Limit      int
}

// KeyEntry is a single result row from a list operation.
type KeyEntry struct {
	Name     string
	Metadata any
}
