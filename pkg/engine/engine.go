// Package engine implements the per-object transactional storage engine:
// a write-coalescing shadow layer, optimistic-concurrency transactions,
// and the I/O gates that serialize request delivery and track unconfirmed
// writes, all sitting on top of a pluggable storage.Store.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/cuemby/durastore/pkg/log"
	"github.com/cuemby/durastore/pkg/metrics"
	"github.com/cuemby/durastore/pkg/storage"
	"github.com/cuemby/durastore/pkg/types"
	"github.com/rs/zerolog"
)

// AlarmBridge is the engine's handle on an alarm scheduler, used to mirror
// alarm changes made through flush without the engine depending on the
// scheduler's implementation.
type AlarmBridge interface {
	SetAlarm(objectKey string, scheduledTimeMs int64)
	DeleteAlarm(objectKey string)
}

type deleteBatch struct {
	keys   []string
	result int
}

// Engine is the per-object storage engine described by the storage
// contract: one per addressed object, outliving individual requests.
type Engine struct {
	objectKey string
	store     storage.Store
	codec     types.Codec
	log       zerolog.Logger

	mu     *RWMutex
	shadow *ShadowStore

	txnCount int64
	history  map[int64]map[string]struct{}

	deletedBatches []*deleteBatch

	flushMu        sync.Mutex
	flushCond      *sync.Cond
	pendingFlushes int

	alarmBridge AlarmBridge
	alarmExists bool

	inputGate  *InputGate
	outputGate *OutputGate
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithCodec overrides the default JSON codec.
func WithCodec(codec types.Codec) Option {
	return func(e *Engine) { e.codec = codec }
}

// WithAlarmHandler marks the object as having a registered alarm handler,
// enabling setAlarm (spec.md: alarmExists gates setAlarm/getAlarm).
func WithAlarmHandler(bridge AlarmBridge) Option {
	return func(e *Engine) {
		e.alarmExists = true
		e.alarmBridge = bridge
	}
}

// New constructs a StorageEngine for a single object, addressed by
// objectKey, backed by store.
func New(objectKey string, store storage.Store, opts ...Option) *Engine {
	e := &Engine{
		objectKey:  objectKey,
		store:      store,
		codec:      types.DefaultCodec,
		log:        log.WithObjectKey(objectKey),
		mu:         NewRWMutex(),
		history:    make(map[int64]map[string]struct{}),
		inputGate:  NewInputGate(),
		outputGate: NewOutputGate(),
	}
	e.shadow = NewShadowStore(storeBacking{store: store}, false)
	e.flushCond = sync.NewCond(&e.flushMu)
	for _, opt := range opts {
		opt(e)
	}
	metrics.ObjectsActive.Inc()
	return e
}

// Close disposes of the engine, releasing its backing store handle. Any
// alarm registered through an AlarmBridge is left untouched: the bridge
// outlives individual engines.
func (e *Engine) Close() error {
	metrics.ObjectsActive.Dec()
	return e.store.Close()
}

func validateKey(key string) error {
	if key == "" {
		return types.ErrUndefinedKey
	}
	if len(key) > types.MaxKeyBytes {
		return fmt.Errorf("%w: %d bytes", types.ErrKeyTooLarge, len(key))
	}
	return nil
}

func validateValue(value []byte) error {
	if value == nil {
		return types.ErrUndefinedValue
	}
	if len(value) > types.MaxStoredValueBytes {
		return fmt.Errorf("%w: %d bytes", types.ErrValueTooLarge, len(value))
	}
	return nil
}

func validateBatch(keys []string) error {
	if len(keys) > types.MaxBatchKeys {
		return fmt.Errorf("%w: %d keys", types.ErrTooManyKeys, len(keys))
	}
	return nil
}

// Get returns the value stored at key, or ok=false if absent.
func (e *Engine) Get(ctx context.Context, key string, opts ...ReadOption) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	o := applyReadOptions(opts)
	var value []byte
	var found bool
	fn := func() error {
		return WithReadErr(e.mu, func() error {
			entry, ok, err := e.shadow.Get(ctx, key)
			if err != nil {
				return err
			}
			found = ok
			if ok {
				value = entry.Value
			}
			return nil
		})
	}
	var err error
	if o.AllowConcurrency {
		err = fn()
	} else {
		err = e.inputGate.RunWithClosed(fn)
	}
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

// GetMany returns entries for every present key among keys.
func (e *Engine) GetMany(ctx context.Context, keys []string, opts ...ReadOption) (map[string][]byte, error) {
	if err := validateBatch(keys); err != nil {
		return nil, err
	}
	for _, k := range keys {
		if err := validateKey(k); err != nil {
			return nil, err
		}
	}
	o := applyReadOptions(opts)
	var resultHolder map[string][]byte
	fn := func() error {
		return WithReadErr(e.mu, func() error {
			entries, err := e.shadow.GetMany(ctx, keys)
			if err != nil {
				return err
			}
			out := make(map[string][]byte, len(entries))
			for k, v := range entries {
				out[k] = v.Value
			}
			resultHolder = out
			return nil
		})
	}
	var err error
	if o.AllowConcurrency {
		err = fn()
	} else {
		err = e.inputGate.RunWithClosed(fn)
	}
	if err != nil {
		return nil, err
	}
	return resultHolder, nil
}

// List enumerates keys, filtering out the reserved alarm key per
// spec.md §4.3.
func (e *Engine) List(ctx context.Context, opts types.ListOptions, readOpts ...ReadOption) ([]types.KeyEntry, error) {
	widened, dropFirst := widenListOptions(opts)
	o := applyReadOptions(readOpts)

	var result []types.KeyEntry
	fn := func() error {
		return WithReadErr(e.mu, func() error {
			entries, err := e.shadow.List(ctx, widened)
			if err != nil {
				return err
			}
			result = filterListResult(entries, dropFirst, opts.StartAfter, opts.Limit)
			return nil
		})
	}
	var err error
	if o.AllowConcurrency {
		err = fn()
	} else {
		err = e.inputGate.RunWithClosed(fn)
	}
	return result, err
}

// widenListOptions implements spec.md §4.3: widen the limit by one to
// absorb the reserved alarm key, and translate startAfter into an
// inclusive start so the engine can detect and drop a leading match. When
// Start is also set, both are passed through so the shadow rejects them.
func widenListOptions(opts types.ListOptions) (widened types.ListOptions, dropFirst bool) {
	widened = opts
	if opts.Limit > 0 {
		widened.Limit = opts.Limit + 1
	}
	if opts.StartAfter != "" && opts.Start == "" {
		widened.Start = opts.StartAfter
		widened.StartAfter = ""
		dropFirst = true
	}
	return widened, dropFirst
}

func filterListResult(entries []types.KeyEntry, dropFirst bool, startAfter string, limit int) []types.KeyEntry {
	out := make([]types.KeyEntry, 0, len(entries))
	for i, e := range entries {
		if e.Name == types.AlarmKey {
			continue
		}
		if dropFirst && i == 0 && e.Name == startAfter {
			continue
		}
		out = append(out, e)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// GetAlarm returns the object's currently scheduled alarm time, or
// ok=false if none is set. Returns ok=false without error when the object
// has no alarm handler.
func (e *Engine) GetAlarm(ctx context.Context) (int64, bool, error) {
	if !e.alarmExists {
		return 0, false, nil
	}
	var t int64
	var ok bool
	err := WithReadErr(e.mu, func() error {
		var err error
		t, ok, err = e.shadow.GetAlarm(ctx)
		return err
	})
	return t, ok, err
}

// Put writes key/value, following the direct write pipeline of
// spec.md §4.5.
func (e *Engine) Put(ctx context.Context, key string, value []byte, opts ...WriteOption) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}
	return e.directWrite(ctx, opts, func() error {
		return WithWriteErr(e.mu, func() error {
			e.shadow.Put(key, types.StoredEntry{Value: value})
			e.recordWrite(key)
			return nil
		})
	})
}

// PutMany writes a batch of key/value pairs.
func (e *Engine) PutMany(ctx context.Context, entries map[string][]byte, opts ...WriteOption) error {
	if len(entries) > types.MaxBatchKeys {
		return fmt.Errorf("%w: %d pairs", types.ErrTooManyPairs, len(entries))
	}
	for k, v := range entries {
		if err := validateKey(k); err != nil {
			return err
		}
		if err := validateValue(v); err != nil {
			return err
		}
	}
	return e.directWrite(ctx, opts, func() error {
		return WithWriteErr(e.mu, func() error {
			for k, v := range entries {
				e.shadow.Put(k, types.StoredEntry{Value: v})
				e.recordWrite(k)
			}
			return nil
		})
	})
}

// Delete removes key, returning whether it was present beforehand.
func (e *Engine) Delete(ctx context.Context, key string, opts ...WriteOption) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	var existed bool
	err := e.directWrite(ctx, opts, func() error {
		return WithWriteErr(e.mu, func() error {
			var err error
			existed, err = e.shadow.Delete(ctx, key)
			if err != nil {
				return err
			}
			e.deletedBatches = append(e.deletedBatches, &deleteBatch{keys: []string{key}})
			e.recordWrite(key)
			return nil
		})
	})
	return existed, err
}

// DeleteMany removes a batch of keys, returning the count present
// beforehand.
func (e *Engine) DeleteMany(ctx context.Context, keys []string, opts ...WriteOption) (int, error) {
	if err := validateBatch(keys); err != nil {
		return 0, err
	}
	for _, k := range keys {
		if err := validateKey(k); err != nil {
			return 0, err
		}
	}
	var count int
	err := e.directWrite(ctx, opts, func() error {
		return WithWriteErr(e.mu, func() error {
			var err error
			count, err = e.shadow.DeleteMany(ctx, keys)
			if err != nil {
				return err
			}
			e.deletedBatches = append(e.deletedBatches, &deleteBatch{keys: append([]string(nil), keys...)})
			for _, k := range keys {
				e.recordWrite(k)
			}
			return nil
		})
	})
	return count, err
}

// SetAlarm schedules the object's alarm for scheduledTime (ms since
// epoch). Fails with ErrNoAlarmHandler if the object has no registered
// alarm handler, or ErrAlarmTimeNonPositive if scheduledTime <= 0.
func (e *Engine) SetAlarm(ctx context.Context, scheduledTime int64, opts ...WriteOption) error {
	if !e.alarmExists {
		return types.ErrNoAlarmHandler
	}
	if scheduledTime <= 0 {
		return types.ErrAlarmTimeNonPositive
	}
	return e.directWrite(ctx, opts, func() error {
		return WithWriteErr(e.mu, func() error {
			e.shadow.SetAlarm(scheduledTime)
			e.recordWrite(types.AlarmKey)
			return nil
		})
	})
}

// DeleteAlarm clears any scheduled alarm.
func (e *Engine) DeleteAlarm(ctx context.Context, opts ...WriteOption) error {
	return e.directWrite(ctx, opts, func() error {
		return WithWriteErr(e.mu, func() error {
			e.shadow.DeleteAlarm()
			e.recordWrite(types.AlarmKey)
			return nil
		})
	})
}

// DeleteAll clears every key in the object, including pending shadow
// writes, by listing the full key space and deleting it in batches.
// Not available inside a transaction (spec.md §4.4).
func (e *Engine) DeleteAll(ctx context.Context, opts ...WriteOption) error {
	return e.directWrite(ctx, opts, func() error {
		return WithWriteErr(e.mu, func() error {
			const sweepLimit = types.MaxBatchKeys
			writeSet := make(map[string]struct{})
			defer func() {
				if len(writeSet) > 0 {
					e.commitWriteSet(writeSet)
				}
			}()
			for {
				entries, err := e.shadow.List(ctx, types.ListOptions{Limit: sweepLimit})
				if err != nil {
					return err
				}
				var keys []string
				for _, en := range entries {
					if en.Name == types.AlarmKey {
						continue
					}
					keys = append(keys, en.Name)
				}
				if len(keys) == 0 {
					return nil
				}
				if _, err := e.shadow.DeleteMany(ctx, keys); err != nil {
					return err
				}
				e.deletedBatches = append(e.deletedBatches, &deleteBatch{keys: keys})
				for _, k := range keys {
					writeSet[k] = struct{}{}
				}
				if len(entries) < sweepLimit {
					return nil
				}
			}
		})
	})
}

// recordWrite commits a one-key write-set as its own entry in the
// transaction-validation history, so every call bumps txnCount. Called
// while holding the write lock.
func (e *Engine) recordWrite(key string) {
	e.commitWriteSet(map[string]struct{}{key: {}})
}

// commitWriteSet bumps txnCount and records writeSet into the history
// ring, evicting the entry that falls out of retention. Must be called
// while holding the write lock.
func (e *Engine) commitWriteSet(writeSet map[string]struct{}) int64 {
	e.txnCount++
	e.history[e.txnCount] = writeSet
	delete(e.history, e.txnCount-types.WriteSetHistoryCapacity)
	return e.txnCount
}

// directWrite implements the gate wrapping and yield-then-flush pipeline
// shared by every direct (non-transactional) write operation.
func (e *Engine) directWrite(ctx context.Context, opts []WriteOption, mutate func() error) error {
	o := applyWriteOptions(opts)

	pipeline := func() error {
		if err := mutate(); err != nil {
			return err
		}
		// Yield once so sibling calls issued in the same tick can
		// piggyback on the coming flush (write-coalescing, P7).
		runtime.Gosched()
		return e.flush(ctx)
	}

	run := func() error {
		if o.AllowConcurrency {
			return pipeline()
		}
		return e.inputGate.RunWithClosed(pipeline)
	}

	if o.AllowUnconfirmed {
		// Stage the mutation before returning so later reads see it; only
		// the flush is left unconfirmed. Counting it as pending up front
		// makes Sync wait for it.
		stage := mutate
		if !o.AllowConcurrency {
			stage = func() error { return e.inputGate.RunWithClosed(mutate) }
		}
		if err := stage(); err != nil {
			return err
		}
		e.beginFlush()
		e.outputGate.WaitUntil(func() error {
			defer e.endFlush()
			runtime.Gosched()
			return e.flush(ctx)
		})
		return nil
	}
	return e.outputGate.RunWith(run)
}

// flush acquires the write lock and drains the shadow's pending writes to
// the backing store. Callers that already hold the write lock (the
// transaction commit path) must use flushLocked instead.
func (e *Engine) flush(ctx context.Context) error {
	return WithWriteErr(e.mu, func() error {
		return e.flushLocked(ctx)
	})
}

// flushLocked is the body of flush, factored out so the transaction commit
// path can invoke it without trying to re-acquire the (non-reentrant)
// write lock it already holds.
func (e *Engine) flushLocked(ctx context.Context) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.FlushDuration)

	e.beginFlush()
	defer e.endFlush()

	if err := e.flushAlarmState(ctx); err != nil {
		return err
	}

	if len(e.shadow.Copies()) == 0 && len(e.deletedBatches) == 0 {
		return nil
	}

	batches := e.deletedBatches
	e.deletedBatches = nil

	allDeleted := make(map[string]struct{})
	for _, b := range batches {
		count, err := e.store.DeleteMany(ctx, b.keys)
		if err != nil {
			return fmt.Errorf("flush delete batch: %w", err)
		}
		b.result = count
		for _, k := range b.keys {
			allDeleted[k] = struct{}{}
		}
	}

	snapshot := make(map[string]*shadowCopy, len(e.shadow.Copies()))
	for k, v := range e.shadow.Copies() {
		snapshot[k] = v
	}

	putEntries := make(map[string]types.StoredEntry)
	var deleteKeys []string
	for k, c := range snapshot {
		if c.tombstone {
			if _, already := allDeleted[k]; !already {
				deleteKeys = append(deleteKeys, k)
			}
			continue
		}
		putEntries[k] = c.entry
	}

	if len(putEntries) > 0 {
		if err := e.store.PutMany(ctx, putEntries); err != nil {
			return fmt.Errorf("flush put_many: %w", err)
		}
		metrics.FlushedEntriesTotal.Add(float64(len(putEntries)))
	}
	if len(deleteKeys) > 0 {
		if _, err := e.store.DeleteMany(ctx, deleteKeys); err != nil {
			return fmt.Errorf("flush delete_many: %w", err)
		}
	}

	copies := e.shadow.Copies()
	for k, snap := range snapshot {
		if copies[k] == snap {
			delete(copies, k)
		}
	}
	return nil
}

func (e *Engine) flushAlarmState(ctx context.Context) error {
	switch e.shadow.alarm {
	case AlarmSet:
		t := e.shadow.alarmTime
		entry := types.StoredEntry{Value: []byte{}, Metadata: types.AlarmMetadata{ScheduledTime: t}}
		if err := e.store.Put(ctx, types.AlarmKey, entry); err != nil {
			return fmt.Errorf("flush alarm set: %w", err)
		}
		if e.alarmBridge != nil {
			e.alarmBridge.SetAlarm(e.objectKey, t)
		}
		metrics.AlarmScheduledTotal.WithLabelValues("set").Inc()
	case AlarmCleared:
		if _, err := e.store.Delete(ctx, types.AlarmKey); err != nil {
			return fmt.Errorf("flush alarm clear: %w", err)
		}
		if e.alarmBridge != nil {
			e.alarmBridge.DeleteAlarm(e.objectKey)
		}
		metrics.AlarmScheduledTotal.WithLabelValues("cleared").Inc()
	}
	if e.shadow.alarm != AlarmUnchanged {
		e.shadow.alarm = AlarmUnchanged
		e.shadow.alarmTime = 0
	}
	return nil
}

func (e *Engine) beginFlush() {
	e.flushMu.Lock()
	e.pendingFlushes++
	metrics.PendingFlushes.Set(float64(e.pendingFlushes))
	e.flushMu.Unlock()
}

func (e *Engine) endFlush() {
	e.flushMu.Lock()
	e.pendingFlushes--
	metrics.PendingFlushes.Set(float64(e.pendingFlushes))
	if e.pendingFlushes == 0 {
		e.flushCond.Broadcast()
	}
	e.flushMu.Unlock()
}

// Sync blocks until every in-flight flush has completed.
func (e *Engine) Sync(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.flushMu.Lock()
		for e.pendingFlushes > 0 {
			e.flushCond.Wait()
		}
		e.flushMu.Unlock()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
