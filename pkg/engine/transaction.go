package engine

import (
	"context"
	"runtime"

	"github.com/cuemby/durastore/pkg/metrics"
	"github.com/cuemby/durastore/pkg/types"
)

// Transaction is the closure-scoped handle passed into Engine.Transaction.
// Every read and write goes through a private ShadowStore layered on the
// engine's top-level shadow, so nothing it does is visible to other
// callers until the enclosing attempt commits.
type Transaction struct {
	engine       *Engine
	shadow       *ShadowStore
	startTxnCnt  int64
	writeSet     map[string]struct{}
	rolledBack   bool
	committed    bool
}

func newTransaction(e *Engine, startTxnCnt int64) *Transaction {
	return &Transaction{
		engine:      e,
		shadow:      NewShadowStore(e.shadow, true),
		startTxnCnt: startTxnCnt,
		writeSet:    make(map[string]struct{}),
	}
}

func (t *Transaction) checkUsable() error {
	if t.committed {
		return types.ErrMisuseAfterCommit
	}
	if t.rolledBack {
		return types.ErrMisuseAfterRollback
	}
	return nil
}

func (t *Transaction) addWrite(key string) error {
	if _, ok := t.writeSet[key]; !ok && len(t.writeSet) >= types.MaxTransactionWrites {
		return types.ErrTooManyWrites
	}
	t.writeSet[key] = struct{}{}
	return nil
}

// Get reads key through the transaction's private shadow, recording it in
// the read set used for OCC validation at commit.
func (t *Transaction) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := t.checkUsable(); err != nil {
		return nil, false, err
	}
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	var found bool
	entry, err := WithRead(t.engine.mu, func() (types.StoredEntry, error) {
		e, ok, err := t.shadow.Get(ctx, key)
		found = ok
		return e, err
	})
	if err != nil || !found {
		return nil, found, err
	}
	return entry.Value, true, nil
}

// GetMany reads a batch of keys through the transaction's private shadow.
func (t *Transaction) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	if err := t.checkUsable(); err != nil {
		return nil, err
	}
	if err := validateBatch(keys); err != nil {
		return nil, err
	}
	entries, err := WithRead(t.engine.mu, func() (map[string]types.StoredEntry, error) {
		return t.shadow.GetMany(ctx, keys)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(entries))
	for k, v := range entries {
		out[k] = v.Value
	}
	return out, nil
}

// List enumerates keys through the transaction's private shadow, filtering
// the reserved alarm key.
func (t *Transaction) List(ctx context.Context, opts types.ListOptions) ([]types.KeyEntry, error) {
	if err := t.checkUsable(); err != nil {
		return nil, err
	}
	widened, dropFirst := widenListOptions(opts)
	entries, err := WithRead(t.engine.mu, func() ([]types.KeyEntry, error) {
		return t.shadow.List(ctx, widened)
	})
	if err != nil {
		return nil, err
	}
	return filterListResult(entries, dropFirst, opts.StartAfter, opts.Limit), nil
}

// Put stages key/value in the transaction's private shadow.
func (t *Transaction) Put(key string, value []byte) error {
	if err := t.checkUsable(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}
	if err := t.addWrite(key); err != nil {
		return err
	}
	return WithWriteErr(t.engine.mu, func() error {
		t.shadow.Put(key, types.StoredEntry{Value: value})
		return nil
	})
}

// Delete stages a tombstone for key in the transaction's private shadow.
func (t *Transaction) Delete(ctx context.Context, key string) (bool, error) {
	if err := t.checkUsable(); err != nil {
		return false, err
	}
	if err := validateKey(key); err != nil {
		return false, err
	}
	if err := t.addWrite(key); err != nil {
		return false, err
	}
	return WithWrite(t.engine.mu, func() (bool, error) {
		return t.shadow.Delete(ctx, key)
	})
}

// SetAlarm stages an alarm change in the transaction's private shadow.
func (t *Transaction) SetAlarm(scheduledTime int64) error {
	if err := t.checkUsable(); err != nil {
		return err
	}
	if !t.engine.alarmExists {
		return types.ErrNoAlarmHandler
	}
	if scheduledTime <= 0 {
		return types.ErrAlarmTimeNonPositive
	}
	if err := t.addWrite(types.AlarmKey); err != nil {
		return err
	}
	return WithWriteErr(t.engine.mu, func() error {
		t.shadow.SetAlarm(scheduledTime)
		return nil
	})
}

// DeleteAlarm stages an alarm clear in the transaction's private shadow.
func (t *Transaction) DeleteAlarm() error {
	if err := t.checkUsable(); err != nil {
		return err
	}
	if err := t.addWrite(types.AlarmKey); err != nil {
		return err
	}
	return WithWriteErr(t.engine.mu, func() error {
		t.shadow.DeleteAlarm()
		return nil
	})
}

// Rollback discards every pending write staged on this transaction attempt.
// Idempotent-safe to call from a deferred cleanup; a no-op once the
// transaction has already committed or rolled back.
func (t *Transaction) Rollback() {
	if t.committed || t.rolledBack {
		return
	}
	t.rolledBack = true
}

// Transaction runs fn against a fresh, closure-scoped Transaction, retrying
// under optimistic concurrency control until it commits without conflict.
// Per spec.md §4.5: a fresh OutputGate backs each attempt, and a missing
// write-set history entry (evicted past the 16-slot retention window) is
// treated as a conflict, forcing a retry rather than risking a stale read.
func (e *Engine) Transaction(ctx context.Context, fn func(*Transaction) error) error {
	for {
		committed, conflict, err := e.attemptTransaction(ctx, fn)
		if err != nil {
			return err
		}
		if committed {
			return nil
		}
		if conflict {
			metrics.TxnRetriesTotal.Inc()
			runtime.Gosched()
			continue
		}
	}
}

// RunTransaction wraps Engine.Transaction for closures that produce a
// value, since Go methods cannot themselves carry type parameters.
func RunTransaction[T any](ctx context.Context, e *Engine, fn func(*Transaction) (T, error)) (T, error) {
	var result T
	err := e.Transaction(ctx, func(t *Transaction) error {
		var fnErr error
		result, fnErr = fn(t)
		return fnErr
	})
	return result, err
}

// attemptTransaction runs one OCC attempt. Each attempt gets its own
// OutputGate rather than sharing the engine's — concurrent transactions
// (and the closure's own direct engine calls) must not serialize against
// each other here, only their eventual commits do, under e.mu.
func (e *Engine) attemptTransaction(ctx context.Context, fn func(*Transaction) error) (committed, conflict bool, err error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TxnDuration)

	attemptGate := NewOutputGate()

	startTxnCnt, _ := WithRead(e.mu, func() (int64, error) { return e.txnCount, nil })
	txn := newTransaction(e, startTxnCnt)

	if runErr := attemptGate.RunWith(func() error { return fn(txn) }); runErr != nil {
		metrics.TxnCommitsTotal.WithLabelValues("error").Inc()
		return false, false, runErr
	}
	if txn.rolledBack {
		metrics.TxnCommitsTotal.WithLabelValues("rollback").Inc()
		return true, false, nil
	}

	committed, err = WithWrite(e.mu, func() (bool, error) {
		if e.hasConflict(txn) {
			metrics.TxnConflictsTotal.Inc()
			conflict = true
			return false, nil
		}
		e.mergeTransaction(ctx, txn)
		metrics.TxnCommitsTotal.WithLabelValues("committed").Inc()
		txn.committed = true
		return true, nil
	})
	return committed, conflict, err
}

// hasConflict implements spec.md §4.5's OCC validation: for every
// historical write-set recorded between startTxnCount (exclusive) and the
// current txnCount (inclusive), a non-empty intersection with the
// transaction's read set is a conflict. A write-set that has aged out of
// the retention ring is treated as an unconditional conflict.
func (e *Engine) hasConflict(t *Transaction) bool {
	readSet := t.shadow.ReadSet()
	if len(readSet) == 0 {
		return false
	}
	for txnNum := t.startTxnCnt + 1; txnNum <= e.txnCount; txnNum++ {
		writeSet, ok := e.history[txnNum]
		if !ok {
			return true
		}
		for k := range writeSet {
			if _, read := readSet[k]; read {
				return true
			}
		}
	}
	return false
}

// mergeTransaction folds a committed transaction's private shadow into the
// engine's top-level shadow, records its write-set into the history ring,
// and triggers a flush. Must be called while holding the write lock.
func (e *Engine) mergeTransaction(ctx context.Context, t *Transaction) {
	for k, c := range t.shadow.Copies() {
		if c.tombstone {
			e.shadow.copies[k] = &shadowCopy{tombstone: true}
			e.deletedBatches = append(e.deletedBatches, &deleteBatch{keys: []string{k}})
			continue
		}
		e.shadow.copies[k] = c
	}
	switch t.shadow.alarm {
	case AlarmSet:
		e.shadow.SetAlarm(t.shadow.alarmTime)
	case AlarmCleared:
		e.shadow.DeleteAlarm()
	}

	if len(t.writeSet) > 0 {
		e.commitWriteSet(t.writeSet)
	}

	runtime.Gosched()
	_ = e.flushLocked(ctx)
}
