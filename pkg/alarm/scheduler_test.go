package alarm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/durastore/pkg/storage"
	"github.com/cuemby/durastore/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	mu       sync.Mutex
	calls    []string
	failOnce map[string]bool
}

func newFakeHandler() *fakeHandler {
	return &fakeHandler{failOnce: make(map[string]bool)}
}

func (f *fakeHandler) handle(ctx context.Context, objectKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOnce[objectKey] {
		f.failOnce[objectKey] = false
		return assert.AnError
	}
	f.calls = append(f.calls, objectKey)
	return nil
}

func (f *fakeHandler) callCount(objectKey string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, k := range f.calls {
		if k == objectKey {
			n++
		}
	}
	return n
}

func TestSchedulerFiresHandlerOnArrival(t *testing.T) {
	h := newFakeHandler()
	s := NewScheduler(storage.NewMemoryFactory(), h.handle)
	s.Start()
	defer s.Stop()

	s.SetAlarm("obj-1", time.Now().Add(5*time.Millisecond).UnixMilli())

	require.Eventually(t, func() bool {
		return h.callCount("obj-1") == 1
	}, time.Second, time.Millisecond, "handler should fire once the scheduled time arrives")
}

func TestSchedulerDeleteAlarmCancelsPendingTimer(t *testing.T) {
	h := newFakeHandler()
	s := NewScheduler(storage.NewMemoryFactory(), h.handle)
	s.Start()
	defer s.Stop()

	s.SetAlarm("obj-1", time.Now().Add(50*time.Millisecond).UnixMilli())
	s.DeleteAlarm("obj-1")

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, h.callCount("obj-1"))
}

func TestSchedulerSetAlarmReplacesExistingTimer(t *testing.T) {
	h := newFakeHandler()
	s := NewScheduler(storage.NewMemoryFactory(), h.handle)
	s.Start()
	defer s.Stop()

	s.SetAlarm("obj-1", time.Now().Add(time.Hour).UnixMilli())
	s.SetAlarm("obj-1", time.Now().Add(5*time.Millisecond).UnixMilli())

	require.Eventually(t, func() bool {
		return h.callCount("obj-1") == 1
	}, time.Second, time.Millisecond, "the rescheduled, sooner time should be the one that fires")
}

func TestSchedulerHandlerErrorLeavesAlarmArmedForRetry(t *testing.T) {
	h := newFakeHandler()
	h.failOnce["obj-1"] = true
	s := NewScheduler(storage.NewMemoryFactory(), h.handle)
	s.Start()
	defer s.Stop()

	s.SetAlarm("obj-1", time.Now().Add(5*time.Millisecond).UnixMilli())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, h.callCount("obj-1"), "failed attempt must not be counted as a successful call")

	s.mu.Lock()
	_, stillArmed := s.alarms["obj-1"]
	s.mu.Unlock()
	assert.True(t, stillArmed, "alarm must remain armed after a handler error so the poll can retry it")
}

func TestSchedulerPollAlarmsCatchesUpMissedTimer(t *testing.T) {
	h := newFakeHandler()
	s := NewScheduler(storage.NewMemoryFactory(), h.handle, WithPollInterval(time.Hour))

	s.mu.Lock()
	s.armLocked("obj-1", time.Now().Add(-time.Second).UnixMilli(), types.AlarmPollWindow)
	s.mu.Unlock()

	s.pollAlarms()

	assert.Equal(t, 1, h.callCount("obj-1"))
}

func TestSchedulerSetAlarmBeyondArmWindowLeavesTimerUnarmed(t *testing.T) {
	h := newFakeHandler()
	s := NewScheduler(storage.NewMemoryFactory(), h.handle)
	s.Start()
	defer s.Stop()

	s.SetAlarm("obj-1", time.Now().Add(time.Hour).UnixMilli())

	s.mu.Lock()
	entry, ok := s.alarms["obj-1"]
	s.mu.Unlock()
	require.True(t, ok)
	assert.Nil(t, entry.timer, "an alarm an hour out should not get a live timer yet")
}

func TestSchedulerPollAlarmsArmsEntryEnteringWindow(t *testing.T) {
	h := newFakeHandler()
	s := NewScheduler(storage.NewMemoryFactory(), h.handle, WithPollInterval(time.Hour))

	scheduled := time.Now().Add(50 * time.Millisecond).UnixMilli()
	s.mu.Lock()
	s.armLocked("obj-1", scheduled, 0) // force unarmed despite the near scheduled time
	entry := s.alarms["obj-1"]
	s.mu.Unlock()
	require.Nil(t, entry.timer)

	s.pollAlarms()

	s.mu.Lock()
	_, stillUnarmed := s.alarms["obj-1"]
	armedNow := stillUnarmed && s.alarms["obj-1"].timer != nil
	s.mu.Unlock()
	require.True(t, armedNow, "pollAlarms should arm an entry once it falls within AlarmPollWindow")

	require.Eventually(t, func() bool {
		return h.callCount("obj-1") == 1
	}, time.Second, time.Millisecond, "the newly armed timer should still fire")
}

func TestSchedulerStopCancelsAllTimersAndClearsState(t *testing.T) {
	h := newFakeHandler()
	s := NewScheduler(storage.NewMemoryFactory(), h.handle)
	s.Start()

	s.SetAlarm("obj-1", time.Now().Add(time.Hour).UnixMilli())
	s.SetAlarm("obj-2", time.Now().Add(time.Hour).UnixMilli())
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.alarms)
}

func TestSchedulerRecoverArmsTimerFromPersistedMetadata(t *testing.T) {
	ctx := context.Background()
	factory := storage.NewMemoryFactory()
	store, err := factory.Open("obj-1")
	require.NoError(t, err)

	scheduled := time.Now().Add(5 * time.Millisecond).UnixMilli()
	require.NoError(t, store.Put(ctx, types.AlarmKey, types.StoredEntry{
		Metadata: types.AlarmMetadata{ScheduledTime: scheduled},
	}))

	h := newFakeHandler()
	s := NewScheduler(factory, h.handle)
	s.Start()
	defer s.Stop()

	require.NoError(t, s.Recover(ctx, "obj-1"))

	require.Eventually(t, func() bool {
		return h.callCount("obj-1") == 1
	}, time.Second, time.Millisecond, "recovered alarm should fire at its persisted scheduled time")
}

func TestSchedulerRecoverWithoutPersistedAlarmIsNoop(t *testing.T) {
	ctx := context.Background()
	factory := storage.NewMemoryFactory()
	_, err := factory.Open("obj-1")
	require.NoError(t, err)

	h := newFakeHandler()
	s := NewScheduler(factory, h.handle)

	require.NoError(t, s.Recover(ctx, "obj-1"))

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, s.alarms)
}
