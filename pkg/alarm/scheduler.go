// Package alarm implements the process-wide alarm scheduler: a registry of
// per-object wake times backed by individual timers plus a periodic
// catch-up poll, so an object's alarm still fires after a process restart
// drops its in-memory timer.
package alarm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/durastore/pkg/log"
	"github.com/cuemby/durastore/pkg/metrics"
	"github.com/cuemby/durastore/pkg/storage"
	"github.com/cuemby/durastore/pkg/types"
	"github.com/rs/zerolog"
)

// Handler is invoked when an object's alarm fires. Returning an error
// leaves the alarm in place for the next poll to retry.
type Handler func(ctx context.Context, objectKey string) error

type alarmEntry struct {
	scheduledTime int64
	// timer is nil when scheduledTime falls outside the current arm
	// window: the entry is tracked but has no live timer until a later
	// poll brings it within types.AlarmPollWindow.
	timer *time.Timer
}

// Scheduler is the process-wide alarm registry described by the storage
// contract: one per running process, shared by every object's engine
// through the AlarmBridge interface.
type Scheduler struct {
	factory storage.Factory
	handler Handler
	logger  zerolog.Logger

	mu     sync.Mutex
	alarms map[string]*alarmEntry

	pollTicker *time.Ticker
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithPollInterval overrides the default 30s catch-up poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		s.pollTicker.Reset(d)
	}
}

// NewScheduler constructs a Scheduler backed by factory, the per-object
// store factory used to persist and recover scheduled times.
func NewScheduler(factory storage.Factory, handler Handler, opts ...Option) *Scheduler {
	s := &Scheduler{
		factory:    factory,
		handler:    handler,
		logger:     log.WithComponent("alarm"),
		alarms:     make(map[string]*alarmEntry),
		pollTicker: time.NewTicker(types.AlarmPollInterval),
		stopCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the catch-up poll loop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop halts the poll loop and cancels every pending timer.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.pollTicker.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.alarms {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	s.alarms = make(map[string]*alarmEntry)
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.pollTicker.C:
			s.pollAlarms()
		case <-s.stopCh:
			return
		}
	}
}

// SetAlarm registers or reschedules objectKey's alarm for scheduledTime
// (ms since epoch), satisfying the engine's AlarmBridge interface. Per
// spec.md §4.7, a live timer is armed only if scheduledTime falls within
// AlarmArmWindow of now; a farther-out alarm is tracked but left for a
// later poll to arm as it enters AlarmPollWindow.
func (s *Scheduler) SetAlarm(objectKey string, scheduledTime int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armLocked(objectKey, scheduledTime, types.AlarmArmWindow)
	metrics.ActiveAlarms.Set(float64(len(s.alarms)))
}

// DeleteAlarm cancels objectKey's pending alarm, if any, satisfying the
// engine's AlarmBridge interface.
func (s *Scheduler) DeleteAlarm(objectKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.alarms[objectKey]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(s.alarms, objectKey)
	}
	metrics.ActiveAlarms.Set(float64(len(s.alarms)))
}

// armLocked installs or replaces objectKey's entry. A live timer is armed
// only when scheduledTime is within window of now; otherwise the entry is
// recorded unarmed, left for pollAlarms to arm once it enters
// types.AlarmPollWindow. Must be called while holding s.mu.
func (s *Scheduler) armLocked(objectKey string, scheduledTime int64, window time.Duration) {
	if e, ok := s.alarms[objectKey]; ok && e.timer != nil {
		e.timer.Stop()
	}
	entry := &alarmEntry{scheduledTime: scheduledTime}
	if delay := time.Until(time.UnixMilli(scheduledTime)); delay < window {
		if delay < 0 {
			delay = 0
		}
		entry.timer = time.AfterFunc(delay, func() {
			s.fire(objectKey)
		})
	}
	s.alarms[objectKey] = entry
}

// fire invokes the handler for objectKey's alarm and clears its entry on
// success, per spec.md: a handler error leaves the alarm armed for the
// next poll cycle to retry.
func (s *Scheduler) fire(objectKey string) {
	metrics.AlarmFiresTotal.Inc()
	ctx := context.Background()
	if err := s.handler(ctx, objectKey); err != nil {
		s.logger.Error().Err(err).Str("object_key", objectKey).Msg("alarm handler failed, will retry on next poll")
		return
	}
	s.mu.Lock()
	delete(s.alarms, objectKey)
	metrics.ActiveAlarms.Set(float64(len(s.alarms)))
	s.mu.Unlock()
}

// pollAlarms is the 30s catch-up sweep described by spec.md §4.7: any
// unarmed entry that has entered AlarmPollWindow gets a live timer armed
// for it, and any armed alarm whose scheduled time has already passed but
// whose timer failed to fire (a missed wakeup after a long GC pause, or a
// freshly recovered object) is fired directly.
func (s *Scheduler) pollAlarms() {
	now := time.Now()
	var due []string
	s.mu.Lock()
	for k, e := range s.alarms {
		if e.timer == nil {
			if time.Until(time.UnixMilli(e.scheduledTime)) < types.AlarmPollWindow {
				s.armLocked(k, e.scheduledTime, types.AlarmPollWindow)
			}
			continue
		}
		if !time.UnixMilli(e.scheduledTime).After(now) {
			due = append(due, k)
		}
	}
	s.mu.Unlock()
	for _, k := range due {
		s.fire(k)
	}
}

// Recover opens objectKey's store through the scheduler's factory, loads
// its persisted alarm key if any, and restores scheduler state for that
// object after a process restart — arming a live timer only if the
// recovered alarm falls within AlarmPollWindow, per setupAlarms in
// spec.md §4.7.
func (s *Scheduler) Recover(ctx context.Context, objectKey string) error {
	store, err := s.factory.Open(objectKey)
	if err != nil {
		return fmt.Errorf("alarm recover: open %s: %w", objectKey, err)
	}
	entry, ok, err := store.Get(ctx, types.AlarmKey)
	if err != nil {
		return fmt.Errorf("alarm recover: %w", err)
	}
	if !ok {
		return nil
	}
	t, ok := types.AsAlarmScheduledTime(entry.Metadata)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armLocked(objectKey, t, types.AlarmPollWindow)
	metrics.ActiveAlarms.Set(float64(len(s.alarms)))
	return nil
}
