/*
Package alarm provides the process-wide scheduler for per-object durable
alarms.

An object's storage engine stages alarm changes in its shadow buffer like
any other write, then mirrors the committed value through an AlarmBridge at
flush time. Scheduler implements that bridge: it owns one in-memory timer
per object with a pending alarm, plus a periodic catch-up poll that fires
anything a timer missed.

# Architecture

	┌────────────────────────────────────────────────────────┐
	│                     Scheduler                          │
	│                                                          │
	│  alarms: map[objectKey]{scheduledTime, *time.Timer}     │
	│                                                          │
	│  per-object time.AfterFunc  ──fires early, exact──▶ fire │
	│  30s poll ticker            ──catches missed wakeups──▶ │
	└──────────────────────┬───────────────────────────────────┘
	                        │
	                        ▼
	                handler(ctx, objectKey)

A handler error leaves the alarm armed; the next poll cycle retries it
rather than losing the wakeup.

# Usage

	sched := alarm.NewScheduler(boltFactory, func(ctx context.Context, key string) error {
	    return objectRuntime.DeliverAlarm(ctx, key)
	})
	sched.Start()
	defer sched.Stop()

	eng := engine.New(objectKey, store, engine.WithAlarmHandler(sched))

# Design Patterns

Recovery: Scheduler.Recover opens an object's store directly through the
same storage.Factory the engine uses, so a restarted process can re-arm
outstanding alarms without needing a live engine for that object.

Retention: the reserved key types.AlarmKey is the only state persisted for
an alarm; its metadata carries the scheduled time as milliseconds since
the Unix epoch.
*/
package alarm
