/*
Package storage defines the backing-store contract consumed by a single
object's storage engine, and supplies two implementations: an in-memory
store for tests and light workloads, and a bbolt-backed on-disk store for
durability across process restarts.

# Architecture

	┌──────────────────── BACKING STORE ────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Factory                        │          │
	│  │  Open(objectKey) → Store                    │          │
	│  │  - one namespace per object key             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│     ┌───────────────┴───────────────┐                     │
	│     ▼                                 ▼                    │
	│  MemoryFactory                   BoltFactory                │
	│  - map[objectKey]*MemoryStore    - one bbolt.DB file        │
	│  - no persistence                - one bucket per object    │
	│                                                            │
	│  Both implement Store:                                    │
	│    Get / GetMany / Put / PutMany                          │
	│    Delete / DeleteMany / List / Close                      │
	└────────────────────────────────────────────────────────┘

# Bucket / namespace layout

The bbolt backend opens a single database file and creates one bucket per
object key, named "object:<key>". This keeps the contract the engine
relies on — each StorageEngine owns one Store for its whole lifetime —
while still letting many objects share a process and a database file.

# Usage

	factory, err := storage.OpenBoltFactory("/var/lib/durastore/objects.db")
	if err != nil {
		log.Fatal(err)
	}
	defer factory.Close()

	store, err := factory.Open("room:lobby")
	entry, ok, err := store.Get(ctx, "messages/1")

# Design Patterns

Error Wrapping:
  - Errors from opening the bbolt database or an object's bucket are
    wrapped with context via fmt.Errorf("...: %w", err). Errors from the
    per-key operations are returned as bbolt or encoding/json produced
    them, except decode failures, which wrap ErrDeserializationFailure.

List Semantics:
  - Both implementations sort keys lexicographically, apply
    Start/StartAfter/End/Prefix filters, then truncate to Limit, matching
    the ordering the shadow layer expects when it merges its own pending
    writes on top.

# See Also

  - pkg/engine for the shadow layer and transaction machinery that sits
    on top of this contract.
  - BoltDB documentation: https://github.com/etcd-io/bbolt
*/
package storage
