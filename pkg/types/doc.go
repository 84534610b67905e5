/*
Package types defines the core data structures shared by durastore's
storage engine, backing stores, and alarm scheduler.

It holds the key/value size limits and batch bounds from the storage
contract, the StoredEntry and ListOptions shapes passed between the shadow
layer and a backing store, the sentinel errors every layer returns, and the
default Codec used to turn arbitrary Go values into the opaque bytes the
engine persists.

# Core Types

  - StoredEntry: an opaque value plus optional metadata (used only to carry
    an alarm's scheduled time against the reserved AlarmKey).
  - ListOptions: range/prefix/limit parameters for list operations.
  - Codec: Encode/Decode pair; JSONCodec is the default implementation.

# Errors

All validation errors are sentinel values under errors.Is. The size and
count errors are wrapped with %w at the call site to add the offending
size or count; the others are returned bare.
*/
package types
