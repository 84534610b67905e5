/*
Package log provides structured logging for durastore using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific and object-specific child loggers, configurable log
levels, and helper functions for common logging patterns.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance, set via log.Init()     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Context Loggers                     │          │
	│  │  - WithComponent("engine")                  │          │
	│  │  - WithObjectKey("room:lobby")               │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true, Output: os.Stdout})

	engineLog := log.WithComponent("engine")
	engineLog.Info().Str("object_key", key).Msg("flush completed")

	objLog := log.WithObjectKey("room:lobby")
	objLog.Warn().Int("retries", n).Msg("transaction retried")

# Design Patterns

Global Logger Pattern:
  - A single package-level Logger instance, initialized once via Init and
    read from everywhere else without being passed down call chains.

Context Logger Pattern:
  - WithComponent and WithObjectKey return child loggers carrying a fixed
    field, so call sites never repeat "component" or "object_key" by hand.

# Security

Never log key or value bytes directly — they are opaque application data
that may include secrets; log key lengths or hashes instead when a field
is needed for correlation.
*/
package log
