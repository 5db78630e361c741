package storage

// Package storage provides the local snapshot persistence for the reminder
// pipeline: monitored items, aggregate counters, and the prioritizer's
// learning state. Snapshot failures are logged by callers and never make
// the in-memory state non-authoritative.
