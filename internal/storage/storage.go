package storage

import (
	"io"
)

// Registry is a common interface for the tables that hold actor activations
type Registry interface {
	// Activate creates the activation if needed. Returns true if it was created,
	// otherwise the existing activation is marked as accessed
	Activate(id string) bool

	// Touch marks the actor as accessed. Returns false if it is not active
	Touch(id string) bool

	// Deactivate removes the activation. Returns true if the actor was active
	Deactivate(id string) bool

	// Exists reports whether the actor is active
	Exists(id string) bool

	// Info returns a copy of the activation record
	Info(id string) (Activation, bool)

	// Acquire registers a call in flight and marks the actor as accessed
	Acquire(id string) bool

	// Release ends a call started with Acquire
	Release(id string) bool

	// Len returns the number of active actors
	Len() int

	// CollectIdle advances the idle counters of unused actors and deactivates
	// those that reached maxIdleScans
	CollectIdle(maxIdleScans int64) ScanResult

	// Snapshot writes every activation to the writer.
	// Implementation must ensure consistency (or shard-level consistency)
	Snapshot(w io.Writer) error

	// Restore reads activations from the reader and adds them to the table
	Restore(r io.Reader) error
}

var (
	_ Registry = (*ActivationTable)(nil)
	_ Registry = (*ShardedTable)(nil)
)
