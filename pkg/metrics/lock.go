// Package metrics defines the observability interfaces consumed by the lock
// library and the registry shared by their implementations.
//
// Interfaces here are optional: pass nil to disable collection with zero
// overhead.
package metrics

import "time"

// LockMetrics provides observability for lock operations.
//
// Example usage:
//
//	// With metrics enabled
//	metrics.InitRegistry()
//	l := lock.New()
//	l.Metrics = prometheus.NewLockMetrics()
//
//	// Without metrics (nil for zero overhead)
//	l := lock.New()
type LockMetrics interface {
	// RecordAcquire records a completed acquire with its mode ("r" or
	// "w"), outcome label and duration. Outcomes are bounded: ok,
	// held_by_writer, held_by_reader, contended, error.
	RecordAcquire(mode, outcome string, duration time.Duration)

	// RecordSteal records a forced removal of foreign lock state.
	// Kind is one of "exclusive", "writer", "reader".
	RecordSteal(kind string)

	// RecordRelease records a release by mode.
	RecordRelease(mode string)
}
