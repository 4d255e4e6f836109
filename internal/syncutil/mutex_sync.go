//go:build !deadlock

// Package syncutil provides the locks guarding shared monitor state.
// Build with -tags=deadlock to swap in lock-order and timeout detection.
package syncutil

import "sync"

// DeadlockEnabled reports whether the deadlock detector is compiled in.
const DeadlockEnabled = false

// Mutex is a mutual exclusion lock.
type Mutex struct {
	sync.Mutex
}

// RWMutex is a reader/writer mutual exclusion lock.
type RWMutex struct {
	sync.RWMutex
}
