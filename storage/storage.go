// Package storage defines the persistence contract for the sealvm state
// record: serialized read/modify/write cycles, with a non-blocking lock so
// a concurrent invocation reports Busy instead of queuing behind a long
// operation.
package storage

import (
	"context"
)

// Initer is optionally implemented by T to repair zero-value fields (nil
// maps and the like) after deserialization or on a first run with no file.
type Initer interface {
	Init()
}

// Store provides locked access to a single persisted record of type T.
//
// With and Update are the self-contained forms: they acquire the lock, run
// fn, and release. The lifecycle coordinator instead uses the split form
// (TryLock, then Read/Write possibly several times, then Unlock) because
// one command is one critical section spanning reconcile and persist.
type Store[T any] interface {
	// With loads the record under lock and passes it to fn.
	// If *T implements Initer, Init() is called before fn.
	With(ctx context.Context, fn func(*T) error) error
	// Update performs a read-modify-write under lock.
	// If fn returns nil the record is persisted.
	Update(ctx context.Context, fn func(*T) error) error

	// Read deserializes the record and passes it to fn. The caller must
	// already hold the lock.
	Read(fn func(*T) error) error
	// Write deserializes the record, passes it to fn, and atomically
	// persists the result if fn returns nil. The caller must already hold
	// the lock.
	Write(fn func(*T) error) error
	// TryLock attempts to acquire the lock without blocking.
	// (false, nil) means another invocation holds it.
	TryLock(ctx context.Context) (bool, error)
	// Unlock releases a lock acquired via TryLock.
	Unlock(ctx context.Context) error
}
