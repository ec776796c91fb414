// Package json implements storage.Store backed by a single JSON file
// guarded by an flock.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/projecteru2/sealvm/lock"
	"github.com/projecteru2/sealvm/lock/flock"
	"github.com/projecteru2/sealvm/storage"
	"github.com/projecteru2/sealvm/utils"
)

// Store provides flock-protected read/modify/write access to a JSON file.
// T is the top-level structure stored in the file (exported fields with
// json tags). If *T implements storage.Initer, Init() is called after
// loading.
type Store[T any] struct {
	locker   lock.Locker
	filePath string
}

// New creates a Store for the given lock and data file paths.
func New[T any](lockPath, filePath string) *Store[T] {
	return &Store[T]{locker: flock.New(lockPath), filePath: filePath}
}

// With loads the JSON file under lock and passes the deserialized data to fn.
// A missing file yields a zero-value T. The lock is held for the duration
// of fn.
func (s *Store[T]) With(ctx context.Context, fn func(*T) error) error {
	return lock.WithLock(ctx, s.locker, func() error {
		return s.Read(fn)
	})
}

// Update performs a read-modify-write on the JSON file under lock.
// If fn returns nil the data is atomically written back.
func (s *Store[T]) Update(ctx context.Context, fn func(*T) error) error {
	return lock.WithLock(ctx, s.locker, func() error {
		return s.Write(fn)
	})
}

// Read deserializes the file and passes the data to fn. The caller must
// already hold the lock.
func (s *Store[T]) Read(fn func(*T) error) error {
	data, err := s.load()
	if err != nil {
		return err
	}
	return fn(data)
}

// Write deserializes the file, passes the data to fn, and atomically
// persists the result if fn returns nil. The caller must already hold the
// lock.
func (s *Store[T]) Write(fn func(*T) error) error {
	data, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(data); err != nil {
		return err
	}
	return utils.AtomicWriteJSON(s.filePath, data)
}

// TryLock attempts a non-blocking lock acquisition.
func (s *Store[T]) TryLock(ctx context.Context) (bool, error) {
	return s.locker.TryLock(ctx)
}

// Unlock releases a lock acquired via TryLock.
func (s *Store[T]) Unlock(ctx context.Context) error {
	return s.locker.Unlock(ctx)
}

func (s *Store[T]) load() (*T, error) {
	var data T
	raw, err := os.ReadFile(s.filePath) //nolint:gosec // internal metadata
	if err != nil {
		if os.IsNotExist(err) {
			initData(&data)
			return &data, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.filePath, err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.filePath, err)
	}
	initData(&data)
	return &data, nil
}

func initData[T any](data *T) {
	if initer, ok := any(data).(storage.Initer); ok {
		initer.Init()
	}
}
