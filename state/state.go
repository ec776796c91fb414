// Package state persists the sealvm state record and reconciles it against
// the operating system's process table before every command.
package state

import (
	"context"
	"path/filepath"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/sealvm/config"
	"github.com/projecteru2/sealvm/storage"
	storejson "github.com/projecteru2/sealvm/storage/json"
	"github.com/projecteru2/sealvm/types"
	"github.com/projecteru2/sealvm/utils"
)

// Store wraps the flock-guarded JSON record with liveness reconciliation.
type Store struct {
	db   storage.Store[types.StateRecord]
	conf *config.Config
}

// New creates a Store over {RootDir}/state.json.
func New(conf *config.Config) *Store {
	return &Store{
		db:   storejson.New[types.StateRecord](conf.StateLock(), conf.StateFile()),
		conf: conf,
	}
}

// TryLock attempts a non-blocking acquisition of the state lock.
// Returns (false, nil) when another invocation holds it.
func (s *Store) TryLock(ctx context.Context) (bool, error) { return s.db.TryLock(ctx) }

// Unlock releases the state lock.
func (s *Store) Unlock(ctx context.Context) error { return s.db.Unlock(ctx) }

// Load reads the record. The caller must hold the lock.
func (s *Store) Load() (*types.StateRecord, error) {
	var rec *types.StateRecord
	return rec, s.db.Read(func(r *types.StateRecord) error {
		rec = r
		return nil
	})
}

// Save persists rec atomically. The caller must hold the lock.
func (s *Store) Save(rec *types.StateRecord) error {
	return s.db.Write(func(r *types.StateRecord) error {
		*r = *rec
		return nil
	})
}

// Reconcile loads the record and corrects it against the observed process
// table: a recorded PID whose process no longer exists, or now belongs to an
// unrelated binary (PID recycled since the record was written), is cleared,
// and the correction is persisted before the record is returned. This makes
// every command self-healing — stale state never blocks a start and never
// makes a kill error out.
// The caller must hold the lock.
func (s *Store) Reconcile(ctx context.Context) (*types.StateRecord, error) {
	logger := log.WithFunc("state.Reconcile")
	rec, err := s.Load()
	if err != nil {
		return nil, err
	}

	dirty := false
	if rec.TPM.PID > 0 && !utils.VerifyProcess(rec.TPM.PID, filepath.Base(s.conf.SwtpmBinary)) {
		logger.Warnf(ctx, "TPM pid %d is gone or recycled, clearing stale record", rec.TPM.PID)
		rec.TPM.PID = 0
		rec.TPM.StartedAt = nil
		dirty = true
	}
	if rec.VM.PID > 0 && !utils.VerifyProcess(rec.VM.PID, filepath.Base(s.conf.QEMUBinary)) {
		logger.Warnf(ctx, "VM pid %d is gone or recycled, clearing stale record", rec.VM.PID)
		rec.VM = types.VMInstance{}
		dirty = true
	}

	if dirty {
		if err := s.Save(rec); err != nil {
			return nil, err
		}
	}
	return rec, nil
}
