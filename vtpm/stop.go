package vtpm

import (
	"context"
	"fmt"
	"os"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/sealvm/errdefs"
	"github.com/projecteru2/sealvm/types"
)

// Kill terminates the emulator gracefully, escalating to SIGKILL after the
// grace period. Calling it with nothing running is a soft success — the
// PID entry is cleared unconditionally once the process is confirmed gone.
func (s *Supervisor) Kill(ctx context.Context, rec *types.StateRecord) error {
	logger := log.WithFunc("vtpm.Kill")

	if rec.TPM.PID > 0 {
		if err := s.terminate(ctx, rec.TPM.PID); err != nil {
			return fmt.Errorf("terminate swtpm (pid %d): %w", rec.TPM.PID, err)
		}
		logger.Infof(ctx, "swtpm (pid %d) stopped", rec.TPM.PID)
	} else {
		logger.Debugf(ctx, "no TPM process recorded, nothing to kill")
	}

	_ = os.Remove(s.conf.TPMCtrlSocket())
	_ = os.Remove(s.conf.TPMServerSocket())
	rec.TPM.PID = 0
	rec.TPM.StartedAt = nil
	return nil
}

// Destroy irreversibly removes all persisted TPM state. The cross-component
// precondition (no live TPM, no attached VM) is the coordinator's to check;
// Destroy itself refuses only the locally detectable live-emulator case.
func (s *Supervisor) Destroy(ctx context.Context, rec *types.StateRecord) error {
	if rec.TPM.Running() {
		return fmt.Errorf("%w: TPM emulator still running (pid %d)", errdefs.ErrInUse, rec.TPM.PID)
	}
	if err := os.RemoveAll(s.conf.TPMStateDir()); err != nil {
		return fmt.Errorf("remove TPM state %s: %w", s.conf.TPMStateDir(), err)
	}
	_ = os.Remove(s.conf.TPMCtrlSocket())
	_ = os.Remove(s.conf.TPMServerSocket())
	rec.TPM = types.TPMInstance{}

	log.WithFunc("vtpm.Destroy").Infof(ctx, "TPM state removed from %s", s.conf.TPMStateDir())
	return nil
}
