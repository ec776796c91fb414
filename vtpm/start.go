package vtpm

import (
	"context"
	"fmt"
	"time"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/sealvm/errdefs"
	"github.com/projecteru2/sealvm/types"
	"github.com/projecteru2/sealvm/utils"
)

// Start launches the emulator bound to the control socket and records the
// live PID. The record must already be reconciled: a PID surviving
// reconciliation means the emulator really is running.
func (s *Supervisor) Start(ctx context.Context, rec *types.StateRecord) error {
	if !utils.ValidFile(s.conf.SRKPublicPath()) {
		return fmt.Errorf("%w: run `sealvm tpm setup` first", errdefs.ErrNotInitialized)
	}
	if rec.TPM.Running() {
		return fmt.Errorf("%w: TPM emulator (pid %d)", errdefs.ErrAlreadyRunning, rec.TPM.PID)
	}

	cmd, err := s.launch(ctx, false)
	if err != nil {
		return err
	}
	pid := cmd.Process.Pid
	// Detach: the emulator must outlive this invocation.
	_ = cmd.Process.Release()

	now := time.Now()
	rec.TPM.StateDir = s.conf.TPMStateDir()
	rec.TPM.CtrlSocket = s.conf.TPMCtrlSocket()
	rec.TPM.SRKPublic = s.conf.SRKPublicPath()
	rec.TPM.PID = pid
	rec.TPM.StartedAt = &now

	log.WithFunc("vtpm.Start").Infof(ctx, "swtpm running (pid %d, ctrl %s)", pid, rec.TPM.CtrlSocket)
	return nil
}
