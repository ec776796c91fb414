package vtpm

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/sealvm/errdefs"
	"github.com/projecteru2/sealvm/types"
	"github.com/projecteru2/sealvm/utils"
)

// Setup provisions a fresh TPM state directory and derives the Storage Root
// Key under the owner hierarchy:
//
//  1. Start a temporary swtpm with a TPM command socket exposed.
//  2. tpm2_createprimary over that socket → srk.ctx.
//  3. tpm2_readpublic → srk.pub, the artifact the external
//     disk-encryption/deployment tool seals images to.
//  4. Kill the temporary swtpm — setup leaves nothing running.
//
// Re-running without force fails with AlreadyInitialized and leaves the
// existing srk.pub untouched. With force, the state directory is wiped and
// reprovisioned; force is rejected while the emulator is running.
func (s *Supervisor) Setup(ctx context.Context, rec *types.StateRecord, force bool) error {
	logger := log.WithFunc("vtpm.Setup")

	if rec.TPM.Running() {
		return fmt.Errorf("%w: TPM is running; run `sealvm tpm kill` first", errdefs.ErrAlreadyRunning)
	}
	// Checked before any mutation: a forced setup must not wipe the NVRAM
	// directory out from under an orphan emulator.
	if err := s.ensureNoOrphan(); err != nil {
		return err
	}
	if utils.ValidFile(s.conf.SRKPublicPath()) {
		if !force {
			return fmt.Errorf("%w: %s exists; pass --force to reprovision", errdefs.ErrAlreadyInitialized, s.conf.SRKPublicPath())
		}
		logger.Warnf(ctx, "force: wiping TPM state at %s", s.conf.TPMStateDir())
		if err := os.RemoveAll(s.conf.TPMStateDir()); err != nil {
			return fmt.Errorf("wipe TPM state: %w", err)
		}
	}

	if err := utils.EnsureDirs(s.conf.TPMStateDir()); err != nil {
		return err
	}

	cmd, err := s.launch(ctx, true)
	if err != nil {
		return err
	}
	// The provisioning swtpm never outlives setup, success or not.
	defer func() {
		s.reap(cmd)
		_ = os.Remove(s.conf.TPMServerSocket())
		_ = os.Remove(s.conf.TPMCtrlSocket())
	}()

	transport := "swtpm:path=" + s.conf.TPMServerSocket()
	if err := runTool(ctx, s.conf.TPM2CreatePrimary,
		"-T", transport,
		"-c", s.conf.SRKContextPath(),
	); err != nil {
		return fmt.Errorf("create SRK: %w", err)
	}
	if err := runTool(ctx, s.conf.TPM2ReadPublic,
		"-T", transport,
		"-c", s.conf.SRKContextPath(),
		"-o", s.conf.SRKPublicPath(),
	); err != nil {
		return fmt.Errorf("export SRK public: %w", err)
	}
	if !utils.ValidFile(s.conf.SRKPublicPath()) {
		return fmt.Errorf("%w: toolkit produced no SRK public blob at %s", errdefs.ErrLaunchFailed, s.conf.SRKPublicPath())
	}

	now := time.Now()
	rec.TPM = types.TPMInstance{
		StateDir:     s.conf.TPMStateDir(),
		CtrlSocket:   s.conf.TPMCtrlSocket(),
		ServerSocket: s.conf.TPMServerSocket(),
		SRKPublic:    s.conf.SRKPublicPath(),
		SetupAt:      &now,
	}
	logger.Infof(ctx, "SRK exported to %s", rec.TPM.SRKPublic)
	return nil
}
