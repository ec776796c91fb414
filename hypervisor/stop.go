package hypervisor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/sealvm/types"
	"github.com/projecteru2/sealvm/utils"
)

// powerdownPollInterval is how often we check whether the guest has powered
// off after the QMP system_powerdown request.
const powerdownPollInterval = 500 * time.Millisecond

// Kill shuts the VM down:
//
//  1. QMP system_powerdown — asks the guest OS to shut down cleanly.
//  2. Poll until the process exits or the stop timeout fires.
//  3. Escalate: SIGTERM → grace period → SIGKILL.
//
// Soft success when nothing is running; the VM record is cleared
// unconditionally once the process is confirmed gone.
func (s *Supervisor) Kill(ctx context.Context, rec *types.StateRecord) error {
	logger := log.WithFunc("hypervisor.Kill")

	if rec.VM.PID > 0 {
		if err := s.shutdown(ctx, rec.VM); err != nil {
			return err
		}
		logger.Infof(ctx, "VM (pid %d) stopped", rec.VM.PID)
	} else {
		logger.Debugf(ctx, "no VM process recorded, nothing to kill")
	}

	s.cleanupRuntimeFiles()
	rec.VM = types.VMInstance{}
	return nil
}

func (s *Supervisor) shutdown(ctx context.Context, vm types.VMInstance) error {
	logger := log.WithFunc("hypervisor.shutdown")

	if qmp, err := dialQMP(ctx, vm.QMPSocket); err == nil {
		perr := qmp.execute("system_powerdown")
		_ = qmp.close()
		if perr == nil {
			if werr := utils.WaitFor(ctx, s.conf.StopTimeout(), powerdownPollInterval, func() (bool, error) {
				return !utils.IsProcessAlive(vm.PID), nil
			}); werr == nil {
				return nil
			}
			logger.Warnf(ctx, "guest did not power off within %s, escalating", s.conf.StopTimeout())
		} else {
			logger.Warnf(ctx, "system_powerdown: %v, escalating", perr)
		}
	} else {
		logger.Warnf(ctx, "QMP unreachable: %v, escalating", err)
	}

	// Verify the PID still belongs to qemu before signaling — it may have
	// been recycled since the record was written.
	if !utils.VerifyProcess(vm.PID, binaryComm(s.conf.QEMUBinary)) {
		return nil
	}
	if err := utils.TerminateProcess(ctx, vm.PID, s.conf.StopTimeout()); err != nil {
		return fmt.Errorf("terminate qemu (pid %d): %w", vm.PID, err)
	}
	return nil
}

func (s *Supervisor) cleanupRuntimeFiles() {
	for _, p := range []string{
		s.conf.VMQMPSocket(),
		s.conf.VMSerialSocket(),
		s.conf.VMSeedImage(),
		s.conf.VMFirmwareVars(),
		filepath.Join(s.conf.RunDir, userDataFile),
		filepath.Join(s.conf.RunDir, metaDataFile),
	} {
		_ = os.Remove(p)
	}
}
