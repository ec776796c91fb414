package hypervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/projecteru2/core/log"

	"github.com/projecteru2/sealvm/errdefs"
	"github.com/projecteru2/sealvm/types"
	"github.com/projecteru2/sealvm/utils"
)

const (
	pollInterval = 100 * time.Millisecond
	logTailBytes = 2048
)

// Start launches qemu with the disk image attached read-only and the TPM
// control socket wired in as a chardev-backed tpm-tis device, then waits
// for the QMP socket to come up. No partial state is recorded: the record
// is only mutated after the process is confirmed ready.
func (s *Supervisor) Start(ctx context.Context, rec *types.StateRecord, opts StartOptions) error {
	logger := log.WithFunc("hypervisor.Start")

	if rec.VM.Running() {
		return fmt.Errorf("%w: VM (pid %d)", errdefs.ErrAlreadyRunning, rec.VM.PID)
	}
	if !rec.TPM.Running() || utils.CheckSocket(rec.TPM.CtrlSocket) != nil {
		return fmt.Errorf("%w: run `sealvm tpm start` first", errdefs.ErrTPMNotReady)
	}
	if !utils.ValidFile(opts.Image) {
		return fmt.Errorf("%w: image %s is not a readable file", errdefs.ErrLaunchFailed, opts.Image)
	}
	// A connectable socket with no recorded PID is an orphan hypervisor from
	// an invocation that died between launch and persist. Refuse to start a
	// second one and leave the socket intact.
	for _, sock := range []string{s.conf.VMQMPSocket(), s.conf.VMSerialSocket()} {
		if utils.CheckSocket(sock) == nil {
			return fmt.Errorf("%w: unrecorded qemu is serving %s; kill the orphan process first", errdefs.ErrAlreadyRunning, sock)
		}
	}

	bootID := uuid.NewString()

	seed, err := s.buildSeed(ctx, bootID, opts.SSHImportID)
	if err != nil {
		return err
	}

	// Fresh VARS copy per boot: UEFI variable writes never touch the
	// distro-shipped template.
	if err := utils.CopyFile(s.conf.FirmwareVars, s.conf.VMFirmwareVars(), 0o644); err != nil { //nolint:mnd
		return fmt.Errorf("%w: firmware vars: %v", errdefs.ErrLaunchFailed, err)
	}

	// Dead socket files from a previous run would confuse readiness polling.
	_ = os.Remove(s.conf.VMQMPSocket())
	_ = os.Remove(s.conf.VMSerialSocket())

	args := s.buildArgs(rec.TPM.CtrlSocket, opts, seed)
	pid, err := s.launch(ctx, args)
	if err != nil {
		return err
	}

	now := time.Now()
	rec.VM = types.VMInstance{
		Image:         opts.Image,
		TPMCtrlSocket: rec.TPM.CtrlSocket,
		QMPSocket:     s.conf.VMQMPSocket(),
		SerialSocket:  s.conf.VMSerialSocket(),
		BootID:        bootID,
		PID:           pid,
		StartedAt:     &now,
	}
	logger.Infof(ctx, "VM running (pid %d, image %s)", pid, opts.Image)
	return nil
}

// buildArgs assembles the qemu invocation. The TPM wiring is the
// chardev socket → tpmdev emulator → tpm-tis device chain; the image and
// seed ride virtio; OVMF code/vars ride pflash.
func (s *Supervisor) buildArgs(tpmCtrlSocket string, opts StartOptions, seed string) []string {
	memMB := opts.MemoryBytes >> 20 //nolint:mnd
	args := []string{
		"--cpu", "host",
		"-machine", s.conf.MachineOpt,
		"-m", fmt.Sprintf("%d", memMB),
		"-display", "none",
		"-qmp", fmt.Sprintf("unix:%s,server=on,wait=off", s.conf.VMQMPSocket()),
		"-serial", fmt.Sprintf("unix:%s,server=on,wait=off", s.conf.VMSerialSocket()),
		// Never write through to the attached image.
		"-snapshot",
		"-netdev", fmt.Sprintf("id=net00,type=user,hostfwd=tcp::%d-:22", opts.SSHPort),
		"-device", "virtio-net-pci,netdev=net00",
		"-chardev", fmt.Sprintf("socket,id=chrtpm,path=%s", tpmCtrlSocket),
		"-tpmdev", "emulator,id=tpm0,chardev=chrtpm",
		"-device", "tpm-tis,tpmdev=tpm0",
		"-drive", fmt.Sprintf("if=virtio,format=raw,file=%s", opts.Image),
	}
	if seed != "" {
		args = append(args, "-drive", fmt.Sprintf("if=virtio,format=raw,file=%s", seed))
	}
	args = append(args,
		"-drive", fmt.Sprintf("if=pflash,format=raw,unit=0,file=%s,readonly=on", s.conf.FirmwareCode),
		"-drive", fmt.Sprintf("if=pflash,format=raw,unit=1,file=%s", s.conf.VMFirmwareVars()),
	)
	return args
}

// launch spawns qemu detached and waits for the QMP socket.
func (s *Supervisor) launch(ctx context.Context, args []string) (int, error) {
	logFile, _ := os.Create(s.conf.VMLogFile()) //nolint:gosec

	cmd := exec.Command(s.conf.QEMUBinary, args...) //nolint:gosec
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if logFile != nil {
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	}

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return 0, fmt.Errorf("%w: %v", errdefs.ErrLaunchFailed, err)
	}
	pid := cmd.Process.Pid

	err := utils.WaitFor(ctx, s.conf.StartTimeout(), pollInterval, func() (bool, error) {
		if utils.CheckSocket(s.conf.VMQMPSocket()) == nil {
			return true, nil
		}
		if !utils.IsProcessAlive(pid) {
			tail := utils.TailFile(s.conf.VMLogFile(), logTailBytes)
			return false, fmt.Errorf("%w: qemu exited before QMP was ready: %s", errdefs.ErrLaunchFailed, tail)
		}
		return false, nil
	})
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		if logFile != nil {
			_ = logFile.Close()
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if isLaunchFailure(err) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: QMP socket not ready within %s", errdefs.ErrStartupTimeout, s.conf.StartTimeout())
	}

	_ = cmd.Process.Release()
	if logFile != nil {
		_ = logFile.Close()
	}
	return pid, nil
}
