package vtpm

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/projecteru2/sealvm/errdefs"
	"github.com/projecteru2/sealvm/utils"
)

const logTailBytes = 2048

// launch spawns swtpm bound to the control socket and waits for socket
// readiness. With server=true (setup only) a TPM command socket for the
// tpm2 toolkit is also exposed and awaited.
//
// The returned Cmd is started and ready but not yet detached: Start
// releases the handle so the emulator outlives the invocation, while Setup
// keeps it to reap its temporary swtpm. On readiness timeout the process is
// terminated and ErrStartupTimeout returned; if the process dies before the
// socket appears, ErrLaunchFailed carries the captured log tail.
func (s *Supervisor) launch(ctx context.Context, server bool) (*exec.Cmd, error) {
	args := []string{
		"socket", "--tpm2",
		"--tpmstate", "dir=" + s.conf.TPMStateDir(),
		"--ctrl", "type=unixio,path=" + s.conf.TPMCtrlSocket(),
		"--flags", "not-need-init,startup-clear",
	}
	if server {
		args = append(args, "--server", "type=unixio,path="+s.conf.TPMServerSocket())
	}

	if err := s.ensureNoOrphan(); err != nil {
		return nil, err
	}
	// Dead socket files from a previous run would confuse readiness polling.
	_ = os.Remove(s.conf.TPMCtrlSocket())
	_ = os.Remove(s.conf.TPMServerSocket())

	logFile, _ := os.Create(s.conf.TPMLogFile()) //nolint:gosec

	cmd := exec.Command(s.conf.SwtpmBinary, args...) //nolint:gosec
	cmd.SysProcAttr = detachAttr()
	if logFile != nil {
		cmd.Stdout = logFile
		cmd.Stderr = logFile
		// The child holds its own copy of the fd.
		defer logFile.Close() //nolint:errcheck
	}

	if err := cmd.Start(); err != nil {
		return nil, classifySpawn(err)
	}

	readySocket := s.conf.TPMCtrlSocket()
	if server {
		readySocket = s.conf.TPMServerSocket()
	}
	if err := s.waitReady(ctx, readySocket, cmd.Process.Pid); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}
	return cmd, nil
}

// reap runs the graceful-then-forced termination protocol against a child
// this invocation spawned itself, using Wait (not liveness polling) so the
// process table entry is released.
func (s *Supervisor) reap(cmd *exec.Cmd) {
	_ = cmd.Process.Signal(syscall.SIGTERM)
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(s.conf.StopTimeout()):
		_ = cmd.Process.Kill()
		<-done
	}
}

// waitReady polls until socketPath is connectable, the process exits, or
// the configured timeout fires.
func (s *Supervisor) waitReady(ctx context.Context, socketPath string, pid int) error {
	err := utils.WaitFor(ctx, s.conf.StartTimeout(), pollInterval, func() (bool, error) {
		if utils.CheckSocket(socketPath) == nil {
			return true, nil
		}
		if !utils.IsProcessAlive(pid) {
			tail := utils.TailFile(s.conf.TPMLogFile(), logTailBytes)
			return false, fmt.Errorf("%w: swtpm exited before socket was ready: %s", errdefs.ErrLaunchFailed, tail)
		}
		return false, nil
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if isLaunchFailure(err) {
		return err
	}
	return fmt.Errorf("%w: socket %s not ready within %s", errdefs.ErrStartupTimeout, socketPath, s.conf.StartTimeout())
}
