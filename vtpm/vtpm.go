// Package vtpm supervises the software TPM emulator (swtpm) and its
// persistent state directory, including one-time Storage Root Key
// provisioning via the external tpm2 toolkit.
package vtpm

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/projecteru2/sealvm/config"
	"github.com/projecteru2/sealvm/errdefs"
	"github.com/projecteru2/sealvm/types"
	"github.com/projecteru2/sealvm/utils"
)

// pollInterval is the socket-readiness and process-exit polling cadence.
const pollInterval = 100 * time.Millisecond

// Supervisor owns the swtpm process lifecycle. It classifies local errors
// (spawn failure, readiness timeout) and mutates the state record handed to
// it; persisting the record is the coordinator's job.
type Supervisor struct {
	conf *config.Config
}

// New creates a Supervisor.
func New(conf *config.Config) *Supervisor {
	return &Supervisor{conf: conf}
}

// Status reports the instance state in operator terms, mirroring the record
// the coordinator reconciled.
func (s *Supervisor) Status(rec *types.StateRecord) string {
	switch {
	case rec.TPM.Running():
		return fmt.Sprintf("running (pid %d, ctrl socket %s)", rec.TPM.PID, rec.TPM.CtrlSocket)
	case rec.TPM.Initialized():
		return "initialized, not running"
	default:
		return "not initialized"
	}
}

// runTool runs an external provisioning tool and surfaces its combined
// output on failure, so the operator sees the toolkit's own diagnostic.
func runTool(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput() //nolint:gosec
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return fmt.Errorf("%s: %w", name, err)
		}
		return fmt.Errorf("%s: %w: %s", name, err, msg)
	}
	return nil
}

// terminate runs the graceful-then-forced termination protocol against pid,
// verifying the PID still belongs to the expected binary first.
func (s *Supervisor) terminate(ctx context.Context, pid int) error {
	if !utils.VerifyProcess(pid, binaryComm(s.conf.SwtpmBinary)) {
		return nil
	}
	return utils.TerminateProcess(ctx, pid, s.conf.StopTimeout())
}

// ensureNoOrphan refuses to proceed while an unrecorded emulator serves one
// of the sockets. A connectable socket with no PID in the record means an
// invocation died between launching swtpm and persisting its state; wiping
// the socket and starting a second emulator over the same NVRAM directory
// would corrupt it, so the orphan is surfaced instead, socket left intact.
func (s *Supervisor) ensureNoOrphan() error {
	for _, sock := range []string{s.conf.TPMCtrlSocket(), s.conf.TPMServerSocket()} {
		if utils.CheckSocket(sock) == nil {
			return fmt.Errorf("%w: unrecorded swtpm is serving %s; kill the orphan process first", errdefs.ErrAlreadyRunning, sock)
		}
	}
	return nil
}

// binaryComm returns the comm name for a binary path.
func binaryComm(bin string) string {
	if i := strings.LastIndexByte(bin, '/'); i >= 0 {
		return bin[i+1:]
	}
	return bin
}

// classifySpawn converts an exec start error into the typed launch failure.
func classifySpawn(err error) error {
	return fmt.Errorf("%w: %v", errdefs.ErrLaunchFailed, err)
}

// isLaunchFailure reports whether err already carries the LaunchFailed kind.
func isLaunchFailure(err error) bool {
	return errors.Is(err, errdefs.ErrLaunchFailed)
}

// detachAttr puts the child in its own process group so it survives this
// invocation exiting.
func detachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
