// Package hypervisor supervises the qemu process realizing the TPM-backed
// VM: launch with the vTPM control socket wired as a pass-through device,
// graceful shutdown via QMP with signal escalation, and a serial console.
package hypervisor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/projecteru2/sealvm/config"
	"github.com/projecteru2/sealvm/errdefs"
	"github.com/projecteru2/sealvm/types"
)

// Supervisor owns the qemu process lifecycle. Like the vTPM supervisor it
// classifies local errors and mutates the state record in place; the
// coordinator persists it.
type Supervisor struct {
	conf *config.Config
}

// New creates a Supervisor.
func New(conf *config.Config) *Supervisor {
	return &Supervisor{conf: conf}
}

// StartOptions are the per-launch knobs surfaced on `vm start`.
type StartOptions struct {
	// Image is the boot disk path. Attached with -snapshot: the image file
	// is never modified by a run.
	Image string
	// MemoryBytes is the guest RAM size.
	MemoryBytes int64
	// SSHPort is the host port forwarded to guest port 22.
	SSHPort int
	// SSHImportID seeds cloud-init's ssh_import_id; empty skips the seed
	// disk entirely.
	SSHImportID string
}

// Status reports the instance state in operator terms.
func (s *Supervisor) Status(rec *types.StateRecord) string {
	if rec.VM.Running() {
		return fmt.Sprintf("running (pid %d, image %s, qmp %s)", rec.VM.PID, rec.VM.Image, rec.VM.QMPSocket)
	}
	return "not running"
}

// isLaunchFailure reports whether err already carries the LaunchFailed kind.
func isLaunchFailure(err error) bool {
	return errors.Is(err, errdefs.ErrLaunchFailed)
}

func binaryComm(bin string) string {
	if i := strings.LastIndexByte(bin, '/'); i >= 0 {
		return bin[i+1:]
	}
	return bin
}
