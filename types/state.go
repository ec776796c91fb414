// Package types holds the persisted data model shared by the supervisors
// and the lifecycle coordinator.
package types

import "time"

// TPMInstance is the persisted record for the software TPM.
//
// PID is set if and only if the swtpm process is alive and bound to
// CtrlSocket; Reconcile clears it when the process is gone. SRKPublic
// exists on disk if and only if setup has completed for StateDir.
type TPMInstance struct {
	// StateDir owns all TPM persistent state (NVRAM image, SRK artifacts).
	StateDir string `json:"state_dir,omitempty"`
	// CtrlSocket is the swtpm control channel consumed by the hypervisor.
	CtrlSocket string `json:"ctrl_socket,omitempty"`
	// ServerSocket is the TPM command channel, used only during setup by
	// the tpm2 provisioning toolkit.
	ServerSocket string `json:"server_socket,omitempty"`
	// SRKPublic is the exported Storage Root Key public blob. Produced once
	// by setup, immutable thereafter.
	SRKPublic string `json:"srk_public,omitempty"`

	PID       int        `json:"pid,omitempty"`
	SetupAt   *time.Time `json:"setup_at,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// Running reports whether a live emulator PID is recorded.
func (t *TPMInstance) Running() bool { return t.PID > 0 }

// Initialized reports whether setup has completed (SRK path recorded).
func (t *TPMInstance) Initialized() bool { return t.SRKPublic != "" }

// VMInstance is the persisted record for the hypervisor process. It has no
// identity beyond a single start/kill cycle; a successful kill zeroes it.
type VMInstance struct {
	// Image is the boot disk path, owned by the external image pipeline and
	// attached read-only (-snapshot).
	Image string `json:"image,omitempty"`
	// TPMCtrlSocket is the resolved TPM control socket captured at launch
	// time. It is a reference, not ownership: the TPM record must not be
	// destroyed while this VM is live.
	TPMCtrlSocket string `json:"tpm_ctrl_socket,omitempty"`

	QMPSocket    string `json:"qmp_socket,omitempty"`
	SerialSocket string `json:"serial_socket,omitempty"`
	// BootID is a fresh UUID per launch, used as the cloud-init instance-id.
	BootID string `json:"boot_id,omitempty"`

	PID       int        `json:"pid,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// Running reports whether a live hypervisor PID is recorded.
func (v *VMInstance) Running() bool { return v.PID > 0 }

// StateRecord is the top-level persisted structure, written atomically on
// every successful state transition and reconciled against the OS process
// table at the start of every command.
type StateRecord struct {
	TPM TPMInstance `json:"tpm"`
	VM  VMInstance  `json:"vm"`
}
