package config

import (
	"path/filepath"
	"time"

	"github.com/projecteru2/sealvm/utils"
)

// EnsureDirs creates the static directories sealvm needs.
func (c *Config) EnsureDirs() error {
	return utils.EnsureDirs(c.RootDir, c.RunDir, c.LogDir)
}

// StateFile and StateLock are the state record store paths.
func (c *Config) StateFile() string { return filepath.Join(c.RootDir, "state.json") }
func (c *Config) StateLock() string { return filepath.Join(c.RootDir, "state.lock") }

// TPMStateDir owns all TPM persistent state. `tpm destroy` removes exactly
// this directory.
func (c *Config) TPMStateDir() string { return filepath.Join(c.RootDir, "tpm") }

// SRKPublicPath is the exported Storage Root Key public blob, consumed by
// the external disk-encryption/deployment tool. Stable once setup succeeds.
func (c *Config) SRKPublicPath() string { return filepath.Join(c.TPMStateDir(), "srk.pub") }

// SRKContextPath is the transient key context used between the
// tpm2_createprimary and tpm2_readpublic invocations.
func (c *Config) SRKContextPath() string { return filepath.Join(c.TPMStateDir(), "srk.ctx") }

// TPMServerSocket is the TPM command channel, only listened on during setup
// for the tpm2 provisioning toolkit.
func (c *Config) TPMServerSocket() string { return filepath.Join(c.RunDir, "swtpm.sock") }

// TPMCtrlSocket is the control channel the hypervisor attaches to.
// swtpm derives it as "<server socket>.ctrl".
func (c *Config) TPMCtrlSocket() string { return c.TPMServerSocket() + ".ctrl" }

func (c *Config) TPMLogFile() string { return filepath.Join(c.LogDir, "swtpm.log") }

// VM runtime paths.
func (c *Config) VMQMPSocket() string    { return filepath.Join(c.RunDir, "qmp.sock") }
func (c *Config) VMSerialSocket() string { return filepath.Join(c.RunDir, "serial.sock") }
func (c *Config) VMSeedImage() string    { return filepath.Join(c.RunDir, "seed.img") }
func (c *Config) VMFirmwareVars() string { return filepath.Join(c.RunDir, "OVMF_VARS.ms.fd") }
func (c *Config) VMLogFile() string      { return filepath.Join(c.LogDir, "qemu.log") }

// StartTimeout is the socket-readiness window after spawning a process.
func (c *Config) StartTimeout() time.Duration {
	return time.Duration(c.StartTimeoutSeconds) * time.Second
}

// StopTimeout is the graceful-shutdown window before escalation.
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.StopTimeoutSeconds) * time.Second
}
