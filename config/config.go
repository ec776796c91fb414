// Package config holds global sealvm configuration and the on-disk layout
// helpers derived from it.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	coretypes "github.com/projecteru2/core/types"
)

// Config holds global sealvm configuration.
type Config struct {
	// RootDir is the base directory for persistent data: the state record
	// and the TPM state directory.
	RootDir string `json:"root_dir" mapstructure:"root_dir"`
	// RunDir holds runtime artifacts: sockets, the cloud-init seed, the
	// per-boot firmware VARS copy.
	RunDir string `json:"run_dir" mapstructure:"run_dir"`
	// LogDir holds the supervised processes' captured output.
	LogDir string `json:"log_dir" mapstructure:"log_dir"`

	// External toolchain. Overridable for non-standard installs (and for
	// tests, which point these at stand-in binaries).
	SwtpmBinary        string `json:"swtpm_binary" mapstructure:"swtpm_binary"`
	TPM2CreatePrimary  string `json:"tpm2_createprimary_binary" mapstructure:"tpm2_createprimary_binary"`
	TPM2ReadPublic     string `json:"tpm2_readpublic_binary" mapstructure:"tpm2_readpublic_binary"`
	QEMUBinary         string `json:"qemu_binary" mapstructure:"qemu_binary"`
	CloudLocaldsBinary string `json:"cloud_localds_binary" mapstructure:"cloud_localds_binary"`

	// UEFI firmware pair. Code is attached read-only; VARS is copied per
	// boot so the template stays pristine.
	FirmwareCode string `json:"firmware_code" mapstructure:"firmware_code"`
	FirmwareVars string `json:"firmware_vars" mapstructure:"firmware_vars"`

	// StartTimeoutSeconds bounds the socket-readiness poll after spawning
	// swtpm or qemu.
	StartTimeoutSeconds int `json:"start_timeout_seconds" mapstructure:"start_timeout_seconds"`
	// StopTimeoutSeconds bounds the graceful-shutdown wait before the
	// SIGTERM→SIGKILL escalation.
	StopTimeoutSeconds int `json:"stop_timeout_seconds" mapstructure:"stop_timeout_seconds"`

	// VM defaults.
	MemoryMB   int    `json:"memory_mb" mapstructure:"memory_mb"`
	SSHPort    int    `json:"ssh_port" mapstructure:"ssh_port"`
	SSHImport  string `json:"ssh_import_id" mapstructure:"ssh_import_id"`
	MachineOpt string `json:"machine" mapstructure:"machine"`

	// Log configuration, uses eru core's ServerLogConfig.
	Log coretypes.ServerLogConfig `json:"log" mapstructure:"log"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RootDir: "/var/lib/sealvm",
		RunDir:  "/run/sealvm",
		LogDir:  "/var/log/sealvm",

		SwtpmBinary:        "swtpm",
		TPM2CreatePrimary:  "tpm2_createprimary",
		TPM2ReadPublic:     "tpm2_readpublic",
		QEMUBinary:         "qemu-system-x86_64",
		CloudLocaldsBinary: "cloud-localds",

		FirmwareCode: "/usr/share/OVMF/OVMF_CODE_4M.ms.fd",
		FirmwareVars: "/usr/share/OVMF/OVMF_VARS_4M.ms.fd",

		StartTimeoutSeconds: 5,
		StopTimeoutSeconds:  30,

		MemoryMB:   2048,
		SSHPort:    2222,
		MachineOpt: "type=q35,accel=kvm",
		Log: coretypes.ServerLogConfig{
			Level:      "info",
			MaxSize:    500,
			MaxAge:     28,
			MaxBackups: 3,
		},
	}
}

// LoadConfig loads configuration from file, falling back to defaults.
func LoadConfig(path string) (*Config, error) {
	conf := DefaultConfig()
	if path == "" {
		return conf, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // config path from CLI flag
	if err != nil {
		if os.IsNotExist(err) {
			return conf, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	conf.Normalize()
	return conf, nil
}

// Normalize fills zero-valued fields with defaults after external loading
// (viper unmarshal or JSON config file).
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.StartTimeoutSeconds <= 0 {
		c.StartTimeoutSeconds = def.StartTimeoutSeconds
	}
	if c.StopTimeoutSeconds <= 0 {
		c.StopTimeoutSeconds = def.StopTimeoutSeconds
	}
	if c.MemoryMB <= 0 {
		c.MemoryMB = def.MemoryMB
	}
	if c.SSHPort <= 0 {
		c.SSHPort = def.SSHPort
	}
	if c.MachineOpt == "" {
		c.MachineOpt = def.MachineOpt
	}
	for field, fallback := range map[*string]string{
		&c.RootDir:            def.RootDir,
		&c.RunDir:             def.RunDir,
		&c.LogDir:             def.LogDir,
		&c.SwtpmBinary:        def.SwtpmBinary,
		&c.TPM2CreatePrimary:  def.TPM2CreatePrimary,
		&c.TPM2ReadPublic:     def.TPM2ReadPublic,
		&c.QEMUBinary:         def.QEMUBinary,
		&c.CloudLocaldsBinary: def.CloudLocaldsBinary,
		&c.FirmwareCode:       def.FirmwareCode,
		&c.FirmwareVars:       def.FirmwareVars,
	} {
		if *field == "" {
			*field = fallback
		}
	}
}
