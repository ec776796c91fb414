// Package errdefs defines the typed error kinds surfaced by sealvm
// lifecycle operations, and their mapping to process exit codes so that
// scripted callers can branch without parsing text.
package errdefs

import "errors"

var (
	// ErrAlreadyInitialized — tpm setup found an existing SRK and no --force.
	ErrAlreadyInitialized = errors.New("TPM already initialized")
	// ErrNotInitialized — tpm start before tpm setup.
	ErrNotInitialized = errors.New("TPM not initialized")
	// ErrAlreadyRunning — start requested while a live PID is recorded.
	ErrAlreadyRunning = errors.New("already running")
	// ErrTPMNotReady — vm start while the TPM has no live process or no
	// connectable control socket.
	ErrTPMNotReady = errors.New("TPM not ready")
	// ErrLaunchFailed — the supervised process could not be spawned or died
	// before becoming ready. The underlying diagnostic is attached.
	ErrLaunchFailed = errors.New("launch failed")
	// ErrStartupTimeout — the process started but its socket never became
	// ready within the configured window.
	ErrStartupTimeout = errors.New("startup timed out")
	// ErrInUse — tpm destroy while the TPM or a VM referencing it is live.
	ErrInUse = errors.New("in use")
	// ErrBusy — another sealvm invocation holds the state lock.
	ErrBusy = errors.New("state locked by another invocation")
)

// Exit codes per error kind. 0 is success, 1 is any unclassified error.
const (
	ExitOK                 = 0
	ExitGeneric            = 1
	ExitBusy               = 2
	ExitNotReady           = 3
	ExitAlreadyRunning     = 4
	ExitLaunchFailed       = 5
	ExitInUse              = 6
	ExitStartupTimeout     = 7
	ExitAlreadyInitialized = 8
	ExitNotInitialized     = 9
)

// ExitCode classifies err into its exit code. Wrapped errors are matched
// with errors.Is, so callers may add context with %w freely.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrBusy):
		return ExitBusy
	case errors.Is(err, ErrTPMNotReady):
		return ExitNotReady
	case errors.Is(err, ErrAlreadyRunning):
		return ExitAlreadyRunning
	case errors.Is(err, ErrLaunchFailed):
		return ExitLaunchFailed
	case errors.Is(err, ErrInUse):
		return ExitInUse
	case errors.Is(err, ErrStartupTimeout):
		return ExitStartupTimeout
	case errors.Is(err, ErrAlreadyInitialized):
		return ExitAlreadyInitialized
	case errors.Is(err, ErrNotInitialized):
		return ExitNotInitialized
	default:
		return ExitGeneric
	}
}
