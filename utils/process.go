package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const killPollInterval = 100 * time.Millisecond

// IsProcessAlive returns true if a process with the given PID currently
// exists. Uses kill(pid, 0) — no signal is sent, only existence is checked.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

// VerifyProcess returns true if pid is alive AND its command name matches
// comm. Guards against signaling a recycled PID that now belongs to an
// unrelated process.
func VerifyProcess(pid int, comm string) bool {
	if !IsProcessAlive(pid) {
		return false
	}
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "comm")) //nolint:gosec
	if err != nil {
		// /proc entry gone or unreadable; liveness alone is the best we have.
		return true
	}
	name := strings.TrimSpace(string(data))
	// comm is truncated to 15 chars by the kernel.
	want := comm
	if len(want) > 15 {
		want = want[:15]
	}
	return name == want
}

// TerminateProcess sends SIGTERM to pid, waits up to gracePeriod for it to
// exit, then escalates to SIGKILL. Returns once the process is gone.
func TerminateProcess(ctx context.Context, pid int, gracePeriod time.Duration) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil // already gone
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if !IsProcessAlive(pid) {
			return nil
		}
		return proc.Kill()
	}
	if err := WaitFor(ctx, gracePeriod, killPollInterval, func() (bool, error) {
		return !IsProcessAlive(pid), nil
	}); err == nil {
		return nil
	}
	if err := proc.Kill(); err != nil && IsProcessAlive(pid) {
		return fmt.Errorf("SIGKILL pid %d: %w", pid, err)
	}
	// SIGKILL cannot be ignored, but give the kernel a beat to reap.
	_ = WaitFor(ctx, time.Second, killPollInterval, func() (bool, error) {
		return !IsProcessAlive(pid), nil
	})
	return nil
}
