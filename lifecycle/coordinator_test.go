package lifecycle

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"
	"unsafe"

	"github.com/projecteru2/core/log"
	coretypes "github.com/projecteru2/core/types"
	"golang.org/x/sys/unix"

	"github.com/projecteru2/sealvm/config"
	"github.com/projecteru2/sealvm/errdefs"
	"github.com/projecteru2/sealvm/hypervisor"
	"github.com/projecteru2/sealvm/state"
	"github.com/projecteru2/sealvm/types"
	"github.com/projecteru2/sealvm/utils"
)

const srkBlob = "fake-srk-public-blob\n"

// TestMain doubles as the entry point for the stand-in binaries the stub
// scripts exec. A non-empty SEALVM_HELPER_MODE means this process is one of
// them and must never run the test suite.
func TestMain(m *testing.M) {
	if os.Getenv("SEALVM_HELPER_MODE") != "" {
		helperMain()
		return
	}
	_ = log.SetupLog(context.TODO(), &coretypes.ServerLogConfig{Level: "warn"}, "")
	os.Exit(m.Run())
}

func helperMain() {
	// Match the comm name the supervisors verify before signaling.
	if comm := os.Getenv("SEALVM_HELPER_COMM"); comm != "" {
		b, err := unix.BytePtrFromString(comm)
		if err == nil {
			_ = unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(b)), 0, 0, 0)
		}
	}

	args := os.Args[1:]
	switch os.Getenv("SEALVM_HELPER_MODE") {
	case "swtpm":
		if p := socketPath(argAfter(args, "--ctrl")); p != "" {
			holdSocket(p)
		}
		if p := socketPath(argAfter(args, "--server")); p != "" {
			holdSocket(p)
		}
		select {}
	case "hang":
		// Never opens a socket; readiness polling must time out.
		select {}
	case "fail":
		fmt.Fprintln(os.Stderr, "swtpm: fatal: TPM state is corrupted")
		os.Exit(1)
	case "tpm2_createprimary":
		if err := os.WriteFile(argAfter(args, "-c"), []byte("srk-context"), 0o600); err != nil {
			os.Exit(1)
		}
	case "tpm2_readpublic":
		if err := os.WriteFile(argAfter(args, "-o"), []byte(srkBlob), 0o600); err != nil {
			os.Exit(1)
		}
	case "qemu":
		serveQMP(socketPath(argAfter(args, "-qmp")))
	default:
		os.Exit(1)
	}
}

// argAfter returns the value following flag, or "".
func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// socketPath extracts the unix socket path from "type=unixio,path=X" or
// "unix:X,server=on,wait=off" option strings.
func socketPath(opt string) string {
	for _, part := range strings.Split(opt, ",") {
		if strings.HasPrefix(part, "path=") {
			return strings.TrimPrefix(part, "path=")
		}
		if strings.HasPrefix(part, "unix:") {
			return strings.TrimPrefix(part, "unix:")
		}
	}
	return ""
}

func holdSocket(path string) {
	ln, err := net.Listen("unix", path)
	if err != nil {
		os.Exit(1)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()
}

// serveQMP answers the QMP handshake and commands; system_powerdown makes
// the process exit like a guest that powered off.
func serveQMP(path string) {
	if path == "" {
		os.Exit(1)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		os.Exit(1)
	}
	for {
		conn, err := ln.Accept()
		if err != nil {
			os.Exit(1)
		}
		fmt.Fprintln(conn, `{"QMP": {"version": {}, "capabilities": []}}`)
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			var req struct {
				Execute string `json:"execute"`
				ID      string `json:"id"`
			}
			if json.Unmarshal(sc.Bytes(), &req) != nil {
				continue
			}
			resp, _ := json.Marshal(map[string]any{"return": map[string]any{}, "id": req.ID})
			fmt.Fprintf(conn, "%s\n", resp)
			if req.Execute == "system_powerdown" {
				time.Sleep(50 * time.Millisecond)
				os.Exit(0)
			}
		}
		_ = conn.Close()
	}
}

// writeStub writes an executable script at dir/name that re-execs the test
// binary as a stand-in process running in mode.
func writeStub(t *testing.T, dir, name, mode string) string {
	t.Helper()
	self, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	path := filepath.Join(dir, name)
	script := fmt.Sprintf("#!/bin/sh\nSEALVM_HELPER_MODE=%s SEALVM_HELPER_COMM=%s exec %q \"$@\"\n", mode, name, self)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return path
}

func newTestConf(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	bindir := filepath.Join(base, "bin")
	if err := os.MkdirAll(bindir, 0o755); err != nil {
		t.Fatal(err)
	}

	vars := filepath.Join(base, "OVMF_VARS.fd")
	if err := os.WriteFile(vars, []byte("vars-template"), 0o644); err != nil {
		t.Fatal(err)
	}

	conf := config.DefaultConfig()
	conf.RootDir = filepath.Join(base, "lib")
	conf.RunDir = filepath.Join(base, "run")
	conf.LogDir = filepath.Join(base, "log")
	conf.SwtpmBinary = writeStub(t, bindir, "swtpm", "swtpm")
	conf.TPM2CreatePrimary = writeStub(t, bindir, "tpm2_createprimary", "tpm2_createprimary")
	conf.TPM2ReadPublic = writeStub(t, bindir, "tpm2_readpublic", "tpm2_readpublic")
	conf.QEMUBinary = writeStub(t, bindir, "qemu-system-x86_64", "qemu")
	conf.FirmwareCode = vars
	conf.FirmwareVars = vars
	conf.StartTimeoutSeconds = 3
	conf.StopTimeoutSeconds = 2
	return conf
}

func newCoordinator(t *testing.T) (*Coordinator, *config.Config) {
	t.Helper()
	conf := newTestConf(t)
	c, err := New(conf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, conf
}

// readRecord loads the persisted record out-of-band. The store lock is free
// between coordinator calls.
func readRecord(t *testing.T, conf *config.Config) *types.StateRecord {
	t.Helper()
	st := state.New(conf)
	rec, err := st.Load()
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	return rec
}

// reapOnExit reaps pid in the background. The stand-in processes are
// children of the test binary, so without this they would linger as zombies
// and keep looking alive to the supervisors.
func reapOnExit(pid int) {
	go func() {
		var ws syscall.WaitStatus
		_, _ = syscall.Wait4(pid, &ws, 0, nil)
	}()
}

func testImage(t *testing.T, conf *config.Config) string {
	t.Helper()
	path := filepath.Join(conf.RootDir, "disk.img")
	if err := os.WriteFile(path, []byte("disk"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func startTPM(t *testing.T, c *Coordinator, conf *config.Config) int {
	t.Helper()
	if err := c.TPMStart(context.TODO()); err != nil {
		t.Fatalf("TPMStart: %v", err)
	}
	pid := readRecord(t, conf).TPM.PID
	if pid <= 0 {
		t.Fatalf("TPMStart recorded pid %d", pid)
	}
	reapOnExit(pid)
	return pid
}

func startVM(t *testing.T, c *Coordinator, conf *config.Config) int {
	t.Helper()
	err := c.VMStart(context.TODO(), hypervisor.StartOptions{
		Image:       testImage(t, conf),
		MemoryBytes: 64 << 20,
		SSHPort:     2222,
	})
	if err != nil {
		t.Fatalf("VMStart: %v", err)
	}
	pid := readRecord(t, conf).VM.PID
	if pid <= 0 {
		t.Fatalf("VMStart recorded pid %d", pid)
	}
	reapOnExit(pid)
	return pid
}

func waitGone(t *testing.T, pid int) {
	t.Helper()
	if err := utils.WaitFor(context.TODO(), 3*time.Second, 50*time.Millisecond, func() (bool, error) {
		return !utils.IsProcessAlive(pid), nil
	}); err != nil {
		t.Fatalf("pid %d still alive: %v", pid, err)
	}
}

func TestTPMSetup(t *testing.T) {
	c, conf := newCoordinator(t)
	ctx := context.TODO()

	if err := c.TPMSetup(ctx, false); err != nil {
		t.Fatalf("TPMSetup: %v", err)
	}

	data, err := os.ReadFile(conf.SRKPublicPath())
	if err != nil {
		t.Fatalf("srk.pub not written: %v", err)
	}
	if string(data) != srkBlob {
		t.Fatalf("srk.pub = %q, want %q", data, srkBlob)
	}

	rec := readRecord(t, conf)
	if !rec.TPM.Initialized() {
		t.Fatal("record not marked initialized")
	}
	if rec.TPM.Running() {
		t.Fatalf("setup left pid %d recorded", rec.TPM.PID)
	}
	// The provisioning swtpm's sockets must not survive setup.
	for _, p := range []string{conf.TPMServerSocket(), conf.TPMCtrlSocket()} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("socket %s survived setup", p)
		}
	}
}

func TestTPMSetupAlreadyInitialized(t *testing.T) {
	c, conf := newCoordinator(t)
	ctx := context.TODO()

	if err := c.TPMSetup(ctx, false); err != nil {
		t.Fatalf("first setup: %v", err)
	}
	// Distinguishable content proves the second setup did not touch the blob.
	custom := []byte("operator-sealed-key-material")
	if err := os.WriteFile(conf.SRKPublicPath(), custom, 0o600); err != nil {
		t.Fatal(err)
	}

	err := c.TPMSetup(ctx, false)
	if !errors.Is(err, errdefs.ErrAlreadyInitialized) {
		t.Fatalf("second setup err = %v, want AlreadyInitialized", err)
	}
	data, _ := os.ReadFile(conf.SRKPublicPath())
	if !bytes.Equal(data, custom) {
		t.Fatalf("srk.pub changed by rejected setup: %q", data)
	}
}

func TestTPMSetupForce(t *testing.T) {
	c, conf := newCoordinator(t)
	ctx := context.TODO()

	if err := c.TPMSetup(ctx, false); err != nil {
		t.Fatalf("first setup: %v", err)
	}
	if err := os.WriteFile(conf.SRKPublicPath(), []byte("stale"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := c.TPMSetup(ctx, true); err != nil {
		t.Fatalf("forced setup: %v", err)
	}
	data, _ := os.ReadFile(conf.SRKPublicPath())
	if string(data) != srkBlob {
		t.Fatalf("forced setup did not reprovision: %q", data)
	}
}

func TestTPMStartNotInitialized(t *testing.T) {
	c, _ := newCoordinator(t)
	if err := c.TPMStart(context.TODO()); !errors.Is(err, errdefs.ErrNotInitialized) {
		t.Fatalf("err = %v, want NotInitialized", err)
	}
}

func TestTPMStartKill(t *testing.T) {
	c, conf := newCoordinator(t)
	ctx := context.TODO()

	if err := c.TPMSetup(ctx, false); err != nil {
		t.Fatalf("setup: %v", err)
	}
	pid := startTPM(t, c, conf)

	if !utils.IsProcessAlive(pid) {
		t.Fatalf("pid %d not alive after start", pid)
	}
	if err := utils.CheckSocket(conf.TPMCtrlSocket()); err != nil {
		t.Fatalf("ctrl socket not connectable: %v", err)
	}

	if err := c.TPMStart(ctx); !errors.Is(err, errdefs.ErrAlreadyRunning) {
		t.Fatalf("second start err = %v, want AlreadyRunning", err)
	}

	if err := c.TPMKill(ctx); err != nil {
		t.Fatalf("kill: %v", err)
	}
	waitGone(t, pid)
	rec := readRecord(t, conf)
	if rec.TPM.PID != 0 {
		t.Fatalf("pid %d still recorded after kill", rec.TPM.PID)
	}
	if !rec.TPM.Initialized() {
		t.Fatal("kill must not drop initialization")
	}

	// Idempotent.
	if err := c.TPMKill(ctx); err != nil {
		t.Fatalf("second kill: %v", err)
	}
}

func TestTPMStartupTimeout(t *testing.T) {
	c, conf := newCoordinator(t)
	conf.SwtpmBinary = writeStub(t, filepath.Dir(conf.SwtpmBinary), "swtpm-hang", "hang")
	conf.StartTimeoutSeconds = 1

	seedInitialized(t, conf)

	err := c.TPMStart(context.TODO())
	if !errors.Is(err, errdefs.ErrStartupTimeout) {
		t.Fatalf("err = %v, want StartupTimeout", err)
	}
	if rec := readRecord(t, conf); rec.TPM.PID != 0 {
		t.Fatalf("timed-out start recorded pid %d", rec.TPM.PID)
	}
}

func TestTPMStartLaunchFailedDiagnostic(t *testing.T) {
	c, conf := newCoordinator(t)
	conf.SwtpmBinary = writeStub(t, filepath.Dir(conf.SwtpmBinary), "swtpm-fail", "fail")

	seedInitialized(t, conf)

	err := c.TPMStart(context.TODO())
	if !errors.Is(err, errdefs.ErrLaunchFailed) {
		t.Fatalf("err = %v, want LaunchFailed", err)
	}
	if !strings.Contains(err.Error(), "TPM state is corrupted") {
		t.Fatalf("error lacks captured diagnostic: %v", err)
	}
}

// seedInitialized fabricates a completed setup on disk without running one.
func seedInitialized(t *testing.T, conf *config.Config) {
	t.Helper()
	if err := os.MkdirAll(conf.TPMStateDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(conf.SRKPublicPath(), []byte(srkBlob), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestTPMStartFlagsOrphanEmulator(t *testing.T) {
	c, conf := newCoordinator(t)
	ctx := context.TODO()
	seedInitialized(t, conf)

	// An emulator left behind by an invocation that died before persisting
	// its PID: live on the ctrl socket, absent from the record.
	ln, err := net.Listen("unix", conf.TPMCtrlSocket())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close() //nolint:errcheck
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	if err := c.TPMStart(ctx); !errors.Is(err, errdefs.ErrAlreadyRunning) {
		t.Fatalf("err = %v, want AlreadyRunning", err)
	}
	// The orphan's socket must survive as evidence, not be unlinked.
	if err := utils.CheckSocket(conf.TPMCtrlSocket()); err != nil {
		t.Fatalf("orphan socket was removed: %v", err)
	}
	if rec := readRecord(t, conf); rec.TPM.PID != 0 {
		t.Fatalf("second emulator recorded over the orphan: pid %d", rec.TPM.PID)
	}

	// Setup must refuse for the same reason: it would reprovision the NVRAM
	// directory out from under the orphan. The refusal must come before the
	// force wipe.
	if err := c.TPMSetup(ctx, true); !errors.Is(err, errdefs.ErrAlreadyRunning) {
		t.Fatalf("setup err = %v, want AlreadyRunning", err)
	}
	if !utils.ValidFile(conf.SRKPublicPath()) {
		t.Fatal("forced setup wiped state despite the orphan")
	}
}

func TestVMStartFlagsOrphanHypervisor(t *testing.T) {
	c, conf := newCoordinator(t)
	ctx := context.TODO()

	if err := c.TPMSetup(ctx, false); err != nil {
		t.Fatalf("setup: %v", err)
	}
	tpmPID := startTPM(t, c, conf)
	defer func() { _ = c.TPMKill(ctx); waitGone(t, tpmPID) }()

	ln, err := net.Listen("unix", conf.VMQMPSocket())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close() //nolint:errcheck
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	err = c.VMStart(ctx, hypervisor.StartOptions{Image: testImage(t, conf), MemoryBytes: 64 << 20, SSHPort: 2222})
	if !errors.Is(err, errdefs.ErrAlreadyRunning) {
		t.Fatalf("err = %v, want AlreadyRunning", err)
	}
	if err := utils.CheckSocket(conf.VMQMPSocket()); err != nil {
		t.Fatalf("orphan QMP socket was removed: %v", err)
	}
	if rec := readRecord(t, conf); rec.VM.PID != 0 {
		t.Fatalf("second hypervisor recorded over the orphan: pid %d", rec.VM.PID)
	}
}

func TestVMStartRequiresTPM(t *testing.T) {
	c, conf := newCoordinator(t)
	ctx := context.TODO()
	opts := hypervisor.StartOptions{Image: testImage(t, conf), MemoryBytes: 64 << 20, SSHPort: 2222}

	// No TPM at all.
	if err := c.VMStart(ctx, opts); !errors.Is(err, errdefs.ErrTPMNotReady) {
		t.Fatalf("err = %v, want TpmNotReady", err)
	}

	// A stale PID from a crashed emulator must be reconciled away, not
	// trusted.
	st := state.New(conf)
	if ok, err := st.TryLock(ctx); err != nil || !ok {
		t.Fatalf("lock: ok=%v err=%v", ok, err)
	}
	now := time.Now()
	if err := st.Save(&types.StateRecord{TPM: types.TPMInstance{
		StateDir:   conf.TPMStateDir(),
		CtrlSocket: conf.TPMCtrlSocket(),
		SRKPublic:  conf.SRKPublicPath(),
		PID:        stalePID,
		StartedAt:  &now,
	}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := st.Unlock(ctx); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	if err := c.VMStart(ctx, opts); !errors.Is(err, errdefs.ErrTPMNotReady) {
		t.Fatalf("stale pid err = %v, want TpmNotReady", err)
	}
	if rec := readRecord(t, conf); rec.TPM.PID != 0 {
		t.Fatalf("stale pid %d not reconciled", rec.TPM.PID)
	}
}

// stalePID exceeds the default kernel pid_max so it can never be a live
// process on a stock configuration.
const stalePID = 4194305

func TestVMStartBadImage(t *testing.T) {
	c, conf := newCoordinator(t)
	ctx := context.TODO()

	if err := c.TPMSetup(ctx, false); err != nil {
		t.Fatalf("setup: %v", err)
	}
	tpmPID := startTPM(t, c, conf)
	defer func() { _ = c.TPMKill(ctx); waitGone(t, tpmPID) }()

	err := c.VMStart(ctx, hypervisor.StartOptions{
		Image:       filepath.Join(conf.RootDir, "nonexistent.img"),
		MemoryBytes: 64 << 20,
		SSHPort:     2222,
	})
	if !errors.Is(err, errdefs.ErrLaunchFailed) {
		t.Fatalf("err = %v, want LaunchFailed", err)
	}
}

func TestFullLifecycle(t *testing.T) {
	c, conf := newCoordinator(t)
	ctx := context.TODO()

	if err := c.TPMSetup(ctx, false); err != nil {
		t.Fatalf("setup: %v", err)
	}
	tpmPID := startTPM(t, c, conf)
	vmPID := startVM(t, c, conf)

	if !utils.IsProcessAlive(tpmPID) || !utils.IsProcessAlive(vmPID) {
		t.Fatalf("expected both pids alive (tpm %d, vm %d)", tpmPID, vmPID)
	}
	rec := readRecord(t, conf)
	if rec.VM.TPMCtrlSocket != rec.TPM.CtrlSocket {
		t.Fatalf("VM bound to %s, TPM serves %s", rec.VM.TPMCtrlSocket, rec.TPM.CtrlSocket)
	}
	if rec.VM.BootID == "" {
		t.Fatal("no boot ID recorded")
	}

	// Second VM start must be rejected while one is live.
	err := c.VMStart(ctx, hypervisor.StartOptions{Image: rec.VM.Image, MemoryBytes: 64 << 20, SSHPort: 2222})
	if !errors.Is(err, errdefs.ErrAlreadyRunning) {
		t.Fatalf("second VMStart err = %v, want AlreadyRunning", err)
	}

	// Destroy is rejected twice: attached VM first, then live emulator.
	if err := c.TPMDestroy(ctx); !errors.Is(err, errdefs.ErrInUse) {
		t.Fatalf("destroy with VM err = %v, want InUse", err)
	}

	if err := c.VMKill(ctx); err != nil {
		t.Fatalf("VMKill: %v", err)
	}
	waitGone(t, vmPID)
	if rec := readRecord(t, conf); rec.VM.PID != 0 || rec.VM.BootID != "" {
		t.Fatalf("VM record not cleared: %+v", rec.VM)
	}

	if err := c.TPMDestroy(ctx); !errors.Is(err, errdefs.ErrInUse) {
		t.Fatalf("destroy with live TPM err = %v, want InUse", err)
	}

	if err := c.TPMKill(ctx); err != nil {
		t.Fatalf("TPMKill: %v", err)
	}
	waitGone(t, tpmPID)

	if err := c.TPMDestroy(ctx); err != nil {
		t.Fatalf("TPMDestroy: %v", err)
	}
	if _, err := os.Stat(conf.TPMStateDir()); !os.IsNotExist(err) {
		t.Fatalf("TPM state dir survived destroy: %v", err)
	}
	rec = readRecord(t, conf)
	if rec.TPM.Initialized() || rec.TPM.Running() {
		t.Fatalf("TPM record not cleared: %+v", rec.TPM)
	}
}

func TestCrashSelfHealing(t *testing.T) {
	c, conf := newCoordinator(t)
	ctx := context.TODO()

	if err := c.TPMSetup(ctx, false); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := c.TPMStart(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	pid := readRecord(t, conf).TPM.PID

	// Simulate an out-of-band crash.
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil {
		t.Fatalf("kill -9 %d: %v", pid, err)
	}
	var ws syscall.WaitStatus
	if _, err := syscall.Wait4(pid, &ws, 0, nil); err != nil {
		t.Fatalf("wait4: %v", err)
	}

	// Status reconciles the stale PID away instead of reporting a ghost.
	status, err := c.TPMStatus(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != "initialized, not running" {
		t.Fatalf("status = %q after crash", status)
	}

	// And a fresh start succeeds without any manual cleanup.
	newPID := startTPM(t, c, conf)
	if newPID == pid {
		t.Fatalf("pid %d reused suspiciously fast", newPID)
	}
	if err := c.TPMKill(ctx); err != nil {
		t.Fatalf("kill: %v", err)
	}
	waitGone(t, newPID)
}

func TestBusy(t *testing.T) {
	c, conf := newCoordinator(t)
	ctx := context.TODO()

	// Another invocation holds the state lock.
	other := state.New(conf)
	if ok, err := other.TryLock(ctx); err != nil || !ok {
		t.Fatalf("lock: ok=%v err=%v", ok, err)
	}
	defer other.Unlock(ctx) //nolint:errcheck

	if _, err := c.TPMStatus(ctx); !errors.Is(err, errdefs.ErrBusy) {
		t.Fatalf("err = %v, want Busy", err)
	}
	if err := c.TPMSetup(ctx, false); !errors.Is(err, errdefs.ErrBusy) {
		t.Fatalf("setup err = %v, want Busy", err)
	}
}

func TestVMKillIdempotent(t *testing.T) {
	c, _ := newCoordinator(t)
	if err := c.VMKill(context.TODO()); err != nil {
		t.Fatalf("kill with nothing running: %v", err)
	}
}

func TestCheckDependencies(t *testing.T) {
	ctx := context.TODO()
	if err := CheckDependencies(ctx, "sh"); err != nil {
		t.Fatalf("sh should be found: %v", err)
	}
	if err := CheckDependencies(ctx, "sh", "definitely-not-a-real-binary-xyz"); err == nil {
		t.Fatal("expected missing-binary error")
	}
}
