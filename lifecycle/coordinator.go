// Package lifecycle orchestrates the vTPM and VM supervisors: per-command
// locking, reconcile-then-act, and the cross-component invariants no single
// supervisor can enforce alone (TPM before VM, no destroy while attached).
package lifecycle

import (
	"context"
	"fmt"
	"os/exec"

	"golang.org/x/sync/errgroup"

	"github.com/projecteru2/sealvm/config"
	"github.com/projecteru2/sealvm/errdefs"
	"github.com/projecteru2/sealvm/hypervisor"
	"github.com/projecteru2/sealvm/state"
	"github.com/projecteru2/sealvm/types"
	"github.com/projecteru2/sealvm/vtpm"
)

// Coordinator wires the state store and the two supervisors together.
type Coordinator struct {
	conf  *config.Config
	store *state.Store
	tpm   *vtpm.Supervisor
	vm    *hypervisor.Supervisor
}

// New creates a Coordinator and ensures the base directories exist.
func New(conf *config.Config) (*Coordinator, error) {
	if err := conf.EnsureDirs(); err != nil {
		return nil, err
	}
	return &Coordinator{
		conf:  conf,
		store: state.New(conf),
		tpm:   vtpm.New(conf),
		vm:    hypervisor.New(conf),
	}, nil
}

// withState is the reconcile-then-act frame every command runs in:
// fail-fast lock acquisition, liveness reconciliation (self-healing after
// crashes and out-of-band kills), the operation itself, then an atomic
// persist of the resulting record.
func (c *Coordinator) withState(ctx context.Context, fn func(rec *types.StateRecord) error) error {
	ok, err := c.store.TryLock(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errdefs.ErrBusy
	}
	defer c.store.Unlock(ctx) //nolint:errcheck

	rec, err := c.store.Reconcile(ctx)
	if err != nil {
		return err
	}
	if err := fn(rec); err != nil {
		return err
	}
	return c.store.Save(rec)
}

// TPMSetup provisions TPM state and the SRK. See vtpm.Supervisor.Setup.
func (c *Coordinator) TPMSetup(ctx context.Context, force bool) error {
	return c.withState(ctx, func(rec *types.StateRecord) error {
		return c.tpm.Setup(ctx, rec, force)
	})
}

// TPMStart launches the emulator.
func (c *Coordinator) TPMStart(ctx context.Context) error {
	return c.withState(ctx, func(rec *types.StateRecord) error {
		return c.tpm.Start(ctx, rec)
	})
}

// TPMKill stops the emulator. Idempotent: soft success when not running.
// The VM keeps running if one is up — killing the TPM under a live VM is
// the operator's call; the guest sees its TPM device fail.
func (c *Coordinator) TPMKill(ctx context.Context) error {
	return c.withState(ctx, func(rec *types.StateRecord) error {
		return c.tpm.Kill(ctx, rec)
	})
}

// TPMDestroy irreversibly wipes TPM state. Rejected while the emulator or
// any VM referencing it is live — this cross-component check is the
// coordinator's, made against the just-reconciled record rather than a
// cached value.
func (c *Coordinator) TPMDestroy(ctx context.Context) error {
	return c.withState(ctx, func(rec *types.StateRecord) error {
		if rec.VM.Running() {
			return fmt.Errorf("%w: VM (pid %d) is attached; run `sealvm vm kill` first", errdefs.ErrInUse, rec.VM.PID)
		}
		if rec.TPM.Running() {
			return fmt.Errorf("%w: TPM emulator (pid %d); run `sealvm tpm kill` first", errdefs.ErrInUse, rec.TPM.PID)
		}
		return c.tpm.Destroy(ctx, rec)
	})
}

// TPMStatus reports the reconciled TPM state.
func (c *Coordinator) TPMStatus(ctx context.Context) (string, error) {
	var status string
	err := c.withState(ctx, func(rec *types.StateRecord) error {
		status = c.tpm.Status(rec)
		return nil
	})
	return status, err
}

// VMStart launches the hypervisor. The TPM-readiness precondition is
// checked here against the reconciled record (and re-checked by the
// supervisor): a stale TPM PID from a crashed emulator never passes,
// because reconciliation cleared it first.
func (c *Coordinator) VMStart(ctx context.Context, opts hypervisor.StartOptions) error {
	return c.withState(ctx, func(rec *types.StateRecord) error {
		if !rec.TPM.Running() {
			return fmt.Errorf("%w: TPM not running; run `sealvm tpm start` first", errdefs.ErrTPMNotReady)
		}
		return c.vm.Start(ctx, rec, opts)
	})
}

// VMKill stops the hypervisor. Idempotent.
func (c *Coordinator) VMKill(ctx context.Context) error {
	return c.withState(ctx, func(rec *types.StateRecord) error {
		return c.vm.Kill(ctx, rec)
	})
}

// VMStatus reports the reconciled VM state.
func (c *Coordinator) VMStatus(ctx context.Context) (string, error) {
	var status string
	err := c.withState(ctx, func(rec *types.StateRecord) error {
		status = c.vm.Status(rec)
		return nil
	})
	return status, err
}

// VMConsole attaches to the serial console. The lock is released before
// the interactive session — a console attachment must not starve other
// commands — so the record is snapshotted under lock first.
func (c *Coordinator) VMConsole(ctx context.Context) error {
	var snapshot types.StateRecord
	if err := c.withState(ctx, func(rec *types.StateRecord) error {
		snapshot = *rec
		return nil
	}); err != nil {
		return err
	}
	return c.vm.Console(ctx, &snapshot)
}

// CheckDependencies verifies the required external binaries are on PATH
// before a command commits to anything, concurrently.
func CheckDependencies(ctx context.Context, binaries ...string) error {
	g, _ := errgroup.WithContext(ctx)
	for _, bin := range binaries {
		g.Go(func() error {
			if _, err := exec.LookPath(bin); err != nil {
				return fmt.Errorf("%s not installed: %w", bin, err)
			}
			return nil
		})
	}
	return g.Wait()
}
