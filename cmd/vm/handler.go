package vm

import (
	"fmt"

	units "github.com/docker/go-units"
	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"

	cmdcore "github.com/projecteru2/sealvm/cmd/core"
	"github.com/projecteru2/sealvm/config"
	"github.com/projecteru2/sealvm/hypervisor"
)

// Handler implements Actions on top of the lifecycle coordinator.
type Handler struct {
	cmdcore.BaseHandler
}

func (h Handler) Start(cmd *cobra.Command, _ []string) error {
	conf, err := h.Conf()
	if err != nil {
		return err
	}

	deps := []string{conf.QEMUBinary}
	sshImportID, _ := cmd.Flags().GetString("ssh-import-id")
	if sshImportID == "" {
		sshImportID = conf.SSHImport
	}
	if sshImportID != "" {
		deps = append(deps, conf.CloudLocaldsBinary)
	}

	ctx, coord, err := h.Coordinator(cmd, deps...)
	if err != nil {
		return err
	}

	opts, err := startOptions(cmd, conf, sshImportID)
	if err != nil {
		return err
	}
	if err := coord.VMStart(ctx, opts); err != nil {
		return err
	}

	logger := log.WithFunc("cmd.vm.start")
	logger.Infof(ctx, "VM started from %s", opts.Image)
	logger.Infof(ctx, "SSH: ssh -p %d <user>@localhost; console: sealvm vm console", opts.SSHPort)
	return nil
}

func startOptions(cmd *cobra.Command, conf *config.Config, sshImportID string) (hypervisor.StartOptions, error) {
	image, _ := cmd.Flags().GetString("image")
	memStr, _ := cmd.Flags().GetString("memory")
	sshPort, _ := cmd.Flags().GetInt("ssh-port")

	memBytes := int64(conf.MemoryMB) << 20 //nolint:mnd
	if memStr != "" {
		var err error
		memBytes, err = units.RAMInBytes(memStr)
		if err != nil {
			return hypervisor.StartOptions{}, fmt.Errorf("invalid --memory %q: %w", memStr, err)
		}
	}
	if sshPort == 0 {
		sshPort = conf.SSHPort
	}

	return hypervisor.StartOptions{
		Image:       image,
		MemoryBytes: memBytes,
		SSHPort:     sshPort,
		SSHImportID: sshImportID,
	}, nil
}

func (h Handler) Kill(cmd *cobra.Command, _ []string) error {
	ctx, coord, err := h.Coordinator(cmd)
	if err != nil {
		return err
	}
	return coord.VMKill(ctx)
}

func (h Handler) Status(cmd *cobra.Command, _ []string) error {
	ctx, coord, err := h.Coordinator(cmd)
	if err != nil {
		return err
	}
	status, err := coord.VMStatus(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("VM: %s\n", status)
	return nil
}

func (h Handler) Console(cmd *cobra.Command, _ []string) error {
	ctx, coord, err := h.Coordinator(cmd)
	if err != nil {
		return err
	}
	return coord.VMConsole(ctx)
}
