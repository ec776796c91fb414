package tpm

import (
	"fmt"

	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"

	cmdcore "github.com/projecteru2/sealvm/cmd/core"
)

// Handler implements Actions on top of the lifecycle coordinator.
type Handler struct {
	cmdcore.BaseHandler
}

func (h Handler) Setup(cmd *cobra.Command, _ []string) error {
	conf, err := h.Conf()
	if err != nil {
		return err
	}
	ctx, coord, err := h.Coordinator(cmd, conf.SwtpmBinary, conf.TPM2CreatePrimary, conf.TPM2ReadPublic)
	if err != nil {
		return err
	}
	force, _ := cmd.Flags().GetBool("force")
	if err := coord.TPMSetup(ctx, force); err != nil {
		return err
	}
	log.WithFunc("cmd.tpm.setup").Infof(ctx, "TPM provisioned, SRK public blob at %s", conf.SRKPublicPath())
	return nil
}

func (h Handler) Start(cmd *cobra.Command, _ []string) error {
	conf, err := h.Conf()
	if err != nil {
		return err
	}
	ctx, coord, err := h.Coordinator(cmd, conf.SwtpmBinary)
	if err != nil {
		return err
	}
	return coord.TPMStart(ctx)
}

func (h Handler) Kill(cmd *cobra.Command, _ []string) error {
	ctx, coord, err := h.Coordinator(cmd)
	if err != nil {
		return err
	}
	return coord.TPMKill(ctx)
}

func (h Handler) Destroy(cmd *cobra.Command, _ []string) error {
	ctx, coord, err := h.Coordinator(cmd)
	if err != nil {
		return err
	}
	return coord.TPMDestroy(ctx)
}

func (h Handler) Status(cmd *cobra.Command, _ []string) error {
	ctx, coord, err := h.Coordinator(cmd)
	if err != nil {
		return err
	}
	status, err := coord.TPMStatus(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("TPM: %s\n", status)
	return nil
}
