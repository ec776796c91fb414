package vm

import "github.com/spf13/cobra"

// Actions defines VM lifecycle operations.
type Actions interface {
	Start(cmd *cobra.Command, args []string) error
	Kill(cmd *cobra.Command, args []string) error
	Status(cmd *cobra.Command, args []string) error
	Console(cmd *cobra.Command, args []string) error
}

// Command builds the "vm" parent command with all subcommands.
func Command(h Actions) *cobra.Command {
	vmCmd := &cobra.Command{
		Use:   "vm",
		Short: "Manage the TPM-backed virtual machine",
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the VM attached to the running TPM",
		Args:  cobra.NoArgs,
		RunE:  h.Start,
	}
	startCmd.Flags().String("image", "", "boot disk image path (required)")
	startCmd.Flags().String("memory", "", "guest memory size (default from config, e.g. 2G)")
	startCmd.Flags().Int("ssh-port", 0, "host port forwarded to guest SSH (default from config)")
	startCmd.Flags().String("ssh-import-id", "", "cloud-init ssh_import_id (e.g. gh:user)")
	_ = startCmd.MarkFlagRequired("image")

	vmCmd.AddCommand(
		startCmd,
		&cobra.Command{
			Use:   "kill",
			Short: "Stop the VM (no-op if not running)",
			Args:  cobra.NoArgs,
			RunE:  h.Kill,
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show VM state (reconciled against live processes)",
			Args:  cobra.NoArgs,
			RunE:  h.Status,
		},
		&cobra.Command{
			Use:   "console",
			Short: "Attach to the VM serial console (escape: ^])",
			Args:  cobra.NoArgs,
			RunE:  h.Console,
		},
	)
	return vmCmd
}
