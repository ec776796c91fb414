package tpm

import "github.com/spf13/cobra"

// Actions defines vTPM lifecycle operations.
type Actions interface {
	Setup(cmd *cobra.Command, args []string) error
	Start(cmd *cobra.Command, args []string) error
	Kill(cmd *cobra.Command, args []string) error
	Destroy(cmd *cobra.Command, args []string) error
	Status(cmd *cobra.Command, args []string) error
}

// Command builds the "tpm" parent command with all subcommands.
func Command(h Actions) *cobra.Command {
	tpmCmd := &cobra.Command{
		Use:   "tpm",
		Short: "Manage the virtual TPM",
	}

	setupCmd := &cobra.Command{
		Use:   "setup",
		Short: "Provision TPM state and export the SRK public blob",
		Args:  cobra.NoArgs,
		RunE:  h.Setup,
	}
	setupCmd.Flags().Bool("force", false, "wipe existing TPM state and reprovision")

	tpmCmd.AddCommand(
		setupCmd,
		&cobra.Command{
			Use:   "start",
			Short: "Start the TPM emulator",
			Args:  cobra.NoArgs,
			RunE:  h.Start,
		},
		&cobra.Command{
			Use:   "kill",
			Short: "Stop the TPM emulator (no-op if not running)",
			Args:  cobra.NoArgs,
			RunE:  h.Kill,
		},
		&cobra.Command{
			Use:   "destroy",
			Short: "Irreversibly remove all TPM state",
			Args:  cobra.NoArgs,
			RunE:  h.Destroy,
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show TPM state (reconciled against live processes)",
			Args:  cobra.NoArgs,
			RunE:  h.Status,
		},
	)
	return tpmCmd
}
