package others

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/projecteru2/sealvm/version"
)

// Commands builds the cross-cutting command set (version, completion).
func Commands() []*cobra.Command {
	return []*cobra.Command{
		{
			Use:   "version",
			Short: "Show version, git revision, and build timestamp",
			RunE: func(*cobra.Command, []string) error {
				fmt.Println(version.String())
				return nil
			},
		},
		{
			Use:       "completion [bash|zsh|fish|powershell]",
			Short:     "Generate shell completion script",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
			RunE: func(cmd *cobra.Command, args []string) error {
				root := cmd.Root()
				switch args[0] {
				case "bash":
					return root.GenBashCompletion(os.Stdout)
				case "zsh":
					return root.GenZshCompletion(os.Stdout)
				case "fish":
					return root.GenFishCompletion(os.Stdout, true)
				case "powershell":
					return root.GenPowerShellCompletionWithDesc(os.Stdout)
				default:
					return fmt.Errorf("unsupported shell: %s", args[0])
				}
			},
		},
	}
}
