// Package cmd assembles the sealvm command tree.
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdcore "github.com/projecteru2/sealvm/cmd/core"
	cmdothers "github.com/projecteru2/sealvm/cmd/others"
	cmdtpm "github.com/projecteru2/sealvm/cmd/tpm"
	cmdvm "github.com/projecteru2/sealvm/cmd/vm"
	"github.com/projecteru2/sealvm/config"
)

var (
	cfgFile string
	conf    *config.Config
)

var rootCmd = func() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sealvm",
		Short: "sealvm - TPM-backed FDE virtual machines",
		Long:  "Provisions and supervises a virtual TPM and a hypervisor realizing a TPM-backed, full-disk-encrypted VM.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.PersistentFlags().String("root-dir", "", "root data directory")
	cmd.PersistentFlags().String("run-dir", "", "runtime directory")
	cmd.PersistentFlags().String("log-dir", "", "log directory")

	_ = viper.BindPFlag("root_dir", cmd.PersistentFlags().Lookup("root-dir"))
	_ = viper.BindPFlag("run_dir", cmd.PersistentFlags().Lookup("run-dir"))
	_ = viper.BindPFlag("log_dir", cmd.PersistentFlags().Lookup("log-dir"))

	viper.SetEnvPrefix("SEALVM")
	viper.AutomaticEnv()

	confProvider := func() *config.Config { return conf }

	cmd.AddCommand(cmdtpm.Command(cmdtpm.Handler{BaseHandler: baseHandler(confProvider)}))
	cmd.AddCommand(cmdvm.Command(cmdvm.Handler{BaseHandler: baseHandler(confProvider)}))
	for _, c := range cmdothers.Commands() {
		cmd.AddCommand(c)
	}

	return cmd
}()

func baseHandler(p func() *config.Config) cmdcore.BaseHandler {
	return cmdcore.BaseHandler{ConfProvider: p}
}

func initConfig(ctx context.Context) error {
	conf = config.DefaultConfig()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	_ = viper.ReadInConfig() // optional; missing file is OK

	if err := viper.Unmarshal(conf); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	conf.Normalize()

	return log.SetupLog(ctx, &conf.Log, "")
}

// Execute is the main entry point called from main.go.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return rootCmd.ExecuteContext(ctx)
}
