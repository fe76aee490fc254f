package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thatsimonsguy/array-controller/internal/topology"
	"github.com/thatsimonsguy/array-controller/system/startup"
)

var (
	scriptPath  string
	servicePath string
	runScript   bool
)

var installCmd = &cobra.Command{
	Use:   "install-boot",
	Short: "Write the boot script that holds every FET open and its systemd unit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := startup.WriteStartupScript(topology.Default(), scriptPath); err != nil {
			return fmt.Errorf("write boot script: %w", err)
		}
		if err := startup.InstallStartupService(scriptPath, servicePath); err != nil {
			return fmt.Errorf("write service unit: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", scriptPath, servicePath)

		if runScript {
			return startup.RunStartupScript(scriptPath)
		}
		return nil
	},
}

func init() {
	installCmd.Flags().StringVar(&scriptPath, "script", "/usr/local/bin/array-gpio-init.sh", "Boot script path")
	installCmd.Flags().StringVar(&servicePath, "service", "/etc/systemd/system/array-gpio-init.service", "systemd unit path")
	installCmd.Flags().BoolVar(&runScript, "run", false, "Run the script once after writing it")
	rootCmd.AddCommand(installCmd)
}
