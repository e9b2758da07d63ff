package cmd

import (
	"github.com/kerbonaut11/muna/internal/config"
	"github.com/kerbonaut11/muna/internal/diagnostics"
	"github.com/kerbonaut11/muna/internal/vm"
	"github.com/spf13/cobra"
)

var runEvalExpr string

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Compile and execute source",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, filename, err := loadSource(runEvalExpr, args)
		if err != nil {
			return err
		}

		m, err := compileSource(src, filename)
		if err != nil {
			exitWithError("%s", diagnostics.Render(err, string(src), filename, wantColor()))
			return nil
		}

		cfg := config.Default()
		if configPath != "" {
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
		}

		if _, err := vm.RunWithConfig(m, cfg); err != nil {
			exitWithError("%s", diagnostics.Render(err, string(src), filename, wantColor()))
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runEvalExpr, "eval", "e", "", "run an inline source string instead of a file")
	rootCmd.AddCommand(runCmd)
}
