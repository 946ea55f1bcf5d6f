package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/rpcwire/rpcwire/internal/domain/scenario"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>...",
	Short: "Run YAML scenarios of calls and expectations",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		runner := &scenario.Runner{Client: s.Client, Out: cmd.OutOrStdout()}

		failed := 0
		for _, path := range args {
			sc, err := scenario.LoadScenario(path)
			if err != nil {
				return err
			}
			if err := runner.Run(cmd.Context(), sc); err != nil {
				failed++
				fmt.Fprintln(cmd.OutOrStdout(), color.RedString("FAIL %s: %v", sc.Name, err))
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("PASS %s", sc.Name))
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d scenarios failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
