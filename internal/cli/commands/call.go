package commands

import (
	"fmt"

	"github.com/rpcwire/rpcwire/internal/cli/output"
	"github.com/spf13/cobra"
)

var (
	callParams   string
	notifyParams string
)

var callCmd = &cobra.Command{
	Use:   "call <method> [key=value...]",
	Short: "Call a JSON-RPC method and print its result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		method := args[0]
		params, err := parseParams(args[1:], callParams)
		if err != nil {
			return err
		}

		s, err := openSession()
		if err != nil {
			return err
		}

		res, err := s.Client.Call(cmd.Context(), method, params)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), newFormatter(cmd).FormatResult(output.NewCallResult(method, res)))
		return nil
	},
}

var notifyCmd = &cobra.Command{
	Use:   "notify <method> [key=value...]",
	Short: "Send a JSON-RPC notification",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(args[1:], notifyParams)
		if err != nil {
			return err
		}

		s, err := openSession()
		if err != nil {
			return err
		}
		return s.Client.Notify(cmd.Context(), args[0], params)
	},
}

func init() {
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(notifyCmd)
	callCmd.Flags().StringVar(&callParams, "params", "", "params as a JSON object or array")
	notifyCmd.Flags().StringVar(&notifyParams, "params", "", "params as a JSON object or array")
}
