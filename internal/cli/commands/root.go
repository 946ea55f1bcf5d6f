package commands

import (
	"fmt"
	"os"

	"github.com/rpcwire/rpcwire/internal/cli/errors"
	"github.com/rpcwire/rpcwire/internal/cli/inference"
	"github.com/rpcwire/rpcwire/internal/logger"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	profileID  string
	logLevel   string
	jsonOutput bool
	rawOutput  bool
	endpoint   string
	timeout    int
)

var rootCmd = &cobra.Command{
	Use:   "rpcwire",
	Short: "rpcwire - JSON-RPC 2.0 over HTTP from the command line",
	Long: `rpcwire sends JSON-RPC 2.0 calls, notifications and batches to an HTTP
endpoint described by a profile. Session tokens are refreshed automatically
when the profile configures OAuth.`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func Execute() error {
	return execute(os.Args[1:])
}

func execute(args []string) error {
	// Simple command inference - prepend inferred command to args
	if inferredCmd, rest := inference.InferCommand(args, commandNames()); inferredCmd != "" {
		args = append([]string{inferredCmd}, rest...)
	}
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	persistSessions()
	logger.Close()
	if err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), newFormatter(rootCmd).FormatError(errors.Classify(err)))
	}
	return err
}

func commandNames() []string {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
		names = append(names, c.Aliases...)
	}
	return append(names, "help", "completion")
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $RPCWIRE_CONFIG or $HOME/.config/rpcwire/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&profileID, "profile", "", "profile to use (default from settings)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&rawOutput, "raw", false, "raw output (no formatting)")
	rootCmd.PersistentFlags().StringVar(&endpoint, "url", "", "endpoint url, overrides the profile")
	rootCmd.PersistentFlags().IntVar(&timeout, "timeout", 0, "request timeout in milliseconds (default from profile, 20000)")
}
