package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/rpcwire/rpcwire/internal/domain/profile"
	"github.com/spf13/cobra"
)

var (
	addUser          string
	addPassword      string
	addSessionHeader string
	addTokenStore    string
	addTimeout       int
	addDefault       bool
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage endpoint profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := newFormatter(cmd)
		if len(profiles) == 0 && !jsonOutput && !rawOutput {
			fmt.Fprintf(cmd.OutOrStdout(), "No profiles in %s\n", store.Path())
			return nil
		}
		f.PrintProfiles(profiles, settings.DefaultProfile)
		return nil
	},
}

var profileAddCmd = &cobra.Command{
	Use:   "add <id> <url>",
	Short: "Add or replace a profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := profile.Profile{
			ID:            args[0],
			URL:           args[1],
			User:          addUser,
			Password:      addPassword,
			SessionHeader: addSessionHeader,
			TokenStore:    addTokenStore,
			TimeoutMs:     addTimeout,
		}
		if err := p.Validate(); err != nil {
			return err
		}

		replaced := false
		for i := range profiles {
			if profiles[i].ID == p.ID {
				profiles[i] = p
				replaced = true
			}
		}
		if !replaced {
			profiles = append(profiles, p)
		}
		if addDefault || len(profiles) == 1 {
			settings.DefaultProfile = p.ID
		}

		if err := store.Save(profiles, settings); err != nil {
			return err
		}
		if !jsonOutput {
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("Saved profile %s to %s", p.ID, store.Path()))
		}
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kept := profiles[:0]
		for _, p := range profiles {
			if p.ID != args[0] {
				kept = append(kept, p)
			}
		}
		if len(kept) == len(profiles) {
			return fmt.Errorf("profile %q not found", args[0])
		}
		profiles = kept
		return store.Save(profiles, settings)
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileRemoveCmd)
	profileAddCmd.Flags().StringVar(&addUser, "user", "", "user for Basic authentication")
	profileAddCmd.Flags().StringVar(&addPassword, "password", "", "password for Basic authentication")
	profileAddCmd.Flags().StringVar(&addSessionHeader, "session-header", "", "header carrying the session token (default Authorization2)")
	profileAddCmd.Flags().StringVar(&addTokenStore, "token-store", "", "token store: memory or keychain")
	profileAddCmd.Flags().IntVar(&addTimeout, "timeout-ms", 0, "request timeout in milliseconds")
	profileAddCmd.Flags().BoolVar(&addDefault, "default", false, "make this the default profile")
}
