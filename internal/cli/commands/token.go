package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/rpcwire/rpcwire/internal/domain/integration"
	"github.com/rpcwire/rpcwire/internal/domain/profile"
	"github.com/spf13/cobra"
)

var tokenReveal bool

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the session token of a profile",
}

var tokenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored session token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := activeProfile()
		if err != nil {
			return err
		}
		token, err := readToken(p)
		if err != nil {
			return err
		}
		if !tokenReveal {
			token = mask(token)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			data, _ := json.MarshalIndent(map[string]string{
				"profile": p.ID,
				"store":   storeKind(p),
				"token":   token,
			}, "", "  ")
			fmt.Fprintln(out, string(data))
			return nil
		}
		if token == "" {
			fmt.Fprintf(out, "No session token for profile %s\n", p.ID)
			return nil
		}
		fmt.Fprintln(out, token)
		return nil
	},
}

var tokenSetCmd = &cobra.Command{
	Use:   "set <token>",
	Short: "Store a session token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := writeToken(args[0]); err != nil {
			return err
		}
		if !jsonOutput {
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("Session token stored"))
		}
		return nil
	},
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored session token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := writeToken(""); err != nil {
			return err
		}
		if !jsonOutput {
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("Session token removed"))
		}
		return nil
	},
}

func storeKind(p profile.Profile) string {
	if strings.EqualFold(p.TokenStore, integration.StoreKeychain) {
		return integration.StoreKeychain
	}
	return integration.StoreMemory
}

func readToken(p profile.Profile) (string, error) {
	if storeKind(p) == integration.StoreMemory {
		return p.Token, nil
	}
	tokens, err := integration.NewTokenStore(p.TokenStore, p.ID, "")
	if err != nil {
		return "", err
	}
	return tokens.Token(), nil
}

// writeToken stores token in the keychain, or in the config file for
// profiles without a keychain store.
func writeToken(token string) error {
	id := profileID
	if id == "" {
		id = settings.DefaultProfile
	}

	idx := -1
	for i := range profiles {
		if profiles[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("profile %q not found in %s", id, store.Path())
	}
	p := profiles[idx]

	if storeKind(p) == integration.StoreKeychain {
		tokens, err := integration.NewTokenStore(p.TokenStore, p.ID, "")
		if err != nil {
			return err
		}
		return tokens.SetToken(token)
	}

	profiles[idx].Token = token
	return store.Save(profiles, settings)
}

func mask(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenShowCmd)
	tokenCmd.AddCommand(tokenSetCmd)
	tokenCmd.AddCommand(tokenClearCmd)
	tokenShowCmd.Flags().BoolVar(&tokenReveal, "reveal", false, "print the token unmasked")
}
