package commands

import (
	"fmt"
	"slices"
	"time"

	"github.com/fatih/color"
	cliclient "github.com/rpcwire/rpcwire/internal/cli/client"
	"github.com/rpcwire/rpcwire/internal/cli/output"
	rpcclient "github.com/rpcwire/rpcwire/internal/client"
	"github.com/rpcwire/rpcwire/internal/domain/integration"
	"github.com/rpcwire/rpcwire/internal/domain/profile"
	"github.com/rpcwire/rpcwire/internal/logger"
	"github.com/spf13/cobra"
)

// Loaded by setup before any command runs.
var (
	store    *profile.Store
	profiles []profile.Profile
	settings profile.Settings

	// sessions opened by the running command, persisted once it returns
	opened []*cliclient.Session
)

func setup(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = profile.DefaultPath()
	}
	store = profile.NewStore(path)

	var err error
	profiles, settings, err = store.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.SetOutput(cmd.ErrOrStderr())
	level := settings.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logger.SetLevel(level)

	if settings.LogDir != "" {
		if err := logger.Init(settings.LogDir); err != nil {
			return fmt.Errorf("init log: %w", err)
		}
	}
	return nil
}

// activeProfile resolves the profile selected by flags, settings and
// environment. --url alone is enough to build an ad hoc profile.
func activeProfile() (profile.Profile, error) {
	id := profileID
	if id == "" {
		id = settings.DefaultProfile
	}

	p, err := profile.Resolve(profiles, settings, id)
	if endpoint == "" {
		return p, err
	}
	if err != nil {
		if found, ok := profile.Find(profiles, id); ok {
			p = found
		} else {
			p = profile.Profile{ID: id}
		}
	}
	p.URL = endpoint
	return p, p.Validate()
}

func openSession(hooks ...rpcclient.ResponseHook) (*cliclient.Session, error) {
	p, err := activeProfile()
	if err != nil {
		return nil, err
	}
	s, err := cliclient.NewSession(p, cliclient.Options{
		Timeout:     time.Duration(timeout) * time.Millisecond,
		Hooks:       hooks,
		Interactive: true,
	})
	if err != nil {
		return nil, err
	}
	opened = append(opened, s)
	return s, nil
}

// persistSessions writes refreshed session tokens and rotated refresh tokens
// back to the config file. Keychain profiles already hold their session token
// in the keychain, and ad hoc profiles have nothing to write to.
func persistSessions() {
	sessions := opened
	opened = nil
	if store == nil {
		return
	}

	changed := false
	for _, s := range sessions {
		if updateProfile(s) {
			changed = true
		}
	}
	if !changed {
		return
	}
	if err := store.Save(profiles, settings); err != nil {
		logger.Warnf("save refreshed credentials to %s: %v", store.Path(), err)
	}
}

func updateProfile(s *cliclient.Session) bool {
	idx := slices.IndexFunc(profiles, func(p profile.Profile) bool { return p.ID == s.Profile.ID })
	if idx < 0 {
		return false
	}
	p := &profiles[idx]

	changed := false
	if s.Refresher != nil && p.OAuth != nil {
		if rt := s.Refresher.RefreshToken(); rt != p.OAuth.RefreshToken {
			oauth := *p.OAuth
			oauth.RefreshToken = rt
			p.OAuth = &oauth
			changed = true
		}
	}
	if storeKind(*p) == integration.StoreMemory {
		if token := s.Tokens.Token(); token != s.Profile.Token {
			p.Token = token
			changed = true
		}
	}
	return changed
}

func newFormatter(cmd *cobra.Command) *output.Formatter {
	var fmtMode output.OutputFormat = output.FormatText
	if jsonOutput {
		fmtMode = output.FormatJSON
	} else if rawOutput {
		fmtMode = output.FormatRaw
	}
	return output.NewFormatter(cmd.OutOrStdout(), fmtMode, !color.NoColor)
}
