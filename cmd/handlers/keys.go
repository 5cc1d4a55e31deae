package handlers

import (
	"blogsmith/internal/app"
	"blogsmith/internal/auth"
	"blogsmith/internal/config"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewKeysCmd creates the API key management command
func NewKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage provider API keys",
		Long: `Save provider API keys in the local store. Keys set in the config file or
the environment (GEMINI_API_KEY, PIXABAY_API_KEY, IMAGE_GENERATION_API_KEY)
take precedence over saved ones.

Providers: gemini, pixabay, imagegen

Examples:
  blogsmith keys set gemini AIza...
  blogsmith keys set pixabay ""     # remove the saved key
  blogsmith keys show`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <provider> <key>",
		Short: "Save an API key; an empty key removes it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(a)

			if err := a.Credentials.Set(args[0], args[1]); err != nil {
				return err
			}
			if args[1] == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s key\n", args[0])
				return nil
			}
			if _, source := a.Credentials.Get(args[0]); source == app.SourceConfig {
				fmt.Fprintf(cmd.ErrOrStderr(), "⚠️  %s key from config or environment still takes precedence\n", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s key %s\n", args[0], app.Mask(args[1]))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show which keys are available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(a)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-8s %s\n", "Provider", "Source", "Key")
			for _, p := range app.Providers() {
				key, source := a.Credentials.Get(p)
				fmt.Fprintf(out, "%-10s %-8s %s\n", p, source, app.Mask(key))
			}
			fmt.Fprintf(out, "\nImage mode: %s (available: %v)\n", a.Config.Images.Mode, a.ImageProvider().Available())
			return nil
		},
	})

	return cmd
}

// NewResetCmd creates the reset command
func NewResetCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the session, ledgers and settings",
		Long: `Remove every stored value except saved API keys and return the session to
its initial state.

Example:
  blogsmith reset --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("reset removes ledgers and settings; rerun with --force")
			}
			a, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(a)

			n := a.Reset()
			fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Removed %d stored values\n", n)

			if stats, err := a.Stats(); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Remaining: %d values (%d credentials)\n", stats.KeyCount, stats.Credentials)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "confirm the reset")

	return cmd
}

// NewTokenCmd creates the token command for calling a protected server
func NewTokenCmd() *cobra.Command {
	var (
		email    string
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for the HTTP API",
		Long: `Sign an access token for backend.user_id with backend.jwt_secret. The
server requires it on /api routes when the secret is set.

Example:
  curl -H "Authorization: Bearer $(blogsmith token)" localhost:8080/api/session`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.Backend.UserID == "" {
				return fmt.Errorf("backend.user_id is not set (BLOGSMITH_USER_ID)")
			}

			tv := auth.NewTokenVerifier(cfg.Backend.JWTSecret)
			if duration > 0 {
				tv.Duration = duration
			}
			token, exp, err := tv.Sign(cfg.Backend.UserID, email)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&duration, "ttl", 0, "token lifetime (default 1h)")

	return cmd
}
