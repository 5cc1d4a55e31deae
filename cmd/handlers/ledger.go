package handlers

import (
	"blogsmith/internal/app"
	"blogsmith/internal/config"
	"blogsmith/internal/ledger"
	"blogsmith/internal/similarity"
	"fmt"

	"github.com/spf13/cobra"
)

// NewLedgerCmd creates the ledger command for inspecting used topics and keywords
func NewLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the used topic and keyword ledgers",
		Long: `The ledgers remember topics and keywords that produced an article.
<kind> is "topics" or "keywords".

Examples:
  blogsmith ledger list topics
  blogsmith ledger check topics "겨울철 면역력 높이는 방법"
  blogsmith ledger clear keywords`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <kind>",
		Short: "List ledger entries, newest last",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(args[0], func(a *app.App, l *ledger.Ledger) error {
				out := cmd.OutOrStdout()
				entries := l.Entries()
				if len(entries) == 0 {
					fmt.Fprintln(out, "No entries")
					return nil
				}
				for i, e := range entries {
					fmt.Fprintf(out, "%4d  %s\n", i+1, e)
				}
				fmt.Fprintf(out, "\nTotal: %d\n", len(entries))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear <kind>",
		Short: "Remove every ledger entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(args[0], func(a *app.App, l *ledger.Ledger) error {
				n := l.Len()
				l.Clear()
				fmt.Fprintf(cmd.OutOrStdout(), "🗑️  Cleared %d %s\n", n, args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check <kind> <text>",
		Short: "Check whether text would count as a duplicate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(args[0], func(a *app.App, l *ledger.Ledger) error {
				out := cmd.OutOrStdout()
				match, score := l.Match(args[1])
				if l.IsDuplicate(args[1]) {
					fmt.Fprintf(out, "duplicate of %q (%.2f)\n", match, score)
					return nil
				}
				if !a.Policy.PreventDuplicates() {
					fmt.Fprintln(out, "not checked: duplicate prevention is off")
					return nil
				}
				if match != "" {
					fmt.Fprintf(out, "unique (closest %q, %.2f)\n", match, score)
					return nil
				}
				fmt.Fprintln(out, "unique")
				return nil
			})
		},
	})

	return cmd
}

func withLedger(kind string, fn func(*app.App, *ledger.Ledger) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a)

	switch kind {
	case "topics":
		return fn(a, a.Topics)
	case "keywords":
		return fn(a, a.Keywords)
	default:
		return fmt.Errorf("unknown ledger %q (use topics or keywords)", kind)
	}
}

// NewDuplicatesCmd creates the duplicate prevention toggle
func NewDuplicatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "duplicates",
		Short: "Show or change duplicate prevention",
		Long: `While duplicate prevention is on, used topics and keywords are recorded
and skipped. Turning it off clears both ledgers.`,
	}

	set := func(prevent bool) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(a)

			cleared := a.SetPreventDuplicates(cmd.Context(), prevent)
			fmt.Fprintf(cmd.OutOrStdout(), "Duplicate prevention: %s\n", onOff(prevent))
			if cleared {
				fmt.Fprintln(cmd.OutOrStdout(), "Ledgers cleared")
			}
			return nil
		}
	}

	cmd.AddCommand(&cobra.Command{Use: "on", Short: "Turn duplicate prevention on", Args: cobra.NoArgs, RunE: set(true)})
	cmd.AddCommand(&cobra.Command{Use: "off", Short: "Turn duplicate prevention off and clear the ledgers", Args: cobra.NoArgs, RunE: set(false)})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show duplicate prevention and ledger sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer closeApp(a)

			if a.Backend != nil {
				if _, err := a.SyncProfile(cmd.Context()); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "⚠️  profile sync failed: %v\n", err)
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Duplicate prevention: %s\n", onOff(a.Policy.PreventDuplicates()))
			fmt.Fprintf(out, "Used topics:          %d\n", a.Topics.Len())
			fmt.Fprintf(out, "Used keywords:        %d\n", a.Keywords.Len())
			fmt.Fprintf(out, "Similarity threshold: %.2f\n", a.Config.Generation.SimilarityThreshold)
			return nil
		},
	})

	return cmd
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// NewSimilarityCmd creates the similarity command
func NewSimilarityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "similarity <a> <b>",
		Short: "Score how similar two texts are",
		Long: `Print the edit-distance ratio of two texts after lowercasing and removing
whitespace, and whether it reaches the duplicate threshold.

Example:
  blogsmith similarity "겨울철 건강 관리" "겨울철 건강관리 방법"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold := similarity.DefaultThreshold
			if cfg, err := config.Load(cfgFile); err == nil {
				threshold = cfg.Generation.SimilarityThreshold
			}
			ratio := similarity.Ratio(args[0], args[1])
			verdict := "unique"
			if ratio >= threshold {
				verdict = "duplicate"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.3f %s (threshold %.2f)\n", ratio, verdict, threshold)
			return nil
		},
	}
}
