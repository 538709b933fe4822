package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newHistoryCommand creates the history subcommand
func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent plays from the tracking database",
		Args:  cobra.NoArgs,
		RunE:  runHistoryE,
	}
	cmd.Flags().Int("limit", 20, "Maximum number of plays to show")
	return cmd
}

func runHistoryE(cmd *cobra.Command, args []string) error {
	cli := cliFromContext(cmd.Context())
	if cli == nil {
		return fmt.Errorf("internal error: CLI instance not available")
	}
	cli.initializeSystems()

	cfg, err := loadAndValidateConfig(cmd, cli)
	if err != nil {
		return err
	}
	setupLogging(cfg, cmd.ErrOrStderr())
	cli.initializeTracking(cfg)

	if cli.recorder == nil {
		cmd.PrintErrln("Play tracking is disabled or unavailable")
		return fmt.Errorf("play tracking unavailable")
	}

	limit, _ := cmd.Flags().GetInt("limit")
	plays, err := cli.recorder.Recent(limit)
	if err != nil {
		return fmt.Errorf("reading play history: %w", err)
	}

	if len(plays) == 0 {
		cmd.Println("No plays recorded yet")
		return nil
	}

	for _, p := range plays {
		marker := " "
		if !p.Completed {
			marker = "*"
		}
		cmd.Printf("%s %s  %-8s %6.1fs  %s\n",
			p.StartedAt.Format("2006-01-02 15:04:05"),
			marker,
			p.Reason,
			p.Duration().Seconds(),
			p.Path)
	}

	stats, err := cli.recorder.Stats()
	if err != nil {
		return fmt.Errorf("reading play stats: %w", err)
	}
	cmd.Printf("\n%d plays, %d completed\n", stats.TotalPlays, stats.CompletedPlays)
	return nil
}
