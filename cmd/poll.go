package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newPollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run a single folder poll and exit",
		Long: `List the configured Dropbox source folder once, process every entry
through the intake pipeline, print the per-entry outcomes, and exit.
Requires a completed authorization (see the authorize command).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.manager.IsReady() {
				return fmt.Errorf("authorization not completed; run 'dropforward authorize' first")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Schedule.RunTimeout)
			defer cancel()

			results, err := a.poller.Run(ctx, "schedule")
			for _, r := range results {
				fmt.Printf("%-8s %s  %s\n", r.Outcome, r.Entry.Path, r.Detail)
			}
			if err != nil {
				return err
			}
			fmt.Printf("processed %d entries\n", len(results))
			return nil
		},
	}
}
