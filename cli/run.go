package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rillworks/dataswale/job"
)

// NewRunCommand creates the run command.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <job>",
		Short: "Run a configured job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			swale, err := opts.open()
			if err != nil {
				return err
			}
			defer swale.Close()
			return job.Run(cmd.Context(), swale, args[0], slog.Default())
		},
	}
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <batch-id>",
		Short: "Re-apply an archived delta batch to staging",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			swale, err := opts.open()
			if err != nil {
				return err
			}
			defer swale.Close()
			report, err := swale.Replay(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"created %d, merged %d, deleted %d, no match %d, errors %d\n",
				report.Created, report.Merged, report.Deleted, report.NoMatch, len(report.Errors))
			return nil
		},
	}
}
