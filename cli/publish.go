package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewPublishCommand creates the publish command.
func NewPublishCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Drain pending deltas and publish a new version",
		RunE: func(cmd *cobra.Command, args []string) error {
			swale, err := opts.open()
			if err != nil {
				return err
			}
			defer swale.Close()
			swale.Versions().Progress = func(layer string, captured, total int) {
				fmt.Fprintf(cmd.ErrOrStderr(), "captured %s (%d/%d)\n", layer, captured, total)
			}
			info, err := swale.Publish(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %s\n", info.ID)
			return nil
		},
	}
}

// NewVersionsCommand creates the versions command.
func NewVersionsCommand(opts *RootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List published versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			swale, err := opts.open()
			if err != nil {
				return err
			}
			defer swale.Close()
			infos, err := swale.Versions().Versions(cmd.Context())
			if err != nil {
				return err
			}
			if format == "json" {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(infos)
			}
			for _, info := range infos {
				created := time.UnixMilli(info.CreatedAt).UTC().Format(time.RFC3339)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", info.ID, created)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format (json|text)")
	return cmd
}
