// Package cli implements the dataswale command line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rillworks/dataswale"
	"github.com/rillworks/dataswale/config"
	"github.com/rillworks/dataswale/queue"
	"github.com/rillworks/dataswale/storage"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config  string
	Data    string
	Verbose bool
}

// NewRootCommand creates the root command for the dataswale CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dataswale",
		Short: "Versioned store of spatial layers evolved by delta batches",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
			slog.SetDefault(slog.New(handler))
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "swale.yaml", "path to the swale configuration")
	cmd.PersistentFlags().StringVarP(&opts.Data, "data", "d", "data", "path to the data directory")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewPublishCommand(opts))
	cmd.AddCommand(NewVersionsCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))

	return cmd
}

// open loads the configuration and assembles a swale over the data
// directory. The caller owns the returned swale and must close it.
func (opts *RootOptions) open() (*dataswale.Swale, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := os.MkdirAll(opts.Data, 0o755); err != nil {
		return nil, err
	}
	store, err := storage.NewBadger(storage.BadgerConfig{
		Path:   filepath.Join(opts.Data, "objects"),
		Logger: slog.Default(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	q, err := queue.Open(filepath.Join(opts.Data, "queue.db"), cfg, slog.Default())
	if err != nil {
		store.Close()
		return nil, err
	}
	return dataswale.Open(cfg, store, q, slog.Default()), nil
}
