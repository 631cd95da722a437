package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	swalehttp "github.com/rillworks/dataswale/http"
)

// NewServeCommand creates the serve command.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			swale, err := opts.open()
			if err != nil {
				return err
			}
			defer swale.Close()
			slog.Info("listening", "addr", addr)
			return swalehttp.ListenAndServe(swale, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}
