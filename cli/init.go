package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const starterConfig = `name: example
crs: EPSG:4326
bbox:
  west: -123.0
  south: 37.0
  east: -122.0
  north: 38.0
layers:
  - name: pois
    kind: point
    access: public
  - name: roads
    kind: line
    schema: |
      type Road {
        name: String!
        lanes: Int
      }
`

// NewInitCommand creates the init command.
func NewInitCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(opts.Config); err == nil {
				return fmt.Errorf("%s already exists", opts.Config)
			}
			if err := os.WriteFile(opts.Config, []byte(starterConfig), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", opts.Config)
			return nil
		},
	}
}
