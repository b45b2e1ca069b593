package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newBuildCmd prints a single asset of the given kind, bypassing the cache.
func (c *CLI) newBuildCmd(kind, use string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <file>",
		Short: fmt.Sprintf("Build a %s asset and print it", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			body, err := a.Build(cmd.Context(), kind, args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		},
	}
}
