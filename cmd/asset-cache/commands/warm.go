package commands

import (
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func (c *CLI) newWarmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warm <path>...",
		Short: "Build and cache assets by request path, e.g. /assets/css/main.css",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			parallel, _ := cmd.Flags().GetInt("parallel")
			if parallel <= 0 {
				parallel = runtime.NumCPU()
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(parallel)
			for _, requestURI := range args {
				requestURI := requestURI
				g.Go(func() error {
					return a.Warm(ctx, requestURI)
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			log.Info().Msgf("Warmed %d assets", len(args))
			return nil
		},
	}
	cmd.Flags().IntP("parallel", "p", 0, "Number of assets to build at once (default: number of CPUs)")
	return cmd
}
