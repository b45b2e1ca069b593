package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func (c *CLI) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve assets over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, config, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			listen := config.Server.Listen
			if cmd.Flags().Changed("port") {
				port, _ := cmd.Flags().GetInt("port")
				listen = fmt.Sprintf(":%d", port)
			}

			server := &http.Server{
				Addr:              listen,
				Handler:           a,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx := cmd.Context()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Could not shut down server")
				}
			}()

			log.Info().Msgf("Serving assets below %s on %s", config.Server.Prefix, listen)
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			log.Info().Msg("Server stopped")
			return nil
		},
	}
	cmd.Flags().Int("port", 8080, "Port to listen on (overrides config)")
	return cmd
}
