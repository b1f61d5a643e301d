package main

import (
	"github.com/spf13/cobra"

	"github.com/taxsyncpro/taxsync/internal/server"
)

func (c *cli) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.app.Config.Server
			if addr == "" {
				addr = cfg.HTTPAddr
			}
			httpApp := server.NewHTTPServer(c.app.ServerDeps(), server.HTTPConfig{
				BodyLimit:    cfg.BodyLimit,
				ReadTimeout:  cfg.ReadTimeout,
				WriteTimeout: cfg.WriteTimeout,
			})

			ctx := cmd.Context()
			go c.app.Imports.RunJanitor(ctx, c.app.Config.Import.SessionTTL/2)
			errc := make(chan error, 1)
			go func() { errc <- httpApp.Listen(addr) }()
			c.app.Logger.Info("http server listening", "addr", addr)

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
				return httpApp.Shutdown()
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	return cmd
}
