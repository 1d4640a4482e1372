package main

import (
	"github.com/spf13/cobra"

	"worksafety/core/appbootstrap"
)

func serveCommand(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the bonus scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := appbootstrap.Compose(cmd.Context(), g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.Server.Run(cmd.Context()); err != nil {
				return err
			}
			g.logger.Printf("server stopped")
			return nil
		},
	}
}
