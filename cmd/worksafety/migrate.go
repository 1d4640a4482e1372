package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"worksafety/core/appbootstrap"
	"worksafety/core/store"
)

func migrateCommand(g *globals) *cobra.Command {
	var statusOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var (
				db  *store.DB
				err error
			)
			if statusOnly {
				db, err = store.NewDB(g.cfg, g.logger)
			} else {
				db, err = appbootstrap.OpenDB(ctx, g.cfg, g.logger)
			}
			if err != nil {
				return err
			}
			defer db.Close()
			lines, err := store.MigrationStatus(ctx, db)
			if err != nil {
				return err
			}
			for _, line := range lines {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "Only print migration status")
	return cmd
}
