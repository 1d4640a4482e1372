package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"worksafety/core/appbootstrap"
	"worksafety/core/store"
	"worksafety/core/utils"
)

func bonusCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bonus",
		Short: "Reward bonus operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:       "run weekly|monthly|quarterly",
		Short:     "Evaluate one bonus window now",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(store.BonusWeekly), string(store.BonusMonthly), string(store.BonusQuarterly)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := store.BonusType(strings.ToLower(strings.TrimSpace(args[0])))
			if !kind.Valid() {
				return fmt.Errorf("unknown bonus type %q", args[0])
			}
			rt, err := appbootstrap.Compose(cmd.Context(), g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer rt.Close()
			res, err := rt.Ledger.EvaluateBonus(cmd.Context(), kind, utils.NowUTC())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	})
	return cmd
}
