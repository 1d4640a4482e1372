package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"worksafety/core/appbootstrap"
	"worksafety/core/auth"
	"worksafety/core/store"
)

func userCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User account operations",
	}
	var nu auth.NewUser
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := appbootstrap.OpenDB(cmd.Context(), g.cfg, g.logger)
			if err != nil {
				return err
			}
			defer db.Close()
			u, err := auth.RegisterUser(cmd.Context(), store.NewUsersStore(db), nu)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user id=%d email=%s role=%s\n", u.ID, u.Email, u.Role)
			return nil
		},
	}
	create.Flags().StringVar(&nu.Email, "email", "", "Login email")
	create.Flags().StringVar(&nu.Password, "password", "", "Initial password")
	create.Flags().StringVar(&nu.FirstName, "first-name", "", "First name")
	create.Flags().StringVar(&nu.LastName, "last-name", "", "Last name")
	create.Flags().StringVar(&nu.Phone, "phone", "", "Phone number")
	create.Flags().StringVar(&nu.Role, "role", "driver", "Role: admin, manager, technician, driver or seller")
	create.Flags().BoolVar(&nu.Internal, "internal", false, "Internal staff member")
	create.Flags().BoolVar(&nu.Superuser, "superuser", false, "Grant every permission")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")
	cmd.AddCommand(create)
	return cmd
}
