package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"efficio-backend/internal/auth"
)

var grantAdminCmd = &cobra.Command{
	Use:   "grant-admin <email>",
	Short: "Give an existing user the admin role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, database, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer database.Close()

		users := auth.NewStore(database)
		u, err := users.GetByEmail(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("looking up %s: %w", args[0], err)
		}
		if err := users.GrantRole(cmd.Context(), u.ID, auth.RoleAdmin); err != nil {
			return err
		}

		log.Printf("[INFO] %s is now an admin", u.Email)
		return nil
	},
}
