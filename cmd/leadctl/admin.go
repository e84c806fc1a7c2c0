package main

import (
	"errors"
	"fmt"
	"os"

	"leads-backend/internal/apperr"

	"github.com/spf13/cobra"
)

var (
	adminUsername string
	adminName     string
	adminEmail    string
	adminPassword string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create the initial admin principal (no-op when the username exists)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if adminPassword == "" {
			adminPassword = os.Getenv("ADMIN_PASSWORD")
		}
		if adminPassword == "" {
			return errors.New("--password or ADMIN_PASSWORD is required")
		}

		a := openApp()
		defer a.Close()

		p, created, err := a.principals.EnsureAdmin(rootCtx, adminUsername, adminName, adminEmail, adminPassword)
		if err != nil {
			if ae := apperr.From(err); ae.Kind == apperr.KindValidation {
				return fmt.Errorf("invalid admin: %s", ae.Message)
			}
			return err
		}
		if !created {
			fmt.Printf("Admin %q already exists (id %d)\n", p.Username, p.ID)
			return nil
		}
		fmt.Printf("Created admin %q (id %d)\n", p.Username, p.ID)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&adminUsername, "username", "admin", "Login name")
	createAdminCmd.Flags().StringVar(&adminName, "name", "Administrator", "Display name")
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "Email address")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "Password (defaults to $ADMIN_PASSWORD)")
	rootCmd.AddCommand(createAdminCmd)
}
