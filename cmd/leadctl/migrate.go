package main

import (
	"fmt"

	"leads-backend/internal/database"

	"github.com/spf13/cobra"
)

var (
	migrateDir    string
	migrateDryRun bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending SQL migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := openApp()
		defer a.Close()

		m := database.NewMigrator(a.pool, migrateDir)
		if !migrateDryRun {
			return m.RunMigrations(rootCtx)
		}
		pending, err := m.Pending(rootCtx)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Println("Database is up to date")
			return nil
		}
		for _, name := range pending {
			fmt.Println("  →", name)
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDir, "dir", "migrations", "Migrations directory")
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "List pending migrations without applying them")
	rootCmd.AddCommand(migrateCmd)
}
