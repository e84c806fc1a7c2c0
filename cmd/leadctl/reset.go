package main

import (
	"fmt"
	"strings"

	"leads-backend/internal/cache"

	"github.com/spf13/cobra"
)

var resetYes bool

// resetTables are the lead-domain tables; principals and settings stay
var resetTables = []string{
	"lead_outbox",
	"field_submissions",
	"callbacks",
	"notifications",
	"lead_status_history",
	"leads",
	"lead_number_sequences",
	"dialer_mappings",
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every lead and its inbox, callbacks, history and outbox (test databases only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("⚠️  WARNING: This will DELETE ALL LEAD DATA!")
		fmt.Println("Principals are kept. Dialer mappings are cleared and the dialer is switched off.")
		if !resetYes {
			fmt.Print("Type 'yes' to confirm: ")
			var confirm string
			fmt.Scanln(&confirm)
			if confirm != "yes" {
				fmt.Println("Reset cancelled.")
				return nil
			}
		}

		a := openApp()
		defer a.Close()

		tx, err := a.pool.Begin(rootCtx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(rootCtx)

		if _, err := tx.Exec(rootCtx, "TRUNCATE TABLE "+strings.Join(resetTables, ", ")+" RESTART IDENTITY CASCADE"); err != nil {
			return fmt.Errorf("failed to truncate: %w", err)
		}
		for _, table := range resetTables {
			fmt.Printf("  ✓ Cleared %s\n", table)
		}

		if _, err := tx.Exec(rootCtx,
			`UPDATE system_settings SET setting_value='false', updated_at=NOW(), updated_by_id=NULL WHERE setting_key='dialer_active'`); err != nil {
			return fmt.Errorf("failed to reset dialer flag: %w", err)
		}
		fmt.Println("  ✓ Dialer switched off")

		if err := tx.Commit(rootCtx); err != nil {
			return fmt.Errorf("failed to commit: %w", err)
		}
		cache.InvalidateDialerCaches(rootCtx)
		fmt.Println("✅ Database reset successful!")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}
