package main

import (
	"fmt"
	"time"

	"leads-backend/internal/models"

	"github.com/spf13/cobra"
)

var (
	cleanupOlderThan time.Duration
	cleanupOutbox    time.Duration
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Hard-delete leads soft-deleted past retention and prune delivered outbox rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := openApp()
		defer a.Close()

		n, err := a.leads.HardDeleteExpired(rootCtx, models.SystemActor, cleanupOlderThan)
		if err != nil {
			return err
		}
		fmt.Printf("Purged %d expired leads\n", n)

		if cleanupOutbox > 0 {
			pruned, err := a.outbox.PurgeDone(rootCtx, time.Now().Add(-cleanupOutbox))
			if err != nil {
				return err
			}
			fmt.Printf("Pruned %d delivered outbox rows\n", pruned)
		}
		return nil
	},
}

func init() {
	cleanupCmd.Flags().DurationVar(&cleanupOlderThan, "older-than", 0, "Retention window (default: retention.soft_delete_ttl)")
	cleanupCmd.Flags().DurationVar(&cleanupOutbox, "outbox-older-than", 7*24*time.Hour, "Prune done outbox rows older than this; 0 keeps them")
	rootCmd.AddCommand(cleanupCmd)
}
