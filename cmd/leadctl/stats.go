package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print lead counts by status and agent plus the outbox backlog",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := openApp()
		defer a.Close()

		st, err := a.leads.Stats(rootCtx)
		if err != nil {
			return err
		}
		if statsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}

		fmt.Printf("Leads:          %d\n", st.Total)
		fmt.Printf("Soft-deleted:   %d\n", st.Deleted)
		fmt.Printf("Outbox backlog: %d\n", st.OutboxBacklog)
		printCounts("By status", st.ByStatus)
		printCounts("By agent", st.ByAgent)
		return nil
	},
}

func printCounts(title string, counts map[string]int) {
	fmt.Printf("\n%s:\n", title)
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-28s %d\n", k, counts[k])
	}
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print as JSON")
	rootCmd.AddCommand(statsCmd)
}
