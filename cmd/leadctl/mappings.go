package main

import (
	"fmt"
	"os"

	"leads-backend/internal/services"

	"github.com/spf13/cobra"
)

var seedMappingsCmd = &cobra.Command{
	Use:   "seed-mappings <file.yaml>",
	Short: "Upsert dialer user to agent mappings from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		seeds, err := services.ParseMappingSeeds(f)
		if err != nil {
			return err
		}

		a := openApp()
		defer a.Close()

		applied, failures := a.dialer.SeedMappings(rootCtx, seeds)
		for _, msg := range failures {
			fmt.Fprintln(os.Stderr, "  ✗", msg)
		}
		fmt.Printf("Seeded %d of %d mappings\n", applied, len(seeds))
		if len(failures) > 0 {
			return fmt.Errorf("%d mappings failed", len(failures))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedMappingsCmd)
}
