package main

import (
	"fmt"
	"os"

	"leads-backend/internal/models"
	"leads-backend/internal/objectstore"

	"github.com/spf13/cobra"
)

var (
	importSource string
	importPrefix string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk import leads from a JSON dump on disk or in the R2 bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := openApp()
		defer a.Close()

		src, err := objectstore.ParseSource(importSource, a.cfg.R2.Bucket)
		if err != nil {
			return err
		}
		rc, err := objectstore.Open(rootCtx, a.cfg, src)
		if err != nil {
			return err
		}
		defer rc.Close()

		report, err := a.imports.ImportJSON(rootCtx, models.SystemActor, rc, importPrefix)
		if err != nil {
			return err
		}
		for _, msg := range report.Errors {
			fmt.Fprintln(os.Stderr, "  ✗", msg)
		}
		fmt.Printf("Imported %d, skipped %d, failed %d\n", report.Created, report.Skipped, report.Failed)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importSource, "source", "", "File path or s3://bucket/key")
	importCmd.Flags().StringVar(&importPrefix, "prefix", models.LeadPrefixImport, "Lead number prefix for imported leads")
	importCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(importCmd)
}
