package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"apinvoice/internal/config"
	"apinvoice/internal/engine"
	"apinvoice/internal/logger"
	"apinvoice/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report [folder-path]",
	Short: "Validate a folder of extraction records and build an Excel review workbook",
	Long: `Validate all extraction JSON files in a folder and build an XLSX workbook
with two sheets: "Exceptions" lists every flagged invoice with its exception
details for the review team, "Processed" lists the invoices that passed
validation cleanly.

Files that fail normalization appear on the Exceptions sheet as
NORMALIZATION_ERROR rows so nothing silently drops out of the report.`,
	Example: `  # Build the workbook next to the input folder
  apinvoice report ./extractions

  # Write the workbook to a specific file
  apinvoice report ./extractions -o review.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringP("output", "o", "", "Output XLSX file path (default: validation-report-<date>.xlsx)")
}

func runReport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("report")

	folderPath := args[0]
	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath == "" {
		outputPath = fmt.Sprintf("validation-report-%s.xlsx", time.Now().Format("2006-01-02"))
	}

	folderInfo, err := os.Stat(folderPath)
	if err != nil {
		return fmt.Errorf("folder not found: %s", folderPath)
	}
	if !folderInfo.IsDir() {
		return fmt.Errorf("path is not a directory: %s", folderPath)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	eng, err := engine.New(cfg.GetEngineConfig())
	if err != nil {
		return err
	}

	files, err := findJSONFiles(folderPath)
	if err != nil {
		return fmt.Errorf("failed to list extraction files: %w", err)
	}
	if len(files) == 0 {
		fmt.Println("No extraction JSON files found in folder.")
		return nil
	}

	fmt.Printf("Validating %d records with %d workers...\n\n", len(files), cfg.BatchWorkers)

	entries := validateInParallel(eng, files, cfg.BatchWorkers, log, false)

	svc := report.NewService(log)
	data, err := svc.BuildXLSX(entries)
	if err != nil {
		return fmt.Errorf("failed to build workbook: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	exceptionCount := 0
	for _, e := range entries {
		if e.Err != nil || e.Verdict.IsException {
			exceptionCount++
		}
	}

	fmt.Printf("\nWorkbook written: %s (%d invoices, %d exceptions)\n", outputPath, len(entries), exceptionCount)

	log.Info().
		Str("output", outputPath).
		Int("invoices", len(entries)).
		Int("exceptions", exceptionCount).
		Msg("Report generated")

	return nil
}
