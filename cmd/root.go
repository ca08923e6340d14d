package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"apinvoice/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "apinvoice",
	Short: "Invoice validation engine - validates extracted invoice data and classifies exceptions",
	Long: `apinvoice validates structured invoice data produced by an upstream
document extractor: it normalizes raw field values, reconciles monetary
totals, evaluates business rules, and classifies every finding into an
exception taxonomy with a review severity.

The engine itself is pure and stateless; these commands wrap it for running
against extraction JSON files, single or in batches.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("apinvoice - invoice validation engine")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent("cmd")
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
