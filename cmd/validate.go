package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"apinvoice/internal/config"
	"apinvoice/internal/engine"
	"apinvoice/internal/logger"
	"apinvoice/pkg/models"
)

var validateCmd = &cobra.Command{
	Use:   "validate [extraction-json]",
	Short: "Validate one extracted invoice record and emit its verdict",
	Long: `Validate a single extraction record (the JSON field mapping produced by an
upstream document extractor) and print the resulting verdict.

The command exits non-zero only when the record cannot be read or a field
value cannot be coerced to its declared type. Business-rule findings are the
normal output of this tool: an invoice with exceptions still validates
successfully and its verdict carries the exception list.

Thresholds are read from the environment (see .env):
  TOLERANCE_ABSOLUTE, TOLERANCE_RELATIVE, HIGH_SEVERITY_ABSOLUTE,
  DATE_SKEW_DAYS, GRACE_WINDOW_DAYS, MAX_INVOICE_AGE_DAYS,
  LARGE_AMOUNT_THRESHOLD, TAX_RATE_TOLERANCE`,
	Example: `  # Validate a record, verdict JSON to stdout
  apinvoice validate extraction.json

  # Save the verdict to a file
  apinvoice validate extraction.json -o verdict.json

  # Include the normalized record alongside the verdict
  apinvoice validate extraction.json --record`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

// ValidateOutput is the JSON output of the validate command.
type ValidateOutput struct {
	Verdict *models.ValidationVerdict  `json:"verdict"`
	Record  *models.InvoiceFieldRecord `json:"record,omitempty"`
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	validateCmd.Flags().Bool("record", false, "Include the normalized record in the output")
}

func runValidate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("validate")

	outputPath, _ := cmd.Flags().GetString("output")
	includeRecord, _ := cmd.Flags().GetBool("record")
	inputPath := args[0]

	log.Info().
		Str("file", inputPath).
		Str("output", outputPath).
		Msg("Starting validation")

	eng, err := newEngine()
	if err != nil {
		return err
	}

	raw, err := readExtractionRecord(inputPath)
	if err != nil {
		return err
	}

	rec, verdict, err := validateRaw(eng, raw)
	if err != nil {
		return fmt.Errorf("validation failed for %s: %w", inputPath, err)
	}

	out := ValidateOutput{Verdict: verdict}
	if includeRecord {
		out.Record = rec
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode verdict: %w", err)
	}
	data = append(data, '\n')

	if outputPath == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	log.Info().
		Str("invoice_id", verdict.InvoiceID).
		Bool("is_exception", verdict.IsException).
		Int("exceptions", verdict.ExceptionCount).
		Msg("Validation completed")

	return nil
}

// newEngine builds an engine from environment-driven configuration.
func newEngine() (*engine.Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return engine.New(cfg.GetEngineConfig())
}

// readExtractionRecord reads one extraction JSON file into a field mapping.
func readExtractionRecord(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return raw, nil
}

// validateRaw normalizes and validates one raw mapping, returning both the
// normalized record and the verdict.
func validateRaw(eng *engine.Engine, raw map[string]interface{}) (*models.InvoiceFieldRecord, *models.ValidationVerdict, error) {
	rec, err := eng.Normalize(raw)
	if err != nil {
		return nil, nil, err
	}
	return rec, eng.ValidateRecord(rec), nil
}
