package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"apinvoice/internal/config"
	"apinvoice/internal/engine"
	"apinvoice/internal/logger"
	"apinvoice/internal/report"
)

var batchCmd = &cobra.Command{
	Use:   "batch [folder-path]",
	Short: "Validate every extraction record in a folder and route the verdicts",
	Long: `Validate all extraction JSON files in a folder in parallel and route each
verdict to one of two sinks: clean invoices go to <out>/processed/, invoices
with exceptions (and files that failed normalization) go to <out>/exceptions/.

This mirrors the downstream persistence split: the processed sink feeds the
accounting flow, the exceptions sink feeds the review queue.

Optional environment variables:
  BATCH_WORKERS - Number of parallel workers (default: 12)`,
	Example: `  # Validate all records, write verdicts next to the input
  apinvoice batch ./extractions

  # Write verdicts to a separate folder
  apinvoice batch ./extractions --out ./verdicts

  # Dry run: validate and summarize without writing verdict files
  apinvoice batch ./extractions --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

// batchJob is one extraction file queued for a worker.
type batchJob struct {
	FilePath string
	Index    int
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().String("out", "", "Output folder for verdict files (default: input folder)")
	batchCmd.Flags().Bool("dry-run", false, "Validate but don't write verdict files")
	batchCmd.Flags().Bool("verbose", false, "Show detailed processing information")
}

func runBatch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("batch")

	folderPath := args[0]
	outPath, _ := cmd.Flags().GetString("out")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	verbose, _ := cmd.Flags().GetBool("verbose")
	if outPath == "" {
		outPath = folderPath
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

	log.Info().
		Str("folder", folderPath).
		Int("files", len(files)).
		Int("workers", cfg.BatchWorkers).
		Bool("dry_run", dryRun).
		Msg("Starting batch validation")

	fmt.Printf("Validating %d records with %d workers...\n\n", len(files), cfg.BatchWorkers)

	entries := validateInParallel(eng, files, cfg.BatchWorkers, log, verbose)

	processedCount := 0
	exceptionCount := 0
	errorCount := 0
	for _, e := range entries {
		switch {
		case e.Err != nil:
			errorCount++
		case e.Verdict.IsException:
			exceptionCount++
		default:
			processedCount++
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("                 RESULT")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Processed:  %d\n", processedCount)
	fmt.Printf("Exceptions: %d\n", exceptionCount)
	if errorCount > 0 {
		fmt.Printf("Errors:     %d\n", errorCount)
	}

	if !dryRun {
		written, err := writeVerdicts(outPath, entries)
		if err != nil {
			return err
		}
		fmt.Printf("\nVerdicts written: %d (%s)\n", written, outPath)
	}

	log.Info().
		Int("total", len(files)).
		Int("processed", processedCount).
		Int("exceptions", exceptionCount).
		Int("errors", errorCount).
		Msg("Batch validation completed")

	return nil
}

// findJSONFiles finds all JSON files in the specified folder, skipping the
// verdict sink subfolders from previous runs.
func findJSONFiles(folderPath string) ([]string, error) {
	var files []string

	err := filepath.Walk(folderPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			switch info.Name() {
			case "processed", "exceptions":
				if path != folderPath {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if strings.HasSuffix(strings.ToLower(info.Name()), ".json") {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// validateInParallel validates extraction files using a worker pool.
func validateInParallel(eng *engine.Engine, files []string, numWorkers int, log zerolog.Logger, verbose bool) []report.Entry {
	jobs := make(chan batchJob, len(files))
	entries := make([]report.Entry, len(files))

	var processedCount int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for job := range jobs {
				entry := validateSingleFile(eng, job.FilePath)
				entries[job.Index] = entry

				mu.Lock()
				processedCount++
				current := processedCount
				fmt.Printf("[%d/%d] %s - %s\n", current, len(files), entry.Filename, entryStatus(entry))
				mu.Unlock()

				if verbose && entry.Verdict != nil {
					log.Info().
						Int("worker", workerID).
						Str("file", entry.Filename).
						Str("invoice_id", entry.Verdict.InvoiceID).
						Int("exceptions", entry.Verdict.ExceptionCount).
						Msg("Record validated")
				}
			}
		}(w)
	}

	for i, file := range files {
		jobs <- batchJob{FilePath: file, Index: i}
	}
	close(jobs)
	wg.Wait()

	return entries
}

// validateSingleFile validates one extraction file and returns the entry.
func validateSingleFile(eng *engine.Engine, path string) report.Entry {
	entry := report.Entry{Filename: filepath.Base(path)}

	raw, err := readExtractionRecord(path)
	if err != nil {
		entry.Err = err
		return entry
	}

	rec, verdict, err := validateRaw(eng, raw)
	if err != nil {
		entry.Err = err
		return entry
	}
	entry.Record = rec
	entry.Verdict = verdict
	return entry
}

// writeVerdicts routes each verdict JSON into the processed or exceptions
// sink folder. Files that failed normalization produce no verdict and are
// reported in the summary only.
func writeVerdicts(outPath string, entries []report.Entry) (int, error) {
	processedDir := filepath.Join(outPath, "processed")
	exceptionsDir := filepath.Join(outPath, "exceptions")
	for _, dir := range []string{processedDir, exceptionsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("failed to create sink folder: %w", err)
		}
	}

	written := 0
	for _, e := range entries {
		if e.Verdict == nil {
			continue
		}
		dir := processedDir
		if e.Verdict.IsException {
			dir = exceptionsDir
		}
		name := strings.TrimSuffix(e.Filename, filepath.Ext(e.Filename)) + ".verdict.json"

		data, err := json.MarshalIndent(ValidateOutput{Verdict: e.Verdict, Record: e.Record}, "", "  ")
		if err != nil {
			return written, fmt.Errorf("failed to encode verdict for %s: %w", e.Filename, err)
		}
		data = append(data, '\n')
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			return written, fmt.Errorf("failed to write verdict for %s: %w", e.Filename, err)
		}
		written++
	}
	return written, nil
}

func entryStatus(e report.Entry) string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("error (%v)", e.Err)
	case e.Verdict.IsException:
		return fmt.Sprintf("exception (%d findings)", e.Verdict.ExceptionCount)
	default:
		return "ok"
	}
}
