// =============================================================================
// CPS Tax-Unit Builder - Process Command
// =============================================================================
//
// This file defines the 'process' command, which runs the whole pipeline.
//
// COMMAND USAGE:
//   taxunits process [flags]
//
// FLAGS:
//   --dry-run     : Build and validate units without writing any output
//   --year        : Process only one configured survey year
//   --workers     : Override the number of concurrent household workers
//
// PROCESSING PIPELINE:
//   1. Load the configuration
//   2. Check every input file and its required columns
//   3. Convert each survey year (concurrently):
//      a. Read, normalize and decode the person rows
//      b. Partition persons into households
//      c. Build, reconcile and finalize the tax units
//      d. Validate the records
//   4. Assemble the years, or keep them apart, adjusting filers if enabled
//   5. Scale incomes to the state targets, if configured
//   6. Write the output files and the SQLite checkpoint
//   7. Write the metrics textfile, validation log and summary report
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/cps-tax-units/internal/assemble"
	"github.com/ginjaninja78/cps-tax-units/internal/config"
	"github.com/ginjaninja78/cps-tax-units/internal/converter"
	"github.com/ginjaninja78/cps-tax-units/internal/export"
	"github.com/ginjaninja78/cps-tax-units/internal/metrics"
	"github.com/ginjaninja78/cps-tax-units/internal/targets"
	"github.com/ginjaninja78/cps-tax-units/internal/taxunit"
	"github.com/ginjaninja78/cps-tax-units/internal/validation"
	"github.com/ginjaninja78/cps-tax-units/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// processOptions holds the process command flags.
type processOptions struct {
	// DryRun builds and validates units without writing any output.
	DryRun bool

	// Year restricts processing to one configured survey year. Zero keeps
	// every year.
	Year int

	// Workers overrides the configured worker count when positive.
	Workers int
}

var processFlags processOptions

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

// processCmd represents the 'process' command.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Convert CPS person tables into tax-unit files",
	Long: `The process command converts every configured survey year into tax units.

All input files and their required columns are checked before any household
is processed; a missing file or column stops the run. Survey years are then
converted concurrently, each with its own pool of household workers.

When assembly is enabled the years are written as one file with weights divided
by the number of years. Otherwise each year is written to its own file.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		mainConfig, err := config.LoadMainConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load main config: %w", err)
		}

		_, err = runProcess(cmd.Context(), mainConfig, processFlags, logger, cmd.OutOrStdout())
		return err
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(
		&processFlags.DryRun,
		"dry-run",
		false,
		"Build and validate units without writing output files",
	)

	processCmd.Flags().IntVar(
		&processFlags.Year,
		"year",
		0,
		"Process only this survey year",
	)

	processCmd.Flags().IntVar(
		&processFlags.Workers,
		"workers",
		0,
		"Number of households converted concurrently (overrides the config)",
	)
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// outputSet is one group of records written to one set of files.
type outputSet struct {
	// Label fills the {year} placeholder: the income year, or "all".
	Label   string
	Records []taxunit.Record
}

// runProcess orchestrates the pipeline.
//
// PARAMETERS:
//   - ctx: Cancels the conversion between households.
//   - mainConfig: The loaded configuration.
//   - opts: The command flags.
//   - logger: The run logger.
//   - out: Where the human-readable summary is printed.
//
// RETURNS:
//   - The run summary.
//   - An error if an input is missing, an output cannot be written, or any
//     survey year failed.
func runProcess(ctx context.Context, mainConfig *config.MainConfig, opts processOptions, logger *zap.Logger, out io.Writer) (utils.ProcessingSummary, error) {
	summary := utils.ProcessingSummary{
		RunID:     utils.NewRunID(),
		StartTime: time.Now(),
	}
	logger = logger.With(zap.String("run_id", summary.RunID))

	// =========================================================================
	// STEP 1: APPLY FLAG OVERRIDES
	// =========================================================================

	cfg := *mainConfig
	if opts.Workers > 0 {
		cfg.Workers = opts.Workers
	}
	if opts.Year != 0 {
		var selected []config.InputFile
		for _, in := range cfg.Inputs {
			if in.Year == opts.Year {
				selected = append(selected, in)
			}
		}
		if len(selected) == 0 {
			return summary, fmt.Errorf("survey year %d is not configured", opts.Year)
		}
		cfg.Inputs = selected
	}

	// =========================================================================
	// STEP 2: CHECK INPUTS
	// =========================================================================

	if err := validation.CheckInputs(&cfg); err != nil {
		logger.Error("input check failed", zap.Error(err))
		return summary, err
	}

	var table targets.Table
	if cfg.StateTargets != "" {
		t, err := targets.Load(cfg.StateTargets, cfg.CSVSettings)
		if err != nil {
			return summary, fmt.Errorf("failed to load state targets: %w", err)
		}
		table = t
		logger.Info("loaded state targets", zap.Int("states", len(table)))
	}

	if !opts.DryRun {
		if err := utils.EnsureDirectories(cfg.OutputDir); err != nil {
			return summary, err
		}
	}

	// =========================================================================
	// STEP 3: CONVERT SURVEY YEARS
	// =========================================================================

	fmt.Fprintln(out, "=== CPS Tax-Unit Builder ===")
	fmt.Fprintf(out, "Converting %d survey year(s)...\n", len(cfg.Inputs))

	collector := metrics.New()
	results := make([]converter.Result, len(cfg.Inputs))

	// Failures are recorded per year; one failed year does not stop the rest.
	var wg sync.WaitGroup
	for i, in := range cfg.Inputs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = converter.New(in, &cfg, logger, collector).Run(ctx)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("processing interrupted: %w", err)
	}

	var (
		years    []assemble.Year
		findings []*validation.ValidationError
	)
	summary.TotalYears = len(results)
	for _, result := range results {
		if !result.Success {
			summary.FailedYears++
			summary.FailedYearsList = append(summary.FailedYearsList, utils.FailedYearInfo{
				SurveyYear:   result.SurveyYear,
				InputFile:    result.FilePath,
				ErrorMessage: result.Error.Error(),
			})
			fmt.Fprintf(out, "  ✗ %d %s: %v\n", result.SurveyYear, filepath.Base(result.FilePath), result.Error)
			continue
		}

		summary.SuccessfulYears++
		summary.TotalPersons += result.Stats.RowsProcessed
		summary.TotalHouseholds += result.Stats.Households
		summary.ValidationErrors += result.Stats.ValidationErrors
		summary.Warnings += result.Stats.ValidationWarnings
		summary.ProcessedYears = append(summary.ProcessedYears, utils.ProcessedYearInfo{
			SurveyYear:  result.SurveyYear,
			InputFile:   result.FilePath,
			Persons:     result.Stats.RowsProcessed,
			Households:  result.Stats.Households,
			Units:       result.Stats.UnitsEmitted,
			ProcessTime: result.Stats.ProcessingTime,
		})
		findings = append(findings, result.Findings...)
		years = append(years, assemble.Year{SurveyYear: result.SurveyYear, Records: result.Records})

		fmt.Fprintf(out, "  ✓ %d %s: %d tax units\n", result.SurveyYear, filepath.Base(result.FilePath), result.Stats.UnitsEmitted)
	}

	// =========================================================================
	// STEP 4: ASSEMBLE AND ADJUST FILERS
	// =========================================================================

	var sets []outputSet
	record := func(res assemble.Result, label string) {
		for year, n := range res.Adjusted {
			collector.ObserveAdjusted(year, n)
			summary.FilersAdjusted += n
		}
		sets = append(sets, outputSet{Label: label, Records: res.Records})
	}

	if cfg.Assemble && len(years) > 0 {
		record(assemble.Assemble(years, cfg.AdjustFilers), "all")
	} else {
		for _, y := range years {
			record(assemble.Assemble([]assemble.Year{y}, cfg.AdjustFilers), strconv.Itoa(y.SurveyYear-1))
		}
	}

	// =========================================================================
	// STEP 5: STATE TARGETS
	// =========================================================================

	if table != nil {
		for _, set := range sets {
			res := targets.Apply(set.Records, table)
			if len(res.Skipped) > 0 {
				logger.Warn("state targets left unscaled",
					zap.String("set", set.Label), zap.Strings("skipped", res.Skipped))
			}
			logger.Debug("applied state targets",
				zap.String("set", set.Label), zap.Int("states", len(res.Factors)))
		}
	}

	for _, set := range sets {
		summary.TotalUnits += len(set.Records)
		for i := range set.Records {
			if set.Records[i].FilingRequired {
				summary.FilersRequired++
			}
		}
	}

	// =========================================================================
	// STEP 6: WRITE OUTPUT
	// =========================================================================

	if !opts.DryRun {
		files, err := writeOutputs(ctx, &cfg, summary.RunID, sets, logger)
		summary.OutputFiles = files
		if err != nil {
			return summary, err
		}

		if len(findings) > 0 {
			logPath := filepath.Join(cfg.OutputDir, fmt.Sprintf("validation_%s.txt", summary.RunID))
			if err := validation.WriteErrorLog(findings, logPath); err != nil {
				logger.Warn("failed to write validation log", zap.Error(err))
			}
		}

		if cfg.MetricsFile != "" {
			if err := collector.WriteTextfile(cfg.MetricsFile); err != nil {
				logger.Warn("failed to write metrics textfile", zap.Error(err))
			}
		}
	}

	// =========================================================================
	// STEP 7: SUMMARY
	// =========================================================================

	summary.EndTime = time.Now()

	if !opts.DryRun {
		if path, err := utils.WriteSummaryLog(summary, cfg.OutputDir); err != nil {
			logger.Warn("failed to write summary log", zap.Error(err))
		} else {
			logger.Info("wrote summary log", zap.String("path", path))
		}
	}

	fmt.Fprintln(out, "\n=== Processing Complete ===")
	fmt.Fprintf(out, "Survey years:    %d\n", summary.TotalYears)
	fmt.Fprintf(out, "Successful:      %d\n", summary.SuccessfulYears)
	fmt.Fprintf(out, "Failed:          %d\n", summary.FailedYears)
	fmt.Fprintf(out, "Tax units:       %d\n", summary.TotalUnits)
	fmt.Fprintf(out, "Must file:       %d\n", summary.FilersRequired)
	fmt.Fprintf(out, "Time elapsed:    %s\n", summary.EndTime.Sub(summary.StartTime))
	for _, f := range summary.OutputFiles {
		fmt.Fprintf(out, "  -> %s\n", f)
	}

	if summary.FailedYears > 0 {
		return summary, fmt.Errorf("%d of %d survey year(s) failed", summary.FailedYears, summary.TotalYears)
	}
	return summary, nil
}

// writeOutputs writes every set in every configured format, then the SQLite
// checkpoint.
//
// RETURNS:
//   - The paths of the files written.
//   - An error if any file or the checkpoint cannot be written.
func writeOutputs(ctx context.Context, cfg *config.MainConfig, runID string, sets []outputSet, logger *zap.Logger) ([]string, error) {
	slots := cfg.Thresholds.MaxBenefitSlots
	var files []string

	for _, set := range sets {
		params := map[string]string{"year": set.Label}
		for _, format := range cfg.Output.Formats {
			var (
				path string
				err  error
			)
			switch format {
			case "csv":
				ext := ".csv"
				if cfg.Output.Compress {
					ext = ".csv.gz"
				}
				path = filepath.Join(cfg.OutputDir, utils.GenerateOutputFileName(cfg.Output.FileFormat, params, ext))
				err = export.WriteCSV(path, set.Records, slots, cfg.Output.Compress)
			case "xlsx":
				path = filepath.Join(cfg.OutputDir, utils.GenerateOutputFileName(cfg.Output.FileFormat, params, ".xlsx"))
				err = export.WriteXLSX(path, set.Records, slots)
			default:
				err = fmt.Errorf("unsupported output format %q", format)
			}
			if err != nil {
				return files, fmt.Errorf("failed to write %s output for %s: %w", format, set.Label, err)
			}
			files = append(files, path)
			logger.Info("wrote output file",
				zap.String("path", path), zap.Int("records", len(set.Records)))
		}
	}

	if cfg.SQLitePath == "" {
		return files, nil
	}

	store, err := export.OpenStore(cfg.SQLitePath)
	if err != nil {
		return files, fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	defer store.Close()

	for _, set := range sets {
		id := runID + "-" + set.Label
		if err := store.WriteRun(ctx, id, set.Records, slots); err != nil {
			return files, fmt.Errorf("failed to checkpoint %s: %w", set.Label, err)
		}
		logger.Debug("checkpointed records", zap.String("run", id), zap.Int("records", len(set.Records)))
	}

	return files, nil
}
