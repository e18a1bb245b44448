// =============================================================================
// CPS Tax-Unit Builder - Converter Module
// =============================================================================
//
// This module orchestrates the conversion of one survey year, from the merged
// person table to finalized tax-unit records.
//
// CONVERSION PIPELINE:
//   1. Stream the person table row by row
//   2. Apply the year's column rules to each row
//   3. Decode each row into a Person
//   4. Partition persons into households (sorted by household, then line)
//   5. Build the tax units of every household on a worker pool
//   6. Validate the emitted records
//
// CONCURRENCY:
//   Households are independent. Each one is handed to a worker together with
//   its own copy of the person rows and its own Builder. Results land in a
//   slice indexed by household position, so output order does not depend on
//   the number of workers.
//
// =============================================================================

package converter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/cps-tax-units/internal/config"
	"github.com/ginjaninja78/cps-tax-units/internal/csvparser"
	"github.com/ginjaninja78/cps-tax-units/internal/metrics"
	"github.com/ginjaninja78/cps-tax-units/internal/microdata"
	"github.com/ginjaninja78/cps-tax-units/internal/taxunit"
	"github.com/ginjaninja78/cps-tax-units/internal/validation"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of converting one survey year.
type Result struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	// SurveyYear is the survey year of the input. Records carry the income
	// year, one less.
	SurveyYear int

	// Records holds one record per surviving unit, in household order.
	Records []taxunit.Record

	// Success indicates whether the processing was successful.
	Success bool

	// Error contains the error if processing failed.
	Error error

	// Stats contains processing statistics.
	Stats ProcessingStats

	// Findings holds the record validation findings.
	Findings []*validation.ValidationError
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// RowsProcessed is the number of person rows decoded.
	RowsProcessed int

	// Households is the number of households built.
	Households int

	// Builder aggregates the builder counters of every household.
	Builder taxunit.Stats

	// UnitsEmitted is the number of surviving units.
	UnitsEmitted int

	// ValidationErrors and ValidationWarnings count the record findings.
	ValidationErrors   int
	ValidationWarnings int

	// ProcessingTime is the time taken to process the file.
	ProcessingTime time.Duration
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter converts one survey year.
type Converter struct {
	input      config.InputFile
	mainConfig *config.MainConfig
	logger     *zap.Logger
	metrics    *metrics.Collector
}

// New creates a new Converter instance.
//
// PARAMETERS:
//   - input: The survey year and its person table.
//   - mainConfig: The main application configuration.
//   - logger: The run logger. nil disables logging.
//   - collector: The run metrics. nil disables metrics.
//
// RETURNS:
//   - A new Converter instance.
func New(input config.InputFile, mainConfig *config.MainConfig, logger *zap.Logger, collector *metrics.Collector) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Converter{
		input:      input,
		mainConfig: mainConfig,
		logger:     logger.With(zap.Int("year", input.Year)),
		metrics:    collector,
	}
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the conversion pipeline for the year.
func (c *Converter) Run(ctx context.Context) Result {
	startTime := time.Now()
	result := Result{
		FilePath:   c.input.Path,
		SurveyYear: c.input.Year,
	}

	c.logger.Info("processing survey year", zap.String("file", c.input.Path))

	// =========================================================================
	// STEPS 1-3: READ, TRANSFORM AND DECODE
	// =========================================================================

	persons, err := c.readPersons(ctx)
	if err != nil {
		result.Error = err
		return result
	}

	result.Stats.RowsProcessed = len(persons)
	if c.metrics != nil {
		c.metrics.ObservePersons(c.input.Year, len(persons))
	}
	c.logger.Debug("decoded person rows", zap.Int("rows", len(persons)))

	// =========================================================================
	// STEP 4: PARTITION INTO HOUSEHOLDS
	// =========================================================================

	households := microdata.Partition(persons)
	result.Stats.Households = len(households)
	c.logger.Debug("partitioned households", zap.Int("households", len(households)))

	// =========================================================================
	// STEP 5: BUILD TAX UNITS
	// =========================================================================

	records, stats, err := c.buildAll(ctx, households)
	if err != nil {
		result.Error = fmt.Errorf("failed to build tax units: %w", err)
		return result
	}

	result.Records = records
	result.Stats.Builder = stats
	result.Stats.UnitsEmitted = len(records)

	// =========================================================================
	// STEP 6: VALIDATE RECORDS
	// =========================================================================

	validationResult := validation.ValidateRecords(records, c.mainConfig.Thresholds.MaxBenefitSlots)
	result.Findings = validationResult.Errors
	result.Stats.ValidationErrors = validationResult.ErrorCount
	result.Stats.ValidationWarnings = validationResult.WarningCount

	for _, ve := range validationResult.Errors {
		if ve.Severity == validation.SeverityError {
			c.logger.Warn("record validation error", zap.Error(ve))
		}
	}

	result.Success = true
	result.Stats.ProcessingTime = time.Since(startTime)

	c.logger.Info("survey year complete",
		zap.Int("households", result.Stats.Households),
		zap.Int("units_built", stats.Units),
		zap.Int("units_emitted", len(records)),
		zap.Int("folds", stats.Folds),
		zap.Int("spouse_misses", stats.SpouseMisses),
		zap.Int("count_resets", stats.Resets),
		zap.Duration("elapsed", result.Stats.ProcessingTime),
	)

	return result
}

// readPersons streams the person table and decodes every row.
func (c *Converter) readPersons(ctx context.Context) ([]microdata.Person, error) {
	parser, err := csvparser.NewStreamingParser(c.input.Path, c.mainConfig.CSVSettings)
	if err != nil {
		return nil, fmt.Errorf("failed to open person table: %w", err)
	}
	defer parser.Close()

	transformer := NewTransformer(c.input.ColumnRules)

	var persons []microdata.Person
	for parser.Next() {
		// Cancellation is checked every few thousand rows.
		if parser.RowNumber()%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		row := parser.Row()
		if err := transformer.Apply(row); err != nil {
			return nil, fmt.Errorf("row %d: %w", parser.RowNumber(), err)
		}

		p, err := microdata.Decode(row, c.input.Year)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", parser.RowNumber(), err)
		}
		persons = append(persons, p)
	}
	if err := parser.Err(); err != nil {
		return nil, fmt.Errorf("failed to read person table: %w", err)
	}

	return persons, nil
}

func (c *Converter) buildAll(ctx context.Context, households []microdata.Household) ([]taxunit.Record, taxunit.Stats, error) {
	observe := func(s taxunit.Stats, emitted int) {
		if c.metrics != nil {
			c.metrics.ObserveHousehold(c.input.Year, s, emitted)
		}
		if s.SpouseMisses > 0 {
			c.logger.Debug("spouse pointer not mutual", zap.Int("misses", s.SpouseMisses))
		}
	}

	return BuildHouseholds(ctx, households, Options{
		IncomeYear: c.input.Year - 1,
		Thresholds: c.mainConfig.Thresholds,
		Workers:    c.mainConfig.Workers,
		Observe:    observe,
	})
}

// =============================================================================
// HOUSEHOLD WORKER POOL
// =============================================================================

// Options controls BuildHouseholds.
type Options struct {
	// IncomeYear is stamped on every record.
	IncomeYear int

	Thresholds config.Thresholds

	// Workers is the maximum number of households built at once.
	Workers int

	// Observe, when set, is called once per household from the worker
	// goroutine. It must be safe for concurrent use.
	Observe func(s taxunit.Stats, emitted int)
}

// BuildHouseholds builds the records of every household.
//
// PARAMETERS:
//   - ctx: Checked before each household is started.
//   - households: The partitioned households. Their person flags are written
//     in place; no two workers share a household.
//   - opts: Pool and builder settings.
//
// RETURNS:
//   - The records of all households, in household order.
//   - The summed builder counters.
//   - The context error if the run was cancelled.
func BuildHouseholds(ctx context.Context, households []microdata.Household, opts Options) ([]taxunit.Record, taxunit.Stats, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	perHousehold := make([][]taxunit.Record, len(households))
	stats := make([]taxunit.Stats, len(households))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range households {
		if err := gctx.Err(); err != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			b := taxunit.NewBuilder(opts.IncomeYear, opts.Thresholds)
			perHousehold[i] = b.BuildHousehold(&households[i])
			stats[i] = b.Stats()

			if opts.Observe != nil {
				opts.Observe(stats[i], len(perHousehold[i]))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, taxunit.Stats{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, taxunit.Stats{}, err
	}

	var total taxunit.Stats
	count := 0
	for i := range perHousehold {
		total.Add(stats[i])
		count += len(perHousehold[i])
	}

	records := make([]taxunit.Record, 0, count)
	for _, recs := range perHousehold {
		records = append(records, recs...)
	}

	return records, total, nil
}
