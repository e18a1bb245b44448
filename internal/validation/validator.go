// =============================================================================
// CPS Tax-Unit Builder - Validation Engine
// =============================================================================
//
// This module validates the run at two points:
//   1. Before any household is processed: every configured input file must
//      exist and carry the columns the decoder reads. A gap is fatal and is
//      reported as a MissingInputError naming the input.
//   2. After conversion: every emitted record is checked for internal
//      consistency. Findings are collected, not thrown, and most are
//      warnings.
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ginjaninja78/cps-tax-units/internal/config"
	"github.com/ginjaninja78/cps-tax-units/internal/csvparser"
	"github.com/ginjaninja78/cps-tax-units/internal/microdata"
	"github.com/ginjaninja78/cps-tax-units/internal/targets"
	"github.com/ginjaninja78/cps-tax-units/internal/taxunit"
)

// =============================================================================
// MISSING INPUT ERROR
// =============================================================================

// MissingInputError reports an input file, or columns of one, that the run
// needs but cannot find.
type MissingInputError struct {
	// Input names the input, e.g. "survey year 2015" or "state targets".
	Input string

	// Path is the configured file path.
	Path string

	// Columns lists missing required columns. Empty when the file itself
	// is missing.
	Columns []string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *MissingInputError) Error() string {
	if len(e.Columns) > 0 {
		return fmt.Sprintf("%s (%s) is missing required columns: %s",
			e.Input, e.Path, strings.Join(e.Columns, ", "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s (%s) is not readable: %v", e.Input, e.Path, e.Err)
	}
	return fmt.Sprintf("%s (%s) does not exist", e.Input, e.Path)
}

// Unwrap returns the underlying error.
func (e *MissingInputError) Unwrap() error {
	return e.Err
}

// IsMissingInput reports whether err is or wraps a MissingInputError.
func IsMissingInput(err error) bool {
	var mie *MissingInputError
	return errors.As(err, &mie)
}

// =============================================================================
// INPUT CHECKS
// =============================================================================

// CheckInputs verifies every configured input before processing starts.
//
// PARAMETERS:
//   - cfg: The loaded configuration.
//
// RETURNS:
//   - nil when all inputs are usable.
//   - A joined error of *MissingInputError values, one per bad input.
func CheckInputs(cfg *config.MainConfig) error {
	var errs []error

	for _, in := range cfg.Inputs {
		if err := checkSurveyInput(in, cfg.CSVSettings); err != nil {
			errs = append(errs, err)
		}
	}

	if cfg.StateTargets != "" {
		if err := checkTargets(cfg.StateTargets, cfg.CSVSettings); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func checkSurveyInput(in config.InputFile, settings config.CSVSettings) error {
	name := fmt.Sprintf("survey year %d", in.Year)

	if err := checkFile(name, in.Path); err != nil {
		return err
	}

	headers, err := csvparser.ReadHeaders(in.Path, settings)
	if err != nil {
		return &MissingInputError{Input: name, Path: in.Path, Err: err}
	}

	// Columns created by rules do not need to be present in the file.
	provided := append([]string(nil), headers...)
	for _, rule := range in.ColumnRules {
		for _, action := range rule.Actions {
			if action.Type == "fill_missing" || action.Type == "copy_from" {
				provided = append(provided, rule.Column)
			}
		}
	}

	if missing := csvparser.MissingColumns(provided, microdata.RequiredColumns(in.Year)); len(missing) > 0 {
		return &MissingInputError{Input: name, Path: in.Path, Columns: missing}
	}
	return nil
}

func checkTargets(path string, settings config.CSVSettings) error {
	const name = "state targets"

	if err := checkFile(name, path); err != nil {
		return err
	}

	headers, err := targets.ReadHeaders(path, settings)
	if err != nil {
		return &MissingInputError{Input: name, Path: path, Err: err}
	}
	if missing := csvparser.MissingColumns(headers, targets.RequiredColumns()); len(missing) > 0 {
		return &MissingInputError{Input: name, Path: path, Columns: missing}
	}
	return nil
}

func checkFile(name, path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return &MissingInputError{Input: name, Path: path}
	}
	if err != nil {
		return &MissingInputError{Input: name, Path: path, Err: err}
	}
	if info.IsDir() {
		return &MissingInputError{Input: name, Path: path, Err: fmt.Errorf("is a directory")}
	}
	return nil
}

// =============================================================================
// RECORD VALIDATION
// =============================================================================

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationError represents a single finding on an output record.
type ValidationError struct {
	// Severity is SeverityError or SeverityWarning.
	Severity string

	// Field is the output column concerned.
	Field string

	// Value is the offending value.
	Value string

	// Message is a human-readable description.
	Message string

	// HouseholdID and LineNo identify the record by its head.
	HouseholdID int
	LineNo      int
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] household %d, line %d, field '%s': %s (value: '%s')",
		strings.ToUpper(e.Severity),
		e.HouseholdID,
		e.LineNo,
		e.Field,
		e.Message,
		e.Value,
	)
}

// ValidationResult contains the results of record validation.
type ValidationResult struct {
	// IsValid is true if there are no errors.
	IsValid bool

	// Errors contains all findings, warnings included.
	Errors []*ValidationError

	ErrorCount   int
	WarningCount int

	// RecordsValidated is the number of records checked.
	RecordsValidated int
}

// ValidateRecords checks emitted records for internal consistency.
//
// PARAMETERS:
//   - records: The records of one run.
//   - maxSlots: The number of benefit slots that will be exported.
//
// RETURNS:
//   - The collected findings.
func ValidateRecords(records []taxunit.Record, maxSlots int) *ValidationResult {
	result := &ValidationResult{
		IsValid:          true,
		RecordsValidated: len(records),
	}

	add := func(rec *taxunit.Record, severity, field, value, message string) {
		result.Errors = append(result.Errors, &ValidationError{
			Severity:    severity,
			Field:       field,
			Value:       value,
			Message:     message,
			HouseholdID: rec.HouseholdID,
			LineNo:      rec.LineNo,
		})
		if severity == SeverityError {
			result.ErrorCount++
			result.IsValid = false
		} else {
			result.WarningCount++
		}
	}

	for i := range records {
		rec := &records[i]

		filers := 1
		if rec.Status == taxunit.Joint {
			filers = 2
		}
		if rec.Total != filers+rec.Dependents {
			add(rec, SeverityError, "XXTOT", fmt.Sprint(rec.Total),
				fmt.Sprintf("expected %d filers plus %d dependents", filers, rec.Dependents))
		}
		if rec.Total != rec.Ages.Members() {
			add(rec, SeverityError, "XXTOT", fmt.Sprint(rec.Total),
				fmt.Sprintf("age brackets count %d members", rec.Ages.Members()))
		}
		if rec.Weight <= 0 {
			add(rec, SeverityWarning, "s006", fmt.Sprint(rec.Weight), "non-positive weight")
		}
		if rec.Benefits.Len() > maxSlots {
			add(rec, SeverityWarning, "benefit slots", fmt.Sprint(rec.Benefits.Len()),
				fmt.Sprintf("only the first %d slots are exported", maxSlots))
		}
		if rec.CountsReset {
			add(rec, SeverityWarning, "XXTOT", fmt.Sprint(rec.Total), "age counters were rebuilt")
		}
	}

	return result
}

// FormatErrors formats validation errors for display or logging.
func FormatErrors(errors []*ValidationError) string {
	if len(errors) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("Validation completed with %d finding(s):\n\n", len(errors)))

	for i, err := range errors {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}

	return builder.String()
}

// WriteErrorLog writes validation errors to a log file.
func WriteErrorLog(errors []*ValidationError, filePath string) error {
	if err := os.WriteFile(filePath, []byte(FormatErrors(errors)), 0644); err != nil {
		return fmt.Errorf("failed to write validation log: %w", err)
	}
	return nil
}
