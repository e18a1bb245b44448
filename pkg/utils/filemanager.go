// =============================================================================
// CPS Tax-Unit Builder - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the builder, including:
//   - Directory management
//   - Output file naming and run identifiers
//   - Processing summary generation
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates every listed directory if it doesn't exist.
// Empty entries are skipped.
//
// RETURNS:
//   - An error if any directory cannot be created.
func EnsureDirectories(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// NewRunID returns a fresh identifier for one processing run.
func NewRunID() string {
	return uuid.New().String()
}

// GenerateOutputFileName generates an output file name.
//
// PARAMETERS:
//   - format: The format string for the file name.
//     Placeholders:
//     {uuid}      - A random UUID
//     {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
//     {date}      - Current date (YYYYMMDD)
//     any key of params, e.g. {year}
//   - params: A map of placeholder values.
//   - ext: The extension to ensure, including the dot (".csv.gz").
//
// RETURNS:
//   - The generated file name.
//
// EXAMPLE:
//
//	format: "cps_taxunits_{year}"
//	params: {"year": "2014"}
//	ext:    ".csv.gz"
//	output: "cps_taxunits_2014.csv.gz"
func GenerateOutputFileName(format string, params map[string]string, ext string) string {
	now := time.Now()

	replacements := map[string]string{
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	if strings.Contains(result, "{uuid}") {
		result = strings.ReplaceAll(result, "{uuid}", uuid.New().String())
	}
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if ext != "" && !strings.HasSuffix(strings.ToLower(result), strings.ToLower(ext)) {
		result += ext
	}

	return result
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a processing run.
type ProcessingSummary struct {
	RunID            string
	StartTime        time.Time
	EndTime          time.Time
	TotalYears       int
	SuccessfulYears  int
	FailedYears      int
	TotalPersons     int
	TotalHouseholds  int
	TotalUnits       int
	FilersRequired   int
	FilersAdjusted   int
	ValidationErrors int
	Warnings         int
	OutputFiles      []string
	ProcessedYears   []ProcessedYearInfo
	FailedYearsList  []FailedYearInfo
}

// ProcessedYearInfo contains information about a converted survey year.
type ProcessedYearInfo struct {
	SurveyYear  int
	InputFile   string
	Persons     int
	Households  int
	Units       int
	ProcessTime time.Duration
}

// FailedYearInfo contains information about a survey year that failed.
type FailedYearInfo struct {
	SurveyYear   int
	InputFile    string
	ErrorMessage string
}

// WriteSummaryLog writes a processing summary to a log file.
//
// PARAMETERS:
//   - summary: The processing summary.
//   - outputDir: The directory to write the summary file.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (path string, err error) {
	timestamp := summary.StartTime.Format("20060102_150405")
	summaryPath := filepath.Join(outputDir, fmt.Sprintf("processing_summary_%s.txt", timestamp))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close summary file: %w", cerr)
		}
	}()

	w := bufio.NewWriter(file)

	duration := summary.EndTime.Sub(summary.StartTime)
	fmt.Fprintf(w, "CPS Tax-Unit Builder - Processing Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Survey Years:       %d\n"+
		"  Successful:         %d\n"+
		"  Failed:             %d\n"+
		"  Persons:            %d\n"+
		"  Households:         %d\n"+
		"  Tax Units:          %d\n"+
		"  Filing Required:    %d\n"+
		"  Filers Adjusted:    %d\n"+
		"  Validation Errors:  %d\n"+
		"  Warnings:           %d\n\n",
		summary.RunID,
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		duration.String(),
		summary.TotalYears,
		summary.SuccessfulYears,
		summary.FailedYears,
		summary.TotalPersons,
		summary.TotalHouseholds,
		summary.TotalUnits,
		summary.FilersRequired,
		summary.FilersAdjusted,
		summary.ValidationErrors,
		summary.Warnings)

	if len(summary.ProcessedYears) > 0 {
		w.WriteString("Converted Years:\n")
		w.WriteString("--------------------------------------------------------------------------------\n")
		for _, py := range summary.ProcessedYears {
			fmt.Fprintf(w, "  Survey Year:  %d\n", py.SurveyYear)
			fmt.Fprintf(w, "  Input:        %s\n", py.InputFile)
			fmt.Fprintf(w, "  Persons:      %d\n", py.Persons)
			fmt.Fprintf(w, "  Households:   %d\n", py.Households)
			fmt.Fprintf(w, "  Tax Units:    %d\n", py.Units)
			fmt.Fprintf(w, "  Process Time: %s\n\n", py.ProcessTime.String())
		}
	}

	if len(summary.FailedYearsList) > 0 {
		w.WriteString("Failed Years:\n")
		w.WriteString("--------------------------------------------------------------------------------\n")
		for _, fy := range summary.FailedYearsList {
			fmt.Fprintf(w, "  Survey Year: %d\n", fy.SurveyYear)
			fmt.Fprintf(w, "  File:        %s\n", fy.InputFile)
			fmt.Fprintf(w, "  Error:       %s\n\n", fy.ErrorMessage)
		}
	}

	if len(summary.OutputFiles) > 0 {
		w.WriteString("Output Files:\n")
		w.WriteString("--------------------------------------------------------------------------------\n")
		for _, f := range summary.OutputFiles {
			fmt.Fprintf(w, "  %s\n", f)
		}
		w.WriteString("\n")
	}

	w.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}
