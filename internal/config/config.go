// =============================================================================
// CPS Tax-Unit Builder - Configuration Module
// =============================================================================
//
// This module is responsible for loading and validating the run configuration.
// A single YAML file describes:
//   1. Which survey-year person tables to convert (inputs)
//   2. Where output goes and in which formats
//   3. Optional post-passes (state targeting, assembly, filer adjustment)
//   4. The filing and dependency thresholds used by the tax-unit rules
//
// The thresholds are process-wide constants. They are loaded once, defaulted,
// validated, and then passed by value into every classification function so
// that those functions stay pure.
//
// =============================================================================

package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
// This is loaded from the main config.yaml file.
type MainConfig struct {
	// =========================================================================
	// INPUT SETTINGS
	// =========================================================================

	// Inputs lists the merged person tables to convert, one per survey year.
	// Every listed file must exist before any household is processed.
	Inputs []InputFile `yaml:"inputs" validate:"required,min=1,dive"`

	// StateTargets is an optional path to a CSV or XLSX table of state-level
	// aggregates (IRS SOI columns, one row per state). Empty disables targeting.
	StateTargets string `yaml:"state_targets"`

	// CSVSettings contains settings for parsing the input CSV files.
	CSVSettings CSVSettings `yaml:"csv_settings"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputDir is the directory where tax-unit files are written.
	// Default: "./output"
	OutputDir string `yaml:"output_dir" validate:"required"`

	// Output controls file naming, formats and compression.
	Output OutputSettings `yaml:"output"`

	// SQLitePath is an optional SQLite database that receives a checkpoint
	// copy of every emitted unit. Empty disables the sink.
	SQLitePath string `yaml:"sqlite_path"`

	// MetricsFile is an optional Prometheus textfile written at the end of
	// the run. Empty disables it.
	MetricsFile string `yaml:"metrics_file"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// Workers is the number of households converted concurrently per year.
	// Default: 4
	Workers int `yaml:"workers" validate:"gte=1,lte=256"`

	// Assemble concatenates all years into one file with weights divided by
	// the number of years.
	Assemble bool `yaml:"assemble"`

	// AdjustFilers randomly promotes a share of nonfilers to filers after
	// assembly.
	AdjustFilers AdjustSettings `yaml:"adjust_filers"`

	// Thresholds are the filing and dependency rule constants.
	Thresholds Thresholds `yaml:"thresholds"`
}

// InputFile describes one survey-year person table.
type InputFile struct {
	// Year is the survey (collection) year. Output units carry Year-1, the
	// income year.
	Year int `yaml:"year" validate:"gte=1990,lte=2100"`

	// Path is the CSV file holding one row per person.
	Path string `yaml:"path" validate:"required"`

	// ColumnRules normalize raw columns before persons are decoded.
	ColumnRules []ColumnRule `yaml:"column_rules" validate:"dive"`
}

// =============================================================================
// CSV SETTINGS STRUCTURE
// =============================================================================

// CSVSettings contains settings for parsing CSV files.
type CSVSettings struct {
	// Delimiter is the character used to separate fields in the CSV.
	// Common values: "," (comma), "|" (pipe), "\t" (tab)
	// Default: ","
	Delimiter string `yaml:"delimiter"`
}

// =============================================================================
// OUTPUT SETTINGS STRUCTURE
// =============================================================================

// OutputSettings controls how tax-unit files are written.
type OutputSettings struct {
	// FileFormat defines the output file name (without extension).
	// Placeholders:
	//   {uuid}      - A random UUID
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {year}      - Income year of the units, or "all" when assembled
	// Default: "cps_taxunits_{year}"
	FileFormat string `yaml:"file_format"`

	// Formats lists the file formats to write.
	// Default: ["csv"]
	Formats []string `yaml:"formats" validate:"dive,oneof=csv xlsx"`

	// Compress gzips CSV output.
	Compress bool `yaml:"compress"`
}

// AdjustSettings configures the random nonfiler-to-filer promotion.
type AdjustSettings struct {
	Enabled bool `yaml:"enabled"`

	// Seed makes the promotion reproducible.
	// Default: 409
	Seed int64 `yaml:"seed"`

	// WageRate is the promotion probability for nonfilers with wages.
	// Default: 0.84
	WageRate float64 `yaml:"wage_rate" validate:"gte=0,lte=1"`

	// NoWageRate is the promotion probability for nonfilers without wages.
	// Default: 0.54
	NoWageRate float64 `yaml:"no_wage_rate" validate:"gte=0,lte=1"`
}

// =============================================================================
// COLUMN RULE STRUCTURE
// =============================================================================

// ColumnRule defines normalizations to apply to one input column.
type ColumnRule struct {
	// Column is the input column header.
	Column string `yaml:"column" validate:"required"`

	// Actions are applied in order.
	Actions []ColumnAction `yaml:"actions" validate:"required,min=1,dive"`
}

// ColumnAction defines a single normalization.
type ColumnAction struct {
	// Type is the normalization to apply.
	// Supported types:
	//   - "trim"         : Remove surrounding whitespace
	//   - "fill_missing" : Replace an empty value with Value
	//   - "replace"      : Replace Find with Value
	//   - "lookup"       : Replace a value found in LookupTable
	//   - "scale"        : Multiply a numeric value by Value
	//   - "copy_from"    : Take the value of the column named in Value
	Type string `yaml:"type" validate:"required,oneof=trim fill_missing replace lookup scale copy_from"`

	// Value is the parameter for the normalization.
	Value string `yaml:"value"`

	// Find is used for "replace".
	Find string `yaml:"find,omitempty"`

	// LookupTable is used for "lookup".
	LookupTable map[string]string `yaml:"lookup_table,omitempty"`
}

// =============================================================================
// THRESHOLDS
// =============================================================================

// Thresholds holds every constant used by the dependency and filing rules.
// Dollar amounts are in the income year's currency units.
type Thresholds struct {
	// Gross-income filing thresholds by status and age.
	Single      float64 `yaml:"single" validate:"gt=0"`
	Single65    float64 `yaml:"single_65" validate:"gt=0"`
	HOH         float64 `yaml:"hoh" validate:"gt=0"`
	HOH65       float64 `yaml:"hoh_65" validate:"gt=0"`
	Joint       float64 `yaml:"joint" validate:"gt=0"`
	Joint65One  float64 `yaml:"joint_65_one" validate:"gt=0"`
	Joint65Both float64 `yaml:"joint_65_both" validate:"gt=0"`

	// DependentExemption reduces the gross-income thresholds per dependent.
	DependentExemption float64 `yaml:"dependent_exemption" validate:"gte=0"`

	// Wage floors above which a unit always files.
	SingleWageFloor       float64 `yaml:"single_wage_floor" validate:"gte=0"`
	JointWageFloor        float64 `yaml:"joint_wage_floor" validate:"gte=0"`
	JointNoDepsWageFloor  float64 `yaml:"joint_no_deps_wage_floor" validate:"gte=0"`
	HOHWageFloor          float64 `yaml:"hoh_wage_floor" validate:"gte=0"`
	ElderlyHOHCarveOut    float64 `yaml:"elderly_hoh_carve_out" validate:"gte=0"`
	DependentFilerWages   float64 `yaml:"dependent_filer_wages" validate:"gte=0"`
	DependentFilerIncome  float64 `yaml:"dependent_filer_income" validate:"gte=0"`
	DependentIncomeLimit  float64 `yaml:"dependent_income_limit" validate:"gte=0"`
	SupportShare          float64 `yaml:"support_share" validate:"gt=0,lte=1"`
	QualifyingChildMaxAge int     `yaml:"qualifying_child_max_age" validate:"gte=0"`
	StudentMaxAge         int     `yaml:"student_max_age" validate:"gte=0"`
	ElderlyAge            int     `yaml:"elderly_age" validate:"gt=0"`

	// HOHIncomeShare is the share of household income a single unit must
	// exceed to be reclassified as head of household.
	HOHIncomeShare float64 `yaml:"hoh_income_share" validate:"gt=0,lte=1"`

	// Reconciliation: units of these family types at or below this income
	// fold into the top earner, as does any unit with FoldRelationship.
	SubfamilyTypes     []int   `yaml:"subfamily_types"`
	SubfamilyMaxIncome float64 `yaml:"subfamily_max_income" validate:"gte=0"`
	FoldRelationship   int     `yaml:"fold_relationship"`

	// ScheduleBInterest marks units with interest above it.
	ScheduleBInterest float64 `yaml:"schedule_b_interest" validate:"gte=0"`

	// MaxBenefitSlots is the number of benefit slots exported per unit.
	MaxBenefitSlots int `yaml:"max_benefit_slots" validate:"gte=2"`
}

// DefaultThresholds returns the 2014 income-year rule constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Single:                10150,
		Single65:              11700,
		HOH:                   13050,
		HOH65:                 14600,
		Joint:                 20300,
		Joint65One:            21500,
		Joint65Both:           22700,
		DependentExemption:    3950,
		SingleWageFloor:       1000,
		JointWageFloor:        250,
		JointNoDepsWageFloor:  10000,
		HOHWageFloor:          1,
		ElderlyHOHCarveOut:    6500,
		DependentFilerWages:   0,
		DependentFilerIncome:  1000,
		DependentIncomeLimit:  2500,
		SupportShare:          0.5,
		QualifyingChildMaxAge: 18,
		StudentMaxAge:         23,
		ElderlyAge:            65,
		HOHIncomeShare:        0.99,
		SubfamilyTypes:        []int{1, 3, 5},
		SubfamilyMaxIncome:    3000,
		FoldRelationship:      11,
		ScheduleBInterest:     400,
		MaxBenefitSlots:       15,
	}
}

// IsSubfamilyType reports whether ftype is one of the foldable family types.
func (t Thresholds) IsSubfamilyType(ftype int) bool {
	for _, s := range t.SubfamilyTypes {
		if s == ftype {
			return true
		}
	}
	return false
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

var validate = validator.New()

// LoadMainConfig loads the main configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be read, parsed or validated.
//
// Input files are not checked here; see validation.CheckInputs.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	// Read the configuration file.
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes, defaults and validates a YAML configuration document.
func Parse(data []byte) (*MainConfig, error) {
	config := MainConfig{Thresholds: DefaultThresholds()}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply default values.
	applyMainConfigDefaults(&config)

	// Validate the configuration.
	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.Output.FileFormat == "" {
		config.Output.FileFormat = "cps_taxunits_{year}"
	}
	if len(config.Output.Formats) == 0 {
		config.Output.Formats = []string{"csv"}
	}
	if config.Workers == 0 {
		config.Workers = 4
	}
	if config.CSVSettings.Delimiter == "" {
		config.CSVSettings.Delimiter = ","
	}
	if config.AdjustFilers.Seed == 0 {
		config.AdjustFilers.Seed = 409
	}
	if config.AdjustFilers.WageRate == 0 {
		config.AdjustFilers.WageRate = 0.84
	}
	if config.AdjustFilers.NoWageRate == 0 {
		config.AdjustFilers.NoWageRate = 0.54
	}
	if len(config.Thresholds.SubfamilyTypes) == 0 {
		config.Thresholds.SubfamilyTypes = DefaultThresholds().SubfamilyTypes
	}
}

// validateMainConfig validates the main configuration.
func validateMainConfig(config *MainConfig) error {
	if err := validate.Struct(config); err != nil {
		return err
	}

	seen := make(map[int]bool, len(config.Inputs))
	for _, in := range config.Inputs {
		if seen[in.Year] {
			return fmt.Errorf("survey year %d listed more than once", in.Year)
		}
		seen[in.Year] = true
	}

	return nil
}
