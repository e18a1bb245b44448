// =============================================================================
// CPS Tax-Unit Builder - State Targeting Module
// =============================================================================
//
// This module scales selected income streams of the emitted tax units so that
// their weighted state totals match published state aggregates.
//
// TARGETS TABLE (CSV or XLSX, first sheet):
//
//   | STATE | A00200   | A00300 | A00600 | A00900 | A01700 | A02300 |
//   |-------|----------|--------|--------|--------|--------|--------|
//   | AL    | 71,262   | 1,024  | 2,156  | 3,118  | 9,870  | 301    |
//
//   Amounts are in thousands. Rows whose STATE is not a state postal code
//   (for example a national total row) are ignored.
//
// For each state and each targeted stream:
//   factor = target / (sum over the state's units of (head + spouse) * weight / 1000)
// The factor multiplies both the head and the spouse component, and the
// combined stream is recomputed as their sum.
//
// =============================================================================

package targets

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/cps-tax-units/internal/config"
	"github.com/ginjaninja78/cps-tax-units/internal/csvparser"
	"github.com/ginjaninja78/cps-tax-units/internal/microdata"
	"github.com/ginjaninja78/cps-tax-units/internal/taxunit"
)

// StateColumn holds the state postal code.
const StateColumn = "STATE"

// Stream is one targeted income stream.
type Stream struct {
	// Column is the aggregate column in the targets table.
	Column string

	// Name is a short label used in logs.
	Name string

	get func(in *microdata.Income) *float64
}

// Streams lists the targeted income streams in table order.
var Streams = []Stream{
	{"A00200", "wages", func(in *microdata.Income) *float64 { return &in.Wages }},
	{"A00300", "interest", func(in *microdata.Income) *float64 { return &in.Interest }},
	{"A00600", "dividends", func(in *microdata.Income) *float64 { return &in.Dividends }},
	{"A00900", "business", func(in *microdata.Income) *float64 { return &in.Business }},
	{"A01700", "pensions", func(in *microdata.Income) *float64 { return &in.Pensions }},
	{"A02300", "unemployment", func(in *microdata.Income) *float64 { return &in.Unemployment }},
}

// RequiredColumns lists the columns a targets table must carry.
func RequiredColumns() []string {
	cols := []string{StateColumn}
	for _, s := range Streams {
		cols = append(cols, s.Column)
	}
	return cols
}

// fips maps postal codes to state FIPS codes.
var fips = map[string]int{
	"AL": 1, "AK": 2, "AZ": 4, "AR": 5, "CA": 6, "CO": 8, "CT": 9, "DE": 10,
	"DC": 11, "FL": 12, "GA": 13, "HI": 15, "ID": 16, "IL": 17, "IN": 18,
	"IA": 19, "KS": 20, "KY": 21, "LA": 22, "ME": 23, "MD": 24, "MA": 25,
	"MI": 26, "MN": 27, "MS": 28, "MO": 29, "MT": 30, "NE": 31, "NV": 32,
	"NH": 33, "NJ": 34, "NM": 35, "NY": 36, "NC": 37, "ND": 38, "OH": 39,
	"OK": 40, "OR": 41, "PA": 42, "RI": 44, "SC": 45, "SD": 46, "TN": 47,
	"TX": 48, "UT": 49, "VT": 50, "VA": 51, "WA": 53, "WV": 54, "WI": 55,
	"WY": 56,
}

// FIPS returns the FIPS code of a state postal code.
func FIPS(postal string) (int, bool) {
	code, ok := fips[strings.ToUpper(strings.TrimSpace(postal))]
	return code, ok
}

// =============================================================================
// TABLE LOADING
// =============================================================================

// Table holds the targets per state FIPS code, in thousands, one value per
// entry of Streams.
type Table map[int][]float64

// Load reads a targets table from a CSV or XLSX file, chosen by extension.
func Load(path string, settings config.CSVSettings) (Table, error) {
	headers, rows, err := readRows(path, settings)
	if err != nil {
		return nil, err
	}
	if missing := csvparser.MissingColumns(headers, RequiredColumns()); len(missing) > 0 {
		return nil, fmt.Errorf("targets file %s is missing columns: %s", path, strings.Join(missing, ", "))
	}

	table := make(Table)
	for i, row := range rows {
		state, ok := FIPS(row[StateColumn])
		if !ok {
			continue
		}
		values := make([]float64, len(Streams))
		for j, s := range Streams {
			v, err := parseAmount(row[s.Column])
			if err != nil {
				return nil, fmt.Errorf("targets row %d, column %s: %w", i+2, s.Column, err)
			}
			values[j] = v
		}
		table[state] = values
	}

	if len(table) == 0 {
		return nil, fmt.Errorf("targets file %s has no state rows", path)
	}
	return table, nil
}

// ReadHeaders returns the header row of a CSV or XLSX targets file.
func ReadHeaders(path string, settings config.CSVSettings) ([]string, error) {
	if !isXLSX(path) {
		return csvparser.ReadHeaders(path, settings)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open targets workbook: %w", err)
	}
	defer f.Close()

	rows, err := firstSheetRows(f)
	if err != nil {
		return nil, err
	}
	return trimCells(rows[0]), nil
}

func readRows(path string, settings config.CSVSettings) ([]string, []map[string]string, error) {
	if !isXLSX(path) {
		data, err := csvparser.Parse(path, settings)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read targets file: %w", err)
		}
		return data.Headers, data.Rows, nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open targets workbook: %w", err)
	}
	defer f.Close()

	rows, err := firstSheetRows(f)
	if err != nil {
		return nil, nil, err
	}

	headers := trimCells(rows[0])
	var out []map[string]string
	for _, row := range rows[1:] {
		m := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(row) {
				m[h] = strings.TrimSpace(row[i])
			}
		}
		out = append(out, m)
	}
	return headers, out, nil
}

func firstSheetRows(f *excelize.File) ([][]string, error) {
	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("targets workbook has no sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("targets sheet %q is empty", sheetName)
	}
	return rows, nil
}

func isXLSX(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}

func trimCells(row []string) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

// parseAmount accepts thousands separators.
func parseAmount(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// =============================================================================
// APPLYING TARGETS
// =============================================================================

// Factors holds the scaling factor per state and stream.
type Factors map[int][]float64

// Result reports what Apply did.
type Result struct {
	Factors Factors

	// Skipped lists targeted states with no weighted income in a stream;
	// those streams are left unscaled.
	Skipped []string
}

// Apply scales the records in place.
//
// PARAMETERS:
//   - records: The tax units to adjust.
//   - table: The loaded targets.
//
// RETURNS:
//   - The factors used and the state/stream pairs that were skipped.
func Apply(records []taxunit.Record, table Table) Result {
	sums := make(map[int][]float64, len(table))
	for i := range records {
		rec := &records[i]
		if _, ok := table[rec.State]; !ok {
			continue
		}
		s, ok := sums[rec.State]
		if !ok {
			s = make([]float64, len(Streams))
			sums[rec.State] = s
		}
		for j, stream := range Streams {
			s[j] += (*stream.get(&rec.HeadIncome) + *stream.get(&rec.SpouseIncome)) * rec.Weight
		}
	}

	result := Result{Factors: make(Factors, len(table))}
	for state, targets := range table {
		factors := make([]float64, len(Streams))
		for j, target := range targets {
			factors[j] = 1
			var sum float64
			if s, ok := sums[state]; ok {
				sum = s[j] / 1000
			}
			if sum == 0 || math.IsNaN(sum) {
				result.Skipped = append(result.Skipped, fmt.Sprintf("%d/%s", state, Streams[j].Name))
				continue
			}
			factors[j] = target / sum
		}
		result.Factors[state] = factors
	}
	sort.Strings(result.Skipped)

	for i := range records {
		rec := &records[i]
		factors, ok := result.Factors[rec.State]
		if !ok {
			continue
		}
		for j, stream := range Streams {
			head := stream.get(&rec.HeadIncome)
			spouse := stream.get(&rec.SpouseIncome)
			*head *= factors[j]
			*spouse *= factors[j]
			*stream.get(&rec.Income) = *head + *spouse
		}
		rec.TotalIncome = rec.Income.Total()
	}

	return result
}
