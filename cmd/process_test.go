package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ginjaninja78/cps-tax-units/internal/config"
	"github.com/ginjaninja78/cps-tax-units/internal/export"
	"github.com/ginjaninja78/cps-tax-units/internal/microdata"
	"github.com/ginjaninja78/cps-tax-units/internal/validation"
)

func writePersons(t *testing.T, dir string, year int, rows []map[string]string) string {
	t.Helper()
	headers := microdata.RequiredColumns(year)

	var b strings.Builder
	b.WriteString(strings.Join(headers, ",") + "\n")
	for _, row := range rows {
		cells := make([]string, len(headers))
		for i, h := range headers {
			if v, ok := row[h]; ok {
				cells[i] = v
			} else {
				cells[i] = "0"
			}
		}
		b.WriteString(strings.Join(cells, ",") + "\n")
	}

	path := filepath.Join(dir, fmt.Sprintf("cps_%d.csv", year))
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}

var couple = []map[string]string{
	{"h_seq": "1", "a_lineno": "1", "a_spouse": "2", "a_maritl": "1", "a_exprrp": "1", "h_type": "1", "h_numper": "2", "ffpos": "1", "a_age": "40", "wsal_val": "30000", "fsup_wgt": "1000"},
	{"h_seq": "1", "a_lineno": "2", "a_spouse": "1", "a_maritl": "1", "a_exprrp": "3", "h_type": "1", "h_numper": "2", "ffpos": "1", "a_age": "38", "wsal_val": "20000", "fsup_wgt": "1000"},
	{"h_seq": "2", "a_lineno": "1", "h_type": "6", "h_numper": "1", "a_age": "30", "wsal_val": "500", "a_maritl": "7", "fsup_wgt": "600"},
}

func processConfig(t *testing.T) *config.MainConfig {
	t.Helper()
	dir := t.TempDir()
	out := filepath.Join(dir, "out")

	cfg, err := config.Parse([]byte(`
inputs:
  - year: 2014
    path: ` + writePersons(t, dir, 2014, couple) + `
  - year: 2015
    path: ` + writePersons(t, dir, 2015, couple) + `
output_dir: ` + out + `
output:
  formats: [csv, xlsx]
  compress: true
sqlite_path: ` + filepath.Join(out, "units.db") + `
metrics_file: ` + filepath.Join(out, "metrics.prom") + `
assemble: true
workers: 2
`))
	require.NoError(t, err)
	return cfg
}

func TestRunProcess_Assembled(t *testing.T) {
	cfg := processConfig(t)
	var out bytes.Buffer

	summary, err := runProcess(context.Background(), cfg, processOptions{}, zap.NewNop(), &out)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.TotalYears)
	assert.Equal(t, 2, summary.SuccessfulYears)
	assert.Equal(t, 6, summary.TotalPersons)
	assert.Equal(t, 4, summary.TotalUnits)
	assert.Contains(t, out.String(), "Tax units:       4")

	csvPath := filepath.Join(cfg.OutputDir, "cps_taxunits_all.csv.gz")
	xlsxPath := filepath.Join(cfg.OutputDir, "cps_taxunits_all.xlsx")
	assert.Equal(t, []string{csvPath, xlsxPath}, summary.OutputFiles)
	assert.FileExists(t, csvPath)
	assert.FileExists(t, xlsxPath)
	assert.FileExists(t, cfg.MetricsFile)

	store, err := export.OpenStore(cfg.SQLitePath)
	require.NoError(t, err)
	defer store.Close()
	n, err := store.Count(context.Background(), summary.RunID+"-all")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	// Weights are halved across the two years.
	payload, err := store.Load(context.Background(), summary.RunID+"-all", 1)
	require.NoError(t, err)
	assert.Equal(t, 500.0, payload["s006"])
	assert.Equal(t, 1.0, payload["cpsseq"])
	assert.Equal(t, 2013.0, payload["year"])

	metricsText, err := os.ReadFile(cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metricsText), "cps_taxunits_units_emitted_total")
}

func TestRunProcess_PerYear(t *testing.T) {
	cfg := processConfig(t)
	cfg.Assemble = false
	cfg.Output.Formats = []string{"csv"}
	cfg.Output.Compress = false
	cfg.SQLitePath = ""

	summary, err := runProcess(context.Background(), cfg, processOptions{Year: 2015, Workers: 1}, zap.NewNop(), &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TotalYears)
	assert.Equal(t, 2, summary.TotalUnits)
	assert.Equal(t, []string{filepath.Join(cfg.OutputDir, "cps_taxunits_2014.csv")}, summary.OutputFiles)
}

func TestRunProcess_DryRun(t *testing.T) {
	cfg := processConfig(t)

	summary, err := runProcess(context.Background(), cfg, processOptions{DryRun: true}, zap.NewNop(), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 4, summary.TotalUnits)
	assert.Empty(t, summary.OutputFiles)
	assert.NoDirExists(t, cfg.OutputDir)
}

func TestRunProcess_MissingInput(t *testing.T) {
	cfg := processConfig(t)
	cfg.Inputs[1].Path = filepath.Join(t.TempDir(), "missing.csv")

	summary, err := runProcess(context.Background(), cfg, processOptions{}, zap.NewNop(), &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, validation.IsMissingInput(err))
	assert.Zero(t, summary.TotalYears)
	assert.NoDirExists(t, cfg.OutputDir)
}

func TestRunProcess_UnknownYear(t *testing.T) {
	cfg := processConfig(t)
	_, err := runProcess(context.Background(), cfg, processOptions{Year: 1999}, zap.NewNop(), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1999")
}

func TestRunValidate(t *testing.T) {
	cfg := processConfig(t)
	var out bytes.Buffer
	require.NoError(t, runValidate(cfg, zap.NewNop(), &out))
	assert.Contains(t, out.String(), "✓ 2015")

	cfg.Inputs[0].Path = filepath.Join(t.TempDir(), "missing.csv")
	err := runValidate(cfg, zap.NewNop(), &out)
	require.Error(t, err)
	assert.True(t, validation.IsMissingInput(err))
}
