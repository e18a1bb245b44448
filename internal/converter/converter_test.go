package converter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/ginjaninja78/cps-tax-units/internal/config"
	"github.com/ginjaninja78/cps-tax-units/internal/metrics"
	"github.com/ginjaninja78/cps-tax-units/internal/microdata"
	"github.com/ginjaninja78/cps-tax-units/internal/taxunit"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// writePersonTable writes a person table for the survey year. Cells not set
// in a row are written as 0.
func writePersonTable(t *testing.T, year int, rows []map[string]string) string {
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

	path := filepath.Join(t.TempDir(), "persons.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}

func testConfig() *config.MainConfig {
	return &config.MainConfig{
		Workers:     2,
		CSVSettings: config.CSVSettings{Delimiter: ","},
		Thresholds:  config.DefaultThresholds(),
	}
}

func TestRun(t *testing.T) {
	path := writePersonTable(t, 2014, []map[string]string{
		// The lone occupant comes first in the file but has the larger h_seq.
		{"h_seq": "20", "a_lineno": "1", "h_type": "6", "h_numper": "1", "a_age": "30", "wsal_val": "1000", "a_maritl": "7"},
		{"h_seq": "10", "a_lineno": "2", "a_spouse": "1", "a_maritl": "1", "a_exprrp": "3", "h_type": "1", "h_numper": "2", "ffpos": "1", "a_age": "38", "wsal_val": "20000"},
		{"h_seq": "10", "a_lineno": "1", "a_spouse": "2", "a_maritl": "1", "a_exprrp": "1", "h_type": "1", "h_numper": "2", "ffpos": "1", "a_age": "40", "wsal_val": "30000"},
	})

	input := config.InputFile{
		Year: 2014,
		Path: path,
		ColumnRules: []config.ColumnRule{{
			Column:  "wsal_val",
			Actions: []config.ColumnAction{{Type: "scale", Value: "0.5"}},
		}},
	}
	collector := metrics.New()

	result := New(input, testConfig(), zap.NewNop(), collector).Run(context.Background())

	require.NoError(t, result.Error)
	require.True(t, result.Success)
	assert.Equal(t, 3, result.Stats.RowsProcessed)
	assert.Equal(t, 2, result.Stats.Households)
	assert.Equal(t, 2, result.Stats.UnitsEmitted)
	assert.Zero(t, result.Stats.ValidationErrors)

	require.Len(t, result.Records, 2)
	joint := result.Records[0]
	assert.Equal(t, 10, joint.HouseholdID)
	assert.Equal(t, 2013, joint.Year)
	assert.Equal(t, taxunit.Joint, joint.Status)
	assert.Equal(t, 2, joint.Total)
	assert.Equal(t, 25000.0, joint.Income.Wages)

	lone := result.Records[1]
	assert.Equal(t, 20, lone.HouseholdID)
	assert.Equal(t, 1, lone.Total)
	assert.Equal(t, 500.0, lone.Income.Wages)
}

func TestRun_BadCell(t *testing.T) {
	path := writePersonTable(t, 2014, []map[string]string{
		{"h_seq": "1", "a_lineno": "1", "a_age": "forty"},
	})

	result := New(config.InputFile{Year: 2014, Path: path}, testConfig(), nil, nil).Run(context.Background())

	require.Error(t, result.Error)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error.Error(), "a_age")
}

func TestRun_MissingFile(t *testing.T) {
	input := config.InputFile{Year: 2014, Path: filepath.Join(t.TempDir(), "none.csv")}
	result := New(input, testConfig(), nil, nil).Run(context.Background())
	require.Error(t, result.Error)
}

// generatedHouseholds returns n family households of three persons each:
// a married couple and a child.
func generatedHouseholds(n int) []microdata.Household {
	households := make([]microdata.Household, n)
	for i := range households {
		base := microdata.Person{
			HouseholdID:   i + 1,
			FamilyID:      1,
			HouseholdType: 1,
			HouseholdSize: 3,
			FamilyType:    1,
			Weight:        1000,
		}
		head, spouse, child := base, base, base

		head.LineNo, head.SpouseLine, head.Marital, head.RelCode, head.Age = 1, 2, 1, 1, 30+i%40
		head.Income.Wages = float64(1000 * (i % 7))
		spouse.LineNo, spouse.SpouseLine, spouse.Marital, spouse.RelCode, spouse.Age = 2, 1, 1, 3, 28+i%30
		spouse.Income.Interest = float64(10 * i)
		child.LineNo, child.RelCode, child.Age = 3, 5, i%25
		child.Income.Wages = float64(300 * (i % 11))

		households[i] = microdata.Household{ID: i + 1, Persons: []microdata.Person{head, spouse, child}}
	}
	return households
}

func cloneAll(hs []microdata.Household) []microdata.Household {
	out := make([]microdata.Household, len(hs))
	for i := range hs {
		persons := make([]microdata.Person, len(hs[i].Persons))
		copy(persons, hs[i].Persons)
		out[i] = microdata.Household{ID: hs[i].ID, Persons: persons}
	}
	return out
}

func TestBuildHouseholds_OrderIndependentOfWorkers(t *testing.T) {
	households := generatedHouseholds(60)
	opts := Options{IncomeYear: 2014, Thresholds: config.DefaultThresholds()}

	opts.Workers = 1
	serial, serialStats, err := BuildHouseholds(context.Background(), cloneAll(households), opts)
	require.NoError(t, err)

	var observed atomic.Int64
	opts.Workers = 8
	opts.Observe = func(s taxunit.Stats, emitted int) { observed.Add(1) }
	parallel, parallelStats, err := BuildHouseholds(context.Background(), cloneAll(households), opts)
	require.NoError(t, err)

	assert.Equal(t, serial, parallel)
	assert.Equal(t, serialStats, parallelStats)
	assert.Equal(t, int64(60), observed.Load())
	assert.GreaterOrEqual(t, len(serial), 60)
}

func TestBuildHouseholds_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := BuildHouseholds(ctx, generatedHouseholds(10), Options{Workers: 2, Thresholds: config.DefaultThresholds()})
	require.ErrorIs(t, err, context.Canceled)
}
