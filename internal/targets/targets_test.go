package targets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/cps-tax-units/internal/config"
	"github.com/ginjaninja78/cps-tax-units/internal/microdata"
	"github.com/ginjaninja78/cps-tax-units/internal/taxunit"
)

const targetsCSV = `STATE,A00200,A00300,A00600,A00900,A01700,A02300,AGI_STUB
US,"9,999",1,1,1,1,1,0
AL,"1,000",10,0,0,0,0,0
AK,500,0,0,0,0,0,0
`

func TestLoad_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.csv")
	require.NoError(t, os.WriteFile(path, []byte(targetsCSV), 0644))

	table, err := Load(path, config.CSVSettings{})
	require.NoError(t, err)

	require.Len(t, table, 2, "the national row is ignored")
	assert.Equal(t, 1000.0, table[1][0])
	assert.Equal(t, 10.0, table[1][1])
	assert.Equal(t, 500.0, table[2][0])
}

func TestLoad_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"STATE", "A00200", "A00300", "A00600", "A00900", "A01700", "A02300"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"CA", 2500, 7, 0, 0, 0, 0}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	headers, err := ReadHeaders(path, config.CSVSettings{})
	require.NoError(t, err)
	assert.Equal(t, RequiredColumns(), headers)

	table, err := Load(path, config.CSVSettings{})
	require.NoError(t, err)
	assert.Equal(t, []float64{2500, 7, 0, 0, 0, 0}, table[6])
}

func TestLoad_MissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.csv")
	require.NoError(t, os.WriteFile(path, []byte("STATE,A00200\nAL,1\n"), 0644))

	_, err := Load(path, config.CSVSettings{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "A00300")
}

func TestApply(t *testing.T) {
	records := []taxunit.Record{
		{
			State:        1,
			Weight:       1000,
			HeadIncome:   microdata.Income{Wages: 300},
			SpouseIncome: microdata.Income{Wages: 200},
			Income:       microdata.Income{Wages: 500},
		},
		{
			State:      1,
			Weight:     1000,
			HeadIncome: microdata.Income{Wages: 500, Interest: 20},
			Income:     microdata.Income{Wages: 500, Interest: 20},
		},
		{
			State:      36,
			Weight:     1000,
			HeadIncome: microdata.Income{Wages: 100},
			Income:     microdata.Income{Wages: 100},
		},
	}
	table := Table{
		1: {2000, 10, 0, 0, 0, 0},
		2: {500, 0, 0, 0, 0, 0},
	}

	result := Apply(records, table)

	// Alabama: 1000 weighted thousand of wages against a 2000 target.
	assert.InDelta(t, 2.0, result.Factors[1][0], 1e-9)
	assert.InDelta(t, 0.5, result.Factors[1][1], 1e-9)

	assert.InDelta(t, 600, records[0].HeadIncome.Wages, 1e-9)
	assert.InDelta(t, 400, records[0].SpouseIncome.Wages, 1e-9)
	assert.InDelta(t, 1000, records[0].Income.Wages, 1e-9)
	assert.InDelta(t, 10, records[1].Income.Interest, 1e-9)
	assert.InDelta(t, 1010, records[1].TotalIncome, 1e-9)

	// New York is not targeted.
	assert.Equal(t, 100.0, records[2].Income.Wages)

	// Alaska has no units, and Alabama has no dividends to scale.
	assert.Contains(t, result.Skipped, "2/wages")
	assert.Contains(t, result.Skipped, "1/dividends")
	assert.Equal(t, 1.0, result.Factors[2][0])
}
