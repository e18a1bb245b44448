package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/cps-tax-units/internal/microdata"
	"github.com/ginjaninja78/cps-tax-units/internal/taxunit"
)

func sampleRecords() []taxunit.Record {
	var b microdata.Benefits
	b[microdata.MCAID] = microdata.BenefitPair{Prob: 0.5, Value: 1200}

	joint := taxunit.Record{
		Year:        2014,
		Seq:         1,
		Status:      taxunit.Joint,
		Income:      microdata.Income{Wages: 25000},
		HeadIncome:  microdata.Income{Wages: 20000},
		Weight:      1500.5,
		HouseholdID: 7,
		LineNo:      1,
		Total:       3,
		Dependents:  1,
	}
	joint.DependentSlots = []taxunit.DependentEntry{{LineNo: 3, Age: 9}}
	joint.Benefits.Set(1, b)
	joint.BenefitTotals[microdata.MCAID] = 1200

	single := taxunit.Record{
		Year:           2014,
		Seq:            2,
		Status:         taxunit.Single,
		Weight:         800,
		HouseholdID:    8,
		LineNo:         1,
		Total:          1,
		FilingRequired: true,
	}
	return []taxunit.Record{joint, single}
}

func index(t *testing.T, header []string, name string) int {
	t.Helper()
	for i, h := range header {
		if h == name {
			return i
		}
	}
	t.Fatalf("column %q not found", name)
	return -1
}

func TestColumns(t *testing.T) {
	header := Header(Columns(3))

	assert.Equal(t, "year", header[0])
	assert.Equal(t, "cpsseq", header[1])
	assert.Contains(t, header, "s006")
	assert.Contains(t, header, "medicaid_ben")
	assert.Contains(t, header, "MEDICAID_PROB3")
	assert.Contains(t, header, "MEDICARE_VAL1")
	assert.Contains(t, header, "SNAP_VAL2")
	assert.NotContains(t, header, "WT")
	assert.NotContains(t, header, "MCAID_PROB1")
	assert.NotContains(t, header, "SNAP_VAL4")
	assert.Contains(t, header, "depline1")
	assert.Contains(t, header, "depage1")
	assert.NotContains(t, header, "depage2")

	seen := make(map[string]bool, len(header))
	for _, h := range header {
		assert.False(t, seen[h], "duplicate column %s", h)
		seen[h] = true
	}
}

func TestExportName(t *testing.T) {
	assert.Equal(t, "MEDICAID", ExportName(microdata.MCAID))
	assert.Equal(t, "MEDICARE", ExportName(microdata.MCARE))
	assert.Equal(t, "SSI", ExportName(microdata.SSI))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "3", FormatValue(3))
	assert.Equal(t, "1500.5", FormatValue(1500.5))
	assert.Equal(t, "25000", FormatValue(25000.0))
	assert.Equal(t, "x", FormatValue("x"))
}

func readCSV(t *testing.T, path string, compressed bool) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var r *csv.Reader
	if compressed {
		zr, err := gzip.NewReader(bufio.NewReader(f))
		require.NoError(t, err)
		defer zr.Close()
		r = csv.NewReader(zr)
	} else {
		r = csv.NewReader(f)
	}
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteCSV(t *testing.T) {
	for _, compressed := range []bool{false, true} {
		path := filepath.Join(t.TempDir(), "units.csv")
		require.NoError(t, WriteCSV(path, sampleRecords(), 2, compressed))

		rows := readCSV(t, path, compressed)
		require.Len(t, rows, 3)
		header := rows[0]

		assert.Equal(t, "25000", rows[1][index(t, header, "was")])
		assert.Equal(t, "20000", rows[1][index(t, header, "wasp")])
		assert.Equal(t, "1500.5", rows[1][index(t, header, "s006")])
		assert.Equal(t, "2", rows[1][index(t, header, "js")])
		assert.Equal(t, "0.5", rows[1][index(t, header, "MEDICAID_PROB1")])
		assert.Equal(t, "1200", rows[1][index(t, header, "MEDICAID_VAL1")])
		assert.Equal(t, "0", rows[1][index(t, header, "MEDICAID_VAL2")])
		assert.Equal(t, "1200", rows[1][index(t, header, "medicaid_ben")])
		assert.Equal(t, "0", rows[1][index(t, header, "filst")])
		assert.Equal(t, "1", rows[2][index(t, header, "filst")])
		assert.Equal(t, "2", rows[2][index(t, header, "cpsseq")])
		assert.Equal(t, "3", rows[1][index(t, header, "depline1")])
		assert.Equal(t, "9", rows[1][index(t, header, "depage1")])
		assert.Equal(t, "0", rows[2][index(t, header, "depage1")])
	}
}

func TestWriteCSV_BadPath(t *testing.T) {
	err := WriteCSV(filepath.Join(t.TempDir(), "missing", "units.csv"), nil, 1, false)
	require.Error(t, err)
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "units.xlsx")
	require.NoError(t, WriteXLSX(path, sampleRecords(), 2))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, sheetName, f.GetSheetName(0))
	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	header := rows[0]
	assert.Equal(t, Header(Columns(2)), header)
	assert.Equal(t, "7", rows[1][index(t, header, "xhid")])
	assert.Equal(t, "8", rows[2][index(t, header, "xhid")])
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	store, err := OpenStore(filepath.Join(t.TempDir(), "db", "units.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.WriteRun(ctx, "run-1", sampleRecords(), 2))

	n, err := store.Count(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.Count(ctx, "run-2")
	require.NoError(t, err)
	assert.Zero(t, n)

	payload, err := store.Load(ctx, "run-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 25000.0, payload["was"])
	assert.Equal(t, 7.0, payload["xhid"])
	assert.Equal(t, 1200.0, payload["MEDICAID_VAL1"])

	_, err = store.Load(ctx, "run-1", 3)
	require.Error(t, err)

	// A run id is written once.
	require.Error(t, store.WriteRun(ctx, "run-1", sampleRecords(), 2))
	n, err = store.Count(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
