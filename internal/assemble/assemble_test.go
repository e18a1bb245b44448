package assemble

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/cps-tax-units/internal/config"
	"github.com/ginjaninja78/cps-tax-units/internal/microdata"
	"github.com/ginjaninja78/cps-tax-units/internal/taxunit"
)

func records(n int, weight float64) []taxunit.Record {
	out := make([]taxunit.Record, n)
	for i := range out {
		out[i] = taxunit.Record{Weight: weight, HouseholdID: i + 1}
	}
	return out
}

func TestAssemble(t *testing.T) {
	years := []Year{
		{SurveyYear: 2013, Records: records(2, 300)},
		{SurveyYear: 2014, Records: records(1, 600)},
		{SurveyYear: 2015, Records: records(3, 900)},
	}

	result := Assemble(years, config.AdjustSettings{})

	require.Len(t, result.Records, 6)
	assert.Equal(t, 100.0, result.Records[0].Weight)
	assert.Equal(t, 200.0, result.Records[2].Weight)
	assert.Equal(t, 300.0, result.Records[5].Weight)
	for i, rec := range result.Records {
		assert.Equal(t, i+1, rec.Seq)
	}
	assert.Empty(t, result.Adjusted)
}

func TestAssemble_SingleYearKeepsWeights(t *testing.T) {
	result := Assemble([]Year{{SurveyYear: 2014, Records: records(2, 500)}}, config.AdjustSettings{})
	assert.Equal(t, 500.0, result.Records[1].Weight)
}

func TestAdjustFilers(t *testing.T) {
	recs := []taxunit.Record{
		{FilingRequired: true},
		{Income: microdata.Income{Wages: 100}},
		{},
		{Income: microdata.Income{Wages: 50}},
		{},
	}

	all := config.AdjustSettings{WageRate: 1, NoWageRate: 1}
	n := AdjustFilers(recs, all, rand.New(rand.NewSource(1)))
	assert.Equal(t, 4, n)
	for _, r := range recs {
		assert.True(t, r.FilingRequired)
	}

	recs = records(4, 1)
	none := config.AdjustSettings{WageRate: 0, NoWageRate: 0}
	assert.Zero(t, AdjustFilers(recs, none, rand.New(rand.NewSource(1))))
}

func TestAdjustFilers_Deterministic(t *testing.T) {
	settings := config.AdjustSettings{Enabled: true, Seed: 409, WageRate: 0.84, NoWageRate: 0.54}

	run := func() []bool {
		recs := records(200, 1)
		for i := range recs {
			if i%3 == 0 {
				recs[i].Income.Wages = 1000
			}
		}
		Assemble([]Year{{SurveyYear: 2014, Records: recs}}, settings)
		flags := make([]bool, len(recs))
		for i, r := range recs {
			flags[i] = r.FilingRequired
		}
		return flags
	}

	assert.Equal(t, run(), run())
}
