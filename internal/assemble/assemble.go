// =============================================================================
// CPS Tax-Unit Builder - Multi-Year Assembly
// =============================================================================
//
// This module combines the records of several survey years into one file:
//   1. Optionally turn a random share of nonfilers into filers, per year
//   2. Concatenate the years in configuration order
//   3. Divide every weight by the number of years, so the pooled file still
//      represents a single year's population
//   4. Number the records 1..N (cpsseq)
//
// =============================================================================

package assemble

import (
	"math/rand"

	"github.com/ginjaninja78/cps-tax-units/internal/config"
	"github.com/ginjaninja78/cps-tax-units/internal/taxunit"
)

// Year is the output of one converted survey year.
type Year struct {
	SurveyYear int
	Records    []taxunit.Record
}

// Result reports the assembled file.
type Result struct {
	Records []taxunit.Record

	// Adjusted counts nonfilers turned into filers, per survey year.
	Adjusted map[int]int
}

// Assemble concatenates the years.
//
// PARAMETERS:
//   - years: The converted years, in output order. Their record slices are
//     modified in place by the filer adjustment.
//   - adjust: Filer adjustment settings. Each year draws from its own
//     generator seeded with adjust.Seed.
//
// RETURNS:
//   - The assembled records and the adjustment counts.
func Assemble(years []Year, adjust config.AdjustSettings) Result {
	result := Result{Adjusted: make(map[int]int, len(years))}

	total := 0
	for _, y := range years {
		total += len(y.Records)
	}
	result.Records = make([]taxunit.Record, 0, total)

	for _, y := range years {
		if adjust.Enabled {
			rng := rand.New(rand.NewSource(adjust.Seed))
			result.Adjusted[y.SurveyYear] = AdjustFilers(y.Records, adjust, rng)
		}
		result.Records = append(result.Records, y.Records...)
	}

	if n := float64(len(years)); n > 1 {
		for i := range result.Records {
			result.Records[i].Weight /= n
		}
	}

	for i := range result.Records {
		result.Records[i].Seq = i + 1
	}

	return result
}

// AdjustFilers randomly marks nonfilers as filers.
//
// A nonfiler with positive wages becomes a filer with probability
// adjust.WageRate, one without with probability adjust.NoWageRate. Draws are
// taken first for every nonfiler with wages, in record order, then for every
// nonfiler without wages, so a given seed always selects the same records.
//
// RETURNS:
//   - The number of records changed.
func AdjustFilers(records []taxunit.Record, adjust config.AdjustSettings, rng *rand.Rand) int {
	var withWages, withoutWages []int
	for i := range records {
		if records[i].FilingRequired {
			continue
		}
		if records[i].Income.Wages > 0 {
			withWages = append(withWages, i)
		} else {
			withoutWages = append(withoutWages, i)
		}
	}

	changed := 0
	draw := func(indexes []int, rate float64) {
		for _, i := range indexes {
			if rng.Float64() <= rate {
				records[i].FilingRequired = true
				changed++
			}
		}
	}
	draw(withWages, adjust.WageRate)
	draw(withoutWages, adjust.NoWageRate)

	return changed
}
