// =============================================================================
// CPS Tax-Unit Builder - Household Driver
// =============================================================================
//
// This module turns one household into its tax units. The strategy depends on
// the household type:
//   1. Lone nonfamily occupant: one unit
//   2. Group quarters: one solo unit per person
//   3. Everything else: walk the members in line order, building a unit for
//      every member nobody has claimed yet, plus a one-person filing unit for
//      any claimed dependent who must file, and reconcile whenever more than
//      one unit exists
//
// Afterwards every unit is checked for head-of-household status and the
// surviving units are finalized into output records.
//
// Line order matters: a member claimed by an earlier unit is no longer a
// candidate head for a later one.
//
// =============================================================================

package taxunit

import (
	"github.com/ginjaninja78/cps-tax-units/internal/config"
	"github.com/ginjaninja78/cps-tax-units/internal/microdata"
)

// Stats counts what happened while building one household.
type Stats struct {
	// Units is the number of units constructed, surviving or not.
	Units int

	// MustFileUnits is the number of one-person units built for dependents
	// who must file.
	MustFileUnits int

	// Folds is the number of units merged into another unit.
	Folds int

	// SpouseMisses counts married heads whose spouse pointer was not mutual.
	SpouseMisses int

	// Resets counts records whose counters were rebuilt on output.
	Resets int

	// Filers counts emitted records required to file.
	Filers int
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Units += o.Units
	s.MustFileUnits += o.MustFileUnits
	s.Folds += o.Folds
	s.SpouseMisses += o.SpouseMisses
	s.Resets += o.Resets
	s.Filers += o.Filers
}

// Builder holds the per-household working state. A Builder is not safe for
// concurrent use; give every worker its own.
type Builder struct {
	year       int
	thresholds config.Thresholds
	units      []*Unit
	stats      Stats
}

// NewBuilder returns a builder for units of the given income year.
func NewBuilder(incomeYear int, thresholds config.Thresholds) *Builder {
	return &Builder{
		year:       incomeYear,
		thresholds: thresholds,
	}
}

// Units returns the units built for the current household, in construction
// order, including units that no longer survive.
func (b *Builder) Units() []*Unit {
	return b.units
}

// Stats returns the counters for the current household.
func (b *Builder) Stats() Stats {
	s := b.stats
	s.Units = len(b.units)
	return s
}

// Reset discards the units of the previous household.
func (b *Builder) Reset() {
	b.units = nil
	b.stats = Stats{}
}

// BuildHousehold builds, classifies and finalizes every unit of h.
//
// PARAMETERS:
//   - h: The household. Its persons must be sorted by line number; their
//     flags are written in place.
//
// RETURNS:
//   - One record per surviving unit, in construction order.
//
// Writes: Visited on every person walked by the family strategy, plus the
// flags documented on Construct, Reconcile and Finalize.
func (b *Builder) BuildHousehold(h *microdata.Household) []Record {
	b.Reset()
	if len(h.Persons) == 0 {
		return nil
	}

	switch {
	case h.IsLoneNonFamily():
		b.Construct(h, 0, false)

	case h.IsGroupQuarters():
		for i := range h.Persons {
			b.Construct(h, i, true)
		}

	default:
		for i := range h.Persons {
			p := &h.Persons[i]
			p.Visited = true

			if !p.IsHead && !p.IsSpouse && !p.IsDependent {
				b.Construct(h, i, false)
			}

			if !p.IsSpouse && p.IsDependent && MustFile(p, b.thresholds) {
				b.Construct(h, i, false)
				b.stats.MustFileUnits++
			}

			if len(b.units) > 1 {
				b.Reconcile(h)
			}
		}
	}

	for _, u := range b.units {
		ApplyHeadOfHousehold(u, b.units, b.thresholds)
	}

	var records []Record
	for _, u := range b.units {
		if !u.Survives {
			continue
		}
		rec := Finalize(u, h, b.thresholds)
		if rec.CountsReset {
			b.stats.Resets++
		}
		if rec.FilingRequired {
			b.stats.Filers++
		}
		records = append(records, rec)
	}

	return records
}
