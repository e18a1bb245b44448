package taxunit

import (
	"math"

	"github.com/ginjaninja78/cps-tax-units/internal/microdata"
)

// Reconcile folds low-income subfamily units, and units headed by a foster
// child, into the household's top-income unit.
//
// The top unit is the one with the greatest total income; on a tie the later
// unit wins. Nothing is folded when the top unit is itself a dependent or its
// income is not positive. A unit is folded when it is not the top unit, not a
// dependent, not joint, and either belongs to a subfamily type with income at
// or below the subfamily limit or has the fold relationship code.
//
// RETURNS:
//   - The number of units folded by this pass.
//
// Writes: on the head and spouse of each folded unit, IsDependent is set and
// IsHead/IsSpouse are cleared.
func (b *Builder) Reconcile(h *microdata.Household) int {
	if len(b.units) == 0 {
		return 0
	}

	highest := -math.MaxFloat64
	top := 0
	for i, u := range b.units {
		if inc := u.TotalIncome(); inc >= highest {
			highest = inc
			top = i
		}
	}

	dst := b.units[top]
	if dst.IsDependent || highest <= 0 {
		return 0
	}

	t := b.thresholds
	folds := 0
	for i, src := range b.units {
		if i == top || src.IsDependent || src.Status == Joint {
			continue
		}

		subfamily := t.IsSubfamilyType(src.FamilyType) && src.TotalIncome() <= t.SubfamilyMaxIncome
		if !subfamily && src.RelCode != t.FoldRelationship {
			continue
		}

		src.Survives = false
		demote(h, src)
		Merge(src, dst)
		folds++
	}

	b.stats.Folds += folds
	return folds
}

// demote turns the members heading src into dependents.
func demote(h *microdata.Household, src *Unit) {
	head := &h.Persons[src.Head]
	head.IsHead = false
	head.IsDependent = true
	if src.Status == Joint && src.HasSpouse() {
		sp := &h.Persons[src.Spouse]
		sp.IsSpouse = false
		sp.IsDependent = true
	}
}

// Merge moves the state of src into dst and marks src as a dependent.
//
// The head of src, and its spouse when src is joint, take the next dependent
// slots of dst, followed by the dependents of src in their original order.
// Age and credit counters and benefit totals are added to dst and cleared on
// src. Every assigned benefit slot of src, from slot 1 up to its next free
// slot, is copied to the next free slot of dst, one slot at a time.
func Merge(src, dst *Unit) {
	src.IsDependent = true

	dst.Dependents = append(dst.Dependents, DependentSlot{Index: src.Head, Age: src.AgeHead})
	if src.Status == Joint && src.HasSpouse() {
		dst.Dependents = append(dst.Dependents, DependentSlot{Index: src.Spouse, Age: src.AgeSpouse})
	}
	dst.Dependents = append(dst.Dependents, src.Dependents...)
	src.Dependents = nil

	dst.Ages.add(src.Ages)
	src.Ages = AgeCounters{}

	for k := range src.BenefitTotals {
		dst.BenefitTotals[k] += src.BenefitTotals[k]
		src.BenefitTotals[k] = 0
	}

	for pos := 1; pos < src.NextBenefitSlot; pos++ {
		dst.Benefits.Set(dst.NextBenefitSlot, src.Benefits.Row(pos))
		dst.NextBenefitSlot++
	}
	src.Benefits = BenefitSlots{}
	src.NextBenefitSlot = 1
}
