package taxunit

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/cps-tax-units/internal/config"
	"github.com/ginjaninja78/cps-tax-units/internal/microdata"
)

// =============================================================================
// SCENARIOS
// =============================================================================

func TestBuildHousehold_LoneOccupant(t *testing.T) {
	h := household(member(1, withWages(20000), func(p *microdata.Person) {
		p.HouseholdType = microdata.HouseholdTypeNonFamilyFemale
	}))

	b := newTestBuilder()
	records := b.BuildHousehold(h)

	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, 1, rec.Total)
	assert.Equal(t, Single, rec.Status)
	assert.Equal(t, testIncomeYear, rec.Year)
	assert.False(t, rec.CountsReset)
	assert.True(t, h.Persons[0].IsHead)
	assert.True(t, h.Persons[0].InUnit)
}

func TestBuildHousehold_MarriedCouple(t *testing.T) {
	h := household(
		member(1, marriedTo(2), withWages(30000)),
		member(2, marriedTo(1), withRel(3), withWages(20000)),
	)

	b := newTestBuilder()
	records := b.BuildHousehold(h)

	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, Joint, rec.Status)
	assert.Equal(t, 2, rec.Total)
	assert.Equal(t, 50000.0, rec.Income.Wages)
	assert.Equal(t, 30000.0, rec.HeadIncome.Wages)
	assert.Equal(t, 20000.0, rec.SpouseIncome.Wages)
	assert.True(t, rec.HasSpouse)
	assert.True(t, h.Persons[1].IsSpouse)
	assert.Equal(t, 1, b.Stats().Units)
}

func TestBuildHousehold_OneSidedSpousePointer(t *testing.T) {
	h := household(
		member(1, marriedTo(2), withWages(30000)),
		member(2, withRel(10), withWages(20000)),
	)

	b := newTestBuilder()
	records := b.BuildHousehold(h)

	require.Len(t, records, 2)
	assert.Equal(t, Single, records[0].Status)
	assert.False(t, records[0].HasSpouse)
	assert.False(t, h.Persons[1].IsSpouse)
	assert.Equal(t, 1, b.Stats().SpouseMisses)
}

func TestBuildHousehold_MarriedWithoutSpousePointer(t *testing.T) {
	absentSpouse := func(p *microdata.Person) { p.Marital = 3 }
	h := household(
		member(1, withWages(40000)),
		member(2, withFamily(2, 1), withRel(10), absentSpouse, withWages(2000)),
	)

	b := newTestBuilder()
	records := b.BuildHousehold(h)

	require.Len(t, records, 2, "a joint unit is never folded")
	assert.Zero(t, b.Stats().Folds)
	assert.Zero(t, b.Stats().SpouseMisses)

	rec := records[1]
	assert.Equal(t, Joint, rec.Status)
	assert.False(t, rec.HasSpouse)
	assert.Equal(t, 1, rec.Total)
	assert.False(t, rec.CountsReset)
	assert.Equal(t, microdata.BenefitPair{}, rec.Benefits.Pair(microdata.SNAP, 2))
}

func TestBuildHousehold_DependentAlsoSpouse(t *testing.T) {
	h := household(
		member(1, withWages(50000)),
		member(2, withRel(5), withAge(17), marriedTo(3)),
		member(3, withRel(10), withAge(19), marriedTo(2), withWages(30000)),
	)

	records := newTestBuilder().BuildHousehold(h)

	require.Len(t, records, 2)
	assert.True(t, h.Persons[1].IsDependent)
	assert.True(t, h.Persons[1].IsSpouse)

	assert.Equal(t, []DependentEntry{{LineNo: 2, Age: 17}}, records[0].DependentSlots)
	assert.Equal(t, 2, records[0].Total)

	assert.Equal(t, 3, records[1].LineNo)
	assert.Equal(t, Joint, records[1].Status)
	assert.True(t, records[1].HasSpouse)
	assert.Equal(t, 2, records[1].Total)
}

func TestBuildHousehold_ChildDependent(t *testing.T) {
	h := household(
		member(1, marriedTo(2)),
		member(2, marriedTo(1), withRel(3)),
		member(3, withRel(5), withAge(10)),
	)

	records := newTestBuilder().BuildHousehold(h)

	require.Len(t, records, 1)
	rec := records[0]
	assert.True(t, h.Persons[2].IsDependent)
	assert.Equal(t, 1, rec.Dependents)
	assert.Equal(t, 1, rec.Ages.NU13)
	assert.Equal(t, 1, rec.Ages.N24)
	assert.Equal(t, 1, rec.Ages.EIC)
	assert.Equal(t, 3, rec.Total)
	assert.Equal(t, 1, rec.Children)
	assert.Equal(t, 10, rec.Oldest)
	assert.Equal(t, 10, rec.Youngest)
	assert.Equal(t, []DependentEntry{{LineNo: 3, Age: 10}}, rec.DependentSlots)
}

func TestBuildHousehold_SubfamilyFold(t *testing.T) {
	h := household(
		member(1, withWages(40000)),
		member(2, withFamily(2, 1), withRel(10), withWages(500)),
		member(3, withFamily(3, 1), withRel(10), withAge(25)),
	)

	b := newTestBuilder()
	records := b.BuildHousehold(h)

	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, 1, rec.LineNo)
	assert.Equal(t, 2, rec.Dependents)
	assert.Equal(t, 3, rec.Total)
	assert.Equal(t, 2, b.Stats().Folds)
	assert.Equal(t, 3, b.Stats().Units)

	units := b.Units()
	if diff := cmp.Diff([]DependentSlot{{Index: 1, Age: 40}, {Index: 2, Age: 25}}, units[0].Dependents); diff != "" {
		t.Errorf("dependent slots mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, units[1].Survives)
	assert.False(t, units[2].Survives)
	assert.True(t, h.Persons[1].IsDependent)
	assert.False(t, h.Persons[1].IsHead)
}

func TestBuildHousehold_MustFileDependent(t *testing.T) {
	h := household(
		member(1, withAge(45), withWages(60000)),
		member(2, withRel(5), withAge(17), withWages(5000)),
	)

	b := newTestBuilder()
	records := b.BuildHousehold(h)

	require.Len(t, records, 2)

	parent, child := records[0], records[1]
	assert.Equal(t, 1, parent.Dependents)
	assert.False(t, parent.IsDependent)
	assert.Zero(t, parent.DependentIncome, "a dependent heading their own unit is not counted twice")

	assert.Equal(t, 2, child.LineNo)
	assert.True(t, child.IsDependent)
	assert.True(t, child.HeadWasDependent)
	assert.True(t, child.FilingRequired)
	assert.Equal(t, 1, child.Total)

	assert.True(t, h.Persons[1].IsDependent)
	assert.True(t, h.Persons[1].IsHead)
	assert.Equal(t, 1, b.Stats().MustFileUnits)
}

func TestBuildHousehold_GroupQuarters(t *testing.T) {
	gq := func(p *microdata.Person) { p.HouseholdType = microdata.HouseholdTypeGroupQuarters }
	h := household(
		member(1, gq, marriedTo(2), withWages(1000)),
		member(2, gq, marriedTo(1), withWages(1000)),
		member(3, gq, withRel(5), withAge(8)),
	)

	records := newTestBuilder().BuildHousehold(h)

	require.Len(t, records, 3)
	for _, rec := range records {
		assert.Equal(t, Single, rec.Status)
		assert.Zero(t, rec.Dependents)
		assert.Equal(t, 1, rec.Total)
	}
}

func TestBuildHousehold_TieGoesToLaterUnit(t *testing.T) {
	h := household(
		member(1, withFamily(1, 1), withWages(2000)),
		member(2, withFamily(2, 1), withRel(10), withWages(2000)),
	)

	b := newTestBuilder()
	records := b.BuildHousehold(h)

	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].LineNo)
	assert.Equal(t, 1, records[0].Dependents)
}

func TestBuildHousehold_JointUnitsAreNotFolded(t *testing.T) {
	h := household(
		member(1, withWages(80000)),
		member(2, withFamily(2, 1), withRel(10), marriedTo(3), withWages(1000)),
		member(3, withFamily(2, 1), withRel(10), marriedTo(2)),
	)

	records := newTestBuilder().BuildHousehold(h)

	require.Len(t, records, 2)
	assert.Equal(t, Joint, records[1].Status)
}

func TestBuildHousehold_HeadOfHousehold(t *testing.T) {
	h := household(
		member(1, withWages(50000)),
		member(2, withRel(5), withAge(6)),
	)

	records := newTestBuilder().BuildHousehold(h)

	require.Len(t, records, 1)
	assert.Equal(t, HeadOfHousehold, records[0].Status)
	assert.True(t, records[0].FilingRequired)
}

// =============================================================================
// PROPERTIES
// =============================================================================

func propertyHousehold() *microdata.Household {
	return household(
		member(1, marriedTo(2), withWages(70000), withBenefit(microdata.SS, 0.2, 100)),
		member(2, marriedTo(1), withRel(3), withWages(10000)),
		member(3, withRel(5), withAge(16), withWages(4000)),
		member(4, withRel(5), withAge(3), withBenefit(microdata.WIC, 1, 300)),
		member(5, withFamily(2, 3), withRel(10), withAge(30), withWages(1500)),
		member(6, withFamily(2, 3), withRel(10), withAge(5)),
		member(7, withRel(8), withAge(72)),
	)
}

func TestProperty_PartitionComplete(t *testing.T) {
	h := propertyHousehold()
	newTestBuilder().BuildHousehold(h)

	for i, p := range h.Persons {
		assert.True(t, p.IsHead || p.IsSpouse || p.IsDependent, "person %d has no role", i)
		assert.True(t, p.InUnit, "person %d is not in a surviving unit", i)
		assert.True(t, p.Visited, "person %d was not visited", i)
	}
}

func TestProperty_FlagExclusivity(t *testing.T) {
	h := propertyHousehold()
	b := newTestBuilder()
	b.BuildHousehold(h)

	heads := map[int]int{}
	dependents := map[int]int{}
	for _, u := range b.Units() {
		if !u.Survives {
			continue
		}
		heads[u.Head]++
		for _, d := range u.Dependents {
			dependents[d.Index]++
		}
	}

	for idx, n := range dependents {
		assert.Equal(t, 1, n, "person %d is a dependent of %d units", idx, n)
		if heads[idx] > 0 {
			assert.True(t, MustFile(&h.Persons[idx], config.DefaultThresholds()), "person %d heads a unit and is claimed without having to file", idx)
		}
	}
	for idx, n := range heads {
		assert.Equal(t, 1, n, "person %d heads %d units", idx, n)
	}
}

func TestProperty_CountInvariant(t *testing.T) {
	h := propertyHousehold()
	b := newTestBuilder()
	records := b.BuildHousehold(h)

	require.NotEmpty(t, records)
	for _, rec := range records {
		filers := 1
		if rec.HasSpouse {
			filers = 2
		}
		assert.Equal(t, filers+rec.Dependents, rec.Total)
		assert.Equal(t, rec.Total, rec.Ages.Members())
	}
}
