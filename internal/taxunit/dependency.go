package taxunit

import (
	"github.com/ginjaninja78/cps-tax-units/internal/config"
	"github.com/ginjaninja78/cps-tax-units/internal/microdata"
)

// childRelCode is the relationship code of the reference person's own child.
const childRelCode = 5

// Relation returns the generation offset of a person relative to a reference,
// both given as relationship-to-head codes. It returns
// microdata.UnknownGeneration when either code has no generation mapping.
func Relation(person, reference int) int {
	gp := microdata.GenerationOf(person)
	gr := microdata.GenerationOf(reference)
	if gp == microdata.UnknownGeneration || gr == microdata.UnknownGeneration {
		return microdata.UnknownGeneration
	}
	return gp - gr
}

// IsDependent reports whether p can be claimed by u.
//
// The relationship, marital and citizenship tests are taken as passed: the
// candidates are same-family members and the survey carries no citizenship
// field. The remaining two tests are:
//   - income: income at or below the limit, or a qualifying child (own child,
//     or one generation below the unit's head) aged at most 18, or at most
//     23 while enrolled in school
//   - support: income below half of unit income plus the person's income,
//     passing outright when that sum is zero or negative
//
// IsDependent has no side effects.
func IsDependent(p *microdata.Person, u *Unit, t config.Thresholds) bool {
	income := p.Income.Total()

	incomeTest := income <= t.DependentIncomeLimit
	if p.RelCode == childRelCode || Relation(p.RelCode, u.RelCode) == -1 {
		if p.Age <= t.QualifyingChildMaxAge || (p.Age <= t.StudentMaxAge && p.Enrolled > 0) {
			incomeTest = true
		}
	}

	supportTest := true
	if combined := u.TotalIncome() + income; combined > 0 {
		supportTest = income/combined < t.SupportShare
	}

	return incomeTest && supportTest
}

// AttachDependent records p, found at household index idx, as a dependent of
// u. It flags the person, appends the dependent slot, counts the age, and
// stores the person's benefits at the next benefit slot.
//
// Writes: p.IsDependent.
func AttachDependent(p *microdata.Person, u *Unit, idx int) {
	p.IsDependent = true
	u.Dependents = append(u.Dependents, DependentSlot{Index: idx, Age: p.Age})
	ClassifyAge(&u.Ages, p.Age, true)
	u.attachBenefits(u.NextBenefitSlot, p.Benefits)
	u.NextBenefitSlot++
}

// MustFile reports whether a dependent still has to file their own return.
func MustFile(p *microdata.Person, t config.Thresholds) bool {
	return p.Income.Wages > t.DependentFilerWages || p.Income.Total() > t.DependentFilerIncome
}
