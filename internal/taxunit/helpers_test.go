package taxunit

import (
	"github.com/ginjaninja78/cps-tax-units/internal/config"
	"github.com/ginjaninja78/cps-tax-units/internal/microdata"
)

const testIncomeYear = 2014

// member returns an unmarried adult in household 1, family 1, of a
// family-type household.
func member(line int, opts ...func(*microdata.Person)) microdata.Person {
	p := microdata.Person{
		HouseholdID:   1,
		FamilyID:      1,
		PersonSeq:     line,
		LineNo:        line,
		RelCode:       1,
		Marital:       7,
		Age:           40,
		HouseholdType: 1,
		FamilyType:    1,
		Weight:        1500,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func withAge(age int) func(*microdata.Person) {
	return func(p *microdata.Person) { p.Age = age }
}

func withWages(w float64) func(*microdata.Person) {
	return func(p *microdata.Person) { p.Income.Wages = w }
}

func withRel(code int) func(*microdata.Person) {
	return func(p *microdata.Person) { p.RelCode = code }
}

func withFamily(id, ftype int) func(*microdata.Person) {
	return func(p *microdata.Person) {
		p.FamilyID = id
		p.FamilyType = ftype
	}
}

func marriedTo(line int) func(*microdata.Person) {
	return func(p *microdata.Person) {
		p.Marital = 1
		p.SpouseLine = line
	}
}

func withBenefit(kind microdata.BenefitKind, prob, value float64) func(*microdata.Person) {
	return func(p *microdata.Person) {
		p.Benefits[kind] = microdata.BenefitPair{Prob: prob, Value: value}
	}
}

func household(persons ...microdata.Person) *microdata.Household {
	for i := range persons {
		persons[i].HouseholdSize = len(persons)
	}
	return &microdata.Household{ID: 1, Persons: persons}
}

func newTestBuilder() *Builder {
	return NewBuilder(testIncomeYear, config.DefaultThresholds())
}
