package taxunit

import (
	"github.com/ginjaninja78/cps-tax-units/internal/microdata"
)

// Tenure code for an owner-occupied home.
const tenureOwned = 1

// spouseSlot is the benefit slot reserved for the spouse.
const spouseSlot = 2

// Construct builds a unit headed by the person at headIndex and appends it to
// the builder's household units.
//
// PARAMETERS:
//   - h: The household; its persons are flagged in place.
//   - headIndex: Index of the head in h.Persons.
//   - solo: When true (group quarters) no spouse is folded and no dependents
//     are searched.
//
// RETURNS:
//   - The new unit, marked surviving.
//
// Writes: IsHead on the head, IsSpouse on a folded spouse, IsDependent on
// every attached dependent.
//
// The filing status starts from the head's marital code. A married head
// with no spouse pointer files jointly without a spouse. A married head whose
// spouse pointer is not returned by the spouse's own pointer is treated as
// single.
func (b *Builder) Construct(h *microdata.Household, headIndex int, solo bool) *Unit {
	first := len(b.units) == 0
	head := &h.Persons[headIndex]

	u := &Unit{
		Year:             b.year,
		Head:             headIndex,
		Spouse:           -1,
		HeadIncome:       head.Income,
		Income:           head.Income,
		AGIHead:          head.AGI,
		AGI:              head.AGI,
		Status:           Single,
		MaritalJoint:     head.Marital >= 1 && head.Marital <= 3,
		RelCode:          head.RelCode,
		FamilyType:       head.FamilyType,
		FamilyID:         head.FamilyID,
		AgeHead:          head.Age,
		IsDependent:      head.IsDependent,
		HeadWasDependent: head.IsDependent,
		Weight:           head.Weight,
		HouseholdID:      head.HouseholdID,
		PersonSeq:        head.PersonSeq,
		State:            head.State,
		Region:           head.Region,
		LineNo:           head.LineNo,
		BlindHead:        head.Blind == 1,
		Owner:            first && head.Tenure == tenureOwned,
		HealthHead:       head.Health,
		Eval: Evaluation{
			HouseholdIncome:  head.HouseholdIncome,
			WorkersComp:      head.WorkersComp,
			SocialSecurity:   head.Income.SocialSecurity,
			SSI:              head.SSI,
			PublicAssistance: head.PublicAssistance,
			Veterans:         head.Veterans,
			WagesHead:        head.Income.Wages,
		},
	}
	head.IsHead = true

	if head.Age >= b.thresholds.ElderlyAge {
		u.Elderly++
	}
	ClassifyAge(&u.Ages, head.Age, false)
	u.attachBenefits(1, head.Benefits)

	if u.MaritalJoint && head.SpouseLine == 0 {
		u.Status = Joint
	}
	if !solo && u.MaritalJoint && head.SpouseLine != 0 {
		if si := findSpouse(h, headIndex); si >= 0 {
			b.foldSpouse(u, h, si)
		} else {
			b.stats.SpouseMisses++
		}
	}
	if !u.HasSpouse() {
		u.Benefits.Set(spouseSlot, microdata.Benefits{})
	}
	u.NextBenefitSlot = spouseSlot + 1

	if !solo {
		for i := range h.Persons {
			p := &h.Persons[i]
			if i == headIndex || p.FamilyID != u.FamilyID {
				continue
			}
			if p.IsHead || p.IsSpouse || p.IsDependent {
				continue
			}
			if IsDependent(p, u, b.thresholds) {
				AttachDependent(p, u, i)
			}
		}
	}

	u.Survives = true
	b.units = append(b.units, u)
	return u
}

// findSpouse returns the index of the member whose line number is the head's
// spouse pointer and whose own spouse pointer is the head's line number, or
// -1 when no such member exists.
func findSpouse(h *microdata.Household, headIndex int) int {
	head := &h.Persons[headIndex]
	for i := range h.Persons {
		p := &h.Persons[i]
		if i != headIndex && p.LineNo == head.SpouseLine && p.SpouseLine == head.LineNo {
			return i
		}
	}
	return -1
}

// foldSpouse adds the spouse at index si to u.
func (b *Builder) foldSpouse(u *Unit, h *microdata.Household, si int) {
	sp := &h.Persons[si]
	sp.IsSpouse = true

	u.Spouse = si
	u.Status = Joint
	u.AgeSpouse = sp.Age
	if sp.Age >= b.thresholds.ElderlyAge {
		u.Elderly++
	}
	ClassifyAge(&u.Ages, sp.Age, false)

	u.SpouseIncome = sp.Income
	u.Income = u.Income.Add(sp.Income)
	u.AGISpouse = sp.AGI
	u.AGI += sp.AGI

	u.Eval.WorkersComp += sp.WorkersComp
	u.Eval.SocialSecurity += sp.Income.SocialSecurity
	u.Eval.SSI += sp.SSI
	u.Eval.PublicAssistance += sp.PublicAssistance
	u.Eval.Veterans += sp.Veterans
	u.Eval.WagesSpouse = sp.Income.Wages

	u.BlindSpouse = sp.Blind == 1
	u.HealthSpouse = sp.Health
	u.attachBenefits(spouseSlot, sp.Benefits)
}
