// =============================================================================
// CPS Tax-Unit Builder - Tax Unit Model
// =============================================================================
//
// A tax unit is one synthetic filer: a head, an optional spouse, and zero or
// more dependents. Members are referenced by their index in the household's
// person slice, never copied.
//
// POSITIONAL SLOTS:
//   - Dependents are an ordered slice; position i+1 is the exported slot i.
//   - Benefit slots are kept per program as an ordered slice of pairs.
//     Slot 1 is the head, slot 2 is reserved for the spouse even when there is
//     none, and dependents take slots from 3 onward.
//
// =============================================================================

package taxunit

import (
	"github.com/ginjaninja78/cps-tax-units/internal/microdata"
)

// =============================================================================
// FILING STATUS
// =============================================================================

// Status is the unit's filing status code.
type Status int

const (
	Single          Status = 1
	Joint           Status = 2
	HeadOfHousehold Status = 3
)

// String returns a readable status name.
func (s Status) String() string {
	switch s {
	case Single:
		return "single"
	case Joint:
		return "joint"
	case HeadOfHousehold:
		return "head_of_household"
	default:
		return "unknown"
	}
}

// =============================================================================
// SLOTS
// =============================================================================

// DependentSlot references one dependent by household index.
type DependentSlot struct {
	Index int
	Age   int
}

// BenefitSlots holds, for every benefit program, one (probability, value)
// pair per contributing person. All programs always have the same length.
type BenefitSlots struct {
	kinds [microdata.NumBenefitKinds][]microdata.BenefitPair
}

// Len returns the number of assigned slots.
func (s *BenefitSlots) Len() int {
	return len(s.kinds[0])
}

// Set stores one person's pairs at the 1-based position pos. Any gap before
// pos is filled with zero pairs so positions stay dense.
func (s *BenefitSlots) Set(pos int, b microdata.Benefits) {
	for k := range s.kinds {
		for len(s.kinds[k]) < pos {
			s.kinds[k] = append(s.kinds[k], microdata.BenefitPair{})
		}
		s.kinds[k][pos-1] = b[k]
	}
}

// Row returns every program's pair at the 1-based position pos.
func (s *BenefitSlots) Row(pos int) microdata.Benefits {
	var b microdata.Benefits
	if pos < 1 || pos > s.Len() {
		return b
	}
	for k := range s.kinds {
		b[k] = s.kinds[k][pos-1]
	}
	return b
}

// Pair returns one program's pair at the 1-based position pos, or a zero
// pair when the slot is unassigned.
func (s *BenefitSlots) Pair(kind microdata.BenefitKind, pos int) microdata.BenefitPair {
	if pos < 1 || pos > s.Len() {
		return microdata.BenefitPair{}
	}
	return s.kinds[kind][pos-1]
}

// Kind returns the ordered pairs of one program.
func (s *BenefitSlots) Kind(kind microdata.BenefitKind) []microdata.BenefitPair {
	return s.kinds[kind]
}

// =============================================================================
// TAX UNIT
// =============================================================================

// Evaluation holds the receipts carried through for comparison against
// survey totals.
type Evaluation struct {
	HouseholdIncome  float64 // zhhinc
	WorkersComp      float64 // zworkc
	SocialSecurity   float64 // zsocse
	SSI              float64 // zssinc
	PublicAssistance float64 // zpubas
	Veterans         float64 // zvetbe
	WagesHead        float64 // zwaspt
	WagesSpouse      float64 // zwassp
}

// Unit is one tax filing unit under construction.
type Unit struct {
	Year int

	// Household indexes. Spouse is -1 when no spouse was folded in.
	Head   int
	Spouse int

	HeadIncome   microdata.Income
	SpouseIncome microdata.Income
	Income       microdata.Income

	AGIHead   float64
	AGISpouse float64
	AGI       float64

	Status Status

	// MaritalJoint is true when the head's marital code is a married code,
	// whether or not a spouse was found.
	MaritalJoint bool

	RelCode    int
	FamilyType int
	FamilyID   int

	AgeHead   int
	AgeSpouse int

	// Elderly counts the head and spouse aged 65 and over.
	Elderly int

	Ages       AgeCounters
	Dependents []DependentSlot

	Benefits        BenefitSlots
	NextBenefitSlot int
	BenefitTotals   [microdata.NumBenefitKinds]float64

	// IsDependent is set when the head is claimed elsewhere, either because
	// the unit was created for a must-file dependent or because it was
	// folded into another unit.
	IsDependent bool

	// HeadWasDependent records the head's dependent flag at construction.
	HeadWasDependent bool

	Survives       bool
	FilingRequired bool

	Weight      float64
	HouseholdID int
	PersonSeq   int
	State       int
	Region      int
	LineNo      int

	BlindHead   bool
	BlindSpouse bool
	Owner       bool

	Eval         Evaluation
	HealthHead   microdata.HealthCoverage
	HealthSpouse microdata.HealthCoverage
}

// HasSpouse reports whether a spouse was folded into the unit.
func (u *Unit) HasSpouse() bool {
	return u.Spouse >= 0
}

// TotalIncome returns the combined income over all ten streams.
func (u *Unit) TotalIncome() float64 {
	return u.Income.Total()
}

// DependentCount returns the number of dependent slots.
func (u *Unit) DependentCount() int {
	return len(u.Dependents)
}

// Filers returns 2 when a spouse was folded in and 1 otherwise.
func (u *Unit) Filers() int {
	if u.HasSpouse() {
		return 2
	}
	return 1
}

// attachBenefits stores b at pos and adds it to the running totals.
func (u *Unit) attachBenefits(pos int, b microdata.Benefits) {
	u.Benefits.Set(pos, b)
	for k := range b {
		u.BenefitTotals[k] += b[k].Value
	}
}
