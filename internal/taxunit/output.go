package taxunit

import (
	"github.com/ginjaninja78/cps-tax-units/internal/config"
	"github.com/ginjaninja78/cps-tax-units/internal/microdata"
)

// Relationship codes tallied among dependents.
const (
	parentRelCode  = 8
	siblingRelCode = 9
)

// adultAge separates children from adult dependents.
const adultAge = 18

// Record is the finalized output row of one surviving unit.
type Record struct {
	Year int

	Status           Status
	IsDependent      bool
	HeadWasDependent bool
	Elderly          int
	Dependents       int

	AgeHead   int
	AgeSpouse int
	HasSpouse bool

	Income       microdata.Income
	HeadIncome   microdata.Income
	SpouseIncome microdata.Income
	AGI          float64
	AGIHead      float64
	AGISpouse    float64
	TotalIncome  float64

	Weight float64

	Ages AgeCounters

	// Total is xxtot: filers plus dependents.
	Total int

	// Dependent tallies.
	Parents         int // xxopar
	OtherDependents int // xxoodep
	Children        int // xxocah
	Oldest          int
	Youngest        int
	DependentIncome float64 // zdepin

	// DependentSlots lists the dependents in slot order.
	DependentSlots []DependentEntry

	Eval  Evaluation
	Owner bool

	ScheduleB bool
	ScheduleC bool
	ScheduleE bool
	ScheduleF bool

	HouseholdID int
	FamilyID    int
	PersonSeq   int
	State       int
	Region      int
	LineNo      int

	BlindHead    bool
	BlindSpouse  bool
	HealthHead   microdata.HealthCoverage
	HealthSpouse microdata.HealthCoverage

	BenefitTotals [microdata.NumBenefitKinds]float64
	Benefits      BenefitSlots

	FilingRequired bool

	// Seq is the 1-based position in the assembled file (cpsseq). Zero until
	// assembly.
	Seq int

	// CountsReset is set when the age counters were rebuilt from member ages.
	CountsReset bool
}

// DependentEntry is one exported dependent slot.
type DependentEntry struct {
	LineNo int
	Age    int
}

// Finalize produces the output record for a surviving unit.
//
// The expected member count is the filer count plus the dependent count. When
// it disagrees with the primary age brackets, or when qualifying children
// outnumber the under-18 bracket, every counter is rebuilt from the head and
// spouse ages and from the current ages of the dependents looked up in h.
//
// Writes: InUnit on the head, spouse and every dependent; u.FilingRequired.
func Finalize(u *Unit, h *microdata.Household, t config.Thresholds) Record {
	rec := Record{
		Year:             u.Year,
		Status:           u.Status,
		IsDependent:      u.IsDependent,
		HeadWasDependent: u.HeadWasDependent,
		Elderly:          u.Elderly,
		Dependents:       u.DependentCount(),
		AgeHead:          u.AgeHead,
		AgeSpouse:        u.AgeSpouse,
		HasSpouse:        u.HasSpouse(),
		Income:           u.Income,
		HeadIncome:       u.HeadIncome,
		SpouseIncome:     u.SpouseIncome,
		AGI:              u.AGI,
		AGIHead:          u.AGIHead,
		AGISpouse:        u.AGISpouse,
		TotalIncome:      u.TotalIncome(),
		Weight:           u.Weight,
		Ages:             u.Ages,
		Eval:             u.Eval,
		Owner:            u.Owner,
		ScheduleB:        u.Income.Interest > t.ScheduleBInterest,
		ScheduleC:        u.Income.Business != 0,
		ScheduleE:        u.Income.Rents != 0,
		ScheduleF:        u.Income.Farm != 0,
		HouseholdID:      u.HouseholdID,
		FamilyID:         u.FamilyID,
		PersonSeq:        u.PersonSeq,
		State:            u.State,
		Region:           u.Region,
		LineNo:           u.LineNo,
		BlindHead:        u.BlindHead,
		BlindSpouse:      u.BlindSpouse,
		HealthHead:       u.HealthHead,
		HealthSpouse:     u.HealthSpouse,
		BenefitTotals:    u.BenefitTotals,
		Benefits:         u.Benefits,
	}

	rec.Total = u.Filers() + rec.Dependents
	if rec.Total != rec.Ages.Members() || rec.Ages.N24 > rec.Ages.NU18 {
		rec.CountsReset = true
		rec.Ages = AgeCounters{}
		rec.Total = 1
		ClassifyAge(&rec.Ages, u.AgeHead, false)
		if u.HasSpouse() {
			rec.Total++
			ClassifyAge(&rec.Ages, u.AgeSpouse, false)
		}
		for _, d := range u.Dependents {
			rec.Total++
			ClassifyAge(&rec.Ages, h.Persons[d.Index].Age, true)
		}
	}

	rec.DependentSlots = make([]DependentEntry, len(u.Dependents))
	for i, d := range u.Dependents {
		p := &h.Persons[d.Index]
		rec.DependentSlots[i] = DependentEntry{LineNo: p.LineNo, Age: d.Age}
		if p.RelCode == parentRelCode {
			rec.Parents++
		}
		if p.RelCode >= siblingRelCode && p.Age >= adultAge {
			rec.OtherDependents++
		}
		if p.Age < adultAge {
			rec.Children++
		}
		if !p.IsHead {
			rec.DependentIncome += p.Income.Total()
		}

		if i == 0 || d.Age > rec.Oldest {
			rec.Oldest = d.Age
		}
		if i == 0 || d.Age < rec.Youngest {
			rec.Youngest = d.Age
		}
	}

	rec.FilingRequired = FilingRequired(u, t)
	u.FilingRequired = rec.FilingRequired

	markMembers(u, h)
	return rec
}

// markMembers sets InUnit on every member of u.
func markMembers(u *Unit, h *microdata.Household) {
	h.Persons[u.Head].InUnit = true
	if u.HasSpouse() {
		h.Persons[u.Spouse].InUnit = true
	}
	for _, d := range u.Dependents {
		h.Persons[d.Index].InUnit = true
	}
}
