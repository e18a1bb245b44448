// =============================================================================
// CPS Tax-Unit Builder - Survey Microdata Module
// =============================================================================
//
// This module holds the person-level survey record and decodes it from one row
// of the merged person table. A row carries:
//   - Identifiers (household, family, person sequence, line number)
//   - Demographics (age, marital status, relationship to the reference person)
//   - Ten income streams plus a handful of other receipts
//   - Externally imputed benefit (probability, value) pairs
//
// Persons are created once per year file. Later stages only mutate the five
// membership flags.
//
// =============================================================================

package microdata

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// INCOME STREAMS
// =============================================================================

// Income holds the ten income streams that define a unit's total income.
type Income struct {
	Wages          float64 // wsal_val
	Interest       float64 // int_val
	Dividends      float64 // div_val
	Alimony        float64 // alm_val
	Business       float64 // semp_val
	Pensions       float64 // rtm_val
	Rents          float64 // rnt_val
	Farm           float64 // frse_val
	Unemployment   float64 // uc_val
	SocialSecurity float64 // ss_val
}

// Total returns the sum of all ten streams.
func (i Income) Total() float64 {
	return i.Gross() + i.SocialSecurity
}

// Gross returns the total excluding Social Security, the base of the
// gross-income filing test.
func (i Income) Gross() float64 {
	return i.Wages + i.Interest + i.Dividends + i.Alimony + i.Business +
		i.Pensions + i.Rents + i.Farm + i.Unemployment
}

// Add returns the stream-wise sum of i and o.
func (i Income) Add(o Income) Income {
	return Income{
		Wages:          i.Wages + o.Wages,
		Interest:       i.Interest + o.Interest,
		Dividends:      i.Dividends + o.Dividends,
		Alimony:        i.Alimony + o.Alimony,
		Business:       i.Business + o.Business,
		Pensions:       i.Pensions + o.Pensions,
		Rents:          i.Rents + o.Rents,
		Farm:           i.Farm + o.Farm,
		Unemployment:   i.Unemployment + o.Unemployment,
		SocialSecurity: i.SocialSecurity + o.SocialSecurity,
	}
}

// =============================================================================
// BENEFITS
// =============================================================================

// BenefitKind identifies one imputed public-benefit program.
type BenefitKind int

const (
	SSI BenefitKind = iota
	VB
	SNAP
	MCARE
	MCAID
	SS
	TANF
	UI
	HOUSING
	WIC

	NumBenefitKinds = int(WIC) + 1
)

// benefitColumns maps each kind to its export name and its raw value and
// probability columns in the merged person table.
var benefitColumns = [NumBenefitKinds]struct {
	name, value, prob string
}{
	SSI:     {"SSI", "ssi_impute", "ssi_probs"},
	VB:      {"VB", "vb_impute", "vb_probs"},
	SNAP:    {"SNAP", "snap_impute", "snap_probs"},
	MCARE:   {"MCARE", "MedicareX", "mcare_probs"},
	MCAID:   {"MCAID", "MedicaidX", "mcaid_probs"},
	SS:      {"SS", "ss_val_y", "ss_probs"},
	TANF:    {"TANF", "tanf_impute", "tanf_probs"},
	UI:      {"UI", "ui_impute", "ui_probs"},
	HOUSING: {"HOUSING", "housing_impute", "housing_probs"},
	WIC:     {"WIC", "wic_impute", "wic_probs"},
}

// String returns the upper-case program name used in column names.
func (k BenefitKind) String() string {
	if k < 0 || int(k) >= NumBenefitKinds {
		return fmt.Sprintf("BenefitKind(%d)", int(k))
	}
	return benefitColumns[k].name
}

// BenefitPair is one person's imputed participation probability and value.
type BenefitPair struct {
	Prob  float64
	Value float64
}

// Benefits holds one pair per program.
type Benefits [NumBenefitKinds]BenefitPair

// =============================================================================
// PERSON
// =============================================================================

// HealthCoverage holds the raw coverage codes carried into the output.
type HealthCoverage struct {
	HI   int
	Paid int
	Priv int
}

// Person is one surveyed individual.
type Person struct {
	// Identifiers
	HouseholdID int // h_seq
	FamilyID    int // ffpos
	PersonSeq   int // ph_seq
	LineNo      int // a_lineno
	SpouseLine  int // a_spouse, 0 when absent
	RelCode     int // a_exprrp
	Marital     int // a_maritl

	// Demographics
	Age      int // a_age
	Enrolled int // a_enrlw
	Blind    int // pediseye

	// Household attributes, repeated on every member
	HouseholdType   int     // h_type
	HouseholdSize   int     // h_numper
	FamilyType      int     // ftype
	Tenure          int     // h_tenure
	State           int     // gestfips
	Region          int     // gereg
	Weight          float64 // fsup_wgt
	HouseholdIncome float64 // hhinc

	AGI    float64
	Income Income

	// Other receipts used for evaluation fields
	WorkersComp      float64 // wc_val
	SSI              float64 // ssi_val
	PublicAssistance float64 // paw_val
	Veterans         float64 // vet_val

	Health   HealthCoverage
	Benefits Benefits

	// Membership flags. The tax-unit builder is the only writer.
	IsHead      bool
	IsSpouse    bool
	IsDependent bool
	InUnit      bool
	Visited     bool
}

// generations maps relationship-to-reference codes to a generation offset.
var generations = map[int]int{
	5:  -1,
	7:  -2,
	8:  1,
	9:  0,
	11: -1,
}

// UnknownGeneration marks a relationship code with no generation mapping.
const UnknownGeneration = 99

// Generation returns the relationship-generation code for the person, or
// UnknownGeneration when the relationship code is unmapped.
func (p *Person) Generation() int {
	return GenerationOf(p.RelCode)
}

// GenerationOf returns the generation for a raw relationship code.
func GenerationOf(relCode int) int {
	if g, ok := generations[relCode]; ok {
		return g
	}
	return UnknownGeneration
}

// =============================================================================
// DECODING
// =============================================================================

// AlimonyAliasYear is the survey year that reports alimony under other
// income (oi_val with oi_off == 20) instead of alm_val.
const AlimonyAliasYear = 2015

// alimonyOtherIncomeCode is the oi_off source code for alimony.
const alimonyOtherIncomeCode = 20

var intColumns = []struct {
	name string
	dst  func(p *Person) *int
}{
	{"h_seq", func(p *Person) *int { return &p.HouseholdID }},
	{"ffpos", func(p *Person) *int { return &p.FamilyID }},
	{"ph_seq", func(p *Person) *int { return &p.PersonSeq }},
	{"a_lineno", func(p *Person) *int { return &p.LineNo }},
	{"a_spouse", func(p *Person) *int { return &p.SpouseLine }},
	{"a_exprrp", func(p *Person) *int { return &p.RelCode }},
	{"a_maritl", func(p *Person) *int { return &p.Marital }},
	{"a_age", func(p *Person) *int { return &p.Age }},
	{"a_enrlw", func(p *Person) *int { return &p.Enrolled }},
	{"pediseye", func(p *Person) *int { return &p.Blind }},
	{"h_type", func(p *Person) *int { return &p.HouseholdType }},
	{"h_numper", func(p *Person) *int { return &p.HouseholdSize }},
	{"ftype", func(p *Person) *int { return &p.FamilyType }},
	{"h_tenure", func(p *Person) *int { return &p.Tenure }},
	{"gestfips", func(p *Person) *int { return &p.State }},
	{"gereg", func(p *Person) *int { return &p.Region }},
	{"hi", func(p *Person) *int { return &p.Health.HI }},
	{"paid", func(p *Person) *int { return &p.Health.Paid }},
	{"priv", func(p *Person) *int { return &p.Health.Priv }},
}

var floatColumns = []struct {
	name string
	dst  func(p *Person) *float64
}{
	{"fsup_wgt", func(p *Person) *float64 { return &p.Weight }},
	{"hhinc", func(p *Person) *float64 { return &p.HouseholdIncome }},
	{"agi", func(p *Person) *float64 { return &p.AGI }},
	{"wsal_val", func(p *Person) *float64 { return &p.Income.Wages }},
	{"int_val", func(p *Person) *float64 { return &p.Income.Interest }},
	{"div_val", func(p *Person) *float64 { return &p.Income.Dividends }},
	{"semp_val", func(p *Person) *float64 { return &p.Income.Business }},
	{"rtm_val", func(p *Person) *float64 { return &p.Income.Pensions }},
	{"rnt_val", func(p *Person) *float64 { return &p.Income.Rents }},
	{"frse_val", func(p *Person) *float64 { return &p.Income.Farm }},
	{"uc_val", func(p *Person) *float64 { return &p.Income.Unemployment }},
	{"ss_val", func(p *Person) *float64 { return &p.Income.SocialSecurity }},
	{"wc_val", func(p *Person) *float64 { return &p.WorkersComp }},
	{"ssi_val", func(p *Person) *float64 { return &p.SSI }},
	{"paw_val", func(p *Person) *float64 { return &p.PublicAssistance }},
	{"vet_val", func(p *Person) *float64 { return &p.Veterans }},
}

// RequiredColumns lists every column Decode reads for the given survey year.
func RequiredColumns(surveyYear int) []string {
	cols := make([]string, 0, len(intColumns)+len(floatColumns)+2*NumBenefitKinds+2)
	for _, c := range intColumns {
		cols = append(cols, c.name)
	}
	for _, c := range floatColumns {
		cols = append(cols, c.name)
	}
	if surveyYear == AlimonyAliasYear {
		cols = append(cols, "oi_off", "oi_val")
	} else {
		cols = append(cols, "alm_val")
	}
	for _, b := range benefitColumns {
		cols = append(cols, b.value, b.prob)
	}
	return cols
}

// Decode builds a Person from one table row keyed by column header.
// Empty cells decode as zero.
func Decode(row map[string]string, surveyYear int) (Person, error) {
	var p Person

	for _, c := range intColumns {
		v, err := parseInt(row[c.name])
		if err != nil {
			return p, fmt.Errorf("column %s: %w", c.name, err)
		}
		*c.dst(&p) = v
	}

	for _, c := range floatColumns {
		v, err := parseFloat(row[c.name])
		if err != nil {
			return p, fmt.Errorf("column %s: %w", c.name, err)
		}
		*c.dst(&p) = v
	}

	alimony, err := decodeAlimony(row, surveyYear)
	if err != nil {
		return p, err
	}
	p.Income.Alimony = alimony

	for k, b := range benefitColumns {
		value, err := parseFloat(row[b.value])
		if err != nil {
			return p, fmt.Errorf("column %s: %w", b.value, err)
		}
		prob, err := parseFloat(row[b.prob])
		if err != nil {
			return p, fmt.Errorf("column %s: %w", b.prob, err)
		}
		p.Benefits[k] = BenefitPair{Prob: prob, Value: value}
	}

	return p, nil
}

// decodeAlimony resolves the one year-dependent field alias.
func decodeAlimony(row map[string]string, surveyYear int) (float64, error) {
	if surveyYear != AlimonyAliasYear {
		v, err := parseFloat(row["alm_val"])
		if err != nil {
			return 0, fmt.Errorf("column alm_val: %w", err)
		}
		return v, nil
	}

	off, err := parseInt(row["oi_off"])
	if err != nil {
		return 0, fmt.Errorf("column oi_off: %w", err)
	}
	if off != alimonyOtherIncomeCode {
		return 0, nil
	}
	v, err := parseFloat(row["oi_val"])
	if err != nil {
		return 0, fmt.Errorf("column oi_val: %w", err)
	}
	return v, nil
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// parseInt accepts integral floats such as "3.0", which pandas exports emit.
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return int(f), nil
}
