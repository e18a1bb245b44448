// =============================================================================
// CPS Tax-Unit Builder - Export Column Layout
// =============================================================================
//
// This module defines the output table: one row per tax unit, one column per
// attribute. Every writer (CSV, XLSX, SQLite) uses the same layout.
//
// COLUMN GROUPS:
//   - Unit attributes (filing status, counts, ages, identifiers)
//   - Income streams: combined, head ("p" suffix) and spouse ("s" suffix)
//   - Evaluation fields (z-prefixed)
//   - Age bracket and credit counters
//   - Benefit totals per program (<program>_ben)
//   - Dependent slots: depline<n> and depage<n> for n = 1..slots-2, since
//     each dependent takes one benefit slot after the head and spouse
//   - Benefit slots: <PROGRAM>_PROB<n> and <PROGRAM>_VAL<n> for n = 1..slots
//
// Medicaid and Medicare slots are exported as MEDICAID_* and MEDICARE_*, and
// the weight as s006.
//
// =============================================================================

package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ginjaninja78/cps-tax-units/internal/microdata"
	"github.com/ginjaninja78/cps-tax-units/internal/taxunit"
)

// Column is one output column.
type Column struct {
	Name  string
	Value func(r *taxunit.Record) any
}

func intCol(name string, f func(r *taxunit.Record) int) Column {
	return Column{Name: name, Value: func(r *taxunit.Record) any { return f(r) }}
}

func floatCol(name string, f func(r *taxunit.Record) float64) Column {
	return Column{Name: name, Value: func(r *taxunit.Record) any { return f(r) }}
}

func flagCol(name string, f func(r *taxunit.Record) bool) Column {
	return Column{Name: name, Value: func(r *taxunit.Record) any {
		if f(r) {
			return 1
		}
		return 0
	}}
}

// incomeCols returns the combined, head and spouse columns of one stream.
func incomeCols(name string, f func(in *microdata.Income) float64) []Column {
	return []Column{
		floatCol(name, func(r *taxunit.Record) float64 { return f(&r.Income) }),
		floatCol(name+"p", func(r *taxunit.Record) float64 { return f(&r.HeadIncome) }),
		floatCol(name+"s", func(r *taxunit.Record) float64 { return f(&r.SpouseIncome) }),
	}
}

var unitColumns = []Column{
	intCol("year", func(r *taxunit.Record) int { return r.Year }),
	intCol("cpsseq", func(r *taxunit.Record) int { return r.Seq }),
	intCol("js", func(r *taxunit.Record) int { return int(r.Status) }),
	flagCol("ifdept", func(r *taxunit.Record) bool { return r.IsDependent }),
	intCol("agede", func(r *taxunit.Record) int { return r.Elderly }),
	intCol("depne", func(r *taxunit.Record) int { return r.Dependents }),
	intCol("ageh", func(r *taxunit.Record) int { return r.AgeHead }),
	intCol("ages", func(r *taxunit.Record) int { return r.AgeSpouse }),
	floatCol("s006", func(r *taxunit.Record) float64 { return r.Weight }),
}

func incomeColumns() []Column {
	var cols []Column
	cols = append(cols, incomeCols("was", func(in *microdata.Income) float64 { return in.Wages })...)
	cols = append(cols, incomeCols("intst", func(in *microdata.Income) float64 { return in.Interest })...)
	cols = append(cols, incomeCols("dbe", func(in *microdata.Income) float64 { return in.Dividends })...)
	cols = append(cols, incomeCols("alimony", func(in *microdata.Income) float64 { return in.Alimony })...)
	cols = append(cols, incomeCols("bil", func(in *microdata.Income) float64 { return in.Business })...)
	cols = append(cols, incomeCols("pensions", func(in *microdata.Income) float64 { return in.Pensions })...)
	cols = append(cols, incomeCols("rents", func(in *microdata.Income) float64 { return in.Rents })...)
	cols = append(cols, incomeCols("fil", func(in *microdata.Income) float64 { return in.Farm })...)
	cols = append(cols, incomeCols("ucomp", func(in *microdata.Income) float64 { return in.Unemployment })...)
	cols = append(cols, incomeCols("socsec", func(in *microdata.Income) float64 { return in.SocialSecurity })...)
	return cols
}

var detailColumns = []Column{
	flagCol("zifdep", func(r *taxunit.Record) bool { return r.HeadWasDependent }),
	intCol("zntdep", func(r *taxunit.Record) int { return 0 }),
	floatCol("zhhinc", func(r *taxunit.Record) float64 { return r.Eval.HouseholdIncome }),
	intCol("zagept", func(r *taxunit.Record) int { return r.AgeHead }),
	intCol("zagesp", func(r *taxunit.Record) int { return r.AgeSpouse }),
	intCol("zoldes", func(r *taxunit.Record) int { return r.Oldest }),
	intCol("zyoung", func(r *taxunit.Record) int { return r.Youngest }),
	floatCol("zworkc", func(r *taxunit.Record) float64 { return r.Eval.WorkersComp }),
	floatCol("zsocse", func(r *taxunit.Record) float64 { return r.Eval.SocialSecurity }),
	floatCol("zssinc", func(r *taxunit.Record) float64 { return r.Eval.SSI }),
	floatCol("zpubas", func(r *taxunit.Record) float64 { return r.Eval.PublicAssistance }),
	floatCol("zvetbe", func(r *taxunit.Record) float64 { return r.Eval.Veterans }),
	intCol("zchsup", func(r *taxunit.Record) int { return 0 }),
	floatCol("zdepin", func(r *taxunit.Record) float64 { return r.DependentIncome }),
	flagCol("zowner", func(r *taxunit.Record) bool { return r.Owner }),
	floatCol("zwaspt", func(r *taxunit.Record) float64 { return r.Eval.WagesHead }),
	floatCol("zwassp", func(r *taxunit.Record) float64 { return r.Eval.WagesSpouse }),

	intCol("nu05", func(r *taxunit.Record) int { return r.Ages.NU05 }),
	intCol("nu13", func(r *taxunit.Record) int { return r.Ages.NU13 }),
	intCol("nu18", func(r *taxunit.Record) int { return r.Ages.NU18 }),
	intCol("nu18_dep", func(r *taxunit.Record) int { return r.Ages.NU18Dep }),
	intCol("n1820", func(r *taxunit.Record) int { return r.Ages.N1820 }),
	intCol("n21", func(r *taxunit.Record) int { return r.Ages.N21 }),
	intCol("n24", func(r *taxunit.Record) int { return r.Ages.N24 }),
	intCol("elderly_dependent", func(r *taxunit.Record) int { return r.Ages.ElderlyDependent }),
	intCol("EIC", func(r *taxunit.Record) int { return r.Ages.EIC }),
	intCol("f2441", func(r *taxunit.Record) int { return r.Ages.F2441 }),

	intCol("xstate", func(r *taxunit.Record) int { return r.State }),
	intCol("xregion", func(r *taxunit.Record) int { return r.Region }),
	flagCol("xschb", func(r *taxunit.Record) bool { return r.ScheduleB }),
	flagCol("xschc", func(r *taxunit.Record) bool { return r.ScheduleC }),
	flagCol("xsche", func(r *taxunit.Record) bool { return r.ScheduleE }),
	flagCol("xschf", func(r *taxunit.Record) bool { return r.ScheduleF }),
	intCol("xhid", func(r *taxunit.Record) int { return r.HouseholdID }),
	intCol("xfid", func(r *taxunit.Record) int { return r.FamilyID }),
	intCol("xpid", func(r *taxunit.Record) int { return r.PersonSeq }),
	intCol("a_lineno", func(r *taxunit.Record) int { return r.LineNo }),

	intCol("hi", func(r *taxunit.Record) int { return r.HealthHead.HI }),
	intCol("paid", func(r *taxunit.Record) int { return r.HealthHead.Paid }),
	intCol("priv", func(r *taxunit.Record) int { return r.HealthHead.Priv }),
	intCol("hi_spouse", func(r *taxunit.Record) int { return r.HealthSpouse.HI }),
	intCol("paid_spouse", func(r *taxunit.Record) int { return r.HealthSpouse.Paid }),
	intCol("priv_spouse", func(r *taxunit.Record) int { return r.HealthSpouse.Priv }),

	floatCol("agi", func(r *taxunit.Record) float64 { return r.AGI }),
	floatCol("agi_head", func(r *taxunit.Record) float64 { return r.AGIHead }),
	floatCol("agi_spouse", func(r *taxunit.Record) float64 { return r.AGISpouse }),
	flagCol("blind_head", func(r *taxunit.Record) bool { return r.BlindHead }),
	flagCol("blind_spouse", func(r *taxunit.Record) bool { return r.BlindSpouse }),

	intCol("xxtot", func(r *taxunit.Record) int { return r.Total }),
	intCol("xxopar", func(r *taxunit.Record) int { return r.Parents }),
	intCol("xxoodep", func(r *taxunit.Record) int { return r.OtherDependents }),
	intCol("xxocah", func(r *taxunit.Record) int { return r.Children }),
	intCol("oldest", func(r *taxunit.Record) int { return r.Oldest }),
	intCol("youngest", func(r *taxunit.Record) int { return r.Youngest }),

	floatCol("income", func(r *taxunit.Record) float64 { return r.TotalIncome }),
	flagCol("filst", func(r *taxunit.Record) bool { return r.FilingRequired }),
}

// ExportName returns the column prefix of a benefit program.
func ExportName(kind microdata.BenefitKind) string {
	switch kind {
	case microdata.MCAID:
		return "MEDICAID"
	case microdata.MCARE:
		return "MEDICARE"
	default:
		return kind.String()
	}
}

// Columns returns the full layout with the given number of benefit slots.
func Columns(slots int) []Column {
	cols := make([]Column, 0, len(unitColumns)+30+len(detailColumns)+2*slots+microdata.NumBenefitKinds*(1+2*slots))
	cols = append(cols, unitColumns...)
	cols = append(cols, incomeColumns()...)
	cols = append(cols, detailColumns...)

	for k := 0; k < microdata.NumBenefitKinds; k++ {
		kind := microdata.BenefitKind(k)
		cols = append(cols, floatCol(strings.ToLower(ExportName(kind))+"_ben",
			func(r *taxunit.Record) float64 { return r.BenefitTotals[kind] }))
	}

	for pos := 1; pos <= slots-2; pos++ {
		cols = append(cols,
			intCol(fmt.Sprintf("depline%d", pos), func(r *taxunit.Record) int { return dependentSlot(r, pos).LineNo }),
			intCol(fmt.Sprintf("depage%d", pos), func(r *taxunit.Record) int { return dependentSlot(r, pos).Age }),
		)
	}

	for k := 0; k < microdata.NumBenefitKinds; k++ {
		kind := microdata.BenefitKind(k)
		prefix := ExportName(kind)
		for pos := 1; pos <= slots; pos++ {
			cols = append(cols,
				floatCol(fmt.Sprintf("%s_PROB%d", prefix, pos),
					func(r *taxunit.Record) float64 { return r.Benefits.Pair(kind, pos).Prob }),
				floatCol(fmt.Sprintf("%s_VAL%d", prefix, pos),
					func(r *taxunit.Record) float64 { return r.Benefits.Pair(kind, pos).Value }),
			)
		}
	}

	return cols
}

// dependentSlot returns the 1-based dependent slot pos, or a zero entry.
func dependentSlot(r *taxunit.Record, pos int) taxunit.DependentEntry {
	if pos > len(r.DependentSlots) {
		return taxunit.DependentEntry{}
	}
	return r.DependentSlots[pos-1]
}

// Header returns the column names.
func Header(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// FormatValue renders a column value as text.
func FormatValue(v any) string {
	switch x := v.(type) {
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
