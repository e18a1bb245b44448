package taxunit

import (
	"github.com/ginjaninja78/cps-tax-units/internal/config"
)

// ApplyHeadOfHousehold promotes a single unit to head of household when it
// has dependents, is not a dependent itself, and holds more than the
// configured share of the income of all units in the household.
func ApplyHeadOfHousehold(u *Unit, householdUnits []*Unit, t config.Thresholds) {
	var total float64
	for _, hu := range householdUnits {
		total += hu.TotalIncome()
	}
	if total <= 0 || u.Status != Single {
		return
	}
	if u.TotalIncome()/total > t.HOHIncomeShare && !u.IsDependent && u.DependentCount() > 0 {
		u.Status = HeadOfHousehold
	}
}

// FilingRequired reports whether u must file a return.
//
// Tests, in order:
//  1. Wage floor for the filing status
//  2. Gross income (Social Security excluded) against the status threshold,
//     less the dependent exemption, with elevated thresholds for the elderly
//  3. Dependents who must file always file
//  4. Elderly heads of household with dependents and moderate income are
//     exempt
//  5. Negative business, farm or rental income forces filing
func FilingRequired(u *Unit, t config.Thresholds) bool {
	deps := u.DependentCount()
	exemption := float64(deps) * t.DependentExemption
	income := u.Income.Gross()
	wages := u.Income.Wages

	switch u.Status {
	case Single:
		if wages >= t.SingleWageFloor {
			return true
		}
		amount := t.Single
		if u.Elderly != 0 {
			amount = t.Single65
		}
		if income >= amount-exemption {
			return true
		}

	case Joint:
		floor := t.JointNoDepsWageFloor
		if deps > 0 {
			floor = t.JointWageFloor
		}
		if wages >= floor {
			return true
		}
		amount := t.Joint
		switch u.Elderly {
		case 1:
			amount = t.Joint65One
		case 2:
			amount = t.Joint65Both
		}
		if income >= amount-exemption {
			return true
		}

	case HeadOfHousehold:
		if wages >= t.HOHWageFloor {
			return true
		}
		amount := t.HOH
		if u.Elderly != 0 {
			amount = t.HOH65
		}
		if income >= amount-exemption {
			return true
		}
	}

	if u.IsDependent {
		return true
	}

	if u.Status == HeadOfHousehold && u.Elderly > 0 && income > t.ElderlyHOHCarveOut && deps > 0 {
		return false
	}

	inc := u.Income
	return inc.Business < 0 || inc.Farm < 0 || inc.Rents < 0
}
