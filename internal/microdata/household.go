package microdata

import (
	"sort"
)

// Household type codes (h_type) that select a construction strategy.
const (
	HouseholdTypeNonFamilyMale   = 6
	HouseholdTypeNonFamilyFemale = 7
	HouseholdTypeGroupQuarters   = 9
)

// Household is the set of persons sharing one h_seq, ordered by line number.
// It owns its persons; the tax-unit builder mutates their flags in place.
type Household struct {
	ID      int
	Persons []Person
}

// Head returns the first person in line order.
func (h *Household) Head() *Person {
	return &h.Persons[0]
}

// IsLoneNonFamily reports a one-person nonfamily household.
func (h *Household) IsLoneNonFamily() bool {
	head := h.Head()
	return (head.HouseholdType == HouseholdTypeNonFamilyMale ||
		head.HouseholdType == HouseholdTypeNonFamilyFemale) &&
		head.HouseholdSize == 1
}

// IsGroupQuarters reports a group-quarters household.
func (h *Household) IsGroupQuarters() bool {
	return h.Head().HouseholdType == HouseholdTypeGroupQuarters
}

// Partition groups persons into households.
//
// PARAMETERS:
//   - persons: Every decoded person of one year file, in any order.
//
// RETURNS:
//   - Households ordered by household id. Within a household persons are
//     stable-sorted by line number, so ties keep file order.
//
// Each household receives its own person slice; no two households share
// backing storage.
func Partition(persons []Person) []Household {
	groups := make(map[int][]Person)
	var order []int

	for _, p := range persons {
		if _, exists := groups[p.HouseholdID]; !exists {
			order = append(order, p.HouseholdID)
		}
		groups[p.HouseholdID] = append(groups[p.HouseholdID], p)
	}

	sort.Ints(order)

	households := make([]Household, len(order))
	for i, id := range order {
		members := groups[id]
		sort.SliceStable(members, func(a, b int) bool {
			return members[a].LineNo < members[b].LineNo
		})
		households[i] = Household{ID: id, Persons: members}
	}

	return households
}
