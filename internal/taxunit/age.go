package taxunit

// AgeCounters are the per-unit age-bracket and credit counters.
type AgeCounters struct {
	NU05             int // dependents aged 0-5
	NU13             int // dependents aged 6-13
	NU18             int // members under 18
	NU18Dep          int // dependents under 18
	N1820            int // members aged 18-20
	N21              int // members 21 and over
	N24              int // qualifying children for the child credit
	ElderlyDependent int // dependents 65 and over
	EIC              int // EIC-eligible children
	F2441            int // childcare-credit children
}

// Members returns the number of people counted in the primary brackets.
func (c AgeCounters) Members() int {
	return c.NU18 + c.N1820 + c.N21
}

func (c *AgeCounters) add(o AgeCounters) {
	c.NU05 += o.NU05
	c.NU13 += o.NU13
	c.NU18 += o.NU18
	c.NU18Dep += o.NU18Dep
	c.N1820 += o.N1820
	c.N21 += o.N21
	c.N24 += o.N24
	c.ElderlyDependent += o.ElderlyDependent
	c.EIC += o.EIC
	c.F2441 += o.F2441
}

// ClassifyAge increments exactly one primary bracket for age and, when the
// person is a dependent, the matching credit counters. Ages at or below zero
// are treated as missing and increment nothing.
func ClassifyAge(c *AgeCounters, age int, dependent bool) {
	switch {
	case age <= 0:
		return
	case age < 18:
		c.NU18++
		if !dependent {
			return
		}
		c.EIC++
		c.NU18Dep++
		c.N24++
		if age <= 5 {
			c.NU05++
		} else if age <= 13 {
			c.NU13++
			c.F2441++
		}
	case age <= 20:
		c.N1820++
	default:
		c.N21++
		if dependent && age >= 65 {
			c.ElderlyDependent++
		}
	}
}
