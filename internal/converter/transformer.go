// =============================================================================
// CPS Tax-Unit Builder - Column Rule Engine
// =============================================================================
//
// This module applies per-year column rules to raw person rows before they
// are decoded. Survey years differ in small ways (a renamed column, a value
// recorded in dollars instead of cents, a column absent from one release),
// and the rules let a configuration smooth those differences over without
// code changes.
//
// RULE TYPES:
//   - trim:         strip surrounding whitespace
//   - fill_missing: set a value when the cell is empty or the column absent
//   - replace:      replace a substring (find -> value)
//   - lookup:       map a code through a lookup table
//   - scale:        multiply a numeric cell by a factor
//   - copy_from:    take the value of another column when the cell is empty
//
// Rules run in configuration order and the actions of a rule in sequence, so
// a later action sees the output of an earlier one.
//
// =============================================================================

package converter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ginjaninja78/cps-tax-units/internal/config"
)

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer applies the column rules of one input file.
type Transformer struct {
	rules []config.ColumnRule
}

// NewTransformer creates a new Transformer with the given rules.
func NewTransformer(rules []config.ColumnRule) *Transformer {
	return &Transformer{
		rules: rules,
	}
}

// Apply runs every rule against a row in place.
//
// PARAMETERS:
//   - row: The row keyed by column header. Absent columns may be added.
//
// RETURNS:
//   - An error naming the column and rule type when a rule cannot be applied.
func (t *Transformer) Apply(row map[string]string) error {
	for _, rule := range t.rules {
		value := row[rule.Column]
		for _, action := range rule.Actions {
			var err error
			value, err = ApplyTransformation(value, action, row)
			if err != nil {
				return fmt.Errorf("column %s: transformation '%s' failed: %w", rule.Column, action.Type, err)
			}
		}
		row[rule.Column] = value
	}
	return nil
}

// ApplyTransformation applies a single rule action.
//
// PARAMETERS:
//   - value: The current cell value.
//   - action: The action to apply.
//   - allFields: All fields in the current row (for copy_from).
//
// RETURNS:
//   - The transformed value.
//   - An error if the transformation fails.
func ApplyTransformation(value string, action config.ColumnAction, allFields map[string]string) (string, error) {
	switch action.Type {

	case "trim":
		return strings.TrimSpace(value), nil

	case "fill_missing":
		// EXAMPLE:
		//   Input: ""
		//   Action: fill_missing with value "0"
		//   Output: "0"
		if strings.TrimSpace(value) == "" {
			return action.Value, nil
		}
		return value, nil

	case "replace":
		if action.Find == "" {
			return value, nil
		}
		return strings.ReplaceAll(value, action.Find, action.Value), nil

	case "lookup":
		// Values missing from the table are kept as-is.
		//
		// EXAMPLE:
		//   Input: "M"
		//   Action: lookup with table {"M": "1", "F": "2"}
		//   Output: "1"
		if replacement, ok := action.LookupTable[value]; ok {
			return replacement, nil
		}
		return value, nil

	case "scale":
		// EXAMPLE:
		//   Input: "1234"
		//   Action: scale with value "0.01"
		//   Output: "12.34"
		if strings.TrimSpace(value) == "" {
			return value, nil
		}
		factor, err := strconv.ParseFloat(action.Value, 64)
		if err != nil {
			return "", fmt.Errorf("invalid scale factor %q: %w", action.Value, err)
		}
		num, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return "", fmt.Errorf("value %q is not numeric", value)
		}
		return strconv.FormatFloat(num*factor, 'f', -1, 64), nil

	case "copy_from":
		if strings.TrimSpace(value) != "" {
			return value, nil
		}
		return allFields[action.Value], nil

	default:
		return "", fmt.Errorf("unknown transformation type")
	}
}
