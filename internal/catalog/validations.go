package catalog

import (
	"encoding/json"
	"strconv"
	"strings"

	"evalgo.org/mdm/models"
)

// validationShape lists which rule keys of an attribute type are numeric
// and which are flags. Keys outside the shape are stored untouched.
type validationShape struct {
	numbers []string
	flags   []string
}

var validationShapes = map[models.AttributeType]validationShape{
	models.AttributeNumber: {
		numbers: []string{"min", "max"},
		flags:   []string{"isInteger", "isPositive", "isNegative", "isZero"},
	},
	models.AttributeText: {
		numbers: []string{"minLength", "maxLength"},
	},
	models.AttributeSelect: {
		numbers: []string{"minSelections", "maxSelections"},
	},
	models.AttributeMultiSelect: {
		numbers: []string{"minSelections", "maxSelections"},
	},
}

// NormalizeValidations coerces the rule set of an attribute of type t and
// returns nil when no rule is left. Date attributes and unknown types are
// copied as given. The input map is not modified.
func NormalizeValidations(t models.AttributeType, raw map[string]interface{}) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		out[k] = v
	}

	shape := validationShapes[t]
	for _, key := range shape.numbers {
		if v, ok := out[key]; ok {
			out[key] = toNumber(v)
		}
	}
	for _, key := range shape.flags {
		if v, ok := out[key]; ok {
			out[key] = toBool(v)
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

// toNumber converts v the way a loose numeric cast would. A string that is
// not a number is returned unchanged.
func toNumber(v interface{}) interface{} {
	switch n := v.(type) {
	case nil:
		return float64(0)
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	case bool:
		if n {
			return float64(1)
		}
		return float64(0)
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return float64(0)
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return n
	}
	return v
}

// toBool converts v to a flag. Strings accept true/false, 1/0 and yes/no;
// any other non-empty string is true.
func toBool(v interface{}) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case float64:
		return b != 0
	case int:
		return b != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "", "false", "0", "no":
			return false
		}
		return true
	case map[string]interface{}, []interface{}:
		return true
	}
	return v != nil
}
