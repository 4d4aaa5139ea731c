package storage

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// normalizeSelector round-trips a selector through JSON so operator
// arguments use the same types as decoded documents.
func normalizeSelector(sel map[string]interface{}) (map[string]interface{}, error) {
	if sel == nil {
		return map[string]interface{}{}, nil
	}
	data, err := json.Marshal(sel)
	if err != nil {
		return nil, fmt.Errorf("invalid selector: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("invalid selector: %w", err)
	}
	return out, nil
}

// matchSelector evaluates a Mango selector against a decoded document.
// Arrays are matched the way CouchDB does: equality compares whole values
// and element membership needs $elemMatch, $in or $all.
func matchSelector(doc interface{}, sel map[string]interface{}) bool {
	for key, cond := range sel {
		switch key {
		case "$and":
			for _, sub := range asList(cond) {
				if m, ok := sub.(map[string]interface{}); !ok || !matchSelector(doc, m) {
					return false
				}
			}
		case "$or":
			matched := false
			for _, sub := range asList(cond) {
				if m, ok := sub.(map[string]interface{}); ok && matchSelector(doc, m) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		case "$nor":
			for _, sub := range asList(cond) {
				if m, ok := sub.(map[string]interface{}); ok && matchSelector(doc, m) {
					return false
				}
			}
		case "$not":
			if m, ok := cond.(map[string]interface{}); ok && matchSelector(doc, m) {
				return false
			}
		default:
			if strings.HasPrefix(key, "$") {
				if !matchOperator(doc, true, key, cond) {
					return false
				}
				continue
			}
			value, exists := lookupField(doc, key)
			if !matchCondition(value, exists, cond) {
				return false
			}
		}
	}
	return true
}

// matchCondition applies a field condition. A map whose keys are all
// operators is an operator set; anything else is an implicit $eq.
func matchCondition(value interface{}, exists bool, cond interface{}) bool {
	ops, ok := cond.(map[string]interface{})
	if !ok || !isOperatorSet(ops) {
		return exists && jsonEqual(value, cond)
	}
	for op, arg := range ops {
		if !matchOperator(value, exists, op, arg) {
			return false
		}
	}
	return true
}

func matchOperator(value interface{}, exists bool, op string, arg interface{}) bool {
	switch op {
	case "$eq":
		return exists && jsonEqual(value, arg)
	case "$ne":
		return !exists || !jsonEqual(value, arg)
	case "$gt":
		return exists && collate(value, arg) > 0
	case "$gte":
		return exists && collate(value, arg) >= 0
	case "$lt":
		return exists && collate(value, arg) < 0
	case "$lte":
		return exists && collate(value, arg) <= 0
	case "$exists":
		want, _ := arg.(bool)
		return exists == want
	case "$in":
		return exists && inList(value, asList(arg))
	case "$nin":
		return !exists || !inList(value, asList(arg))
	case "$all":
		arr, ok := value.([]interface{})
		if !ok {
			return false
		}
		for _, want := range asList(arg) {
			if !containsJSON(arr, want) {
				return false
			}
		}
		return true
	case "$size":
		arr, ok := value.([]interface{})
		n, isNum := arg.(float64)
		return ok && isNum && float64(len(arr)) == n
	case "$regex":
		s, ok := value.(string)
		pattern, isStr := arg.(string)
		if !ok || !isStr {
			return false
		}
		re, err := regexp.Compile(pattern)
		return err == nil && re.MatchString(s)
	case "$elemMatch":
		arr, ok := value.([]interface{})
		sub, isMap := arg.(map[string]interface{})
		if !ok || !isMap {
			return false
		}
		for _, elem := range arr {
			if matchSelector(elem, sub) {
				return true
			}
		}
		return false
	case "$allMatch":
		arr, ok := value.([]interface{})
		sub, isMap := arg.(map[string]interface{})
		if !ok || !isMap {
			return false
		}
		for _, elem := range arr {
			if !matchSelector(elem, sub) {
				return false
			}
		}
		return true
	case "$not":
		return !matchCondition(value, exists, arg)
	case "$and", "$or", "$nor":
		sel := map[string]interface{}{op: arg}
		return matchSelector(value, sel)
	}
	return false
}

func isOperatorSet(m map[string]interface{}) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

// lookupField resolves a dotted field path.
func lookupField(doc interface{}, path string) (interface{}, bool) {
	cur := doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asList(v interface{}) []interface{} {
	if l, ok := v.([]interface{}); ok {
		return l
	}
	return nil
}

func inList(value interface{}, list []interface{}) bool {
	if arr, ok := value.([]interface{}); ok {
		for _, elem := range arr {
			if containsJSON(list, elem) {
				return true
			}
		}
		return false
	}
	return containsJSON(list, value)
}

func containsJSON(list []interface{}, v interface{}) bool {
	for _, candidate := range list {
		if jsonEqual(candidate, v) {
			return true
		}
	}
	return false
}

func jsonEqual(a, b interface{}) bool {
	return reflect.DeepEqual(a, b)
}

// collate orders JSON values the way CouchDB views do:
// null < false < true < numbers < strings < arrays < objects.
func collate(a, b interface{}) int {
	ra, rb := collationRank(a), collationRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		if av == bv {
			return 0
		}
		if !av {
			return -1
		}
		return 1
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case string:
		return strings.Compare(av, b.(string))
	case []interface{}:
		bv := b.([]interface{})
		for i := 0; i < len(av) && i < len(bv); i++ {
			if c := collate(av[i], bv[i]); c != 0 {
				return c
			}
		}
		return len(av) - len(bv)
	}
	return 0
}

func collationRank(v interface{}) int {
	switch t := v.(type) {
	case nil:
		return 0
	case bool:
		if t {
			return 2
		}
		return 1
	case float64:
		return 3
	case string:
		return 4
	case []interface{}:
		return 5
	default:
		return 6
	}
}
