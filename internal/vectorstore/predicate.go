package vectorstore

import "fmt"

// MatchWhere evaluates the recursive metadata predicate language
// against a single record's metadata map.
func MatchWhere(metadata map[string]interface{}, where Where) bool {
	if len(where) == 0 {
		return true
	}
	for field, cond := range where {
		if field == "$and" {
			clauses, ok := cond.([]Where)
			if !ok {
				if raw, ok2 := cond.([]interface{}); ok2 {
					for _, c := range raw {
						if w, ok3 := c.(Where); ok3 {
							clauses = append(clauses, w)
						} else if m, ok3 := c.(map[string]interface{}); ok3 {
							clauses = append(clauses, Where(m))
						}
					}
				}
			}
			for _, clause := range clauses {
				if !MatchWhere(metadata, clause) {
					return false
				}
			}
			continue
		}
		if !matchField(metadata[field], cond) {
			return false
		}
	}
	return true
}

func matchField(value interface{}, cond interface{}) bool {
	switch c := cond.(type) {
	case map[string]interface{}:
		for op, operand := range c {
			if !matchOp(value, op, operand) {
				return false
			}
		}
		return true
	default:
		return compareEqual(value, cond)
	}
}

func matchOp(value interface{}, op string, operand interface{}) bool {
	switch op {
	case "$in":
		items, ok := operand.([]interface{})
		if !ok {
			return false
		}
		for _, item := range items {
			if compareEqual(value, item) {
				return true
			}
		}
		return false
	case "$gte", "$gt", "$lte", "$lt":
		a, aok := toFloat(value)
		b, bok := toFloat(operand)
		if !aok || !bok {
			return false
		}
		switch op {
		case "$gte":
			return a >= b
		case "$gt":
			return a > b
		case "$lte":
			return a <= b
		case "$lt":
			return a < b
		}
	}
	return false
}

func compareEqual(a, b interface{}) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
