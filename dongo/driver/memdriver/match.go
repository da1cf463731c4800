package memdriver

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dongo-odm/dongo/dongo/driver"
)

// matchFilter evaluates a query tree against one document. The tree is
// either a flat conjunction of field conditions or a boolean "$and" /
// "$or" root over child trees.
func matchFilter(doc map[string]interface{}, filter map[string]interface{}) bool {
	for key, cond := range filter {
		switch key {
		case "$and":
			for _, child := range children(cond) {
				if !matchFilter(doc, child) {
					return false
				}
			}
		case "$or":
			matched := false
			for _, child := range children(cond) {
				if matchFilter(doc, child) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		default:
			if !matchField(doc, key, cond) {
				return false
			}
		}
	}
	return true
}

func children(cond interface{}) []map[string]interface{} {
	var out []map[string]interface{}
	switch list := cond.(type) {
	case []interface{}:
		for _, item := range list {
			if m, ok := item.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
	case []map[string]interface{}:
		out = list
	}
	return out
}

// matchField evaluates one field condition. cond is either an operator
// map like {"$gte": 25} or a literal value compared for equality.
func matchField(doc map[string]interface{}, path string, cond interface{}) bool {
	values, found := lookupPath(doc, path)
	if ops, ok := operatorMap(cond); ok {
		for op, arg := range ops {
			if !applyOperator(values, found, op, arg) {
				return false
			}
		}
		return true
	}
	return anyEqual(values, cond)
}

// operatorMap reports whether cond is a map whose keys are all
// "$"-prefixed operators.
func operatorMap(cond interface{}) (map[string]interface{}, bool) {
	m, ok := cond.(map[string]interface{})
	if !ok || len(m) == 0 {
		return nil, false
	}
	for key := range m {
		if !strings.HasPrefix(key, "$") {
			return nil, false
		}
	}
	return m, true
}

func applyOperator(values []interface{}, found bool, op string, arg interface{}) bool {
	switch op {
	case "$eq":
		return anyEqual(values, arg)
	case "$ne":
		return !anyEqual(values, arg)
	case "$gt", "$gte", "$lt", "$lte":
		for _, val := range values {
			cmp, ok := compareValues(val, arg)
			if !ok {
				continue
			}
			switch op {
			case "$gt":
				if cmp > 0 {
					return true
				}
			case "$gte":
				if cmp >= 0 {
					return true
				}
			case "$lt":
				if cmp < 0 {
					return true
				}
			case "$lte":
				if cmp <= 0 {
					return true
				}
			}
		}
		return false
	case "$in":
		for _, candidate := range listArg(arg) {
			if anyEqual(values, candidate) {
				return true
			}
		}
		return false
	case "$nin":
		for _, candidate := range listArg(arg) {
			if anyEqual(values, candidate) {
				return false
			}
		}
		return true
	case "$regex":
		pattern, ok := arg.(string)
		if !ok {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		for _, val := range values {
			if s, ok := val.(string); ok && re.MatchString(s) {
				return true
			}
		}
		return false
	case "$exists":
		want, ok := arg.(bool)
		if !ok {
			want = true
		}
		return found == want
	default:
		return false
	}
}

func listArg(arg interface{}) []interface{} {
	switch v := arg.(type) {
	case []interface{}:
		return v
	case []string:
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case []int:
		out := make([]interface{}, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out
	default:
		return []interface{}{arg}
	}
}

// lookupPath resolves a dotted path to its candidate values, fanning
// out across array elements the way the store's matcher does: a filter
// on "authors._dref" inspects each element of the "authors" array.
func lookupPath(doc map[string]interface{}, path string) ([]interface{}, bool) {
	current := []interface{}{doc}
	for _, seg := range strings.Split(path, ".") {
		var next []interface{}
		for _, node := range current {
			switch v := node.(type) {
			case map[string]interface{}:
				if val, ok := v[seg]; ok {
					next = append(next, val)
				}
			case []interface{}:
				for _, elem := range v {
					if m, ok := elem.(map[string]interface{}); ok {
						if val, ok := m[seg]; ok {
							next = append(next, val)
						}
					}
				}
			}
		}
		if len(next) == 0 {
			return nil, false
		}
		current = next
	}
	// A final array value matches both as a whole and element-wise.
	out := make([]interface{}, 0, len(current))
	for _, val := range current {
		out = append(out, val)
		if list, ok := val.([]interface{}); ok {
			out = append(out, list...)
		}
	}
	return out, true
}

func anyEqual(values []interface{}, want interface{}) bool {
	for _, val := range values {
		if valuesEqual(val, want) {
			return true
		}
	}
	return false
}

// valuesEqual compares for equality across numeric types; everything
// else falls back to deep equality.
func valuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := toFloat64(a); ok {
		if fb, ok := toFloat64(b); ok {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two values, reporting false for incomparable
// type combinations.
func compareValues(a, b interface{}) (int, bool) {
	if fa, ok := toFloat64(a); ok {
		if fb, ok := toFloat64(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return strings.Compare(sa, sb), true
		}
		return 0, false
	}
	if ta, ok := toTime(a); ok {
		if tb, ok := toTime(b); ok {
			switch {
			case ta.Before(tb):
				return -1, true
			case ta.After(tb):
				return 1, true
			}
			return 0, true
		}
	}
	return 0, false
}

func toFloat64(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

func toTime(val interface{}) (time.Time, bool) {
	t, ok := val.(time.Time)
	return t, ok
}

// sortDocuments orders docs by the sort spec. Documents missing a sort
// key order before documents that carry it, matching the store's
// missing-first ascending behavior.
func sortDocuments(docs []map[string]interface{}, fields []driver.SortField) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, f := range fields {
			vi, iok := lookupPath(docs[i], f.Key)
			vj, jok := lookupPath(docs[j], f.Key)
			if !iok && !jok {
				continue
			}
			if !iok {
				return !f.Descending
			}
			if !jok {
				return f.Descending
			}
			cmp, ok := compareValues(vi[0], vj[0])
			if !ok || cmp == 0 {
				continue
			}
			if f.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// applyUpdate mutates doc with an update descriptor ({"$set": ...},
// {"$inc": ...}), creating intermediate maps on dotted paths the way
// the server does. Reports whether anything changed.
func applyUpdate(doc map[string]interface{}, update map[string]interface{}) (bool, error) {
	changed := false
	for op, arg := range update {
		fields, ok := arg.(map[string]interface{})
		if !ok {
			return changed, fmt.Errorf("update operator %q wants a field map, got %T", op, arg)
		}
		switch op {
		case "$set":
			for path, val := range fields {
				if setDotted(doc, path, val) {
					changed = true
				}
			}
		case "$inc":
			for path, delta := range fields {
				if err := incDotted(doc, path, delta); err != nil {
					return changed, err
				}
				changed = true
			}
		case "$unset":
			for path := range fields {
				if unsetDotted(doc, path) {
					changed = true
				}
			}
		default:
			return changed, fmt.Errorf("unsupported update operator %q", op)
		}
	}
	return changed, nil
}

// setDotted writes val at a dotted path, materializing missing
// intermediate maps. Reports whether the stored value changed.
func setDotted(doc map[string]interface{}, path string, val interface{}) bool {
	segments := strings.Split(path, ".")
	cur := doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := cur[seg].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			cur[seg] = next
		}
		cur = next
	}
	last := segments[len(segments)-1]
	if existing, ok := cur[last]; ok && valuesEqual(existing, val) {
		return false
	}
	cur[last] = deepCopy(val)
	return true
}

func unsetDotted(doc map[string]interface{}, path string) bool {
	segments := strings.Split(path, ".")
	cur := doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := cur[seg].(map[string]interface{})
		if !ok {
			return false
		}
		cur = next
	}
	last := segments[len(segments)-1]
	if _, ok := cur[last]; !ok {
		return false
	}
	delete(cur, last)
	return true
}

func incDotted(doc map[string]interface{}, path string, delta interface{}) error {
	segments := strings.Split(path, ".")
	cur := doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := cur[seg].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			cur[seg] = next
		}
		cur = next
	}
	last := segments[len(segments)-1]
	fd, ok := toFloat64(delta)
	if !ok {
		return fmt.Errorf("$inc amount for %q is not numeric: %T", path, delta)
	}
	existing, ok := cur[last]
	if !ok {
		// Missing fields increment from zero, preserving the delta's type.
		cur[last] = delta
		return nil
	}
	fe, ok := toFloat64(existing)
	if !ok {
		return fmt.Errorf("$inc target %q is not numeric: %T", path, existing)
	}
	if isIntegral(existing) && isIntegral(delta) {
		cur[last] = int64(fe) + int64(fd)
	} else {
		cur[last] = fe + fd
	}
	return nil
}

func isIntegral(val interface{}) bool {
	switch val.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}
