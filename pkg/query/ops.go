package query

import (
	"math"

	"github.com/fnuworsu/gqldb/pkg/collate"
	"github.com/fnuworsu/gqldb/pkg/value"
)

// primitive reduces composite values to the string form they take in
// arithmetic and relational contexts
func primitive(v any) any {
	switch v.(type) {
	case []any, *value.Object:
		return value.ToString(v)
	}
	return v
}

func add(a, b any) any {
	pa, pb := primitive(a), primitive(b)
	_, sa := pa.(string)
	_, sb := pb.(string)
	if sa || sb {
		return value.ToString(pa) + value.ToString(pb)
	}
	return value.ToNumber(pa) + value.ToNumber(pb)
}

// relate compares strings by code unit when both sides are strings and
// numbers otherwise. ok is false when either number is NaN.
func relate(a, b any) (cmp int, ok bool) {
	pa, pb := primitive(a), primitive(b)
	sa, aIsString := pa.(string)
	sb, bIsString := pb.(string)
	if aIsString && bIsString {
		return collate.Compare(sa, sb), true
	}
	na, nb := value.ToNumber(pa), value.ToNumber(pb)
	if math.IsNaN(na) || math.IsNaN(nb) {
		return 0, false
	}
	switch {
	case na < nb:
		return -1, true
	case na > nb:
		return 1, true
	}
	return 0, true
}

// strictEqual requires the same type. Numbers use IEEE equality, so NaN is
// never equal to itself here; composite values are equal when they collate equal.
func strictEqual(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []any:
		_, ok := b.([]any)
		return ok && collate.Equal(a, b)
	case *value.Object:
		_, ok := b.(*value.Object)
		return ok && collate.Equal(a, b)
	}
	return false
}

func applyBinary(op string, a, b any) (any, bool) {
	switch op {
	case "+":
		return add(a, b), true
	case "-":
		return value.ToNumber(primitive(a)) - value.ToNumber(primitive(b)), true
	case "*":
		return value.ToNumber(primitive(a)) * value.ToNumber(primitive(b)), true
	case "/":
		return value.ToNumber(primitive(a)) / value.ToNumber(primitive(b)), true
	case "=", "is":
		return strictEqual(a, b), true
	case "!=", "<>":
		return !strictEqual(a, b), true
	case "<":
		c, ok := relate(a, b)
		return ok && c < 0, true
	case "<=":
		c, ok := relate(a, b)
		return ok && c <= 0, true
	case ">":
		c, ok := relate(a, b)
		return ok && c > 0, true
	case ">=":
		c, ok := relate(a, b)
		return ok && c >= 0, true
	case "and":
		if !value.Truthy(a) {
			return a, true
		}
		return b, true
	case "or":
		if value.Truthy(a) {
			return a, true
		}
		return b, true
	}
	return nil, false
}

func applyUnary(op string, v any) (any, bool) {
	switch op {
	case "-":
		return -value.ToNumber(primitive(v)), true
	case "not":
		return !value.Truthy(v), true
	}
	return nil, false
}
