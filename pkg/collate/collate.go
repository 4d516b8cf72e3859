// Package collate implements a deterministic total order across value types.
//
// Values order by type first: null < boolean < number < string < array < object.
// Strings compare by UTF-16 code unit, not by locale, so the order differs from
// a Unicode collation for non-ASCII text. Objects compare their keys in
// insertion order rather than sorted order.
package collate

import (
	"math"
	"unicode/utf8"

	"github.com/fnuworsu/gqldb/pkg/value"
)

// rank positions each type in the cross-type order. Arrays sit strictly
// between strings and objects.
func rank(v any) float64 {
	switch v.(type) {
	case nil:
		return 1
	case bool:
		return 2
	case float64:
		return 3
	case string:
		return 4
	case []any:
		return 4.5
	default:
		return 5
	}
}

// Compare returns -1, 0 or 1 as a sorts before, equal to or after b
func Compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return sign(ra - rb)
	}

	switch av := a.(type) {
	case nil:
		return 0
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
		return compareNumbers(av, b.(float64))
	case string:
		return compareStrings(av, b.(string))
	case []any:
		return compareArrays(av, b.([]any))
	case *value.Object:
		bo, _ := b.(*value.Object)
		return compareObjects(av, bo)
	}
	return 0
}

// Equal reports whether a and b collate equal
func Equal(a, b any) bool {
	return Compare(a, b) == 0
}

// compareNumbers orders NaN after every other number and equal to itself
func compareNumbers(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	}
	return sign(a - b)
}

func compareStrings(a, b string) int {
	if a == b {
		return 0
	}
	for a != "" && b != "" {
		ra, na := utf8.DecodeRuneInString(a)
		rb, nb := utf8.DecodeRuneInString(b)
		if ra != rb {
			ha, la := utf16Units(ra)
			hb, lb := utf16Units(rb)
			if ha != hb {
				return sign(float64(ha) - float64(hb))
			}
			return sign(float64(la) - float64(lb))
		}
		a, b = a[na:], b[nb:]
	}
	return sign(float64(len(a)) - float64(len(b)))
}

// utf16Units returns the leading and trailing UTF-16 code units of r.
// The trailing unit is zero for runes in the basic multilingual plane.
func utf16Units(r rune) (uint16, uint16) {
	if r < 0x10000 {
		return uint16(r), 0
	}
	r -= 0x10000
	return uint16(0xD800 + (r>>10)&0x3FF), uint16(0xDC00 + r&0x3FF)
}

func compareArrays(a, b []any) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return sign(float64(len(a) - len(b)))
}

func compareObjects(a, b *value.Object) int {
	ak, bk := a.Keys(), b.Keys()
	n := min(len(ak), len(bk))
	for i := 0; i < n; i++ {
		if c := compareStrings(ak[i], bk[i]); c != 0 {
			return c
		}
		if c := Compare(a.Value(ak[i]), b.Value(bk[i])); c != 0 {
			return c
		}
	}
	return sign(float64(len(ak) - len(bk)))
}

func sign(d float64) int {
	switch {
	case d < 0:
		return -1
	case d > 0:
		return 1
	}
	return 0
}
