package query

import (
	"fmt"

	"github.com/fnuworsu/gqldb/pkg/value"
)

// aggregateFunc reduces a document sequence over one field. Falsy field
// values are skipped by every aggregate.
type aggregateFunc func(members []*value.Object, field string) (any, error)

var aggregates = map[string]aggregateFunc{
	"count":   aggCount,
	"sum":     aggSum,
	"average": aggAverage,
	"max":     aggMax,
	"min":     aggMin,
}

var scalars = map[string]func(any) any{
	"upper": toUpper,
	"lower": toLower,
}

func isAggregate(name string) bool {
	_, ok := aggregates[name]
	return ok
}

func isScalar(name string) bool {
	_, ok := scalars[name]
	return ok
}

func aggCount(members []*value.Object, field string) (any, error) {
	n := 0
	for _, doc := range members {
		if value.Truthy(doc.Value(field)) {
			n++
		}
	}
	return float64(n), nil
}

func aggSum(members []*value.Object, field string) (any, error) {
	total, _, err := accumulate(members, field, "summed")
	if err != nil {
		return nil, err
	}
	return total, nil
}

func aggAverage(members []*value.Object, field string) (any, error) {
	total, n, err := accumulate(members, field, "averaged")
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return total / float64(n), nil
}

func accumulate(members []*value.Object, field, verb string) (float64, int, error) {
	var total float64
	n := 0
	for _, doc := range members {
		v := doc.Value(field)
		if !value.Truthy(v) {
			continue
		}
		num, ok := v.(float64)
		if !ok {
			return 0, 0, selectError(fmt.Sprintf("All values being %s must be numbers, but %s is not.", verb, value.ToString(v)))
		}
		total += num
		n++
	}
	return total, n, nil
}

func aggMax(members []*value.Object, field string) (any, error) {
	return extreme(members, field, 1), nil
}

func aggMin(members []*value.Object, field string) (any, error) {
	return extreme(members, field, -1), nil
}

// extreme keeps the first truthy value and replaces it whenever a later one
// compares in the wanted direction under the relational operators
func extreme(members []*value.Object, field string, want int) any {
	var best any
	for _, doc := range members {
		v := doc.Value(field)
		if !value.Truthy(v) {
			continue
		}
		if best == nil {
			best = v
			continue
		}
		if c, ok := relate(v, best); ok && c == want {
			best = v
		}
	}
	return best
}
