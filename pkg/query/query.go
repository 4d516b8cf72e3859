package query

import (
	"github.com/fnuworsu/gqldb/pkg/value"
)

// Query holds the clauses of one GQL query
type Query struct {
	Select     string `json:"select,omitempty" yaml:"select,omitempty"`
	Where      string `json:"where,omitempty" yaml:"where,omitempty"`
	GroupBy    string `json:"groupBy,omitempty" yaml:"groupBy,omitempty"`
	Pivot      string `json:"pivot,omitempty" yaml:"pivot,omitempty"`
	Label      string `json:"label,omitempty" yaml:"label,omitempty"`
	Descending bool   `json:"descending,omitempty" yaml:"descending,omitempty"`
	Conflicts  bool   `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
}

// ParseInput accepts a Query, a *Query, or an options object keyed by
// clause name. Anything else, including options of the wrong type, is
// ErrUnrecognizedQuery.
func ParseInput(input any) (Query, error) {
	switch in := input.(type) {
	case Query:
		return in, nil
	case *Query:
		if in == nil {
			return Query{}, ErrUnrecognizedQuery
		}
		return *in, nil
	case map[string]any:
		return fromOptions(func(fn func(string, any) bool) {
			for k, v := range in {
				if !fn(k, v) {
					return
				}
			}
		})
	case *value.Object:
		if in == nil {
			return Query{}, ErrUnrecognizedQuery
		}
		return fromOptions(in.Range)
	}
	return Query{}, ErrUnrecognizedQuery
}

func fromOptions(each func(func(string, any) bool)) (Query, error) {
	var q Query
	valid := true
	each(func(key string, v any) bool {
		switch key {
		case "select":
			valid = setString(&q.Select, v)
		case "where":
			valid = setString(&q.Where, v)
		case "groupBy":
			valid = setString(&q.GroupBy, v)
		case "pivot":
			valid = setString(&q.Pivot, v)
		case "label":
			valid = setString(&q.Label, v)
		case "descending":
			valid = setBool(&q.Descending, v)
		case "conflicts":
			valid = setBool(&q.Conflicts, v)
		}
		return valid
	})
	if !valid {
		return Query{}, ErrUnrecognizedQuery
	}
	return q, nil
}

// Absent and null options leave the zero value
func setString(dst *string, v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	*dst = s
	return ok
}

func setBool(dst *bool, v any) bool {
	if v == nil {
		return true
	}
	b, ok := v.(bool)
	*dst = b
	return ok
}
