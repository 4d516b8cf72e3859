package query

import (
	"math"
	"testing"

	"github.com/fnuworsu/gqldb/pkg/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalOn(t *testing.T, input string, doc *value.Object) any {
	t.Helper()
	v, err := newProjectionEvaluator([]*value.Object{doc}).eval(parseOne(t, input))
	require.NoError(t, err, input)
	return v
}

func TestEval_Operators(t *testing.T) {
	doc := value.ObjectOf("n", 10, "s", "abc", "num", "5", "zero", 0, "flag", true, "list", []any{1, 2})

	tests := []struct {
		input    string
		expected any
	}{
		{"n + 1", 11.0},
		{"n - 1", 9.0},
		{"n * 2", 20.0},
		{"n / 4", 2.5},
		{"-n", -10.0},
		{"s + 1", "abc1"},
		{"1 + s", "1abc"},
		{"num + 1", "51"},
		{"num - 1", 4.0},
		{"num * 2", 10.0},
		{"flag + 1", 2.0},
		{"missing + 1", 1.0},
		{"list + 'x'", "1,2x"},
		{"n = 10", true},
		{"n is 10", true},
		{"num = 5", false},
		{"n != 10", false},
		{"n <> 11", true},
		{"missing = null", true},
		{"missing is not null", false},
		{"n > 9", true},
		{"n >= 10", true},
		{"n < 10", false},
		{"n <= 10", true},
		{"num < 10", true},
		{"s > 'abb'", true},
		{"s < 'b'", true},
		{"s > 1", false},
		{"s < 1", false},
		{"n > 1 and s", "abc"},
		{"zero and s", 0.0},
		{"zero or s", "abc"},
		{"n or s", 10.0},
		{"not zero", true},
		{"not s", false},
		{"upper(s)", "ABC"},
		{"lower('ÀÉÎ')", "àéî"},
		{"upper(n)", "10"},
		{"upper(missing)", nil},
		{"upper('straße')", "STRASSE"},
		{"null", nil},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, evalOn(t, tt.input, doc), tt.input)
	}
}

func TestEval_DivisionByZero(t *testing.T) {
	doc := value.ObjectOf("n", 1, "z", 0)

	assert.Equal(t, math.Inf(1), evalOn(t, "n / z", doc))
	v := evalOn(t, "z / z", doc).(float64)
	assert.True(t, math.IsNaN(v))
}

func TestEval_StrictEqualComposite(t *testing.T) {
	a := value.ObjectOf("k", 1)
	assert.True(t, strictEqual([]any{1.0, "x"}, []any{1.0, "x"}))
	assert.False(t, strictEqual([]any{1.0}, []any{"1"}))
	assert.True(t, strictEqual(a, a.Clone()))
	assert.False(t, strictEqual(a, []any{}))
	assert.False(t, strictEqual(math.NaN(), math.NaN()))
	assert.False(t, strictEqual(nil, false))
}

func TestEval_IdentifierReadsFirstMember(t *testing.T) {
	members := []*value.Object{
		value.ObjectOf("dept", "eng", "salary", 10),
		value.ObjectOf("dept", "ops", "salary", 20),
	}
	v, err := newProjectionEvaluator(members).eval(&Identifier{Name: "dept"})
	require.NoError(t, err)
	assert.Equal(t, "eng", v)

	v, err = newProjectionEvaluator(nil).eval(&Identifier{Name: "dept"})
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestEval_Errors(t *testing.T) {
	doc := value.ObjectOf("n", 1)

	_, err := newPredicateEvaluator(doc).eval(&Literal{Kind: LiteralConstant, Value: "undefined"})
	assert.ErrorIs(t, err, &Error{Kind: KindParsing, Reason: "Unknown constant: undefined"})

	_, err = newProjectionEvaluator([]*value.Object{doc}).eval(&FunctionCall{Name: "median", Args: []Expression{&Identifier{Name: "n"}}})
	assert.ErrorIs(t, err, &Error{Kind: KindSelect, Reason: "Unrecognized function: median"})

	_, err = newPredicateEvaluator(doc).eval(&BinaryOp{Op: "^", Left: &Identifier{Name: "n"}, Right: &Identifier{Name: "n"}})
	assert.ErrorIs(t, err, ErrParsing)
}

func TestAggregates(t *testing.T) {
	members := []*value.Object{
		value.ObjectOf("v", 4, "s", "b", "z", 0),
		value.ObjectOf("v", 0, "s", "", "z", 0),
		value.ObjectOf("v", 2, "s", "c", "z", false),
		value.ObjectOf("s", "a"),
		value.ObjectOf("v", 6, "s", nil),
	}

	tests := []struct {
		name     string
		field    string
		expected any
	}{
		{"count", "v", 3.0},
		{"count", "s", 3.0},
		{"count", "z", 0.0},
		{"sum", "v", 12.0},
		{"sum", "z", 0.0},
		{"average", "v", 4.0},
		{"average", "z", nil},
		{"max", "v", 6.0},
		{"min", "v", 2.0},
		{"max", "s", "c"},
		{"min", "s", "a"},
		{"max", "z", nil},
	}

	for _, tt := range tests {
		got, err := aggregates[tt.name](members, tt.field)
		require.NoError(t, err, "%s(%s)", tt.name, tt.field)
		assert.Equal(t, tt.expected, got, "%s(%s)", tt.name, tt.field)
	}
}

func TestAggregates_NonNumeric(t *testing.T) {
	members := []*value.Object{
		value.ObjectOf("salary", 1000),
		value.ObjectOf("salary", "500"),
	}

	_, err := aggSum(members, "salary")
	assert.ErrorIs(t, err, &Error{Kind: KindSelect, Reason: "All values being summed must be numbers, but 500 is not."})

	_, err = aggAverage(members, "salary")
	assert.ErrorIs(t, err, &Error{Kind: KindSelect, Reason: "All values being averaged must be numbers, but 500 is not."})

	// max and min compare whatever they find
	got, err := aggMax(members, "salary")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, got)
}
