package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseOne(t *testing.T, input string) Expression {
	t.Helper()
	tree, err := ParseClause(input)
	require.NoError(t, err, input)
	require.Len(t, tree, 1, input)
	return tree[0]
}

func TestParser_Literals(t *testing.T) {
	assert.Equal(t, &Literal{Kind: LiteralNumber, Value: 42.0}, parseOne(t, "42"))
	assert.Equal(t, &Literal{Kind: LiteralString, Value: "hi"}, parseOne(t, "'hi'"))
	assert.Equal(t, &Literal{Kind: LiteralBoolean, Value: true}, parseOne(t, "true"))
	assert.Equal(t, &Literal{Kind: LiteralConstant, Value: "null"}, parseOne(t, "null"))
	assert.Equal(t, &Identifier{Name: "salary"}, parseOne(t, "salary"))
}

func TestParser_Precedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a + b * c", "(a + (b * c))"},
		{"a * b + c", "((a * b) + c)"},
		{"a - b - c", "((a - b) - c)"},
		{"a + b > c", "((a + b) > c)"},
		{"a > 1 and b < 2", "((a > 1) and (b < 2))"},
		{"a or b and c", "((a or b) and c)"},
		{"not a = b", "((not a) = b)"},
		{"-a * b", "((- a) * b)"},
		{"(a + b) * c", "((a + b) * c)"},
		{"a = 1 or (b = 2 and c = 3)", "((a = 1) or ((b = 2) and (c = 3)))"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, groupString(parseOne(t, tt.input)), tt.input)
	}
}

// groupString prints a tree with explicit parentheses
func groupString(expr Expression) string {
	switch e := expr.(type) {
	case *BinaryOp:
		return "(" + groupString(e.Left) + " " + e.Op + " " + groupString(e.Right) + ")"
	case *UnaryOp:
		return "(" + e.Op + " " + groupString(e.Operand) + ")"
	default:
		return Render(expr)
	}
}

func TestParser_IsNot(t *testing.T) {
	expr := parseOne(t, "name is not null")

	bin, ok := expr.(*BinaryOp)
	require.True(t, ok)
	assert.Equal(t, "!=", bin.Op)
	assert.Equal(t, &Identifier{Name: "name"}, bin.Left)
	assert.Equal(t, &Literal{Kind: LiteralConstant, Value: "null"}, bin.Right)

	bin = parseOne(t, "name is null").(*BinaryOp)
	assert.Equal(t, "is", bin.Op)
}

func TestParser_CommaSeparated(t *testing.T) {
	tree, err := ParseClause("name, salary * 2, upper(dept)")
	require.NoError(t, err)
	require.Len(t, tree, 3)

	assert.Equal(t, &Identifier{Name: "name"}, tree[0])
	assert.IsType(t, &BinaryOp{}, tree[1])
	assert.IsType(t, &FunctionCall{}, tree[2])
}

func TestParser_FunctionCalls(t *testing.T) {
	call, ok := parseOne(t, "SUM(salary)").(*FunctionCall)
	require.True(t, ok)
	assert.Equal(t, "sum", call.Name)
	assert.Equal(t, []Expression{&Identifier{Name: "salary"}}, call.Args)

	call = parseOne(t, "lower(upper(name))").(*FunctionCall)
	assert.Equal(t, "lower", call.Name)
	assert.Equal(t, "upper", call.Args[0].(*FunctionCall).Name)

	call = parseOne(t, "count()").(*FunctionCall)
	assert.Empty(t, call.Args)

	call = parseOne(t, "max(a, b)").(*FunctionCall)
	assert.Len(t, call.Args, 2)
}

func TestParser_CallRecognition(t *testing.T) {
	// Names without a function word stay identifiers, and the paren starts
	// a new top-level expression
	tree, err := ParseClause("foo (1)")
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, &Identifier{Name: "foo"}, tree[0])
	assert.Equal(t, &Literal{Kind: LiteralNumber, Value: 1.0}, tree[1])

	// Names that contain a function word parse as calls
	call, ok := parseOne(t, "maximum(a)").(*FunctionCall)
	require.True(t, ok)
	assert.Equal(t, "maximum", call.Name)

	// A function word without a paren is an identifier
	assert.Equal(t, &Identifier{Name: "count"}, parseOne(t, "count"))
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		input  string
		reason string
	}{
		{"(a + b", "Expected closing parenthesis ')'"},
		{"sum(a", "Expected closing parenthesis for function sum"},
		{"sum(a b)", "Expected closing parenthesis for function sum"},
		{"a +", "Unexpected token: (end)"},
		{")", "Unexpected token: )"},
		{"", "Unexpected token: (end)"},
		{"a and", "Unexpected token: (end)"},
		{"sum(,)", "Unexpected token: )"},
	}

	for _, tt := range tests {
		_, err := ParseClause(tt.input)
		require.Error(t, err, tt.input)

		var qerr *Error
		require.True(t, errors.As(err, &qerr), tt.input)
		assert.Equal(t, KindParsing, qerr.Kind, tt.input)
		assert.Equal(t, tt.reason, qerr.Reason, tt.input)
	}
}

func TestParser_IndependentTables(t *testing.T) {
	p1 := NewParser([]Token{{Type: TokenIdentifier, Literal: "a"}})
	p2 := NewParser([]Token{{Type: TokenIdentifier, Literal: "b"}})

	p1.symbols["a"] = &production{}
	assert.NotContains(t, p2.symbols, "a")
}

func TestRender(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"name", "name"},
		{"`hire date`", "hire date"},
		{"salary * 2", "salary * 2"},
		{"sum(salary)", "sum(salary)"},
		{"upper(name)", "upper(name)"},
		{"-a", "- a"},
		{"not done", "not done"},
		{"'x'", "x"},
		{"1.50", "1.5"},
		{"true", "true"},
		{"null", "null"},
		{"a is not null", "a != null"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Render(parseOne(t, tt.input)), tt.input)
	}
}
