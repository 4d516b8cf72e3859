package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexer_BasicTokens(t *testing.T) {
	input := `name, salary > 700`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{TokenIdentifier, "name"},
		{TokenOperator, ","},
		{TokenIdentifier, "salary"},
		{TokenOperator, ">"},
		{TokenNumber, "700"},
		{TokenEnd, ""},
	}

	tokens, err := Tokenize(input)
	require.NoError(t, err)
	require.Len(t, tokens, len(tests))

	for i, tt := range tests {
		assert.Equal(t, tt.expectedType, tokens[i].Type, "test %d - tokentype wrong", i)
		assert.Equal(t, tt.expectedLiteral, tokens[i].Literal, "test %d - literal wrong", i)
	}
	assert.Equal(t, 700.0, tokens[4].Number)
}

func TestLexer_Keywords(t *testing.T) {
	tokens, err := Tokenize(`AND Or not IS True FALSE NULL Salary`)
	require.NoError(t, err)

	expected := []struct {
		typ     TokenType
		literal string
	}{
		{TokenKeyword, "and"},
		{TokenKeyword, "or"},
		{TokenKeyword, "not"},
		{TokenKeyword, "is"},
		{TokenBoolean, "true"},
		{TokenBoolean, "false"},
		{TokenConstant, "null"},
		{TokenIdentifier, "salary"},
		{TokenEnd, ""},
	}
	require.Len(t, tokens, len(expected))
	for i, e := range expected {
		assert.Equal(t, e.typ, tokens[i].Type, "test %d", i)
		assert.Equal(t, e.literal, tokens[i].Literal, "test %d", i)
	}
	assert.True(t, tokens[4].Bool)
	assert.False(t, tokens[5].Bool)
}

func TestLexer_Operators(t *testing.T) {
	tokens, err := Tokenize(`a<=b<>c>=d!=e<f>g=h+i-j*k/l(m)`)
	require.NoError(t, err)

	var ops []string
	for _, tok := range tokens {
		if tok.Type == TokenOperator {
			ops = append(ops, tok.Literal)
		}
	}
	assert.Equal(t, []string{"<=", "<>", ">=", "!=", "<", ">", "=", "+", "-", "*", "/", "(", ")"}, ops)
}

func TestLexer_Quotes(t *testing.T) {
	tokens, err := Tokenize("`Hire Date`, 'It''s', \"AND x\"")
	require.NoError(t, err)

	require.Len(t, tokens, 7)
	assert.Equal(t, TokenIdentifier, tokens[0].Type)
	assert.Equal(t, "Hire Date", tokens[0].Literal)
	assert.Equal(t, TokenString, tokens[2].Type)
	assert.Equal(t, "It", tokens[2].Literal)
	assert.Equal(t, TokenString, tokens[3].Type)
	assert.Equal(t, "s", tokens[3].Literal)
	assert.Equal(t, TokenString, tokens[5].Type)
	assert.Equal(t, "AND x", tokens[5].Literal)
}

func TestLexer_FlushBeforeQuote(t *testing.T) {
	tokens, err := Tokenize(`name'x'`)
	require.NoError(t, err)

	require.Len(t, tokens, 3)
	assert.Equal(t, TokenIdentifier, tokens[0].Type)
	assert.Equal(t, "name", tokens[0].Literal)
	assert.Equal(t, TokenString, tokens[1].Type)
	assert.Equal(t, "x", tokens[1].Literal)
}

func TestLexer_Numbers(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"0", 0},
		{"42", 42},
		{"3.25", 3.25},
		{".5", 0.5},
		{"1e3", 1000},
	}

	for _, tt := range tests {
		tokens, err := Tokenize(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, TokenNumber, tokens[0].Type, tt.input)
		assert.Equal(t, tt.expected, tokens[0].Number, tt.input)
	}
}

func TestLexer_Positions(t *testing.T) {
	tokens, err := Tokenize(`ab  >= 'x'`)
	require.NoError(t, err)

	assert.Equal(t, 0, tokens[0].Pos)
	assert.Equal(t, 4, tokens[1].Pos)
	assert.Equal(t, 7, tokens[2].Pos)
	assert.Equal(t, 10, tokens[3].Pos)
}

func TestLexer_Errors(t *testing.T) {
	tests := []struct {
		input  string
		reason string
		pos    int
	}{
		{`name = 'abc`, "string needs a closing ' on character 7.", 7},
		{`"abc`, `string needs a closing " on character 0.`, 0},
		{"`col", "identifier needs a closing ` on character 0.", 0},
		{`a ! b`, "'!' not followed by '=' on character 2.", 2},
		{`x = 1.2.3`, `invalid number literal "1.2.3" on character 4.`, 4},
	}

	for _, tt := range tests {
		_, err := Tokenize(tt.input)
		require.Error(t, err, tt.input)

		var qerr *Error
		require.True(t, errors.As(err, &qerr), tt.input)
		assert.Equal(t, KindTokenizing, qerr.Kind, tt.input)
		assert.Equal(t, tt.reason, qerr.Reason, tt.input)
		assert.Equal(t, tt.pos, qerr.Pos, tt.input)
		assert.Equal(t, 400, qerr.Status)
		assert.ErrorIs(t, err, ErrTokenizing)
	}
}

func TestLexer_Empty(t *testing.T) {
	tokens, err := Tokenize("   ")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, TokenEnd, tokens[0].Type)
}
