// Package query - Parser implementation for GQL clauses
package query

import (
	"fmt"
	"regexp"
)

// Binding powers. Higher binds tighter.
const (
	bpNone       = 0
	bpGroup      = 20 // parenthesised expressions, call arguments, comma segments
	bpLogical    = 30
	bpComparison = 40
	bpAdditive   = 50
	bpMultiply   = 60
	bpPrefix     = 70
)

type nudFunc func(p *Parser, tok Token) (Expression, error)
type ledFunc func(p *Parser, tok Token, left Expression) (Expression, error)

// production describes how a token parses in null (prefix) and left (infix) position
type production struct {
	lbp int
	nud nudFunc
	led ledFunc
}

type symbolTable map[string]*production

// callPattern decides which identifiers followed by "(" parse as calls
var callPattern = regexp.MustCompile(`max|average|min|sum|count|lower|upper`)

// newSymbolTable builds the productions for one parse. Tables are never shared.
func newSymbolTable() symbolTable {
	st := symbolTable{}

	st.infix("+", bpAdditive)
	st.infix("-", bpAdditive)
	st.infix("*", bpMultiply)
	st.infix("/", bpMultiply)

	st.prefix("-", bpPrefix)

	for _, op := range []string{"=", "<", "<=", ">", ">=", "!=", "<>"} {
		st.infix(op, bpComparison)
	}

	st.infix("and", bpLogical)
	st.infix("or", bpLogical)
	st.prefix("not", bpPrefix)

	st.symbol(")", nil, bpNone, nil)
	st.symbol(TokenEnd.String(), nil, bpNone, nil)

	st.symbol("(", parseGroup, bpNone, nil)
	st.symbol(TokenNumber.String(), parseLiteral, bpNone, nil)
	st.symbol(TokenBoolean.String(), parseLiteral, bpNone, nil)
	st.symbol(TokenConstant.String(), parseLiteral, bpNone, nil)
	st.symbol(TokenString.String(), parseLiteral, bpNone, nil)
	st.symbol(TokenIdentifier.String(), parseIdentifier, bpNone, nil)

	// A comma only separates independent expressions
	st.symbol(",", func(p *Parser, _ Token) (Expression, error) {
		return p.expression(bpGroup)
	}, bpNone, nil)

	st.symbol("is", nil, bpComparison, parseIs)

	return st
}

// symbol registers or extends a production, keeping parts already defined
func (st symbolTable) symbol(id string, nud nudFunc, lbp int, led ledFunc) {
	prod, ok := st[id]
	if !ok {
		prod = &production{}
		st[id] = prod
	}
	if prod.lbp == 0 {
		prod.lbp = lbp
	}
	if prod.nud == nil {
		prod.nud = nud
	}
	if prod.led == nil {
		prod.led = led
	}
}

func (st symbolTable) infix(id string, bp int) {
	st.symbol(id, nil, bp, func(p *Parser, tok Token, left Expression) (Expression, error) {
		right, err := p.expression(bp)
		if err != nil {
			return nil, err
		}
		return &BinaryOp{Op: id, Left: left, Right: right}, nil
	})
}

func (st symbolTable) prefix(id string, bp int) {
	st.symbol(id, func(p *Parser, tok Token) (Expression, error) {
		operand, err := p.expression(bp)
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: id, Operand: operand}, nil
	}, bpNone, nil)
}

// Parser is an operator-precedence parser over a token stream
type Parser struct {
	tokens  []Token
	index   int
	symbols symbolTable
}

// NewParser creates a parser with its own symbol table
func NewParser(tokens []Token) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != TokenEnd {
		tokens = append(tokens, Token{Type: TokenEnd})
	}
	return &Parser{
		tokens:  tokens,
		symbols: newSymbolTable(),
	}
}

// Parse parses a comma-separated list of independent expressions
func Parse(tokens []Token) ([]Expression, error) {
	return NewParser(tokens).Parse()
}

// ParseClause tokenizes and parses clause text
func ParseClause(text string) ([]Expression, error) {
	tokens, err := Tokenize(text)
	if err != nil {
		return nil, err
	}
	return Parse(tokens)
}

// Parse returns one expression per top-level segment, in order
func (p *Parser) Parse() ([]Expression, error) {
	var tree []Expression
	for {
		expr, err := p.expression(bpNone)
		if err != nil {
			return nil, err
		}
		tree = append(tree, expr)
		if p.peek().Type == TokenEnd {
			return tree, nil
		}
	}
}

// advance consumes the next token. At the end of the stream it keeps
// returning the end token.
func (p *Parser) advance() Token {
	tok := p.peek()
	if p.index < len(p.tokens) {
		p.index++
	}
	return tok
}

func (p *Parser) peek() Token {
	if p.index < len(p.tokens) {
		return p.tokens[p.index]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) peekIs(t TokenType, literal string) bool {
	tok := p.peek()
	return tok.Type == t && tok.Literal == literal
}

func (p *Parser) lookup(tok Token) *production {
	return p.symbols[tok.symbol()]
}

// expression is the Pratt loop: one null-context production followed by
// left-context productions while the next token binds tighter than rbp
func (p *Parser) expression(rbp int) (Expression, error) {
	tok := p.advance()
	prod := p.lookup(tok)
	if prod == nil || prod.nud == nil {
		return nil, unexpectedToken(tok)
	}
	left, err := prod.nud(p, tok)
	if err != nil {
		return nil, err
	}

	for rbp < p.peekPower() {
		tok = p.advance()
		prod = p.lookup(tok)
		if prod.led == nil {
			return nil, unexpectedToken(tok)
		}
		left, err = prod.led(p, tok, left)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *Parser) peekPower() int {
	if prod := p.lookup(p.peek()); prod != nil {
		return prod.lbp
	}
	return bpNone
}

func unexpectedToken(tok Token) error {
	return parsingError("Unexpected token: " + tok.symbol())
}

func parseLiteral(_ *Parser, tok Token) (Expression, error) {
	switch tok.Type {
	case TokenNumber:
		return &Literal{Kind: LiteralNumber, Value: tok.Number}, nil
	case TokenString:
		return &Literal{Kind: LiteralString, Value: tok.Literal}, nil
	case TokenBoolean:
		return &Literal{Kind: LiteralBoolean, Value: tok.Bool}, nil
	case TokenConstant:
		return &Literal{Kind: LiteralConstant, Value: tok.Literal}, nil
	}
	return nil, unexpectedToken(tok)
}

func parseGroup(p *Parser, _ Token) (Expression, error) {
	expr, err := p.expression(bpGroup)
	if err != nil {
		return nil, err
	}
	if !p.peekIs(TokenOperator, ")") {
		return nil, parsingError("Expected closing parenthesis ')'")
	}
	p.advance()
	return expr, nil
}

// parseIs rewrites "is not" to "!="
func parseIs(p *Parser, _ Token, left Expression) (Expression, error) {
	op := "is"
	if p.peekIs(TokenKeyword, "not") {
		op = "!="
		p.advance()
	}
	right, err := p.expression(bpComparison)
	if err != nil {
		return nil, err
	}
	return &BinaryOp{Op: op, Left: left, Right: right}, nil
}

// parseIdentifier returns a plain identifier, or a call when the name looks
// like a function and is directly followed by "("
func parseIdentifier(p *Parser, tok Token) (Expression, error) {
	if !callPattern.MatchString(tok.Literal) || !p.peekIs(TokenOperator, "(") {
		return &Identifier{Name: tok.Literal}, nil
	}
	p.advance() // (

	call := &FunctionCall{Name: tok.Literal}
	if p.peekIs(TokenOperator, ")") {
		p.advance()
		return call, nil
	}

	for {
		if p.peek().Type == TokenEnd {
			break
		}
		arg, err := p.expression(bpGroup)
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)

		switch {
		case p.peekIs(TokenOperator, ")"):
			p.advance()
			return call, nil
		case p.peekIs(TokenOperator, ","):
			p.advance()
		default:
			return nil, parsingError(fmt.Sprintf("Expected closing parenthesis for function %s", call.Name))
		}
	}
	return nil, parsingError(fmt.Sprintf("Expected closing parenthesis for function %s", call.Name))
}
