// Package query - AST (Abstract Syntax Tree) type definitions
package query

// Expression is one node of a clause expression tree. The concrete
// types are *Literal, *Identifier, *FunctionCall, *BinaryOp and *UnaryOp.
type Expression interface {
	expressionNode()
}

// LiteralKind distinguishes literal values
type LiteralKind int

const (
	LiteralNumber LiteralKind = iota
	LiteralString
	LiteralBoolean
	LiteralConstant // bare constant; only null is defined
)

// Literal represents constant values
type Literal struct {
	Kind  LiteralKind
	Value any // float64, string, bool, or the constant's name
}

func (l *Literal) expressionNode() {}

// Identifier represents a column reference
type Identifier struct {
	Name string
}

func (i *Identifier) expressionNode() {}

// FunctionCall represents a scalar or aggregate function application
type FunctionCall struct {
	Name string
	Args []Expression
}

func (f *FunctionCall) expressionNode() {}

// BinaryOp represents infix operations (+, =, and, ...)
type BinaryOp struct {
	Op    string
	Left  Expression
	Right Expression
}

func (b *BinaryOp) expressionNode() {}

// UnaryOp represents prefix operations (-, not)
type UnaryOp struct {
	Op      string
	Operand Expression
}

func (u *UnaryOp) expressionNode() {}

// Column is a top-level SELECT expression with its output label
type Column struct {
	Expr  Expression
	Label string
}

// Walk visits expr and its descendants depth-first. Returning false
// from fn skips the children of the current node.
func Walk(expr Expression, fn func(Expression) bool) {
	if expr == nil || !fn(expr) {
		return
	}
	switch e := expr.(type) {
	case *FunctionCall:
		for _, arg := range e.Args {
			Walk(arg, fn)
		}
	case *BinaryOp:
		Walk(e.Left, fn)
		Walk(e.Right, fn)
	case *UnaryOp:
		Walk(e.Operand, fn)
	}
}

// Find reports whether any node under expr satisfies cond
func Find(expr Expression, cond func(Expression) bool) bool {
	found := false
	Walk(expr, func(e Expression) bool {
		if found {
			return false
		}
		if cond(e) {
			found = true
			return false
		}
		return true
	})
	return found
}
