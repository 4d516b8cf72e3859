package query

import (
	"strings"

	"github.com/fnuworsu/gqldb/pkg/value"
)

// Render prints an expression in the canonical form used for default
// column labels and for matching label clause entries
func Render(expr Expression) string {
	switch e := expr.(type) {
	case *Literal:
		switch e.Kind {
		case LiteralNumber:
			return value.FormatNumber(e.Value.(float64))
		case LiteralBoolean:
			if e.Value.(bool) {
				return "true"
			}
			return "false"
		default:
			s, _ := e.Value.(string)
			return s
		}
	case *Identifier:
		return e.Name
	case *FunctionCall:
		if isAggregate(e.Name) && len(e.Args) > 0 {
			return e.Name + "(" + argName(e.Args[0]) + ")"
		}
		args := make([]string, len(e.Args))
		for i, arg := range e.Args {
			args[i] = Render(arg)
		}
		return e.Name + "(" + strings.Join(args, ", ") + ")"
	case *BinaryOp:
		return Render(e.Left) + " " + e.Op + " " + Render(e.Right)
	case *UnaryOp:
		return e.Op + " " + Render(e.Operand)
	}
	return ""
}

// argName is the field an aggregate reduces over
func argName(expr Expression) string {
	if id, ok := expr.(*Identifier); ok {
		return id.Name
	}
	return Render(expr)
}
