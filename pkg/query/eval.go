package query

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/fnuworsu/gqldb/pkg/value"
)

// evaluator walks one expression tree. members is either a single document
// or a whole group; identifiers always read the first member.
type evaluator struct {
	members []*value.Object
	fail    func(reason string) *Error
}

func newPredicateEvaluator(doc *value.Object) *evaluator {
	return &evaluator{members: []*value.Object{doc}, fail: parsingError}
}

func newProjectionEvaluator(members []*value.Object) *evaluator {
	return &evaluator{members: members, fail: selectError}
}

func (ev *evaluator) eval(expr Expression) (any, error) {
	switch e := expr.(type) {
	case *Literal:
		return ev.literal(e)

	case *Identifier:
		if len(ev.members) == 0 {
			return nil, nil
		}
		return ev.members[0].Value(e.Name), nil

	case *FunctionCall:
		return ev.call(e)

	case *BinaryOp:
		left, err := ev.eval(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := ev.eval(e.Right)
		if err != nil {
			return nil, err
		}
		out, ok := applyBinary(e.Op, left, right)
		if !ok {
			return nil, ev.fail("Unknown token type: " + e.Op)
		}
		return out, nil

	case *UnaryOp:
		operand, err := ev.eval(e.Operand)
		if err != nil {
			return nil, err
		}
		out, ok := applyUnary(e.Op, operand)
		if !ok {
			return nil, ev.fail("Unknown token type: " + e.Op)
		}
		return out, nil
	}
	return nil, ev.fail(fmt.Sprintf("Unknown expression %T", expr))
}

func (ev *evaluator) literal(l *Literal) (any, error) {
	if l.Kind != LiteralConstant {
		return l.Value, nil
	}
	if l.Value == "null" {
		return nil, nil
	}
	return nil, ev.fail(fmt.Sprintf("Unknown constant: %v", l.Value))
}

func (ev *evaluator) call(fc *FunctionCall) (any, error) {
	if agg, ok := aggregates[fc.Name]; ok {
		if len(fc.Args) != 1 {
			return nil, selectError(fmt.Sprintf("Aggregate function %s takes exactly one column", fc.Name))
		}
		id, ok := fc.Args[0].(*Identifier)
		if !ok {
			return nil, selectError(fmt.Sprintf("Aggregate function %s takes exactly one column", fc.Name))
		}
		return agg(ev.members, id.Name)
	}

	fn, ok := scalars[fc.Name]
	if !ok {
		return nil, selectError("Unrecognized function: " + fc.Name)
	}
	if len(fc.Args) != 1 {
		return nil, selectError(fmt.Sprintf("Function %s takes exactly one argument", fc.Name))
	}
	arg, err := ev.eval(fc.Args[0])
	if err != nil {
		return nil, err
	}
	return fn(arg), nil
}

// Casers are not safe for concurrent use, so each call builds its own
func toUpper(v any) any {
	if v == nil {
		return nil
	}
	return cases.Upper(language.Und).String(value.ToString(v))
}

func toLower(v any) any {
	if v == nil {
		return nil
	}
	return cases.Lower(language.Und).String(value.ToString(v))
}
