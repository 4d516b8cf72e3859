package query

import (
	"strings"

	"github.com/fnuworsu/gqldb/pkg/value"
)

// Strategy is the execution shape chosen for a SELECT clause
type Strategy int

const (
	StrategyAllColumns Strategy = iota
	StrategyProjection
	StrategyAggregate
	StrategyPivot
)

func (s Strategy) String() string {
	switch s {
	case StrategyAllColumns:
		return "all-columns"
	case StrategyProjection:
		return "projection"
	case StrategyAggregate:
		return "aggregate"
	case StrategyPivot:
		return "pivot"
	}
	return "unknown"
}

type predicateFunc func(doc *value.Object) (bool, error)
type keyFunc func(doc *value.Object) []any
type selectFunc func(members []*value.Object) ([]*value.Object, error)

// Plan is a compiled query, ready to run against any number of scans
type Plan struct {
	query    Query
	strategy Strategy
	columns  []Column
	where    predicateFunc
	key      keyFunc
	reduce   selectFunc
}

// Strategy reports how the SELECT clause will be executed
func (p *Plan) Strategy() Strategy { return p.strategy }

// Columns returns the labelled top-level SELECT expressions
func (p *Plan) Columns() []Column { return p.columns }

// Compile validates every clause and builds the executable closures.
// Nothing here touches a store.
func Compile(q Query) (*Plan, error) {
	plan := &Plan{query: q}

	sel, err := compileSelect(q, plan)
	if err != nil {
		return nil, err
	}
	plan.reduce = sel

	if plan.where, err = CompileWhere(q.Where); err != nil {
		return nil, err
	}
	plan.key = CompileGroupBy(q.GroupBy)
	return plan, nil
}

// CompileWhere builds the row filter. An absent clause keeps every document.
// Only the first top-level expression is used.
func CompileWhere(text string) (predicateFunc, error) {
	if strings.TrimSpace(text) == "" {
		return func(*value.Object) (bool, error) { return true, nil }, nil
	}

	tree, err := ParseClause(text)
	if err != nil {
		return nil, err
	}
	expr := tree[0]

	var bad error
	Walk(expr, func(e Expression) bool {
		fc, ok := e.(*FunctionCall)
		if !ok || bad != nil {
			return bad == nil
		}
		switch {
		case isAggregate(fc.Name):
			bad = parsingError("Aggregate functions are not allowed in a where clause: " + fc.Name)
		case !isScalar(fc.Name):
			bad = parsingError("Unrecognized function: " + fc.Name)
		}
		return bad == nil
	})
	if bad != nil {
		return nil, bad
	}

	return func(doc *value.Object) (bool, error) {
		v, err := newPredicateEvaluator(doc).eval(expr)
		if err != nil {
			return false, err
		}
		return value.Truthy(v), nil
	}, nil
}

// CompileGroupBy builds the key extractor. Without a clause every document
// gets the empty key and falls in one group.
func CompileGroupBy(text string) keyFunc {
	columns := identifierList(text)
	return func(doc *value.Object) []any {
		key := make([]any, len(columns))
		for i, col := range columns {
			key[i] = doc.Value(col)
		}
		return key
	}
}

// identifierList splits a comma-separated column list. Column names are
// not parsed as expressions; one pair of backquotes per name is removed.
func identifierList(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	parts := strings.Split(text, ",")
	columns := make([]string, 0, len(parts))
	for _, part := range parts {
		columns = append(columns, unquote(strings.TrimSpace(part)))
	}
	return columns
}

func unquote(id string) string {
	open := strings.IndexByte(id, '`')
	if open < 0 {
		return id
	}
	closing := strings.IndexByte(id[open+1:], '`')
	if closing < 0 {
		return id
	}
	closing += open + 1
	return id[:open] + id[open+1:closing] + id[closing+1:]
}

func compileSelect(q Query, plan *Plan) (selectFunc, error) {
	if text := strings.TrimSpace(q.Select); text == "" || text == "*" {
		if strings.TrimSpace(q.Pivot) != "" || strings.TrimSpace(q.GroupBy) != "" {
			return nil, selectError("If a pivot or group by is present, select columns must be specified explicitly.")
		}
		plan.strategy = StrategyAllColumns
		return selectAll, nil
	}

	columns, err := labelledColumns(q.Select, q.Label)
	if err != nil {
		return nil, err
	}
	if err := validateFunctions(columns); err != nil {
		return nil, err
	}
	plan.columns = columns

	pivot := identifierList(q.Pivot)
	if !anyAggregate(columns) && len(pivot) == 0 {
		plan.strategy = StrategyProjection
		return projection(columns), nil
	}

	groupBy := identifierList(q.GroupBy)
	if ungroupedIdentifier(columns, groupBy) {
		return nil, selectError("If an aggregation function is used in the select clause, all identifiers in the select clause must be wrapped by an aggregation function or appear in the group-by clause.")
	}

	if len(pivot) == 0 {
		plan.strategy = StrategyAggregate
		return aggregateRow(columns), nil
	}

	if pivotOverlap(pivot, groupBy, columns) {
		return nil, pivotError("Columns that appear in the pivot clause may not appear in the group by or select clauses.")
	}
	plan.strategy = StrategyPivot
	return pivotRow(columns, pivot), nil
}

// labelledColumns parses the SELECT list and applies the label clause,
// which alternates an expression with its label
func labelledColumns(selectText, labelText string) ([]Column, error) {
	labels := map[string]string{}
	if strings.TrimSpace(labelText) != "" {
		pairs, err := ParseClause(labelText)
		if err != nil {
			return nil, err
		}
		if len(pairs)%2 != 0 {
			return nil, parsingError("Label clause must contain pairs of expression and label")
		}
		for i := 1; i < len(pairs); i += 2 {
			labels[Render(pairs[i-1])] = Render(pairs[i])
		}
	}

	tree, err := ParseClause(selectText)
	if err != nil {
		return nil, err
	}
	columns := make([]Column, len(tree))
	for i, expr := range tree {
		key := Render(expr)
		label, ok := labels[key]
		if !ok || label == "" {
			label = key
		}
		columns[i] = Column{Expr: expr, Label: label}
	}
	return columns, nil
}

// validateFunctions rejects unknown names and aggregates that are not
// applied to exactly one bare column
func validateFunctions(columns []Column) error {
	var bad error
	for _, col := range columns {
		Walk(col.Expr, func(e Expression) bool {
			fc, ok := e.(*FunctionCall)
			if !ok || bad != nil {
				return bad == nil
			}
			switch {
			case isAggregate(fc.Name):
				if len(fc.Args) != 1 {
					bad = selectError("Aggregate function " + fc.Name + " takes exactly one column")
				} else if _, ok := fc.Args[0].(*Identifier); !ok {
					bad = selectError("Aggregate function " + fc.Name + " takes exactly one column")
				}
				return false
			case isScalar(fc.Name):
				if len(fc.Args) != 1 {
					bad = selectError("Function " + fc.Name + " takes exactly one argument")
				}
			default:
				bad = selectError("Unrecognized function: " + fc.Name)
			}
			return bad == nil
		})
		if bad != nil {
			return bad
		}
	}
	return nil
}

func containsAggregate(expr Expression) bool {
	return Find(expr, func(e Expression) bool {
		fc, ok := e.(*FunctionCall)
		return ok && isAggregate(fc.Name)
	})
}

func anyAggregate(columns []Column) bool {
	for _, col := range columns {
		if containsAggregate(col.Expr) {
			return true
		}
	}
	return false
}

// ungroupedIdentifier reports an identifier outside every aggregate that
// is not a GROUP BY column
func ungroupedIdentifier(columns []Column, groupBy []string) bool {
	found := false
	for _, col := range columns {
		Walk(col.Expr, func(e Expression) bool {
			switch n := e.(type) {
			case *Identifier:
				if !contains(groupBy, n.Name) {
					found = true
				}
			case *FunctionCall:
				return !isAggregate(n.Name)
			}
			return !found
		})
	}
	return found
}

// selectIdentifiers lists the bare identifiers and aggregate columns
// referenced by the SELECT list
func selectIdentifiers(columns []Column) []string {
	var names []string
	for _, col := range columns {
		Walk(col.Expr, func(e Expression) bool {
			switch n := e.(type) {
			case *Identifier:
				names = append(names, n.Name)
			case *FunctionCall:
				if isAggregate(n.Name) {
					names = append(names, argName(n.Args[0]))
					return false
				}
			}
			return true
		})
	}
	return names
}

func pivotOverlap(pivot, groupBy []string, columns []Column) bool {
	selected := selectIdentifiers(columns)
	for _, col := range pivot {
		if contains(groupBy, col) || contains(selected, col) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func selectAll(members []*value.Object) ([]*value.Object, error) {
	return members, nil
}

// projection emits one row per document
func projection(columns []Column) selectFunc {
	return func(members []*value.Object) ([]*value.Object, error) {
		rows := make([]*value.Object, 0, len(members))
		for _, doc := range members {
			row, err := evalRow(columns, []*value.Object{doc})
			if err != nil {
				return nil, err
			}
			if row.Len() > 0 {
				rows = append(rows, row)
			}
		}
		return rows, nil
	}
}

// aggregateRow reduces the whole group to a single row
func aggregateRow(columns []Column) selectFunc {
	return func(members []*value.Object) ([]*value.Object, error) {
		row, err := evalRow(columns, members)
		if err != nil {
			return nil, err
		}
		if row.Len() == 0 {
			return nil, nil
		}
		return []*value.Object{row}, nil
	}
}

func evalRow(columns []Column, members []*value.Object) (*value.Object, error) {
	row := value.NewObject()
	ev := newProjectionEvaluator(members)
	for _, col := range columns {
		v, err := ev.eval(col.Expr)
		if err != nil {
			return nil, err
		}
		row.Set(col.Label, v)
	}
	return row, nil
}

type pivotGroup struct {
	key     string
	members []*value.Object
}

// pivotRow splits a group by the pivot column values and merges one set
// of columns per sub-group into a single row
func pivotRow(columns []Column, pivot []string) selectFunc {
	return func(members []*value.Object) ([]*value.Object, error) {
		var groups []*pivotGroup
		index := map[string]*pivotGroup{}
		for _, doc := range members {
			key := pivotKey(doc, pivot)
			g, ok := index[key]
			if !ok {
				g = &pivotGroup{key: key}
				index[key] = g
				groups = append(groups, g)
			}
			g.members = append(g.members, doc)
		}

		row := value.NewObject()
		for _, g := range groups {
			ev := newProjectionEvaluator(g.members)
			for _, col := range columns {
				v, err := ev.eval(col.Expr)
				if err != nil {
					return nil, err
				}
				label := col.Label
				if containsAggregate(col.Expr) {
					label = g.key + " " + col.Label
				}
				row.Set(label, v)
			}
		}
		if row.Len() == 0 {
			return nil, nil
		}
		return []*value.Object{row}, nil
	}
}

func pivotKey(doc *value.Object, pivot []string) string {
	parts := make([]string, len(pivot))
	for i, col := range pivot {
		v := doc.Value(col)
		if v == nil {
			continue
		}
		parts[i] = value.ToString(v)
	}
	return strings.Join(parts, ", ")
}
