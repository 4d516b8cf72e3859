// Package table prints query results as aligned text tables
package table

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/fnuworsu/gqldb/pkg/query"
	"github.com/fnuworsu/gqldb/pkg/value"
)

var header = color.New(color.Bold, color.FgCyan)

// Cell formats one value for display. Strings print bare, everything else
// as JSON.
func Cell(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := value.EncodeJSON(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// Write prints res with one column per label. Rows missing a label print
// an empty cell.
func Write(w io.Writer, res *query.Result) {
	if res == nil || len(res.Rows) == 0 {
		fmt.Fprintln(w, "(no rows)")
		return
	}

	cells := make([][]string, len(res.Rows))
	widths := make([]int, len(res.Columns))
	for i, col := range res.Columns {
		widths[i] = utf8.RuneCountInString(col)
	}
	for r, row := range res.Rows {
		cells[r] = make([]string, len(res.Columns))
		for i, col := range res.Columns {
			v, ok := row.Get(col)
			if !ok {
				continue
			}
			cells[r][i] = Cell(v)
			if n := utf8.RuneCountInString(cells[r][i]); n > widths[i] {
				widths[i] = n
			}
		}
	}

	for i, col := range res.Columns {
		header.Fprint(w, pad(col, widths[i]))
		fmt.Fprint(w, "  ")
	}
	fmt.Fprintln(w)

	for i := range res.Columns {
		fmt.Fprint(w, strings.Repeat("-", widths[i])+"  ")
	}
	fmt.Fprintln(w)

	for _, row := range cells {
		for i, cell := range row {
			fmt.Fprint(w, pad(cell, widths[i])+"  ")
		}
		fmt.Fprintln(w)
	}
}

func pad(s string, width int) string {
	return s + strings.Repeat(" ", width-utf8.RuneCountInString(s))
}
