package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/fnuworsu/gqldb/pkg/collate"
	"github.com/fnuworsu/gqldb/pkg/storage"
	"github.com/fnuworsu/gqldb/pkg/value"
)

// ScanEntry is a document that passed the WHERE clause, with its group key
type ScanEntry struct {
	ID  string
	Key []any
	Doc *value.Object
}

// Group is a run of entries whose keys collate equal
type Group struct {
	Key     []any
	Members []*value.Object
}

// Result is the flattened output of a query
type Result struct {
	Columns []string        `json:"-"`
	Rows    []*value.Object `json:"rows"`
}

// Stage is a step of query execution. Stages run in order, once each.
type Stage int

const (
	StageScanning Stage = iota
	StageSorting
	StageGrouping
	StageReducing
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageScanning:
		return "scanning"
	case StageSorting:
		return "sorting"
	case StageGrouping:
		return "grouping"
	case StageReducing:
		return "reducing"
	case StageDone:
		return "done"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// Engine runs queries against a change feed
type Engine struct {
	feed   storage.ChangeFeed
	logger *slog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine's logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine over feed
func NewEngine(feed storage.ChangeFeed, opts ...Option) *Engine {
	e := &Engine{feed: feed, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query compiles and runs q. Query errors are returned as *Error.
func (e *Engine) Query(ctx context.Context, q Query) (*Result, error) {
	plan, err := Compile(q)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, plan)
}

// GQL runs a query given in any accepted input form and reports the outcome
// to complete exactly once. Every error kind arrives through complete.
// With a nil complete the query is only compiled and the store is never read.
func (e *Engine) GQL(ctx context.Context, input any, complete func(*Result, error)) {
	q, err := ParseInput(input)
	if err != nil {
		if complete != nil {
			complete(nil, err)
		}
		return
	}

	plan, err := Compile(q)
	if complete == nil {
		if err != nil {
			e.logger.Debug("query discarded", "error", err)
		}
		return
	}
	if err != nil {
		complete(nil, err)
		return
	}
	complete(e.Run(ctx, plan))
}

// Delete removes nothing; queries keep no persistent state
func (e *Engine) Delete() error {
	return nil
}

// execution holds the state of one query run
type execution struct {
	plan    *Plan
	stage   Stage
	scanned int
	entries []ScanEntry
	groups  []Group
	rows    []*value.Object
}

// Run executes a compiled plan
func (e *Engine) Run(ctx context.Context, plan *Plan) (*Result, error) {
	ex := &execution{plan: plan, stage: StageScanning}

	fail := func(err error) (*Result, error) {
		e.logger.Debug("query failed", "stage", ex.stage.String(), "error", err)
		return nil, err
	}

	if err := e.scan(ctx, ex); err != nil {
		return fail(err)
	}

	ex.stage = StageSorting
	SortEntries(ex.entries, plan.query.Descending)

	ex.stage = StageGrouping
	ex.groups = GroupEntries(ex.entries)

	ex.stage = StageReducing
	for _, g := range ex.groups {
		rows, err := plan.reduce(g.Members)
		if err != nil {
			return fail(err)
		}
		ex.rows = append(ex.rows, rows...)
	}

	ex.stage = StageDone
	e.logger.Debug("query complete",
		"strategy", plan.strategy.String(),
		"scanned", ex.scanned,
		"kept", len(ex.entries),
		"groups", len(ex.groups),
		"rows", len(ex.rows))

	if ex.rows == nil {
		ex.rows = []*value.Object{}
	}
	return &Result{Columns: columnsOf(ex.rows), Rows: ex.rows}, nil
}

func (e *Engine) scan(ctx context.Context, ex *execution) error {
	opts := storage.ChangesOptions{Conflicts: ex.plan.query.Conflicts, IncludeDocs: true}
	err := e.feed.Changes(ctx, opts, func(c storage.Change) error {
		if c.Deleted || c.Doc == nil {
			return nil
		}
		ex.scanned++

		ok, err := ex.plan.where(c.Doc)
		if err != nil || !ok {
			return err
		}
		ex.entries = append(ex.entries, ScanEntry{ID: c.ID, Key: ex.plan.key(c.Doc), Doc: c.Doc})
		return nil
	})
	if err != nil {
		var qerr *Error
		if errors.As(err, &qerr) {
			return qerr
		}
		return fmt.Errorf("scan documents: %w", err)
	}
	return nil
}

// SortEntries orders entries by key, keeping feed order among equal keys.
// descending reverses the sorted list.
func SortEntries(entries []ScanEntry, descending bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		return collate.Compare(entries[i].Key, entries[j].Key) < 0
	})
	if descending {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}
}

// GroupEntries splits sorted entries into runs of collation-equal keys.
// Each entry is compared with the first key of the current run only.
func GroupEntries(entries []ScanEntry) []Group {
	var groups []Group
	for _, entry := range entries {
		if n := len(groups); n > 0 && collate.Equal(groups[n-1].Key, entry.Key) {
			groups[n-1].Members = append(groups[n-1].Members, entry.Doc)
			continue
		}
		groups = append(groups, Group{Key: entry.Key, Members: []*value.Object{entry.Doc}})
	}
	return groups
}

// columnsOf lists row labels in first-seen order
func columnsOf(rows []*value.Object) []string {
	seen := map[string]bool{}
	var columns []string
	for _, row := range rows {
		for _, k := range row.Keys() {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	return columns
}
