// Package storage implements the document stores queried by the engine
package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/fnuworsu/gqldb/internal/document"
	"github.com/fnuworsu/gqldb/pkg/value"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrConflict = errors.New("document update conflict")
)

// ChangesOptions selects what each change carries
type ChangesOptions struct {
	Conflicts   bool // add _conflicts to bodies that have any
	IncludeDocs bool // attach the document body
}

// Change is one entry of the change feed
type Change struct {
	ID      string
	Seq     uint64
	Deleted bool
	Doc     *value.Object
}

// ChangeFeed delivers every document once, in update-sequence order.
// Returning from Changes means the feed is complete.
type ChangeFeed interface {
	Changes(ctx context.Context, opts ChangesOptions, fn func(Change) error) error
}

// Store is a document store with a change feed
type Store interface {
	ChangeFeed
	Put(id string, body *value.Object) (*document.Document, error)
	Get(id string) (*document.Document, error)
	Delete(id string) (*document.Document, error)
	SetConflicts(id string, revs []string) error
	Count() (int, error)
	Close() error
}

func newRevSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func newID() string {
	return uuid.NewString()
}

// checkRev rejects a write whose body names a revision other than the current one
func checkRev(current *document.Document, body *value.Object) error {
	rev, ok := body.Get(document.FieldRev)
	if !ok || current == nil || current.Deleted {
		return nil
	}
	if s, _ := rev.(string); s != current.Rev {
		return ErrConflict
	}
	return nil
}

func toChange(doc *document.Document, opts ChangesOptions) Change {
	c := Change{ID: doc.ID, Seq: doc.Seq, Deleted: doc.Deleted}
	if opts.IncludeDocs {
		c.Doc = doc.View(opts.Conflicts)
	}
	return c
}
