// Package document defines the stored document record
package document

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fnuworsu/gqldb/pkg/value"
)

// Reserved body fields
const (
	FieldID        = "_id"
	FieldRev       = "_rev"
	FieldConflicts = "_conflicts"
	FieldDeleted   = "_deleted"
)

// Document is one stored record together with its revision metadata
type Document struct {
	ID        string        `json:"_id"`
	Rev       string        `json:"_rev"`
	Seq       uint64        `json:"seq"`                 // Update sequence of the last change
	Deleted   bool          `json:"deleted,omitempty"`   // Tombstone
	Conflicts []string      `json:"conflicts,omitempty"` // Losing revisions
	Body      *value.Object `json:"body"`                // User fields, reserved fields stripped

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewDocument creates a document at its first revision.
// Reserved fields in body are dropped.
func NewDocument(id string, body *value.Object) *Document {
	now := time.Now()
	return &Document{
		ID:        id,
		Body:      stripReserved(body),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Generation returns the numeric prefix of the revision, or 0 if there is none
func (d *Document) Generation() int {
	prefix, _, ok := strings.Cut(d.Rev, "-")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(prefix)
	if err != nil {
		return 0
	}
	return n
}

// NextRev formats the revision that follows the current one
func (d *Document) NextRev(suffix string) string {
	return fmt.Sprintf("%d-%s", d.Generation()+1, suffix)
}

// GetField reads a body field
func (d *Document) GetField(key string) (any, bool) {
	return d.Body.Get(key)
}

// View returns the body as delivered to readers: _id and _rev first,
// followed by the user fields, and _conflicts when requested and present.
func (d *Document) View(includeConflicts bool) *value.Object {
	out := value.NewObject()
	out.Set(FieldID, d.ID)
	if d.Rev != "" {
		out.Set(FieldRev, d.Rev)
	}
	d.Body.Range(func(k string, v any) bool {
		out.Set(k, v)
		return true
	})
	if includeConflicts && len(d.Conflicts) > 0 {
		revs := make([]any, len(d.Conflicts))
		for i, r := range d.Conflicts {
			revs[i] = r
		}
		out.Set(FieldConflicts, revs)
	}
	return out
}

// Clone returns a deep copy
func (d *Document) Clone() *Document {
	c := *d
	c.Body = d.Body.Clone()
	if d.Conflicts != nil {
		c.Conflicts = append([]string(nil), d.Conflicts...)
	}
	return &c
}

func stripReserved(body *value.Object) *value.Object {
	out := value.NewObject()
	body.Range(func(k string, v any) bool {
		if !strings.HasPrefix(k, "_") {
			out.Set(k, v)
		}
		return true
	})
	return out
}
