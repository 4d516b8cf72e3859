package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fnuworsu/gqldb/internal/document"
	"github.com/fnuworsu/gqldb/pkg/value"
)

// MemoryStore keeps documents in memory. Deletes leave tombstones so the
// change feed still reports them.
type MemoryStore struct {
	docs map[string]*document.Document
	seq  atomic.Uint64
	mu   sync.RWMutex
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*document.Document)}
}

// Put writes a new revision of id. An empty id gets a generated one.
func (s *MemoryStore) Put(id string, body *value.Object) (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.preparePut(id, body)
	if err != nil {
		return nil, err
	}
	s.docs[doc.ID] = doc
	return doc.Clone(), nil
}

// preparePut builds the next revision. Caller holds mu.
func (s *MemoryStore) preparePut(id string, body *value.Object) (*document.Document, error) {
	if id == "" {
		if v, ok := body.Get(document.FieldID); ok {
			id, _ = v.(string)
		}
	}
	if id == "" {
		id = newID()
	}

	current := s.docs[id]
	if err := checkRev(current, body); err != nil {
		return nil, fmt.Errorf("put %s: %w", id, err)
	}

	doc := document.NewDocument(id, body)
	if current != nil {
		doc.Rev = current.Rev
		doc.CreatedAt = current.CreatedAt
		doc.Conflicts = append([]string(nil), current.Conflicts...)
	}
	doc.Rev = doc.NextRev(newRevSuffix())
	doc.Seq = s.seq.Add(1)
	return doc, nil
}

// Get returns a copy of a live document
func (s *MemoryStore) Get(id string) (*document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok || doc.Deleted {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return doc.Clone(), nil
}

// Delete replaces a live document with a tombstone
func (s *MemoryStore) Delete(id string) (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.prepareDelete(id)
	if err != nil {
		return nil, err
	}
	s.docs[id] = doc
	return doc.Clone(), nil
}

func (s *MemoryStore) prepareDelete(id string) (*document.Document, error) {
	current, ok := s.docs[id]
	if !ok || current.Deleted {
		return nil, fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}

	doc := current.Clone()
	doc.Rev = current.NextRev(newRevSuffix())
	doc.Deleted = true
	doc.Body = value.NewObject()
	doc.Conflicts = nil
	doc.UpdatedAt = time.Now()
	doc.Seq = s.seq.Add(1)
	return doc, nil
}

// SetConflicts records losing revisions for a live document
func (s *MemoryStore) SetConflicts(id string, revs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.prepareConflicts(id, revs)
	if err != nil {
		return err
	}
	s.docs[id] = doc
	return nil
}

func (s *MemoryStore) prepareConflicts(id string, revs []string) (*document.Document, error) {
	current, ok := s.docs[id]
	if !ok || current.Deleted {
		return nil, fmt.Errorf("set conflicts %s: %w", id, ErrNotFound)
	}

	doc := current.Clone()
	doc.Conflicts = append([]string(nil), revs...)
	doc.UpdatedAt = time.Now()
	doc.Seq = s.seq.Add(1)
	return doc, nil
}

// restore installs a document as-is, keeping the sequence counter ahead of it
func (s *MemoryStore) restore(doc *document.Document) {
	s.docs[doc.ID] = doc
	if doc.Seq > s.seq.Load() {
		s.seq.Store(doc.Seq)
	}
}

// Count returns the number of live documents
func (s *MemoryStore) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, doc := range s.docs {
		if !doc.Deleted {
			n++
		}
	}
	return n, nil
}

// LastSeq returns the sequence number of the latest change
func (s *MemoryStore) LastSeq() uint64 {
	return s.seq.Load()
}

// documents returns every stored document, tombstones included, by sequence
func (s *MemoryStore) documents() []*document.Document {
	s.mu.RLock()
	docs := make([]*document.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	s.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool { return docs[i].Seq < docs[j].Seq })
	return docs
}

// Changes delivers a point-in-time view of the store. fn runs without the
// store lock held, so it may read from the store.
func (s *MemoryStore) Changes(ctx context.Context, opts ChangesOptions, fn func(Change) error) error {
	for _, doc := range s.documents() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(toChange(doc, opts)); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
