package storage

import (
	"fmt"
	"log/slog"

	"github.com/fnuworsu/gqldb/internal/document"
	"github.com/fnuworsu/gqldb/pkg/value"
	"github.com/fnuworsu/gqldb/pkg/wal"
)

// PersistentStore wraps MemoryStore with a WAL and snapshots
type PersistentStore struct {
	*MemoryStore
	wal             *wal.WAL
	snapshotManager *wal.SnapshotManager
	logger          *slog.Logger
}

// NewPersistentStore opens the WAL and snapshot directories and recovers
// the previous state
func NewPersistentStore(walDir, snapshotDir string, logger *slog.Logger) (*PersistentStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	walLog, err := wal.NewWAL(walDir)
	if err != nil {
		return nil, fmt.Errorf("create WAL: %w", err)
	}

	snapMgr, err := wal.NewSnapshotManager(snapshotDir)
	if err != nil {
		walLog.Close()
		return nil, fmt.Errorf("create snapshot manager: %w", err)
	}

	ps := &PersistentStore{
		MemoryStore:     NewMemoryStore(),
		wal:             walLog,
		snapshotManager: snapMgr,
		logger:          logger,
	}

	if err := ps.Recover(); err != nil {
		walLog.Close()
		return nil, fmt.Errorf("recover: %w", err)
	}
	return ps, nil
}

// Put writes a document revision and logs it before it becomes visible
func (ps *PersistentStore) Put(id string, body *value.Object) (*document.Document, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	doc, err := ps.preparePut(id, body)
	if err != nil {
		return nil, err
	}
	if err := ps.wal.LogPut(doc); err != nil {
		return nil, fmt.Errorf("log put: %w", err)
	}
	ps.docs[doc.ID] = doc
	return doc.Clone(), nil
}

// Delete tombstones a document
func (ps *PersistentStore) Delete(id string) (*document.Document, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	doc, err := ps.prepareDelete(id)
	if err != nil {
		return nil, err
	}
	if err := ps.wal.LogDelete(doc); err != nil {
		return nil, fmt.Errorf("log delete: %w", err)
	}
	ps.docs[id] = doc
	return doc.Clone(), nil
}

// SetConflicts records losing revisions
func (ps *PersistentStore) SetConflicts(id string, revs []string) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	doc, err := ps.prepareConflicts(id, revs)
	if err != nil {
		return err
	}
	if err := ps.wal.LogConflicts(doc); err != nil {
		return fmt.Errorf("log conflicts: %w", err)
	}
	ps.docs[id] = doc
	return nil
}

// Snapshot writes every document to a snapshot and truncates the WAL
func (ps *PersistentStore) Snapshot() error {
	// Writers are held off so the snapshot and the WAL index agree
	ps.mu.Lock()
	defer ps.mu.Unlock()

	docs := make([]*document.Document, 0, len(ps.docs))
	for _, doc := range ps.docs {
		docs = append(docs, doc)
	}

	walIndex := ps.wal.CurrentIndex()
	if err := ps.snapshotManager.CreateSnapshot(walIndex, ps.seq.Load(), docs); err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := ps.wal.Truncate(walIndex); err != nil {
		return fmt.Errorf("truncate WAL: %w", err)
	}

	ps.logger.Info("snapshot written", "wal_index", walIndex, "documents", len(docs))
	return nil
}

// Recover restores state from the latest snapshot and replays the WAL
func (ps *PersistentStore) Recover() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	snapshot, err := ps.snapshotManager.LoadLatestSnapshot()
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	if snapshot != nil {
		ps.logger.Info("recovering from snapshot", "index", snapshot.Metadata.Index, "documents", len(snapshot.Documents))
		for _, doc := range snapshot.Documents {
			ps.restore(doc)
		}
		if snapshot.Metadata.Seq > ps.seq.Load() {
			ps.seq.Store(snapshot.Metadata.Seq)
		}
	}

	replayed := 0
	err = ps.wal.Replay(func(entry wal.LogEntry) error {
		if entry.Doc == nil {
			return fmt.Errorf("entry %d (%s) has no document", entry.Index, entry.OpType)
		}
		switch entry.OpType {
		case wal.OpPutDoc, wal.OpDeleteDoc, wal.OpSetConflicts:
			ps.restore(entry.Doc)
		default:
			return fmt.Errorf("unknown op %q", entry.OpType)
		}
		replayed++
		return nil
	})
	if err != nil {
		return fmt.Errorf("replay WAL: %w", err)
	}

	ps.logger.Info("recovery complete", "replayed", replayed, "documents", len(ps.docs), "seq", ps.seq.Load())
	return nil
}

// Close closes the WAL
func (ps *PersistentStore) Close() error {
	if ps.wal != nil {
		return ps.wal.Close()
	}
	return nil
}
