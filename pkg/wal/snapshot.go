package wal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fnuworsu/gqldb/internal/document"
)

const latestSnapshot = "snapshot-latest.json"

// SnapshotMetadata contains information about a snapshot
type SnapshotMetadata struct {
	Index     uint64    `json:"index"`     // WAL index at snapshot time
	Seq       uint64    `json:"seq"`       // Last update sequence
	Timestamp time.Time `json:"timestamp"` // When snapshot was taken
	DocCount  int       `json:"doc_count"`
}

// Snapshot is a point-in-time copy of every document, tombstones included,
// in update-sequence order
type Snapshot struct {
	Metadata  SnapshotMetadata     `json:"metadata"`
	Documents []*document.Document `json:"documents"`
}

// SnapshotManager handles snapshot creation and loading
type SnapshotManager struct {
	dir string
}

// NewSnapshotManager creates a new snapshot manager
func NewSnapshotManager(dir string) (*SnapshotManager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &SnapshotManager{dir: dir}, nil
}

// CreateSnapshot writes docs to a new snapshot file and makes it the latest
func (sm *SnapshotManager) CreateSnapshot(walIndex, seq uint64, docs []*document.Document) error {
	sorted := make([]*document.Document, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	snapshot := Snapshot{
		Metadata: SnapshotMetadata{
			Index:     walIndex,
			Seq:       seq,
			Timestamp: time.Now(),
			DocCount:  len(sorted),
		},
		Documents: sorted,
	}

	data, err := json.MarshalIndent(&snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	name := fmt.Sprintf("snapshot-%d-%d.json", walIndex, time.Now().UnixNano())
	path := filepath.Join(sm.dir, name)
	if err := writeSynced(path, data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	// Write the latest copy through a rename so readers never see half a file
	tmp := filepath.Join(sm.dir, latestSnapshot+".tmp")
	if err := writeSynced(tmp, data); err != nil {
		return fmt.Errorf("update latest snapshot: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(sm.dir, latestSnapshot)); err != nil {
		return fmt.Errorf("update latest snapshot: %w", err)
	}
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadLatestSnapshot returns nil when no snapshot has been taken
func (sm *SnapshotManager) LoadLatestSnapshot() (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(sm.dir, latestSnapshot))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snapshot, nil
}

// ListSnapshots returns snapshot file names, oldest first
func (sm *SnapshotManager) ListSnapshots() ([]string, error) {
	entries, err := os.ReadDir(sm.dir)
	if err != nil {
		return nil, err
	}

	type named struct {
		name    string
		modTime time.Time
	}
	var found []named
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == latestSnapshot || !strings.HasPrefix(name, "snapshot-") || filepath.Ext(name) != ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		found = append(found, named{name, info.ModTime()})
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].modTime.Before(found[j].modTime) })

	names := make([]string, len(found))
	for i, f := range found {
		names[i] = f.name
	}
	return names, nil
}

// CleanupOldSnapshots keeps only the most recent keepCount snapshot files
func (sm *SnapshotManager) CleanupOldSnapshots(keepCount int) error {
	snapshots, err := sm.ListSnapshots()
	if err != nil {
		return err
	}
	if len(snapshots) <= keepCount {
		return nil
	}

	for _, name := range snapshots[:len(snapshots)-keepCount] {
		if err := os.Remove(filepath.Join(sm.dir, name)); err != nil {
			return fmt.Errorf("delete old snapshot: %w", err)
		}
	}
	return nil
}
