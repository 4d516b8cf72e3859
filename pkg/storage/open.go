package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Backend names accepted by Open
const (
	BackendMemory = "memory"
	BackendWAL    = "wal"
	BackendSQLite = "sqlite"
)

// Snapshotter is a store that can compact its log into a snapshot
type Snapshotter interface {
	Snapshot() error
}

// Open creates the store for backend under dataDir. The WAL backend uses
// dataDir/wal and dataDir/snapshots; SQLite uses dataDir/documents.db.
func Open(backend, dataDir string, logger *slog.Logger) (Store, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendWAL:
		return NewPersistentStore(
			filepath.Join(dataDir, "wal"),
			filepath.Join(dataDir, "snapshots"),
			logger,
		)
	case BackendSQLite:
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		return OpenSQLite(filepath.Join(dataDir, "documents.db"))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
