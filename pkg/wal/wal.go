// Package wal implements a write-ahead log of document changes
package wal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fnuworsu/gqldb/internal/document"
)

const logFile = "wal.log"

// OpType represents the type of operation in the WAL
type OpType string

const (
	OpPutDoc       OpType = "PUT_DOC"
	OpDeleteDoc    OpType = "DELETE_DOC"
	OpSetConflicts OpType = "SET_CONFLICTS"
)

// LogEntry is one line of the log. Doc carries the full document state
// after the change, so replay never needs the previous state.
type LogEntry struct {
	Index     uint64             `json:"index"`
	Timestamp time.Time          `json:"timestamp"`
	OpType    OpType             `json:"op_type"`
	Doc       *document.Document `json:"doc"`
}

// WAL is an append-only JSON-lines log
type WAL struct {
	dir       string
	file      *os.File
	encoder   *json.Encoder
	nextIndex uint64
	mu        sync.Mutex
}

// NewWAL opens or creates the log in dir
func NewWAL(dir string) (*WAL, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create WAL directory: %w", err)
	}

	file, err := os.OpenFile(filepath.Join(dir, logFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open WAL file: %w", err)
	}

	w := &WAL{
		dir:       dir,
		file:      file,
		encoder:   json.NewEncoder(file),
		nextIndex: 1,
	}

	if err := w.loadLastIndex(); err != nil {
		file.Close()
		return nil, fmt.Errorf("load last index: %w", err)
	}
	return w, nil
}

func (w *WAL) loadLastIndex() error {
	var last uint64
	err := w.scan(func(entry LogEntry) error {
		if entry.Index > last {
			last = entry.Index
		}
		return nil
	})
	if err != nil {
		return err
	}
	w.nextIndex = last + 1
	return nil
}

// scan decodes every entry currently on disk
func (w *WAL) scan(fn func(LogEntry) error) error {
	f, err := os.Open(filepath.Join(w.dir, logFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	for {
		var entry LogEntry
		if err := dec.Decode(&entry); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode entry: %w", err)
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
}

// Append writes an entry and syncs the file
func (w *WAL) Append(op OpType, doc *document.Document) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	entry := LogEntry{
		Index:     w.nextIndex,
		Timestamp: time.Now(),
		OpType:    op,
		Doc:       doc,
	}

	if err := w.encoder.Encode(&entry); err != nil {
		return 0, fmt.Errorf("encode entry: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return 0, fmt.Errorf("sync WAL: %w", err)
	}

	index := w.nextIndex
	w.nextIndex++
	return index, nil
}

// LogPut records a document write
func (w *WAL) LogPut(doc *document.Document) error {
	_, err := w.Append(OpPutDoc, doc)
	return err
}

// LogDelete records a tombstone
func (w *WAL) LogDelete(doc *document.Document) error {
	_, err := w.Append(OpDeleteDoc, doc)
	return err
}

// LogConflicts records a change to a document's conflicting revisions
func (w *WAL) LogConflicts(doc *document.Document) error {
	_, err := w.Append(OpSetConflicts, doc)
	return err
}

// Replay calls handler for each entry in log order
func (w *WAL) Replay(handler func(entry LogEntry) error) error {
	return w.scan(func(entry LogEntry) error {
		if err := handler(entry); err != nil {
			return fmt.Errorf("handler failed for entry %d: %w", entry.Index, err)
		}
		return nil
	})
}

// Truncate drops every entry up to and including index
func (w *WAL) Truncate(index uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var keep []LogEntry
	err := w.scan(func(entry LogEntry) error {
		if entry.Index > index {
			keep = append(keep, entry)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := w.file.Close(); err != nil {
		return err
	}

	file, err := os.OpenFile(filepath.Join(w.dir, logFile), os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	w.file = file
	w.encoder = json.NewEncoder(file)

	for _, entry := range keep {
		if err := w.encoder.Encode(&entry); err != nil {
			return err
		}
	}
	return w.file.Sync()
}

// CurrentIndex returns the index of the last appended entry
func (w *WAL) CurrentIndex() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nextIndex - 1
}

// Close closes the log file
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		return err
	}
	return nil
}
