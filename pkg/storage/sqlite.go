package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fnuworsu/gqldb/internal/document"
	"github.com/fnuworsu/gqldb/pkg/value"
)

// SQLiteStore keeps documents in a single SQLite table
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path. ":memory:" gives a
// private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serialises writers and keeps :memory: a single database
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			seq INTEGER NOT NULL,
			rev TEXT NOT NULL,
			deleted INTEGER NOT NULL DEFAULT 0,
			conflicts TEXT,
			body TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS documents_seq ON documents(seq);
	`)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*document.Document, error) {
	var (
		doc                  document.Document
		deleted              int
		conflicts            sql.NullString
		body                 string
		createdAt, updatedAt string
	)
	if err := row.Scan(&doc.ID, &doc.Seq, &doc.Rev, &deleted, &conflicts, &body, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	doc.Deleted = deleted != 0

	doc.Body = value.NewObject()
	if err := doc.Body.UnmarshalJSON([]byte(body)); err != nil {
		return nil, fmt.Errorf("decode body of %s: %w", doc.ID, err)
	}
	if conflicts.Valid && conflicts.String != "" {
		if err := json.Unmarshal([]byte(conflicts.String), &doc.Conflicts); err != nil {
			return nil, fmt.Errorf("decode conflicts of %s: %w", doc.ID, err)
		}
	}
	doc.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	doc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &doc, nil
}

const selectColumns = `SELECT id, seq, rev, deleted, conflicts, body, created_at, updated_at FROM documents`

func (s *SQLiteStore) load(ctx context.Context, tx *sql.Tx, id string) (*document.Document, error) {
	doc, err := scanDocument(tx.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return doc, err
}

func (s *SQLiteStore) save(ctx context.Context, tx *sql.Tx, doc *document.Document) error {
	var seq uint64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM documents`).Scan(&seq); err != nil {
		return fmt.Errorf("next seq: %w", err)
	}
	doc.Seq = seq

	body, err := doc.Body.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode body: %w", err)
	}
	var conflicts sql.NullString
	if len(doc.Conflicts) > 0 {
		data, err := json.Marshal(doc.Conflicts)
		if err != nil {
			return fmt.Errorf("encode conflicts: %w", err)
		}
		conflicts = sql.NullString{String: string(data), Valid: true}
	}
	deleted := 0
	if doc.Deleted {
		deleted = 1
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, seq, rev, deleted, conflicts, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			seq = excluded.seq,
			rev = excluded.rev,
			deleted = excluded.deleted,
			conflicts = excluded.conflicts,
			body = excluded.body,
			updated_at = excluded.updated_at`,
		doc.ID, doc.Seq, doc.Rev, deleted, conflicts, string(body),
		doc.CreatedAt.Format(time.RFC3339Nano), doc.UpdatedAt.Format(time.RFC3339Nano))
	return err
}

// update runs fn inside a transaction and stores the document it returns
func (s *SQLiteStore) update(id string, fn func(current *document.Document) (*document.Document, error)) (*document.Document, error) {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	current, err := s.load(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", id, err)
	}
	doc, err := fn(current)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, tx, doc); err != nil {
		return nil, fmt.Errorf("save %s: %w", doc.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return doc, nil
}

// Put writes a new revision of id. An empty id gets a generated one.
func (s *SQLiteStore) Put(id string, body *value.Object) (*document.Document, error) {
	if id == "" {
		if v, ok := body.Get(document.FieldID); ok {
			id, _ = v.(string)
		}
	}
	if id == "" {
		id = newID()
	}

	return s.update(id, func(current *document.Document) (*document.Document, error) {
		if err := checkRev(current, body); err != nil {
			return nil, fmt.Errorf("put %s: %w", id, err)
		}
		doc := document.NewDocument(id, body)
		if current != nil {
			doc.Rev = current.Rev
			doc.CreatedAt = current.CreatedAt
			doc.Conflicts = current.Conflicts
		}
		doc.Rev = doc.NextRev(newRevSuffix())
		return doc, nil
	})
}

// Get returns a live document
func (s *SQLiteStore) Get(id string) (*document.Document, error) {
	doc, err := scanDocument(s.db.QueryRow(selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) || (err == nil && doc.Deleted) {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return doc, nil
}

// Delete replaces a live document with a tombstone
func (s *SQLiteStore) Delete(id string) (*document.Document, error) {
	return s.update(id, func(current *document.Document) (*document.Document, error) {
		if current == nil || current.Deleted {
			return nil, fmt.Errorf("delete %s: %w", id, ErrNotFound)
		}
		doc := current.Clone()
		doc.Rev = current.NextRev(newRevSuffix())
		doc.Deleted = true
		doc.Body = value.NewObject()
		doc.Conflicts = nil
		doc.UpdatedAt = time.Now()
		return doc, nil
	})
}

// SetConflicts records losing revisions for a live document
func (s *SQLiteStore) SetConflicts(id string, revs []string) error {
	_, err := s.update(id, func(current *document.Document) (*document.Document, error) {
		if current == nil || current.Deleted {
			return nil, fmt.Errorf("set conflicts %s: %w", id, ErrNotFound)
		}
		doc := current.Clone()
		doc.Conflicts = append([]string(nil), revs...)
		doc.UpdatedAt = time.Now()
		return doc, nil
	})
	return err
}

// Count returns the number of live documents
func (s *SQLiteStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM documents WHERE deleted = 0`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Changes reads the whole table in sequence order before calling fn, so fn
// may use the store
func (s *SQLiteStore) Changes(ctx context.Context, opts ChangesOptions, fn func(Change) error) error {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("query changes: %w", err)
	}

	var docs []*document.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			rows.Close()
			return fmt.Errorf("scan change: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("read changes: %w", err)
	}
	rows.Close()

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(toChange(doc, opts)); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
