package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"apexintel/internal/core/errors"
)

const sqliteDriverName = "sqlite"

var _ DocumentStore = (*SQLiteStore)(nil)

// SQLiteStore persists open documents as JSON blob rows, one row per URI,
// so a restarted backend can rebuild its model without asking the editor
// to replay every open file.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, errors.New(errors.CodeValidationError, "document store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, errors.New(errors.CodeValidationError,
			fmt.Sprintf("document store path %q is a directory, expected file", cleanPath))
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create document store directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite document store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite document store %q: %w", cleanPath, err)
	}
	if err := migrateDocumentSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrateDocumentSchema(db *sql.DB) error {
	var version int
	_ = db.QueryRow(`PRAGMA user_version`).Scan(&version)

	if version == 0 {
		_, err := db.Exec(`
CREATE TABLE documents (
  uri TEXT NOT NULL PRIMARY KEY,
  version INTEGER NOT NULL DEFAULT 0,
  blob BLOB NOT NULL
);

PRAGMA user_version = 1;
`)
		if err != nil {
			return fmt.Errorf("create v1 schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) GetDocument(uri string) (*Document, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT blob FROM documents WHERE uri = ?`, uri).Scan(&blob)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.AddContext(
				errors.New(errors.CodeNotFound, "document not open"), errors.CtxFile, uri)
		}
		return nil, fmt.Errorf("load document blob: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(blob, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document blob: %w", err)
	}
	return &doc, nil
}

// SetDocument replaces the stored row inside a transaction, so a reader
// sees either the prior or the next version of the document, never a
// partial row.
func (s *SQLiteStore) SetDocument(doc *Document) error {
	if doc == nil || doc.URI == "" {
		return errors.New(errors.CodeValidationError, "document needs a URI")
	}
	blob, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document blob: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin document upsert tx: %w", err)
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO documents (uri, version, blob) VALUES (?, ?, ?)`,
		doc.URI, doc.Version, blob); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("upsert document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit document upsert tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteDocument(uri string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin document delete tx: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM documents WHERE uri = ?`, uri); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("delete document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit document delete tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
