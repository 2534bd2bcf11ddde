package store

import (
	"path/filepath"
	"testing"
	"time"

	"apexintel/internal/core/errors"
)

func testDocument(uri string, version int) *Document {
	return &Document{
		URI:       uri,
		Version:   version,
		Content:   "public class Account {}",
		UpdatedAt: time.Now().UTC(),
	}
}

func runStoreContract(t *testing.T, s DocumentStore) {
	t.Helper()
	uri := "file:///classes/Account.cls"

	if _, err := s.GetDocument(uri); !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND for unknown document, got %v", err)
	}

	if err := s.SetDocument(testDocument(uri, 1)); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	doc, err := s.GetDocument(uri)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if doc.Version != 1 || doc.Content != "public class Account {}" {
		t.Fatalf("unexpected document %+v", doc)
	}

	// A newer version replaces the row wholesale.
	next := testDocument(uri, 2)
	next.Content = "public class Account { Integer n; }"
	if err := s.SetDocument(next); err != nil {
		t.Fatalf("set v2 failed: %v", err)
	}
	doc, err = s.GetDocument(uri)
	if err != nil {
		t.Fatalf("get v2 failed: %v", err)
	}
	if doc.Version != 2 {
		t.Fatalf("expected version 2, got %d", doc.Version)
	}

	if err := s.DeleteDocument(uri); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := s.GetDocument(uri); !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND after delete, got %v", err)
	}

	// Deleting an absent document is not an error.
	if err := s.DeleteDocument(uri); err != nil {
		t.Fatalf("double delete should be a no-op: %v", err)
	}

	if err := s.SetDocument(nil); !errors.IsCode(err, errors.CodeValidationError) {
		t.Errorf("nil document should be a validation error, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	runStoreContract(t, s)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	uri := "file:///classes/Copy.cls"
	if err := s.SetDocument(testDocument(uri, 1)); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	doc, _ := s.GetDocument(uri)
	doc.Content = "mutated"

	again, _ := s.GetDocument(uri)
	if again.Content == "mutated" {
		t.Fatal("store must not leak its internal document to callers")
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "documents.db")
	s, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer s.Close()
	runStoreContract(t, s)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "documents.db")
	s, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	uri := "file:///classes/Durable.cls"
	if err := s.SetDocument(testDocument(uri, 3)); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	s, err = OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	doc, err := s.GetDocument(uri)
	if err != nil {
		t.Fatalf("get after reopen failed: %v", err)
	}
	if doc.Version != 3 {
		t.Fatalf("expected persisted version 3, got %d", doc.Version)
	}
}

func TestOpenSQLiteStore_RejectsBadPaths(t *testing.T) {
	if _, err := OpenSQLiteStore(""); !errors.IsCode(err, errors.CodeValidationError) {
		t.Errorf("empty path should be a validation error, got %v", err)
	}
	if _, err := OpenSQLiteStore(t.TempDir()); !errors.IsCode(err, errors.CodeValidationError) {
		t.Errorf("directory path should be a validation error, got %v", err)
	}
}
