package store

import (
	"context"
	"sync"

	"apexintel/internal/core/errors"
)

var _ DocumentStore = (*MemoryStore)(nil)

// MemoryStore is the default process-local document store.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*Document)}
}

func (s *MemoryStore) GetDocument(uri string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[uri]
	if !ok {
		return nil, errors.AddContext(
			errors.New(errors.CodeNotFound, "document not open"), errors.CtxFile, uri)
	}
	cp := *doc
	return &cp, nil
}

func (s *MemoryStore) SetDocument(doc *Document) error {
	if doc == nil || doc.URI == "" {
		return errors.New(errors.CodeValidationError, "document needs a URI")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *doc
	s.docs[doc.URI] = &cp
	return nil
}

func (s *MemoryStore) DeleteDocument(uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, uri)
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
