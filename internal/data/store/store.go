package store

import (
	"context"
	"time"
)

// Document is the editor-side view of an open file: the raw source the
// backend was last told about, with its monotonically increasing version.
type Document struct {
	URI       string    `json:"uri"`
	Version   int       `json:"version"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentStore holds open-document contents. Closing a document removes it
// from the store; its symbols live on in the graph until the file is
// deleted from the workspace.
type DocumentStore interface {
	GetDocument(uri string) (*Document, error)
	SetDocument(doc *Document) error
	DeleteDocument(uri string) error
	Ping(ctx context.Context) error
	Close() error
}
