package port

import (
	"context"

	"github.com/arklim/skills-audit/internal/core/document"
)

// DocumentStore reads and writes schemaless documents grouped by collection.
type DocumentStore interface {
	// Get returns repository.ErrNotFound when the document is absent.
	Get(ctx context.Context, collection, id string) (*document.Document, error)
	// Set overwrites the whole document, creating it when absent.
	Set(ctx context.Context, collection, id string, data map[string]any) error
	// Update merges the named fields. It returns repository.ErrNotFound when the document is absent.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// Delete is idempotent.
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, q document.Query) (document.Iterator, error)
	Batch() Batch
}

// Batch stages writes that Commit applies all-or-nothing.
type Batch interface {
	Set(collection, id string, data map[string]any)
	Delete(collection, id string)
	Len() int
	Commit(ctx context.Context) error
}
