package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/arklim/skills-audit/internal/core/document"
	"github.com/arklim/skills-audit/internal/core/port"
	"github.com/arklim/skills-audit/internal/repository"
)

// WriteHook is consulted before every write is applied. Returning an error
// aborts the write; inside a batch it aborts the whole batch.
type WriteHook func(op document.Write) error

// DocumentStore is a thread-safe in-memory document store.
type DocumentStore struct {
	mu sync.RWMutex
	// Structure: [collection][id]data
	data map[string]map[string]map[string]any
	hook WriteHook
}

// NewDocumentStore creates an empty store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		data: make(map[string]map[string]map[string]any),
	}
}

// WithWriteHook installs a hook invoked before each write.
func (s *DocumentStore) WithWriteHook(hook WriteHook) *DocumentStore {
	s.mu.Lock()
	s.hook = hook
	s.mu.Unlock()
	return s
}

// Get returns a copy of the stored document.
func (s *DocumentStore) Get(_ context.Context, collection, id string) (*document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.data[collection][id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &document.Document{Collection: collection, ID: id, Data: document.CloneMap(data)}, nil
}

// Set overwrites collection/id.
func (s *DocumentStore) Set(_ context.Context, collection, id string, data map[string]any) error {
	op := document.Write{Kind: document.WriteSet, Collection: collection, ID: id, Data: document.NormalizeMap(data)}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(op); err != nil {
		return err
	}
	s.apply(op)
	return nil
}

// Update merges fields into an existing document.
func (s *DocumentStore) Update(_ context.Context, collection, id string, fields map[string]any) error {
	op := document.Write{Kind: document.WriteSet, Collection: collection, ID: id, Data: document.NormalizeMap(fields)}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.data[collection][id]
	if !ok {
		return repository.ErrNotFound
	}
	if err := s.check(op); err != nil {
		return err
	}
	merged := document.CloneMap(current)
	for k, v := range op.Data {
		merged[k] = v
	}
	s.data[collection][id] = merged
	return nil
}

// Delete removes collection/id; absent documents are ignored.
func (s *DocumentStore) Delete(_ context.Context, collection, id string) error {
	op := document.Write{Kind: document.WriteDelete, Collection: collection, ID: id}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(op); err != nil {
		return err
	}
	s.apply(op)
	return nil
}

// Query evaluates q against a snapshot of the collection.
func (s *DocumentStore) Query(ctx context.Context, q document.Query) (document.Iterator, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	matched := make([]*document.Document, 0)
	for id, data := range s.data[q.Collection] {
		doc := &document.Document{Collection: q.Collection, ID: id, Data: data}
		if !q.Matches(doc) {
			continue
		}
		matched = append(matched, doc)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return q.Less(matched[i], matched[j]) })

	out := make([]*document.Document, 0, len(matched))
	for _, doc := range matched {
		if q.StartAfter != nil && !q.After(doc, q.StartAfter) {
			continue
		}
		out = append(out, doc.Clone())
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return document.NewSliceIterator(out), nil
}

// Batch starts a new atomic batch.
func (s *DocumentStore) Batch() port.Batch {
	return &batch{store: s}
}

// check runs the write hook and the uniqueness rules. Callers hold the write lock.
func (s *DocumentStore) check(op document.Write) error {
	if s.hook != nil {
		if err := s.hook(op); err != nil {
			return err
		}
	}
	if op.Kind == document.WriteSet {
		return s.checkUnique(op, nil)
	}
	return nil
}

// checkUnique enforces the unique fields of a collection, taking into account
// other writes staged in the same batch.
func (s *DocumentStore) checkUnique(op document.Write, staged map[string]map[string]any) error {
	for _, field := range uniqueFields[op.Collection] {
		v, ok := op.Data[field]
		if !ok || v == nil || v == "" {
			continue
		}
		for id, data := range s.data[op.Collection] {
			if id == op.ID {
				continue
			}
			if _, replaced := staged[id]; replaced {
				continue
			}
			if document.Equal(data[field], v) {
				return fmt.Errorf("%w: %s already in use", repository.ErrConflict, field)
			}
		}
		for id, data := range staged {
			if id != op.ID && data != nil && document.Equal(data[field], v) {
				return fmt.Errorf("%w: %s already in use", repository.ErrConflict, field)
			}
		}
	}
	return nil
}

func (s *DocumentStore) apply(op document.Write) {
	switch op.Kind {
	case document.WriteSet:
		if s.data[op.Collection] == nil {
			s.data[op.Collection] = make(map[string]map[string]any)
		}
		s.data[op.Collection][op.ID] = document.CloneMap(op.Data)
	case document.WriteDelete:
		delete(s.data[op.Collection], op.ID)
	}
}

// uniqueFields matches the unique indexes of the postgres schema.
var uniqueFields = map[string][]string{
	"users":             {"email", "employeeId"},
	"identity_accounts": {"email"},
}

type batch struct {
	store     *DocumentStore
	writes    document.Writes
	committed bool
}

func (b *batch) Set(collection, id string, data map[string]any) { b.writes.Set(collection, id, data) }

func (b *batch) Delete(collection, id string) { b.writes.Delete(collection, id) }

func (b *batch) Len() int { return b.writes.Len() }

// Commit validates every staged write before applying any of them.
func (b *batch) Commit(ctx context.Context) error {
	if b.committed {
		return repository.ErrBatchCommitted
	}
	if b.writes.Len() > document.MaxBatchWrites {
		return fmt.Errorf("%w: %d writes (max %d)", repository.ErrBatchTooLarge, b.writes.Len(), document.MaxBatchWrites)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()

	ops := b.writes.Ops()
	staged := make(map[string]map[string]map[string]any)
	for _, op := range ops {
		if s.hook != nil {
			if err := s.hook(op); err != nil {
				return fmt.Errorf("batch aborted: %w", err)
			}
		}
		if op.Kind == document.WriteSet {
			if err := s.checkUnique(op, staged[op.Collection]); err != nil {
				return fmt.Errorf("batch aborted: %w", err)
			}
		}
		if staged[op.Collection] == nil {
			staged[op.Collection] = make(map[string]map[string]any)
		}
		staged[op.Collection][op.ID] = op.Data
	}

	for _, op := range ops {
		s.apply(op)
	}
	b.committed = true
	return nil
}
