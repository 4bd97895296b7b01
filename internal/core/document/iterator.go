package document

import (
	"context"
	"errors"
)

// ErrIteratorDone is returned by Iterator.Next once the sequence is exhausted.
var ErrIteratorDone = errors.New("document: no more items in iterator")

// Iterator yields query results one at a time. It is finite and cannot be
// restarted; once Next returns ErrIteratorDone it keeps returning it.
type Iterator interface {
	Next() (*Document, error)
	Stop()
}

// Querier runs queries against a collection.
type Querier interface {
	Query(ctx context.Context, q Query) (Iterator, error)
}

type sliceIterator struct {
	docs []*Document
	pos  int
}

// NewSliceIterator iterates over an already materialised result set.
func NewSliceIterator(docs []*Document) Iterator {
	return &sliceIterator{docs: docs}
}

func (it *sliceIterator) Next() (*Document, error) {
	if it.pos >= len(it.docs) {
		it.docs = nil
		return nil, ErrIteratorDone
	}
	doc := it.docs[it.pos]
	it.pos++
	return doc, nil
}

func (it *sliceIterator) Stop() {
	it.docs = nil
	it.pos = 0
}

// All drains the iterator and stops it.
func All(it Iterator) ([]*Document, error) {
	defer it.Stop()
	var out []*Document
	for {
		doc, err := it.Next()
		if errors.Is(err, ErrIteratorDone) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
}

// QueryAll runs q and collects every result.
func QueryAll(ctx context.Context, store Querier, q Query) ([]*Document, error) {
	it, err := store.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return All(it)
}

// First returns the first result of q, or nil when the result set is empty.
func First(ctx context.Context, store Querier, q Query) (*Document, error) {
	q.Limit = 1
	it, err := store.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer it.Stop()
	doc, err := it.Next()
	if errors.Is(err, ErrIteratorDone) {
		return nil, nil
	}
	return doc, err
}
