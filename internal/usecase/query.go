package usecase

import (
	"context"
	"errors"

	"github.com/arklim/skills-audit/internal/core/document"
)

// forEach streams q through fn without loading the whole result set. A non-nil
// error from fn stops the iteration and is returned as is.
func forEach(ctx context.Context, store document.Querier, q document.Query, fn func(*document.Document) error) error {
	it, err := store.Query(ctx, q)
	if err != nil {
		return err
	}
	defer it.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := it.Next()
		if errors.Is(err, document.ErrIteratorDone) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
}

func countDocuments(ctx context.Context, store document.Querier, q document.Query) (int, error) {
	n := 0
	err := forEach(ctx, store, q, func(*document.Document) error {
		n++
		return nil
	})
	return n, err
}
