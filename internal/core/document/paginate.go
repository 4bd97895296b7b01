package document

import (
	"context"
	"fmt"
)

// DefaultPageSize applies when a caller does not request a page size.
const DefaultPageSize = 10

// MaxPageSize caps caller supplied page sizes.
const MaxPageSize = 100

// Page is one slice of an ordered result set.
type Page struct {
	Documents []*Document
	// Next resumes strictly after the last document of this page; nil on the last page.
	Next *Cursor
}

// Paginate fetches a single page of q. The query's StartAfter selects the page.
func Paginate(ctx context.Context, store Querier, q Query, pageSize int) (Page, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	// one extra row tells us whether a further page exists
	q.Limit = pageSize + 1
	docs, err := QueryAll(ctx, store, q)
	if err != nil {
		return Page{}, fmt.Errorf("paginate %s: %w", q.Collection, err)
	}

	page := Page{Documents: docs}
	if len(docs) > pageSize {
		page.Documents = docs[:pageSize]
		page.Next = CursorAt(page.Documents[pageSize-1], q.OrderBy)
	}
	return page, nil
}
