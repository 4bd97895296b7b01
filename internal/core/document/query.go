package document

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidQuery is returned for queries that cannot be executed by any store.
var ErrInvalidQuery = errors.New("document: invalid query")

// Operator is a comparison applied by a Filter.
type Operator string

const (
	OpEqual          Operator = "=="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
)

func (o Operator) valid() bool {
	switch o {
	case OpEqual, OpLess, OpLessOrEqual, OpGreater, OpGreaterOrEqual:
		return true
	}
	return false
}

// Filter is a single predicate on a top-level field.
type Filter struct {
	Field string
	Op    Operator
	Value any
}

// Where builds a Filter with a normalised operand.
func Where(field string, op Operator, value any) Filter {
	return Filter{Field: field, Op: op, Value: Normalize(value)}
}

// Eq is shorthand for Where(field, OpEqual, value).
func Eq(field string, value any) Filter {
	return Where(field, OpEqual, value)
}

// Matches evaluates the filter against doc. Absent fields never match.
func (f Filter) Matches(doc *Document) bool {
	v, ok := doc.Value(f.Field)
	if !ok {
		return false
	}
	operand := Normalize(f.Value)
	if f.Op == OpEqual {
		return Equal(v, operand)
	}
	// range filters only match values of the same kind, as in jsonb comparisons
	if typeRank(v) != typeRank(operand) {
		return false
	}
	cmp := Compare(v, operand)
	switch f.Op {
	case OpLess:
		return cmp < 0
	case OpLessOrEqual:
		return cmp <= 0
	case OpGreater:
		return cmp > 0
	case OpGreaterOrEqual:
		return cmp >= 0
	}
	return false
}

// Direction of an ordering clause.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Order sorts results by a top-level field. The document id is always used as
// a final ascending tie-breaker so every ordering is total.
type Order struct {
	Field     string
	Direction Direction
}

// Asc orders by field ascending.
func Asc(field string) Order { return Order{Field: field, Direction: Ascending} }

// Desc orders by field descending.
func Desc(field string) Order { return Order{Field: field, Direction: Descending} }

// Query describes a conjunction of filters over one collection.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    []Order
	Limit      int
	StartAfter *Cursor
}

// Validate checks the query shape.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Collection) == "" {
		return fmt.Errorf("%w: collection is required", ErrInvalidQuery)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	for _, f := range q.Filters {
		if f.Field == "" {
			return fmt.Errorf("%w: filter field is required", ErrInvalidQuery)
		}
		if !f.Op.valid() {
			return fmt.Errorf("%w: unsupported operator %q", ErrInvalidQuery, f.Op)
		}
	}
	for _, o := range q.OrderBy {
		if o.Field == "" {
			return fmt.Errorf("%w: order field is required", ErrInvalidQuery)
		}
	}
	if q.StartAfter != nil {
		if err := q.StartAfter.compatible(q.OrderBy); err != nil {
			return err
		}
	}
	return nil
}

// Matches reports whether doc satisfies every filter and carries every ordered field.
func (q Query) Matches(doc *Document) bool {
	for _, f := range q.Filters {
		if !f.Matches(doc) {
			return false
		}
	}
	for _, o := range q.OrderBy {
		if !doc.Has(o.Field) {
			return false
		}
	}
	return true
}

// Less orders a before b according to q.OrderBy, breaking ties by id.
func (q Query) Less(a, b *Document) bool {
	for _, o := range q.OrderBy {
		av, _ := a.Value(o.Field)
		bv, _ := b.Value(o.Field)
		cmp := Compare(av, bv)
		if cmp == 0 {
			continue
		}
		if o.Direction == Descending {
			return cmp > 0
		}
		return cmp < 0
	}
	return a.ID < b.ID
}

// After reports whether doc sorts strictly after the cursor position.
func (q Query) After(doc *Document, c *Cursor) bool {
	if c == nil {
		return true
	}
	for i, o := range q.OrderBy {
		v, _ := doc.Value(o.Field)
		cmp := Compare(v, Normalize(c.Values[i]))
		if cmp == 0 {
			continue
		}
		if o.Direction == Descending {
			return cmp < 0
		}
		return cmp > 0
	}
	return doc.ID > c.ID
}
