package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/arklim/skills-audit/internal/core/document"
	"github.com/arklim/skills-audit/internal/core/port"
	"github.com/arklim/skills-audit/internal/repository"
)

const (
	documentsTable      = "documents"
	uniqueViolationCode = "23505"
)

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgPool is satisfied by *pgxpool.Pool and pgxmock pools.
type pgPool interface {
	pgExecutor
	Begin(ctx context.Context) (pgx.Tx, error)
}

// DocumentStore implements port.DocumentStore on a single JSONB table keyed by (collection, id).
type DocumentStore struct {
	pool    pgPool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

// NewDocumentStore constructs a store backed by pool.
func NewDocumentStore(pool pgPool) *DocumentStore {
	return &DocumentStore{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     time.Now,
	}
}

// WithTx returns a store instance operating within the supplied transaction.
func (s *DocumentStore) WithTx(tx pgx.Tx) *DocumentStore {
	if tx == nil {
		return s
	}
	return &DocumentStore{
		pool:    s.pool,
		exec:    tx,
		builder: s.builder,
		now:     s.now,
	}
}

// WithClock overrides the timestamp source for created_at/updated_at columns.
func (s *DocumentStore) WithClock(now func() time.Time) *DocumentStore {
	if now != nil {
		s.now = now
	}
	return s
}

// Get loads a single document.
func (s *DocumentStore) Get(ctx context.Context, collection, id string) (*document.Document, error) {
	stmt, args, err := s.builder.
		Select("data").
		From(documentsTable).
		Where(squirrel.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select document sql: %w", err)
	}

	var raw []byte
	if err := s.exec.QueryRow(ctx, stmt, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select document %s/%s: %w", collection, id, err)
	}

	data, err := decodeData(raw)
	if err != nil {
		return nil, fmt.Errorf("decode document %s/%s: %w", collection, id, err)
	}
	return &document.Document{Collection: collection, ID: id, Data: data}, nil
}

// Set upserts the whole document.
func (s *DocumentStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	raw, err := encodeData(document.NormalizeMap(data))
	if err != nil {
		return fmt.Errorf("encode document %s/%s: %w", collection, id, err)
	}

	now := s.now().UTC()
	stmt, args, err := s.builder.
		Insert(documentsTable).
		Columns("collection", "id", "data", "created_at", "updated_at").
		Values(collection, id, raw, now, now).
		Suffix("ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert document sql: %w", err)
	}

	if _, err := s.exec.Exec(ctx, stmt, args...); err != nil {
		return mapWriteError(fmt.Sprintf("upsert document %s/%s", collection, id), err)
	}
	return nil
}

// Update merges fields into an existing document.
func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	raw, err := encodeData(document.NormalizeMap(fields))
	if err != nil {
		return fmt.Errorf("encode patch %s/%s: %w", collection, id, err)
	}

	stmt, args, err := s.builder.
		Update(documentsTable).
		Set("data", squirrel.Expr("data || ?::jsonb", raw)).
		Set("updated_at", s.now().UTC()).
		Where(squirrel.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update document sql: %w", err)
	}

	tag, err := s.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return mapWriteError(fmt.Sprintf("update document %s/%s", collection, id), err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a document; deleting an absent document is not an error.
func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	stmt, args, err := s.builder.
		Delete(documentsTable).
		Where(squirrel.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete document sql: %w", err)
	}

	if _, err := s.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Query streams matching documents. Rows are decoded lazily as the iterator advances.
func (s *DocumentStore) Query(ctx context.Context, q document.Query) (document.Iterator, error) {
	stmt, args, err := s.buildQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	return &rowsIterator{rows: rows, collection: q.Collection}, nil
}

func (s *DocumentStore) buildQuery(q document.Query) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}

	sel := s.builder.
		Select("id", "data").
		From(documentsTable).
		Where(squirrel.Eq{"collection": q.Collection})

	for _, f := range q.Filters {
		path, err := fieldPath(f.Field)
		if err != nil {
			return "", nil, err
		}
		operand, err := encodeValue(f.Value)
		if err != nil {
			return "", nil, err
		}
		sel = sel.Where(squirrel.Expr(fmt.Sprintf("%s %s ?::jsonb", path, sqlOperator(f.Op)), operand))
		if f.Op != document.OpEqual {
			// jsonb orders across types; range filters must only see values of the operand's type
			sel = sel.Where(squirrel.Expr(fmt.Sprintf("jsonb_typeof(%s) = ?", path), jsonType(f.Value)))
		}
	}

	orderBy := make([]string, 0, len(q.OrderBy)+1)
	for _, o := range q.OrderBy {
		path, err := fieldPath(o.Field)
		if err != nil {
			return "", nil, err
		}
		sel = sel.Where(fmt.Sprintf("%s IS NOT NULL", path))
		dir := "ASC"
		if o.Direction == document.Descending {
			dir = "DESC"
		}
		orderBy = append(orderBy, fmt.Sprintf("%s %s", path, dir))
	}
	orderBy = append(orderBy, "id ASC")

	if q.StartAfter != nil {
		after, err := cursorPredicate(q.OrderBy, q.StartAfter)
		if err != nil {
			return "", nil, err
		}
		sel = sel.Where(after)
	}

	sel = sel.OrderBy(orderBy...)
	if q.Limit > 0 {
		sel = sel.Limit(uint64(q.Limit))
	}

	stmt, args, err := sel.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build document query sql: %w", err)
	}
	return stmt, args, nil
}

// cursorPredicate expands "strictly after (v1..vn, id)" into
// (f1 > v1) OR (f1 = v1 AND f2 > v2) OR ... OR (f1 = v1 AND ... AND id > cid).
func cursorPredicate(order []document.Order, c *document.Cursor) (squirrel.Sqlizer, error) {
	or := squirrel.Or{}
	prefix := squirrel.And{}

	for i, o := range order {
		path, err := fieldPath(o.Field)
		if err != nil {
			return nil, err
		}
		value, err := encodeValue(c.Values[i])
		if err != nil {
			return nil, err
		}
		op := ">"
		if o.Direction == document.Descending {
			op = "<"
		}

		term := append(squirrel.And{}, prefix...)
		term = append(term, squirrel.Expr(fmt.Sprintf("%s %s ?::jsonb", path, op), value))
		or = append(or, term)

		prefix = append(prefix, squirrel.Expr(fmt.Sprintf("%s = ?::jsonb", path), value))
	}

	last := append(squirrel.And{}, prefix...)
	last = append(last, squirrel.Expr("id > ?", c.ID))
	or = append(or, last)
	return or, nil
}

// Batch starts a transactional batch.
func (s *DocumentStore) Batch() port.Batch {
	return &batch{store: s}
}

type batch struct {
	store     *DocumentStore
	writes    document.Writes
	committed bool
}

func (b *batch) Set(collection, id string, data map[string]any) { b.writes.Set(collection, id, data) }

func (b *batch) Delete(collection, id string) { b.writes.Delete(collection, id) }

func (b *batch) Len() int { return b.writes.Len() }

// Commit applies every staged write inside one transaction.
func (b *batch) Commit(ctx context.Context) (err error) {
	if b.committed {
		return repository.ErrBatchCommitted
	}
	if b.writes.Len() > document.MaxBatchWrites {
		return fmt.Errorf("%w: %d writes (max %d)", repository.ErrBatchTooLarge, b.writes.Len(), document.MaxBatchWrites)
	}
	if b.writes.Len() == 0 {
		b.committed = true
		return nil
	}

	tx, err := b.store.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	txStore := b.store.WithTx(tx)
	for _, op := range b.writes.Ops() {
		switch op.Kind {
		case document.WriteSet:
			err = txStore.Set(ctx, op.Collection, op.ID, op.Data)
		case document.WriteDelete:
			err = txStore.Delete(ctx, op.Collection, op.ID)
		}
		if err != nil {
			return fmt.Errorf("batch aborted: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	b.committed = true
	return nil
}

type rowsIterator struct {
	rows       pgx.Rows
	collection string
	done       bool
}

func (it *rowsIterator) Next() (*document.Document, error) {
	if it.done {
		return nil, document.ErrIteratorDone
	}
	if !it.rows.Next() {
		it.done = true
		it.rows.Close()
		if err := it.rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate %s: %w", it.collection, err)
		}
		return nil, document.ErrIteratorDone
	}

	var (
		id  string
		raw []byte
	)
	if err := it.rows.Scan(&id, &raw); err != nil {
		it.Stop()
		return nil, fmt.Errorf("scan %s row: %w", it.collection, err)
	}
	data, err := decodeData(raw)
	if err != nil {
		it.Stop()
		return nil, fmt.Errorf("decode %s/%s: %w", it.collection, id, err)
	}
	return &document.Document{Collection: it.collection, ID: id, Data: data}, nil
}

func (it *rowsIterator) Stop() {
	if it.done {
		return
	}
	it.done = true
	it.rows.Close()
}

func fieldPath(field string) (string, error) {
	if !fieldNamePattern.MatchString(field) {
		return "", fmt.Errorf("%w: field name %q", document.ErrInvalidQuery, field)
	}
	return fmt.Sprintf("data->'%s'", field), nil
}

func sqlOperator(op document.Operator) string {
	if op == document.OpEqual {
		return "="
	}
	return string(op)
}

func jsonType(v any) string {
	switch document.Normalize(v).(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case int64, float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	default:
		return "object"
	}
}

func encodeValue(v any) (string, error) {
	raw, err := json.Marshal(document.Normalize(v))
	if err != nil {
		return "", fmt.Errorf("%w: encode operand: %v", document.ErrInvalidQuery, err)
	}
	return string(raw), nil
}

func encodeData(data map[string]any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeData(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	return document.NormalizeMap(data), nil
}

func mapWriteError(action string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return fmt.Errorf("%s: %w (%s)", action, repository.ErrConflict, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w", action, err)
}

var _ port.DocumentStore = (*DocumentStore)(nil)
