package postgres

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/arklim/skills-audit/internal/core/document"
	"github.com/arklim/skills-audit/internal/repository"
)

var fixedNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *DocumentStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	t.Cleanup(mock.Close)
	store := NewDocumentStore(mock).WithClock(func() time.Time { return fixedNow })
	return mock, store
}

func TestDocumentStore_Get(t *testing.T) {
	mock, store := newMockStore(t)

	rows := pgxmock.NewRows([]string{"data"}).
		AddRow([]byte(`{"firstName":"Thandi","yearsExperience":4,"isActive":true}`))
	mock.ExpectQuery(`SELECT data FROM documents WHERE collection = \$1 AND id = \$2`).
		WithArgs("users", "u-1").
		WillReturnRows(rows)

	doc, err := store.Get(context.Background(), "users", "u-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if doc.String("firstName") != "Thandi" {
		t.Fatalf("unexpected firstName %q", doc.String("firstName"))
	}
	if got, ok := doc.Data["yearsExperience"].(int64); !ok || got != 4 {
		t.Fatalf("expected int64 4, got %#v", doc.Data["yearsExperience"])
	}
	if !doc.Bool("isActive") {
		t.Fatal("expected isActive true")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDocumentStore_GetMissing(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectQuery(`SELECT data FROM documents`).
		WithArgs("users", "missing").
		WillReturnRows(pgxmock.NewRows([]string{"data"}))

	if _, err := store.Get(context.Background(), "users", "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDocumentStore_SetUpserts(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec(`INSERT INTO documents \(collection,id,data,created_at,updated_at\) VALUES \(\$1,\$2,\$3,\$4,\$5\) ON CONFLICT \(collection, id\) DO UPDATE`).
		WithArgs("skills", "s-1", `{"level":"Expert","name":"Go"}`, fixedNow, fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.Set(context.Background(), "skills", "s-1", map[string]any{"name": "Go", "level": "Expert"})
	if err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDocumentStore_SetMapsUniqueViolation(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs("users", "u-2", pgxmock.AnyArg(), fixedNow, fixedNow).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "documents_users_email_uniq"})

	err := store.Set(context.Background(), "users", "u-2", map[string]any{"email": "dup@treasury.gov.za"})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestDocumentStore_UpdateMissing(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectExec(`UPDATE documents SET data = data \|\| \$1::jsonb, updated_at = \$2 WHERE collection = \$3 AND id = \$4`).
		WithArgs(`{"position":"Analyst"}`, fixedNow, "users", "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.Update(context.Background(), "users", "ghost", map[string]any{"position": "Analyst"})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDocumentStore_QueryBuildsCursorPredicate(t *testing.T) {
	_, store := newMockStore(t)

	q := document.Query{
		Collection: "users",
		Filters:    []document.Filter{document.Eq("department", "Finance")},
		OrderBy:    []document.Order{document.Asc("lastName")},
		Limit:      11,
		StartAfter: &document.Cursor{Fields: []string{"lastName"}, Values: []any{"Mokoena"}, ID: "u-9"},
	}

	stmt, args, err := store.buildQuery(q)
	if err != nil {
		t.Fatalf("buildQuery returned error: %v", err)
	}

	for _, fragment := range []string{
		"data->'department' = $2::jsonb",
		"data->'lastName' IS NOT NULL",
		"((data->'lastName' > $3::jsonb) OR (data->'lastName' = $4::jsonb AND id > $5))",
		"ORDER BY data->'lastName' ASC, id ASC",
		"LIMIT 11",
	} {
		if !strings.Contains(stmt, fragment) {
			t.Fatalf("expected %q in %s", fragment, stmt)
		}
	}

	want := []any{"users", `"Finance"`, `"Mokoena"`, `"Mokoena"`, "u-9"}
	if len(args) != len(want) {
		t.Fatalf("expected %d args, got %v", len(want), args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Fatalf("arg %d: expected %v, got %v", i, want[i], args[i])
		}
	}
}

func TestDocumentStore_QueryRangeFilterGuardsType(t *testing.T) {
	_, store := newMockStore(t)

	q := document.Query{
		Collection: "training",
		Filters:    []document.Filter{document.Where("startDate", document.OpGreaterOrEqual, fixedNow)},
	}
	stmt, args, err := store.buildQuery(q)
	if err != nil {
		t.Fatalf("buildQuery returned error: %v", err)
	}
	if !strings.Contains(stmt, "jsonb_typeof(data->'startDate') = $3") {
		t.Fatalf("expected type guard in %s", stmt)
	}
	if args[2] != "string" {
		t.Fatalf("expected string type guard, got %v", args[2])
	}
}

func TestDocumentStore_QueryRejectsUnsafeField(t *testing.T) {
	_, store := newMockStore(t)

	q := document.Query{
		Collection: "users",
		Filters:    []document.Filter{document.Eq("x'; DROP TABLE documents; --", 1)},
	}
	if _, _, err := store.buildQuery(q); !errors.Is(err, document.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestDocumentStore_QueryIteratesLazily(t *testing.T) {
	mock, store := newMockStore(t)

	rows := pgxmock.NewRows([]string{"id", "data"}).
		AddRow("s-1", []byte(`{"name":"Go"}`)).
		AddRow("s-2", []byte(`{"name":"SQL"}`))
	mock.ExpectQuery(`SELECT id, data FROM documents WHERE collection = \$1`).
		WithArgs("skills").
		WillReturnRows(rows)

	it, err := store.Query(context.Background(), document.Query{Collection: "skills"})
	if err != nil {
		t.Fatalf("Query returned error: %v", err)
	}
	docs, err := document.All(it)
	if err != nil {
		t.Fatalf("All returned error: %v", err)
	}
	if len(docs) != 2 || docs[1].ID != "s-2" || docs[1].String("name") != "SQL" {
		t.Fatalf("unexpected documents %+v", docs)
	}
	if _, err := it.Next(); !errors.Is(err, document.ErrIteratorDone) {
		t.Fatalf("expected exhausted iterator, got %v", err)
	}
}

func TestDocumentStore_BatchRollsBackOnFailure(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs("skills", "s-1", pgxmock.AnyArg(), fixedNow, fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM documents WHERE collection = \$1 AND id = \$2`).
		WithArgs("skills", "s-0").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	b := store.Batch()
	b.Set("skills", "s-1", map[string]any{"name": "Go"})
	b.Delete("skills", "s-0")

	if err := b.Commit(context.Background()); err == nil {
		t.Fatal("expected batch failure")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDocumentStore_BatchCommits(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs("notifications", "n-1", pgxmock.AnyArg(), fixedNow, fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	b := store.Batch()
	b.Set("notifications", "n-1", map[string]any{"read": false})
	if err := b.Commit(context.Background()); err != nil {
		t.Fatalf("Commit returned error: %v", err)
	}
	if err := b.Commit(context.Background()); !errors.Is(err, repository.ErrBatchCommitted) {
		t.Fatalf("expected ErrBatchCommitted, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEnsureSchema(t *testing.T) {
	mock, _ := newMockStore(t)

	for _, stmt := range schemaStatements {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}
	if err := EnsureSchema(context.Background(), mock); err != nil {
		t.Fatalf("EnsureSchema returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSchemaUniqueIndexesSkipBlankValues(t *testing.T) {
	want := map[string]string{
		"documents_users_email_uniq":             `collection = 'users' AND data->>'email' <> ''`,
		"documents_users_employeeid_uniq":        `collection = 'users' AND data->>'employeeId' <> ''`,
		"documents_identity_accounts_email_uniq": `collection = 'identity_accounts' AND data->>'email' <> ''`,
	}
	for name, predicate := range want {
		found := false
		for _, stmt := range schemaStatements {
			if strings.Contains(stmt, "UNIQUE INDEX IF NOT EXISTS "+name+" ") {
				found = true
				if !strings.HasSuffix(stmt, "WHERE "+predicate) {
					t.Errorf("index %s has unexpected predicate: %s", name, stmt)
				}
			}
		}
		if !found {
			t.Errorf("index %s is not created", name)
		}
	}
}
