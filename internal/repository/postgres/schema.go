package postgres

import (
	"context"
	"fmt"
	"strings"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		collection TEXT        NOT NULL,
		id         TEXT        NOT NULL,
		data       JSONB       NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (collection, id)
	)`,
	`CREATE INDEX IF NOT EXISTS documents_data_gin ON documents USING gin (data jsonb_path_ops)`,
	// Earlier indexes also covered blank values; they are replaced by the ones below.
	`DROP INDEX IF EXISTS documents_users_email_key`,
	`DROP INDEX IF EXISTS documents_users_employee_id_key`,
	`DROP INDEX IF EXISTS documents_identity_accounts_email_key`,
	uniqueIndex("users", "email"),
	uniqueIndex("users", "employeeId"),
	uniqueIndex("identity_accounts", "email"),
}

// uniqueIndex enforces field uniqueness within collection. Missing and empty
// values are left out, the same as the in-memory store.
func uniqueIndex(collection, field string) string {
	return fmt.Sprintf(
		`CREATE UNIQUE INDEX IF NOT EXISTS documents_%s_%s_uniq ON documents ((data->>'%s')) WHERE collection = '%s' AND data->>'%s' <> ''`,
		collection, strings.ToLower(field), field, collection, field,
	)
}

// EnsureSchema creates the documents table and its indexes when they are missing.
func EnsureSchema(ctx context.Context, exec pgExecutor) error {
	for _, stmt := range schemaStatements {
		if _, err := exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
