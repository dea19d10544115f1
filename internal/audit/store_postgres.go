package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore implements Store on a single audit_entries table. Verification
// and denial entries share the table, split by the kind column.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS audit_entries (
			id         UUID PRIMARY KEY,
			kind       TEXT NOT NULL,
			report_key TEXT NOT NULL,
			address    TEXT NOT NULL,
			verifier   TEXT NOT NULL,
			image_ref  TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS audit_entries_created_at_idx ON audit_entries (created_at DESC);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	const query = `
		INSERT INTO audit_entries (id, kind, report_key, address, verifier, image_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID, string(entry.Kind), entry.ReportKey, entry.Address, entry.Verifier, entry.ImageRef, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	const query = `
		SELECT id, kind, report_key, address, verifier, image_ref, created_at
		FROM audit_entries ORDER BY created_at DESC LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var kind string
		if err := rows.Scan(&e.ID, &kind, &e.ReportKey, &e.Address, &e.Verifier, &e.ImageRef, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Kind = Kind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}
