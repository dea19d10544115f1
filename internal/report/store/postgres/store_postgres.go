package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"sightline/internal/report"
	"sightline/pkg/platform/sentinel"
)

// Store implements report.Store and report.ModerationLog on Postgres. Pending
// and verified records live in separate tables keyed by address key; the
// aggregate snapshot is a singleton row.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the tables when they do not exist yet. Kept here
// rather than in a migration tool so the store is self-contained for
// integration tests.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS pending_reports (
			key             TEXT PRIMARY KEY,
			address         TEXT NOT NULL,
			lat             DOUBLE PRECISION NOT NULL,
			lng             DOUBLE PRECISION NOT NULL,
			added_at        TIMESTAMPTZ NOT NULL,
			additional_info TEXT NOT NULL DEFAULT '',
			image_path      TEXT NOT NULL DEFAULT '',
			reported_count  INT NOT NULL DEFAULT 1
		);
		CREATE TABLE IF NOT EXISTS verified_reports (
			key             TEXT PRIMARY KEY,
			address         TEXT NOT NULL,
			lat             DOUBLE PRECISION NOT NULL,
			lng             DOUBLE PRECISION NOT NULL,
			added_at        TIMESTAMPTZ NOT NULL,
			additional_info TEXT NOT NULL DEFAULT '',
			image_url       TEXT NOT NULL DEFAULT '',
			reported_count  INT NOT NULL DEFAULT 1
		);
		CREATE TABLE IF NOT EXISTS aggregate_stats (
			id         INT PRIMARY KEY CHECK (id = 1),
			total_pins INT NOT NULL DEFAULT 0,
			today_pins INT NOT NULL DEFAULT 0,
			week_pins  INT NOT NULL DEFAULT 0
		);
		INSERT INTO aggregate_stats (id) VALUES (1) ON CONFLICT (id) DO NOTHING;
		CREATE TABLE IF NOT EXISTS moderation_log (
			id         UUID PRIMARY KEY,
			address    TEXT NOT NULL,
			note       TEXT NOT NULL,
			source     TEXT NOT NULL,
			score      DOUBLE PRECISION NOT NULL,
			magnitude  DOUBLE PRECISION NOT NULL,
			flagged_at TIMESTAMPTZ NOT NULL
		);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) GetPending(ctx context.Context, key string) (report.Report, error) {
	const query = `
		SELECT key, address, lat, lng, added_at, additional_info, image_path, reported_count
		FROM pending_reports WHERE key = $1
	`
	var r report.Report
	err := s.db.QueryRowContext(ctx, query, key).Scan(
		&r.Key, &r.Address, &r.Lat, &r.Lng, &r.AddedAt, &r.AdditionalInfo, &r.ImagePath, &r.ReportedCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return report.Report{}, sentinel.ErrNotFound
	}
	if err != nil {
		return report.Report{}, fmt.Errorf("get pending report: %w", err)
	}
	return r, nil
}

func (s *Store) PutPending(ctx context.Context, r report.Report) error {
	const query = `
		INSERT INTO pending_reports (key, address, lat, lng, added_at, additional_info, image_path, reported_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (key) DO UPDATE SET
			address = EXCLUDED.address,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			added_at = EXCLUDED.added_at,
			additional_info = EXCLUDED.additional_info,
			image_path = EXCLUDED.image_path,
			reported_count = EXCLUDED.reported_count
	`
	_, err := s.db.ExecContext(ctx, query,
		r.Key, r.Address, r.Lat, r.Lng, r.AddedAt, r.AdditionalInfo, r.ImagePath, r.ReportedCount,
	)
	if err != nil {
		return fmt.Errorf("put pending report: %w", err)
	}
	return nil
}

func (s *Store) DeletePending(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_reports WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete pending report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete pending report: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) ListPending(ctx context.Context) ([]report.Report, error) {
	const query = `
		SELECT key, address, lat, lng, added_at, additional_info, image_path, reported_count
		FROM pending_reports
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pending reports: %w", err)
	}
	defer rows.Close()

	var out []report.Report
	for rows.Next() {
		var r report.Report
		if err := rows.Scan(&r.Key, &r.Address, &r.Lat, &r.Lng, &r.AddedAt, &r.AdditionalInfo, &r.ImagePath, &r.ReportedCount); err != nil {
			return nil, fmt.Errorf("scan pending report: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetVerified(ctx context.Context, key string) (report.Report, error) {
	const query = `
		SELECT key, address, lat, lng, added_at, additional_info, image_url, reported_count
		FROM verified_reports WHERE key = $1
	`
	var r report.Report
	err := s.db.QueryRowContext(ctx, query, key).Scan(
		&r.Key, &r.Address, &r.Lat, &r.Lng, &r.AddedAt, &r.AdditionalInfo, &r.ImageURL, &r.ReportedCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return report.Report{}, sentinel.ErrNotFound
	}
	if err != nil {
		return report.Report{}, fmt.Errorf("get verified report: %w", err)
	}
	return r, nil
}

func (s *Store) PutVerified(ctx context.Context, r report.Report) error {
	const query = `
		INSERT INTO verified_reports (key, address, lat, lng, added_at, additional_info, image_url, reported_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (key) DO UPDATE SET
			address = EXCLUDED.address,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			added_at = EXCLUDED.added_at,
			additional_info = EXCLUDED.additional_info,
			image_url = EXCLUDED.image_url,
			reported_count = EXCLUDED.reported_count
	`
	_, err := s.db.ExecContext(ctx, query,
		r.Key, r.Address, r.Lat, r.Lng, r.AddedAt, r.AdditionalInfo, r.ImageURL, r.ReportedCount,
	)
	if err != nil {
		return fmt.Errorf("put verified report: %w", err)
	}
	return nil
}

func (s *Store) DeleteVerified(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM verified_reports WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete verified report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete verified report: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) ListVerified(ctx context.Context) ([]report.Report, error) {
	const query = `
		SELECT key, address, lat, lng, added_at, additional_info, image_url, reported_count
		FROM verified_reports
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list verified reports: %w", err)
	}
	defer rows.Close()

	var out []report.Report
	for rows.Next() {
		var r report.Report
		if err := rows.Scan(&r.Key, &r.Address, &r.Lat, &r.Lng, &r.AddedAt, &r.AdditionalInfo, &r.ImageURL, &r.ReportedCount); err != nil {
			return nil, fmt.Errorf("scan verified report: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// IncrementVerifiedCount is a single UPDATE so concurrent verify-merges on the
// same key cannot lose increments.
func (s *Store) IncrementVerifiedCount(ctx context.Context, key string, delta int) (report.Report, error) {
	const query = `
		UPDATE verified_reports SET reported_count = reported_count + $2
		WHERE key = $1
		RETURNING key, address, lat, lng, added_at, additional_info, image_url, reported_count
	`
	var r report.Report
	err := s.db.QueryRowContext(ctx, query, key, delta).Scan(
		&r.Key, &r.Address, &r.Lat, &r.Lng, &r.AddedAt, &r.AdditionalInfo, &r.ImageURL, &r.ReportedCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return report.Report{}, sentinel.ErrNotFound
	}
	if err != nil {
		return report.Report{}, fmt.Errorf("increment verified count: %w", err)
	}
	return r, nil
}

func (s *Store) GetStats(ctx context.Context) (report.StatsSnapshot, error) {
	var snap report.StatsSnapshot
	err := s.db.QueryRowContext(ctx,
		`SELECT total_pins, today_pins, week_pins FROM aggregate_stats WHERE id = 1`,
	).Scan(&snap.TotalPins, &snap.TodayPins, &snap.WeekPins)
	if err != nil {
		return report.StatsSnapshot{}, fmt.Errorf("get stats: %w", err)
	}
	return snap, nil
}

func (s *Store) PutStats(ctx context.Context, snap report.StatsSnapshot) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE aggregate_stats SET total_pins = $1, today_pins = $2, week_pins = $3 WHERE id = 1`,
		snap.TotalPins, snap.TodayPins, snap.WeekPins,
	)
	if err != nil {
		return fmt.Errorf("put stats: %w", err)
	}
	return nil
}

func (s *Store) AppendModeration(ctx context.Context, e report.ModerationEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO moderation_log (id, address, note, source, score, magnitude, flagged_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.New(), e.Address, e.Note, e.Source, e.Score, e.Magnitude, e.FlaggedAt)
	if err != nil {
		return fmt.Errorf("append moderation entry: %w", err)
	}
	return nil
}
