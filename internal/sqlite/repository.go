// Package sqlite implements the Record Store on an embedded SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blackmichael/streampulse/internal/domain"
	_ "modernc.org/sqlite"
)

// created_at is stored as unix milliseconds so range scans and ordering are
// plain integer comparisons.
const schema = `
CREATE TABLE IF NOT EXISTS posts (
	id TEXT PRIMARY KEY,
	created_at INTEGER NOT NULL,
	raw_text TEXT NOT NULL,
	clean_text TEXT NOT NULL,
	tags TEXT NOT NULL DEFAULT '',
	polarity REAL NOT NULL,
	subjectivity REAL NOT NULL,
	sentiment_class INTEGER NOT NULL,
	raw_location TEXT NOT NULL DEFAULT '',
	region_code TEXT NOT NULL DEFAULT '',
	longitude REAL,
	latitude REAL
);
CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts (created_at);
`

// Repository implements domain.PostRepository using SQLite.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path, enables WAL journal mode so
// the ingest writer and aggregation readers don't block each other, and
// ensures the schema exists. The caller should Close the repository when
// done.
func Open(path string) (*Repository, error) {
	// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// InsertIfAbsent writes a record unless its id already exists. Returns true
// if a row was written, false if the id was a duplicate.
func (r *Repository) InsertIfAbsent(ctx context.Context, rec *domain.PostRecord) (bool, error) {
	query := `
		INSERT INTO posts (
			id, created_at, raw_text, clean_text, tags, polarity,
			subjectivity, sentiment_class, raw_location, region_code,
			longitude, latitude
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`

	var lon, lat any
	if rec.Coordinates != nil {
		lon = rec.Coordinates.Longitude
		lat = rec.Coordinates.Latitude
	}

	res, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.CreatedAt.UTC().UnixMilli(),
		rec.RawText,
		rec.CleanText,
		strings.Join(rec.Tags, " "),
		rec.Polarity,
		rec.Subjectivity,
		int(rec.SentimentClass),
		rec.RawLocation,
		rec.RegionCode,
		lon,
		lat,
	)
	if err != nil {
		return false, fmt.Errorf("insert post: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// RangeQuery returns records with created_at in [start, end] ordered by
// ascending created_at, ties broken by id so repeated scans over the same
// snapshot return the same sequence.
func (r *Repository) RangeQuery(ctx context.Context, start, end time.Time) ([]domain.PostRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, created_at, raw_text, clean_text, tags, polarity,
		       subjectivity, sentiment_class, raw_location, region_code,
		       longitude, latitude
		FROM posts
		WHERE created_at BETWEEN ? AND ?
		ORDER BY created_at ASC, id ASC`,
		start.UTC().UnixMilli(), end.UTC().UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("query posts (start=%v, end=%v): %w", start, end, err)
	}
	defer rows.Close()

	var records []domain.PostRecord
	for rows.Next() {
		var (
			rec       domain.PostRecord
			createdAt int64
			tags      string
			class     int
			lon, lat  sql.NullFloat64
		)
		err := rows.Scan(
			&rec.ID,
			&createdAt,
			&rec.RawText,
			&rec.CleanText,
			&tags,
			&rec.Polarity,
			&rec.Subjectivity,
			&class,
			&rec.RawLocation,
			&rec.RegionCode,
			&lon,
			&lat,
		)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}

		rec.CreatedAt = time.UnixMilli(createdAt).UTC()
		rec.Tags = strings.Fields(tags)
		rec.SentimentClass = domain.SentimentClass(class)
		if lon.Valid && lat.Valid {
			rec.Coordinates = &domain.Coordinates{
				Longitude: lon.Float64,
				Latitude:  lat.Float64,
			}
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return records, nil
}

// CountAll returns the total number of stored records.
func (r *Repository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return count, nil
}

// CountSince returns the number of records created at or after t.
func (r *Repository) CountSince(ctx context.Context, t time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE created_at >= ?`,
		t.UTC().UnixMilli(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count posts since %v: %w", t, err)
	}
	return count, nil
}
