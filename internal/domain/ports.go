package domain

import (
	"context"
	"time"
)

// PostRepository defines persistence operations for ingested posts.
type PostRepository interface {
	// InsertIfAbsent writes a record unless one with the same ID already
	// exists, making redelivered events a no-op. Returns true if a row was
	// written.
	InsertIfAbsent(ctx context.Context, rec *PostRecord) (bool, error)

	// RangeQuery returns all records with CreatedAt in [start, end] ordered
	// by ascending CreatedAt.
	RangeQuery(ctx context.Context, start, end time.Time) ([]PostRecord, error)

	// CountAll returns the total number of stored records.
	CountAll(ctx context.Context) (int64, error)

	// CountSince returns the number of records created at or after t.
	CountSince(ctx context.Context, t time.Time) (int64, error)
}

// Scorer produces a polarity score in [-1, 1] and a subjectivity estimate in
// [0, 1] for normalized post text.
type Scorer interface {
	Score(ctx context.Context, text string) (polarity, subjectivity float64, err error)
}

// GeoResolver maps free-form location text to a standardized region code. An
// empty result means the location was unresolvable, which is an expected
// outcome rather than an error.
type GeoResolver interface {
	Resolve(rawLocation string) string
}
