package domain

import "time"

// SentimentClass is the ternary sentiment label derived from a polarity score.
type SentimentClass int8

const (
	SentimentNegative SentimentClass = -1
	SentimentNeutral  SentimentClass = 0
	SentimentPositive SentimentClass = 1
)

// Coordinates is a precise (longitude, latitude) pair from upstream geotagging.
type Coordinates struct {
	Longitude float64 `json:"lon"`
	Latitude  float64 `json:"lat"`
}

// PostRecord represents a normalized post stored in our database. Records are
// append-only: once written they are never mutated.
type PostRecord struct {
	// ID is the upstream-assigned unique identifier, used for deduplication.
	ID string

	// CreatedAt is the post's creation time in UTC.
	CreatedAt time.Time

	// RawText is the original post body as delivered upstream.
	RawText string

	// CleanText is the normalized body, derived once at ingestion.
	CleanText string

	// Tags are the extracted hashtag tokens in order of appearance.
	Tags []string

	// Polarity is the signed sentiment score in [-1, 1].
	Polarity float64

	// Subjectivity is the scorer's subjectivity estimate in [0, 1].
	Subjectivity float64

	// SentimentClass is derived deterministically from Polarity.
	SentimentClass SentimentClass

	// RawLocation is the free-text location the author declared, if any.
	RawLocation string

	// RegionCode is the resolved region, empty if the location was
	// unresolvable.
	RegionCode string

	// Coordinates is the precise geotag if upstream provided one. It is
	// independent of RegionCode, which is always resolved from RawLocation.
	Coordinates *Coordinates
}

// StreamPost represents a post event from the upstream stream that hasn't
// been processed yet.
type StreamPost struct {
	ID           string
	CreatedAt    time.Time
	Text         string
	ExtendedText string
	Langs        []string
	Reshare      bool
	RawLocation  string
	Coordinates  *Coordinates

	// Polarity carries an upstream-computed score when present. When nil the
	// ingestor consults its Scorer.
	Polarity *float64
}

// FullText returns the fullest available text representation, preferring the
// extended form over the truncated one.
func (p *StreamPost) FullText() string {
	if p.ExtendedText != "" {
		return p.ExtendedText
	}
	return p.Text
}
