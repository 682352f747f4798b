package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/blackmichael/streampulse/internal/domain"
)

// postEvent is the raw JSON structure delivered by the upstream feed.
type postEvent struct {
	ID           string       `json:"id"`
	CreatedAt    string       `json:"created_at"`
	Text         string       `json:"text"`
	ExtendedText string       `json:"extended_text,omitempty"`
	Langs        []string     `json:"langs,omitempty"`
	Reshare      bool         `json:"reshare,omitempty"`
	UserLocation string       `json:"user_location,omitempty"`
	Coordinates  *coordinates `json:"coordinates,omitempty"`
	Polarity     *float64     `json:"polarity,omitempty"`
}

// coordinates is a precise geotag as sent upstream.
type coordinates struct {
	Longitude float64 `json:"lon"`
	Latitude  float64 `json:"lat"`
}

// parseEvent decodes one upstream message into a StreamPost. A missing
// created_at yields a zero time, which the ingestor drops as malformed; an
// unparseable one is a parse error handled by the subscriber.
func parseEvent(data []byte) (*domain.StreamPost, error) {
	var raw postEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}

	post := &domain.StreamPost{
		ID:           raw.ID,
		Text:         raw.Text,
		ExtendedText: raw.ExtendedText,
		Langs:        raw.Langs,
		Reshare:      raw.Reshare,
		RawLocation:  raw.UserLocation,
		Polarity:     raw.Polarity,
	}

	if raw.CreatedAt != "" {
		t, err := time.Parse(time.RFC3339, raw.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		post.CreatedAt = t.UTC()
	}

	if raw.Coordinates != nil {
		post.Coordinates = &domain.Coordinates{
			Longitude: raw.Coordinates.Longitude,
			Latitude:  raw.Coordinates.Latitude,
		}
	}

	return post, nil
}
