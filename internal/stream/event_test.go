package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	data := []byte(`{
		"id": "p1",
		"created_at": "2026-03-01T10:00:00Z",
		"text": "Corona is fading",
		"extended_text": "Corona is fading across the region",
		"langs": ["en"],
		"user_location": "London, UK",
		"coordinates": {"lon": -0.1276, "lat": 51.5072},
		"polarity": 0.6
	}`)

	post, err := parseEvent(data)
	require.NoError(t, err)

	assert.Equal(t, "p1", post.ID)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), post.CreatedAt)
	assert.Equal(t, "Corona is fading across the region", post.FullText())
	assert.Equal(t, []string{"en"}, post.Langs)
	assert.False(t, post.Reshare)
	assert.Equal(t, "London, UK", post.RawLocation)
	require.NotNil(t, post.Coordinates)
	assert.Equal(t, 51.5072, post.Coordinates.Latitude)
	require.NotNil(t, post.Polarity)
	assert.Equal(t, 0.6, *post.Polarity)
}

func TestParseEventMinimal(t *testing.T) {
	post, err := parseEvent([]byte(`{"id": "p2", "text": "corona"}`))
	require.NoError(t, err)

	assert.Equal(t, "p2", post.ID)
	assert.True(t, post.CreatedAt.IsZero())
	assert.Nil(t, post.Coordinates)
	assert.Nil(t, post.Polarity)
}

func TestParseEventErrors(t *testing.T) {
	_, err := parseEvent([]byte(`{not json`))
	assert.Error(t, err)

	_, err = parseEvent([]byte(`{"id": "p3", "created_at": "yesterday"}`))
	assert.Error(t, err)
}
