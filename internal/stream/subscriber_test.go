package stream

import (
	"io"
	"log/slog"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackmichael/streampulse/internal/domain"
)

func TestBuildURLAddsFilterParams(t *testing.T) {
	events := make(chan *domain.StreamPost, 1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewSubscriber("wss://stream.example.com/posts", []string{"corona", "covid19"}, []string{"en"}, events, logger)

	u, err := url.Parse(s.buildURL())
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, []string{"corona", "covid19"}, q["track"])
	assert.Equal(t, []string{"en"}, q["lang"])
}

func TestBuildURLPassesThroughUnparseableURL(t *testing.T) {
	events := make(chan *domain.StreamPost, 1)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewSubscriber("://not-a-url", nil, nil, events, logger)

	assert.NotPanics(t, func() {
		assert.Equal(t, "://not-a-url", s.buildURL())
	})
}
