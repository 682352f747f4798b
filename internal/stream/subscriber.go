package stream

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/blackmichael/streampulse/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	reconnectDelay   = 5 * time.Second
	statsLogInterval = 30 * time.Second
)

// Subscriber connects to the upstream post feed over WebSocket and pushes
// parsed events into a bounded queue consumed by the ingestor. A full queue
// blocks the reader, which is the backpressure policy: the upstream is
// at-least-once, so slowing down beats silently dropping records.
type Subscriber struct {
	url      string
	keywords []string
	langs    []string
	events   chan<- *domain.StreamPost
	logger   *slog.Logger
}

// NewSubscriber creates a subscriber that requests server-side filtering by
// the given track keywords and language codes, mirroring the in-process
// filter so redundant traffic stays off the wire.
func NewSubscriber(streamURL string, keywords, langs []string, events chan<- *domain.StreamPost, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		url:      streamURL,
		keywords: keywords,
		langs:    langs,
		events:   events,
		logger:   logger,
	}
}

// Start connects to the feed and processes events until the context is
// cancelled. It automatically reconnects on transient errors.
func (s *Subscriber) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.subscribe(ctx); err != nil {
				s.logger.Error("stream connection error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(reconnectDelay):
					// backoff before reconnecting
				}
			}
		}
	}
}

func (s *Subscriber) buildURL() string {
	u, err := url.Parse(s.url)
	if err != nil {
		// config validation rejects unparseable URLs; if one slips through,
		// let the dial report it instead of panicking here
		return s.url
	}
	q := u.Query()
	for _, kw := range s.keywords {
		q.Add("track", kw)
	}
	for _, l := range s.langs {
		q.Add("lang", l)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	wsURL := s.buildURL()
	s.logger.Info("connecting to upstream stream", "url", wsURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}
	defer conn.Close()

	s.logger.Info("connected to upstream stream")

	var eventsReceived, eventsQueued, parseFailures int64
	lastStatsLog := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}
		eventsReceived++

		post, err := parseEvent(message)
		if err != nil {
			parseFailures++
			s.logger.Error("failed to parse event", "error", err)
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case s.events <- post:
			eventsQueued++
		}

		if time.Since(lastStatsLog) >= statsLogInterval {
			s.logger.Info("stream stats",
				"events_received", eventsReceived,
				"events_queued", eventsQueued,
				"parse_failures", parseFailures,
			)
			lastStatsLog = time.Now()
		}
	}
}
