package domain

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

const ingestStatsInterval = 30 * time.Second

// IngestorConfig describes the stream filtering and retry rules.
type IngestorConfig struct {
	// Keywords are the terms to match against post text using word
	// boundaries. At least one is required.
	Keywords []string

	// Langs restricts ingestion to posts tagged with at least one of these
	// language codes. An empty slice means no language filter.
	Langs []string

	// MaxAttempts bounds retries against the scorer and the store before a
	// record is dropped and counted.
	MaxAttempts int

	// InitialBackoff is the first retry delay; subsequent delays grow
	// exponentially.
	InitialBackoff time.Duration
}

// IngestCounters is a snapshot of the ingestor's observable counters.
type IngestCounters struct {
	Received   int64 `json:"received"`
	Stored     int64 `json:"stored"`
	Duplicates int64 `json:"duplicates"`
	Reshares   int64 `json:"reshares"`
	Unmatched  int64 `json:"unmatched"`
	Malformed  int64 `json:"malformed"`
	Failed     int64 `json:"failed"`
}

// Ingestor consumes upstream post events one at a time: it filters by
// keyword and language, rejects reshares, normalizes and classifies the
// text, resolves geography, and writes the resulting record to the store.
// Per-record failures are dropped and counted, never propagated; a bad
// record must not halt ingestion.
type Ingestor struct {
	pattern        *regexp.Regexp
	langs          map[string]struct{} // nil means no filter
	repo           PostRepository
	scorer         Scorer
	geo            GeoResolver
	maxAttempts    int
	initialBackoff time.Duration
	logger         *slog.Logger

	received   atomic.Int64
	stored     atomic.Int64
	duplicates atomic.Int64
	reshares   atomic.Int64
	unmatched  atomic.Int64
	malformed  atomic.Int64
	failed     atomic.Int64
}

// NewIngestor creates an Ingestor with the given filter configuration.
func NewIngestor(cfg IngestorConfig, repo PostRepository, scorer Scorer, geo GeoResolver, logger *slog.Logger) (*Ingestor, error) {
	if len(cfg.Keywords) == 0 {
		return nil, fmt.Errorf("at least one keyword is required")
	}
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("max attempts must be positive")
	}

	escaped := make([]string, len(cfg.Keywords))
	for i, kw := range cfg.Keywords {
		escaped[i] = regexp.QuoteMeta(kw)
	}

	expr := `(?i)\b(?:` + strings.Join(escaped, "|") + `)\b`
	pattern, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile keyword pattern: %w", err)
	}

	ing := &Ingestor{
		pattern:        pattern,
		repo:           repo,
		scorer:         scorer,
		geo:            geo,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		logger:         logger,
	}
	if ing.initialBackoff <= 0 {
		ing.initialBackoff = 200 * time.Millisecond
	}

	if len(cfg.Langs) > 0 {
		ing.langs = make(map[string]struct{}, len(cfg.Langs))
		for _, l := range cfg.Langs {
			ing.langs[l] = struct{}{}
		}
	}

	return ing, nil
}

// Run drains events from the queue until ctx is cancelled. The event being
// processed when cancellation arrives is finished before Run returns.
func (ing *Ingestor) Run(ctx context.Context, events <-chan *StreamPost) {
	lastStatsLog := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if ev == nil {
				continue
			}
			// The event already picked up must complete even if ctx is
			// cancelled mid-pipeline; cancellation only stops the loop from
			// taking the next one.
			if stored, err := ing.Process(context.WithoutCancel(ctx), ev); err != nil {
				ing.logger.Warn("dropped post", "id", ev.ID, "error", err)
			} else if stored {
				ing.logger.Debug("stored post", "id", ev.ID)
			}

			if time.Since(lastStatsLog) >= ingestStatsInterval {
				c := ing.Counters()
				ing.logger.Info("ingest stats",
					"received", c.Received,
					"stored", c.Stored,
					"duplicates", c.Duplicates,
					"unmatched", c.Unmatched,
					"malformed", c.Malformed,
					"failed", c.Failed,
				)
				lastStatsLog = time.Now()
			}
		}
	}
}

// Process runs one event through the full ingestion pipeline. It returns
// true if a new record was written. Any returned error describes why the
// event was dropped; the caller logs it and moves on.
func (ing *Ingestor) Process(ctx context.Context, ev *StreamPost) (bool, error) {
	ing.received.Add(1)

	if ev.ID == "" || ev.CreatedAt.IsZero() {
		ing.malformed.Add(1)
		return false, fmt.Errorf("malformed event: missing id or created_at")
	}

	if ev.Reshare {
		ing.reshares.Add(1)
		return false, nil
	}

	text := ev.FullText()
	if !ing.matches(text, ev.Langs) {
		ing.unmatched.Add(1)
		return false, nil
	}

	clean := Normalize(text)
	if clean == "" {
		ing.unmatched.Add(1)
		return false, nil
	}

	var polarity, subjectivity float64
	if ev.Polarity != nil {
		polarity = *ev.Polarity
	} else {
		err := ing.retry(ctx, func() error {
			var scoreErr error
			polarity, subjectivity, scoreErr = ing.scorer.Score(ctx, clean)
			return scoreErr
		})
		if err != nil {
			ing.failed.Add(1)
			return false, fmt.Errorf("score post %s: %w", ev.ID, err)
		}
	}

	rec := &PostRecord{
		ID:             ev.ID,
		CreatedAt:      ev.CreatedAt.UTC(),
		RawText:        text,
		CleanText:      clean,
		Tags:           ExtractTags(text),
		Polarity:       polarity,
		Subjectivity:   subjectivity,
		SentimentClass: Classify(polarity),
		RawLocation:    ev.RawLocation,
		RegionCode:     ing.geo.Resolve(ev.RawLocation),
		Coordinates:    ev.Coordinates,
	}

	var inserted bool
	err := ing.retry(ctx, func() error {
		var insertErr error
		inserted, insertErr = ing.repo.InsertIfAbsent(ctx, rec)
		return insertErr
	})
	if err != nil {
		ing.failed.Add(1)
		return false, fmt.Errorf("store post %s: %w", ev.ID, err)
	}

	if !inserted {
		ing.duplicates.Add(1)
		return false, nil
	}

	ing.stored.Add(1)
	return true, nil
}

// Counters returns a snapshot of the ingest counters.
func (ing *Ingestor) Counters() IngestCounters {
	return IngestCounters{
		Received:   ing.received.Load(),
		Stored:     ing.stored.Load(),
		Duplicates: ing.duplicates.Load(),
		Reshares:   ing.reshares.Load(),
		Unmatched:  ing.unmatched.Load(),
		Malformed:  ing.malformed.Load(),
		Failed:     ing.failed.Load(),
	}
}

// retry runs op up to maxAttempts times with exponential backoff between
// attempts, honouring ctx cancellation while waiting.
func (ing *Ingestor) retry(ctx context.Context, op func() error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = ing.initialBackoff
	exp.Multiplier = 2

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(ing.maxAttempts-1)), ctx)
	return backoff.Retry(op, policy)
}

// matches returns true if the post passes the language filter and its text
// contains at least one tracked keyword.
func (ing *Ingestor) matches(text string, langs []string) bool {
	if ing.langs != nil {
		matched := false
		for _, l := range langs {
			if _, ok := ing.langs[l]; ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return ing.pattern.MatchString(text)
}
