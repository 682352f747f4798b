package domain

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// SentimentBucket is one fixed-width slice of the aggregation window with
// per-class record counts.
type SentimentBucket struct {
	BucketStart time.Time `json:"bucket_start"`
	Negative    int       `json:"negative"`
	Neutral     int       `json:"neutral"`
	Positive    int       `json:"positive"`
}

// TermCount is one entry in a ranked frequency table.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// WindowStats summarizes volume over and beyond the window.
type WindowStats struct {
	// TotalStored is the all-time record count in the store.
	TotalStored int64 `json:"total_stored"`

	// WindowCount is the number of records in the aggregated window.
	WindowCount int `json:"window_count"`

	// Negative, Neutral and Positive are whole-window sentiment totals.
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
	Positive int `json:"positive"`

	// TrendPercent is the volume change of the most recent half of the
	// window relative to the preceding half. Zero when the preceding half
	// is empty.
	TrendPercent float64 `json:"trend_percent"`
}

// WindowAggregate is the derived view over one trailing window. It is
// recomputed from scratch on every trigger and handed to the presentation
// layer as-is, never persisted.
type WindowAggregate struct {
	WindowStart time.Time     `json:"window_start"`
	WindowEnd   time.Time     `json:"window_end"`
	BucketWidth time.Duration `json:"bucket_width"`

	// TimeSeries has exactly WindowLength/BucketWidth entries; buckets with
	// no records are present with zero counts so the series is gap-free.
	TimeSeries []SentimentBucket `json:"time_series"`

	// RegionCounts maps resolved region codes to record counts. Records
	// with no resolved region are excluded.
	RegionCounts map[string]int `json:"region_counts"`

	// TagFrequencies and TermFrequencies are kept as two parallel tables:
	// tags are counted case-sensitively, body terms after lower-casing.
	TagFrequencies  []TermCount `json:"tag_frequencies"`
	TermFrequencies []TermCount `json:"term_frequencies"`

	Stats WindowStats `json:"stats"`
}

// AggregatorConfig describes the window shape and frequency table rules.
type AggregatorConfig struct {
	WindowLength  time.Duration
	BucketWidth   time.Duration
	TopK          int
	MinTermLength int
	Stopwords     []string
}

// Aggregator recomputes the trailing-window views on each trigger and
// publishes the latest result for the presentation layer. Runs are
// serialized: a trigger that fires while a run is in progress is skipped.
type Aggregator struct {
	repo      PostRepository
	cfg       AggregatorConfig
	stopwords map[string]struct{}
	logger    *slog.Logger

	runMu sync.Mutex // serializes aggregation runs

	mu     sync.RWMutex // guards latest
	latest *WindowAggregate

	skipped  atomic.Int64
	failures atomic.Int64
}

// NewAggregator validates the configuration and creates an Aggregator.
func NewAggregator(cfg AggregatorConfig, repo PostRepository, logger *slog.Logger) (*Aggregator, error) {
	if cfg.WindowLength <= 0 || cfg.BucketWidth <= 0 {
		return nil, fmt.Errorf("window length and bucket width must be positive")
	}
	if cfg.BucketWidth > cfg.WindowLength {
		return nil, fmt.Errorf("bucket width %s exceeds window length %s", cfg.BucketWidth, cfg.WindowLength)
	}
	if cfg.TopK <= 0 {
		return nil, fmt.Errorf("top-k must be positive")
	}
	if cfg.MinTermLength <= 0 {
		return nil, fmt.Errorf("minimum term length must be positive")
	}

	words := cfg.Stopwords
	if words == nil {
		words = DefaultStopwords
	}

	return &Aggregator{
		repo:      repo,
		cfg:       cfg,
		stopwords: StopwordSet(words),
		logger:    logger,
	}, nil
}

// Aggregate recomputes the derived views over the trailing window ending at
// windowEnd. It is a pure function of the store snapshot and the
// configuration: identical inputs yield identical output. An empty window
// produces a well-formed aggregate with zero-filled buckets and empty
// tables.
func (a *Aggregator) Aggregate(ctx context.Context, windowEnd time.Time) (*WindowAggregate, error) {
	windowEnd = windowEnd.UTC()
	start := windowEnd.Add(-a.cfg.WindowLength)

	records, err := a.repo.RangeQuery(ctx, start, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("range query: %w", err)
	}

	numBuckets := int(a.cfg.WindowLength / a.cfg.BucketWidth)
	series := make([]SentimentBucket, numBuckets)
	for i := range series {
		series[i].BucketStart = start.Add(time.Duration(i) * a.cfg.BucketWidth)
	}

	regions := make(map[string]int)
	tags := newFrequencyTable()
	terms := newFrequencyTable()
	stats := WindowStats{WindowCount: len(records)}

	halfway := windowEnd.Add(-a.cfg.WindowLength / 2)
	var recent, prior int

	for i := range records {
		if i%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		rec := &records[i]

		// A record at exactly windowEnd lands past the half-open bucket
		// grid; clamp it into the last bucket.
		idx := int(rec.CreatedAt.Sub(start) / a.cfg.BucketWidth)
		if idx < 0 {
			idx = 0
		} else if idx >= numBuckets {
			idx = numBuckets - 1
		}

		switch rec.SentimentClass {
		case SentimentNegative:
			series[idx].Negative++
			stats.Negative++
		case SentimentPositive:
			series[idx].Positive++
			stats.Positive++
		default:
			series[idx].Neutral++
			stats.Neutral++
		}

		if rec.RegionCode != "" {
			regions[rec.RegionCode]++
		}

		for _, tag := range rec.Tags {
			tags.add(tag)
		}
		for _, w := range Tokenize(rec.CleanText, a.cfg.MinTermLength, a.stopwords) {
			terms.add(w)
		}

		if rec.CreatedAt.Before(halfway) {
			prior++
		} else {
			recent++
		}
	}

	if prior > 0 {
		stats.TrendPercent = float64(recent-prior) / float64(prior) * 100
	}

	total, err := a.repo.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("count all: %w", err)
	}
	stats.TotalStored = total

	return &WindowAggregate{
		WindowStart:     start,
		WindowEnd:       windowEnd,
		BucketWidth:     a.cfg.BucketWidth,
		TimeSeries:      series,
		RegionCounts:    regions,
		TagFrequencies:  tags.topK(a.cfg.TopK),
		TermFrequencies: terms.topK(a.cfg.TopK),
		Stats:           stats,
	}, nil
}

// OnTrigger runs one aggregation cycle ending at now. If a previous cycle is
// still in progress the trigger is skipped rather than queued. A store
// failure skips the cycle and keeps the previously published aggregate; the
// next trigger retries fresh.
func (a *Aggregator) OnTrigger(ctx context.Context, now time.Time) {
	if !a.runMu.TryLock() {
		a.skipped.Add(1)
		a.logger.Warn("aggregation run in progress, skipping trigger")
		return
	}
	defer a.runMu.Unlock()

	agg, err := a.Aggregate(ctx, now)
	if err != nil {
		a.failures.Add(1)
		a.logger.Error("aggregation cycle failed", "error", err)
		return
	}

	a.mu.Lock()
	a.latest = agg
	a.mu.Unlock()

	a.logger.Info("aggregation complete",
		"window_count", agg.Stats.WindowCount,
		"regions", len(agg.RegionCounts),
		"buckets", len(agg.TimeSeries),
	)
}

// Latest returns the most recently published aggregate, or nil before the
// first successful cycle.
func (a *Aggregator) Latest() *WindowAggregate {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest
}

// CycleCounters reports skipped triggers and failed cycles.
func (a *Aggregator) CycleCounters() (skipped, failures int64) {
	return a.skipped.Load(), a.failures.Load()
}

// Start runs the periodic trigger loop until ctx is cancelled. It fires once
// immediately so the API has an aggregate before the first interval elapses.
func (a *Aggregator) Start(ctx context.Context, interval time.Duration) {
	a.OnTrigger(ctx, time.Now().UTC())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticker.C:
			a.OnTrigger(ctx, tick.UTC())
		}
	}
}

// frequencyTable tallies term counts and remembers first-seen order so top-K
// ties break deterministically.
type frequencyTable struct {
	counts map[string]int
	order  map[string]int
	next   int
}

func newFrequencyTable() *frequencyTable {
	return &frequencyTable{
		counts: make(map[string]int),
		order:  make(map[string]int),
	}
}

func (t *frequencyTable) add(term string) {
	if _, ok := t.counts[term]; !ok {
		t.order[term] = t.next
		t.next++
	}
	t.counts[term]++
}

// topK returns the k highest-count terms, ties broken by first-seen order.
func (t *frequencyTable) topK(k int) []TermCount {
	out := make([]TermCount, 0, len(t.counts))
	for term, c := range t.counts {
		out = append(out, TermCount{Term: term, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return t.order[out[i].Term] < t.order[out[j].Term]
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}
