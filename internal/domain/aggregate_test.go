package domain

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo is an in-memory PostRepository for domain tests.
type memRepo struct {
	mu      sync.Mutex
	records map[string]PostRecord
	failErr error
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string]PostRecord)}
}

func (m *memRepo) InsertIfAbsent(_ context.Context, rec *PostRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return false, m.failErr
	}
	if _, ok := m.records[rec.ID]; ok {
		return false, nil
	}
	m.records[rec.ID] = *rec
	return true, nil
}

func (m *memRepo) RangeQuery(_ context.Context, start, end time.Time) ([]PostRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	var out []PostRecord
	for _, rec := range m.records {
		if !rec.CreatedAt.Before(start) && !rec.CreatedAt.After(end) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memRepo) CountAll(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return 0, m.failErr
	}
	return int64(len(m.records)), nil
}

func (m *memRepo) CountSince(_ context.Context, t time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return 0, m.failErr
	}
	var count int64
	for _, rec := range m.records {
		if !rec.CreatedAt.Before(t) {
			count++
		}
	}
	return count, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAggregator(t *testing.T, repo PostRepository, cfg AggregatorConfig) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(cfg, repo, testLogger())
	require.NoError(t, err)
	return agg
}

func mustAggregate(t *testing.T, agg *Aggregator, end time.Time) *WindowAggregate {
	t.Helper()
	out, err := agg.Aggregate(context.Background(), end)
	require.NoError(t, err)
	return out
}

var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func record(id string, at time.Time, class SentimentClass) PostRecord {
	return PostRecord{
		ID:             id,
		CreatedAt:      at,
		SentimentClass: class,
	}
}

func TestAggregateEmptyWindowIsZeroFilled(t *testing.T) {
	agg := newTestAggregator(t, newMemRepo(), AggregatorConfig{
		WindowLength:  time.Minute,
		BucketWidth:   10 * time.Second,
		TopK:          5,
		MinTermLength: 3,
	})

	end := baseTime.Add(time.Minute)
	out := mustAggregate(t, agg, end)

	require.Len(t, out.TimeSeries, 6)
	for i, bucket := range out.TimeSeries {
		assert.Equal(t, baseTime.Add(time.Duration(i)*10*time.Second), bucket.BucketStart)
		assert.Zero(t, bucket.Negative)
		assert.Zero(t, bucket.Neutral)
		assert.Zero(t, bucket.Positive)
	}
	assert.Empty(t, out.RegionCounts)
	assert.Empty(t, out.TagFrequencies)
	assert.Empty(t, out.TermFrequencies)
	assert.Zero(t, out.Stats.WindowCount)
}

func TestAggregateBucketCoverage(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	recs := []PostRecord{
		record("a", baseTime, SentimentPositive),
		record("b", baseTime.Add(5*time.Second), SentimentNegative),
		record("c", baseTime.Add(59*time.Second), SentimentNeutral),
		// exactly at window end, clamped into the last bucket
		record("d", baseTime.Add(time.Minute), SentimentPositive),
	}
	for i := range recs {
		_, err := repo.InsertIfAbsent(ctx, &recs[i])
		require.NoError(t, err)
	}

	agg := newTestAggregator(t, repo, AggregatorConfig{
		WindowLength:  time.Minute,
		BucketWidth:   10 * time.Second,
		TopK:          5,
		MinTermLength: 3,
	})
	out := mustAggregate(t, agg, baseTime.Add(time.Minute))

	var total int
	for _, bucket := range out.TimeSeries {
		total += bucket.Negative + bucket.Neutral + bucket.Positive
	}
	assert.Equal(t, len(recs), total)
	assert.Equal(t, 1, out.TimeSeries[0].Positive)
	assert.Equal(t, 1, out.TimeSeries[0].Negative)
	assert.Equal(t, 1, out.TimeSeries[5].Neutral)
	assert.Equal(t, 1, out.TimeSeries[5].Positive)
}

func TestAggregateIsDeterministic(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	for _, rec := range []PostRecord{
		{ID: "a", CreatedAt: baseTime, CleanText: "corona cases rising", Tags: []string{"#COVID"}, SentimentClass: SentimentNegative, RegionCode: "GBR"},
		{ID: "b", CreatedAt: baseTime.Add(3 * time.Second), CleanText: "corona fading fast", Tags: []string{"#covid"}, SentimentClass: SentimentPositive, RegionCode: "USA"},
		{ID: "c", CreatedAt: baseTime.Add(9 * time.Second), CleanText: "still waiting", SentimentClass: SentimentNeutral},
	} {
		r := rec
		_, err := repo.InsertIfAbsent(ctx, &r)
		require.NoError(t, err)
	}

	agg := newTestAggregator(t, repo, AggregatorConfig{
		WindowLength:  30 * time.Second,
		BucketWidth:   10 * time.Second,
		TopK:          10,
		MinTermLength: 3,
	})

	end := baseTime.Add(30 * time.Second)
	first := mustAggregate(t, agg, end)
	second := mustAggregate(t, agg, end)
	require.Equal(t, first, second)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)
}

func TestAggregateTopKTieBreakByFirstSeen(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	for _, rec := range []PostRecord{
		{ID: "a", CreatedAt: baseTime, CleanText: "alpha beta", SentimentClass: SentimentNeutral},
		{ID: "b", CreatedAt: baseTime.Add(time.Second), CleanText: "beta gamma alpha", SentimentClass: SentimentNeutral},
	} {
		r := rec
		_, err := repo.InsertIfAbsent(ctx, &r)
		require.NoError(t, err)
	}

	agg := newTestAggregator(t, repo, AggregatorConfig{
		WindowLength:  10 * time.Second,
		BucketWidth:   10 * time.Second,
		TopK:          2,
		MinTermLength: 3,
	})
	out := mustAggregate(t, agg, baseTime.Add(10*time.Second))

	// alpha and beta both count 2; alpha was seen first in scan order
	require.Len(t, out.TermFrequencies, 2)
	assert.Equal(t, TermCount{Term: "alpha", Count: 2}, out.TermFrequencies[0])
	assert.Equal(t, TermCount{Term: "beta", Count: 2}, out.TermFrequencies[1])
}

func TestAggregateKeepsTagAndTermTablesSeparate(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	for _, rec := range []PostRecord{
		{ID: "a", CreatedAt: baseTime, CleanText: "corona fading", Tags: []string{"#COVID"}, SentimentClass: SentimentPositive},
		{ID: "b", CreatedAt: baseTime.Add(time.Second), CleanText: "corona rising", Tags: []string{"#covid"}, SentimentClass: SentimentNegative},
	} {
		r := rec
		_, err := repo.InsertIfAbsent(ctx, &r)
		require.NoError(t, err)
	}

	agg := newTestAggregator(t, repo, AggregatorConfig{
		WindowLength:  10 * time.Second,
		BucketWidth:   10 * time.Second,
		TopK:          10,
		MinTermLength: 3,
	})
	out := mustAggregate(t, agg, baseTime.Add(10*time.Second))

	// tags stay case-sensitive
	assert.Contains(t, out.TagFrequencies, TermCount{Term: "#COVID", Count: 1})
	assert.Contains(t, out.TagFrequencies, TermCount{Term: "#covid", Count: 1})

	// body terms merge case-insensitively
	require.NotEmpty(t, out.TermFrequencies)
	assert.Equal(t, TermCount{Term: "corona", Count: 2}, out.TermFrequencies[0])
}

func TestAggregateExcludesUnresolvedRegions(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	for _, rec := range []PostRecord{
		{ID: "a", CreatedAt: baseTime, RegionCode: "GBR", SentimentClass: SentimentNeutral},
		{ID: "b", CreatedAt: baseTime.Add(time.Second), RegionCode: "GBR", SentimentClass: SentimentNeutral},
		{ID: "c", CreatedAt: baseTime.Add(2 * time.Second), RegionCode: "", SentimentClass: SentimentNeutral},
	} {
		r := rec
		_, err := repo.InsertIfAbsent(ctx, &r)
		require.NoError(t, err)
	}

	agg := newTestAggregator(t, repo, AggregatorConfig{
		WindowLength:  10 * time.Second,
		BucketWidth:   10 * time.Second,
		TopK:          10,
		MinTermLength: 3,
	})
	out := mustAggregate(t, agg, baseTime.Add(10*time.Second))

	assert.Equal(t, map[string]int{"GBR": 2}, out.RegionCounts)
	// the unresolved record still counts in the time series
	assert.Equal(t, 3, out.TimeSeries[0].Neutral)
}

func TestAggregateTrendPercent(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	end := baseTime.Add(time.Minute)
	// one record in the prior half, two in the recent half
	for _, rec := range []PostRecord{
		record("a", baseTime.Add(5*time.Second), SentimentNeutral),
		record("b", baseTime.Add(40*time.Second), SentimentNeutral),
		record("c", baseTime.Add(50*time.Second), SentimentNeutral),
	} {
		r := rec
		_, err := repo.InsertIfAbsent(ctx, &r)
		require.NoError(t, err)
	}

	agg := newTestAggregator(t, repo, AggregatorConfig{
		WindowLength:  time.Minute,
		BucketWidth:   10 * time.Second,
		TopK:          10,
		MinTermLength: 3,
	})
	out := mustAggregate(t, agg, end)

	assert.InDelta(t, 100.0, out.Stats.TrendPercent, 0.001)
	assert.Equal(t, 3, out.Stats.WindowCount)
}

func TestOnTriggerKeepsPreviousAggregateOnStoreFailure(t *testing.T) {
	repo := newMemRepo()
	agg := newTestAggregator(t, repo, AggregatorConfig{
		WindowLength:  time.Minute,
		BucketWidth:   10 * time.Second,
		TopK:          10,
		MinTermLength: 3,
	})

	ctx := context.Background()
	require.Nil(t, agg.Latest())

	agg.OnTrigger(ctx, baseTime)
	published := agg.Latest()
	require.NotNil(t, published)

	repo.mu.Lock()
	repo.failErr = errors.New("store unavailable")
	repo.mu.Unlock()

	agg.OnTrigger(ctx, baseTime.Add(time.Minute))
	assert.Same(t, published, agg.Latest())

	_, failures := agg.CycleCounters()
	assert.Equal(t, int64(1), failures)
}

func TestNewAggregatorRejectsInvalidConfig(t *testing.T) {
	_, err := NewAggregator(AggregatorConfig{
		WindowLength:  time.Second,
		BucketWidth:   time.Minute,
		TopK:          10,
		MinTermLength: 3,
	}, newMemRepo(), testLogger())
	assert.Error(t, err)

	_, err = NewAggregator(AggregatorConfig{
		WindowLength:  time.Minute,
		BucketWidth:   time.Second,
		TopK:          0,
		MinTermLength: 3,
	}, newMemRepo(), testLogger())
	assert.Error(t, err)
}
