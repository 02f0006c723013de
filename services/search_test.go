package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"crypto-pulse/config"
	"crypto-pulse/providers"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeEmbedder) Dimension() int { return len(f.vec) }

type fakeStore struct {
	candidates []Candidate
	err        error

	gotMaxAgeDays int
	gotExcludeID  uint
	gotLimit      int
}

func (f *fakeStore) Nearest(ctx context.Context, queryVec []float32, maxAgeDays int, excludeID uint, limit int) ([]Candidate, error) {
	f.gotMaxAgeDays = maxAgeDays
	f.gotExcludeID = excludeID
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

type fakeSummarizer struct {
	calls int
	err   error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, text string, publishedAt *time.Time) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "digest", nil
}

func testConfig() *config.Config {
	return &config.Config{
		PrimaryThreshold:   0.70,
		FallbackThreshold:  0.60,
		MaxFetch:           20,
		MaxContextResults:  5,
		RecencyWindowsRaw:  "regulation:45,etf:14,macro:30,exchanges:14,investments:30,stablecoins:14",
		DefaultRecencyDays: 21,
	}
}

func candidatesWithScores(scores ...float64) []Candidate {
	out := make([]Candidate, 0, len(scores))
	for i, score := range scores {
		out = append(out, Candidate{
			ID:              uint(i + 100),
			Title:           fmt.Sprintf("Article %d", i),
			URL:             fmt.Sprintf("https://example.com/%d", i),
			Category:        "etf",
			Summary:         fmt.Sprintf("Summary %d", i),
			SimilarityScore: score,
		})
	}
	return out
}

func newTestSearchService(store SimilarityStore, sum providers.Summarizer) *SearchService {
	return NewSearchService(testConfig(), store, &fakeEmbedder{vec: []float32{0.1, 0.2, 0.3}}, sum, zap.NewNop())
}

func TestSearchSelectsPrimaryTierOnly(t *testing.T) {
	store := &fakeStore{candidates: candidatesWithScores(0.82, 0.71, 0.55)}
	svc := newTestSearchService(store, &fakeSummarizer{})

	refs, err := svc.SearchSimilarArticles(context.Background(), "etf inflows", "etf", 1)
	require.NoError(t, err)

	require.Len(t, refs, 2)
	assert.Equal(t, 0.82, refs[0].Similarity)
	assert.Equal(t, 0.71, refs[1].Similarity)
	assert.Equal(t, 14, store.gotMaxAgeDays)
}

func TestSearchFallsBackToSecondaryTier(t *testing.T) {
	store := &fakeStore{candidates: candidatesWithScores(0.68, 0.63, 0.40)}
	svc := newTestSearchService(store, &fakeSummarizer{})

	refs, err := svc.SearchSimilarArticles(context.Background(), "etf inflows", "etf", 1)
	require.NoError(t, err)

	require.Len(t, refs, 2)
	assert.Equal(t, 0.68, refs[0].Similarity)
	assert.Equal(t, 0.63, refs[1].Similarity)
}

func TestSearchUnfilteredSafetyNet(t *testing.T) {
	store := &fakeStore{candidates: candidatesWithScores(0.3, 0.2)}
	svc := newTestSearchService(store, &fakeSummarizer{})

	refs, err := svc.SearchSimilarArticles(context.Background(), "novel news", "etf", 1)
	require.NoError(t, err)

	// Kein Kandidat über den Schwellen, trotzdem Kontext liefern.
	require.Len(t, refs, 2)
	assert.Equal(t, 0.3, refs[0].Similarity)
	assert.Equal(t, 0.2, refs[1].Similarity)
}

func TestSearchZeroCandidatesIsEmptyNotError(t *testing.T) {
	store := &fakeStore{}
	svc := newTestSearchService(store, &fakeSummarizer{})

	refs, err := svc.SearchSimilarArticles(context.Background(), "anything", "etf", 1)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestSearchCapsResultsAtMaxContextResults(t *testing.T) {
	store := &fakeStore{candidates: candidatesWithScores(0.95, 0.92, 0.90, 0.88, 0.85, 0.80, 0.75)}
	svc := newTestSearchService(store, &fakeSummarizer{})

	refs, err := svc.SearchSimilarArticles(context.Background(), "etf inflows", "etf", 1)
	require.NoError(t, err)

	require.Len(t, refs, 5)
	assert.Equal(t, 0.95, refs[0].Similarity)
	assert.Equal(t, 0.85, refs[4].Similarity)
}

func TestRecencyDaysPerCategory(t *testing.T) {
	svc := newTestSearchService(&fakeStore{}, &fakeSummarizer{})

	assert.Equal(t, 45, svc.RecencyDays("regulation"))
	assert.Equal(t, 14, svc.RecencyDays("etf"))
	assert.Equal(t, 30, svc.RecencyDays("macro"))
	assert.Equal(t, 14, svc.RecencyDays("exchanges"))
	assert.Equal(t, 30, svc.RecencyDays("investments"))
	assert.Equal(t, 14, svc.RecencyDays("stablecoins"))
}

func TestUnknownCategoryUsesDefaultWindow(t *testing.T) {
	store := &fakeStore{candidates: candidatesWithScores(0.9)}
	svc := newTestSearchService(store, &fakeSummarizer{})

	refs, err := svc.SearchSimilarArticles(context.Background(), "text", "defi", 1)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, 21, store.gotMaxAgeDays)
}

func TestSearchForwardsExclusionAndFetchLimit(t *testing.T) {
	store := &fakeStore{}
	svc := newTestSearchService(store, &fakeSummarizer{})

	_, err := svc.SearchSimilarArticles(context.Background(), "text", "macro", 77)
	require.NoError(t, err)

	assert.Equal(t, uint(77), store.gotExcludeID)
	assert.Equal(t, 20, store.gotLimit)
}

func TestSearchUsesCachedSummaryWithoutSummarizer(t *testing.T) {
	store := &fakeStore{candidates: candidatesWithScores(0.9)}
	sum := &fakeSummarizer{}
	svc := newTestSearchService(store, sum)

	refs, err := svc.SearchSimilarArticles(context.Background(), "text", "etf", 1)
	require.NoError(t, err)

	require.Len(t, refs, 1)
	assert.Equal(t, "Summary 0", refs[0].Summary)
	assert.Zero(t, sum.calls)
}

func TestSearchGeneratesSummaryOnDemand(t *testing.T) {
	candidates := candidatesWithScores(0.9)
	candidates[0].Summary = ""
	candidates[0].Content = "long article body"
	store := &fakeStore{candidates: candidates}
	sum := &fakeSummarizer{}
	svc := newTestSearchService(store, sum)

	refs, err := svc.SearchSimilarArticles(context.Background(), "text", "etf", 1)
	require.NoError(t, err)

	require.Len(t, refs, 1)
	assert.Equal(t, "Article 0. digest", refs[0].Summary)
	assert.Equal(t, 1, sum.calls)
}

func TestSearchPropagatesEmbedderFailure(t *testing.T) {
	svc := NewSearchService(testConfig(), &fakeStore{},
		&fakeEmbedder{err: providers.ErrProviderUnavailable}, &fakeSummarizer{}, zap.NewNop())

	_, err := svc.SearchSimilarArticles(context.Background(), "text", "etf", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, providers.ErrProviderUnavailable)
}
