package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"crypto-pulse/config"
	"crypto-pulse/models"
)

func newTestPipeline(timeoutSeconds int) *PipelineService {
	cfg := &config.Config{AnalysisTimeoutSeconds: timeoutSeconds}
	return &PipelineService{Config: cfg, Logger: zap.NewNop()}
}

func TestProcessEachContinuesAfterFailure(t *testing.T) {
	p := newTestPipeline(300)
	articles := []models.NewsArticle{{ID: 1}, {ID: 2}, {ID: 3}}

	var processed []uint
	ok, failed := p.processEach(context.Background(), articles, func(ctx context.Context, a *models.NewsArticle) error {
		processed = append(processed, a.ID)
		if a.ID == 2 {
			return errors.New("llm exploded")
		}
		return nil
	})

	// Ein kaputter Artikel bricht den Batch nicht ab.
	assert.Equal(t, []uint{1, 2, 3}, processed)
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, failed)
}

func TestProcessEachEnforcesPerArticleTimeout(t *testing.T) {
	p := newTestPipeline(0) // sofortiges Timeout
	articles := []models.NewsArticle{{ID: 1}, {ID: 2}}

	var processed []uint
	ok, failed := p.processEach(context.Background(), articles, func(ctx context.Context, a *models.NewsArticle) error {
		processed = append(processed, a.ID)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	assert.Equal(t, []uint{1, 2}, processed)
	assert.Equal(t, 0, ok)
	assert.Equal(t, 2, failed)
}

func TestProcessEachTouchesEachArticleOnce(t *testing.T) {
	p := newTestPipeline(300)
	articles := []models.NewsArticle{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}

	counts := map[uint]int{}
	ok, _ := p.processEach(context.Background(), articles, func(ctx context.Context, a *models.NewsArticle) error {
		counts[a.ID]++
		return nil
	})

	assert.Equal(t, 4, ok)
	for id, n := range counts {
		assert.Equalf(t, 1, n, "article %d processed more than once", id)
	}
}
