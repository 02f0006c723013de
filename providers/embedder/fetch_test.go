package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"crypto-pulse/config"
	"crypto-pulse/providers"
)

func newTestFetcher(baseURL string, dim int) *Fetcher {
	cfg := &config.Config{EmbedderBaseURL: baseURL, EmbeddingDim: dim}
	return NewFetcher(cfg, zap.NewNop())
}

func TestEmbedReturnsVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"hello"}, req.Inputs)
		assert.True(t, req.Normalize)

		json.NewEncoder(w).Encode([][]float32{{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL, 3)
	vec, err := f.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, f.Dimension())
}

func TestEmbedDimensionMismatchFailsFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([][]float32{{0.1, 0.2}})
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL, 3)
	_, err := f.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, providers.ErrDimensionMismatch)
}

func TestEmbedBackendErrorIsProviderUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newTestFetcher(srv.URL, 3)
	_, err := f.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, providers.ErrProviderUnavailable)
}

func TestEmbedUnreachableBackendIsProviderUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // Backend weg

	f := newTestFetcher(srv.URL, 3)
	_, err := f.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, providers.ErrProviderUnavailable)
}
