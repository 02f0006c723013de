package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"crypto-pulse/config"
	"crypto-pulse/providers"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// Fetcher kapselt das Embedding-Backend (TEI-kompatibler /embed Endpunkt,
// z.B. text-embeddings-inference mit all-mpnet-base-v2).
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen Embedding-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Dimension gibt die konfigurierte Vektordimension zurück.
func (f *Fetcher) Dimension() int {
	return f.Config.EmbeddingDim
}

type embedRequest struct {
	Inputs    []string `json:"inputs"`
	Normalize bool     `json:"normalize"`
}

// Embed bildet einen Text auf einen normalisierten Vektor fester Dimension
// ab. Liefert das Backend eine abweichende Dimension, schlägt der Aufruf
// sofort mit ErrDimensionMismatch fehl statt fehlerhafte Vektoren zu
// persistieren.
func (f *Fetcher) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(embedRequest{Inputs: []string{text}, Normalize: true})
	if err != nil {
		return nil, err
	}

	url := f.Config.EmbedderBaseURL + "/embed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		f.Logger.Error("Embedding request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", providers.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		f.Logger.Error("Embedding API returned non-200 status",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, fmt.Errorf("%w: status %d", providers.ErrProviderUnavailable, resp.StatusCode)
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("fehler beim Parsen der Embedding-Antwort: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding response was empty")
	}

	vec := vectors[0]
	if len(vec) != f.Config.EmbeddingDim {
		return nil, fmt.Errorf("%w: got %d, want %d",
			providers.ErrDimensionMismatch, len(vec), f.Config.EmbeddingDim)
	}
	return vec, nil
}
