package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"crypto-pulse/config"
	"crypto-pulse/providers"
)

// SearchService ist die Kontext-Auswahl für die RAG-Analyse: sie wandelt
// einen Ziel-Artikel in eine geordnete Liste von Referenz-Zusammenfassungen
// um. Kategorieabhängiges Recency-Fenster, zwei Ähnlichkeits-Stufen und ein
// bedingungsloser Fallback, damit die LLM-Analyse nie ganz ohne Kontext
// dasteht, solange überhaupt Embeddings existieren.
type SearchService struct {
	Config     *config.Config
	Store      SimilarityStore
	Embedder   providers.Embedder
	Summarizer providers.Summarizer
	Logger     *zap.Logger

	windows map[string]int
}

// NewSearchService erstellt eine neue Instanz des SearchService.
func NewSearchService(cfg *config.Config, store SimilarityStore, emb providers.Embedder, sum providers.Summarizer, logger *zap.Logger) *SearchService {
	return &SearchService{
		Config:     cfg,
		Store:      store,
		Embedder:   emb,
		Summarizer: sum,
		Logger:     logger,
		windows:    cfg.RecencyWindows(),
	}
}

// RecencyDays liefert das Recency-Fenster für eine Kategorie. Unbekannte
// Kategorien fallen auf das Default-Fenster zurück und sind nie ein Fehler.
func (s *SearchService) RecencyDays(category string) int {
	if days, ok := s.windows[category]; ok {
		return days
	}
	return s.Config.DefaultRecencyDays
}

// SearchSimilarArticles wählt bis zu MaxContextResults Referenz-Artikel für
// einen Ziel-Artikel aus:
//
//  1. Recency-Fenster aus der Kategorie-Tabelle bestimmen.
//  2. Query-Embedding berechnen.
//  3. Top-MaxFetch-Kandidaten aus dem Store holen (Fenster + Ausschluss).
//  4. In Primär- (>= PrimaryThreshold) und Sekundär-Stufe
//     ([FallbackThreshold, PrimaryThreshold)) partitionieren.
//  5. Erste nicht-leere Stufe gewinnt; sind beide leer, greifen die rohen
//     Top-Kandidaten als Sicherheitsnetz.
//
// Null Kandidaten ergeben eine leere Liste, keinen Fehler.
func (s *SearchService) SearchSimilarArticles(ctx context.Context, queryText, category string, currentID uint) ([]providers.Reference, error) {
	maxDays := s.RecencyDays(category)

	queryVec, err := s.Embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}

	candidates, err := s.Store.Nearest(ctx, queryVec, maxDays, currentID, s.Config.MaxFetch)
	if err != nil {
		return nil, fmt.Errorf("similarity query failed: %w", err)
	}

	var primary, fallback []Candidate
	for _, c := range candidates {
		switch {
		case c.SimilarityScore >= s.Config.PrimaryThreshold:
			primary = append(primary, c)
		case c.SimilarityScore >= s.Config.FallbackThreshold:
			fallback = append(fallback, c)
		}
	}

	selected := primary
	tier := "primary"
	if len(selected) == 0 {
		selected = fallback
		tier = "fallback"
	}
	if len(selected) == 0 {
		// Sicherheitsnetz: lieber schwach ähnlicher Kontext als gar keiner.
		selected = candidates
		tier = "unfiltered"
	}
	if len(selected) > s.Config.MaxContextResults {
		selected = selected[:s.Config.MaxContextResults]
	}

	s.Logger.Info("Context selection completed",
		zap.String("category", category),
		zap.Int("max_days", maxDays),
		zap.Int("candidates", len(candidates)),
		zap.String("tier", tier),
		zap.Int("selected", len(selected)))

	refs := make([]providers.Reference, 0, len(selected))
	for _, c := range selected {
		ref, err := s.toReference(ctx, c)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// toReference wandelt einen Kandidaten in ein Referenz-Objekt um. Fehlt die
// gespeicherte Zusammenfassung, wird sie on-demand aus dem Inhalt erzeugt.
func (s *SearchService) toReference(ctx context.Context, c Candidate) (providers.Reference, error) {
	summary := c.Summary
	if summary == "" {
		contentSummary, err := s.Summarizer.Summarize(ctx, c.Content, c.PublishedAt)
		if err != nil {
			return providers.Reference{}, fmt.Errorf("reference summary failed for article %d: %w", c.ID, err)
		}
		summary = fmt.Sprintf("%s. %s", c.Title, contentSummary)
	}

	return providers.Reference{
		ID:          c.ID,
		Title:       c.Title,
		Summary:     summary,
		URL:         c.URL,
		Category:    c.Category,
		PublishedAt: c.PublishedAt,
		Similarity:  c.SimilarityScore,
	}, nil
}
