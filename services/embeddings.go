package services

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"crypto-pulse/config"
	"crypto-pulse/models"
	"crypto-pulse/providers"
)

// EmbeddingService erzeugt fehlende Artikel-Embeddings (Backfill).
type EmbeddingService struct {
	Config   *config.Config
	DB       *gorm.DB
	Embedder providers.Embedder
	Logger   *zap.Logger
}

// NewEmbeddingService erstellt eine neue Instanz des EmbeddingService.
func NewEmbeddingService(cfg *config.Config, db *gorm.DB, emb providers.Embedder, logger *zap.Logger) *EmbeddingService {
	return &EmbeddingService{Config: cfg, DB: db, Embedder: emb, Logger: logger}
}

// Backfill findet Artikel ohne Embedding und vektorisiert sie (höchstens
// EmbedBackfillLimit pro Lauf). Ein fehlgeschlagener Artikel bricht den
// Batch nicht ab. Gibt die Anzahl neu erzeugter Embeddings zurück.
func (s *EmbeddingService) Backfill(ctx context.Context) (int, error) {
	var articles []models.NewsArticle
	err := s.DB.WithContext(ctx).
		Joins("LEFT JOIN embeddings ON embeddings.article_id = news_articles.id").
		Where("embeddings.id IS NULL").
		Limit(s.Config.EmbedBackfillLimit).
		Find(&articles).Error
	if err != nil {
		return 0, fmt.Errorf("fehler beim Ermitteln fehlender Embeddings: %w", err)
	}

	created := 0
	for _, article := range articles {
		text := fmt.Sprintf("%s\n\n%s", article.Title, article.Content)

		vec, err := s.Embedder.Embed(ctx, text)
		if err != nil {
			s.Logger.Warn("Embedding failed for article",
				zap.Uint("article_id", article.ID), zap.Error(err))
			continue
		}

		row := models.Embedding{
			ArticleID: article.ID,
			Embedding: pgvector.NewVector(vec),
		}
		if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
			s.Logger.Error("Failed to persist embedding",
				zap.Uint("article_id", article.ID), zap.Error(err))
			continue
		}
		created++
	}

	s.Logger.Info("Embedding backfill completed",
		zap.Int("missing", len(articles)),
		zap.Int("created", created))
	return created, nil
}
