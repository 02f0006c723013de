package services

import (
	"context"
	"time"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Candidate ist ein Treffer der Vektorsuche: Artikelfelder plus
// Ähnlichkeits-Score (1 - Cosine-Distanz, absteigend sortiert).
type Candidate struct {
	ID              uint       `gorm:"column:id"`
	Title           string     `gorm:"column:title"`
	URL             string     `gorm:"column:url"`
	Content         string     `gorm:"column:content"`
	Category        string     `gorm:"column:category"`
	PublishedAt     *time.Time `gorm:"column:published_at"`
	Summary         string     `gorm:"column:summary"`
	SimilarityScore float64    `gorm:"column:similarity_score"`
}

// SimilarityStore liefert die nächsten Nachbarn zu einem Query-Vektor,
// beschränkt auf ein Recency-Fenster und unter Ausschluss eines Artikels.
type SimilarityStore interface {
	Nearest(ctx context.Context, queryVec []float32, maxAgeDays int, excludeID uint, limit int) ([]Candidate, error)
}

// VectorStore ist die pgvector-Implementierung des SimilarityStore.
type VectorStore struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewVectorStore erstellt einen neuen VectorStore.
func NewVectorStore(db *gorm.DB, logger *zap.Logger) *VectorStore {
	return &VectorStore{DB: db, Logger: logger}
}

const nearestSQL = `
SELECT
    na.id,
    na.title,
    na.url,
    na.content,
    na.category,
    na.published_at,
    na.summary,
    1 - (e.embedding <=> ?) AS similarity_score
FROM embeddings e
JOIN news_articles na ON na.id = e.article_id
WHERE na.published_at >= NOW() - (? * INTERVAL '1 day')
  AND na.id <> ?
ORDER BY e.embedding <=> ?
LIMIT ?`

// Nearest führt die Cosine-Distanz-Abfrage über den pgvector-Index aus.
// Das Ergebnis enthält nie den ausgeschlossenen Artikel selbst (Schutz vor
// Selbst-Ähnlichkeit von 1.0) und höchstens limit Zeilen.
func (s *VectorStore) Nearest(ctx context.Context, queryVec []float32, maxAgeDays int, excludeID uint, limit int) ([]Candidate, error) {
	vec := pgvector.NewVector(queryVec)

	var rows []Candidate
	err := s.DB.WithContext(ctx).
		Raw(nearestSQL, vec, maxAgeDays, excludeID, vec, limit).
		Scan(&rows).Error
	if err != nil {
		s.Logger.Error("Vector similarity query failed",
			zap.Int("max_age_days", maxAgeDays),
			zap.Uint("exclude_id", excludeID),
			zap.Error(err))
		return nil, err
	}
	return rows, nil
}
