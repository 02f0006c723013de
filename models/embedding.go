package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// Embedding speichert den Vektor eines Artikels (ein Vektor pro Artikel;
// wird einmal beim Backfill erzeugt und danach nie aktualisiert).
type Embedding struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	ArticleID uint            `json:"article_id" gorm:"not null;index"`
	Embedding pgvector.Vector `json:"-" gorm:"type:vector(768);not null"`
}

// TableName gibt explizit den Tabellennamen an.
func (Embedding) TableName() string {
	return "embeddings"
}
