package models

import (
	"time"
)

// AiAnalysis ist ein append-only Analyse-Protokoll: pro Artikel können
// mehrere Zeilen entstehen, Leser nehmen die jüngste.
type AiAnalysis struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	ArticleID uint `json:"article_id" gorm:"not null;index"`

	// Roh-Ausgabe des LLM, unverändert persistiert.
	Prediction string `json:"prediction" gorm:"type:text;not null"`
}

// TableName gibt explizit den Tabellennamen an.
func (AiAnalysis) TableName() string {
	return "ai_analysis"
}
