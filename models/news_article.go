package models

import (
	"time"
)

// NewsArticle repräsentiert einen importierten News-Artikel.
// Titel, URL, Inhalt und Kategorie sind nach dem Insert unveränderlich;
// nur Summary und IsAnalyzed werden nachträglich gesetzt.
type NewsArticle struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Title   string `json:"title" gorm:"type:text;not null"`
	URL     string `json:"url" gorm:"type:text;uniqueIndex;not null"`
	Content string `json:"content" gorm:"type:text;not null"`

	Category    string     `json:"category" gorm:"type:text;not null;index"`
	PublishedAt *time.Time `json:"published_at,omitempty"`

	// SHA-256 über title::url::content, der De-Duplizierungs-Schlüssel.
	Hash string `json:"hash" gorm:"type:text;uniqueIndex;not null"`

	Summary    string `json:"summary,omitempty" gorm:"type:text"`
	IsRelevant int    `json:"is_relevant" gorm:"default:1"`
	IsAnalyzed bool   `json:"is_analyzed" gorm:"default:false;index"`

	Embeddings []Embedding  `json:"-" gorm:"foreignKey:ArticleID;constraint:OnDelete:CASCADE"`
	Analyses   []AiAnalysis `json:"-" gorm:"foreignKey:ArticleID;constraint:OnDelete:CASCADE"`
}

// TableName gibt explizit den Tabellennamen an.
func (NewsArticle) TableName() string {
	return "news_articles"
}
