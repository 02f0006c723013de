package providers

import (
	"context"
	"errors"
	"time"
)

// ErrProviderUnavailable signalisiert, dass ein externes Modell-Backend
// (Embedding oder LLM) nicht erreichbar ist. Der Aufrufer darf dann keinen
// Null-Vektor bzw. keine leere Analyse substituieren, sondern überspringt
// den Artikel bis zum nächsten Cron-Lauf.
var ErrProviderUnavailable = errors.New("provider unavailable")

// ErrDimensionMismatch signalisiert, dass das Embedding-Backend eine andere
// Vektordimension liefert als konfiguriert.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embedder bildet Text auf einen Vektor fester Dimension ab.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension gibt die Länge der gelieferten Vektoren zurück.
	Dimension() int
}

// Summarizer erzeugt eine kurze, informationsdichte Zusammenfassung eines
// Artikeltexts, optional mit explizitem Publikationsdatum.
type Summarizer interface {
	Summarize(ctx context.Context, text string, publishedAt *time.Time) (string, error)
}

// Reference ist ein Kontext-Artikel, der der LLM-Analyse als Hintergrund
// mitgegeben wird.
type Reference struct {
	ID          uint       `json:"id"`
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	URL         string     `json:"url"`
	Category    string     `json:"category"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Similarity  float64    `json:"similarity"`
}

// Analyzer bewertet die Marktwirkung eines Artikels anhand von Titel,
// Zusammenfassung und Referenz-Kontext und liefert die Roh-Antwort des LLM.
type Analyzer interface {
	AnalyzeArticle(ctx context.Context, title, summary string, refs []Reference) (string, error)
}
