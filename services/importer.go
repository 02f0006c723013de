package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"crypto-pulse/config"
	"crypto-pulse/models"
	"crypto-pulse/providers"
)

// Insert-Status für die Artikel-Ingestion.
const (
	StatusInserted  = "inserted"
	StatusExists    = "exists"
	StatusDuplicate = "duplicate"
	StatusError     = "error"
)

// uniqueViolation ist der Postgres-SQLSTATE für Unique-Constraint-Verstöße.
const uniqueViolation = "23505"

// InsertResult beschreibt das Ergebnis eines Ingestion-Versuchs.
type InsertResult struct {
	Status string `json:"status"`
	ID     uint   `json:"id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// FileReport protokolliert die Verarbeitung eines Quell-Artefakts.
type FileReport struct {
	File   string `json:"file"`
	Status string `json:"status"`
	ID     uint   `json:"id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ScrapedArticle ist ein geparstes Quell-Artefakt des Scrapers.
type ScrapedArticle struct {
	Category    string
	Title       string
	URL         string
	PublishedAt string
	Content     string
	Filename    string
	Filepath    string
}

// ArtifactArchiver archiviert Roh-Artefakte nach erfolgreicher Ingestion.
type ArtifactArchiver interface {
	Archive(ctx context.Context, filename string, data []byte) error
}

// ImportService dedupliziert und persistiert gescrapte Artikel und räumt
// die Quell-Artefakte auf (Archiv bzw. Quarantäne).
type ImportService struct {
	Config     *config.Config
	DB         *gorm.DB
	Summarizer providers.Summarizer
	Archiver   ArtifactArchiver // optional, nil = nur lokal löschen
	Logger     *zap.Logger
}

// NewImportService erstellt eine neue Instanz des ImportService.
func NewImportService(cfg *config.Config, db *gorm.DB, sum providers.Summarizer, archiver ArtifactArchiver, logger *zap.Logger) *ImportService {
	return &ImportService{Config: cfg, DB: db, Summarizer: sum, Archiver: archiver, Logger: logger}
}

// ComputeHash bildet den deterministischen De-Duplizierungs-Schlüssel über
// Titel, URL und Inhalt.
func ComputeHash(title, url, content string) string {
	sum := sha256.Sum256([]byte(title + "::" + url + "::" + content))
	return hex.EncodeToString(sum[:])
}

// divider trennt die Kopfzeilen vom Artikelinhalt im Artefakt-Format.
var divider = strings.Repeat("=", 80)

// ParseArticleFile parst ein TXT-Artefakt des Scrapers. Fehlende
// Pflichtfelder (Category, Title, URL, Inhalt) sind ein Fehler und führen
// beim Aufrufer zur Quarantäne der Datei.
func ParseArticleFile(path string) (*ScrapedArticle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := string(raw)
	lines := strings.Split(text, "\n")
	if len(lines) < 3 {
		return nil, fmt.Errorf("artifact too short: %s", path)
	}

	header := func(line, prefix string) string {
		return strings.TrimSpace(strings.TrimPrefix(line, prefix))
	}

	art := &ScrapedArticle{
		Filename: filepath.Base(path),
		Filepath: path,
	}
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "Category:"):
			art.Category = header(line, "Category:")
		case strings.HasPrefix(line, "Title:"):
			art.Title = header(line, "Title:")
		case strings.HasPrefix(line, "URL:"):
			art.URL = header(line, "URL:")
		case strings.HasPrefix(line, "PublishedAt:"):
			art.PublishedAt = header(line, "PublishedAt:")
		}
		if strings.HasPrefix(line, divider) {
			break
		}
	}

	idx := strings.Index(text, divider)
	if idx < 0 {
		return nil, fmt.Errorf("artifact missing divider: %s", path)
	}
	art.Content = strings.TrimSpace(text[idx+len(divider):])

	if art.Category == "" || art.Title == "" || art.URL == "" || art.Content == "" {
		return nil, fmt.Errorf("artifact missing required field: %s", path)
	}
	return art, nil
}

// parsePublishedAt versucht gängige Zeitformate; nicht parsebare Werte
// werden verworfen (published_at bleibt dann NULL).
func parsePublishedAt(value string) *time.Time {
	if value == "" {
		return nil
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
		time.RFC1123,
		time.RFC1123Z,
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

// InsertArticle dedupliziert und persistiert einen Artikel.
//
// Idempotenz: existiert bereits eine Zeile mit gleicher URL oder gleichem
// Hash, kommt "exists" mit deren ID zurück. Verliert ein paralleler Insert
// das Rennen gegen den Unique-Constraint, wird das als "duplicate" gemeldet,
// nie als Roh-Storage-Fehler.
func (s *ImportService) InsertArticle(ctx context.Context, title, url, content, category, publishedAt string) InsertResult {
	articleHash := ComputeHash(title, url, content)

	var existing models.NewsArticle
	err := s.DB.WithContext(ctx).
		Where("url = ? OR hash = ?", url, articleHash).
		First(&existing).Error
	if err == nil {
		return InsertResult{Status: StatusExists, ID: existing.ID}
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return InsertResult{Status: StatusError, Error: err.Error()}
	}

	pubTime := parsePublishedAt(publishedAt)

	// Zusammenfassung best-effort: schlägt das LLM fehl, wird der Artikel
	// trotzdem gespeichert und die Summary später on-demand erzeugt.
	summary := ""
	if contentSummary, err := s.Summarizer.Summarize(ctx, content, pubTime); err != nil {
		s.Logger.Warn("Summary generation failed, storing article without summary",
			zap.String("url", url), zap.Error(err))
	} else {
		summary = fmt.Sprintf("%s. %s", title, contentSummary)
	}

	article := models.NewsArticle{
		Title:       title,
		URL:         url,
		Content:     content,
		Summary:     summary,
		Category:    category,
		Hash:        articleHash,
		PublishedAt: pubTime,
		IsRelevant:  1,
	}

	if err := s.DB.WithContext(ctx).Create(&article).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return InsertResult{Status: StatusDuplicate, Error: err.Error()}
		}
		return InsertResult{Status: StatusError, Error: err.Error()}
	}

	return InsertResult{Status: StatusInserted, ID: article.ID}
}

// ImportScrapedArticles verarbeitet alle TXT-Artefakte im Scrape-Verzeichnis:
// parsen, einfügen, aufräumen. Nicht parsebare Dateien wandern in die
// Quarantäne statt stillschweigend verworfen zu werden.
func (s *ImportService) ImportScrapedArticles(ctx context.Context) []FileReport {
	entries, err := os.ReadDir(s.Config.ScrapedDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		s.Logger.Error("Failed to read scraped articles directory", zap.Error(err))
		return nil
	}

	var reports []FileReport
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		path := filepath.Join(s.Config.ScrapedDir, entry.Name())

		art, err := ParseArticleFile(path)
		if err != nil {
			s.Logger.Warn("Quarantining unparsable artifact",
				zap.String("file", entry.Name()), zap.Error(err))
			s.quarantine(path, entry.Name())
			reports = append(reports, FileReport{File: entry.Name(), Status: StatusError, Error: err.Error()})
			continue
		}

		result := s.InsertArticle(ctx, art.Title, art.URL, art.Content, art.Category, art.PublishedAt)
		reports = append(reports, FileReport{
			File:   art.Filename,
			Status: result.Status,
			ID:     result.ID,
			Error:  result.Error,
		})

		switch result.Status {
		case StatusInserted, StatusExists, StatusDuplicate:
			s.archiveAndRemove(ctx, path, art.Filename)
		default:
			s.quarantine(path, art.Filename)
		}
	}

	s.Logger.Info("Artikel-Import abgeschlossen", zap.Int("files", len(reports)))
	return reports
}

// archiveAndRemove lädt das Artefakt optional ins S3-Archiv und entfernt es
// anschließend lokal.
func (s *ImportService) archiveAndRemove(ctx context.Context, path, name string) {
	if s.Archiver != nil {
		if data, err := os.ReadFile(path); err == nil {
			if err := s.Archiver.Archive(ctx, name, data); err != nil {
				s.Logger.Warn("Artifact archive upload failed", zap.String("file", name), zap.Error(err))
			}
		}
	}
	if err := os.Remove(path); err != nil {
		s.Logger.Warn("Failed to delete processed artifact", zap.String("file", name), zap.Error(err))
	}
}

// quarantine verschiebt ein fehlgeschlagenes Artefakt ins Failed-Verzeichnis.
func (s *ImportService) quarantine(path, name string) {
	if err := os.MkdirAll(s.Config.FailedDir, 0o755); err != nil {
		s.Logger.Error("Failed to create quarantine directory", zap.Error(err))
		return
	}
	if err := os.Rename(path, filepath.Join(s.Config.FailedDir, name)); err != nil {
		s.Logger.Error("Failed to quarantine artifact", zap.String("file", name), zap.Error(err))
	}
}
