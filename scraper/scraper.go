package scraper

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"crypto-pulse/config"
	"crypto-pulse/models"
)

// categoryLimits legt fest, wie viele Artikel pro Kategorie-Seite gezogen
// werden.
var categoryLimits = map[string]int{
	"regulation":  3,
	"etf":         2,
	"macro":       3,
	"exchanges":   3,
	"investments": 2,
	"stablecoins": 2,
}

// contentSelectors werden der Reihe nach probiert, bis Absätze gefunden
// werden (das Seitenlayout variiert je nach Artikeltyp).
var contentSelectors = []string{
	"div.single__content-wrap p",
	"div.single__content p",
	"article.page-article p",
	"article p",
}

var filenameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_\-. ]+`)

var httpClient = &http.Client{Timeout: 15 * time.Second}

// Scraper lädt Kategorie-Seiten der News-Quelle, extrahiert Artikel und
// legt sie als TXT-Artefakte für den Import ab.
type Scraper struct {
	Config *config.Config
	DB     *gorm.DB
	Logger *zap.Logger
}

// New erstellt einen neuen Scraper.
func New(cfg *config.Config, db *gorm.DB, logger *zap.Logger) *Scraper {
	return &Scraper{Config: cfg, DB: db, Logger: logger}
}

type listedArticle struct {
	Category string
	Title    string
	URL      string
}

// ScrapeLatest verarbeitet alle Kategorien und gibt die Anzahl neu
// gespeicherter Artefakte zurück. Bereits importierte URLs werden
// übersprungen.
func (s *Scraper) ScrapeLatest(ctx context.Context) (int, error) {
	if err := os.MkdirAll(s.Config.ScrapedDir, 0o755); err != nil {
		return 0, fmt.Errorf("fehler beim Anlegen des Scrape-Verzeichnisses: %w", err)
	}

	totalSaved := 0
	for category, limit := range categoryLimits {
		listed, err := s.scrapeListing(ctx, category, limit)
		if err != nil {
			s.Logger.Warn("Category listing failed",
				zap.String("category", category), zap.Error(err))
			continue
		}

		for _, art := range listed {
			if s.alreadyImported(ctx, art.URL) {
				continue
			}

			pause(1500, 3500)
			content, err := s.fetchFullArticle(ctx, art.URL)
			if err != nil {
				s.Logger.Warn("Article fetch failed",
					zap.String("url", art.URL), zap.Error(err))
				continue
			}

			if err := s.writeArtifact(art, content); err != nil {
				s.Logger.Error("Failed to write artifact",
					zap.String("url", art.URL), zap.Error(err))
				continue
			}
			totalSaved++
		}

		pause(2000, 4000)
	}

	s.Logger.Info("Scrape-Lauf abgeschlossen", zap.Int("saved", totalSaved))
	return totalSaved, nil
}

// scrapeListing extrahiert bis zu limit Artikel-Links unterhalb der
// Kategorie-Überschrift.
func (s *Scraper) scrapeListing(ctx context.Context, category string, limit int) ([]listedArticle, error) {
	doc, err := s.fetchDocument(ctx, s.Config.ScrapeBaseURL+category+"/")
	if err != nil {
		return nil, err
	}

	heading := headingText(category)
	var articles []listedArticle
	seen := map[string]struct{}{}
	inSection := false

	doc.Find("h1, h2, a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if goquery.NodeName(sel) != "a" {
			inSection = strings.Contains(strings.TrimSpace(sel.Text()), heading)
			return true
		}
		if !inSection || len(articles) >= limit {
			return len(articles) < limit
		}

		title := strings.Join(strings.Fields(sel.Text()), " ")
		if !looksLikeTitle(title) {
			return true
		}

		href, _ := sel.Attr("href")
		if strings.HasPrefix(href, "/") {
			href = strings.TrimSuffix(s.Config.ScrapeBaseURL, "/") + href
		}
		if !strings.Contains(href, "cryptoslate.com") {
			return true
		}
		if _, ok := seen[href]; ok {
			return true
		}
		seen[href] = struct{}{}

		articles = append(articles, listedArticle{Category: category, Title: title, URL: href})
		return true
	})

	return articles, nil
}

// fetchFullArticle lädt die Artikelseite und sammelt die Absätze des
// Inhaltsbereichs ein.
func (s *Scraper) fetchFullArticle(ctx context.Context, url string) (string, error) {
	doc, err := s.fetchDocument(ctx, url)
	if err != nil {
		return "", err
	}

	for _, selector := range contentSelectors {
		paragraphs := doc.Find(selector)
		if paragraphs.Length() == 0 {
			continue
		}
		var parts []string
		paragraphs.Each(func(_ int, p *goquery.Selection) {
			if text := strings.TrimSpace(p.Text()); text != "" {
				parts = append(parts, text)
			}
		})
		if len(parts) > 0 {
			return strings.Join(parts, "\n"), nil
		}
	}
	return "", fmt.Errorf("no content found at %s", url)
}

// fetchDocument führt einen GET mit Retry und Backoff aus. Bei 403/429
// wird sofort abgebrochen, um die Quelle nicht zu hämmern.
func (s *Scraper) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	const maxRetries = 3

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0 Safari/537.36")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

		resp, err := httpClient.Do(req)
		if err != nil {
			if attempt == maxRetries-1 {
				return nil, err
			}
			backoff(attempt)
			continue
		}

		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			return nil, fmt.Errorf("source is rate limiting: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			if attempt == maxRetries-1 {
				return nil, fmt.Errorf("fetch failed: status %d", resp.StatusCode)
			}
			backoff(attempt)
			continue
		}

		doc, err := goquery.NewDocumentFromReader(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		return doc, nil
	}
	return nil, fmt.Errorf("fetch failed after %d attempts: %s", maxRetries, url)
}

// alreadyImported prüft, ob die URL schon in der Datenbank liegt.
func (s *Scraper) alreadyImported(ctx context.Context, url string) bool {
	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.NewsArticle{}).
		Where("url = ?", url).Count(&count).Error; err != nil {
		s.Logger.Warn("Duplicate check failed, scraping anyway", zap.Error(err))
		return false
	}
	return count > 0
}

// writeArtifact schreibt einen Artikel im Ingestion-Format ins
// Scrape-Verzeichnis.
func (s *Scraper) writeArtifact(art listedArticle, content string) error {
	ts := time.Now().UTC().Format("2006-01-02_15-04-05.000000")
	filename := fmt.Sprintf("%s__%s__%s.txt", art.Category, sanitizeFilename(art.Title), ts)
	path := filepath.Join(s.Config.ScrapedDir, filename)

	var b strings.Builder
	fmt.Fprintf(&b, "Category: %s\n", art.Category)
	fmt.Fprintf(&b, "Title: %s\n", art.Title)
	fmt.Fprintf(&b, "URL: %s\n", art.URL)
	fmt.Fprintf(&b, "PublishedAt: %s\n", time.Now().UTC().Format(time.RFC3339))
	b.WriteString("\n" + strings.Repeat("=", 80) + "\n\n")
	b.WriteString(content)

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func headingText(category string) string {
	known := map[string]string{
		"regulation":  "Regulation News",
		"etf":         "ETF News",
		"macro":       "Macro News",
		"exchanges":   "Exchanges News",
		"investments": "Investments News",
		"stablecoins": "Stablecoins News",
	}
	if h, ok := known[category]; ok {
		return h
	}
	if category == "" {
		return "News"
	}
	return strings.ToUpper(category[:1]) + category[1:] + " News"
}

// looksLikeTitle filtert Navigations-Links und Teaser heraus.
func looksLikeTitle(text string) bool {
	if len(text) < 30 || len(strings.Fields(text)) < 4 {
		return false
	}
	if strings.Contains(text, "News") || strings.Contains(text, "Subscribe") {
		return false
	}
	return true
}

func sanitizeFilename(name string) string {
	name = filenameSanitizer.ReplaceAllString(name, "")
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	if len(name) > 120 {
		name = name[:120]
	}
	return name
}

// pause wartet eine zufällige Spanne in Millisekunden (wirkt wie Lesezeit).
func pause(minMs, maxMs int) {
	time.Sleep(time.Duration(minMs+rand.Intn(maxMs-minMs)) * time.Millisecond)
}

func backoff(attempt int) {
	time.Sleep(time.Duration(1<<attempt)*time.Second + time.Duration(rand.Intn(1000))*time.Millisecond)
}
