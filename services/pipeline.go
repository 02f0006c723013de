package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"crypto-pulse/config"
	"crypto-pulse/models"
	"crypto-pulse/providers"
)

// Scraper holt die neuesten Artikel von der Quelle und legt sie als
// TXT-Artefakte ab. Gibt die Anzahl neu gespeicherter Artefakte zurück.
type Scraper interface {
	ScrapeLatest(ctx context.Context) (int, error)
}

// RunStats fasst einen Pipeline-Lauf zusammen.
type RunStats struct {
	Scraped  int `json:"scraped"`
	Imported int `json:"imported"`
	Embedded int `json:"embedded"`
	Analyzed int `json:"analyzed"`
	Failed   int `json:"failed"`
}

// PipelineService orchestriert den täglichen Ablauf:
// Scrape → Import → Embedding-Backfill → Analyse aller unanalysierten
// Artikel. Jede Stufe ist gegen Fehler der anderen isoliert; ein einzelner
// kaputter Artikel bricht nie den Batch ab.
type PipelineService struct {
	Config     *config.Config
	DB         *gorm.DB
	Scraper    Scraper // optional, nil = nur vorhandene Artefakte verarbeiten
	Importer   *ImportService
	Embeddings *EmbeddingService
	Search     *SearchService
	Summarizer providers.Summarizer
	Analyzer   providers.Analyzer
	Logger     *zap.Logger
}

// NewPipelineService erstellt eine neue Instanz des PipelineService.
func NewPipelineService(cfg *config.Config, db *gorm.DB, scraper Scraper, importer *ImportService,
	embeddings *EmbeddingService, search *SearchService, sum providers.Summarizer,
	analyzer providers.Analyzer, logger *zap.Logger) *PipelineService {
	return &PipelineService{
		Config:     cfg,
		DB:         db,
		Scraper:    scraper,
		Importer:   importer,
		Embeddings: embeddings,
		Search:     search,
		Summarizer: sum,
		Analyzer:   analyzer,
		Logger:     logger,
	}
}

// RunDaily führt einen kompletten Pipeline-Lauf aus. Scrape-, Import- und
// Backfill-Fehler werden geloggt und blockieren die Analyse bereits
// importierter Artikel nicht.
func (p *PipelineService) RunDaily(ctx context.Context) RunStats {
	p.Logger.Info("Daily news pipeline started")
	var stats RunStats

	if p.Scraper != nil {
		count, err := p.Scraper.ScrapeLatest(ctx)
		if err != nil {
			// Best-effort: ältere, noch nicht importierte Artefakte
			// können trotzdem verarbeitet werden.
			p.Logger.Error("Scraper failed", zap.Error(err))
		} else {
			p.Logger.Info("Scraper finished", zap.Int("new_artifacts", count))
			stats.Scraped = count
		}
	}

	reports := p.Importer.ImportScrapedArticles(ctx)
	for _, r := range reports {
		if r.Status == StatusInserted {
			stats.Imported++
		}
	}

	if created, err := p.Embeddings.Backfill(ctx); err != nil {
		p.Logger.Error("Embedding backfill failed", zap.Error(err))
	} else {
		stats.Embedded = created
	}

	var pending []models.NewsArticle
	if err := p.DB.WithContext(ctx).
		Where("is_analyzed = ?", false).
		Order("id").
		Find(&pending).Error; err != nil {
		p.Logger.Error("Failed to enumerate unanalyzed articles", zap.Error(err))
		return stats
	}
	p.Logger.Info("Found articles to analyze", zap.Int("count", len(pending)))

	stats.Analyzed, stats.Failed = p.processEach(ctx, pending, p.ProcessArticle)

	p.Logger.Info("Daily news pipeline completed",
		zap.Int("imported", stats.Imported),
		zap.Int("embedded", stats.Embedded),
		zap.Int("analyzed", stats.Analyzed),
		zap.Int("failed", stats.Failed))
	return stats
}

// processEach analysiert jeden Artikel genau einmal unter einem eigenen
// Zeitbudget. Fehler (inkl. Timeout) werden geloggt, die Schleife läuft
// weiter.
func (p *PipelineService) processEach(ctx context.Context, articles []models.NewsArticle, process func(context.Context, *models.NewsArticle) error) (ok, failed int) {
	for i := range articles {
		article := &articles[i]

		articleCtx, cancel := context.WithTimeout(ctx, p.Config.AnalysisTimeout())
		err := process(articleCtx, article)
		cancel()

		if err != nil {
			failed++
			p.Logger.Error("Article analysis failed, continuing with next",
				zap.Uint("article_id", article.ID),
				zap.Bool("timeout", errors.Is(err, context.DeadlineExceeded)),
				zap.Error(err))
			continue
		}
		ok++
	}
	return ok, failed
}

// ProcessArticle führt für einen Artikel Kontext-Auswahl, LLM-Analyse und
// Persistierung aus. Der Artikel wird erst als analysiert markiert, wenn die
// Analyse-Zeile in derselben Transaktion committed ist.
func (p *PipelineService) ProcessArticle(ctx context.Context, article *models.NewsArticle) error {
	refs, err := p.Search.SearchSimilarArticles(ctx, article.Content, article.Category, article.ID)
	if err != nil {
		return fmt.Errorf("context selection failed: %w", err)
	}

	summary, err := p.ensureSummary(ctx, article)
	if err != nil {
		return err
	}

	prediction, err := p.Analyzer.AnalyzeArticle(ctx, article.Title, summary, refs)
	if err != nil {
		// Bleibt unanalysiert und wird beim nächsten Cron-Lauf erneut
		// versucht.
		return fmt.Errorf("llm analysis failed: %w", err)
	}

	err = p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		analysis := models.AiAnalysis{
			ArticleID:  article.ID,
			Prediction: prediction,
		}
		if err := tx.Create(&analysis).Error; err != nil {
			return err
		}
		return tx.Model(&models.NewsArticle{}).
			Where("id = ?", article.ID).
			Update("is_analyzed", true).Error
	})
	if err != nil {
		return fmt.Errorf("failed to persist analysis: %w", err)
	}

	article.IsAnalyzed = true
	p.Logger.Info("Article analyzed",
		zap.Uint("article_id", article.ID),
		zap.Int("references", len(refs)))
	return nil
}

// ensureSummary liefert die gespeicherte Zusammenfassung oder erzeugt und
// persistiert sie nachträglich, falls sie bei der Ingestion fehlschlug.
func (p *PipelineService) ensureSummary(ctx context.Context, article *models.NewsArticle) (string, error) {
	if article.Summary != "" {
		return article.Summary, nil
	}

	contentSummary, err := p.Summarizer.Summarize(ctx, article.Content, article.PublishedAt)
	if err != nil {
		return "", fmt.Errorf("summary generation failed: %w", err)
	}
	summary := fmt.Sprintf("%s. %s", article.Title, contentSummary)

	if err := p.DB.WithContext(ctx).Model(&models.NewsArticle{}).
		Where("id = ?", article.ID).
		Update("summary", summary).Error; err != nil {
		p.Logger.Warn("Failed to persist late summary",
			zap.Uint("article_id", article.ID), zap.Error(err))
	}
	article.Summary = summary
	return summary, nil
}
