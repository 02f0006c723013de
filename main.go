package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"crypto-pulse/config"
	"crypto-pulse/models"
	"crypto-pulse/providers/deepseek"
	"crypto-pulse/providers/embedder"
	"crypto-pulse/scraper"
	"crypto-pulse/services"
	"crypto-pulse/storage"
)

var (
	articlesImportedCounter prometheus.Counter
	analysesDoneCounter     prometheus.Counter
	analysesFailedCounter   prometheus.Counter
)

func init() {
	articlesImportedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "news_articles_imported_total",
		Help: "Total number of new articles imported into the database.",
	})
	analysesDoneCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "news_analyses_completed_total",
		Help: "Total number of completed LLM impact analyses.",
	})
	analysesFailedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "news_analyses_failed_total",
		Help: "Total number of per-article analysis failures (skipped, retried next run).",
	})
	prometheus.MustRegister(articlesImportedCounter, analysesDoneCounter, analysesFailedCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to news database.")

	// pgvector muss vor der Migration der embeddings-Tabelle existieren.
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		logging.Fatal("Failed to enable pgvector extension", zap.Error(err))
	}

	logging.Info("Running database auto-migration...")
	if err := db.AutoMigrate(&models.NewsArticle{}, &models.Embedding{}, &models.AiAnalysis{}); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	// Setup Providers
	emb := embedder.NewFetcher(cfg, logging)
	llm := deepseek.NewClient(cfg, logging)

	// Optionales S3-Archiv für verarbeitete Roh-Artefakte
	var archiver services.ArtifactArchiver
	if cfg.ArchiveEnabled() {
		s3Client, err := storage.NewS3Client(cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		archiver = storage.NewArtifactArchive(s3Client, cfg.ArchiveS3Bucket)
		logging.Info("Artifact archive enabled", zap.String("bucket", cfg.ArchiveS3Bucket))
	}

	// Setup Services
	vectorStore := services.NewVectorStore(db, logging)
	searchService := services.NewSearchService(cfg, vectorStore, emb, llm, logging)
	importService := services.NewImportService(cfg, db, llm, archiver, logging)
	embeddingService := services.NewEmbeddingService(cfg, db, emb, logging)
	newsScraper := scraper.New(cfg, db, logging)
	pipeline := services.NewPipelineService(cfg, db, newsScraper, importService, embeddingService, searchService, llm, llm, logging)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup Routes
	setupArticleRoutes(router, db, logging)
	setupSearchRoutes(router, searchService, logging)
	setupAnalysisRoutes(router, db, logging)
	setupAdminRoutes(router, db, pipeline, embeddingService, logging)

	// Setup Cron
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled daily pipeline...")
		stats := pipeline.RunDaily(context.Background())
		articlesImportedCounter.Add(float64(stats.Imported))
		analysesDoneCounter.Add(float64(stats.Analyzed))
		analysesFailedCounter.Add(float64(stats.Failed))
		logging.Info("Scheduled pipeline completed",
			zap.Int("imported", stats.Imported),
			zap.Int("analyzed", stats.Analyzed),
			zap.Int("failed", stats.Failed))
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupArticleRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/articles")

	// Paginierter News-Feed, neueste zuerst
	rg.GET("/", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if limit <= 0 || limit > 200 {
			limit = 50
		}

		query := db.Model(&models.NewsArticle{})
		if category := c.Query("category"); category != "" {
			query = query.Where("category = ?", category)
		}

		var articles []models.NewsArticle
		if err := query.Order("created_at desc").Limit(limit).Offset(offset).Find(&articles).Error; err != nil {
			log.Error("Database query for articles failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, articles)
	})

	// Einzelner Artikel inkl. jüngster Analyse
	rg.GET("/:id", func(c *gin.Context) {
		id := c.Param("id")

		var article models.NewsArticle
		if err := db.First(&article, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
				return
			}
			log.Error("DB error fetching article", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		var latest models.AiAnalysis
		err := db.Where("article_id = ?", article.ID).Order("created_at desc").First(&latest).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error("DB error fetching analysis", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		response := gin.H{"article": article}
		if err == nil {
			response["analysis"] = latest
		}
		c.JSON(http.StatusOK, response)
	})
}

func setupSearchRoutes(router *gin.Engine, search *services.SearchService, log *zap.Logger) {
	rg := router.Group("/search")

	// Semantische Suche über freien Query-Text (kein Artikel-Ausschluss)
	rg.POST("/", func(c *gin.Context) {
		var req struct {
			Query    string `json:"query" binding:"required"`
			Category string `json:"category"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'query' field is required."})
			return
		}

		results, err := search.SearchSimilarArticles(c.Request.Context(), req.Query, req.Category, 0)
		if err != nil {
			log.Error("Semantic search failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search temporarily unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"query": req.Query, "results": results})
	})
}

func setupAnalysisRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/analyses")

	rg.GET("/recent", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		if limit <= 0 || limit > 100 {
			limit = 20
		}

		var analyses []models.AiAnalysis
		if err := db.Order("created_at desc").Limit(limit).Find(&analyses).Error; err != nil {
			log.Error("Database query for analyses failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, analyses)
	})
}

func setupAdminRoutes(router *gin.Engine, db *gorm.DB, pipeline *services.PipelineService, embeddings *services.EmbeddingService, log *zap.Logger) {
	rg := router.Group("/admin")

	// Pipeline asynchron anstoßen (Debug/Nachholen)
	rg.POST("/run-pipeline", func(c *gin.Context) {
		go func() {
			stats := pipeline.RunDaily(context.Background())
			articlesImportedCounter.Add(float64(stats.Imported))
			analysesDoneCounter.Add(float64(stats.Analyzed))
			analysesFailedCounter.Add(float64(stats.Failed))
			log.Info("Manual pipeline run completed",
				zap.Int("imported", stats.Imported),
				zap.Int("analyzed", stats.Analyzed),
				zap.Int("failed", stats.Failed))
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Daily pipeline triggered."})
	})

	rg.POST("/backfill-embeddings", func(c *gin.Context) {
		created, err := embeddings.Backfill(c.Request.Context())
		if err != nil {
			log.Error("Manual embedding backfill failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "backfill failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"created": created})
	})

	// Alte Artikel löschen; Embeddings und Analysen kaskadieren mit.
	rg.POST("/cleanup", func(c *gin.Context) {
		var req struct {
			OlderThanDays int `json:"older_than_days" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.OlderThanDays <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'older_than_days' must be positive."})
			return
		}

		cutoff := time.Now().AddDate(0, 0, -req.OlderThanDays)
		result := db.Where("created_at < ?", cutoff).Delete(&models.NewsArticle{})
		if result.Error != nil {
			log.Error("Cleanup failed", zap.Error(result.Error))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup failed"})
			return
		}
		log.Info("Cleanup completed", zap.Int64("deleted", result.RowsAffected), zap.Time("cutoff", cutoff))
		c.JSON(http.StatusOK, gin.H{"deleted": result.RowsAffected})
	})
}
