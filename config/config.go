package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"50 0 * * *"`

	// Embedding-Backend (TEI-kompatibler /embed Endpunkt)
	EmbedderBaseURL string `envconfig:"EMBEDDER_BASE_URL" default:"http://localhost:8080"`
	EmbedderModel   string `envconfig:"EMBEDDER_MODEL" default:"all-mpnet-base-v2"`
	EmbeddingDim    int    `envconfig:"EMBEDDING_DIM" default:"768"`

	// DeepSeek (OpenAI-kompatible Chat-Completions-API)
	DeepSeekAPIKey  string `envconfig:"DEEPSEEK_API_KEY" required:"true"`
	DeepSeekBaseURL string `envconfig:"DEEPSEEK_API_BASE" default:"https://api.deepseek.com/v1"`
	DeepSeekModel   string `envconfig:"DEEPSEEK_MODEL" default:"deepseek-reasoner"`

	// Kontext-Auswahl (Zwei-Stufen-Schwellen + Fallback)
	PrimaryThreshold  float64 `envconfig:"PRIMARY_THRESHOLD" default:"0.70"`
	FallbackThreshold float64 `envconfig:"FALLBACK_THRESHOLD" default:"0.60"`
	MaxFetch          int     `envconfig:"MAX_FETCH" default:"20"`
	MaxContextResults int     `envconfig:"MAX_CONTEXT_RESULTS" default:"5"`

	// Recency-Fenster pro Kategorie, z.B. "regulation:45,etf:14"
	RecencyWindowsRaw  string `envconfig:"CATEGORY_RECENCY_DAYS" default:"regulation:45,etf:14,macro:30,exchanges:14,investments:30,stablecoins:14"`
	DefaultRecencyDays int    `envconfig:"DEFAULT_RECENCY_DAYS" default:"21"`

	// Pipeline
	AnalysisTimeoutSeconds int `envconfig:"ANALYSIS_TIMEOUT_SECONDS" default:"300"`
	EmbedBackfillLimit     int `envconfig:"EMBED_BACKFILL_LIMIT" default:"100"`

	// Scraper
	ScrapeBaseURL string `envconfig:"SCRAPE_BASE_URL" default:"https://cryptoslate.com/"`
	ScrapedDir    string `envconfig:"SCRAPED_DIR" default:"scraped_articles"`
	FailedDir     string `envconfig:"FAILED_DIR" default:"failed_articles"`

	// S3-Archiv für Roh-Artefakte (optional; leer = deaktiviert)
	ArchiveS3Key    string `envconfig:"ARCHIVE_S3_KEY"`
	ArchiveS3Secret string `envconfig:"ARCHIVE_S3_SECRET"`
	ArchiveS3URL    string `envconfig:"ARCHIVE_S3_URL"`
	ArchiveS3Region string `envconfig:"ARCHIVE_S3_REGION"`
	ArchiveS3Bucket string `envconfig:"ARCHIVE_S3_BUCKET"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// AnalysisTimeout liefert das Zeitbudget pro Artikel-Analyse.
func (c *Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.AnalysisTimeoutSeconds) * time.Second
}

// ArchiveEnabled meldet, ob das S3-Archiv konfiguriert ist.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveS3Bucket != "" && c.ArchiveS3URL != ""
}

// RecencyWindows parst die Kategorie-Tabelle aus CATEGORY_RECENCY_DAYS.
// Ungültige Einträge werden übersprungen; unbekannte Kategorien fallen
// später auf DefaultRecencyDays zurück.
func (c *Config) RecencyWindows() map[string]int {
	windows := make(map[string]int)
	for _, pair := range strings.Split(c.RecencyWindowsRaw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 {
			continue
		}
		days, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || days <= 0 {
			continue
		}
		windows[strings.ToLower(strings.TrimSpace(parts[0]))] = days
	}
	return windows
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
