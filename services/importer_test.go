package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"crypto-pulse/config"
)

func writeArtifact(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func validArtifact() string {
	return "Category: etf\n" +
		"Title: Spot ETF sees record inflows\n" +
		"URL: https://cryptoslate.com/spot-etf-inflows/\n" +
		"PublishedAt: 2025-11-02T10:00:00Z\n" +
		"\n" + strings.Repeat("=", 80) + "\n\n" +
		"Spot bitcoin ETFs recorded their largest daily inflow."
}

func TestComputeHashIsDeterministic(t *testing.T) {
	h1 := ComputeHash("title", "url", "content")
	h2 := ComputeHash("title", "url", "content")
	h3 := ComputeHash("title", "url", "different")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}

func TestParseArticleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeArtifact(t, dir, "good.txt", validArtifact())

	art, err := ParseArticleFile(path)
	require.NoError(t, err)

	assert.Equal(t, "etf", art.Category)
	assert.Equal(t, "Spot ETF sees record inflows", art.Title)
	assert.Equal(t, "https://cryptoslate.com/spot-etf-inflows/", art.URL)
	assert.Equal(t, "2025-11-02T10:00:00Z", art.PublishedAt)
	assert.Equal(t, "Spot bitcoin ETFs recorded their largest daily inflow.", art.Content)
}

func TestParseArticleFileWithoutPublishedAt(t *testing.T) {
	dir := t.TempDir()
	content := "Category: macro\nTitle: Fed holds rates steady this quarter\nURL: https://cryptoslate.com/fed/\n\n" +
		strings.Repeat("=", 80) + "\n\nThe Fed left rates unchanged."
	path := writeArtifact(t, dir, "nodate.txt", content)

	art, err := ParseArticleFile(path)
	require.NoError(t, err)
	assert.Empty(t, art.PublishedAt)
	assert.Equal(t, "The Fed left rates unchanged.", art.Content)
}

func TestParseArticleFileMissingRequiredField(t *testing.T) {
	dir := t.TempDir()
	content := "Category: etf\nTitle: Missing URL here\n\n" + strings.Repeat("=", 80) + "\n\nBody."
	path := writeArtifact(t, dir, "bad.txt", content)

	_, err := ParseArticleFile(path)
	require.Error(t, err)
}

func TestParseArticleFileMissingDivider(t *testing.T) {
	dir := t.TempDir()
	content := "Category: etf\nTitle: No divider\nURL: https://x.test/\n\nBody without divider."
	path := writeArtifact(t, dir, "nodivider.txt", content)

	_, err := ParseArticleFile(path)
	require.Error(t, err)
}

func TestParsePublishedAt(t *testing.T) {
	ts := parsePublishedAt("2025-11-02T10:00:00Z")
	require.NotNil(t, ts)
	assert.Equal(t, 2025, ts.Year())

	assert.Nil(t, parsePublishedAt(""))
	assert.Nil(t, parsePublishedAt("not a date"))
}

// newMockDB öffnet gorm über eine sqlmock-Verbindung.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func newTestImportService(db *gorm.DB) *ImportService {
	cfg := &config.Config{ScrapedDir: "scraped_articles", FailedDir: "failed_articles"}
	return NewImportService(cfg, db, &fakeSummarizer{}, nil, zap.NewNop())
}

func TestInsertArticleExistsShortCircuits(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTestImportService(db)

	rows := sqlmock.NewRows([]string{"id", "title", "url", "hash"}).
		AddRow(42, "Old title", "https://x.test/a", "somehash")
	mock.ExpectQuery(`SELECT \* FROM "news_articles"`).WillReturnRows(rows)

	result := svc.InsertArticle(context.Background(), "Old title", "https://x.test/a", "content", "etf", "")

	assert.Equal(t, StatusExists, result.Status)
	assert.Equal(t, uint(42), result.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertArticleInserted(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTestImportService(db)

	mock.ExpectQuery(`SELECT \* FROM "news_articles"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "news_articles"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	result := svc.InsertArticle(context.Background(), "New title", "https://x.test/b", "content", "etf", "2025-11-02T10:00:00Z")

	assert.Equal(t, StatusInserted, result.Status)
	assert.Equal(t, uint(7), result.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertArticleUniqueRaceIsDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	svc := newTestImportService(db)

	mock.ExpectQuery(`SELECT \* FROM "news_articles"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "news_articles"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})
	mock.ExpectRollback()

	result := svc.InsertArticle(context.Background(), "Racing title", "https://x.test/c", "content", "etf", "")

	assert.Equal(t, StatusDuplicate, result.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportQuarantinesUnparsableArtifact(t *testing.T) {
	scrapedDir := t.TempDir()
	failedDir := t.TempDir()
	writeArtifact(t, scrapedDir, "broken.txt", "this is not an artifact")

	db, mock := newMockDB(t)
	_ = mock // kein DB-Zugriff erwartet

	cfg := &config.Config{ScrapedDir: scrapedDir, FailedDir: failedDir}
	svc := NewImportService(cfg, db, &fakeSummarizer{}, nil, zap.NewNop())

	reports := svc.ImportScrapedArticles(context.Background())

	require.Len(t, reports, 1)
	assert.Equal(t, StatusError, reports[0].Status)

	// Datei liegt jetzt in der Quarantäne, nicht mehr im Eingang.
	_, err := os.Stat(filepath.Join(failedDir, "broken.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(scrapedDir, "broken.txt"))
	assert.True(t, os.IsNotExist(err))
}
