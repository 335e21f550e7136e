package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/brainblog/internal/models"
	"github.com/brainblog/internal/repository"
	"github.com/rs/zerolog"
)

// Export formats
const (
	FormatNDJSON = "ndjson"
	FormatJSON   = "json"
	FormatCSV    = "csv"
)

// ValidExportFormat reports whether StreamArticles supports format
func ValidExportFormat(format string) bool {
	switch format {
	case FormatNDJSON, FormatJSON, FormatCSV:
		return true
	}
	return false
}

// exportService is the concrete implementation of ExportService
type exportService struct {
	repo repository.ArticleRepository
	log  zerolog.Logger
}

// newExportService creates a new ExportService
func newExportService(repo repository.ArticleRepository, log zerolog.Logger) *exportService {
	return &exportService{
		repo: repo,
		log:  log.With().Str("service", "export").Logger(),
	}
}

// StreamArticles streams every article in the specified format
func (s *exportService) StreamArticles(ctx context.Context, w http.ResponseWriter, format string) error {
	s.log.Info().Str("format", format).Msg("Starting articles export")

	switch format {
	case FormatNDJSON:
		return s.streamNDJSON(ctx, w)
	case FormatJSON:
		return s.streamJSON(ctx, w)
	case FormatCSV:
		return s.streamCSV(ctx, w)
	default:
		return fmt.Errorf("unsupported format %q: %w", format, models.ErrInvalidArgument)
	}
}

func (s *exportService) streamNDJSON(ctx context.Context, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", "attachment; filename=articles.ndjson")

	flusher, _ := w.(http.Flusher)
	count := 0

	err := s.repo.StreamAll(ctx, func(article *models.Article) error {
		data, err := json.Marshal(article)
		if err != nil {
			return err
		}
		w.Write(data)
		w.Write([]byte("\n"))
		count++

		// Flush every 100 records for streaming
		if count%100 == 0 && flusher != nil {
			flusher.Flush()
		}
		return nil
	})

	s.log.Info().Int("count", count).Msg("Articles export completed")
	return err
}

func (s *exportService) streamJSON(ctx context.Context, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=articles.json")

	w.Write([]byte("["))
	first := true

	err := s.repo.StreamAll(ctx, func(article *models.Article) error {
		if !first {
			w.Write([]byte(","))
		}
		first = false

		data, err := json.Marshal(article)
		if err != nil {
			return err
		}
		w.Write(data)
		return nil
	})

	w.Write([]byte("]"))
	return err
}

func (s *exportService) streamCSV(ctx context.Context, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=articles.csv")

	writer := csv.NewWriter(w)
	defer writer.Flush()

	// Write header
	writer.Write([]string{"id", "title", "theme", "content", "file", "file_type", "created_at", "updated_at"})

	return s.repo.StreamAll(ctx, func(article *models.Article) error {
		return writer.Write([]string{
			article.ID,
			article.Title,
			article.Theme,
			article.Content,
			article.File,
			article.FileType,
			article.CreatedAt.UTC().Format(time.RFC3339),
			article.UpdatedAt.UTC().Format(time.RFC3339),
		})
	})
}

// GetCount returns the number of exportable articles
func (s *exportService) GetCount(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
