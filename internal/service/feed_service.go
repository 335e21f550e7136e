package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/brainblog/internal/config"
	"github.com/brainblog/internal/content"
	"github.com/brainblog/internal/repository"
	"github.com/gorilla/feeds"
	"github.com/rs/zerolog"
)

// maxSummaryLength truncates item descriptions, in runes
const maxSummaryLength = 500

// feedService is the concrete implementation of FeedService
type feedService struct {
	repo repository.ArticleRepository
	cfg  *config.FeedConfig
	now  func() time.Time
	log  zerolog.Logger
}

// newFeedService creates a new FeedService
func newFeedService(repo repository.ArticleRepository, cfg *config.FeedConfig, log zerolog.Logger) *feedService {
	return &feedService{
		repo: repo,
		cfg:  cfg,
		now:  time.Now,
		log:  log.With().Str("service", "feed").Logger(),
	}
}

// WriteRSS writes an RSS 2.0 feed of the newest articles
func (s *feedService) WriteRSS(ctx context.Context, w io.Writer) error {
	articles, err := s.repo.List(ctx, s.cfg.Size)
	if err != nil {
		return fmt.Errorf("failed to list articles for feed: %w", err)
	}

	link := strings.TrimRight(s.cfg.Link, "/")
	feed := &feeds.Feed{
		Title:       s.cfg.Title,
		Link:        &feeds.Link{Href: link},
		Description: s.cfg.Description,
		Author:      &feeds.Author{Name: s.cfg.Author},
		Created:     s.now().UTC(),
	}

	feed.Items = make([]*feeds.Item, 0, len(articles))
	for _, article := range articles {
		item := &feeds.Item{
			Title:       article.Title,
			Link:        &feeds.Link{Href: link + "/v1/articles/" + article.ID},
			Id:          article.ID,
			Description: summary(article.Content),
			Created:     article.CreatedAt,
			Updated:     article.UpdatedAt,
		}
		if article.Theme != "" {
			item.Title = fmt.Sprintf("[%s] %s", article.Theme, article.Title)
		}
		feed.Items = append(feed.Items, item)
	}

	if err := feed.WriteRss(w); err != nil {
		return fmt.Errorf("failed to generate RSS: %w", err)
	}

	s.log.Debug().Int("items", len(feed.Items)).Msg("RSS feed generated")
	return nil
}

// summary uses the prose of the body, leaving code blocks out
func summary(body string) string {
	var parts []string
	for _, seg := range content.Split(body) {
		if seg.Kind == content.KindProse {
			parts = append(parts, seg.Text)
		}
	}

	text := []rune(strings.Join(parts, " "))
	if len(text) > maxSummaryLength {
		return string(text[:maxSummaryLength]) + "..."
	}
	return string(text)
}
