package api

import (
	"bytes"
	"net/http"

	"github.com/brainblog/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// FeedHandler serves the syndication feed
type FeedHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(services *service.Services, log zerolog.Logger) *FeedHandler {
	return &FeedHandler{
		services: services,
		log:      log.With().Str("handler", "feed").Logger(),
	}
}

// RSS handles GET /rss.xml
func (h *FeedHandler) RSS(c *gin.Context) {
	// Buffered so a failure can still be reported as JSON
	var buf bytes.Buffer
	if err := h.services.Feed.WriteRSS(c.Request.Context(), &buf); err != nil {
		h.log.Error().Err(err).Msg("Failed to generate RSS feed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate feed"})
		return
	}

	c.Header("Cache-Control", "public, max-age=300")
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", buf.Bytes())
}
