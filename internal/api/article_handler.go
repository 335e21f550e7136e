package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/brainblog/internal/articleview"
	"github.com/brainblog/internal/config"
	"github.com/brainblog/internal/models"
	"github.com/brainblog/internal/service"
	"github.com/brainblog/internal/validation"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// formOverhead is allowed on top of MaxUploadSize for the text fields of a multipart body
const formOverhead = 1 << 20

// ArticleHandler handles article endpoints
type ArticleHandler struct {
	services *service.Services
	cfg      *config.Config
	log      zerolog.Logger
}

// NewArticleHandler creates a new ArticleHandler
func NewArticleHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *ArticleHandler {
	return &ArticleHandler{
		services: services,
		cfg:      cfg,
		log:      log.With().Str("handler", "article").Logger(),
	}
}

// List handles GET /v1/articles?search=...&sort=...
func (h *ArticleHandler) List(c *gin.Context) {
	key := articleview.DateDesc
	if raw := c.Query("sort"); raw != "" {
		parsed, err := articleview.ParseSortKey(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("sort must be one of: %s", sortKeyList())})
			return
		}
		key = parsed
	}
	search := c.Query("search")

	articles, err := h.services.Article.List(c.Request.Context(), search, key)
	if err != nil {
		h.respondError(c, err, "failed to list articles")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"articles": articles,
		"count":    len(articles),
		"search":   search,
		"sort":     key,
	})
}

// Get handles GET /v1/articles/:id
func (h *ArticleHandler) Get(c *gin.Context) {
	detail, err := h.services.Article.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "failed to get article")
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Create handles POST /v1/articles (multipart: title, theme, content, file)
func (h *ArticleHandler) Create(c *gin.Context) {
	input, upload, closeUpload, ok := h.readSubmission(c)
	if !ok {
		return
	}
	defer closeUpload()

	article, err := h.services.Article.Create(c.Request.Context(), input, upload)
	if err != nil {
		h.respondError(c, err, "failed to create article")
		return
	}

	c.JSON(http.StatusCreated, article)
}

// Update handles PUT /v1/articles/:id (multipart, remove_file=true drops the attachment)
func (h *ArticleHandler) Update(c *gin.Context) {
	input, upload, closeUpload, ok := h.readSubmission(c)
	if !ok {
		return
	}
	defer closeUpload()

	article, err := h.services.Article.Update(c.Request.Context(), c.Param("id"), input, upload)
	if err != nil {
		h.respondError(c, err, "failed to update article")
		return
	}

	c.JSON(http.StatusOK, article)
}

// Delete handles DELETE /v1/articles/:id
func (h *ArticleHandler) Delete(c *gin.Context) {
	if err := h.services.Article.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err, "failed to delete article")
		return
	}
	c.Status(http.StatusNoContent)
}

// HighlightCSS serves the stylesheet for rendered code blocks
func (h *ArticleHandler) HighlightCSS(c *gin.Context) {
	c.Header("Content-Type", "text/css; charset=utf-8")
	c.Header("Cache-Control", "public, max-age=3600")
	c.Status(http.StatusOK)
	if err := h.services.Article.WriteHighlightCSS(c.Writer); err != nil {
		h.log.Error().Err(err).Msg("Failed to write highlight stylesheet")
	}
}

// readSubmission binds the form fields and the optional file; it responds itself on failure.
// The returned func closes the file and must be called once the upload is consumed.
func (h *ArticleHandler) readSubmission(c *gin.Context) (*models.ArticleInput, *service.Upload, func(), bool) {
	noop := func() {}

	if limit := h.cfg.Blob.MaxUploadSize; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+formOverhead)
	}

	var input models.ArticleInput
	if err := c.ShouldBind(&input); err != nil {
		h.respondBodyError(c, err)
		return nil, nil, noop, false
	}

	header, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return &input, nil, noop, true
	}
	if err != nil {
		h.respondBodyError(c, err)
		return nil, nil, noop, false
	}

	file, err := header.Open()
	if err != nil {
		h.log.Error().Err(err).Str("filename", header.Filename).Msg("Failed to open uploaded file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read uploaded file"})
		return nil, nil, noop, false
	}
	closeFile := func() { file.Close() }

	// The declared content type is not trusted
	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		closeFile()
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to detect file type"})
		return nil, nil, noop, false
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		closeFile()
		h.log.Error().Err(err).Msg("Failed to rewind uploaded file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read uploaded file"})
		return nil, nil, noop, false
	}

	mimeType, _, _ := strings.Cut(mtype.String(), ";")

	h.log.Debug().
		Str("filename", header.Filename).
		Str("declared_type", header.Header.Get("Content-Type")).
		Str("detected_type", mimeType).
		Int64("size", header.Size).
		Msg("Upload received")

	return &input, &service.Upload{
		Name:     header.Filename,
		MimeType: mimeType,
		Size:     header.Size,
		Reader:   file,
	}, closeFile, true
}

func (h *ArticleHandler) respondBodyError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("file exceeds maximum size of %d bytes", h.cfg.Blob.MaxUploadSize),
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
}

// respondError maps service errors to status codes
func (h *ArticleHandler) respondError(c *gin.Context, err error, message string) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "details": []validation.ValidationError(verrs)})
	case errors.Is(err, models.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
	default:
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg(message)
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}

func sortKeyList() string {
	keys := make([]string, len(articleview.SortKeys))
	for i, k := range articleview.SortKeys {
		keys[i] = string(k)
	}
	return strings.Join(keys, ", ")
}
