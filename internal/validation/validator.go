package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/brainblog/internal/attachment"
	"github.com/brainblog/internal/models"
)

// MaxTitleLength bounds article titles, in runes
const MaxTitleLength = 200

// MaxThemeLength bounds article themes, in runes
const MaxThemeLength = 100

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Errors is a list of validation failures returned as a single error
type Errors []ValidationError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap lets callers match Errors with models.ErrInvalidArgument
func (e Errors) Unwrap() error {
	return models.ErrInvalidArgument
}

// Err returns nil when there are no failures
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Upload describes an attachment as received, before it is stored
type Upload struct {
	Name     string
	MimeType string
	Size     int64
}

// Validator checks article submissions
type Validator struct {
	maxUploadSize int64
}

// NewValidator creates a validator; maxUploadSize <= 0 disables the size check
func NewValidator(maxUploadSize int64) *Validator {
	return &Validator{maxUploadSize: maxUploadSize}
}

// ValidateArticleInput validates the editable fields of a create or edit
func (v *Validator) ValidateArticleInput(input *models.ArticleInput) []ValidationError {
	var errors []ValidationError

	// Validate title
	title := strings.TrimSpace(input.Title)
	if title == "" {
		errors = append(errors, ValidationError{Field: "title", Message: "title is required"})
	} else if utf8.RuneCountInString(title) > MaxTitleLength {
		errors = append(errors, ValidationError{
			Field:   "title",
			Message: fmt.Sprintf("title exceeds maximum of %d characters", MaxTitleLength),
		})
	}

	// Validate theme
	if utf8.RuneCountInString(strings.TrimSpace(input.Theme)) > MaxThemeLength {
		errors = append(errors, ValidationError{
			Field:   "theme",
			Message: fmt.Sprintf("theme exceeds maximum of %d characters", MaxThemeLength),
			Value:   input.Theme,
		})
	}

	return errors
}

// ValidateUpload checks size and the accepted attachment types
func (v *Validator) ValidateUpload(upload *Upload) []ValidationError {
	var errors []ValidationError

	if upload.Name == "" {
		errors = append(errors, ValidationError{Field: "file", Message: "file name is required"})
	}

	if upload.Size == 0 {
		errors = append(errors, ValidationError{Field: "file", Message: "file is empty"})
	} else if v.maxUploadSize > 0 && upload.Size > v.maxUploadSize {
		errors = append(errors, ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("file exceeds maximum size of %d bytes", v.maxUploadSize),
			Value:   upload.Size,
		})
	}

	if !AcceptedMimeType(upload.MimeType) {
		errors = append(errors, ValidationError{
			Field:   "file",
			Message: "file must be an image, a video, a PDF or a Word document",
			Value:   upload.MimeType,
		})
	}

	return errors
}

// ValidateArticle checks the attachment pair invariant of a stored record
func (v *Validator) ValidateArticle(article *models.Article) []ValidationError {
	var errors []ValidationError

	if article.ID == "" {
		errors = append(errors, ValidationError{Field: "id", Message: "id is required"})
	}
	if strings.TrimSpace(article.Title) == "" {
		errors = append(errors, ValidationError{Field: "title", Message: "title is required"})
	}
	if article.File == "" && article.FileType != "" {
		errors = append(errors, ValidationError{Field: "file_type", Message: "file_type set without file", Value: article.FileType})
	}
	if article.File != "" && article.FileType == "" {
		errors = append(errors, ValidationError{Field: "file_type", Message: "file_type is required with file"})
	}

	return errors
}

// AcceptedMimeType reports whether uploads of this type are allowed
func AcceptedMimeType(mimeType string) bool {
	switch {
	case strings.HasPrefix(mimeType, "image/"), strings.HasPrefix(mimeType, "video/"):
		return true
	case mimeType == attachment.PDFMIME, mimeType == attachment.WordDocumentMIME:
		return true
	}
	return false
}
