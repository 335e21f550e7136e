package models

import (
	"time"
)

// Article represents a blog post with at most one attached file
type Article struct {
	ID        string    `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Theme     string    `json:"theme" db:"theme"`
	Content   string    `json:"content" db:"content"`
	File      string    `json:"file,omitempty" db:"file"`           // Blob reference, empty when no attachment
	FileType  string    `json:"file_type,omitempty" db:"file_type"` // MIME type, set iff File is set
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// HasAttachment reports whether the article references a blob
func (a *Article) HasAttachment() bool {
	return a.File != ""
}

// ArticleInput holds the editable fields of an article submission
type ArticleInput struct {
	Title      string `form:"title" json:"title"`
	Theme      string `form:"theme" json:"theme"`
	Content    string `form:"content" json:"content"`
	RemoveFile bool   `form:"remove_file" json:"remove_file"` // Edit only
}

// AttachmentView is the presentation of an attachment chosen by the classifier
type AttachmentView struct {
	Kind     string `json:"kind"`
	URL      string `json:"url,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// SegmentView is one rendered paragraph of an article body
type SegmentView struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
	HTML string `json:"html"`
}

// ArticleDetail is the API response for a single article
type ArticleDetail struct {
	Article
	Attachment AttachmentView `json:"attachment"`
	Segments   []SegmentView  `json:"segments"`
}
