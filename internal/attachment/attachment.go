// Package attachment decides how an article's attached file is presented.
package attachment

import (
	"fmt"
	"strings"

	"github.com/brainblog/internal/models"
)

// WordDocumentMIME is the MIME type of .docx files
const WordDocumentMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// PDFMIME is the MIME type of PDF documents
const PDFMIME = "application/pdf"

// Kind names a presentation strategy
type Kind string

const (
	KindNone        Kind = "none"
	KindImage       Kind = "image"
	KindVideo       Kind = "video"
	KindPDF         Kind = "pdf"
	KindWord        Kind = "word"
	KindUnsupported Kind = "unsupported"
)

// Variant is one of NoAttachment, Image, Video, PDF, WordDocument or Unsupported.
// The set is closed: only this package can add implementations.
type Variant interface {
	Kind() Kind
	variant()
}

// NoAttachment is an article without a file
type NoAttachment struct{}

// Image is displayed inline
type Image struct {
	Ref string
}

// Video is played in an embedded player of the given MIME type
type Video struct {
	Ref      string
	MimeType string
}

// PDF is shown in an embedded document viewer
type PDF struct {
	Ref string
}

// WordDocument is a .docx file shown through a document viewer
type WordDocument struct {
	Ref string
}

// Unsupported is an attachment the UI can only offer as a raw link
type Unsupported struct {
	Ref      string
	MimeType string
}

func (NoAttachment) Kind() Kind { return KindNone }
func (Image) Kind() Kind        { return KindImage }
func (Video) Kind() Kind        { return KindVideo }
func (PDF) Kind() Kind          { return KindPDF }
func (WordDocument) Kind() Kind { return KindWord }
func (Unsupported) Kind() Kind  { return KindUnsupported }

func (NoAttachment) variant() {}
func (Image) variant()        {}
func (Video) variant()        {}
func (PDF) variant()          {}
func (WordDocument) variant() {}
func (Unsupported) variant()  {}

// Classify picks the presentation for a file reference and its MIME type.
// Empty strings mean absent. A MIME type without a reference is rejected.
func Classify(fileRef, mimeType string) (Variant, error) {
	switch {
	case fileRef == "" && mimeType != "":
		return nil, fmt.Errorf("%w: mime type %q without file reference", models.ErrInvalidArgument, mimeType)
	case fileRef == "":
		return NoAttachment{}, nil
	case strings.HasPrefix(mimeType, "image/"):
		return Image{Ref: fileRef}, nil
	case strings.HasPrefix(mimeType, "video/"):
		return Video{Ref: fileRef, MimeType: mimeType}, nil
	case mimeType == PDFMIME:
		return PDF{Ref: fileRef}, nil
	case mimeType == WordDocumentMIME:
		return WordDocument{Ref: fileRef}, nil
	default:
		return Unsupported{Ref: fileRef, MimeType: mimeType}, nil
	}
}

// ClassifyArticle classifies the attachment of a stored article
func ClassifyArticle(a *models.Article) (Variant, error) {
	return Classify(a.File, a.FileType)
}

// Describe flattens a variant into its API representation
func Describe(v Variant) models.AttachmentView {
	switch v := v.(type) {
	case NoAttachment:
		return models.AttachmentView{Kind: string(KindNone)}
	case Image:
		return models.AttachmentView{Kind: string(KindImage), URL: v.Ref}
	case Video:
		return models.AttachmentView{Kind: string(KindVideo), URL: v.Ref, MimeType: v.MimeType}
	case PDF:
		return models.AttachmentView{Kind: string(KindPDF), URL: v.Ref, MimeType: PDFMIME}
	case WordDocument:
		return models.AttachmentView{Kind: string(KindWord), URL: v.Ref, MimeType: WordDocumentMIME}
	case Unsupported:
		return models.AttachmentView{Kind: string(KindUnsupported), URL: v.Ref, MimeType: v.MimeType}
	default:
		panic(fmt.Sprintf("attachment: unknown variant %T", v))
	}
}
