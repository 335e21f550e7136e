package content

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/brainblog/internal/models"
	"github.com/microcosm-cc/bluemonday"
)

// Highlighter renders segments to HTML: code through chroma, prose through
// a user-generated-content sanitising policy.
type Highlighter struct {
	style     *chroma.Style
	formatter *html.Formatter
	policy    *bluemonday.Policy
}

// NewHighlighter creates a Highlighter using the named chroma style.
// Unknown style names fall back to chroma's default.
func NewHighlighter(styleName string) *Highlighter {
	return &Highlighter{
		style:     styles.Get(styleName),
		formatter: html.New(html.WithClasses(true), html.TabWidth(4)),
		policy:    bluemonday.UGCPolicy(),
	}
}

// Render renders every segment of body
func (h *Highlighter) Render(body string) ([]models.SegmentView, error) {
	segments := Split(body)
	views := make([]models.SegmentView, 0, len(segments))

	for _, seg := range segments {
		var out string
		switch seg.Kind {
		case KindCode:
			code, err := h.highlight(seg.Text)
			if err != nil {
				return nil, err
			}
			out = code
		default:
			out = h.policy.Sanitize(seg.Text)
		}
		views = append(views, models.SegmentView{Kind: string(seg.Kind), Text: seg.Text, HTML: out})
	}

	return views, nil
}

func (h *Highlighter) highlight(code string) (string, error) {
	lexer := lexers.Analyse(code)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", fmt.Errorf("failed to tokenise code block: %w", err)
	}

	var buf bytes.Buffer
	if err := h.formatter.Format(&buf, h.style, iterator); err != nil {
		// Keep the block readable even if formatting fails half way
		return "<pre>" + template.HTMLEscapeString(code) + "</pre>", nil
	}
	return buf.String(), nil
}

// WriteCSS writes the stylesheet matching the classes emitted by Render
func (h *Highlighter) WriteCSS(w io.Writer) error {
	return h.formatter.WriteCSS(w, h.style)
}
