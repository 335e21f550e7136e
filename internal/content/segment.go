// Package content splits article bodies into prose and code paragraphs.
package content

import (
	"strings"
)

const (
	codeOpen  = "<code>"
	codeClose = "</code>"

	paragraphSeparator = "\n\n"
)

// Kind distinguishes prose from code
type Kind string

const (
	KindProse Kind = "prose"
	KindCode  Kind = "code"
)

// Segment is one paragraph of an article body
type Segment struct {
	Kind Kind
	Text string
}

// Prose returns a prose segment
func Prose(text string) Segment {
	return Segment{Kind: KindProse, Text: text}
}

// CodeBlock returns a code segment
func CodeBlock(text string) Segment {
	return Segment{Kind: KindCode, Text: text}
}

// Split breaks body on blank-line boundaries. A paragraph wrapped in
// <code>...</code> becomes a code block with the delimiters removed; anything
// else, including an unterminated delimiter, is prose. Blank paragraphs are dropped.
// CRLF and lone CR line endings are treated as LF.
func Split(body string) []Segment {
	var segments []Segment

	body = NormalizeNewlines(body)

	for _, paragraph := range strings.Split(body, paragraphSeparator) {
		trimmed := strings.TrimSpace(paragraph)
		if trimmed == "" {
			continue
		}

		if isCodeBlock(trimmed) {
			inner := trimmed[len(codeOpen) : len(trimmed)-len(codeClose)]
			segments = append(segments, CodeBlock(strings.TrimSpace(inner)))
			continue
		}
		segments = append(segments, Prose(trimmed))
	}

	return segments
}

// NormalizeNewlines rewrites CRLF and CR line endings as LF
func NormalizeNewlines(s string) string {
	return lineEndings.Replace(s)
}

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

func isCodeBlock(s string) bool {
	return len(s) >= len(codeOpen)+len(codeClose) &&
		strings.HasPrefix(s, codeOpen) &&
		strings.HasSuffix(s, codeClose)
}
