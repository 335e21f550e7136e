package content

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []Segment
	}{
		{
			name: "prose then code",
			body: "Hello\n\n<code>x=1</code>",
			want: []Segment{Prose("Hello"), CodeBlock("x=1")},
		},
		{
			name: "unterminated delimiter stays prose",
			body: "<code>unterminated",
			want: []Segment{Prose("<code>unterminated")},
		},
		{
			name: "inner text and padding trimmed",
			body: "  <code>\n  fmt.Println(1)\n</code>  \n\nbye",
			want: []Segment{CodeBlock("fmt.Println(1)"), Prose("bye")},
		},
		{
			name: "inline code inside prose is prose",
			body: "use <code>go vet</code> often",
			want: []Segment{Prose("use <code>go vet</code> often")},
		},
		{
			name: "blank paragraphs dropped",
			body: "one\n\n\n\n  \n\ntwo",
			want: []Segment{Prose("one"), Prose("two")},
		},
		{
			name: "empty code block",
			body: "<code></code>",
			want: []Segment{CodeBlock("")},
		},
		{
			name: "CRLF line endings",
			body: "Hello\r\n\r\n<code>x=1</code>",
			want: []Segment{Prose("Hello"), CodeBlock("x=1")},
		},
		{
			name: "CRLF inside code block",
			body: "<code>a := 1\r\nb := 2</code>\r\n\r\nbye",
			want: []Segment{CodeBlock("a := 1\nb := 2"), Prose("bye")},
		},
		{
			name: "lone CR line endings",
			body: "one\r\rtwo",
			want: []Segment{Prose("one"), Prose("two")},
		},
		{
			name: "empty body",
			body: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Split(tt.body)); diff != "" {
				t.Errorf("Split mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHighlighter_Render(t *testing.T) {
	h := NewHighlighter("github")

	views, err := h.Render("Intro <b>bold</b><script>alert(1)</script>\n\n<code>package main\n\nfunc main() {}</code>")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	// A blank line inside a code block splits it into prose paragraphs
	if len(views) != 3 {
		t.Fatalf("Expected 3 segments, got %d", len(views))
	}

	if views[0].Kind != "prose" {
		t.Errorf("Expected prose, got %s", views[0].Kind)
	}
	if strings.Contains(views[0].HTML, "<script") {
		t.Errorf("script tag not sanitised: %s", views[0].HTML)
	}
	if !strings.Contains(views[0].HTML, "<b>bold</b>") {
		t.Errorf("safe markup should survive: %s", views[0].HTML)
	}
}

func TestHighlighter_RenderCode(t *testing.T) {
	h := NewHighlighter("github")

	views, err := h.Render("<code>x := 1</code>")
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if len(views) != 1 || views[0].Kind != "code" {
		t.Fatalf("Expected one code segment, got %+v", views)
	}
	if views[0].Text != "x := 1" {
		t.Errorf("Expected raw text preserved, got %q", views[0].Text)
	}
	if !strings.Contains(views[0].HTML, `class="chroma"`) {
		t.Errorf("Expected chroma markup, got %s", views[0].HTML)
	}
}

func TestHighlighter_UnknownStyle(t *testing.T) {
	h := NewHighlighter("no-such-style")

	var buf bytes.Buffer
	if err := h.WriteCSS(&buf); err != nil {
		t.Fatalf("WriteCSS failed: %v", err)
	}
	if !strings.Contains(buf.String(), ".chroma") {
		t.Errorf("Expected chroma stylesheet, got %q", buf.String())
	}
}
