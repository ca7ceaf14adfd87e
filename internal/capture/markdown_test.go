package capture

import (
	"testing"

	"github.com/starford/studyai/internal/models"
)

func TestParseMarkdown_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Cell Biology\nsummary_type: bullet_points\n---\n# Lecture 3\nMitochondria.\n")
	d := ParseMarkdown(input)
	if d.Title != "Cell Biology" {
		t.Errorf("title = %q, want %q", d.Title, "Cell Biology")
	}
	if d.Body != "# Lecture 3\nMitochondria.\n" {
		t.Errorf("body = %q", d.Body)
	}
	if d.SummaryType() != "bullet_points" {
		t.Errorf("summary type = %q", d.SummaryType())
	}
}

func TestParseMarkdown_NoFrontmatter(t *testing.T) {
	d := ParseMarkdown([]byte("# Just a heading\nSome text.\n"))
	if d.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", d.Frontmatter)
	}
	if d.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", d.Title, "Just a heading")
	}
}

func TestParseMarkdown_InvalidYAMLFallback(t *testing.T) {
	input := "---\n: invalid: yaml: {{{\n---\nBody\n"
	d := ParseMarkdown([]byte(input))
	if d.Frontmatter != nil {
		t.Errorf("expected nil frontmatter on invalid YAML")
	}
	if d.Body != input {
		t.Errorf("body = %q, want whole file", d.Body)
	}
}

func TestDocumentCapture_FallbackTitle(t *testing.T) {
	c := ParseMarkdown([]byte("plain text without heading")).Capture("lecture-notes")
	if c.Title != "lecture-notes" {
		t.Errorf("title = %q", c.Title)
	}
	if c.Source != models.SourceText {
		t.Errorf("source = %q", c.Source)
	}
}

func TestDeriveTitle_FrontmatterOverH1(t *testing.T) {
	fm := map[string]any{"title": "FM Title"}
	if title := deriveTitle(fm, "# H1 Title\ntext"); title != "FM Title" {
		t.Errorf("title = %q, want %q", title, "FM Title")
	}
}

func TestDeriveTitle_H1Fallback(t *testing.T) {
	if title := deriveTitle(nil, "some text\n# My Heading\nmore"); title != "My Heading" {
		t.Errorf("title = %q, want %q", title, "My Heading")
	}
}
