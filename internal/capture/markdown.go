package capture

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/studyai/internal/models"
)

// Document is a text file imported as a capture.
type Document struct {
	Frontmatter map[string]any
	Title       string
	Body        string
}

// ParseMarkdown splits optional YAML frontmatter from a Markdown or plain-text
// file and derives a title from it.
func ParseMarkdown(data []byte) *Document {
	fm, body := splitFrontmatter(data)
	return &Document{
		Frontmatter: fm,
		Title:       deriveTitle(fm, body),
		Body:        body,
	}
}

// Capture converts the document into a text capture. fallbackTitle is used
// when the document carries no title of its own.
func (d *Document) Capture(fallbackTitle string) models.Capture {
	title := d.Title
	if title == "" {
		title = fallbackTitle
	}
	return models.Capture{Title: title, Body: d.Body, Source: models.SourceText, SummaryType: d.SummaryType()}
}

// SummaryType returns the summary_type frontmatter key, if set.
func (d *Document) SummaryType() string {
	if d.Frontmatter == nil {
		return ""
	}
	if s, ok := d.Frontmatter["summary_type"].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML: keep the whole file as body.
		return nil, string(data)
	}
	return fm, body
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if fm != nil {
		if s, ok := fm["title"].(string); ok && s != "" {
			return s
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
