package capture

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/starford/studyai/internal/models"
)

// ErrUnreadablePDF is returned when text cannot be extracted from a file. It is
// distinct from the validation error raised for documents that are too short.
var ErrUnreadablePDF = errors.New("couldn't read PDF")

// Extractor pulls plain text out of a PDF, one entry per page.
type Extractor interface {
	ExtractPages(r io.ReaderAt, size int64) ([]string, error)
}

// PlainTextExtractor extracts page text with github.com/ledongthuc/pdf.
type PlainTextExtractor struct{}

// ExtractPages implements Extractor.
func (PlainTextExtractor) ExtractPages(r io.ReaderAt, size int64) (pages []string, err error) {
	// The pdf package panics on some malformed cross-reference tables.
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = nil, fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	doc, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	n := doc.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := doc.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// ImportPDF extracts the text of an imported PDF and returns a capture that
// carries the original file for upload. The capture is gated on
// MinCaptureLength characters after trimming.
func ImportPDF(ext Extractor, name string, data []byte, title string) (models.Capture, error) {
	if ext == nil {
		ext = PlainTextExtractor{}
	}
	pages, err := ext.ExtractPages(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return models.Capture{}, fmt.Errorf("%w: %v", ErrUnreadablePDF, err)
	}

	c := models.Capture{
		Title:  strings.TrimSpace(title),
		Body:   strings.Join(pages, "\n"),
		Source: models.SourcePDF,
		File:   &models.Attachment{Name: name, Data: data},
	}
	if err := ValidatePDF(c); err != nil {
		return models.Capture{}, err
	}
	return c, nil
}
