package capture

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/starford/studyai/internal/apperr"
	"github.com/starford/studyai/internal/models"
)

type stubExtractor struct {
	pages []string
	err   error
}

func (s stubExtractor) ExtractPages(io.ReaderAt, int64) ([]string, error) {
	return s.pages, s.err
}

func TestImportPDF_ConcatenatesPages(t *testing.T) {
	p1 := strings.Repeat("a", 200)
	p2 := strings.Repeat("b", 200)
	c, err := ImportPDF(stubExtractor{pages: []string{p1, p2}}, "lecture.pdf", []byte("%PDF"), " Lecture ")
	if err != nil {
		t.Fatalf("ImportPDF: %v", err)
	}
	if c.Body != p1+"\n"+p2 {
		t.Errorf("body not concatenated page by page")
	}
	if c.Title != "Lecture" || c.Source != models.SourcePDF {
		t.Errorf("capture = %+v", c)
	}
	if c.File == nil || c.File.Name != "lecture.pdf" {
		t.Errorf("file attachment missing")
	}
}

func TestImportPDF_ParseFailureIsDistinct(t *testing.T) {
	_, err := ImportPDF(stubExtractor{err: errors.New("xref")}, "x.pdf", nil, "T")
	if !errors.Is(err, ErrUnreadablePDF) {
		t.Fatalf("err = %v, want ErrUnreadablePDF", err)
	}
	if apperr.IsValidation(err) {
		t.Error("parse failure must not be reported as too short")
	}
}

func TestImportPDF_TooShort(t *testing.T) {
	_, err := ImportPDF(stubExtractor{pages: []string{"tiny"}}, "x.pdf", nil, "T")
	if !apperr.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if errors.Is(err, ErrUnreadablePDF) {
		t.Error("too short must not be reported as unreadable")
	}
}

func TestPlainTextExtractor_RejectsGarbage(t *testing.T) {
	data := []byte("definitely not a pdf")
	_, err := ImportPDF(PlainTextExtractor{}, "bad.pdf", data, "T")
	if !errors.Is(err, ErrUnreadablePDF) {
		t.Fatalf("err = %v, want ErrUnreadablePDF", err)
	}
}
