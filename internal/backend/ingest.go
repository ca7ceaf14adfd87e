package backend

import (
	"bytes"
	"context"
	"time"

	"github.com/starford/studyai/internal/apperr"
	"github.com/starford/studyai/internal/models"
)

// SummarizeRaw submits a text or voice capture to POST /summarize_raw as a
// multipart form with the fields content, user_id, title and summary_type.
func (c *Client) SummarizeRaw(ctx context.Context, userID string, cp models.Capture, summaryType string) (res Success, err error) {
	const op = "summarize_raw"
	start := time.Now()
	defer func() { observe(op, start, err) }()

	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartFormData(formFields(userID, cp, summaryType)).
		Post("/summarize_raw")
	return c.result(op, resp, err, func(e envelope) string { return e.SummaryID })
}

// UploadPDF submits a PDF capture to POST /upload_pdf. The original file is
// sent as the "file" part next to the same form fields as SummarizeRaw.
func (c *Client) UploadPDF(ctx context.Context, userID string, cp models.Capture, summaryType string) (res Success, err error) {
	const op = "upload_pdf"
	start := time.Now()
	defer func() { observe(op, start, err) }()

	if cp.File == nil || len(cp.File.Data) == 0 {
		return Success{}, apperr.Validation("file", "a PDF file is required")
	}
	name := cp.File.Name
	if name == "" {
		name = "document.pdf"
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartFormData(formFields(userID, cp, summaryType)).
		SetFileReader("file", name, bytes.NewReader(cp.File.Data)).
		Post("/upload_pdf")
	return c.result(op, resp, err, func(e envelope) string { return e.SummaryID })
}

// DeleteSummary removes a summary and its note through the backend so related
// records cascade. It returns the id of the note that was removed.
func (c *Client) DeleteSummary(ctx context.Context, userID, summaryID string) (noteID string, err error) {
	const op = "delete_summary"
	start := time.Now()
	defer func() { observe(op, start, err) }()

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"uid": userID, "sid": summaryID}).
		Delete("/delete_summary/{uid}/{sid}")
	if err := checkStatus(op, resp, err); err != nil {
		return "", err
	}
	var body struct {
		Success bool   `json:"success"`
		NoteID  string `json:"note_id"`
		Message string `json:"message"`
	}
	if err := decodeJSON(op, resp, &body); err != nil {
		return "", err
	}
	if !body.Success {
		msg := body.Message
		if msg == "" {
			msg = unknownFailure
		}
		return "", &apperr.APIError{Message: msg}
	}
	return body.NoteID, nil
}

func formFields(userID string, cp models.Capture, summaryType string) map[string]string {
	if summaryType == "" {
		summaryType = DefaultSummaryType
	}
	return map[string]string{
		"content":      cp.Body,
		"user_id":      userID,
		"title":        cp.Title,
		"summary_type": summaryType,
	}
}
