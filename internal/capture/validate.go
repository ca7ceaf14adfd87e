// Package capture implements the three capture sources (text entry, live voice
// transcription, PDF import) and the content gates they enforce before a
// capture may be submitted.
package capture

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/studyai/internal/apperr"
	"github.com/starford/studyai/internal/models"
)

var (
	notBlank  = validation.Required.Error("can't be empty")
	minLength = validation.RuneLength(models.MinCaptureLength, 0).
			Error(fmt.Sprintf("not enough characters, at least %d are required", models.MinCaptureLength))
)

// ValidateText gates a typed note: title and body must be non-empty.
func ValidateText(c models.Capture) error {
	if err := check("title", strings.TrimSpace(c.Title), notBlank); err != nil {
		return err
	}
	return check("body", strings.TrimSpace(c.Body), notBlank)
}

// ValidatePaste gates the paste-note flow, which additionally requires
// MinCaptureLength characters.
func ValidatePaste(c models.Capture) error {
	if err := ValidateText(c); err != nil {
		return err
	}
	return check("body", c.Body, minLength)
}

// ValidateVoice gates a finished recording.
func ValidateVoice(c models.Capture) error {
	if err := ValidateText(c); err != nil {
		return err
	}
	return check("body", c.Body, minLength)
}

// ValidatePDF gates extracted PDF text; surrounding whitespace does not count.
func ValidatePDF(c models.Capture) error {
	if err := check("title", strings.TrimSpace(c.Title), notBlank); err != nil {
		return err
	}
	return check("body", strings.TrimSpace(c.Body), notBlank, minLength)
}

// Validate dispatches to the gate matching the capture source. Text captures
// use the paste gate when long is set.
func Validate(c models.Capture, long bool) error {
	switch c.Source {
	case models.SourceVoice:
		return ValidateVoice(c)
	case models.SourcePDF:
		return ValidatePDF(c)
	case models.SourceText:
		if long {
			return ValidatePaste(c)
		}
		return ValidateText(c)
	default:
		return apperr.Validation("source", fmt.Sprintf("unknown capture source %q", c.Source))
	}
}

func check(field string, value string, rules ...validation.Rule) error {
	err := validation.Validate(value, rules...)
	if err == nil {
		return nil
	}
	var ve validation.Error
	if errors.As(err, &ve) {
		return apperr.Validation(field, ve.Message())
	}
	return apperr.Validation(field, err.Error())
}
