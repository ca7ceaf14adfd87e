// Package backend is the REST client for the summarization and flashcard
// backend. Every call returns either a decoded result or one of the apperr
// kinds: TransportError for connectivity and protocol failures, APIError for
// well-formed responses that report a logical failure.
package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/starford/studyai/internal/apperr"
)

// DefaultSummaryType is sent when the caller does not choose one.
const DefaultSummaryType = "detailed"

// Client talks to the backend over HTTP.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets a per-request timeout. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.SetTimeout(d)
		}
	}
}

// WithLogger sets the logger used for soft backend warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Accept", "application/json"),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// errorBody is the shape of a non-200 JSON body. FastAPI reports HTTPException
// messages under "detail".
type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// checkStatus turns a resty result into a TransportError or APIError when the
// exchange did not produce a usable 200 body.
func checkStatus(op string, resp *resty.Response, err error) error {
	if err != nil {
		return &apperr.TransportError{Op: op, Err: err}
	}
	if resp.StatusCode() == http.StatusOK {
		return nil
	}
	var eb errorBody
	if json.Unmarshal(resp.Body(), &eb) == nil {
		switch {
		case eb.Error != "":
			return &apperr.APIError{Message: eb.Error}
		case eb.Detail != "":
			return &apperr.APIError{Message: eb.Detail}
		}
	}
	return &apperr.TransportError{
		Op:     op,
		Status: resp.StatusCode(),
		Err:    errors.New(http.StatusText(resp.StatusCode())),
	}
}

// decodeJSON decodes a 200 body into v, reporting failures as transport errors.
func decodeJSON(op string, resp *resty.Response, v any) error {
	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return &apperr.TransportError{
			Op:     op,
			Status: resp.StatusCode(),
			Err:    fmt.Errorf("decode response: %w", err),
		}
	}
	return nil
}

// observe records the outcome of one backend call.
func observe(endpoint string, start time.Time, err error) {
	requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	requestsTotal.WithLabelValues(endpoint, outcomeLabel(err)).Inc()
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case apperr.IsAPI(err):
		return "api_error"
	case errors.Is(err, apperr.ErrAmbiguousResponse):
		return "ambiguous"
	default:
		return "transport_error"
	}
}

// result decodes an ingest or generation envelope. id picks the field that a
// success must carry.
func (c *Client) result(op string, resp *resty.Response, err error, id func(envelope) string) (Success, error) {
	if err := checkStatus(op, resp, err); err != nil {
		return Success{}, err
	}
	var env envelope
	if err := decodeJSON(op, resp, &env); err != nil {
		return Success{}, err
	}
	out, err := decodeOutcome(env, id(env))
	if err != nil {
		return Success{}, fmt.Errorf("%s: %w", op, err)
	}
	return c.resolve(op, out)
}
