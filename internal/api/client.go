// internal/api/client.go
//
// Gateway client for the TrustWork backend. One request path: JSON in,
// JSON out, bearer token attached from the injected TokenSource, every
// non-2xx normalized into *RequestError with a best-effort server message.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trustwork/trustwork/internal/logbook"
)

const maxBodyBytes = 4 * 1024 * 1024 // 4 MiB

// ErrUnauthorized marks responses whose bearer token was rejected. The
// presentation layer clears the session when it sees this; the client
// itself never mutates session state.
var ErrUnauthorized = errors.New("api: unauthorized")

// RequestError is the single error kind for failed backend calls.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with HTTP %d", e.Status)
}

// Is lets callers discriminate auth failures with errors.Is.
func (e *RequestError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// TokenSource provides the current bearer token, or "" when logged out.
type TokenSource interface {
	Token() string
}

// Option customizes Client construction.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests, proxies).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithLogbook attaches a logbook for request failure entries.
func WithLogbook(lb *logbook.Logbook) Option {
	return func(c *Client) {
		c.log = lb.With("api")
	}
}

// Client talks to the TrustWork REST API.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     *logbook.Logbook
}

// New creates a client for the given backend base URL. The "/api" prefix
// is appended here, matching the server's URL layout.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api",
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// do issues one request. Login and register pass authed=false; everything
// else carries the bearer token. out may be nil when the response body is
// not needed.
func (c *Client) do(ctx context.Context, method, path string, body, out any, authed bool) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: marshaling request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("api: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if authed && c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("%s %s: %v", method, path, err)
		return &RequestError{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &RequestError{Status: resp.StatusCode, Message: fmt.Sprintf("reading response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := extractMessage(raw, resp.Status)
		c.log.Error("%s %s: HTTP %d: %s", method, path, resp.StatusCode, msg)
		return &RequestError{Status: resp.StatusCode, Message: msg}
	}

	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return &RequestError{Status: resp.StatusCode, Message: fmt.Sprintf("parsing response: %v", err)}
		}
	}
	return nil
}

// extractMessage pulls a human-readable message out of an error body:
// the "detail" or "error" field when the body is a JSON object, the raw
// text otherwise, the HTTP status line as a last resort.
func extractMessage(raw []byte, statusLine string) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return statusLine
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err == nil {
		for _, key := range []string{"detail", "error"} {
			var msg string
			if field, ok := envelope[key]; ok && json.Unmarshal(field, &msg) == nil && msg != "" {
				return msg
			}
		}
	}
	return trimmed
}
