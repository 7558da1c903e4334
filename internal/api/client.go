package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docchat-cli/internal/config"

	"go.uber.org/zap"
)

const (
	DefaultAskPath = "/ask_with_ai"
	DefaultTimeout = 5 * time.Minute

	// fallbackDetail is shown when an error response carries no detail.
	fallbackDetail = "Ошибка сервера"
)

// Asker opens an answer stream for a question. The caller owns the returned
// body and must close it.
type Asker interface {
	Ask(ctx context.Context, query string) (io.ReadCloser, error)
}

// StatusError is a non-2xx response from the assistant service.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Detail)
}

type Client struct {
	baseURL    string
	askPath    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(cfg *config.Config, opts ...Option) *Client {
	timeout := DefaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	askPath := cfg.AskPath
	if askPath == "" {
		askPath = DefaultAskPath
	}
	if !strings.HasPrefix(askPath, "/") {
		askPath = "/" + askPath
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.Server, "/"),
		askPath:    askPath,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "api"))
	return c
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/plain")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

type askRequest struct {
	Query string `json:"query"`
}

// Ask posts the question and returns the streaming answer body.
func (c *Client) Ask(ctx context.Context, query string) (io.ReadCloser, error) {
	body, err := json.Marshal(askRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.askPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	c.logger.Debug("ask", zap.String("url", req.URL.String()), zap.Int("query_chars", len(query)))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		serr := &StatusError{StatusCode: resp.StatusCode, Detail: errorDetail(errBody)}
		c.logger.Warn("ask rejected", zap.Int("status", resp.StatusCode), zap.String("detail", serr.Detail))
		return nil, serr
	}
	return resp.Body, nil
}

// errorDetail pulls the detail field out of a JSON error body. Non-string
// details (validation error lists) are re-encoded compactly.
func errorDetail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return fallbackDetail
	}
	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return fallbackDetail
		}
		return s
	}
	if string(payload.Detail) == "null" {
		return fallbackDetail
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, payload.Detail); err != nil {
		return fallbackDetail
	}
	return compact.String()
}
