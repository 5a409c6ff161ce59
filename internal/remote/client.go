// Package remote talks to the remote dictionary API. Local writes never wait
// on it: Mirror fires requests in the background and only logs failures.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 15 * time.Second

// Config locates the API.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client is a minimal client for the dictionary endpoints.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Client. logger may be nil.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("remote"),
	}
}

// Import uploads a snapshot file as multipart field "file".
func (c *Client) Import(ctx context.Context, filename string, data []byte) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("remote: create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("remote: write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("remote: close multipart body: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/dictionary/import", mw.FormDataContentType(), &body)
	if err != nil {
		return err
	}
	return drain(resp)
}

// Export asks the API for a snapshot and returns the raw body.
func (c *Client) Export(ctx context.Context, includeFlashcards bool) ([]byte, error) {
	payload, err := json.Marshal(struct {
		IncludeFlashcards bool `json:"includeFlashcards"`
	}{includeFlashcards})
	if err != nil {
		return nil, fmt.Errorf("remote: encode export request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/dictionary/export", "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote: read export: %w", err)
	}
	return data, nil
}

// DeleteAll deletes the remote dictionary.
func (c *Client) DeleteAll(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodDelete, "/dictionary", "", nil)
	if err != nil {
		return err
	}
	return drain(resp)
}

// do sends a request and returns the response of a 2xx status.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("remote: create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("remote request", zap.String("method", method), zap.String("path", path))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	return resp, nil
}

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote: %s %s: unexpected status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func drain(resp *http.Response) error {
	defer resp.Body.Close()
	_, err := io.Copy(io.Discard, resp.Body)
	return err
}
