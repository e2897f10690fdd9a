package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/snapkeep/internal/infra/buildinfo"
	"github.com/yndnr/snapkeep/internal/server/httpserver"
)

// HTTPClient queries the endpoints served by httpserver.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for addr ("host:port" or a full URL).
func NewHTTPClient(addr string, timeout time.Duration) *HTTPClient {
	baseURL := strings.TrimRight(addr, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "snapkeep/"+buildinfo.Get().Version)
	req.Header.Set("Accept", "application/json")
	return c.client.Do(req)
}

// Status fetches GET /status.
func (c *HTTPClient) Status(ctx context.Context) (httpserver.Status, error) {
	var st httpserver.Status
	resp, err := c.Get(ctx, "/status")
	if err != nil {
		return st, err
	}
	err = ParseResponse(resp, &st)
	return st, err
}

// Healthy reports whether GET /healthz answers 200.
func (c *HTTPClient) Healthy(ctx context.Context) error {
	resp, err := c.Get(ctx, "/healthz")
	if err != nil {
		return err
	}
	return ParseResponse(resp, nil)
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// ParseResponse parses a JSON response body into the target struct.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Message != "" {
			if errResp.Code == "" {
				return fmt.Errorf("server error: %s", errResp.Message)
			}
			return fmt.Errorf("[%s] %s", errResp.Code, errResp.Message)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}
