package restclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ruudy-sib/resync/internal/config"
	"github.com/ruudy-sib/resync/internal/port/secondary"
)

// maxBodySize caps how much of a response is read.
const maxBodySize = 8 << 20

// Client implements secondary.Fetcher against the institute REST API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

var _ secondary.Fetcher = (*Client)(nil)

// NewClient creates a REST client with the configured base URL, token and timeout.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	timeout := cfg.APITimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	logger.Info("rest client initialized",
		zap.String("base_url", cfg.APIBaseURL),
		zap.Duration("timeout", client.Timeout),
	)

	return &Client{
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		token:   cfg.APIToken,
		client:  client,
		logger:  logger.Named("rest-client"),
	}
}

// Get fetches path relative to the base URL and returns the JSON body.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	url := c.baseURL + "/" + strings.TrimLeft(path, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating http request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "resync/1.0")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing http request to %q: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response from %q: %w", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("null")
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("response from %q is not valid JSON", url)
	}

	c.logger.Debug("resource fetched",
		zap.String("url", url),
		zap.Int("status_code", resp.StatusCode),
		zap.Int("size", len(body)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return json.RawMessage(body), nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	if c.client != nil {
		c.client.CloseIdleConnections()
	}
	return nil
}
