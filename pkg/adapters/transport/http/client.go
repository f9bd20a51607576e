package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aescanero/rover/pkg/domain"
	"github.com/aescanero/rover/pkg/ports"
	"go.uber.org/zap"
)

const (
	// HeaderAPIKey carries the application token
	HeaderAPIKey = "X-Rover-Api-Key"

	mediaType = "application/vnd.api+json"

	maxBodyBytes = 4 << 20
)

// Config holds transport configuration
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Logger  *zap.Logger

	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client sends requests to the backend API
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a new transport client
func NewClient(cfg *Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("application token is required")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  client,
		logger:  logger,
	}, nil
}

// Send performs the request and returns the response document.
// A 204 or empty body yields an empty envelope.
func (c *Client) Send(ctx context.Context, req ports.Request) (domain.Envelope, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.url(req.Path), body)
	if err != nil {
		return domain.Envelope{}, &domain.TransportError{Err: err}
	}
	httpReq.Header.Set(HeaderAPIKey, c.token)
	httpReq.Header.Set("Accept", mediaType)
	if body != nil {
		httpReq.Header.Set("Content-Type", mediaType)
	}

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("method", method),
			zap.String("path", req.Path),
			zap.Error(err))
		return domain.Envelope{}, &domain.TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.Envelope{}, &domain.TransportError{StatusCode: resp.StatusCode, Err: err}
	}

	c.logger.Debug("request completed",
		zap.String("method", method),
		zap.String("path", req.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Envelope{}, &domain.TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s %s: %s", method, req.Path, http.StatusText(resp.StatusCode)),
		}
	}

	return domain.NewEnvelope(data), nil
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}
