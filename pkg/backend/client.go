package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	apperrors "github.com/KKNMAL003/dash/internal/errors"
	"github.com/KKNMAL003/dash/internal/metrics"
	"github.com/KKNMAL003/dash/internal/models"
	"github.com/KKNMAL003/dash/pkg/circuitbreaker"

	"github.com/sirupsen/logrus"
)

const restPrefix = "/rest/v1"

// Client talks to the hosted backend's REST data API. Every request
// carries the project API key plus a bearer token; by default the token
// is the API key itself until SetAuthToken installs a session token.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     *logrus.Logger

	mu           sync.RWMutex
	authToken    string
	refreshToken string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBreaker installs a circuit breaker around every request.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = cb
	}
}

func NewClient(cfg models.BackendConfig, logger *logrus.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	c := &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		},
		logger:    logger,
		authToken: cfg.APIKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAuthToken installs a session access token. Called by whatever owns
// the auth session, typically on sign-in and on scheduled refresh.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authToken = token
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authToken
}

// get performs a GET against a table and decodes the JSON array response
// into out. An empty result set decodes to an empty slice, not an error.
func (c *Client) get(ctx context.Context, table string, query *Query, out interface{}) error {
	return c.roundTrip(ctx, http.MethodGet, table, query, nil, out)
}

// insert POSTs one row and decodes the representation returned by the
// backend into out (a pointer to a slice).
func (c *Client) insert(ctx context.Context, table string, row interface{}, out interface{}) error {
	return c.roundTrip(ctx, http.MethodPost, table, nil, row, out)
}

// update PATCHes the rows selected by query and decodes the returned
// representation into out. Pass nil out to discard it.
func (c *Client) update(ctx context.Context, table string, query *Query, patch interface{}, out interface{}) error {
	return c.roundTrip(ctx, http.MethodPatch, table, query, patch, out)
}

func (c *Client) roundTrip(ctx context.Context, method, table string, query *Query, body, out interface{}) error {
	endpoint := restPrefix + "/" + table

	call := func(ctx context.Context) error {
		return c.doRequest(ctx, method, endpoint, query, body, out)
	}

	start := time.Now()
	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}

	labels := map[string]string{"table": table, "method": method}
	metrics.RecordTimer("backend_request_duration", time.Since(start), labels, "Backend request duration")
	if err != nil {
		metrics.IncrementCounter("backend_request_errors_total", labels, "Backend request errors")
	}
	return err
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, query *Query, body, out interface{}) error {
	reqURL := c.baseURL + endpoint
	if query != nil {
		if encoded := query.Encode(); encoded != "" {
			reqURL += "?" + encoded
		}
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "failed to marshal request body")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to create request")
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.token())
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.WrapRetryable(err, apperrors.ErrCodeBackendAPI,
			fmt.Sprintf("request to %s failed", endpoint))
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.WithError(closeErr).Warn("Failed to close response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.WithFields(logrus.Fields{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
		}).Warn("Backend request failed")
		return apperrors.NewAPIError(endpoint, resp.StatusCode,
			fmt.Errorf("backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeBackendAPI, "failed to decode response")
	}
	return nil
}
