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

	"github.com/sirupsen/logrus"
)

const authTokenEndpoint = "/auth/v1/token"

type session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// SignIn exchanges service-account credentials for a session and
// installs the access token on the client. The refresh token is kept so
// RefreshSession can rotate the session before it expires.
func (c *Client) SignIn(ctx context.Context, email, password string) error {
	if email == "" {
		return apperrors.NewValidationError("email", "", "service account email is required")
	}
	if password == "" {
		return apperrors.NewValidationError("password", "", "service account password is required")
	}

	sess, err := c.tokenGrant(ctx, "password", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return err
	}

	c.installSession(sess)
	c.logger.Info("Backend session established")
	return nil
}

// RefreshSession rotates the session using the stored refresh token.
func (c *Client) RefreshSession(ctx context.Context) error {
	c.mu.RLock()
	refresh := c.refreshToken
	c.mu.RUnlock()
	if refresh == "" {
		return apperrors.NewAuthError("no session to refresh")
	}

	sess, err := c.tokenGrant(ctx, "refresh_token", map[string]string{
		"refresh_token": refresh,
	})
	if err != nil {
		metrics.IncrementCounter("auth_refresh_failures_total", nil, "Session refresh failures")
		return err
	}

	c.installSession(sess)
	metrics.IncrementCounter("auth_refreshes_total", nil, "Session refreshes")
	return nil
}

func (c *Client) installSession(sess *session) {
	c.mu.Lock()
	c.authToken = sess.AccessToken
	c.refreshToken = sess.RefreshToken
	c.mu.Unlock()
}

// tokenGrant posts to the auth token endpoint. Auth requests carry the
// API key only; they never go through the data-API circuit breaker.
func (c *Client) tokenGrant(ctx context.Context, grantType string, body map[string]string) (*session, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "failed to marshal token request")
	}

	reqURL := c.baseURL + authTokenEndpoint + "?grant_type=" + grantType
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternalError, "failed to create token request")
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.WrapRetryable(err, apperrors.ErrCodeBackendAPI, "token request failed")
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.WithError(closeErr).Warn("Failed to close token response body")
		}
	}()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, apperrors.NewAuthError(fmt.Sprintf("%s grant rejected: %s", grantType, strings.TrimSpace(string(detail))))
	default:
		return nil, apperrors.NewAPIError(authTokenEndpoint, resp.StatusCode,
			fmt.Errorf("auth endpoint returned %d", resp.StatusCode))
	}

	var sess session
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBackendAPI, "failed to decode token response")
	}
	if sess.AccessToken == "" {
		return nil, apperrors.NewAuthError("token response carried no access token")
	}
	return &sess, nil
}

// SessionKeeper refreshes the backend session on a fixed interval so
// the bearer token does not expire mid-flight.
type SessionKeeper struct {
	client   *Client
	interval time.Duration
	logger   *logrus.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewSessionKeeper(client *Client, interval time.Duration, logger *logrus.Logger) *SessionKeeper {
	return &SessionKeeper{
		client:   client,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the refresh loop. No-op when already running.
func (k *SessionKeeper) Start(ctx context.Context) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.running {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	k.running = true
	k.cancel = cancel
	k.done = make(chan struct{})
	go k.loop(loopCtx, k.done)
}

// Stop halts the refresh loop and waits for it to exit.
func (k *SessionKeeper) Stop() {
	k.mu.Lock()
	if !k.running {
		k.mu.Unlock()
		return
	}
	k.running = false
	cancel, done := k.cancel, k.done
	k.mu.Unlock()

	cancel()
	<-done
}

func (k *SessionKeeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := k.client.RefreshSession(ctx); err != nil {
				k.logger.WithError(err).Warn("Session refresh failed, will retry on next interval")
			}
		}
	}
}
