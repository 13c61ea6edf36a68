package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/KKNMAL003/dash/internal/errors"
	"github.com/KKNMAL003/dash/internal/metrics"
	"github.com/KKNMAL003/dash/internal/models"
	"github.com/KKNMAL003/dash/internal/retry"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
)

// Status describes a subscription's lifecycle state as reported to its
// status handler.
type Status string

const (
	StatusSubscribed Status = "subscribed"
	StatusClosed     Status = "closed"
	StatusErrored    Status = "errored"
)

// Handler receives decoded change events for one subscription.
type Handler func(Event)

// StatusHandler receives subscription lifecycle transitions. err is nil
// except for StatusErrored.
type StatusHandler func(Status, error)

// SubscriptionConfig narrows a subscription to one table, optionally with
// a server-side row filter such as "customer_id=eq.<id>".
type SubscriptionConfig struct {
	Table  string
	Filter string
}

type subscription struct {
	name    string
	config  SubscriptionConfig
	handler Handler
	status  StatusHandler
	joinRef string
}

// Client maintains one websocket connection to the change feed and any
// number of named subscriptions over it. The connection is owned by a
// single run goroutine: it dials, joins every registered subscription,
// heartbeats, and on failure backs off and redials. Subscribers learn
// about the connection through their status handlers only.
type Client struct {
	url       string
	heartbeat time.Duration
	backoff   *retry.Backoff
	logger    *logrus.Logger

	refCounter uint64

	mu        sync.Mutex
	conn      *websocket.Conn
	subs      map[string]*subscription
	connected bool

	wake    chan struct{}
	stop    chan struct{}
	stopped chan struct{}
}

func NewClient(cfg models.RealtimeConfig, apiKey string, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		url:       feedURL(cfg.URL, apiKey),
		heartbeat: time.Duration(cfg.HeartbeatIntervalSec) * time.Second,
		backoff: retry.NewBackoff(retry.BackoffConfig{
			InitialDelay: time.Duration(cfg.ReconnectInitialMs) * time.Millisecond,
			MaxDelay:     time.Duration(cfg.ReconnectMaxMs) * time.Millisecond,
			Multiplier:   2.0,
			MaxAttempts:  cfg.ReconnectMaxAttempts,
			Jitter:       true,
		}),
		logger:  logger,
		subs:    make(map[string]*subscription),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// feedURL turns the configured base URL into the websocket endpoint.
func feedURL(base, apiKey string) string {
	u := strings.TrimSuffix(base, "/")
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	if !strings.Contains(u, "/realtime/") {
		u += "/realtime/v1/websocket"
	}
	return u + "?apikey=" + apiKey + "&vsn=1.0.0"
}

// Start launches the connection loop. It returns immediately; use
// subscription status handlers to observe connectivity.
func (c *Client) Start(ctx context.Context) {
	go c.run(ctx)
}

// Close tears down the connection loop and the socket.
func (c *Client) Close() {
	close(c.stop)
	<-c.stopped
}

// Subscribe registers a named subscription. When the connection is up the
// join is sent immediately; otherwise it is sent on the next (re)connect.
func (c *Client) Subscribe(name string, config SubscriptionConfig, handler Handler, status StatusHandler) error {
	if name == "" || config.Table == "" {
		return apperrors.NewValidationError("subscription", name, "name and table are required")
	}

	sub := &subscription{
		name:    name,
		config:  config,
		handler: handler,
		status:  status,
	}

	c.mu.Lock()
	if _, exists := c.subs[name]; exists {
		c.mu.Unlock()
		return apperrors.NewValidationError("subscription", name, "already registered")
	}
	c.subs[name] = sub
	conn, connected := c.conn, c.connected
	c.mu.Unlock()

	if connected {
		if err := c.join(context.Background(), conn, sub); err != nil {
			c.logger.WithError(err).WithField("subscription", name).Warn("Failed to join channel, will retry on reconnect")
		}
	}
	return nil
}

// Unsubscribe removes a subscription and leaves its channel if connected.
func (c *Client) Unsubscribe(name string) {
	c.mu.Lock()
	sub, exists := c.subs[name]
	delete(c.subs, name)
	conn, connected := c.conn, c.connected
	c.mu.Unlock()

	if exists && connected {
		leave := frame{
			Topic: topicPrefix + sub.name,
			Event: eventLeave,
			Ref:   c.nextRef(),
		}
		if err := c.send(context.Background(), conn, leave); err != nil {
			c.logger.WithError(err).WithField("subscription", name).Debug("Failed to send leave frame")
		}
	}
}

// NotifyOnline pokes the connection loop to retry immediately, bypassing
// any backoff wait. Called when the host regains network or the app
// returns to the foreground.
func (c *Client) NotifyOnline() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Connected reports whether the feed socket is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) run(ctx context.Context) {
	defer close(c.stopped)

	attempt := 0
	for {
		select {
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.Dial(ctx, c.url, nil)
		if err != nil {
			attempt++
			metrics.IncrementCounter("realtime_connect_failures_total", nil, "Realtime connect failures")
			c.notifyAll(StatusErrored, apperrors.NewChannelError("feed", err))

			if attempt >= c.backoff.MaxAttempts() {
				c.logger.WithField("attempts", attempt).Warn("Change feed reconnect attempts exhausted, waiting for wake signal")
				if !c.waitWake(ctx) {
					return
				}
				attempt = 0
				continue
			}

			c.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"delay":   c.backoff.Delay(attempt).String(),
			}).Info("Change feed connect failed, backing off")
			if !c.sleep(ctx, c.backoff.Delay(attempt)) {
				return
			}
			continue
		}

		attempt = 0
		metrics.IncrementCounter("realtime_connects_total", nil, "Realtime connections established")
		c.session(ctx, conn)
		c.notifyAll(StatusClosed, nil)
	}
}

// session owns one live connection: joins every subscription, heartbeats,
// and reads until the socket fails.
func (c *Client) session(ctx context.Context, conn *websocket.Conn) {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	subs := make([]*subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.connected = false
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	for _, sub := range subs {
		if err := c.join(sessionCtx, conn, sub); err != nil {
			c.logger.WithError(err).WithField("subscription", sub.name).Warn("Failed to join channel")
			return
		}
	}

	go c.heartbeatLoop(sessionCtx, conn, cancel)

	for {
		var msg frame
		if err := wsjson.Read(sessionCtx, conn, &msg); err != nil {
			select {
			case <-c.stop:
			case <-ctx.Done():
			default:
				c.logger.WithError(err).Info("Change feed connection lost")
			}
			return
		}
		c.dispatch(msg)
	}
}

func (c *Client) heartbeatLoop(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			hb := frame{
				Topic:   heartbeatTopic,
				Event:   eventHeartbeat,
				Payload: json.RawMessage("{}"),
				Ref:     c.nextRef(),
			}
			if err := c.send(ctx, conn, hb); err != nil {
				c.logger.WithError(err).Info("Heartbeat failed, dropping connection")
				cancel()
				return
			}
		}
	}
}

func (c *Client) join(ctx context.Context, conn *websocket.Conn, sub *subscription) error {
	payload, err := json.Marshal(joinPayload{
		Config: joinConfig{
			PostgresChanges: []changeRequest{{
				Event:  "*",
				Schema: "public",
				Table:  sub.config.Table,
				Filter: sub.config.Filter,
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal join payload: %w", err)
	}

	ref := c.nextRef()
	c.mu.Lock()
	sub.joinRef = ref
	c.mu.Unlock()

	return c.send(ctx, conn, frame{
		Topic:   topicPrefix + sub.name,
		Event:   eventJoin,
		Payload: payload,
		Ref:     ref,
	})
}

func (c *Client) send(ctx context.Context, conn *websocket.Conn, msg frame) error {
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return wsjson.Write(writeCtx, conn, msg)
}

func (c *Client) dispatch(msg frame) {
	if !strings.HasPrefix(msg.Topic, topicPrefix) {
		return
	}
	name := strings.TrimPrefix(msg.Topic, topicPrefix)

	// joinRef is copied out under the lock; join rewrites it on every
	// reconnect while dispatch runs on the read loop.
	c.mu.Lock()
	sub, exists := c.subs[name]
	var joinRef string
	if exists {
		joinRef = sub.joinRef
	}
	c.mu.Unlock()
	if !exists {
		return
	}

	switch msg.Event {
	case eventChanges:
		var payload changesPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.logger.WithError(err).WithField("subscription", name).Warn("Failed to decode change event")
			return
		}
		metrics.IncrementCounter("realtime_events_total",
			map[string]string{"table": payload.Data.Table, "type": string(payload.Data.Type)},
			"Realtime change events received")
		if sub.handler != nil {
			sub.handler(payload.Data.toEvent())
		}

	case eventReply:
		var payload replyPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return
		}
		if msg.Ref != joinRef {
			return
		}
		if payload.Status == "ok" {
			if sub.status != nil {
				sub.status(StatusSubscribed, nil)
			}
			return
		}
		if sub.status != nil {
			sub.status(StatusErrored, apperrors.NewChannelError(name,
				fmt.Errorf("join rejected: %s", string(payload.Response))))
		}

	case eventError, eventClose:
		if sub.status != nil {
			sub.status(StatusErrored, apperrors.NewChannelError(name, fmt.Errorf("channel %s", msg.Event)))
		}
	}
}

func (c *Client) notifyAll(status Status, err error) {
	c.mu.Lock()
	subs := make([]*subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		if sub.status != nil {
			sub.status(status, err)
		}
	}
}

func (c *Client) nextRef() string {
	return strconv.FormatUint(atomic.AddUint64(&c.refCounter, 1), 10)
}

// sleep waits for the given duration, returning early on a wake signal.
// Returns false when the client is stopping.
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-c.stop:
		return false
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-c.wake:
		return true
	}
}

// waitWake blocks until NotifyOnline is called. Returns false when the
// client is stopping.
func (c *Client) waitWake(ctx context.Context) bool {
	select {
	case <-c.stop:
		return false
	case <-ctx.Done():
		return false
	case <-c.wake:
		return true
	}
}
