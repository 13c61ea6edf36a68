package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/KKNMAL003/dash/internal/cache"
	"github.com/KKNMAL003/dash/internal/metrics"
	"github.com/KKNMAL003/dash/internal/models"
	"github.com/KKNMAL003/dash/internal/privacy"
	"github.com/KKNMAL003/dash/internal/retry"
	"github.com/KKNMAL003/dash/pkg/realtime"

	"github.com/sirupsen/logrus"
)

const (
	subOrders   = "orders"
	subMessages = "messages"
)

// SyncHooks are invoked after a change event has been applied to the
// cache. The notification aggregator hangs off these.
type SyncHooks struct {
	OnOrderEvent   func(context.Context, models.OrderEvent)
	OnMessageEvent func(context.Context, models.MessageEvent)
}

// ChatSync drives the realtime synchronization layer. It subscribes to
// the orders and chat change feeds, folds incoming events into the cache
// as targeted patches plus invalidations, resubscribes with bounded
// backoff after channel errors, and falls back to interval-based
// invalidation while the feed is down.
type ChatSync struct {
	feed         FeedClient
	cache        *cache.Store
	backoff      *retry.Backoff
	matchWindow  time.Duration
	pollInterval time.Duration
	hooks        SyncHooks
	logger       *logrus.Logger

	mu            sync.Mutex
	running       bool
	feedDown      bool
	resubAttempts map[string]int
	lastEventAt   time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewChatSync(feed FeedClient, cacheStore *cache.Store, backoff *retry.Backoff, matchWindow, pollInterval time.Duration, hooks SyncHooks, logger *logrus.Logger) *ChatSync {
	return &ChatSync{
		feed:          feed,
		cache:         cacheStore,
		backoff:       backoff,
		matchWindow:   matchWindow,
		pollInterval:  pollInterval,
		hooks:         hooks,
		logger:        logger,
		resubAttempts: make(map[string]int),
	}
}

// Start registers the feed subscriptions and launches the poll fallback.
func (s *ChatSync) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("chat sync is already running")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.feedDown = true
	s.lastEventAt = time.Now()
	s.mu.Unlock()

	if err := s.subscribe(subOrders, realtime.SubscriptionConfig{Table: "orders"}, s.handleOrderEvent); err != nil {
		return err
	}
	if err := s.subscribe(subMessages, realtime.SubscriptionConfig{Table: "communication_logs"}, s.handleMessageEvent); err != nil {
		return err
	}

	s.wg.Add(1)
	go s.pollLoop()

	s.logger.Info("Chat sync started")
	return nil
}

// Stop tears down the subscriptions and the poll fallback.
func (s *ChatSync) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.feed.Unsubscribe(subOrders)
	s.feed.Unsubscribe(subMessages)
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Chat sync stopped")
}

// NotifyNetworkRestored pokes the feed to reconnect immediately and marks
// every synchronized view stale so the next read refetches.
func (s *ChatSync) NotifyNetworkRestored() {
	s.feed.NotifyOnline()
	s.refreshAll(context.Background())
}

// NotifyForegrounded is NotifyNetworkRestored for app-foreground events.
func (s *ChatSync) NotifyForegrounded() {
	s.NotifyNetworkRestored()
}

// FeedHealthy reports whether the change feed is connected and delivering.
func (s *ChatSync) FeedHealthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.feedDown
}

// LastEventAt returns the time of the last feed activity, used by the
// watchdog to detect a silently dead feed.
func (s *ChatSync) LastEventAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEventAt
}

func (s *ChatSync) subscribe(name string, config realtime.SubscriptionConfig, handler realtime.Handler) error {
	return s.feed.Subscribe(name, config, handler, func(status realtime.Status, err error) {
		s.handleStatus(name, config, handler, status, err)
	})
}

func (s *ChatSync) handleStatus(name string, config realtime.SubscriptionConfig, handler realtime.Handler, status realtime.Status, err error) {
	switch status {
	case realtime.StatusSubscribed:
		s.mu.Lock()
		wasDown := s.feedDown
		s.feedDown = false
		s.resubAttempts[name] = 0
		s.lastEventAt = time.Now()
		s.mu.Unlock()

		s.logger.WithField("subscription", name).Info("Change feed subscription established")
		if wasDown {
			// Events may have been missed while the feed was down.
			s.refreshAll(context.Background())
		}

	case realtime.StatusClosed:
		// Socket-level loss; the feed client redials on its own.
		s.mu.Lock()
		s.feedDown = true
		s.mu.Unlock()

	case realtime.StatusErrored:
		// The running check and the wg.Add must share one critical
		// section, otherwise a callback racing Stop can Add after
		// Stop's Wait has started.
		s.mu.Lock()
		s.feedDown = true
		if !s.running {
			s.mu.Unlock()
			return
		}
		s.resubAttempts[name]++
		attempt := s.resubAttempts[name]
		if attempt > s.backoff.MaxAttempts() {
			s.mu.Unlock()
			s.logger.WithField("subscription", name).Error("Resubscription attempts exhausted, relying on poll fallback")
			return
		}
		s.wg.Add(1)
		s.mu.Unlock()

		s.logger.WithError(err).WithFields(logrus.Fields{
			"subscription": name,
			"attempt":      attempt,
		}).Warn("Change feed channel errored")

		delay := s.backoff.Delay(attempt)
		go func() {
			defer s.wg.Done()
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(delay):
			}
			s.feed.Unsubscribe(name)
			if subErr := s.subscribe(name, config, handler); subErr != nil {
				s.logger.WithError(subErr).WithField("subscription", name).Error("Resubscription failed")
			}
		}()
	}
}

// pollLoop is the fallback path while the feed is down: it periodically
// marks synchronized views stale so reads refetch from the backend.
func (s *ChatSync) pollLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if s.FeedHealthy() {
				continue
			}
			metrics.IncrementCounter("sync_poll_fallbacks_total", nil, "Poll fallback cycles while feed down")
			s.logger.Debug("Change feed down, invalidating synchronized views")
			s.refreshAll(s.ctx)
		}
	}
}

func (s *ChatSync) refreshAll(ctx context.Context) {
	s.cache.InvalidateFamily(ctx, cache.FamilyOrders)
	s.cache.InvalidateFamily(ctx, cache.FamilyChat)
	s.cache.InvalidateFamily(ctx, cache.FamilyAnalytics)
}

func (s *ChatSync) markActivity() {
	s.mu.Lock()
	s.lastEventAt = time.Now()
	s.feedDown = false
	s.mu.Unlock()
}

func (s *ChatSync) handleOrderEvent(ev realtime.Event) {
	s.markActivity()
	ctx := s.ctx

	event, err := models.ParseOrderEvent(ev.Type, ev.Old, ev.New)
	if err != nil {
		// Malformed payloads degrade to a conservative invalidation.
		s.logger.WithError(err).Warn("Dropping malformed order event")
		s.cache.InvalidateFamily(ctx, cache.FamilyOrders)
		return
	}

	switch event.Type {
	case models.ChangeInsert:
		s.cache.Put(ctx, cache.OrderDetailKey(event.New.ID), *event.New)
	case models.ChangeUpdate:
		s.applyOrderUpdate(ctx, *event.New)
	case models.ChangeDelete:
		s.cache.Invalidate(ctx, cache.OrderDetailKey(event.Old.ID))
	}
	s.cache.InvalidateFamily(ctx, cache.FamilyOrderList)
	s.cache.InvalidateFamily(ctx, cache.FamilyAnalytics)

	if s.hooks.OnOrderEvent != nil {
		s.hooks.OnOrderEvent(ctx, event)
	}
}

// applyOrderUpdate patches the cached detail entry, last write wins: an
// event older than the cached row is discarded.
func (s *ChatSync) applyOrderUpdate(ctx context.Context, incoming models.Order) {
	patched := s.cache.Patch(ctx, cache.OrderDetailKey(incoming.ID), func(value interface{}) interface{} {
		existing, ok := value.(models.Order)
		if !ok {
			return value
		}
		if incoming.UpdatedAt.Before(existing.UpdatedAt) {
			return existing
		}
		return incoming
	})
	if !patched {
		s.cache.Put(ctx, cache.OrderDetailKey(incoming.ID), incoming)
	}
}

func (s *ChatSync) handleMessageEvent(ev realtime.Event) {
	s.markActivity()
	ctx := s.ctx

	event, err := models.ParseMessageEvent(ev.Type, ev.Old, ev.New)
	if err != nil {
		s.logger.WithError(err).Warn("Dropping malformed message event")
		s.cache.InvalidateFamily(ctx, cache.FamilyChat)
		return
	}

	switch event.Type {
	case models.ChangeInsert:
		s.logger.WithFields(logrus.Fields{
			"customer_id": privacy.MaskID(event.New.CustomerID),
			"body":        privacy.MaskMessageBody(event.New.Body),
		}).Debug("Chat message received from feed")
		s.applyMessageInsert(ctx, *event.New)
	case models.ChangeUpdate:
		s.applyMessageUpdate(ctx, *event.New)
	case models.ChangeDelete:
		s.applyMessageDelete(ctx, *event.Old)
	}

	if s.hooks.OnMessageEvent != nil {
		s.hooks.OnMessageEvent(ctx, event)
	}
}

// applyMessageInsert folds a confirmed row into the cached conversation.
// A row matching a provisional message settles it in place; a row already
// present is ignored, so replays converge.
func (s *ChatSync) applyMessageInsert(ctx context.Context, incoming models.Message) {
	s.cache.Patch(ctx, cache.MessagesKey(incoming.CustomerID), func(value interface{}) interface{} {
		messages, ok := value.([]models.Message)
		if !ok {
			return value
		}
		return MergeIncomingMessage(messages, incoming, s.matchWindow)
	})
	s.cache.InvalidateFamily(ctx, cache.FamilyConversations)
}

func (s *ChatSync) applyMessageUpdate(ctx context.Context, incoming models.Message) {
	s.cache.Patch(ctx, cache.MessagesKey(incoming.CustomerID), func(value interface{}) interface{} {
		messages, ok := value.([]models.Message)
		if !ok {
			return value
		}
		updated := make([]models.Message, len(messages))
		for i, msg := range messages {
			if msg.ID == incoming.ID {
				updated[i] = incoming
			} else {
				updated[i] = msg
			}
		}
		return updated
	})
	s.cache.InvalidateFamily(ctx, cache.FamilyConversations)
}

func (s *ChatSync) applyMessageDelete(ctx context.Context, old models.Message) {
	s.cache.Patch(ctx, cache.MessagesKey(old.CustomerID), func(value interface{}) interface{} {
		messages, ok := value.([]models.Message)
		if !ok {
			return value
		}
		remaining := make([]models.Message, 0, len(messages))
		for _, msg := range messages {
			if msg.ID != old.ID {
				remaining = append(remaining, msg)
			}
		}
		return remaining
	})
	s.cache.InvalidateFamily(ctx, cache.FamilyConversations)
}

// MergeIncomingMessage folds a confirmed feed row into a cached message
// list: exact duplicates are dropped, a matching provisional message is
// replaced in place, anything else is appended.
func MergeIncomingMessage(messages []models.Message, incoming models.Message, window time.Duration) []models.Message {
	for _, msg := range messages {
		if msg.ID == incoming.ID {
			return messages
		}
	}
	for i, msg := range messages {
		if msg.MatchesProvisional(incoming, window) {
			settled := make([]models.Message, len(messages))
			copy(settled, messages)
			settled[i] = incoming
			return settled
		}
	}
	return append(append([]models.Message(nil), messages...), incoming)
}
