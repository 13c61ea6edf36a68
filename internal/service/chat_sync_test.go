package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/KKNMAL003/dash/internal/cache"
	"github.com/KKNMAL003/dash/internal/models"
	"github.com/KKNMAL003/dash/internal/retry"
	"github.com/KKNMAL003/dash/pkg/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSync(t *testing.T, cacheStore *cache.Store, feed *mockFeed, hooks SyncHooks) *ChatSync {
	t.Helper()
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  3,
		Jitter:       false,
	})
	sync := NewChatSync(feed, cacheStore, backoff, time.Second, time.Hour, hooks, newTestLogger())
	require.NoError(t, sync.Start(context.Background()))
	t.Cleanup(sync.Stop)
	return sync
}

func orderEvent(t *testing.T, typ models.ChangeType, old, new *models.Order) realtime.Event {
	t.Helper()
	ev := realtime.Event{Type: typ, Table: "orders"}
	if old != nil {
		raw, err := json.Marshal(old)
		require.NoError(t, err)
		ev.Old = raw
	}
	if new != nil {
		raw, err := json.Marshal(new)
		require.NoError(t, err)
		ev.New = raw
	}
	return ev
}

func messageEvent(t *testing.T, typ models.ChangeType, old, new *models.Message) realtime.Event {
	t.Helper()
	ev := realtime.Event{Type: typ, Table: "communication_logs"}
	if old != nil {
		raw, err := json.Marshal(old)
		require.NoError(t, err)
		ev.Old = raw
	}
	if new != nil {
		raw, err := json.Marshal(new)
		require.NoError(t, err)
		ev.New = raw
	}
	return ev
}

func TestOrderInsertPatchesDetailAndInvalidatesLists(t *testing.T) {
	ctx := context.Background()
	cacheStore := newTestCache(t)
	feed := newMockFeed()

	var hookEvent *models.OrderEvent
	hooks := SyncHooks{OnOrderEvent: func(ctx context.Context, ev models.OrderEvent) { hookEvent = &ev }}
	newTestSync(t, cacheStore, feed, hooks)

	listKey := cache.OrderListKey("")
	cacheStore.Put(ctx, listKey, []models.Order{})

	order := makeOrder("o1", models.OrderStatusPending)
	feed.deliver(subOrders, orderEvent(t, models.ChangeInsert, nil, &order))

	value, ok := cacheStore.Peek(ctx, cache.OrderDetailKey("o1"))
	require.True(t, ok)
	assert.Equal(t, "o1", value.(models.Order).ID)

	_, fresh := cacheStore.Lookup(ctx, listKey, time.Minute)
	assert.False(t, fresh, "order lists go stale on feed inserts")

	require.NotNil(t, hookEvent)
	assert.Equal(t, models.ChangeInsert, hookEvent.Type)
}

func TestOrderUpdateIsLastWriteWins(t *testing.T) {
	ctx := context.Background()
	cacheStore := newTestCache(t)
	feed := newMockFeed()
	newTestSync(t, cacheStore, feed, SyncHooks{})

	newer := makeOrder("o1", models.OrderStatusConfirmed)
	newer.UpdatedAt = time.Now()
	cacheStore.Put(ctx, cache.OrderDetailKey("o1"), newer)

	stale := makeOrder("o1", models.OrderStatusPending)
	stale.UpdatedAt = newer.UpdatedAt.Add(-time.Minute)
	feed.deliver(subOrders, orderEvent(t, models.ChangeUpdate, nil, &stale))

	value, ok := cacheStore.Peek(ctx, cache.OrderDetailKey("o1"))
	require.True(t, ok)
	assert.Equal(t, models.OrderStatusConfirmed, value.(models.Order).Status, "older events must not clobber newer state")

	fresher := makeOrder("o1", models.OrderStatusPreparing)
	fresher.UpdatedAt = newer.UpdatedAt.Add(time.Minute)
	feed.deliver(subOrders, orderEvent(t, models.ChangeUpdate, nil, &fresher))

	value, ok = cacheStore.Peek(ctx, cache.OrderDetailKey("o1"))
	require.True(t, ok)
	assert.Equal(t, models.OrderStatusPreparing, value.(models.Order).Status)
}

func TestOrderUpdateForUncachedOrderIsStored(t *testing.T) {
	ctx := context.Background()
	cacheStore := newTestCache(t)
	feed := newMockFeed()
	newTestSync(t, cacheStore, feed, SyncHooks{})

	order := makeOrder("o9", models.OrderStatusConfirmed)
	feed.deliver(subOrders, orderEvent(t, models.ChangeUpdate, nil, &order))

	value, ok := cacheStore.Peek(ctx, cache.OrderDetailKey("o9"))
	require.True(t, ok)
	assert.Equal(t, models.OrderStatusConfirmed, value.(models.Order).Status)
}

func TestOrderDeleteInvalidatesDetail(t *testing.T) {
	ctx := context.Background()
	cacheStore := newTestCache(t)
	feed := newMockFeed()
	newTestSync(t, cacheStore, feed, SyncHooks{})

	order := makeOrder("o1", models.OrderStatusPending)
	cacheStore.Put(ctx, cache.OrderDetailKey("o1"), order)

	feed.deliver(subOrders, orderEvent(t, models.ChangeDelete, &order, nil))

	_, fresh := cacheStore.Lookup(ctx, cache.OrderDetailKey("o1"), time.Minute)
	assert.False(t, fresh)
}

func TestMalformedOrderEventInvalidatesConservatively(t *testing.T) {
	ctx := context.Background()
	cacheStore := newTestCache(t)
	feed := newMockFeed()

	hookCalled := false
	newTestSync(t, cacheStore, feed, SyncHooks{
		OnOrderEvent: func(ctx context.Context, ev models.OrderEvent) { hookCalled = true },
	})

	detailKey := cache.OrderDetailKey("o1")
	cacheStore.Put(ctx, detailKey, makeOrder("o1", models.OrderStatusPending))

	feed.deliver(subOrders, realtime.Event{
		Type: models.ChangeInsert,
		New:  json.RawMessage(`{"id":"o1","status":"no_such_status"}`),
	})

	_, fresh := cacheStore.Lookup(ctx, detailKey, time.Minute)
	assert.False(t, fresh, "malformed events degrade to a family invalidation")
	assert.False(t, hookCalled, "hooks never see malformed events")
}

func TestMessageInsertSettlesProvisionalFromFeed(t *testing.T) {
	ctx := context.Background()
	cacheStore := newTestCache(t)
	feed := newMockFeed()
	newTestSync(t, cacheStore, feed, SyncHooks{})

	now := time.Now()
	provisional := makeMessage("temp-abc", "cust-1", "on the way", models.SenderRoleStaff, now)
	provisional.Provisional = true
	key := cache.MessagesKey("cust-1")
	cacheStore.Put(ctx, key, []models.Message{provisional})

	confirmed := makeMessage("srv-1", "cust-1", "on the way", models.SenderRoleStaff, now.Add(200*time.Millisecond))
	feed.deliver(subMessages, messageEvent(t, models.ChangeInsert, nil, &confirmed))

	value, ok := cacheStore.Peek(ctx, key)
	require.True(t, ok)
	messages := value.([]models.Message)
	require.Len(t, messages, 1)
	assert.Equal(t, "srv-1", messages[0].ID)
	assert.False(t, messages[0].Provisional)
}

func TestMessageDeleteRemovesRow(t *testing.T) {
	ctx := context.Background()
	cacheStore := newTestCache(t)
	feed := newMockFeed()
	newTestSync(t, cacheStore, feed, SyncHooks{})

	msg := makeMessage("m1", "cust-1", "hello", models.SenderRoleCustomer, time.Now())
	key := cache.MessagesKey("cust-1")
	cacheStore.Put(ctx, key, []models.Message{msg})

	feed.deliver(subMessages, messageEvent(t, models.ChangeDelete, &msg, nil))

	value, ok := cacheStore.Peek(ctx, key)
	require.True(t, ok)
	assert.Empty(t, value.([]models.Message))
}

func TestSubscribedAfterOutageRefreshesViews(t *testing.T) {
	ctx := context.Background()
	cacheStore := newTestCache(t)
	feed := newMockFeed()
	sync := newTestSync(t, cacheStore, feed, SyncHooks{})

	listKey := cache.OrderListKey("")
	cacheStore.Put(ctx, listKey, []models.Order{})

	// The sync starts in the down state until the first subscription
	// confirmation arrives.
	assert.False(t, sync.FeedHealthy())

	feed.setStatus(subOrders, realtime.StatusSubscribed, nil)
	assert.True(t, sync.FeedHealthy())

	_, fresh := cacheStore.Lookup(ctx, listKey, time.Minute)
	assert.False(t, fresh, "coming back up marks synchronized views stale")
}

func TestClosedStatusMarksFeedDown(t *testing.T) {
	cacheStore := newTestCache(t)
	feed := newMockFeed()
	sync := newTestSync(t, cacheStore, feed, SyncHooks{})

	feed.setStatus(subOrders, realtime.StatusSubscribed, nil)
	require.True(t, sync.FeedHealthy())

	feed.setStatus(subOrders, realtime.StatusClosed, nil)
	assert.False(t, sync.FeedHealthy())
}

func TestErroredStatusResubscribesWithBackoff(t *testing.T) {
	cacheStore := newTestCache(t)
	feed := newMockFeed()
	sync := newTestSync(t, cacheStore, feed, SyncHooks{})

	feed.setStatus(subOrders, realtime.StatusErrored, errors.New("join rejected"))

	assert.Eventually(t, func() bool {
		feed.mu.Lock()
		defer feed.mu.Unlock()
		return len(feed.unsubscribes) > 0
	}, time.Second, 5*time.Millisecond, "an errored channel is resubscribed after the backoff delay")

	assert.False(t, sync.FeedHealthy())
}

func TestNotifyNetworkRestoredPokesFeed(t *testing.T) {
	ctx := context.Background()
	cacheStore := newTestCache(t)
	feed := newMockFeed()
	sync := newTestSync(t, cacheStore, feed, SyncHooks{})

	listKey := cache.OrderListKey("")
	cacheStore.Put(ctx, listKey, []models.Order{})

	sync.NotifyNetworkRestored()

	feed.mu.Lock()
	pokes := feed.onlinePokes
	feed.mu.Unlock()
	assert.Equal(t, 1, pokes)

	_, fresh := cacheStore.Lookup(ctx, listKey, time.Minute)
	assert.False(t, fresh)
}

func TestLastEventAtAdvancesOnActivity(t *testing.T) {
	cacheStore := newTestCache(t)
	feed := newMockFeed()
	sync := newTestSync(t, cacheStore, feed, SyncHooks{})

	before := sync.LastEventAt()
	time.Sleep(5 * time.Millisecond)

	order := makeOrder("o1", models.OrderStatusPending)
	feed.deliver(subOrders, orderEvent(t, models.ChangeInsert, nil, &order))

	assert.True(t, sync.LastEventAt().After(before))
}

func TestMergeIncomingMessage(t *testing.T) {
	now := time.Now()
	confirmed := makeMessage("srv-1", "cust-1", "hello", models.SenderRoleStaff, now)

	t.Run("duplicate is dropped", func(t *testing.T) {
		existing := []models.Message{confirmed}
		merged := MergeIncomingMessage(existing, confirmed, time.Second)
		assert.Len(t, merged, 1)
	})

	t.Run("provisional is replaced in place", func(t *testing.T) {
		provisional := makeMessage("temp-1", "cust-1", "hello", models.SenderRoleStaff, now.Add(-100*time.Millisecond))
		provisional.Provisional = true
		other := makeMessage("m0", "cust-1", "earlier", models.SenderRoleCustomer, now.Add(-time.Minute))

		merged := MergeIncomingMessage([]models.Message{other, provisional}, confirmed, time.Second)
		require.Len(t, merged, 2)
		assert.Equal(t, "m0", merged[0].ID)
		assert.Equal(t, "srv-1", merged[1].ID)
	})

	t.Run("provisional outside the window is kept", func(t *testing.T) {
		provisional := makeMessage("temp-1", "cust-1", "hello", models.SenderRoleStaff, now.Add(-5*time.Second))
		provisional.Provisional = true

		merged := MergeIncomingMessage([]models.Message{provisional}, confirmed, time.Second)
		assert.Len(t, merged, 2, "a stale provisional does not match; both rows remain")
	})

	t.Run("unrelated message is appended", func(t *testing.T) {
		other := makeMessage("m0", "cust-1", "different body", models.SenderRoleCustomer, now)
		merged := MergeIncomingMessage([]models.Message{other}, confirmed, time.Second)
		require.Len(t, merged, 2)
		assert.Equal(t, "srv-1", merged[1].ID)
	})

	t.Run("does not mutate the input slice", func(t *testing.T) {
		existing := []models.Message{makeMessage("m0", "cust-1", "hi", models.SenderRoleCustomer, now)}
		_ = MergeIncomingMessage(existing, confirmed, time.Second)
		assert.Len(t, existing, 1)
	})
}

func TestStartTwiceFails(t *testing.T) {
	cacheStore := newTestCache(t)
	feed := newMockFeed()
	sync := newTestSync(t, cacheStore, feed, SyncHooks{})
	assert.Error(t, sync.Start(context.Background()))
}

func TestStatusErroredAfterStopDoesNotResubscribe(t *testing.T) {
	cacheStore := newTestCache(t)
	feed := newMockFeed()
	sync := newTestSync(t, cacheStore, feed, SyncHooks{})
	sync.Stop()

	feed.mu.Lock()
	baseline := len(feed.unsubscribes)
	feed.mu.Unlock()

	feed.setStatus(subOrders, realtime.StatusErrored, errors.New("join rejected"))
	time.Sleep(30 * time.Millisecond)

	feed.mu.Lock()
	after := len(feed.unsubscribes)
	feed.mu.Unlock()
	assert.Equal(t, baseline, after, "a status callback after Stop must not schedule resubscription")
}

func TestStopDuringErroredStatusBurst(t *testing.T) {
	cacheStore := newTestCache(t)
	feed := newMockFeed()
	sync := newTestSync(t, cacheStore, feed, SyncHooks{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			feed.setStatus(subOrders, realtime.StatusErrored, errors.New("channel error"))
		}
	}()

	sync.Stop()
	<-done
}
