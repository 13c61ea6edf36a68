package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeFeedHealth struct {
	mu          sync.Mutex
	healthy     bool
	lastEventAt time.Time
	restores    int
}

func (f *fakeFeedHealth) LastEventAt() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastEventAt
}

func (f *fakeFeedHealth) FeedHealthy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthy
}

func (f *fakeFeedHealth) NotifyNetworkRestored() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restores++
}

func (f *fakeFeedHealth) restoreCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.restores
}

func TestFeedMonitorKicksSilentFeed(t *testing.T) {
	feed := &fakeFeedHealth{healthy: true, lastEventAt: time.Now().Add(-time.Minute)}
	monitor := NewFeedMonitor(feed, 5*time.Millisecond, time.Second, newTestLogger())

	monitor.Start(context.Background())
	defer monitor.Stop()

	assert.Eventually(t, func() bool {
		return feed.restoreCount() > 0
	}, time.Second, 5*time.Millisecond, "a healthy-looking but silent feed forces a reconnect")
}

func TestFeedMonitorIgnoresActiveFeed(t *testing.T) {
	feed := &fakeFeedHealth{healthy: true, lastEventAt: time.Now()}
	monitor := NewFeedMonitor(feed, 5*time.Millisecond, time.Minute, newTestLogger())

	monitor.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	monitor.Stop()

	assert.Zero(t, feed.restoreCount())
}

func TestFeedMonitorIgnoresKnownDownFeed(t *testing.T) {
	feed := &fakeFeedHealth{healthy: false, lastEventAt: time.Now().Add(-time.Hour)}
	monitor := NewFeedMonitor(feed, 5*time.Millisecond, time.Second, newTestLogger())

	monitor.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	monitor.Stop()

	assert.Zero(t, feed.restoreCount(), "the sync layer already covers a feed it knows is down")
}

func TestFeedMonitorStopIsIdempotent(t *testing.T) {
	feed := &fakeFeedHealth{healthy: true, lastEventAt: time.Now()}
	monitor := NewFeedMonitor(feed, time.Hour, time.Hour, newTestLogger())

	monitor.Start(context.Background())
	monitor.Stop()
	monitor.Stop()
}
