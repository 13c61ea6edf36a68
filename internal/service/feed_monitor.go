package service

import (
	"context"
	"sync"
	"time"

	"github.com/KKNMAL003/dash/internal/metrics"

	"github.com/sirupsen/logrus"
)

// feedHealth is the slice of ChatSync the watchdog consumes.
type feedHealth interface {
	LastEventAt() time.Time
	FeedHealthy() bool
	NotifyNetworkRestored()
}

// FeedMonitor watches the change feed for silent death: a connection that
// looks healthy but has delivered nothing, not even heartbeat-driven
// status traffic, for longer than staleAfter. When detected it forces a
// reconnect and marks the synchronized views stale.
type FeedMonitor struct {
	sync          feedHealth
	logger        *logrus.Logger
	checkInterval time.Duration
	staleAfter    time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

func NewFeedMonitor(sync feedHealth, checkInterval, staleAfter time.Duration, logger *logrus.Logger) *FeedMonitor {
	return &FeedMonitor{
		sync:          sync,
		logger:        logger,
		checkInterval: checkInterval,
		staleAfter:    staleAfter,
		stopCh:        make(chan struct{}),
	}
}

// Start begins watching the feed.
func (fm *FeedMonitor) Start(ctx context.Context) {
	fm.mu.Lock()
	if fm.running {
		fm.mu.Unlock()
		fm.logger.Warn("Feed monitor is already running")
		return
	}
	if fm.stopCh == nil {
		fm.stopCh = make(chan struct{})
	}
	fm.running = true
	fm.mu.Unlock()

	go fm.monitorLoop(ctx)
	fm.logger.Info("Feed monitor started")
}

// Stop stops watching the feed.
func (fm *FeedMonitor) Stop() {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if !fm.running {
		return
	}
	if fm.stopCh != nil {
		close(fm.stopCh)
		fm.stopCh = nil
	}
	fm.running = false
	fm.logger.Info("Feed monitor stopped")
}

func (fm *FeedMonitor) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(fm.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-fm.getStopCh():
			return
		case <-ticker.C:
			fm.check()
		}
	}
}

func (fm *FeedMonitor) getStopCh() <-chan struct{} {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if fm.stopCh == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return fm.stopCh
}

func (fm *FeedMonitor) check() {
	if !fm.sync.FeedHealthy() {
		// The sync layer already knows the feed is down; the poll
		// fallback and the feed client's own redial cover this.
		return
	}

	silence := time.Since(fm.sync.LastEventAt())
	if silence <= fm.staleAfter {
		return
	}

	metrics.IncrementCounter("feed_watchdog_kicks_total", nil, "Forced reconnects by the feed watchdog")
	fm.logger.WithField("silence", silence.String()).Warn("Change feed silent too long, forcing reconnect")
	fm.sync.NotifyNetworkRestored()
}
