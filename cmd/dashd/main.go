package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KKNMAL003/dash/internal/cache"
	"github.com/KKNMAL003/dash/internal/config"
	"github.com/KKNMAL003/dash/internal/constants"
	"github.com/KKNMAL003/dash/internal/database"
	"github.com/KKNMAL003/dash/internal/retry"
	"github.com/KKNMAL003/dash/internal/service"
	"github.com/KKNMAL003/dash/internal/tracing"
	"github.com/KKNMAL003/dash/pkg/backend"
	"github.com/KKNMAL003/dash/pkg/circuitbreaker"
	"github.com/KKNMAL003/dash/pkg/realtime"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("dashd %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting dashd")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			logger.SetLevel(logrus.InfoLevel)
		} else {
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	tracingManager := tracing.NewManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Open the local store with exponential backoff retry
	var store *database.Store
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
		Jitter:       true,
	})
	err = backoff.Retry(ctx, func() error {
		var initErr error
		store, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to open local store: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to open local store after retries: %w", err)
	}
	defer store.Close()

	breaker := circuitbreaker.New("backend",
		constants.DefaultBreakerMaxFailures,
		constants.DefaultBreakerTimeoutSec*time.Second,
		logger)
	api := backend.NewClient(cfg.Backend, logger, backend.WithBreaker(breaker))

	// With a service account configured, sign in and keep the session
	// token fresh; otherwise requests run on the API key alone.
	if cfg.Backend.ServiceEmail != "" {
		if err := api.SignIn(ctx, cfg.Backend.ServiceEmail, cfg.Backend.ServicePassword); err != nil {
			logger.WithError(err).Warn("Service account sign-in failed, continuing with API key auth")
		} else {
			sessionKeeper := backend.NewSessionKeeper(api,
				time.Duration(cfg.Backend.TokenRefreshSec)*time.Second, logger)
			sessionKeeper.Start(ctx)
			defer sessionKeeper.Stop()
		}
	}

	cacheStore := cache.New(logger)
	defer cacheStore.Close()

	feed := realtime.NewClient(cfg.Realtime, cfg.Backend.APIKey, logger)
	feed.Start(ctx)
	defer feed.Close()

	staleTimes := cfg.Cache
	orderService := service.NewOrderService(api, cacheStore,
		time.Duration(staleTimes.OrdersStaleTimeSec)*time.Second, logger)
	messageService := service.NewMessageService(api, cacheStore,
		time.Duration(staleTimes.MessagesStaleTimeSec)*time.Second,
		constants.ProvisionalMatchWindowMs*time.Millisecond, logger)
	customerService := service.NewCustomerService(api, cacheStore,
		time.Duration(staleTimes.ConversationsStaleTimeSec)*time.Second, logger)
	analyticsService := service.NewAnalyticsService(api, cacheStore,
		time.Duration(staleTimes.AnalyticsStaleTimeSec)*time.Second, logger)
	notificationService := service.NewNotificationService(store, cfg.AdminUser,
		constants.NotificationCap, constants.NotificationPreviewRunes, logger)
	settingsService := service.NewSettingsService(store, cfg.AdminUser, logger)

	syncBackoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Realtime.ReconnectInitialMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Realtime.ReconnectMaxMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  cfg.Realtime.ReconnectMaxAttempts,
		Jitter:       true,
	})
	chatSync := service.NewChatSync(feed, cacheStore, syncBackoff,
		constants.ProvisionalMatchWindowMs*time.Millisecond,
		time.Duration(cfg.Realtime.PollFallbackSec)*time.Second,
		service.SyncHooks{
			OnOrderEvent:   notificationService.HandleOrderEvent,
			OnMessageEvent: notificationService.HandleMessageEvent,
		}, logger)
	if err := chatSync.Start(ctx); err != nil {
		return fmt.Errorf("failed to start chat sync: %w", err)
	}
	defer chatSync.Stop()

	feedMonitor := service.NewFeedMonitor(chatSync,
		constants.DefaultFeedWatchdogSec*time.Second,
		constants.DefaultFeedStaleAfterSec*time.Second, logger)
	feedMonitor.Start(ctx)
	defer feedMonitor.Stop()

	server := NewServer(orderService, messageService, customerService,
		notificationService, analyticsService, settingsService, chatSync, logger)

	serverErr := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(cfg.Server); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		constants.DefaultGracefulShutdownSec*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("Shutdown complete")
	return nil
}
