package service

import (
	"context"
	"time"

	"github.com/KKNMAL003/dash/internal/cache"
	"github.com/KKNMAL003/dash/internal/models"

	"github.com/sirupsen/logrus"
)

// AnalyticsService derives dashboard aggregates from the order book.
type AnalyticsService struct {
	api       BackendClient
	cache     *cache.Store
	staleTime time.Duration
	logger    *logrus.Logger
}

func NewAnalyticsService(api BackendClient, cacheStore *cache.Store, staleTime time.Duration, logger *logrus.Logger) *AnalyticsService {
	return &AnalyticsService{
		api:       api,
		cache:     cacheStore,
		staleTime: staleTime,
		logger:    logger,
	}
}

// DashboardStats returns order-book aggregates, from cache when fresh.
// Cancelled orders are excluded from revenue.
func (s *AnalyticsService) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	if cached, ok := s.cache.Lookup(ctx, cache.DashboardStatsKey, s.staleTime); ok {
		if stats, ok := cached.(models.DashboardStats); ok {
			return &stats, nil
		}
	}

	orders, err := s.api.ListOrders(ctx, models.OrderFilter{})
	if err != nil {
		return nil, err
	}

	stats := computeStats(orders, time.Now())
	s.cache.Put(ctx, cache.DashboardStatsKey, stats)
	return &stats, nil
}

// RecentOrders returns the newest orders up to limit, from cache when fresh.
func (s *AnalyticsService) RecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	key := cache.RecentOrdersKey(limit)
	if cached, ok := s.cache.Lookup(ctx, key, s.staleTime); ok {
		if orders, ok := cached.([]models.Order); ok {
			return orders, nil
		}
	}

	orders, err := s.api.ListRecentOrders(ctx, limit)
	if err != nil {
		return nil, err
	}
	s.cache.Put(ctx, key, orders)
	return orders, nil
}

func computeStats(orders []models.Order, now time.Time) models.DashboardStats {
	stats := models.DashboardStats{
		ByStatus:    make(map[models.OrderStatus]int),
		GeneratedAt: now,
	}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for _, order := range orders {
		stats.TotalOrders++
		stats.ByStatus[order.Status]++

		switch {
		case order.Status == models.OrderStatusDelivered:
			stats.CompletedOrders++
		case order.Status == models.OrderStatusCancelled:
			stats.CancelledOrders++
		default:
			stats.ActiveOrders++
		}

		if order.Status != models.OrderStatusCancelled {
			stats.TotalRevenue += order.TotalAmount
		}

		if !order.CreatedAt.Before(dayStart) {
			stats.TodayOrders++
			if order.Status != models.OrderStatusCancelled {
				stats.TodayRevenue += order.TotalAmount
			}
		}
	}

	return stats
}
