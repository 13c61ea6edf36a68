package service

import (
	"context"
	"strings"
	"time"

	"github.com/KKNMAL003/dash/internal/cache"
	apperrors "github.com/KKNMAL003/dash/internal/errors"
	"github.com/KKNMAL003/dash/internal/models"

	"github.com/sirupsen/logrus"
)

// OrderService serves order reads through the cache and validates status
// transitions before any write reaches the backend.
type OrderService struct {
	api       BackendClient
	cache     *cache.Store
	staleTime time.Duration
	logger    *logrus.Logger
}

func NewOrderService(api BackendClient, cacheStore *cache.Store, staleTime time.Duration, logger *logrus.Logger) *OrderService {
	return &OrderService{
		api:       api,
		cache:     cacheStore,
		staleTime: staleTime,
		logger:    logger,
	}
}

// ListOrders returns orders matching the filter, from cache when fresh.
func (s *OrderService) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	key := cache.OrderListKey(orderFilterKey(filter))
	if cached, ok := s.cache.Lookup(ctx, key, s.staleTime); ok {
		if orders, ok := cached.([]models.Order); ok {
			return orders, nil
		}
	}

	orders, err := s.api.ListOrders(ctx, filter)
	if err != nil {
		return nil, err
	}
	s.cache.Put(ctx, key, orders)
	return orders, nil
}

// GetOrder returns a single order, from cache when fresh.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	if id == "" {
		return nil, apperrors.NewValidationError("order_id", id, "order id is required")
	}

	key := cache.OrderDetailKey(id)
	if cached, ok := s.cache.Lookup(ctx, key, s.staleTime); ok {
		if order, ok := cached.(models.Order); ok {
			return &order, nil
		}
	}

	order, err := s.api.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Put(ctx, key, *order)
	return order, nil
}

// GetOrderItems returns an order's line items. Items are immutable once
// written, so they are fetched uncached.
func (s *OrderService) GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	return s.api.GetOrderItems(ctx, orderID)
}

// UpdateStatus moves an order to a new status after validating the
// transition against the status flow. The updated row replaces the cached
// detail entry and every list entry is invalidated.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, to models.OrderStatus) (*models.Order, error) {
	if !to.IsValid() {
		return nil, apperrors.NewValidationError("status", string(to), "unknown order status")
	}

	current, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(current.Status, to) {
		return nil, apperrors.NewTransitionError(id, string(current.Status), string(to))
	}

	updated, err := s.api.UpdateOrderStatus(ctx, id, to)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": id,
		"from":     current.Status,
		"to":       to,
	}).Info("Order status updated")

	s.settleOrderWrite(ctx, updated)
	return updated, nil
}

// AdvanceStatus moves an order one step forward along the status flow.
func (s *OrderService) AdvanceStatus(ctx context.Context, id string) (*models.Order, error) {
	current, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	next, ok := current.Status.NextStatus()
	if !ok {
		return nil, apperrors.NewTransitionError(id, string(current.Status), "")
	}
	return s.UpdateStatus(ctx, id, next)
}

// CancelOrder cancels an order from any non-terminal status.
func (s *OrderService) CancelOrder(ctx context.Context, id string) (*models.Order, error) {
	return s.UpdateStatus(ctx, id, models.OrderStatusCancelled)
}

// AssignDriver sets the assigned driver and moves a scheduled order to
// driver_dispatched when applicable.
func (s *OrderService) AssignDriver(ctx context.Context, id, driverID string) (*models.Order, error) {
	if driverID == "" {
		return nil, apperrors.NewValidationError("driver_id", driverID, "driver id is required")
	}

	updated, err := s.api.UpdateOrder(ctx, id, map[string]interface{}{
		"assigned_driver_id": driverID,
	})
	if err != nil {
		return nil, err
	}

	if updated.Status == models.OrderStatusScheduledForDelivery {
		return s.UpdateStatus(ctx, id, models.OrderStatusDriverDispatched)
	}

	s.settleOrderWrite(ctx, updated)
	return updated, nil
}

// settleOrderWrite reconciles the cache after a confirmed order write.
func (s *OrderService) settleOrderWrite(ctx context.Context, order *models.Order) {
	s.cache.Put(ctx, cache.OrderDetailKey(order.ID), *order)
	s.cache.InvalidateFamily(ctx, cache.FamilyOrderList)
	s.cache.InvalidateFamily(ctx, cache.FamilyAnalytics)
}

// orderFilterKey renders a filter as a stable cache key suffix.
func orderFilterKey(filter models.OrderFilter) string {
	parts := make([]string, 0, 5)
	if filter.Status != "" {
		parts = append(parts, "status="+string(filter.Status))
	}
	if filter.CustomerID != "" {
		parts = append(parts, "customer="+filter.CustomerID)
	}
	if filter.Search != "" {
		parts = append(parts, "search="+filter.Search)
	}
	if filter.DateFrom != nil {
		parts = append(parts, "from="+filter.DateFrom.UTC().Format(time.RFC3339))
	}
	if filter.DateTo != nil {
		parts = append(parts, "to="+filter.DateTo.UTC().Format(time.RFC3339))
	}
	return strings.Join(parts, "&")
}
