package service

import (
	"context"
	"testing"
	"time"

	"github.com/KKNMAL003/dash/internal/cache"
	apperrors "github.com/KKNMAL003/dash/internal/errors"
	"github.com/KKNMAL003/dash/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeOrder(id string, status models.OrderStatus) models.Order {
	return models.Order{
		ID:           id,
		CustomerID:   "cust-1",
		CustomerName: "Jane Smith",
		Status:       status,
		TotalAmount:  250,
		CreatedAt:    time.Now().Add(-time.Hour),
		UpdatedAt:    time.Now(),
	}
}

func TestListOrdersCachesPerFilter(t *testing.T) {
	ctx := context.Background()
	api := &mockBackend{
		listOrdersFn: func(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
			return []models.Order{makeOrder("o1", models.OrderStatusPending)}, nil
		},
	}
	svc := NewOrderService(api, newTestCache(t), time.Minute, newTestLogger())

	_, err := svc.ListOrders(ctx, models.OrderFilter{})
	require.NoError(t, err)
	_, err = svc.ListOrders(ctx, models.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, api.callCount("ListOrders"))

	// A different filter is a different cache entry.
	_, err = svc.ListOrders(ctx, models.OrderFilter{Status: models.OrderStatusPending})
	require.NoError(t, err)
	assert.Equal(t, 2, api.callCount("ListOrders"))
}

func TestGetOrderRequiresID(t *testing.T) {
	svc := NewOrderService(&mockBackend{}, newTestCache(t), time.Minute, newTestLogger())
	_, err := svc.GetOrder(context.Background(), "")
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetCode(err))
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	ctx := context.Background()
	api := &mockBackend{
		getOrderFn: func(ctx context.Context, id string) (*models.Order, error) {
			order := makeOrder(id, models.OrderStatusPending)
			return &order, nil
		},
	}
	svc := NewOrderService(api, newTestCache(t), time.Minute, newTestLogger())

	_, err := svc.UpdateStatus(ctx, "o1", models.OrderStatusDelivered)
	assert.Equal(t, apperrors.ErrCodeInvalidTransition, apperrors.GetCode(err))
	assert.Equal(t, 0, api.callCount("UpdateOrderStatus"), "invalid transitions never reach the backend")
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc := NewOrderService(&mockBackend{}, newTestCache(t), time.Minute, newTestLogger())
	_, err := svc.UpdateStatus(context.Background(), "o1", "shipped")
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetCode(err))
}

func TestUpdateStatusSettlesCache(t *testing.T) {
	ctx := context.Background()
	cacheStore := newTestCache(t)
	api := &mockBackend{
		getOrderFn: func(ctx context.Context, id string) (*models.Order, error) {
			order := makeOrder(id, models.OrderStatusPending)
			return &order, nil
		},
		updateOrderStatusFn: func(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
			order := makeOrder(id, status)
			return &order, nil
		},
	}
	svc := NewOrderService(api, cacheStore, time.Minute, newTestLogger())

	// Seed a list entry so the invalidation is observable.
	listKey := cache.OrderListKey("")
	cacheStore.Put(ctx, listKey, []models.Order{makeOrder("o1", models.OrderStatusPending)})

	updated, err := svc.UpdateStatus(ctx, "o1", models.OrderStatusReceived)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusReceived, updated.Status)

	value, ok := cacheStore.Peek(ctx, cache.OrderDetailKey("o1"))
	require.True(t, ok)
	assert.Equal(t, models.OrderStatusReceived, value.(models.Order).Status)

	_, fresh := cacheStore.Lookup(ctx, listKey, time.Minute)
	assert.False(t, fresh, "list entries are invalidated after a status write")
}

func TestAdvanceStatusFollowsFlow(t *testing.T) {
	ctx := context.Background()
	api := &mockBackend{
		getOrderFn: func(ctx context.Context, id string) (*models.Order, error) {
			order := makeOrder(id, models.OrderStatusPreparing)
			return &order, nil
		},
		updateOrderStatusFn: func(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
			order := makeOrder(id, status)
			return &order, nil
		},
	}
	svc := NewOrderService(api, newTestCache(t), time.Minute, newTestLogger())

	updated, err := svc.AdvanceStatus(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusOutForDelivery, updated.Status)
}

func TestAdvanceStatusRejectsTerminalOrder(t *testing.T) {
	api := &mockBackend{
		getOrderFn: func(ctx context.Context, id string) (*models.Order, error) {
			order := makeOrder(id, models.OrderStatusDelivered)
			return &order, nil
		},
	}
	svc := NewOrderService(api, newTestCache(t), time.Minute, newTestLogger())

	_, err := svc.AdvanceStatus(context.Background(), "o1")
	assert.Equal(t, apperrors.ErrCodeInvalidTransition, apperrors.GetCode(err))
}

func TestCancelOrderAllowedFromAnyActiveStatus(t *testing.T) {
	ctx := context.Background()
	api := &mockBackend{
		getOrderFn: func(ctx context.Context, id string) (*models.Order, error) {
			order := makeOrder(id, models.OrderStatusOutForDelivery)
			return &order, nil
		},
		updateOrderStatusFn: func(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
			order := makeOrder(id, status)
			return &order, nil
		},
	}
	svc := NewOrderService(api, newTestCache(t), time.Minute, newTestLogger())

	updated, err := svc.CancelOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, updated.Status)
}

func TestCancelOrderRejectsDeliveredOrder(t *testing.T) {
	api := &mockBackend{
		getOrderFn: func(ctx context.Context, id string) (*models.Order, error) {
			order := makeOrder(id, models.OrderStatusDelivered)
			return &order, nil
		},
	}
	svc := NewOrderService(api, newTestCache(t), time.Minute, newTestLogger())

	_, err := svc.CancelOrder(context.Background(), "o1")
	assert.Equal(t, apperrors.ErrCodeInvalidTransition, apperrors.GetCode(err))
}

func TestAssignDriverRequiresDriverID(t *testing.T) {
	svc := NewOrderService(&mockBackend{}, newTestCache(t), time.Minute, newTestLogger())
	_, err := svc.AssignDriver(context.Background(), "o1", "")
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetCode(err))
}

func TestAssignDriverDispatchesScheduledOrder(t *testing.T) {
	ctx := context.Background()
	api := &mockBackend{
		updateOrderFn: func(ctx context.Context, id string, patch map[string]interface{}) (*models.Order, error) {
			assert.Equal(t, "driver-7", patch["assigned_driver_id"])
			order := makeOrder(id, models.OrderStatusScheduledForDelivery)
			return &order, nil
		},
		getOrderFn: func(ctx context.Context, id string) (*models.Order, error) {
			order := makeOrder(id, models.OrderStatusScheduledForDelivery)
			return &order, nil
		},
		updateOrderStatusFn: func(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
			order := makeOrder(id, status)
			return &order, nil
		},
	}
	svc := NewOrderService(api, newTestCache(t), time.Minute, newTestLogger())

	updated, err := svc.AssignDriver(ctx, "o1", "driver-7")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDriverDispatched, updated.Status)
}

func TestOrderFilterKeyIsStable(t *testing.T) {
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	filter := models.OrderFilter{
		Status:   models.OrderStatusPending,
		Search:   "jane",
		DateFrom: &from,
	}
	assert.Equal(t, "status=pending&search=jane&from=2026-08-01T00:00:00Z", orderFilterKey(filter))
	assert.Equal(t, "", orderFilterKey(models.OrderFilter{}))
}
