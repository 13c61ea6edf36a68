package backend

import (
	"context"
	"time"

	apperrors "github.com/KKNMAL003/dash/internal/errors"
	"github.com/KKNMAL003/dash/internal/models"
)

const (
	tableOrders     = "orders"
	tableOrderItems = "order_items"
)

// ListOrders fetches orders matching the filter, newest first. A filter
// with zero values returns every order.
func (c *Client) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	q := NewQuery().Select("*").Order("created_at", true)
	if filter.Status != "" {
		q.Eq("status", string(filter.Status))
	}
	if filter.CustomerID != "" {
		q.Eq("customer_id", filter.CustomerID)
	}
	if filter.Search != "" {
		pattern := "*" + filter.Search + "*"
		q.Or("(customer_name.ilike." + pattern + ",customer_email.ilike." + pattern + ",delivery_address.ilike." + pattern + ")")
	}
	if filter.DateFrom != nil {
		q.Gte("created_at", filter.DateFrom.UTC().Format(time.RFC3339))
	}
	if filter.DateTo != nil {
		q.Lte("created_at", filter.DateTo.UTC().Format(time.RFC3339))
	}

	orders := make([]models.Order, 0)
	if err := c.get(ctx, tableOrders, q, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// ListRecentOrders fetches the newest orders up to limit.
func (c *Client) ListRecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	q := NewQuery().Select("*").Order("created_at", true).Limit(limit)
	orders := make([]models.Order, 0)
	if err := c.get(ctx, tableOrders, q, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrder fetches a single order by identifier.
func (c *Client) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	q := NewQuery().Select("*").Eq("id", id).Limit(1)
	orders := make([]models.Order, 0, 1)
	if err := c.get(ctx, tableOrders, q, &orders); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, apperrors.NewNotFoundError("order", id)
	}
	return &orders[0], nil
}

// GetOrderItems fetches the line items for an order.
func (c *Client) GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	q := NewQuery().Select("*").Eq("order_id", orderID)
	items := make([]models.OrderItem, 0)
	if err := c.get(ctx, tableOrderItems, q, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateOrderStatus writes a new status for an order and returns the
// updated row. Transition validity is checked by the caller; the backend
// trigger writes the matching status-history entry.
func (c *Client) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	patch := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}
	return c.patchOrder(ctx, id, patch)
}

// UpdateOrder applies a partial update to an order row.
func (c *Client) UpdateOrder(ctx context.Context, id string, patch map[string]interface{}) (*models.Order, error) {
	patch["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	return c.patchOrder(ctx, id, patch)
}

func (c *Client) patchOrder(ctx context.Context, id string, patch map[string]interface{}) (*models.Order, error) {
	q := NewQuery().Eq("id", id)
	updated := make([]models.Order, 0, 1)
	if err := c.update(ctx, tableOrders, q, patch, &updated); err != nil {
		return nil, err
	}
	if len(updated) == 0 {
		return nil, apperrors.NewNotFoundError("order", id)
	}
	return &updated[0], nil
}
