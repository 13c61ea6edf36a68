package models

import (
	"time"
)

type OrderStatus string

const (
	OrderStatusPending              OrderStatus = "pending"
	OrderStatusReceived             OrderStatus = "order_received"
	OrderStatusConfirmed            OrderStatus = "order_confirmed"
	OrderStatusPreparing            OrderStatus = "preparing"
	OrderStatusScheduledForDelivery OrderStatus = "scheduled_for_delivery"
	OrderStatusDriverDispatched     OrderStatus = "driver_dispatched"
	OrderStatusOutForDelivery       OrderStatus = "out_for_delivery"
	OrderStatusDelivered            OrderStatus = "delivered"
	OrderStatusCancelled            OrderStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentMethodEFT            PaymentMethod = "eft"
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodPayfast        PaymentMethod = "payfast"
	PaymentMethodPaypal         PaymentMethod = "paypal"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// orderStatusFlow maps each status to its forward successor. Terminal
// statuses map to the empty string.
var orderStatusFlow = map[OrderStatus]OrderStatus{
	OrderStatusPending:              OrderStatusReceived,
	OrderStatusReceived:             OrderStatusConfirmed,
	OrderStatusConfirmed:            OrderStatusPreparing,
	OrderStatusPreparing:            OrderStatusOutForDelivery,
	OrderStatusScheduledForDelivery: OrderStatusDriverDispatched,
	OrderStatusDriverDispatched:     OrderStatusOutForDelivery,
	OrderStatusOutForDelivery:       OrderStatusDelivered,
	OrderStatusDelivered:            "",
	OrderStatusCancelled:            "",
}

// IsValid reports whether s is one of the known order statuses.
func (s OrderStatus) IsValid() bool {
	_, ok := orderStatusFlow[s]
	return ok
}

// IsTerminal reports whether no transition may leave s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// NextStatus returns the forward successor of s, if any.
func (s OrderStatus) NextStatus() (OrderStatus, bool) {
	next, ok := orderStatusFlow[s]
	if !ok || next == "" {
		return "", false
	}
	return next, true
}

// CanTransition reports whether an order may move from one status to
// another. Forward moves follow the flow table; cancellation is allowed
// from any non-terminal status.
func CanTransition(from, to OrderStatus) bool {
	if !from.IsValid() || !to.IsValid() {
		return false
	}
	if from.IsTerminal() {
		return false
	}
	if to == OrderStatusCancelled {
		return true
	}
	next, ok := from.NextStatus()
	return ok && next == to
}

type Order struct {
	ID                      string        `json:"id"`
	UserID                  string        `json:"user_id"`
	CustomerID              string        `json:"customer_id"`
	AssignedDriverID        *string       `json:"assigned_driver_id"`
	Status                  OrderStatus   `json:"status"`
	TotalAmount             float64       `json:"total_amount"`
	DeliveryAddress         string        `json:"delivery_address"`
	DeliveryPhone           string        `json:"delivery_phone"`
	PaymentMethod           PaymentMethod `json:"payment_method"`
	PaymentStatus           PaymentStatus `json:"payment_status"`
	CustomerName            string        `json:"customer_name"`
	CustomerEmail           string        `json:"customer_email"`
	Notes                   *string       `json:"notes"`
	DeliveryDate            *string       `json:"delivery_date"`
	PreferredDeliveryWindow *string       `json:"preferred_delivery_window"`
	DeliveryLatitude        *float64      `json:"delivery_latitude"`
	DeliveryLongitude       *float64      `json:"delivery_longitude"`
	DeliveryCost            *float64      `json:"delivery_cost"`
	TrackingNotes           *string       `json:"tracking_notes"`
	CreatedAt               time.Time     `json:"created_at"`
	UpdatedAt               time.Time     `json:"updated_at"`
}

type OrderItem struct {
	ID        string  `json:"id"`
	OrderID   string  `json:"order_id"`
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// OrderFilter narrows an order list query. Zero values mean "no filter".
type OrderFilter struct {
	Status     OrderStatus
	CustomerID string
	Search     string
	DateFrom   *time.Time
	DateTo     *time.Time
}
