package service

import (
	"context"

	"github.com/KKNMAL003/dash/internal/models"
	"github.com/KKNMAL003/dash/pkg/realtime"
)

// BackendClient is the slice of the data API the services consume.
type BackendClient interface {
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	ListRecentOrders(ctx context.Context, limit int) ([]models.Order, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error)
	UpdateOrder(ctx context.Context, id string, patch map[string]interface{}) (*models.Order, error)

	ListMessages(ctx context.Context, customerID string) ([]models.Message, error)
	ListRecentMessages(ctx context.Context, limit int) ([]models.Message, error)
	InsertMessage(ctx context.Context, params models.SendMessageParams) (*models.Message, error)
	MarkConversationRead(ctx context.Context, customerID string) error
	ListUnreadMessages(ctx context.Context) ([]models.Message, error)

	ListCustomers(ctx context.Context, filter models.CustomerFilter) ([]models.Profile, error)
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
}

// FeedClient is the slice of the realtime client the sync layer consumes.
type FeedClient interface {
	Subscribe(name string, config realtime.SubscriptionConfig, handler realtime.Handler, status realtime.StatusHandler) error
	Unsubscribe(name string)
	NotifyOnline()
	Connected() bool
}

// SettingsStore persists per-user settings objects locally.
type SettingsStore interface {
	GetSetting(ctx context.Context, userID, key string) (string, error)
	PutSetting(ctx context.Context, userID, key, value string) error
}

// NotificationStore persists the per-user notification feed locally.
type NotificationStore interface {
	SaveNotification(ctx context.Context, userID string, n *models.ClientNotification, cap int) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]models.ClientNotification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	DeleteNotification(ctx context.Context, userID, id string) error
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
}
