package service

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/KKNMAL003/dash/internal/errors"
	"github.com/KKNMAL003/dash/internal/metrics"
	"github.com/KKNMAL003/dash/internal/models"

	"github.com/sirupsen/logrus"
)

// NotificationService turns change-feed events into a locally persisted,
// capped notification feed for the signed-in admin. Identifiers derive
// from the source row, so replays of the same change collapse into one
// notification.
type NotificationService struct {
	store        NotificationStore
	userID       string
	cap          int
	previewRunes int
	logger       *logrus.Logger
}

func NewNotificationService(store NotificationStore, userID string, cap, previewRunes int, logger *logrus.Logger) *NotificationService {
	return &NotificationService{
		store:        store,
		userID:       userID,
		cap:          cap,
		previewRunes: previewRunes,
		logger:       logger,
	}
}

// HandleOrderEvent derives a notification from an order change. Inserts
// announce new orders; updates only notify when the status changed.
func (s *NotificationService) HandleOrderEvent(ctx context.Context, event models.OrderEvent) {
	var notification *models.ClientNotification

	switch event.Type {
	case models.ChangeInsert:
		order := event.New
		notification = s.orderNotification(order, models.NotificationOrderNew,
			"New order",
			fmt.Sprintf("Order #%s from %s", models.ShortOrderRef(order.ID), order.CustomerName))

	case models.ChangeUpdate:
		order := event.New
		if event.Old != nil && event.Old.Status == order.Status {
			return
		}
		if order.Status == models.OrderStatusCancelled {
			notification = s.orderNotification(order, models.NotificationOrderCancelled,
				"Order cancelled",
				fmt.Sprintf("Order #%s was cancelled", models.ShortOrderRef(order.ID)))
		} else {
			notification = s.orderNotification(order, models.NotificationOrderStatusChange,
				"Order status updated",
				fmt.Sprintf("Order #%s is now %s", models.ShortOrderRef(order.ID), order.Status))
		}

	default:
		return
	}

	s.save(ctx, notification)
}

// HandleMessageEvent derives a notification from a chat change. Only new
// customer messages notify; staff echoes do not.
func (s *NotificationService) HandleMessageEvent(ctx context.Context, event models.MessageEvent) {
	if event.Type != models.ChangeInsert {
		return
	}
	msg := event.New
	if msg.SenderRole != models.SenderRoleCustomer {
		return
	}

	payload, _ := json.Marshal(map[string]string{"customer_id": msg.CustomerID, "message_id": msg.ID})
	notification := &models.ClientNotification{
		ID:        models.NotificationID(msg.ID, models.NotificationMessageNew, msg.CreatedAt),
		Type:      models.NotificationMessageNew,
		Title:     "New message",
		Body:      truncatePreview(msg.Body, s.previewRunes),
		Payload:   payload,
		CreatedAt: msg.CreatedAt,
	}
	s.save(ctx, notification)
}

func (s *NotificationService) orderNotification(order *models.Order, typ models.NotificationType, title, body string) *models.ClientNotification {
	payload, _ := json.Marshal(map[string]string{"order_id": order.ID, "status": string(order.Status)})
	return &models.ClientNotification{
		ID:        models.NotificationID(order.ID, typ, order.UpdatedAt),
		Type:      typ,
		Title:     title,
		Body:      body,
		Payload:   payload,
		CreatedAt: order.UpdatedAt,
	}
}

func (s *NotificationService) save(ctx context.Context, n *models.ClientNotification) {
	if err := s.store.SaveNotification(ctx, s.userID, n, s.cap); err != nil {
		s.logger.WithError(err).WithField("notification_id", n.ID).Error("Failed to persist notification")
		return
	}
	metrics.IncrementCounter("notifications_created_total",
		map[string]string{"type": string(n.Type)}, "Notifications created")
}

// List returns the newest notifications up to limit.
func (s *NotificationService) List(ctx context.Context, limit int) ([]models.ClientNotification, error) {
	if limit <= 0 || limit > s.cap {
		limit = s.cap
	}
	notifications, err := s.store.ListNotifications(ctx, s.userID, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list notifications", err)
	}
	return notifications, nil
}

// MarkRead marks one notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.NewValidationError("notification_id", id, "notification id is required")
	}
	if err := s.store.MarkNotificationRead(ctx, s.userID, id); err != nil {
		return apperrors.NewDatabaseError("mark notification read", err)
	}
	return nil
}

// MarkAllRead marks the whole feed as read.
func (s *NotificationService) MarkAllRead(ctx context.Context) error {
	if err := s.store.MarkAllNotificationsRead(ctx, s.userID); err != nil {
		return apperrors.NewDatabaseError("mark all notifications read", err)
	}
	return nil
}

// Delete removes one notification.
func (s *NotificationService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.NewValidationError("notification_id", id, "notification id is required")
	}
	if err := s.store.DeleteNotification(ctx, s.userID, id); err != nil {
		return apperrors.NewDatabaseError("delete notification", err)
	}
	return nil
}

// UnreadCount returns the number of unread notifications.
func (s *NotificationService) UnreadCount(ctx context.Context) (int, error) {
	count, err := s.store.CountUnreadNotifications(ctx, s.userID)
	if err != nil {
		return 0, apperrors.NewDatabaseError("count unread notifications", err)
	}
	return count, nil
}

// truncatePreview shortens a message body to at most limit runes.
func truncatePreview(body string, limit int) string {
	runes := []rune(body)
	if limit <= 0 || len(runes) <= limit {
		return body
	}
	return string(runes[:limit]) + "..."
}
