package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

type NotificationType string

const (
	NotificationOrderNew          NotificationType = "order_new"
	NotificationOrderStatusChange NotificationType = "order_status_change"
	NotificationOrderCancelled    NotificationType = "order_cancelled"
	NotificationMessageNew        NotificationType = "message_new"
)

// ClientNotification is a locally derived, locally persisted notification.
// It never exists server-side.
type ClientNotification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Payload   json.RawMessage  `json:"payload,omitempty"`
	Read      bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

// NotificationID derives a deterministic identifier from the source event,
// so re-delivery of the same underlying change (e.g. a resubscription
// replay) maps to the same notification.
func NotificationID(rowID string, typ NotificationType, rowTime time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", rowID, typ, rowTime.UnixMilli())))
	return hex.EncodeToString(sum[:16])
}

// ShortOrderRef returns the tail of an order identifier for display.
func ShortOrderRef(orderID string) string {
	if len(orderID) <= 8 {
		return orderID
	}
	return orderID[len(orderID)-8:]
}
