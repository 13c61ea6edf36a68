package backend

import (
	"context"

	apperrors "github.com/KKNMAL003/dash/internal/errors"
	"github.com/KKNMAL003/dash/internal/models"
)

const tableCommunicationLogs = "communication_logs"

// ListMessages fetches a customer's chat messages in chronological order.
func (c *Client) ListMessages(ctx context.Context, customerID string) ([]models.Message, error) {
	q := NewQuery().Select("*").
		Eq("customer_id", customerID).
		Eq("log_type", string(models.LogTypeUserMessage)).
		Order("created_at", false)

	messages := make([]models.Message, 0)
	if err := c.get(ctx, tableCommunicationLogs, q, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// ListRecentMessages fetches the newest chat messages across every
// conversation, used to derive the conversation list.
func (c *Client) ListRecentMessages(ctx context.Context, limit int) ([]models.Message, error) {
	q := NewQuery().Select("*").
		Eq("log_type", string(models.LogTypeUserMessage)).
		Order("created_at", true).
		Limit(limit)

	messages := make([]models.Message, 0)
	if err := c.get(ctx, tableCommunicationLogs, q, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// InsertMessage creates a staff-originated communication-log row and
// returns the stored row with its server-assigned identifier.
func (c *Client) InsertMessage(ctx context.Context, params models.SendMessageParams) (*models.Message, error) {
	if params.CustomerID == "" {
		return nil, apperrors.NewValidationError("customer_id", "", "customer is required")
	}
	if params.Body == "" {
		return nil, apperrors.NewValidationError("message", "", "message body is required")
	}
	logType := params.LogType
	if logType == "" {
		logType = models.LogTypeUserMessage
	}

	row := map[string]interface{}{
		"customer_id": params.CustomerID,
		"user_id":     params.CustomerID,
		"staff_id":    params.StaffID,
		"message":     params.Body,
		"subject":     params.Subject,
		"log_type":    logType,
		"sender_type": models.SenderRoleStaff,
		"is_read":     false,
	}

	inserted := make([]models.Message, 0, 1)
	if err := c.insert(ctx, tableCommunicationLogs, row, &inserted); err != nil {
		return nil, err
	}
	if len(inserted) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeBackendAPI, "insert returned no representation")
	}
	return &inserted[0], nil
}

// MarkConversationRead marks every unread customer-sent message in a
// conversation as read.
func (c *Client) MarkConversationRead(ctx context.Context, customerID string) error {
	q := NewQuery().
		Eq("customer_id", customerID).
		Eq("sender_type", string(models.SenderRoleCustomer)).
		Eq("is_read", "false")

	patch := map[string]interface{}{"is_read": true}
	return c.update(ctx, tableCommunicationLogs, q, patch, nil)
}

// ListUnreadMessages fetches unread customer-sent messages, used for
// unread counts in the conversation list.
func (c *Client) ListUnreadMessages(ctx context.Context) ([]models.Message, error) {
	q := NewQuery().Select("id,customer_id,sender_type,is_read,created_at").
		Eq("sender_type", string(models.SenderRoleCustomer)).
		Eq("is_read", "false").
		Eq("log_type", string(models.LogTypeUserMessage))

	messages := make([]models.Message, 0)
	if err := c.get(ctx, tableCommunicationLogs, q, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
