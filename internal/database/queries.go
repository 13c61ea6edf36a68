package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/KKNMAL003/dash/internal/models"
)

// SaveNotification inserts a notification for the given user. Inserting
// the same derived identifier twice is a no-op, which makes change-event
// replay idempotent. The list is trimmed to cap afterwards, oldest first.
func (s *Store) SaveNotification(ctx context.Context, userID string, n *models.ClientNotification, cap int) error {
	body, err := s.encryptor.EncryptIfEnabled(n.Body)
	if err != nil {
		return fmt.Errorf("failed to encrypt notification body: %w", err)
	}

	var payload *string
	if len(n.Payload) > 0 {
		encrypted, err := s.encryptor.EncryptIfEnabled(string(n.Payload))
		if err != nil {
			return fmt.Errorf("failed to encrypt notification payload: %w", err)
		}
		payload = &encrypted
	}

	query := `
		INSERT OR IGNORE INTO notifications (
			id, user_id, type, title, body, payload, is_read, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		n.ID, userID, n.Type, n.Title, body, payload, n.Read, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}

	return s.trimNotifications(ctx, userID, cap)
}

func (s *Store) trimNotifications(ctx context.Context, userID string, cap int) error {
	if cap <= 0 {
		return nil
	}
	query := `
		DELETE FROM notifications
		WHERE user_id = ? AND id NOT IN (
			SELECT id FROM notifications
			WHERE user_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
	`
	if _, err := s.db.ExecContext(ctx, query, userID, userID, cap); err != nil {
		return fmt.Errorf("failed to trim notifications: %w", err)
	}
	return nil
}

// ListNotifications returns the user's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]models.ClientNotification, error) {
	query := `
		SELECT id, type, title, body, payload, is_read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]models.ClientNotification, 0)
	for rows.Next() {
		var (
			n       models.ClientNotification
			body    string
			payload sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.Type, &n.Title, &body, &payload, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		if n.Body, err = s.encryptor.DecryptIfEnabled(body); err != nil {
			return nil, fmt.Errorf("failed to decrypt notification body: %w", err)
		}
		if payload.Valid {
			decrypted, err := s.encryptor.DecryptIfEnabled(payload.String)
			if err != nil {
				return nil, fmt.Errorf("failed to decrypt notification payload: %w", err)
			}
			n.Payload = json.RawMessage(decrypted)
		}

		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// MarkNotificationRead flips a single notification to read.
func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// MarkAllNotificationsRead flips every notification for the user to read.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = 1 WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

// DeleteNotification removes a single notification.
func (s *Store) DeleteNotification(ctx context.Context, userID, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

// CountUnreadNotifications returns the number of unread entries.
func (s *Store) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// GetSetting reads a per-user settings object. Returns sql.ErrNoRows
// wrapped when absent.
func (s *Store) GetSetting(ctx context.Context, userID, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE user_id = ? AND key = ?`, userID, key).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// PutSetting upserts a per-user settings object.
func (s *Store) PutSetting(ctx context.Context, userID, key, value string) error {
	query := `
		INSERT INTO settings (user_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, userID, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to put setting %s: %w", key, err)
	}
	return nil
}
