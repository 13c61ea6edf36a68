package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	apperrors "github.com/KKNMAL003/dash/internal/errors"
	"github.com/KKNMAL003/dash/internal/metrics"

	"github.com/sirupsen/logrus"
)

const maxSettingKeyLen = 64

// SettingsService persists per-instance dashboard settings, such as the
// business profile and notification preferences, in the local store.
// Values are opaque JSON objects keyed by name.
type SettingsService struct {
	store  SettingsStore
	userID string
	logger *logrus.Logger
}

func NewSettingsService(store SettingsStore, userID string, logger *logrus.Logger) *SettingsService {
	return &SettingsService{
		store:  store,
		userID: userID,
		logger: logger,
	}
}

// Get returns the settings object stored under key.
func (s *SettingsService) Get(ctx context.Context, key string) (json.RawMessage, error) {
	if err := validateSettingKey(key); err != nil {
		return nil, err
	}

	value, err := s.store.GetSetting(ctx, s.userID, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("setting", key)
		}
		return nil, err
	}
	return json.RawMessage(value), nil
}

// Put upserts the settings object stored under key.
func (s *SettingsService) Put(ctx context.Context, key string, value json.RawMessage) error {
	if err := validateSettingKey(key); err != nil {
		return err
	}
	if !json.Valid(value) {
		return apperrors.NewValidationError("value", "", "settings value must be valid JSON")
	}

	if err := s.store.PutSetting(ctx, s.userID, key, string(value)); err != nil {
		return err
	}
	metrics.IncrementCounter("settings_updates_total", map[string]string{"key": key}, "Settings updates")
	s.logger.WithField("key", key).Debug("Settings updated")
	return nil
}

func validateSettingKey(key string) error {
	if key == "" {
		return apperrors.NewValidationError("key", "", "settings key is required")
	}
	if len(key) > maxSettingKeyLen {
		return apperrors.NewValidationError("key", key, "settings key is too long")
	}
	for _, r := range key {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
			continue
		}
		return apperrors.NewValidationError("key", key, "settings key may only contain lowercase letters, digits and underscores")
	}
	return nil
}
