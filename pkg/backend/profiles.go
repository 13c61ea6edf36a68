package backend

import (
	"context"

	apperrors "github.com/KKNMAL003/dash/internal/errors"
	"github.com/KKNMAL003/dash/internal/models"
)

const tableProfiles = "profiles"

// ListCustomers fetches customer profiles, optionally narrowed by a name
// or phone search.
func (c *Client) ListCustomers(ctx context.Context, filter models.CustomerFilter) ([]models.Profile, error) {
	q := NewQuery().Select("*").
		Eq("role", string(models.RoleCustomer)).
		Order("created_at", true)
	if filter.Search != "" {
		pattern := "*" + filter.Search + "*"
		q.Or("(first_name.ilike." + pattern + ",last_name.ilike." + pattern + ",phone.ilike." + pattern + ")")
	}

	profiles := make([]models.Profile, 0)
	if err := c.get(ctx, tableProfiles, q, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// GetProfile fetches a single profile by identifier.
func (c *Client) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	q := NewQuery().Select("*").Eq("id", id).Limit(1)
	profiles := make([]models.Profile, 0, 1)
	if err := c.get(ctx, tableProfiles, q, &profiles); err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, apperrors.NewNotFoundError("profile", id)
	}
	return &profiles[0], nil
}

// GetRole fetches just the role of a profile, used by the admin gate.
func (c *Client) GetRole(ctx context.Context, id string) (models.UserRole, error) {
	profile, err := c.GetProfile(ctx, id)
	if err != nil {
		return "", err
	}
	return profile.Role, nil
}
