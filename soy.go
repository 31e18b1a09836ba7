package counsel

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/zoobzio/astql/postgres"
	"github.com/zoobzio/soy"
)

// DefaultHistoryWindow is how many recent interactions feed a user's history.
const DefaultHistoryWindow = 50

// SoyMemory implements Memory using soy for persistence.
type SoyMemory struct {
	interactions *soy.Soy[Interaction]
	profiles     *soy.Soy[Profile]
	db           *sqlx.DB
	window       int
}

// NewSoyMemory creates a soy-backed Memory over the interactions and
// profiles tables.
func NewSoyMemory(db *sqlx.DB) (*SoyMemory, error) {
	renderer := postgres.New()

	interactions, err := soy.New[Interaction](db, "interactions", renderer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize interactions table: %w", err)
	}

	profiles, err := soy.New[Profile](db, "profiles", renderer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize profiles table: %w", err)
	}

	return &SoyMemory{
		interactions: interactions,
		profiles:     profiles,
		db:           db,
		window:       DefaultHistoryWindow,
	}, nil
}

// WithHistoryWindow sets how many recent interactions Historical considers.
func (m *SoyMemory) WithHistoryWindow(n int) *SoyMemory {
	if n > 0 {
		m.window = n
	}
	return m
}

// Record implements Sink by inserting an interaction row.
func (m *SoyMemory) Record(ctx context.Context, q Query, resp *StructuredResponse) error {
	if _, err := m.interactions.Insert().Exec(ctx, NewInteraction(ctx, q, resp)); err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}
	return nil
}

// Interactions returns the user's most recent interactions, newest first.
func (m *SoyMemory) Interactions(ctx context.Context, userID string, limit int) ([]*Interaction, error) {
	rows, err := m.interactions.Query().
		Where("user_id", "=", "user_id").
		OrderBy("created_at", "desc").
		Limit(limit).
		Exec(ctx, map[string]any{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to get interactions: %w", err)
	}
	return rows, nil
}

// Historical implements HistoryProvider. A user with no rows has empty history.
func (m *SoyMemory) Historical(ctx context.Context, userID string) (HistoricalContext, error) {
	interactions, err := m.Interactions(ctx, userID, m.window)
	if err != nil {
		return HistoricalContext{}, err
	}

	profile, err := m.profile(ctx, userID)
	if err != nil {
		return HistoricalContext{}, err
	}

	return DeriveHistory(interactions, profile), nil
}

// SaveProfile creates the user's profile or replaces its contents.
func (m *SoyMemory) SaveProfile(ctx context.Context, profile *Profile) error {
	existing, err := m.profile(ctx, profile.UserID)
	if err != nil {
		return err
	}

	profile.UpdatedAt = time.Now().UTC()
	if existing == nil {
		if _, err := m.profiles.Insert().Exec(ctx, profile); err != nil {
			return fmt.Errorf("failed to insert profile: %w", err)
		}
		return nil
	}

	_, err = m.profiles.Modify().
		Set("preferences", "preferences").
		Set("company_metrics", "company_metrics").
		Set("updated_at", "updated_at").
		Where("user_id", "=", "user_id").
		Exec(ctx, map[string]any{
			"preferences":     profile.Preferences,
			"company_metrics": profile.CompanyMetrics,
			"updated_at":      profile.UpdatedAt,
			"user_id":         profile.UserID,
		})
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// DeleteUser removes a user's interactions and profile.
func (m *SoyMemory) DeleteUser(ctx context.Context, userID string) error {
	params := map[string]any{"user_id": userID}
	if _, err := m.interactions.Remove().Where("user_id", "=", "user_id").Exec(ctx, params); err != nil {
		return fmt.Errorf("failed to delete interactions: %w", err)
	}
	if _, err := m.profiles.Remove().Where("user_id", "=", "user_id").Exec(ctx, params); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return nil
}

// profile loads the user's profile, or nil when there is none.
func (m *SoyMemory) profile(ctx context.Context, userID string) (*Profile, error) {
	rows, err := m.profiles.Query().
		Where("user_id", "=", "user_id").
		Limit(1).
		Exec(ctx, map[string]any{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Close closes the underlying database connection.
func (m *SoyMemory) Close() error {
	return m.db.Close()
}

var _ Memory = (*SoyMemory)(nil)
