// Package storage provides abstractions for the profile and meal-log data service.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/mealscan/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// DataService defines the operations the app performs against its backend.
// This abstraction allows swapping backends (local SQLite, remote RPC, cached)
// without changing the session layer.
type DataService interface {
	// GetProfile retrieves a profile by ID.
	// Returns ErrNotFound if no profile exists for the ID.
	GetProfile(ctx context.Context, id string) (*models.Profile, error)

	// UpdateProfile applies a partial update and returns the stored profile.
	// Returns ErrNotFound if the profile does not exist.
	UpdateProfile(ctx context.Context, id string, patch models.ProfilePatch) (*models.Profile, error)

	// ListMealLogs returns every meal logged by userID, newest first.
	ListMealLogs(ctx context.Context, userID string) ([]models.MealLogEntry, error)

	// InsertMealLog stores a new entry and returns it with its assigned ID.
	// Any ID on the input is ignored.
	InsertMealLog(ctx context.Context, entry models.MealLogEntry) (*models.MealLogEntry, error)
}
