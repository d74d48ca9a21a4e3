// Package sqlite provides a SQLite-backed implementation of storage.DataService.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/mealscan/internal/models"
	"github.com/mmynk/mealscan/internal/storage"
)

// Ensure SQLiteStore implements storage.DataService
var _ storage.DataService = (*SQLiteStore)(nil)

// SQLiteStore implements storage.DataService using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Writers serialize on one connection; SQLite would otherwise
	// return SQLITE_BUSY under concurrent session mutations.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetProfile retrieves a profile by ID.
func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	return getProfile(ctx, s.db, id)
}

// UpdateProfile applies patch to the profile inside a transaction and
// returns the stored result.
func (s *SQLiteStore) UpdateProfile(ctx context.Context, id string, patch models.ProfilePatch) (*models.Profile, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.UpdatedAt.IsZero() {
		patch.UpdatedAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	profile, err := getProfile(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(profile)

	extra, err := encodeExtra(profile.Extra)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE profiles
		SET is_premium = ?, credits = ?, track_calories_usage = ?, extra = ?, updated_at = ?
		WHERE id = ?`,
		profile.IsPremium, profile.Credits, profile.TrackCaloriesUsage, extra, profile.UpdatedAt.UnixNano(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return profile, nil
}

// ListMealLogs returns the user's meal log ordered by scanned_at, newest first.
func (s *SQLiteStore) ListMealLogs(ctx context.Context, userID string) ([]models.MealLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, scanned_at, name, calories, protein, carbs, fat, extra
		FROM meal_logs
		WHERE user_id = ?
		ORDER BY scanned_at DESC, rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list meal logs: %w", err)
	}
	defer rows.Close()

	entries := []models.MealLogEntry{}
	for rows.Next() {
		var (
			entry     models.MealLogEntry
			scannedAt int64
			extra     string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&scannedAt,
			&entry.Name,
			&entry.Calories,
			&entry.Protein,
			&entry.Carbs,
			&entry.Fat,
			&extra,
		); err != nil {
			return nil, fmt.Errorf("failed to scan meal log: %w", err)
		}
		entry.ScannedAt = time.Unix(0, scannedAt).UTC()
		if entry.Extra, err = decodeExtra(extra); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate meal logs: %w", err)
	}

	return entries, nil
}

// InsertMealLog stores entry under a freshly generated ID.
// A zero ScannedAt is stamped with the current time.
func (s *SQLiteStore) InsertMealLog(ctx context.Context, entry models.MealLogEntry) (*models.MealLogEntry, error) {
	entry = entry.Clone()
	entry.ID = uuid.New().String()
	if entry.ScannedAt.IsZero() {
		entry.ScannedAt = s.now()
	}
	entry.ScannedAt = entry.ScannedAt.UTC()

	extra, err := encodeExtra(entry.Extra)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO meal_logs (id, user_id, scanned_at, name, calories, protein, carbs, fat, extra)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.ScannedAt.UnixNano(), entry.Name,
		entry.Calories, entry.Protein, entry.Carbs, entry.Fat, extra,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert meal log: %w", err)
	}

	return &entry, nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getProfile(ctx context.Context, q queryer, id string) (*models.Profile, error) {
	var (
		profile   models.Profile
		updatedAt int64
		extra     string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, is_premium, credits, track_calories_usage, extra, updated_at
		FROM profiles
		WHERE id = ?`,
		id,
	).Scan(&profile.ID, &profile.IsPremium, &profile.Credits, &profile.TrackCaloriesUsage, &extra, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	profile.UpdatedAt = time.Unix(0, updatedAt).UTC()
	if profile.Extra, err = decodeExtra(extra); err != nil {
		return nil, err
	}
	return &profile, nil
}

func encodeExtra(extra map[string]any) (string, error) {
	if len(extra) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return "", fmt.Errorf("failed to encode extra fields: %w", err)
	}
	return string(b), nil
}

func decodeExtra(raw string) (map[string]any, error) {
	if raw == "" || raw == "{}" {
		return nil, nil
	}
	var extra map[string]any
	if err := json.Unmarshal([]byte(raw), &extra); err != nil {
		return nil, fmt.Errorf("failed to decode extra fields: %w", err)
	}
	return extra, nil
}
