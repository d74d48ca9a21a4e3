package sqlite

import "database/sql"

// schema sets up the database. It runs on startup to ensure tables exist.
// Timestamps in profiles and meal_logs are Unix nanoseconds so that meal
// ordering is stable for scans in the same second.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS profiles (
    id TEXT PRIMARY KEY,
    is_premium INTEGER NOT NULL DEFAULT 0,
    credits INTEGER NOT NULL DEFAULT 0 CHECK (credits >= 0),
    track_calories_usage INTEGER NOT NULL DEFAULT 0 CHECK (track_calories_usage >= 0),
    extra TEXT NOT NULL DEFAULT '{}',
    updated_at INTEGER NOT NULL,
    FOREIGN KEY (id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS meal_logs (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    scanned_at INTEGER NOT NULL,
    name TEXT NOT NULL,
    calories REAL NOT NULL DEFAULT 0,
    protein REAL NOT NULL DEFAULT 0,
    carbs REAL NOT NULL DEFAULT 0,
    fat REAL NOT NULL DEFAULT 0,
    extra TEXT NOT NULL DEFAULT '{}',
    FOREIGN KEY (user_id) REFERENCES profiles(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_meal_logs_user_scanned ON meal_logs(user_id, scanned_at DESC);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
